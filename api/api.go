// Package api serves an authenticated admin channel over which operators list
// and close the sessions of a service.
package api

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net"
	"slices"
	"sync"

	"github.com/cooldogedev/conduit/api/packet"
	"github.com/cooldogedev/conduit/internal"
	cpacket "github.com/cooldogedev/conduit/packet"
	"github.com/cooldogedev/conduit/payload"
	"github.com/cooldogedev/conduit/protocol"
	"github.com/cooldogedev/conduit/session"
	"github.com/cooldogedev/conduit/transport"
	"github.com/google/uuid"
)

type API struct {
	authentication Authentication
	sessions       *session.Registry
	clients        *session.Registry
	protocol       *protocol.Protocol

	listener transport.Listener
	mu       sync.Mutex

	logger *slog.Logger
}

// NewAPI creates an API operating on sessions. A nil authentication accepts
// every connection.
func NewAPI(sessions *session.Registry, logger *slog.Logger, authentication Authentication) *API {
	if logger == nil {
		logger = internal.NopLogger()
	}
	a := &API{
		authentication: authentication,
		sessions:       sessions,
		clients:        session.NewRegistry(),
		protocol:       packet.NewProtocol(logger),
		logger:         logger.With("component", "api"),
	}
	for tag, h := range map[cpacket.Tag]cpacket.Handler{
		packet.TagKick:         cpacket.HandlerFor(a.handleKick),
		packet.TagListSessions: cpacket.HandlerFor(a.handleListSessions),
	} {
		if err := a.protocol.RegisterHandler(tag, h); err != nil {
			panic(err)
		}
	}
	return a
}

// Listen listens for API connections on addr over TCP.
func (a *API) Listen(addr string) error {
	listener, err := transport.ListenTCP(addr)
	if err != nil {
		return err
	}
	a.mu.Lock()
	a.listener = listener
	a.mu.Unlock()
	a.logger.Info("started listening", "addr", listener.Addr())
	return nil
}

// Addr returns the address the API listens on, or nil.
func (a *API) Addr() net.Addr {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener == nil {
		return nil
	}
	return a.listener.Addr()
}

// Accept accepts the next API connection and serves it in the background.
func (a *API) Accept(ctx context.Context) error {
	a.mu.Lock()
	listener := a.listener
	a.mu.Unlock()
	if listener == nil {
		return fmt.Errorf("api: not listening")
	}

	rwc, err := listener.Accept(ctx)
	if err != nil {
		return err
	}
	conn := transport.NewConn(rwc, transport.ConnOpts{})
	go a.handle(conn)
	a.logger.Info("accepted connection", "addr", conn.RemoteAddr())
	return nil
}

// Close stops listening and closes every API connection.
func (a *API) Close() error {
	for _, c := range a.clients.GetSessions() {
		_ = c.Close()
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener == nil {
		return nil
	}
	return a.listener.Close()
}

func (a *API) handle(conn transport.MessageConn) {
	c := session.NewSession(uuid.New(), conn, a.clients, a.logger)
	defer func() {
		_ = c.Close()
		a.logger.Info("disconnected connection", "addr", conn.RemoteAddr())
	}()

	request, err := a.readConnectionRequest(c)
	if err != nil {
		_ = a.write(c, &packet.ConnectionResponse{Response: packet.ResponseFail})
		a.logger.Error("failed to read connection request", "err", err)
		return
	}

	if a.authentication != nil && !a.authentication.Authenticate(request.Token) {
		_ = a.write(c, &packet.ConnectionResponse{Response: packet.ResponseUnauthorized})
		a.logger.Debug("closed unauthenticated connection", "addr", conn.RemoteAddr())
		return
	}

	if err := a.write(c, &packet.ConnectionResponse{Response: packet.ResponseSuccess}); err != nil {
		a.logger.Error("failed to write connection response", "err", err)
		return
	}
	a.logger.Info("authorized connection", "addr", conn.RemoteAddr())
	c.Serve(func(c *session.Session, msg transport.Message) {
		if msg.Channel != packet.Channel {
			return
		}
		if _, err := a.protocol.HandleIncomingPayload(c.ID(), payload.NewReader(msg.Payload)); err != nil {
			a.logger.Error("failed to handle packet", "err", err)
		}
	})
}

// readConnectionRequest reads the first frame of a connection. The frame is
// decoded directly and never dispatched, so no handler runs for it.
func (a *API) readConnectionRequest(c *session.Session) (*packet.ConnectionRequest, error) {
	msg, err := c.Conn().ReadMessage()
	if err != nil {
		return nil, err
	}
	if msg.Channel != packet.Channel {
		return nil, fmt.Errorf("api: expected channel %s, got %s", packet.Channel, msg.Channel)
	}
	r := payload.NewReader(msg.Payload)
	id, err := r.ReadVarInt()
	if err != nil {
		return nil, fmt.Errorf("api: connection request: %w", err)
	}
	if id != packet.IDConnectionRequest {
		return nil, fmt.Errorf("api: expected connection request, got packet %d", id)
	}
	request := &packet.ConnectionRequest{}
	if err := request.Decode(r); err != nil {
		return nil, fmt.Errorf("api: connection request: %w", err)
	}
	return request, nil
}

func (a *API) write(c *session.Session, pk cpacket.Packet) error {
	data, err := a.protocol.Encode(pk)
	if err != nil {
		return err
	}
	return c.WriteMessage(transport.Message{Channel: packet.Channel, Payload: data})
}

func (a *API) handleKick(_ uuid.UUID, pk *packet.Kick) error {
	s := a.sessions.GetSession(pk.Session)
	if s == nil {
		a.logger.Debug("tried to kick an unknown session", "session", pk.Session)
		return nil
	}
	a.logger.Info("kicked session", "session", pk.Session, "reason", pk.Reason)
	return s.Close()
}

func (a *API) handleListSessions(sender uuid.UUID, _ *packet.ListSessions) error {
	c := a.clients.GetSession(sender)
	if c == nil {
		return nil
	}

	sessions := a.sessions.GetSessions()
	ids := make([]uuid.UUID, 0, len(sessions))
	for _, s := range sessions {
		ids = append(ids, s.ID())
	}
	slices.SortFunc(ids, func(x, y uuid.UUID) int {
		return bytes.Compare(x[:], y[:])
	})
	return a.write(c, &packet.SessionList{Sessions: ids})
}
