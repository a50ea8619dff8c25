// Package conduit exchanges typed packets between services over named
// channels. A Service holds one protocol per channel and routes incoming
// messages from its sessions to the protocol registered for their channel.
package conduit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"slices"
	"sync"

	"github.com/cooldogedev/conduit/channel"
	"github.com/cooldogedev/conduit/internal"
	"github.com/cooldogedev/conduit/packet"
	"github.com/cooldogedev/conduit/payload"
	"github.com/cooldogedev/conduit/protocol"
	"github.com/cooldogedev/conduit/session"
	tr "github.com/cooldogedev/conduit/transport"
	"github.com/google/uuid"
	"github.com/scylladb/go-set/strset"
)

// Service owns the protocols of one side of a deployment and the sessions it
// exchanges their packets with.
type Service struct {
	id        uuid.UUID
	side      Side
	transport tr.Transport

	listener tr.Listener
	registry *session.Registry

	mu        sync.RWMutex
	protocols map[channel.Identifier]*protocol.Protocol
	channels  *strset.Set
	allowed   *strset.Set
	listeners []func(p *protocol.Protocol)

	logger *slog.Logger
	opts   Opts
}

// NewService creates a service for the side set in opts. A nil logger discards
// output, nil opts use DefaultOpts and a nil transport dials over TCP.
func NewService(logger *slog.Logger, opts *Opts, transport tr.Transport) *Service {
	if logger == nil {
		logger = internal.NopLogger()
	}

	if opts == nil {
		opts = DefaultOpts()
	}

	if transport == nil {
		transport = tr.NewTCP()
	}

	allowed := strset.New()
	for _, id := range opts.Channels {
		allowed.Add(id.String())
	}
	return &Service{
		id:        uuid.New(),
		side:      opts.Side,
		transport: transport,

		registry: session.NewRegistry(),

		protocols: make(map[channel.Identifier]*protocol.Protocol),
		channels:  strset.New(),
		allowed:   allowed,

		logger: logger.With("side", opts.Side),
		opts:   *opts,
	}
}

// RegisterProtocol registers p for its channel and notifies the register
// listeners.
func (s *Service) RegisterProtocol(p *protocol.Protocol) error {
	id := p.Identifier()
	s.mu.Lock()
	if !s.allowed.IsEmpty() && !s.allowed.Has(id.String()) {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrChannelNotAllowed, id)
	}
	if s.channels.Has(id.String()) {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDuplicateProtocol, id)
	}
	s.protocols[id] = p
	s.channels.Add(id.String())
	listeners := slices.Clone(s.listeners)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(p)
	}
	s.logger.Debug("registered protocol", "channel", id, "packets", p.Len())
	return nil
}

// AddRegisterListener calls fn for every protocol already registered and for
// every protocol registered later.
func (s *Service) AddRegisterListener(fn func(p *protocol.Protocol)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	protocols := s.sortedProtocols()
	s.mu.Unlock()

	for _, p := range protocols {
		fn(p)
	}
}

// Protocol returns the protocol registered for id, or nil.
func (s *Service) Protocol(id channel.Identifier) *protocol.Protocol {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.protocols[id]
}

// Protocols returns the registered protocols ordered by channel.
func (s *Service) Protocols() []*protocol.Protocol {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedProtocols()
}

func (s *Service) sortedProtocols() []*protocol.Protocol {
	names := s.channels.List()
	slices.Sort(names)
	protocols := make([]*protocol.Protocol, 0, len(names))
	for _, name := range names {
		id, _ := channel.Parse(name)
		protocols = append(protocols, s.protocols[id])
	}
	return protocols
}

// Send encodes pk with the protocol registered for id and writes it to the
// session of recipient.
func (s *Service) Send(id channel.Identifier, recipient uuid.UUID, pk packet.Packet) error {
	p := s.Protocol(id)
	if p == nil {
		return fmt.Errorf("%w: %s", ErrUnknownProtocol, id)
	}
	sess := s.registry.GetSession(recipient)
	if sess == nil {
		return fmt.Errorf("%w: %s", ErrUnknownRecipient, recipient)
	}
	data, err := p.Encode(pk)
	if err != nil {
		return err
	}
	return sess.WriteMessage(tr.Message{Channel: id, Payload: data})
}

// Broadcast encodes pk once and writes it to every session. Failed writes are
// joined into the returned error.
func (s *Service) Broadcast(id channel.Identifier, pk packet.Packet) error {
	p := s.Protocol(id)
	if p == nil {
		return fmt.Errorf("%w: %s", ErrUnknownProtocol, id)
	}
	data, err := p.Encode(pk)
	if err != nil {
		return err
	}

	var errs []error
	for _, sess := range s.registry.GetSessions() {
		if err := sess.WriteMessage(tr.Message{Channel: id, Payload: data}); err != nil {
			errs = append(errs, fmt.Errorf("session %s: %w", sess.ID(), err))
		}
	}
	return errors.Join(errs...)
}

// HandleIncoming decodes msg with the protocol registered for its channel and
// dispatches the packet. Messages on channels without a protocol, and packets
// with unknown ids, are ignored and yield a nil packet.
func (s *Service) HandleIncoming(sender uuid.UUID, msg tr.Message) (packet.Packet, error) {
	p := s.Protocol(msg.Channel)
	if p == nil {
		s.logger.Debug("ignored message on unknown channel", "channel", msg.Channel, "sender", sender)
		return nil, nil
	}
	return p.HandleIncomingPayload(sender, payload.NewReader(msg.Payload))
}

// Listen listens on the configured address with the configured transport.
func (s *Service) Listen() error {
	if s.side != SideServer {
		return ErrWrongSide
	}
	listener, err := tr.Listen(s.opts.Transport, s.opts.Addr, s.logger)
	if err != nil {
		s.logger.Error("failed to listen", "err", err)
		return err
	}
	s.UseListener(listener)
	return nil
}

// UseListener makes the service accept sessions from listener, for listeners
// Listen cannot open by name such as QUIC.
func (s *Service) UseListener(listener tr.Listener) {
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()
	s.logger.Info("started listening", "addr", listener.Addr())
}

// Addr returns the address the service listens on, or nil.
func (s *Service) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Accept accepts the next connection, exchanges ids with the peer and starts
// serving the session. A peer that does not complete the exchange before ctx
// ends or Opts.HandshakeTimeout passes is disconnected.
func (s *Service) Accept(ctx context.Context) (*session.Session, error) {
	s.mu.RLock()
	listener := s.listener
	s.mu.RUnlock()
	if listener == nil {
		return nil, ErrNotListening
	}

	rwc, err := listener.Accept(ctx)
	if err != nil {
		return nil, err
	}
	sess, err := s.handshake(ctx, tr.NewConn(rwc, s.opts.connOpts()))
	if err != nil {
		s.logger.Error("failed to accept session", "err", err)
		return nil, err
	}
	s.logger.Debug("accepted session", "session", sess.ID(), "addr", sess.RemoteAddr())
	return sess, nil
}

// Connect dials addr, exchanges ids with the peer and starts serving the
// session.
func (s *Service) Connect(ctx context.Context, addr string) (*session.Session, error) {
	if s.side != SideClient {
		return nil, ErrWrongSide
	}
	rwc, err := s.transport.Dial(ctx, addr)
	if err != nil {
		s.logger.Error("failed to dial", "addr", addr, "err", err)
		return nil, err
	}
	sess, err := s.handshake(ctx, tr.NewConn(rwc, s.opts.connOpts()))
	if err != nil {
		s.logger.Error("failed to connect session", "addr", addr, "err", err)
		return nil, err
	}
	s.logger.Debug("connected session", "session", sess.ID(), "addr", addr)
	return sess, nil
}

// handshake exchanges ids with the peer, giving up after Opts.HandshakeTimeout
// or when ctx ends.
func (s *Service) handshake(ctx context.Context, conn tr.MessageConn) (*session.Session, error) {
	if s.opts.HandshakeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.HandshakeTimeout)
		defer cancel()
	}
	peer, err := session.Handshake(ctx, conn, s.id)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return s.Attach(peer, conn), nil
}

// Attach starts serving conn as the session of the peer id. It is used for
// connections whose peer is already known, such as a player's script channel.
func (s *Service) Attach(id uuid.UUID, conn tr.MessageConn) *session.Session {
	sess := session.NewSession(id, conn, s.registry, s.logger)
	go sess.Serve(s.handleMessage)
	return sess
}

func (s *Service) handleMessage(sess *session.Session, msg tr.Message) {
	if _, err := s.HandleIncoming(sess.ID(), msg); err != nil {
		s.logger.Error("failed to handle message", "session", sess.ID(), "channel", msg.Channel, "err", err)
	}
}

// ID returns the id the service introduces itself with.
func (s *Service) ID() uuid.UUID {
	return s.id
}

// Side ...
func (s *Service) Side() Side {
	return s.side
}

// Opts returns a copy of the options the service was created with.
func (s *Service) Opts() Opts {
	return s.opts
}

// Sessions ...
func (s *Service) Sessions() *session.Registry {
	return s.registry
}

// Transport ...
func (s *Service) Transport() tr.Transport {
	return s.transport
}

// Close stops listening and closes every session.
func (s *Service) Close() error {
	var errs []error
	s.mu.Lock()
	if s.listener != nil {
		errs = append(errs, s.listener.Close())
		s.listener = nil
	}
	s.mu.Unlock()

	for _, sess := range s.registry.GetSessions() {
		errs = append(errs, sess.Close())
	}
	return errors.Join(errs...)
}
