// Package session tracks the peers a service exchanges messages with.
package session

import (
	"errors"
	"log/slog"
	"net"
	"sync"

	"github.com/cooldogedev/conduit/internal"
	"github.com/cooldogedev/conduit/transport"
	"github.com/google/uuid"
)

// ErrClosed is returned when writing to a closed session.
var ErrClosed = errors.New("session: closed")

// Session is a message connection to one identified peer.
type Session struct {
	id   uuid.UUID
	conn transport.MessageConn

	logger   *slog.Logger
	registry *Registry

	closed chan struct{}
	once   sync.Once
}

// NewSession creates a session for the peer id over conn and adds it to
// registry. A previous session with the same id is closed.
func NewSession(id uuid.UUID, conn transport.MessageConn, registry *Registry, logger *slog.Logger) *Session {
	if logger == nil {
		logger = internal.NopLogger()
	}
	s := &Session{
		id:       id,
		conn:     conn,
		logger:   logger.With("session", id),
		registry: registry,
		closed:   make(chan struct{}),
	}
	if replaced := registry.AddSession(s); replaced != nil {
		replaced.logger.Debug("replaced by a new session")
		_ = replaced.Close()
	}
	return s
}

// ID returns the id of the peer.
func (s *Session) ID() uuid.UUID {
	return s.id
}

// Conn ...
func (s *Session) Conn() transport.MessageConn {
	return s.conn
}

// RemoteAddr ...
func (s *Session) RemoteAddr() net.Addr {
	return s.conn.RemoteAddr()
}

// WriteMessage writes msg to the peer.
func (s *Session) WriteMessage(msg transport.Message) error {
	select {
	case <-s.closed:
		return ErrClosed
	default:
		return s.conn.WriteMessage(msg)
	}
}

// Closed returns a channel that is closed once the session is.
func (s *Session) Closed() <-chan struct{} {
	return s.closed
}

// Close closes the connection and removes the session from its registry.
func (s *Session) Close() (err error) {
	s.once.Do(func() {
		close(s.closed)
		err = s.conn.Close()
		s.registry.RemoveSession(s)
		s.logger.Debug("closed session")
	})
	return
}
