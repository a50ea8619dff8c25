package session

import (
	"errors"
	"io"
	"net"

	"github.com/cooldogedev/conduit/transport"
)

// Serve reads messages from the peer and passes each to handle until the
// connection fails or the session is closed, then closes the session.
// Malformed envelopes are logged and skipped.
func (s *Session) Serve(handle func(s *Session, msg transport.Message)) {
	defer s.Close()
	for {
		msg, err := s.conn.ReadMessage()
		if err != nil {
			if errors.Is(err, transport.ErrMalformedEnvelope) {
				s.logger.Debug("skipped malformed message", "err", err)
				continue
			}
			select {
			case <-s.closed:
			default:
				if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
					s.logger.Error("failed to read message", "err", err)
				}
			}
			return
		}
		handle(s, msg)
	}
}
