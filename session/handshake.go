package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/cooldogedev/conduit/channel"
	"github.com/cooldogedev/conduit/payload"
	"github.com/cooldogedev/conduit/transport"
	"github.com/google/uuid"
)

// HandshakeChannel carries the ids peers introduce themselves with.
var HandshakeChannel = channel.MustNew("conduit", "hello")

// ErrHandshake is returned when the peer does not introduce itself properly.
var ErrHandshake = errors.New("session: handshake failed")

// Handshake sends self to the peer and returns the id the peer sends back.
// Both ends send before they read, so it works on unbuffered connections too.
// If ctx ends before the peer answers, conn is closed and ctx.Err() is returned.
func Handshake(ctx context.Context, conn transport.MessageConn, self uuid.UUID) (uuid.UUID, error) {
	if err := ctx.Err(); err != nil {
		return uuid.Nil, fmt.Errorf("%w: %w", ErrHandshake, err)
	}
	stop := context.AfterFunc(ctx, func() {
		_ = conn.Close()
	})

	peer, err := handshake(conn, self)
	if !stop() {
		return uuid.Nil, fmt.Errorf("%w: %w", ErrHandshake, ctx.Err())
	}
	return peer, err
}

func handshake(conn transport.MessageConn, self uuid.UUID) (uuid.UUID, error) {
	w := payload.NewWriter(16)
	w.WriteUUID(self)
	errs := make(chan error, 1)
	go func() {
		errs <- conn.WriteMessage(transport.Message{Channel: HandshakeChannel, Payload: w.Bytes()})
	}()

	msg, err := conn.ReadMessage()
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %w", ErrHandshake, err)
	}
	if err := <-errs; err != nil {
		return uuid.Nil, fmt.Errorf("%w: %w", ErrHandshake, err)
	}
	if msg.Channel != HandshakeChannel {
		return uuid.Nil, fmt.Errorf("%w: expected %s, got %s", ErrHandshake, HandshakeChannel, msg.Channel)
	}
	peer, err := payload.NewReader(msg.Payload).ReadUUID()
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %w", ErrHandshake, err)
	}
	if peer == uuid.Nil {
		return uuid.Nil, fmt.Errorf("%w: nil peer id", ErrHandshake)
	}
	return peer, nil
}
