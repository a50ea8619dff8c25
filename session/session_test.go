package session

import (
	"context"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/cooldogedev/conduit/channel"
	"github.com/cooldogedev/conduit/transport"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testChannel = channel.MustNew("labymod", "neo")

type fakeConn struct {
	incoming chan transport.Message
	written  []transport.Message

	mu     sync.Mutex
	closed chan struct{}
	once   sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{incoming: make(chan transport.Message, 8), closed: make(chan struct{})}
}

func (c *fakeConn) ReadMessage() (transport.Message, error) {
	select {
	case msg := <-c.incoming:
		return msg, nil
	case <-c.closed:
		return transport.Message{}, io.EOF
	}
}

func (c *fakeConn) WriteMessage(msg transport.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.written = append(c.written, msg)
	return nil
}

func (c *fakeConn) RemoteAddr() net.Addr { return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 19133} }

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func TestRegistry(t *testing.T) {
	registry := NewRegistry()
	id := uuid.New()
	s := NewSession(id, newFakeConn(), registry, nil)

	assert.Equal(t, 1, registry.Len())
	assert.Same(t, s, registry.GetSession(id))
	assert.Nil(t, registry.GetSession(uuid.New()))
	assert.Equal(t, []*Session{s}, registry.GetSessions())

	registry.RemoveSession(s)
	assert.Equal(t, 0, registry.Len())
}

func TestNewSessionReplacesPrevious(t *testing.T) {
	registry := NewRegistry()
	id := uuid.New()
	first := NewSession(id, newFakeConn(), registry, nil)
	second := NewSession(id, newFakeConn(), registry, nil)

	select {
	case <-first.Closed():
	default:
		t.Fatal("replaced session was not closed")
	}
	assert.Same(t, second, registry.GetSession(id))
	assert.Equal(t, 1, registry.Len())
}

func TestSessionClose(t *testing.T) {
	registry := NewRegistry()
	conn := newFakeConn()
	s := NewSession(uuid.New(), conn, registry, nil)
	require.NoError(t, s.WriteMessage(transport.Message{Channel: testChannel, Payload: []byte{1}}))

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.Equal(t, 0, registry.Len())
	assert.ErrorIs(t, s.WriteMessage(transport.Message{Channel: testChannel}), ErrClosed)
	assert.Len(t, conn.written, 1)
	assert.NotNil(t, s.RemoteAddr())
}

func TestServe(t *testing.T) {
	registry := NewRegistry()
	conn := newFakeConn()
	s := NewSession(uuid.New(), conn, registry, nil)

	conn.incoming <- transport.Message{Channel: testChannel, Payload: []byte{1}}
	conn.incoming <- transport.Message{Channel: testChannel, Payload: []byte{2}}

	received := make(chan transport.Message, 2)
	done := make(chan struct{})
	go func() {
		s.Serve(func(got *Session, msg transport.Message) {
			assert.Same(t, s, got)
			received <- msg
		})
		close(done)
	}()

	for _, want := range []byte{1, 2} {
		select {
		case msg := <-received:
			assert.Equal(t, []byte{want}, msg.Payload)
		case <-time.After(time.Second):
			t.Fatal("message not delivered")
		}
	}

	require.NoError(t, conn.Close())
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("serve did not return")
	}
	select {
	case <-s.Closed():
	default:
		t.Fatal("session not closed after serve returned")
	}
	assert.Equal(t, 0, registry.Len())
}

func TestHandshake(t *testing.T) {
	a, b := net.Pipe()
	ca, cb := transport.NewConn(a, transport.ConnOpts{}), transport.NewConn(b, transport.ConnOpts{})
	defer ca.Close()
	defer cb.Close()

	idA, idB := uuid.New(), uuid.New()
	type result struct {
		peer uuid.UUID
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		peer, err := Handshake(context.Background(), cb, idB)
		ch <- result{peer: peer, err: err}
	}()

	peer, err := Handshake(context.Background(), ca, idA)
	require.NoError(t, err)
	assert.Equal(t, idB, peer)

	r := <-ch
	require.NoError(t, r.err)
	assert.Equal(t, idA, r.peer)
}

func TestHandshakeWrongChannel(t *testing.T) {
	conn := newFakeConn()
	conn.incoming <- transport.Message{Channel: testChannel, Payload: make([]byte, 16)}

	_, err := Handshake(context.Background(), conn, uuid.New())
	assert.ErrorIs(t, err, ErrHandshake)
}

func TestHandshakeNilPeer(t *testing.T) {
	conn := newFakeConn()
	conn.incoming <- transport.Message{Channel: HandshakeChannel, Payload: make([]byte, 16)}

	_, err := Handshake(context.Background(), conn, uuid.New())
	assert.ErrorIs(t, err, ErrHandshake)
}

func TestHandshakeSilentPeer(t *testing.T) {
	conn := newFakeConn()
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := Handshake(ctx, conn, uuid.New())
	assert.ErrorIs(t, err, ErrHandshake)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)

	select {
	case <-conn.closed:
	default:
		t.Fatal("connection left open")
	}
}
