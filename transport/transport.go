// Package transport moves channel messages between two endpoints. It provides
// stream transports (TCP, QUIC, KCP, Spectral) carrying length-prefixed message
// frames, and a binding onto Bedrock script messages for deployments where the
// protocol rides inside a game connection.
package transport

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"

	"github.com/cooldogedev/conduit/channel"
)

// Transport defines an interface for establishing connections to a remote endpoint.
type Transport interface {
	// Dial connects to the specified address and returns an io.ReadWriteCloser.
	// It returns an error if the connection cannot be established.
	Dial(ctx context.Context, addr string) (io.ReadWriteCloser, error)
}

// Listener accepts stream connections from remote endpoints.
type Listener interface {
	// Accept waits for the next connection. It returns ctx.Err() if ctx is done first.
	Accept(ctx context.Context) (io.ReadWriteCloser, error)
	// Addr returns the address the listener is bound to.
	Addr() net.Addr
	Close() error
}

// Message is a frame addressed to a channel.
type Message struct {
	Channel channel.Identifier
	Payload []byte
}

// MessageConn reads and writes channel messages. Writes may be called from
// multiple goroutines; reads must be issued from one goroutine at a time.
type MessageConn interface {
	ReadMessage() (Message, error)
	WriteMessage(msg Message) error
	RemoteAddr() net.Addr
	Close() error
}

// ByName returns the transport registered under name: "tcp", "quic", "kcp" or "spectral".
func ByName(name string, logger *slog.Logger) (Transport, error) {
	switch name {
	case "", "tcp":
		return NewTCP(), nil
	case "quic":
		return NewQUIC(logger), nil
	case "kcp":
		return NewKCP(logger), nil
	case "spectral":
		return NewSpectral(logger), nil
	default:
		return nil, fmt.Errorf("transport: unknown transport %q", name)
	}
}

// Listen listens on addr using the transport registered under name. QUIC needs
// a TLS certificate and is opened with ListenQUIC instead.
func Listen(name, addr string, logger *slog.Logger) (Listener, error) {
	switch name {
	case "", "tcp":
		return ListenTCP(addr)
	case "kcp":
		return ListenKCP(addr, logger)
	case "spectral":
		return ListenSpectral(addr, logger)
	default:
		return nil, fmt.Errorf("transport: cannot listen on %q by name", name)
	}
}

// acceptQueue runs accept on one goroutine for the lifetime of a listener and
// hands each connection to exactly one Accept call. An Accept whose context
// ends first leaves the next connection queued for the following call.
type acceptQueue struct {
	conns chan io.ReadWriteCloser
	stop  chan struct{}
	done  chan struct{}
	err   error
	once  sync.Once
}

func newAcceptQueue(accept func() (io.ReadWriteCloser, error)) *acceptQueue {
	q := &acceptQueue{
		conns: make(chan io.ReadWriteCloser),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go q.run(accept)
	return q
}

func (q *acceptQueue) run(accept func() (io.ReadWriteCloser, error)) {
	defer close(q.done)
	for {
		conn, err := accept()
		if err != nil {
			select {
			case <-q.stop:
				q.err = net.ErrClosed
			default:
				q.err = err
			}
			return
		}
		select {
		case q.conns <- conn:
		case <-q.stop:
			_ = conn.Close()
			q.err = net.ErrClosed
			return
		}
	}
}

// accept returns the next connection, the error that ended the accept loop,
// or ctx.Err().
func (q *acceptQueue) accept(ctx context.Context) (io.ReadWriteCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	select {
	case conn := <-q.conns:
		return conn, nil
	case <-q.done:
		return nil, q.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// close stops handing out connections. The listener must be closed as well to
// unblock a pending accept.
func (q *acceptQueue) close() {
	q.once.Do(func() { close(q.stop) })
}

// RemoteAddr returns the remote address of rwc if it exposes one.
func RemoteAddr(rwc io.ReadWriteCloser) net.Addr {
	if c, ok := rwc.(interface{ RemoteAddr() net.Addr }); ok {
		return c.RemoteAddr()
	}
	return nil
}
