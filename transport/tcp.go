package transport

import (
	"context"
	"io"
	"net"
)

// TCP implements the Transport interface to establish connections using the TCP protocol.
type TCP struct{}

// NewTCP creates a new TCP transport instance.
func NewTCP() *TCP {
	return &TCP{}
}

// Dial ...
func (t *TCP) Dial(ctx context.Context, addr string) (io.ReadWriteCloser, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	tune(conn)
	return conn, nil
}

// TCPListener accepts TCP connections.
type TCPListener struct {
	l     net.Listener
	queue *acceptQueue
}

// ListenTCP announces on the local TCP address addr.
func ListenTCP(addr string) (*TCPListener, error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	queue := newAcceptQueue(func() (io.ReadWriteCloser, error) {
		conn, err := l.Accept()
		if err != nil {
			return nil, err
		}
		tune(conn)
		return conn, nil
	})
	return &TCPListener{l: l, queue: queue}, nil
}

// Accept ...
func (l *TCPListener) Accept(ctx context.Context) (io.ReadWriteCloser, error) {
	return l.queue.accept(ctx)
}

// Addr ...
func (l *TCPListener) Addr() net.Addr {
	return l.l.Addr()
}

// Close ...
func (l *TCPListener) Close() error {
	l.queue.close()
	return l.l.Close()
}

func tune(conn net.Conn) {
	if tcpConn, ok := conn.(*net.TCPConn); ok {
		_ = tcpConn.SetNoDelay(true)
		_ = tcpConn.SetLinger(0)
		_ = tcpConn.SetReadBuffer(1024 * 1024 * 8)
		_ = tcpConn.SetWriteBuffer(1024 * 1024 * 8)
	}
}
