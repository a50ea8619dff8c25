package transport

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"

	"github.com/cooldogedev/conduit/internal"
	"github.com/cooldogedev/spectral"
)

// Spectral dials over the spectral reliable-UDP protocol. Sessions to the same
// address share one connection, each riding its own stream.
type Spectral struct {
	connections map[string]spectral.Connection
	logger      *slog.Logger
	mu          sync.Mutex
}

// NewSpectral ...
func NewSpectral(logger *slog.Logger) *Spectral {
	if logger == nil {
		logger = internal.NopLogger()
	}
	return &Spectral{
		connections: make(map[string]spectral.Connection),
		logger:      logger,
	}
}

// Dial opens a new stream to addr, connecting first if no connection to addr is open.
func (s *Spectral) Dial(ctx context.Context, addr string) (io.ReadWriteCloser, error) {
	conn, err := s.connection(ctx, addr)
	if err != nil {
		return nil, err
	}
	stream, err := conn.OpenStream(ctx)
	if err != nil {
		_ = conn.CloseWithError(0, "failed to open stream")
		return nil, err
	}
	remote, _ := net.ResolveUDPAddr("udp", addr)
	return &spectralStream{Stream: stream, remote: remote}, nil
}

func (s *Spectral) connection(ctx context.Context, addr string) (spectral.Connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if conn, ok := s.connections[addr]; ok {
		return conn, nil
	}

	conn, err := spectral.Dial(ctx, addr)
	if err != nil {
		return nil, err
	}
	s.connections[addr] = conn
	s.logger.Debug("established connection", "addr", addr)
	go s.forget(addr, conn)
	return conn, nil
}

func (s *Spectral) forget(addr string, conn spectral.Connection) {
	<-conn.Context().Done()
	s.mu.Lock()
	if s.connections[addr] == conn {
		delete(s.connections, addr)
	}
	s.mu.Unlock()
	if err := context.Cause(conn.Context()); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("closed connection", "addr", addr, "err", err)
	} else {
		s.logger.Debug("closed connection", "addr", addr)
	}
}

// SpectralListener accepts spectral connections and hands out every stream
// their peers open.
type SpectralListener struct {
	l       *spectral.Listener
	addr    net.Addr
	logger  *slog.Logger
	streams chan io.ReadWriteCloser
	closed  chan struct{}
	once    sync.Once
}

// ListenSpectral listens for spectral connections on the UDP address addr.
func ListenSpectral(addr string, logger *slog.Logger) (*SpectralListener, error) {
	if logger == nil {
		logger = internal.NopLogger()
	}
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}
	l, err := spectral.Listen(addr)
	if err != nil {
		return nil, err
	}
	sl := &SpectralListener{
		l:       l,
		addr:    udpAddr,
		logger:  logger,
		streams: make(chan io.ReadWriteCloser),
		closed:  make(chan struct{}),
	}
	go sl.acceptConnections()
	return sl, nil
}

func (l *SpectralListener) acceptConnections() {
	for {
		conn, err := l.l.Accept(context.Background())
		if err != nil {
			select {
			case <-l.closed:
			default:
				l.logger.Error("failed to accept connection", "err", err)
			}
			return
		}
		var remote net.Addr
		if c, ok := conn.(interface{ RemoteAddr() net.Addr }); ok {
			remote = c.RemoteAddr()
		}
		l.logger.Debug("accepted connection", "addr", remote)
		go l.acceptStreams(conn, remote)
	}
}

func (l *SpectralListener) acceptStreams(conn spectral.Connection, remote net.Addr) {
	for {
		stream, err := conn.AcceptStream(conn.Context())
		if err != nil {
			return
		}
		select {
		case l.streams <- &spectralStream{Stream: stream, remote: remote}:
		case <-l.closed:
			_ = stream.Close()
			return
		}
	}
}

// Accept ...
func (l *SpectralListener) Accept(ctx context.Context) (io.ReadWriteCloser, error) {
	select {
	case stream := <-l.streams:
		return stream, nil
	case <-l.closed:
		return nil, net.ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Addr returns the address the listener was asked to listen on.
func (l *SpectralListener) Addr() net.Addr {
	return l.addr
}

// Close ...
func (l *SpectralListener) Close() (err error) {
	l.once.Do(func() {
		close(l.closed)
		err = l.l.Close()
	})
	return
}

type spectralStream struct {
	*spectral.Stream
	remote net.Addr
}

// RemoteAddr ...
func (s *spectralStream) RemoteAddr() net.Addr {
	return s.remote
}
