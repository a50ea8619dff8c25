package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/cooldogedev/conduit/internal"
	"github.com/quic-go/quic-go"
	"github.com/quic-go/quic-go/qlog"
)

// quicProtocol is the ALPN protocol negotiated by both ends.
const quicProtocol = "conduit"

// QUIC implements the Transport interface to establish connections using the QUIC protocol.
// It maintains a single connection per address and opens a stream per Dial, which keeps
// dialing cheap when many sessions are routed to the same endpoint.
type QUIC struct {
	// TLSConfig is used for new connections. When nil, a config that accepts any
	// certificate is used.
	TLSConfig *tls.Config

	connections map[string]quic.Connection
	logger      *slog.Logger
	mu          sync.Mutex
}

// NewQUIC creates a new QUIC transport instance.
func NewQUIC(logger *slog.Logger) *QUIC {
	if logger == nil {
		logger = internal.NopLogger()
	}
	return &QUIC{
		connections: make(map[string]quic.Connection),
		logger:      logger,
	}
}

// Dial ...
func (q *QUIC) Dial(ctx context.Context, addr string) (io.ReadWriteCloser, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if conn, ok := q.connections[addr]; ok {
		stream, err := conn.OpenStreamSync(ctx)
		if err != nil {
			_ = conn.CloseWithError(0, "failed to open stream")
			return nil, err
		}
		return &quicStream{Stream: stream, conn: conn}, nil
	}

	tlsConfig := q.TLSConfig
	if tlsConfig == nil {
		tlsConfig = &tls.Config{
			InsecureSkipVerify: true,
			NextProtos:         []string{quicProtocol},
		}
	}
	conn, err := quic.DialAddr(ctx, addr, tlsConfig, quicConfig())
	if err != nil {
		return nil, err
	}

	q.connections[addr] = conn
	q.logger.Debug("established connection", "addr", addr)
	go func() {
		<-conn.Context().Done()
		q.mu.Lock()
		delete(q.connections, addr)
		q.mu.Unlock()
		if err := context.Cause(conn.Context()); err != nil && !errors.Is(err, context.Canceled) {
			q.logger.Error("closed connection", "addr", addr, "err", err)
		} else {
			q.logger.Debug("closed connection", "addr", addr)
		}
	}()

	stream, err := conn.OpenStreamSync(ctx)
	if err != nil {
		return nil, err
	}
	return &quicStream{Stream: stream, conn: conn}, nil
}

// QUICListener accepts QUIC connections and hands out one stream per peer stream.
type QUICListener struct {
	l       *quic.Listener
	logger  *slog.Logger
	streams chan io.ReadWriteCloser
	closed  chan struct{}
	once    sync.Once
}

// ListenQUIC listens for QUIC connections on addr. tlsConfig must carry a certificate;
// the conduit ALPN protocol is added to it when missing.
func ListenQUIC(addr string, tlsConfig *tls.Config, logger *slog.Logger) (*QUICListener, error) {
	if logger == nil {
		logger = internal.NopLogger()
	}
	if tlsConfig == nil || (len(tlsConfig.Certificates) == 0 && tlsConfig.GetCertificate == nil) {
		return nil, errors.New("transport: quic listener requires a tls certificate")
	}
	tlsConfig = tlsConfig.Clone()
	if len(tlsConfig.NextProtos) == 0 {
		tlsConfig.NextProtos = []string{quicProtocol}
	}
	l, err := quic.ListenAddr(addr, tlsConfig, quicConfig())
	if err != nil {
		return nil, err
	}
	ql := &QUICListener{
		l:       l,
		logger:  logger,
		streams: make(chan io.ReadWriteCloser),
		closed:  make(chan struct{}),
	}
	go ql.acceptConnections()
	return ql, nil
}

func (l *QUICListener) acceptConnections() {
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
		l.logger.Debug("accepted connection", "addr", conn.RemoteAddr())
		go l.acceptStreams(conn)
	}
}

func (l *QUICListener) acceptStreams(conn quic.Connection) {
	for {
		stream, err := conn.AcceptStream(conn.Context())
		if err != nil {
			return
		}
		select {
		case l.streams <- &quicStream{Stream: stream, conn: conn}:
		case <-l.closed:
			stream.CancelRead(0)
			_ = stream.Close()
			return
		}
	}
}

// Accept ...
func (l *QUICListener) Accept(ctx context.Context) (io.ReadWriteCloser, error) {
	select {
	case stream := <-l.streams:
		return stream, nil
	case <-l.closed:
		return nil, net.ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Addr ...
func (l *QUICListener) Addr() net.Addr {
	return l.l.Addr()
}

// Close ...
func (l *QUICListener) Close() (err error) {
	l.once.Do(func() {
		close(l.closed)
		err = l.l.Close()
	})
	return
}

type quicStream struct {
	quic.Stream
	conn quic.Connection
}

// RemoteAddr ...
func (s *quicStream) RemoteAddr() net.Addr {
	return s.conn.RemoteAddr()
}

func quicConfig() *quic.Config {
	return &quic.Config{
		MaxIdleTimeout:                 time.Second * 10,
		InitialStreamReceiveWindow:     1024 * 1024 * 10,
		InitialConnectionReceiveWindow: 1024 * 1024 * 10,
		KeepAlivePeriod:                time.Second * 5,
		InitialPacketSize:              1350,
		Tracer:                         qlog.DefaultConnectionTracer,
	}
}
