package transport

import (
	"context"
	"io"
	"log/slog"
	"net"

	"github.com/cooldogedev/conduit/internal"
	"github.com/xtaci/kcp-go"
)

const (
	kcpDataShards   = 10
	kcpParityShards = 3
)

// KCP implements the Transport interface to establish connections using the KCP protocol.
type KCP struct {
	logger *slog.Logger
}

// NewKCP creates a new KCP transport instance.
func NewKCP(logger *slog.Logger) *KCP {
	if logger == nil {
		logger = internal.NopLogger()
	}
	return &KCP{logger: logger}
}

// Dial ...
func (k *KCP) Dial(ctx context.Context, addr string) (io.ReadWriteCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	conn, err := kcp.DialWithOptions(addr, nil, kcpDataShards, kcpParityShards)
	if err != nil {
		return nil, err
	}
	k.logger.Debug("established connection", "addr", addr)
	return conn, nil
}

// KCPListener accepts KCP sessions.
type KCPListener struct {
	l      *kcp.Listener
	queue  *acceptQueue
	logger *slog.Logger
}

// ListenKCP listens for KCP sessions on addr.
func ListenKCP(addr string, logger *slog.Logger) (*KCPListener, error) {
	if logger == nil {
		logger = internal.NopLogger()
	}
	l, err := kcp.ListenWithOptions(addr, nil, kcpDataShards, kcpParityShards)
	if err != nil {
		return nil, err
	}
	queue := newAcceptQueue(func() (io.ReadWriteCloser, error) {
		conn, err := l.AcceptKCP()
		if err != nil {
			return nil, err
		}
		logger.Debug("accepted session", "addr", conn.RemoteAddr())
		return conn, nil
	})
	return &KCPListener{l: l, queue: queue, logger: logger}, nil
}

// Accept ...
func (l *KCPListener) Accept(ctx context.Context) (io.ReadWriteCloser, error) {
	return l.queue.accept(ctx)
}

// Addr ...
func (l *KCPListener) Addr() net.Addr {
	return l.l.Addr()
}

// Close ...
func (l *KCPListener) Close() error {
	l.queue.close()
	return l.l.Close()
}
