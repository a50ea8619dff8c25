package transport

import (
	"context"
	"log/slog"
	"net"

	"github.com/cooldogedev/conduit/channel"
	"github.com/cooldogedev/conduit/internal"
	"github.com/sandertv/gophertunnel/minecraft"
	"github.com/sandertv/gophertunnel/minecraft/protocol/packet"
)

// PacketConn is the part of a Bedrock connection ScriptConn needs. *minecraft.Conn
// implements it.
type PacketConn interface {
	ReadPacket() (packet.Packet, error)
	WritePacket(pk packet.Packet) error
	RemoteAddr() net.Addr
	Close() error
}

// ScriptConn carries channel messages inside Bedrock script messages, using the
// channel identifier as the script message identifier. Other game packets read
// from the connection are skipped.
type ScriptConn struct {
	conn   PacketConn
	logger *slog.Logger
}

// NewScriptConn wraps conn.
func NewScriptConn(conn PacketConn, logger *slog.Logger) *ScriptConn {
	if logger == nil {
		logger = internal.NopLogger()
	}
	return &ScriptConn{conn: conn, logger: logger}
}

// DialScript connects to the Bedrock server at addr over RakNet, completes the
// spawn sequence and returns the connection as a ScriptConn.
func DialScript(ctx context.Context, dialer minecraft.Dialer, addr string, logger *slog.Logger) (*ScriptConn, error) {
	conn, err := dialer.DialContext(ctx, "raknet", addr)
	if err != nil {
		return nil, err
	}
	if err := conn.DoSpawnContext(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return NewScriptConn(conn, logger), nil
}

// ReadMessage returns the next script message whose identifier is a valid channel identifier.
func (c *ScriptConn) ReadMessage() (Message, error) {
	for {
		pk, err := c.conn.ReadPacket()
		if err != nil {
			return Message{}, err
		}
		msg, ok := pk.(*packet.ScriptMessage)
		if !ok {
			continue
		}
		id, err := channel.Parse(msg.Identifier)
		if err != nil {
			c.logger.Debug("skipped script message", "identifier", msg.Identifier, "err", err)
			continue
		}
		return Message{Channel: id, Payload: msg.Data}, nil
	}
}

// WriteMessage ...
func (c *ScriptConn) WriteMessage(msg Message) error {
	return c.conn.WritePacket(&packet.ScriptMessage{
		Identifier: msg.Channel.String(),
		Data:       msg.Payload,
	})
}

// RemoteAddr ...
func (c *ScriptConn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// Close ...
func (c *ScriptConn) Close() error {
	return c.conn.Close()
}
