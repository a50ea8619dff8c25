package api

import (
	"context"
	"fmt"
	"sync"

	"github.com/cooldogedev/conduit/api/packet"
	"github.com/cooldogedev/conduit/internal"
	cpacket "github.com/cooldogedev/conduit/packet"
	"github.com/cooldogedev/conduit/payload"
	"github.com/cooldogedev/conduit/protocol"
	"github.com/cooldogedev/conduit/transport"
	"github.com/google/uuid"
)

// Client is an authenticated connection to an API.
type Client struct {
	conn     transport.MessageConn
	protocol *protocol.Protocol
	mu       sync.Mutex
}

// NewClient wraps conn. The connection request has to be sent separately,
// Dial does both.
func NewClient(conn transport.MessageConn) *Client {
	return &Client{
		conn:     conn,
		protocol: packet.NewProtocol(internal.NopLogger()),
	}
}

// ReadPacket reads the next API packet, skipping messages on other channels
// and packets with unknown ids.
func (c *Client) ReadPacket() (cpacket.Packet, error) {
	for {
		msg, err := c.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		if msg.Channel != packet.Channel {
			continue
		}
		pk, err := c.protocol.HandleIncomingPayload(uuid.Nil, payload.NewReader(msg.Payload))
		if err != nil {
			return nil, err
		}
		if pk != nil {
			return pk, nil
		}
	}
}

// WritePacket ...
func (c *Client) WritePacket(pk cpacket.Packet) error {
	data, err := c.protocol.Encode(pk)
	if err != nil {
		return err
	}
	return c.conn.WriteMessage(transport.Message{Channel: packet.Channel, Payload: data})
}

// Kick closes the session of the peer id.
func (c *Client) Kick(id uuid.UUID, reason string) error {
	return c.WritePacket(&packet.Kick{Reason: reason, Session: id})
}

// Sessions returns the ids of the open sessions, sorted.
func (c *Client) Sessions(ctx context.Context) ([]uuid.UUID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.WritePacket(&packet.ListSessions{}); err != nil {
		return nil, err
	}

	type result struct {
		ids []uuid.UUID
		err error
	}
	ch := make(chan result, 1)
	go func() {
		for {
			pk, err := c.ReadPacket()
			if err != nil {
				ch <- result{err: err}
				return
			}
			if list, ok := pk.(*packet.SessionList); ok {
				ch <- result{ids: list.Sessions}
				return
			}
		}
	}()

	select {
	case r := <-ch:
		return r.ids, r.err
	case <-ctx.Done():
		_ = c.Close()
		return nil, fmt.Errorf("api: list sessions: %w", ctx.Err())
	}
}

// Close ...
func (c *Client) Close() error {
	return c.conn.Close()
}
