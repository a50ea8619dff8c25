package api

import (
	"context"
	"errors"
	"fmt"

	"github.com/cooldogedev/conduit/api/packet"
	"github.com/cooldogedev/conduit/transport"
)

var (
	ErrConnectionFailed = errors.New("api: connection failed")
	ErrUnauthorized     = errors.New("api: connection unauthorized")
)

// Dial establishes a TCP connection to the API at addr and authenticates with
// token. The client is closed if authentication fails.
func Dial(ctx context.Context, addr, token string) (c *Client, err error) {
	rwc, err := transport.NewTCP().Dial(ctx, addr)
	if err != nil {
		return nil, err
	}

	c = NewClient(transport.NewConn(rwc, transport.ConnOpts{}))
	defer func() {
		if err != nil {
			_ = c.Close()
		}
	}()

	if err := c.WritePacket(&packet.ConnectionRequest{Token: token}); err != nil {
		return nil, err
	}

	pk, err := c.ReadPacket()
	if err != nil {
		return nil, err
	}

	connectionResponse, ok := pk.(*packet.ConnectionResponse)
	if !ok {
		return nil, fmt.Errorf("api: expected connection response, got %T", pk)
	}

	switch connectionResponse.Response {
	case packet.ResponseSuccess:
		return c, nil
	case packet.ResponseFail:
		return nil, ErrConnectionFailed
	case packet.ResponseUnauthorized:
		return nil, ErrUnauthorized
	default:
		return nil, fmt.Errorf("api: received an unknown response code %d", connectionResponse.Response)
	}
}
