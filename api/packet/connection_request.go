package packet

import (
	"github.com/cooldogedev/conduit/packet"
	"github.com/cooldogedev/conduit/payload"
)

type ConnectionRequest struct {
	Token string
}

// Tag ...
func (pk *ConnectionRequest) Tag() packet.Tag {
	return TagConnectionRequest
}

// Encode ...
func (pk *ConnectionRequest) Encode(w *payload.Writer) error {
	w.WriteString(pk.Token)
	return nil
}

// Decode ...
func (pk *ConnectionRequest) Decode(r *payload.Reader) (err error) {
	pk.Token, err = r.ReadString()
	return err
}
