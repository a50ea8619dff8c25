package packet

import (
	"github.com/cooldogedev/conduit/packet"
	"github.com/cooldogedev/conduit/payload"
)

const (
	ResponseSuccess = iota
	ResponseUnauthorized
	ResponseFail
)

type ConnectionResponse struct {
	Response uint8
}

// Tag ...
func (pk *ConnectionResponse) Tag() packet.Tag {
	return TagConnectionResponse
}

// Encode ...
func (pk *ConnectionResponse) Encode(w *payload.Writer) error {
	w.WriteUint8(pk.Response)
	return nil
}

// Decode ...
func (pk *ConnectionResponse) Decode(r *payload.Reader) (err error) {
	pk.Response, err = r.ReadUint8()
	return err
}
