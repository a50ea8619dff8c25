package packet

import (
	"github.com/cooldogedev/conduit/packet"
	"github.com/cooldogedev/conduit/payload"
	"github.com/google/uuid"
)

// Kick asks the service to close the session of a peer.
type Kick struct {
	Reason  string
	Session uuid.UUID
}

// Tag ...
func (pk *Kick) Tag() packet.Tag {
	return TagKick
}

// Encode ...
func (pk *Kick) Encode(w *payload.Writer) error {
	w.WriteString(pk.Reason)
	w.WriteUUID(pk.Session)
	return nil
}

// Decode ...
func (pk *Kick) Decode(r *payload.Reader) (err error) {
	if pk.Reason, err = r.ReadString(); err != nil {
		return err
	}
	pk.Session, err = r.ReadUUID()
	return err
}
