package packet

import (
	"github.com/cooldogedev/conduit/packet"
	"github.com/cooldogedev/conduit/payload"
	"github.com/google/uuid"
)

// ListSessions requests a SessionList.
type ListSessions struct{}

// Tag ...
func (*ListSessions) Tag() packet.Tag {
	return TagListSessions
}

// Encode ...
func (*ListSessions) Encode(*payload.Writer) error {
	return nil
}

// Decode ...
func (*ListSessions) Decode(*payload.Reader) error {
	return nil
}

// SessionList holds the ids of the open sessions.
type SessionList struct {
	Sessions []uuid.UUID
}

// Tag ...
func (pk *SessionList) Tag() packet.Tag {
	return TagSessionList
}

// Encode ...
func (pk *SessionList) Encode(w *payload.Writer) error {
	payload.WriteCollection(w, pk.Sessions, (*payload.Writer).WriteUUID)
	return nil
}

// Decode ...
func (pk *SessionList) Decode(r *payload.Reader) (err error) {
	pk.Sessions, err = payload.ReadList(r, (*payload.Reader).ReadUUID)
	return err
}
