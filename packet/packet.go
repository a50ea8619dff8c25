// Package packet defines the unit of data exchanged on a channel and the
// handlers invoked when one arrives.
package packet

import (
	"fmt"

	"github.com/cooldogedev/conduit/payload"
	"github.com/google/uuid"
)

// Tag is the stable name of a packet variant, unique within a protocol. Tags
// rather than Go types key the registry, so a variant keeps its identity across
// refactors of the struct that implements it.
type Tag string

// Packet represents a self-describing unit of data sent over a channel. Encode
// and Decode must read and write the same fields in the same order; a field that
// Encode omits cannot be recovered by Decode.
type Packet interface {
	// Tag returns the variant tag of the packet.
	Tag() Tag
	// Encode writes the fields of the packet to w.
	Encode(w *payload.Writer) error
	// Decode reads the fields of the packet from r into the packet.
	Decode(r *payload.Reader) error
}

// Handler is invoked with every packet of the variant it was registered for.
// sender is the peer the packet arrived from, or uuid.Nil for packets dispatched
// locally. Handlers run on the dispatching goroutine and should hand long work off.
type Handler interface {
	Handle(sender uuid.UUID, pk Packet) error
}

type funcHandler struct {
	fn func(sender uuid.UUID, pk Packet) error
}

func (h *funcHandler) Handle(sender uuid.UUID, pk Packet) error {
	return h.fn(sender, pk)
}

// HandlerFunc wraps fn in a Handler. Every call returns a distinct handler, so
// registering the result twice is detected as a duplicate while two wrappers of
// the same function are not.
func HandlerFunc(fn func(sender uuid.UUID, pk Packet) error) Handler {
	return &funcHandler{fn: fn}
}

// HandlerFor wraps a handler for a concrete packet type T. Packets of any other
// type passed to the result are rejected with an error.
func HandlerFor[T Packet](fn func(sender uuid.UUID, pk T) error) Handler {
	return HandlerFunc(func(sender uuid.UUID, pk Packet) error {
		v, ok := pk.(T)
		if !ok {
			return fmt.Errorf("packet: handler for %T received %T", *new(T), pk)
		}
		return fn(sender, v)
	})
}
