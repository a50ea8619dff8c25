// Package protocol binds numeric packet ids to packet variants on a channel and
// dispatches decoded packets to their handlers.
//
// A Protocol is populated during startup with RegisterPacket and
// RegisterHandler and then serves HandlePacket, HandleIncomingPayload and Encode
// calls, possibly from many goroutines at once. Registration after that point
// is safe but races with in-flight dispatch in the obvious way: a packet being
// dispatched sees the handlers registered when its dispatch started.
package protocol

import (
	"fmt"
	"log/slog"
	"math"
	"reflect"
	"slices"
	"sync"

	"github.com/cooldogedev/conduit/channel"
	"github.com/cooldogedev/conduit/internal"
	"github.com/cooldogedev/conduit/packet"
	"github.com/cooldogedev/conduit/payload"
	"github.com/google/uuid"
)

// UnknownID is returned by PacketID for a tag that was never registered.
const UnknownID int32 = math.MinInt32

// Protocol is the set of packets exchanged on one channel.
type Protocol struct {
	identifier channel.Identifier
	logger     *slog.Logger

	mu    sync.RWMutex
	byID  map[int32]*descriptor
	byTag map[packet.Tag]*descriptor
}

type descriptor struct {
	id       int32
	tag      packet.Tag
	factory  func() packet.Packet
	handlers []packet.Handler
}

// Option configures a Protocol.
type Option func(p *Protocol)

// WithLogger sets the logger handler failures are reported to. Protocols discard
// log output by default.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Protocol) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// New creates an empty protocol for identifier. It panics if identifier is the
// zero value, which is always a bug in the protocol definition.
func New(identifier channel.Identifier, opts ...Option) *Protocol {
	if identifier.IsZero() {
		panic("protocol: identifier cannot be zero")
	}
	p := &Protocol{
		identifier: identifier,
		logger:     internal.NopLogger(),
		byID:       make(map[int32]*descriptor),
		byTag:      make(map[packet.Tag]*descriptor),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("channel", identifier.String())
	return p
}

// Identifier returns the channel the protocol is bound to.
func (p *Protocol) Identifier() channel.Identifier {
	return p.identifier
}

// RegisterPacket binds id to the variant tag. factory must return a new, empty
// packet of that variant every time it is called; it is used to decode incoming
// packets. Any handlers passed are attached in order.
func (p *Protocol) RegisterPacket(id int32, tag packet.Tag, factory func() packet.Packet, handlers ...packet.Handler) error {
	if tag == "" {
		return ErrTagRequired
	}
	if factory == nil {
		return fmt.Errorf("%w: %s", ErrFactoryRequired, tag)
	}
	if pk := factory(); pk == nil || pk.Tag() != tag {
		return fmt.Errorf("%w: %s", ErrFactoryMismatch, tag)
	}
	d := &descriptor{id: id, tag: tag, factory: factory}
	for _, h := range handlers {
		if err := d.addHandler(h); err != nil {
			return err
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if existing, ok := p.byID[id]; ok {
		return fmt.Errorf("%w: id %d is bound to %s in %s", ErrDuplicateID, id, existing.tag, p.identifier)
	}
	if existing, ok := p.byTag[tag]; ok {
		return fmt.Errorf("%w: %s is bound to id %d in %s", ErrDuplicateTag, tag, existing.id, p.identifier)
	}
	p.byID[id] = d
	p.byTag[tag] = d
	return nil
}

// Packet returns the variant registered under id.
func (p *Protocol) Packet(id int32) (packet.Tag, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	d, ok := p.byID[id]
	if !ok {
		return "", false
	}
	return d.tag, true
}

// PacketID returns the id the variant tag is registered under, or UnknownID and
// false if it is not registered.
func (p *Protocol) PacketID(tag packet.Tag) (int32, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	d, ok := p.byTag[tag]
	if !ok {
		return UnknownID, false
	}
	return d.id, true
}

// RegisterHandler appends h to the handlers of the variant tag. Handlers are
// invoked in the order they were registered.
func (p *Protocol) RegisterHandler(tag packet.Tag, h packet.Handler) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	d, ok := p.byTag[tag]
	if !ok {
		return fmt.Errorf("%w: %s in %s", ErrUnregisteredPacket, tag, p.identifier)
	}
	return d.addHandler(h)
}

// HandlePacket invokes every handler registered for the variant of pk. It only
// fails if the variant is not registered; failing handlers are logged and do
// not stop delivery to the handlers after them.
func (p *Protocol) HandlePacket(sender uuid.UUID, pk packet.Packet) error {
	if pk == nil {
		return fmt.Errorf("%w: nil packet", ErrUnregisteredPacket)
	}
	p.mu.RLock()
	d, ok := p.byTag[pk.Tag()]
	var handlers []packet.Handler
	if ok {
		handlers = slices.Clone(d.handlers)
	}
	p.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s in %s", ErrUnregisteredPacket, pk.Tag(), p.identifier)
	}
	p.dispatch(sender, handlers, pk)
	return nil
}

// HandleIncomingPayload decodes one frame from r and dispatches it. Frames with
// an id that is not registered are dropped and (nil, nil) is returned, so peers
// speaking a newer revision of the protocol do not break older ones. A frame
// that fails to decode is returned as an error wrapping ErrMalformedPacket and
// reaches no handler.
func (p *Protocol) HandleIncomingPayload(sender uuid.UUID, r *payload.Reader) (packet.Packet, error) {
	id, err := r.ReadVarInt()
	if err != nil {
		return nil, fmt.Errorf("%w: packet id: %w", ErrMalformedPacket, err)
	}

	p.mu.RLock()
	d, ok := p.byID[id]
	var (
		factory  func() packet.Packet
		handlers []packet.Handler
	)
	if ok {
		factory = d.factory
		handlers = slices.Clone(d.handlers)
	}
	p.mu.RUnlock()
	if !ok {
		p.logger.Debug("dropped packet with unknown id", "id", id, "sender", sender)
		return nil, nil
	}

	pk := factory()
	if err := pk.Decode(r); err != nil {
		return nil, fmt.Errorf("%w: %s (id %d): %w", ErrMalformedPacket, pk.Tag(), id, err)
	}
	if r.Len() > 0 {
		p.logger.Debug("ignored trailing bytes after packet", "packet", pk.Tag(), "bytes", r.Len())
	}
	p.dispatch(sender, handlers, pk)
	return pk, nil
}

// Encode returns the frame for pk: its id as a varint followed by its fields.
func (p *Protocol) Encode(pk packet.Packet) ([]byte, error) {
	w := payload.NewWriter(64)
	if err := p.EncodeTo(w, pk); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// EncodeTo is like Encode but appends the frame to w. On error the contents of
// w must be discarded.
func (p *Protocol) EncodeTo(w *payload.Writer, pk packet.Packet) error {
	if pk == nil {
		return fmt.Errorf("%w: nil packet", ErrUnregisteredPacket)
	}
	id, ok := p.PacketID(pk.Tag())
	if !ok {
		return fmt.Errorf("%w: %s in %s", ErrUnregisteredPacket, pk.Tag(), p.identifier)
	}
	w.WriteVarInt(id)
	if err := pk.Encode(w); err != nil {
		return fmt.Errorf("encode %s: %w", pk.Tag(), err)
	}
	if err := w.Err(); err != nil {
		return fmt.Errorf("encode %s: %w", pk.Tag(), err)
	}
	return nil
}

// Len returns the number of registered packets.
func (p *Protocol) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.byID)
}

// Tags returns the registered variants ordered by id.
func (p *Protocol) Tags() []packet.Tag {
	p.mu.RLock()
	defer p.mu.RUnlock()
	ids := make([]int32, 0, len(p.byID))
	for id := range p.byID {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	tags := make([]packet.Tag, 0, len(ids))
	for _, id := range ids {
		tags = append(tags, p.byID[id].tag)
	}
	return tags
}

func (p *Protocol) dispatch(sender uuid.UUID, handlers []packet.Handler, pk packet.Packet) {
	for _, h := range handlers {
		p.invoke(sender, h, pk)
	}
}

// invoke runs a single handler, containing any failure to that handler.
func (p *Protocol) invoke(sender uuid.UUID, h packet.Handler, pk packet.Packet) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("handler panicked", "packet", pk.Tag(), "handler", fmt.Sprintf("%T", h), "sender", sender, "panic", r)
		}
	}()
	if err := h.Handle(sender, pk); err != nil {
		p.logger.Error("handler failed", "packet", pk.Tag(), "handler", fmt.Sprintf("%T", h), "sender", sender, "err", err)
	}
}

func (d *descriptor) addHandler(h packet.Handler) error {
	if h == nil {
		return fmt.Errorf("%w: %s", ErrHandlerRequired, d.tag)
	}
	for _, existing := range d.handlers {
		if sameHandler(existing, h) {
			return fmt.Errorf("%w: %s already has %T", ErrDuplicateHandler, d.tag, h)
		}
	}
	d.handlers = append(d.handlers, h)
	return nil
}

// sameHandler compares handlers by identity. Handlers of uncomparable dynamic
// types, such as bare funcs, are never considered equal.
func sameHandler(a, b packet.Handler) bool {
	ta := reflect.TypeOf(a)
	if ta != reflect.TypeOf(b) || !ta.Comparable() {
		return false
	}
	return a == b
}
