package protocol

import (
	"errors"
	"strings"
	"testing"

	"github.com/cooldogedev/conduit/channel"
	"github.com/cooldogedev/conduit/packet"
	"github.com/cooldogedev/conduit/payload"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testChannel = channel.MustNew("labymod", "neo")

func newPermission() packet.Packet { return &packet.Permission{} }

type ping struct {
	Nonce int64
}

func (*ping) Tag() packet.Tag { return "test:ping" }

func (pk *ping) Encode(w *payload.Writer) error {
	w.WriteLong(pk.Nonce)
	return nil
}

func (pk *ping) Decode(r *payload.Reader) (err error) {
	pk.Nonce, err = r.ReadLong()
	return err
}

type recorder struct {
	name  string
	calls *[]string
	err   error
}

func (h *recorder) Handle(_ uuid.UUID, _ packet.Packet) error {
	*h.calls = append(*h.calls, h.name)
	return h.err
}

func TestRegisterPacketLookups(t *testing.T) {
	p := New(testChannel)
	require.NoError(t, p.RegisterPacket(5, packet.TagPermission, newPermission))

	id, ok := p.PacketID(packet.TagPermission)
	require.True(t, ok)
	assert.Equal(t, int32(5), id)

	tag, ok := p.Packet(5)
	require.True(t, ok)
	assert.Equal(t, packet.TagPermission, tag)

	_, ok = p.Packet(6)
	assert.False(t, ok)

	id, ok = p.PacketID("test:missing")
	assert.False(t, ok)
	assert.Equal(t, UnknownID, id)
	assert.Equal(t, testChannel, p.Identifier())
}

func TestRegisterPacketConflicts(t *testing.T) {
	p := New(testChannel)
	require.NoError(t, p.RegisterPacket(1, packet.TagPermission, newPermission))

	err := p.RegisterPacket(1, "test:ping", func() packet.Packet { return &ping{} })
	assert.ErrorIs(t, err, ErrDuplicateID)

	err = p.RegisterPacket(2, packet.TagPermission, newPermission)
	assert.ErrorIs(t, err, ErrDuplicateTag)

	assert.Equal(t, 1, p.Len())
}

func TestRegisterPacketPreconditions(t *testing.T) {
	p := New(testChannel)
	assert.ErrorIs(t, p.RegisterPacket(1, "", newPermission), ErrTagRequired)
	assert.ErrorIs(t, p.RegisterPacket(1, packet.TagPermission, nil), ErrFactoryRequired)
	assert.ErrorIs(t, p.RegisterPacket(1, "test:ping", newPermission), ErrFactoryMismatch)
	assert.ErrorIs(t, p.RegisterPacket(1, packet.TagPermission, newPermission, nil), ErrHandlerRequired)
	assert.Zero(t, p.Len())

	assert.Panics(t, func() { New(channel.Identifier{}) })
}

func TestHandlersRunInOrder(t *testing.T) {
	var calls []string
	h1 := &recorder{name: "h1", calls: &calls}
	h2 := &recorder{name: "h2", calls: &calls}

	p := New(testChannel)
	require.NoError(t, p.RegisterPacket(1, packet.TagPermission, newPermission, h1))
	require.NoError(t, p.RegisterHandler(packet.TagPermission, h2))

	require.NoError(t, p.HandlePacket(uuid.Nil, packet.NewPermission()))
	assert.Equal(t, []string{"h1", "h2"}, calls)
}

func TestRegisterHandlerDuplicate(t *testing.T) {
	var calls []string
	h := &recorder{name: "h", calls: &calls}

	p := New(testChannel)
	require.NoError(t, p.RegisterPacket(1, packet.TagPermission, newPermission))
	require.NoError(t, p.RegisterHandler(packet.TagPermission, h))
	assert.ErrorIs(t, p.RegisterHandler(packet.TagPermission, h), ErrDuplicateHandler)

	// A different handler value of the same type is accepted.
	require.NoError(t, p.RegisterHandler(packet.TagPermission, &recorder{name: "h", calls: &calls}))

	fn := packet.HandlerFunc(func(uuid.UUID, packet.Packet) error { return nil })
	require.NoError(t, p.RegisterHandler(packet.TagPermission, fn))
	assert.ErrorIs(t, p.RegisterHandler(packet.TagPermission, fn), ErrDuplicateHandler)

	assert.ErrorIs(t, p.RegisterPacket(2, "test:ping", func() packet.Packet { return &ping{} }, h, h), ErrDuplicateHandler)
}

func TestRegisterHandlerUnregistered(t *testing.T) {
	var calls []string
	p := New(testChannel)
	err := p.RegisterHandler(packet.TagPermission, &recorder{calls: &calls})
	assert.ErrorIs(t, err, ErrUnregisteredPacket)
	assert.ErrorIs(t, p.RegisterHandler(packet.TagPermission, nil), ErrUnregisteredPacket)
}

func TestHandlePacketUnregistered(t *testing.T) {
	p := New(testChannel)
	assert.ErrorIs(t, p.HandlePacket(uuid.Nil, packet.NewPermission()), ErrUnregisteredPacket)
	assert.ErrorIs(t, p.HandlePacket(uuid.Nil, nil), ErrUnregisteredPacket)
}

func TestHandlerFailureIsIsolated(t *testing.T) {
	var calls []string
	failing := &recorder{name: "failing", calls: &calls, err: errors.New("boom")}
	panicking := packet.HandlerFunc(func(uuid.UUID, packet.Packet) error {
		calls = append(calls, "panicking")
		panic("handler bug")
	})
	last := &recorder{name: "last", calls: &calls}

	p := New(testChannel)
	require.NoError(t, p.RegisterPacket(1, packet.TagPermission, newPermission, failing, panicking, last))

	require.NoError(t, p.HandlePacket(uuid.Nil, packet.NewPermission()))
	assert.Equal(t, []string{"failing", "panicking", "last"}, calls)
}

func TestHandleIncomingPayloadUnknownID(t *testing.T) {
	var calls []string
	p := New(testChannel)
	require.NoError(t, p.RegisterPacket(1, packet.TagPermission, newPermission, &recorder{name: "h", calls: &calls}))

	w := &payload.Writer{}
	w.WriteVarInt(42)
	w.WriteString("whatever follows")

	pk, err := p.HandleIncomingPayload(uuid.New(), payload.NewReader(w.Bytes()))
	assert.NoError(t, err)
	assert.Nil(t, pk)
	assert.Empty(t, calls)
}

func TestHandleIncomingPayloadMalformed(t *testing.T) {
	var calls []string
	p := New(testChannel)
	require.NoError(t, p.RegisterPacket(1, packet.TagPermission, newPermission, &recorder{name: "h", calls: &calls}))

	// Empty frame, no id at all.
	_, err := p.HandleIncomingPayload(uuid.Nil, payload.NewReader(nil))
	assert.ErrorIs(t, err, ErrMalformedPacket)
	assert.ErrorIs(t, err, payload.ErrUnexpectedEOF)

	// Known id, list declares two permissions but carries one.
	frame, err := p.Encode(packet.NewPermission(packet.Allow("fly"), packet.Deny("build")))
	require.NoError(t, err)
	_, err = p.HandleIncomingPayload(uuid.Nil, payload.NewReader(frame[:6]))
	assert.ErrorIs(t, err, ErrMalformedPacket)
	assert.ErrorIs(t, err, payload.ErrUnexpectedEOF)

	assert.Empty(t, calls)
}

func TestEndToEndPermission(t *testing.T) {
	sender := uuid.New()
	var received *packet.Permission
	p := New(testChannel)
	require.NoError(t, p.RegisterPacket(1, packet.TagPermission, newPermission,
		packet.HandlerFor(func(s uuid.UUID, pk *packet.Permission) error {
			assert.Equal(t, sender, s)
			received = pk
			return nil
		}),
	))

	want := []packet.StatedPermission{packet.Allow("fly"), packet.Deny("build")}
	frame, err := p.Encode(packet.NewPermission(want...))
	require.NoError(t, err)
	assert.Equal(t, byte(1), frame[0])

	pk, err := p.HandleIncomingPayload(sender, payload.NewReader(frame))
	require.NoError(t, err)
	require.NotNil(t, received)
	assert.Same(t, received, pk)
	assert.Equal(t, want, received.Permissions)
}

func TestEncodeUnregistered(t *testing.T) {
	p := New(testChannel)
	_, err := p.Encode(&ping{})
	assert.ErrorIs(t, err, ErrUnregisteredPacket)
}

func TestEncodeRejectsUndecodableString(t *testing.T) {
	p := New(testChannel)
	require.NoError(t, p.RegisterPacket(1, packet.TagPermission, newPermission))

	_, err := p.Encode(packet.NewPermission(packet.Allow(strings.Repeat("a", payload.MaxStringLength+1))))
	assert.ErrorIs(t, err, payload.ErrStringTooLong)

	longest := packet.NewPermission(packet.Allow(strings.Repeat("a", payload.MaxStringLength)))
	frame, err := p.Encode(longest)
	require.NoError(t, err)
	pk, err := p.HandleIncomingPayload(uuid.Nil, payload.NewReader(frame))
	require.NoError(t, err)
	assert.Equal(t, longest.Permissions, pk.(*packet.Permission).Permissions)
}

func TestTagsOrderedByID(t *testing.T) {
	p := New(testChannel)
	require.NoError(t, p.RegisterPacket(9, packet.TagPermission, newPermission))
	require.NoError(t, p.RegisterPacket(3, "test:ping", func() packet.Packet { return &ping{} }))
	assert.Equal(t, []packet.Tag{"test:ping", packet.TagPermission}, p.Tags())
}

func TestConcurrentDispatch(t *testing.T) {
	p := New(testChannel)
	counts := make(chan int64, 64)
	require.NoError(t, p.RegisterPacket(0, "test:ping", func() packet.Packet { return &ping{} },
		packet.HandlerFor(func(_ uuid.UUID, pk *ping) error {
			counts <- pk.Nonce
			return nil
		}),
	))

	done := make(chan struct{})
	for i := int64(0); i < 32; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			frame, err := p.Encode(&ping{Nonce: i})
			if err != nil {
				return
			}
			_, _ = p.HandleIncomingPayload(uuid.Nil, payload.NewReader(frame))
		}()
	}
	for i := 0; i < 32; i++ {
		<-done
	}
	close(counts)

	var sum int64
	for n := range counts {
		sum += n
	}
	assert.Equal(t, int64(31*32/2), sum)
}
