package packet

import (
	"errors"
	"testing"

	"github.com/cooldogedev/conduit/payload"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPermissionRoundTrip(t *testing.T) {
	for _, in := range [][]StatedPermission{
		{Allow("fly"), Deny("build")},
		{Allow(""), Deny("")},
		{Deny("z"), Deny("a"), Allow("m")},
	} {
		w := &payload.Writer{}
		require.NoError(t, NewPermission(in...).Encode(w))

		out := &Permission{}
		r := payload.NewReader(w.Bytes())
		require.NoError(t, out.Decode(r))
		assert.Equal(t, in, out.Permissions)
		assert.Zero(t, r.Len())
	}
}

func TestPermissionEmpty(t *testing.T) {
	w := &payload.Writer{}
	require.NoError(t, (&Permission{}).Encode(w))
	assert.Equal(t, []byte{0}, w.Bytes())

	out := &Permission{}
	require.NoError(t, out.Decode(payload.NewReader(w.Bytes())))
	assert.Empty(t, out.Permissions)
}

func TestPermissionWireLayout(t *testing.T) {
	w := &payload.Writer{}
	require.NoError(t, NewPermission(Allow("fly"), Deny("build")).Encode(w))
	want := []byte{2, 3, 'f', 'l', 'y', 1, 5, 'b', 'u', 'i', 'l', 'd', 0}
	assert.Equal(t, want, w.Bytes())
}

func TestPermissionDecodeTruncated(t *testing.T) {
	w := &payload.Writer{}
	require.NoError(t, NewPermission(Allow("fly"), Deny("build")).Encode(w))
	b := w.Bytes()

	err := (&Permission{}).Decode(payload.NewReader(b[:len(b)-1]))
	assert.ErrorIs(t, err, payload.ErrUnexpectedEOF)
}

func TestHandlerFor(t *testing.T) {
	sender := uuid.New()
	var got *Permission
	h := HandlerFor(func(s uuid.UUID, pk *Permission) error {
		assert.Equal(t, sender, s)
		got = pk
		return nil
	})

	pk := NewPermission(Allow("fly"))
	require.NoError(t, h.Handle(sender, pk))
	assert.Same(t, pk, got)

	assert.Error(t, h.Handle(sender, &otherPacket{}))
}

func TestHandlerFuncIdentity(t *testing.T) {
	fn := func(uuid.UUID, Packet) error { return errors.New("boom") }
	a, b := HandlerFunc(fn), HandlerFunc(fn)
	assert.False(t, a == b)
	assert.EqualError(t, a.Handle(uuid.Nil, nil), "boom")
}

type otherPacket struct{}

func (*otherPacket) Tag() Tag                     { return "test:other" }
func (*otherPacket) Encode(*payload.Writer) error { return nil }
func (*otherPacket) Decode(*payload.Reader) error { return nil }
