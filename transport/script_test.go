package transport

import (
	"io"
	"net"
	"testing"

	"github.com/sandertv/gophertunnel/minecraft/protocol/packet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePacketConn struct {
	incoming []packet.Packet
	written  []packet.Packet
	closed   bool
}

func (c *fakePacketConn) ReadPacket() (packet.Packet, error) {
	if len(c.incoming) == 0 {
		return nil, io.EOF
	}
	pk := c.incoming[0]
	c.incoming = c.incoming[1:]
	return pk, nil
}

func (c *fakePacketConn) WritePacket(pk packet.Packet) error {
	c.written = append(c.written, pk)
	return nil
}

func (c *fakePacketConn) RemoteAddr() net.Addr {
	return &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 19132}
}

func (c *fakePacketConn) Close() error {
	c.closed = true
	return nil
}

func TestScriptConnWrite(t *testing.T) {
	fake := &fakePacketConn{}
	c := NewScriptConn(fake, nil)
	require.NoError(t, c.WriteMessage(Message{Channel: testChannel, Payload: []byte{1, 2}}))

	require.Len(t, fake.written, 1)
	msg, ok := fake.written[0].(*packet.ScriptMessage)
	require.True(t, ok)
	assert.Equal(t, "labymod:neo", msg.Identifier)
	assert.Equal(t, []byte{1, 2}, msg.Data)
}

func TestScriptConnReadSkipsOtherPackets(t *testing.T) {
	fake := &fakePacketConn{incoming: []packet.Packet{
		&packet.Text{Message: "hello"},
		&packet.ScriptMessage{Identifier: "not an identifier", Data: []byte{9}},
		&packet.ScriptMessage{Identifier: "labymod:neo", Data: []byte{7}},
	}}
	c := NewScriptConn(fake, nil)

	msg, err := c.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, testChannel, msg.Channel)
	assert.Equal(t, []byte{7}, msg.Payload)

	_, err = c.ReadMessage()
	assert.ErrorIs(t, err, io.EOF)

	assert.Equal(t, "127.0.0.1:19132", c.RemoteAddr().String())
	require.NoError(t, c.Close())
	assert.True(t, fake.closed)
}
