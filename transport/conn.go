package transport

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/cooldogedev/conduit/channel"
	"github.com/cooldogedev/conduit/payload"
	"github.com/golang/snappy"
)

const (
	// DefaultMaxFrameSize is the frame size limit used when ConnOpts.MaxFrameSize is zero.
	DefaultMaxFrameSize = 8 * 1024 * 1024

	flagCompressed = 1 << 0
)

// ErrMalformedEnvelope is returned when a frame does not hold a valid message envelope.
var ErrMalformedEnvelope = errors.New("transport: malformed message envelope")

// ConnOpts configures a Conn.
type ConnOpts struct {
	// MaxFrameSize bounds both the encoded and the decompressed size of a frame.
	MaxFrameSize int
	// CompressionThreshold is the payload size from which payloads are compressed
	// with snappy. Zero disables compression. Either end decompresses regardless.
	CompressionThreshold int
}

// Conn is a MessageConn over a byte stream. Every message travels in its own
// length-prefixed frame holding a flags byte, the channel identifier as a
// string and the payload.
type Conn struct {
	rwc  io.ReadWriteCloser
	opts ConnOpts

	reader *frameReader

	writer  *frameWriter
	writeMu sync.Mutex

	closeOnce sync.Once
	closeErr  error
}

// NewConn wraps rwc.
func NewConn(rwc io.ReadWriteCloser, opts ConnOpts) *Conn {
	if opts.MaxFrameSize <= 0 {
		opts.MaxFrameSize = DefaultMaxFrameSize
	}
	return &Conn{
		rwc:    rwc,
		opts:   opts,
		reader: newFrameReader(rwc, opts.MaxFrameSize),
		writer: newFrameWriter(rwc, opts.MaxFrameSize),
	}
}

// ReadMessage reads the next message. A malformed envelope yields an error
// wrapping ErrMalformedEnvelope; the stream stays usable since frames are
// delimited by their length.
func (c *Conn) ReadMessage() (Message, error) {
	frame, err := c.reader.ReadFrame()
	if err != nil {
		return Message{}, err
	}

	r := payload.NewReader(frame)
	flags, err := r.ReadUint8()
	if err != nil {
		return Message{}, fmt.Errorf("%w: flags: %w", ErrMalformedEnvelope, err)
	}
	name, err := r.ReadString()
	if err != nil {
		return Message{}, fmt.Errorf("%w: channel: %w", ErrMalformedEnvelope, err)
	}
	id, err := channel.Parse(name)
	if err != nil {
		return Message{}, fmt.Errorf("%w: %w", ErrMalformedEnvelope, err)
	}

	data := r.Remaining()
	if flags&flagCompressed != 0 {
		n, err := snappy.DecodedLen(data)
		if err != nil {
			return Message{}, fmt.Errorf("%w: %w", ErrMalformedEnvelope, err)
		}
		if n > c.opts.MaxFrameSize {
			return Message{}, fmt.Errorf("%w: %w: decompressed to %d bytes, limit %d", ErrMalformedEnvelope, ErrFrameTooLarge, n, c.opts.MaxFrameSize)
		}
		if data, err = snappy.Decode(nil, data); err != nil {
			return Message{}, fmt.Errorf("%w: %w", ErrMalformedEnvelope, err)
		}
	}
	return Message{Channel: id, Payload: data}, nil
}

// WriteMessage writes msg as a single frame. It is safe for concurrent use.
func (c *Conn) WriteMessage(msg Message) error {
	if msg.Channel.IsZero() {
		return fmt.Errorf("transport: message has no channel")
	}

	if len(msg.Payload) > c.opts.MaxFrameSize {
		return fmt.Errorf("%w: payload of %d bytes, limit %d", ErrFrameTooLarge, len(msg.Payload), c.opts.MaxFrameSize)
	}

	data, flags := msg.Payload, uint8(0)
	if c.opts.CompressionThreshold > 0 && len(data) >= c.opts.CompressionThreshold {
		data, flags = snappy.Encode(nil, data), flagCompressed
	}

	name := msg.Channel.String()
	w := payload.NewWriter(1 + 5 + len(name) + len(data))
	w.WriteUint8(flags)
	w.WriteString(name)
	if err := w.Err(); err != nil {
		return fmt.Errorf("transport: channel %s: %w", msg.Channel, err)
	}
	_, _ = w.Write(data)

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.writer.WriteFrame(w.Bytes())
}

// RemoteAddr returns the remote address of the underlying stream, or nil if it has none.
func (c *Conn) RemoteAddr() net.Addr {
	return RemoteAddr(c.rwc)
}

// Close closes the underlying stream. Subsequent calls return the first result.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.rwc.Close()
	})
	return c.closeErr
}
