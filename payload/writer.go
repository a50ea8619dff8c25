package payload

import (
	"encoding/binary"
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Writer accumulates the encoded form of a packet. The zero value is ready to use.
//
// Values a Reader would refuse, such as over-long or invalid UTF-8 strings, are
// not written; the first such failure is kept and returned by Err, and the
// written bytes must then be discarded.
type Writer struct {
	buf []byte
	err error
}

// NewWriter returns a Writer with room for size bytes before it has to grow.
func NewWriter(size int) *Writer {
	return &Writer{buf: make([]byte, 0, size)}
}

// Bytes returns the bytes written so far. The slice aliases the Writer's buffer
// and is only valid until the next write or Reset.
func (w *Writer) Bytes() []byte {
	return w.buf
}

// Len returns the number of bytes written so far.
func (w *Writer) Len() int {
	return len(w.buf)
}

// Err returns the first error met while writing, if any.
func (w *Writer) Err() error {
	return w.err
}

func (w *Writer) fail(err error) {
	if w.err == nil {
		w.err = err
	}
}

// Reset discards everything written and any error, keeping the allocated buffer.
func (w *Writer) Reset() {
	w.buf = w.buf[:0]
	w.err = nil
}

// Write appends p verbatim, without a length prefix. It never fails.
func (w *Writer) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	return len(p), nil
}

// WriteBool writes b as a single byte, 1 for true and 0 for false.
func (w *Writer) WriteBool(b bool) {
	if b {
		w.buf = append(w.buf, 1)
		return
	}
	w.buf = append(w.buf, 0)
}

// WriteUint8 ...
func (w *Writer) WriteUint8(v uint8) {
	w.buf = append(w.buf, v)
}

// WriteVarInt writes v as a LEB128 varint of at most 5 bytes. Negative values are
// written as their unsigned 32-bit pattern and always take 5 bytes.
func (w *Writer) WriteVarInt(v int32) {
	w.buf = binary.AppendUvarint(w.buf, uint64(uint32(v)))
}

// WriteVarLong writes v as a LEB128 varint of at most 10 bytes.
func (w *Writer) WriteVarLong(v int64) {
	w.buf = binary.AppendUvarint(w.buf, uint64(v))
}

// WriteInt writes v as 4 big-endian bytes.
func (w *Writer) WriteInt(v int32) {
	w.buf = binary.BigEndian.AppendUint32(w.buf, uint32(v))
}

// WriteLong writes v as 8 big-endian bytes.
func (w *Writer) WriteLong(v int64) {
	w.buf = binary.BigEndian.AppendUint64(w.buf, uint64(v))
}

// WriteFloat ...
func (w *Writer) WriteFloat(v float32) {
	w.buf = binary.BigEndian.AppendUint32(w.buf, math.Float32bits(v))
}

// WriteDouble ...
func (w *Writer) WriteDouble(v float64) {
	w.buf = binary.BigEndian.AppendUint64(w.buf, math.Float64bits(v))
}

// WriteString writes the UTF-8 bytes of s prefixed by their count as a varint.
// Strings longer than MaxStringLength bytes or holding invalid UTF-8 are not
// written and fail the Writer.
func (w *Writer) WriteString(s string) {
	if len(s) > MaxStringLength {
		w.fail(fmt.Errorf("%w: %d bytes", ErrStringTooLong, len(s)))
		return
	}
	if !utf8.ValidString(s) {
		w.fail(ErrInvalidUTF8)
		return
	}
	w.WriteVarInt(int32(len(s)))
	w.buf = append(w.buf, s...)
}

// WriteBytes writes b prefixed by its length as a varint.
func (w *Writer) WriteBytes(b []byte) {
	if len(b) > math.MaxInt32 {
		w.fail(fmt.Errorf("%w: %d bytes", ErrVarIntTooBig, len(b)))
		return
	}
	w.WriteVarInt(int32(len(b)))
	w.buf = append(w.buf, b...)
}

// WriteUUID writes id as its most and least significant halves, each a big-endian long.
func (w *Writer) WriteUUID(id uuid.UUID) {
	w.buf = append(w.buf, id[:]...)
}

// WriteCollection writes the number of items followed by every item, in order,
// using encode.
func WriteCollection[T any](w *Writer, items []T, encode func(w *Writer, item T)) {
	w.WriteVarInt(int32(len(items)))
	for _, item := range items {
		encode(w, item)
	}
}

// WriteOptional writes a presence flag followed by *v when v is non-nil.
func WriteOptional[T any](w *Writer, v *T, encode func(w *Writer, item T)) {
	w.WriteBool(v != nil)
	if v != nil {
		encode(w, *v)
	}
}
