package payload

import (
	"encoding/binary"
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	maxVarIntLen  = 5
	maxVarLongLen = 10

	// MaxStringLength is the largest byte count ReadString accepts and WriteString writes.
	MaxStringLength = math.MaxInt16 * 3
)

// Reader consumes encoded values from the front of a buffer. Every read either
// returns a value and advances the cursor, or returns an error and leaves the
// Reader in an undefined position; a failed frame must be discarded as a whole.
type Reader struct {
	buf []byte
	off int
}

// NewReader returns a Reader positioned at the start of b. The Reader does not copy b.
func NewReader(b []byte) *Reader {
	return &Reader{buf: b}
}

// Len returns the number of unread bytes.
func (r *Reader) Len() int {
	return len(r.buf) - r.off
}

// Remaining returns the unread bytes without consuming them.
func (r *Reader) Remaining() []byte {
	return r.buf[r.off:]
}

func (r *Reader) next(n int) ([]byte, error) {
	if n < 0 {
		return nil, ErrNegativeLength
	}
	if r.Len() < n {
		return nil, fmt.Errorf("%w: need %d bytes, have %d", ErrUnexpectedEOF, n, r.Len())
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

// ReadBool reads a single byte; any non-zero value is true.
func (r *Reader) ReadBool() (bool, error) {
	b, err := r.ReadUint8()
	return b != 0, err
}

// ReadUint8 ...
func (r *Reader) ReadUint8() (uint8, error) {
	if r.Len() < 1 {
		return 0, ErrUnexpectedEOF
	}
	b := r.buf[r.off]
	r.off++
	return b, nil
}

// ReadByte implements io.ByteReader.
func (r *Reader) ReadByte() (byte, error) {
	return r.ReadUint8()
}

// ReadVarInt reads a varint written by Writer.WriteVarInt.
func (r *Reader) ReadVarInt() (int32, error) {
	v, err := r.uvarint(maxVarIntLen)
	if err != nil {
		return 0, err
	}
	if v > math.MaxUint32 {
		return 0, ErrVarIntTooBig
	}
	return int32(uint32(v)), nil
}

// ReadVarLong reads a varint written by Writer.WriteVarLong.
func (r *Reader) ReadVarLong() (int64, error) {
	v, err := r.uvarint(maxVarLongLen)
	return int64(v), err
}

func (r *Reader) uvarint(maxLen int) (uint64, error) {
	var v uint64
	for i := 0; i < maxLen; i++ {
		b, err := r.ReadUint8()
		if err != nil {
			return 0, err
		}
		// The tenth byte of a varlong only has room for bit 63.
		if i == maxVarLongLen-1 && b > 1 {
			return 0, ErrVarIntTooBig
		}
		v |= uint64(b&0x7f) << (7 * i)
		if b&0x80 == 0 {
			return v, nil
		}
	}
	return 0, ErrVarIntTooBig
}

// ReadInt reads 4 big-endian bytes.
func (r *Reader) ReadInt() (int32, error) {
	b, err := r.next(4)
	if err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(b)), nil
}

// ReadLong reads 8 big-endian bytes.
func (r *Reader) ReadLong() (int64, error) {
	b, err := r.next(8)
	if err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(b)), nil
}

// ReadFloat ...
func (r *Reader) ReadFloat() (float32, error) {
	b, err := r.next(4)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(binary.BigEndian.Uint32(b)), nil
}

// ReadDouble ...
func (r *Reader) ReadDouble() (float64, error) {
	b, err := r.next(8)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.BigEndian.Uint64(b)), nil
}

// ReadString reads a varint byte count followed by that many bytes of UTF-8.
func (r *Reader) ReadString() (string, error) {
	n, err := r.length()
	if err != nil {
		return "", err
	}
	if n > MaxStringLength {
		return "", fmt.Errorf("%w: %d bytes", ErrStringTooLong, n)
	}
	b, err := r.next(n)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", ErrInvalidUTF8
	}
	return string(b), nil
}

// ReadBytes reads a varint length followed by that many bytes. The result is a copy.
func (r *Reader) ReadBytes() ([]byte, error) {
	n, err := r.length()
	if err != nil {
		return nil, err
	}
	b, err := r.next(n)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), b...), nil
}

// ReadUUID reads the 16 bytes written by Writer.WriteUUID.
func (r *Reader) ReadUUID() (uuid.UUID, error) {
	b, err := r.next(16)
	if err != nil {
		return uuid.Nil, err
	}
	return uuid.FromBytes(b)
}

func (r *Reader) length() (int, error) {
	n, err := r.ReadVarInt()
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: %d", ErrNegativeLength, n)
	}
	return int(n), nil
}

// ReadList reads an element count followed by that many elements, each decoded
// by decode, preserving their order. The first error aborts the whole list.
func ReadList[T any](r *Reader, decode func(r *Reader) (T, error)) ([]T, error) {
	n, err := r.length()
	if err != nil {
		return nil, err
	}
	// Capacity is bounded by the unread bytes, not by the declared count.
	items := make([]T, 0, min(n, r.Len()))
	for i := 0; i < n; i++ {
		item, err := decode(r)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		items = append(items, item)
	}
	return items, nil
}

// ReadOptional reads a presence flag and, when set, a value decoded by decode.
func ReadOptional[T any](r *Reader, decode func(r *Reader) (T, error)) (*T, error) {
	present, err := r.ReadBool()
	if err != nil || !present {
		return nil, err
	}
	v, err := decode(r)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
