package transport

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/cooldogedev/conduit/internal"
)

const frameLengthSize = 4

// ErrFrameTooLarge is returned for frames exceeding the configured maximum size.
var ErrFrameTooLarge = errors.New("transport: frame too large")

// frameReader reads frames prefixed by their length as a big-endian uint32.
type frameReader struct {
	r       io.Reader
	maxSize int
	header  [frameLengthSize]byte
}

func newFrameReader(r io.Reader, maxSize int) *frameReader {
	return &frameReader{r: r, maxSize: maxSize}
}

// ReadFrame returns the next frame. io.EOF is returned only if the stream ends
// cleanly between frames.
func (r *frameReader) ReadFrame() ([]byte, error) {
	if _, err := io.ReadFull(r.r, r.header[:]); err != nil {
		return nil, err
	}
	length := binary.BigEndian.Uint32(r.header[:])
	if uint64(length) > uint64(r.maxSize) {
		return nil, fmt.Errorf("%w: %d bytes, limit %d", ErrFrameTooLarge, length, r.maxSize)
	}
	frame := make([]byte, length)
	if _, err := io.ReadFull(r.r, frame); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return frame, nil
}

// frameWriter writes frames prefixed by their length as a big-endian uint32.
// Each frame is issued as a single Write call.
type frameWriter struct {
	w       io.Writer
	maxSize int
}

func newFrameWriter(w io.Writer, maxSize int) *frameWriter {
	return &frameWriter{w: w, maxSize: maxSize}
}

// WriteFrame ...
func (w *frameWriter) WriteFrame(data []byte) error {
	if len(data) > w.maxSize {
		return fmt.Errorf("%w: %d bytes, limit %d", ErrFrameTooLarge, len(data), w.maxSize)
	}

	buf := internal.GetBuffer()
	defer internal.PutBuffer(buf)

	var header [frameLengthSize]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(data)))
	buf.Write(header[:])
	buf.Write(data)
	_, err := w.w.Write(buf.Bytes())
	return err
}
