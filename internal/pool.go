package internal

import (
	"bytes"
	"sync"
)

// maxPooledBuffer is the largest buffer capacity returned to the pool. Larger
// buffers are left to the garbage collector.
const maxPooledBuffer = 64 * 1024

var bufferPool = sync.Pool{
	New: func() any {
		return bytes.NewBuffer(make([]byte, 0, 256))
	},
}

// GetBuffer returns an empty buffer from the pool.
func GetBuffer() *bytes.Buffer {
	return bufferPool.Get().(*bytes.Buffer)
}

// PutBuffer resets buf and returns it to the pool.
func PutBuffer(buf *bytes.Buffer) {
	if buf.Cap() > maxPooledBuffer {
		return
	}
	buf.Reset()
	bufferPool.Put(buf)
}
