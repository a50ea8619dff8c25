package internal

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBufferPool(t *testing.T) {
	buf := GetBuffer()
	buf.WriteString("conduit")
	PutBuffer(buf)

	assert.Equal(t, 0, GetBuffer().Len())

	PutBuffer(bytes.NewBuffer(make([]byte, 0, maxPooledBuffer+1)))
}

func TestNopLogger(t *testing.T) {
	logger := NopLogger()
	logger.Error("discarded", "err", assert.AnError)
	assert.False(t, logger.Enabled(t.Context(), 0))
}
