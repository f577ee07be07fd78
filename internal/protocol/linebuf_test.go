// internal/protocol/linebuf_test.go
package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLineBuffer(t *testing.T) {
	var b LineBuffer

	b.Write([]byte("OK\r\nNE"))
	line, ok := b.Next()
	assert.True(t, ok)
	assert.Equal(t, "OK\r\n", string(line))

	_, ok = b.Next()
	assert.False(t, ok)
	assert.Equal(t, 2, b.Len())

	b.Write([]byte("XT\n"))
	line, ok = b.Next()
	assert.True(t, ok)
	assert.Equal(t, "NEXT\n", string(line))
	assert.Equal(t, 0, b.Len())

	b.Write([]byte("partial"))
	assert.Equal(t, "partial", string(b.Flush()))
	assert.Equal(t, 0, b.Len())

	b.Write([]byte("dropped"))
	b.Reset()
	assert.Nil(t, b.Flush())
}

func TestDecodeLine(t *testing.T) {
	assert.Equal(t, "0x410FC241", DecodeLine([]byte("  0x410FC241\r\n")))
	assert.Equal(t, "", DecodeLine(nil))
	assert.Equal(t, "\uFFFDOK", DecodeLine([]byte{0xFF, 'O', 'K', '\n'}))
}
