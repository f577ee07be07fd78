// internal/protocol/linebuf.go
package protocol

import (
	"bytes"
	"strings"
)

// LineBuffer accumulates received bytes and splits them at '\n'.
// Bytes following a terminator stay buffered for the next line.
type LineBuffer struct {
	buf []byte
}

// Write appends received bytes
func (b *LineBuffer) Write(p []byte) {
	b.buf = append(b.buf, p...)
}

// Next pops the first complete line, terminator included
func (b *LineBuffer) Next() ([]byte, bool) {
	i := bytes.IndexByte(b.buf, '\n')
	if i < 0 {
		return nil, false
	}
	line := make([]byte, i+1)
	copy(line, b.buf[:i+1])
	b.buf = b.buf[i+1:]
	return line, true
}

// Flush pops everything buffered, complete line or not
func (b *LineBuffer) Flush() []byte {
	out := b.buf
	b.buf = nil
	return out
}

// Len returns the number of buffered bytes
func (b *LineBuffer) Len() int { return len(b.buf) }

// Reset drops buffered bytes
func (b *LineBuffer) Reset() { b.buf = nil }

// DecodeLine turns raw response bytes into display text: invalid UTF-8 is
// replaced with U+FFFD and surrounding whitespace and terminators are trimmed.
func DecodeLine(raw []byte) string {
	return strings.TrimSpace(strings.ToValidUTF8(string(raw), "\uFFFD"))
}
