// internal/protocol/hex.go
package protocol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ParseHex parses a 32-bit hexadecimal number with an optional 0x/0X prefix.
// Surrounding whitespace is ignored.
func ParseHex(text string) (uint32, error) {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s = s[2:]
	}
	if s == "" {
		return 0, newError(KindInvalidFormat, "parse", fmt.Sprintf("empty hex value %q", text), nil)
	}

	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return 0, newError(KindInvalidFormat, "parse", fmt.Sprintf("hex value %q exceeds 32 bits", text), nil)
		}
		return 0, newError(KindInvalidFormat, "parse", fmt.Sprintf("invalid hex value %q", text), nil)
	}
	return uint32(v), nil
}

// FormatHex renders v the way it appears on the wire: 0x prefix, uppercase, no padding
func FormatHex(v uint32) string {
	return fmt.Sprintf("0x%X", v)
}
