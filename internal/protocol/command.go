// internal/protocol/command.go
package protocol

import "fmt"

// Op is the register operation carried by a Command
type Op string

const (
	OpRead  Op = "read"
	OpWrite Op = "write"
)

// LineTerminator ends every request on the wire
const LineTerminator = "\r\n"

// Command is a single register request. Value is only meaningful for OpWrite.
type Command struct {
	Op      Op     `json:"op"`
	Address uint32 `json:"address"`
	Value   uint32 `json:"value,omitempty"`
}

// ReadCommand builds a read request for address
func ReadCommand(address uint32) Command {
	return Command{Op: OpRead, Address: address}
}

// WriteCommand builds a write request storing value at address
func WriteCommand(address, value uint32) Command {
	return Command{Op: OpWrite, Address: address, Value: value}
}

// String renders the exact wire string, terminator included
func (c Command) String() string {
	return c.Text() + LineTerminator
}

// Text renders the request without its line terminator, for logs and displays
func (c Command) Text() string {
	if c.Op == OpWrite {
		return fmt.Sprintf("write %s %s", FormatHex(c.Address), FormatHex(c.Value))
	}
	return fmt.Sprintf("read %s", FormatHex(c.Address))
}
