// internal/protocol/protocol.go
package protocol

import "time"

// LineTransport is a line-oriented link to the target device.
// Implementations own at most one open connection.
type LineTransport interface {
	// Connection lifecycle
	Open(cfg ConnectionConfig) error
	Close() error
	IsOpen() bool

	// Data communication. ReadLine returns an empty string, not an error,
	// when nothing arrives within timeout.
	WriteLine(text string) error
	ReadLine(timeout time.Duration) (string, error)
}

// ErrorResponse is the response text reported when a transport fault interrupts a command
const ErrorResponse = "ERROR"
