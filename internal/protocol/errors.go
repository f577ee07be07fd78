// internal/protocol/errors.go
package protocol

import (
	"errors"
	"fmt"
)

// ErrorKind categorizes failures so front-ends can choose how to render them
type ErrorKind string

const (
	KindPortUnavailable ErrorKind = "PORT_UNAVAILABLE"
	KindNotConnected    ErrorKind = "NOT_CONNECTED"
	KindInvalidFormat   ErrorKind = "INVALID_FORMAT"
	KindUnknownRegister ErrorKind = "UNKNOWN_REGISTER"
	KindTransport       ErrorKind = "TRANSPORT_ERROR"
	KindTimeout         ErrorKind = "TIMEOUT"
	KindInvalidConfig   ErrorKind = "INVALID_CONFIG"
)

// Error is the error type returned by transports and the register client
type Error struct {
	Kind ErrorKind
	Op   string
	Msg  string
	Err  error
}

// Sentinels for errors.Is comparisons. Only the kind is compared.
var (
	ErrPortUnavailable = &Error{Kind: KindPortUnavailable}
	ErrNotConnected    = &Error{Kind: KindNotConnected, Msg: "serial port not open"}
	ErrInvalidFormat   = &Error{Kind: KindInvalidFormat}
	ErrUnknownRegister = &Error{Kind: KindUnknownRegister}
	ErrTransport       = &Error{Kind: KindTransport}
	ErrInvalidConfig   = &Error{Kind: KindInvalidConfig}
)

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is a protocol error of the same kind
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// KindOf returns the kind of the first protocol error in err's chain, or "" if there is none
func KindOf(err error) ErrorKind {
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Kind
	}
	return ""
}

func newError(kind ErrorKind, op, msg string, err error) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg, Err: err}
}

// NotConnected builds a NOT_CONNECTED error for op
func NotConnected(op string) error {
	return newError(KindNotConnected, op, ErrNotConnected.Msg, nil)
}

// PortUnavailable wraps a driver error raised while opening port
func PortUnavailable(port string, err error) error {
	return newError(KindPortUnavailable, "open", fmt.Sprintf("cannot open %s", port), err)
}

// TransportFailure wraps an I/O fault on an open connection
func TransportFailure(op string, err error) error {
	return newError(KindTransport, op, "i/o failure", err)
}

// InvalidConfig reports a rejected connection configuration
func InvalidConfig(msg string) error {
	return newError(KindInvalidConfig, "config", msg, nil)
}
