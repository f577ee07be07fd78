// internal/model/result.go
package model

import (
	"time"

	"github.com/google/uuid"

	"register-terminal/internal/protocol"
)

// Action identifies the front-end request that produced a Result
type Action string

const (
	ActionOpen      Action = "OPEN"
	ActionClose     Action = "CLOSE"
	ActionRead      Action = "READ"
	ActionWrite     Action = "WRITE"
	ActionReadNamed Action = "READ_NAMED"
)

// Result is what every front-end request returns: either a line to log or an
// error category and message to render. Results double as log entries.
type Result struct {
	ID         uuid.UUID    `json:"id"`
	Action     Action       `json:"action"`
	Port       string       `json:"port,omitempty"`
	Register   string       `json:"register,omitempty"`
	Command    string       `json:"command,omitempty"`
	Response   string       `json:"response,omitempty"`
	Line       string       `json:"line"`
	Success    bool         `json:"success"`
	TimedOut   bool         `json:"timed_out"`
	Alert      bool         `json:"alert"`
	Error      *ResultError `json:"error,omitempty"`
	DurationMs int64        `json:"duration_ms"`
	Timestamp  time.Time    `json:"timestamp"`
}

// ResultError carries the failure category of a Result
type ResultError struct {
	Kind    protocol.ErrorKind `json:"kind"`
	Message string             `json:"message"`
	Details string             `json:"details,omitempty"`
}

// NewResult creates an empty result for action
func NewResult(action Action) *Result {
	return &Result{
		ID:        uuid.New(),
		Action:    action,
		Timestamp: time.Now(),
	}
}

// Failed reports whether the result carries an error
func (r *Result) Failed() bool {
	return r.Error != nil
}

// Kind returns the error kind, or "" for a successful result
func (r *Result) Kind() protocol.ErrorKind {
	if r.Error == nil {
		return ""
	}
	return r.Error.Kind
}

// ConnectionStatus describes the connection held by the service
type ConnectionStatus struct {
	Connected    bool          `json:"connected"`
	Port         string        `json:"port,omitempty"`
	BaudRate     int           `json:"baud_rate,omitempty"`
	ReadTimeout  time.Duration `json:"read_timeout,omitempty"`
	GraceDelay   time.Duration `json:"grace_delay"`
	CommandsSent int64         `json:"commands_sent"`
	Timeouts     int64         `json:"timeouts"`
	ErrorCount   int64         `json:"error_count"`
	LastActivity *time.Time    `json:"last_activity,omitempty"`
}
