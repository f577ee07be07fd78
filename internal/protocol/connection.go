// internal/protocol/connection.go
package protocol

import (
	"fmt"
	"time"
)

// DefaultReadTimeout is used when a ConnectionConfig leaves ReadTimeout unset
const DefaultReadTimeout = time.Second

// SupportedBaudRates lists the baud rates a connection may be opened at
var SupportedBaudRates = []int{9600, 19200, 38400, 57600, 115200, 230400, 460800, 921600}

// ConnectionConfig describes the link to open. It is copied by the transport on open.
type ConnectionConfig struct {
	Port        string        `json:"port" mapstructure:"port"`
	BaudRate    int           `json:"baud_rate" mapstructure:"baud_rate"`
	ReadTimeout time.Duration `json:"read_timeout" mapstructure:"read_timeout"`
}

// WithDefaults returns a copy with the default read timeout filled in
func (c ConnectionConfig) WithDefaults() ConnectionConfig {
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	return c
}

// Validate checks the port identifier and baud rate
func (c ConnectionConfig) Validate() error {
	if c.Port == "" {
		return InvalidConfig("port is required")
	}
	if !IsSupportedBaudRate(c.BaudRate) {
		return InvalidConfig(fmt.Sprintf("unsupported baud rate: %d", c.BaudRate))
	}
	if c.ReadTimeout < 0 {
		return InvalidConfig("read timeout must not be negative")
	}
	return nil
}

// IsSupportedBaudRate reports whether rate is in SupportedBaudRates
func IsSupportedBaudRate(rate int) bool {
	for _, r := range SupportedBaudRates {
		if r == rate {
			return true
		}
	}
	return false
}
