// internal/transport/registry_init.go
package transport

import (
	"time"

	"go.uber.org/zap"

	"register-terminal/internal/protocol"
	"register-terminal/internal/protocol/serial"
	"register-terminal/internal/protocol/tcp"
)

// RegisterDefaultTransports registers the local serial port and the TCP bridge
func RegisterDefaultTransports(registry *Registry, dialTimeout time.Duration) {
	registry.Register(SchemeSerial, func(logger *zap.Logger) protocol.LineTransport {
		return serial.NewTransport(logger)
	})

	registry.Register("tcp", func(logger *zap.Logger) protocol.LineTransport {
		return tcp.NewTransport(logger, dialTimeout)
	})
}

// NewDefaultRouter builds a router over the default transports
func NewDefaultRouter(logger *zap.Logger, dialTimeout time.Duration) *Router {
	registry := NewRegistry(logger)
	RegisterDefaultTransports(registry, dialTimeout)
	return NewRouter(registry, logger)
}
