// internal/transport/router.go
package transport

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"register-terminal/internal/protocol"
)

// Router is a LineTransport that picks the concrete transport from the
// port identifier each time a connection is opened
type Router struct {
	registry *Registry
	logger   *zap.Logger
	mutex    sync.RWMutex
	active   protocol.LineTransport
	scheme   string
}

// NewRouter creates a router with no open connection
func NewRouter(registry *Registry, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		registry: registry,
		logger:   logger,
	}
}

// Open closes the current transport and opens one matching cfg.Port
func (r *Router) Open(cfg protocol.ConnectionConfig) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.closeLocked()

	next, err := r.registry.Create(cfg.Port)
	if err != nil {
		return err
	}
	if err := next.Open(cfg); err != nil {
		return err
	}

	r.active = next
	r.scheme = SchemeOf(cfg.Port)
	r.logger.Debug("Transport selected", zap.String("scheme", r.scheme))
	return nil
}

// Close closes the active transport, if any
func (r *Router) Close() error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.closeLocked()
	return nil
}

func (r *Router) closeLocked() {
	if r.active == nil {
		return
	}
	if err := r.active.Close(); err != nil {
		r.logger.Warn("Error while closing transport", zap.String("scheme", r.scheme), zap.Error(err))
	}
	r.active = nil
	r.scheme = ""
}

// IsOpen reports whether the active transport holds an open connection
func (r *Router) IsOpen() bool {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return r.active != nil && r.active.IsOpen()
}

// Scheme returns the scheme of the active transport, or "" when closed
func (r *Router) Scheme() string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return r.scheme
}

// WriteLine delegates to the active transport
func (r *Router) WriteLine(text string) error {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	if r.active == nil {
		return protocol.NotConnected("write")
	}
	return r.active.WriteLine(text)
}

// ReadLine delegates to the active transport
func (r *Router) ReadLine(timeout time.Duration) (string, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	if r.active == nil {
		return "", protocol.NotConnected("read")
	}
	return r.active.ReadLine(timeout)
}
