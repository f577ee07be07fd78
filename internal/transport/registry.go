// internal/transport/registry.go
package transport

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"register-terminal/internal/protocol"
)

// SchemeSerial is used for port identifiers without a scheme, e.g. COM5 or /dev/ttyUSB0
const SchemeSerial = "serial"

// Factory creates a closed transport
type Factory func(logger *zap.Logger) protocol.LineTransport

// Registry maps port identifier schemes to transport factories
type Registry struct {
	factories map[string]Factory
	mu        sync.RWMutex
	logger    *zap.Logger
}

// NewRegistry creates an empty registry
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		factories: make(map[string]Factory),
		logger:    logger,
	}
}

// Register registers a factory for scheme, replacing any previous one
func (r *Registry) Register(scheme string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.factories[strings.ToLower(scheme)] = factory
	r.logger.Debug("Transport registered", zap.String("scheme", scheme))
}

// Create returns a new transport able to open port
func (r *Registry) Create(port string) (protocol.LineTransport, error) {
	scheme := SchemeOf(port)

	r.mu.RLock()
	factory, exists := r.factories[scheme]
	r.mu.RUnlock()

	if !exists {
		return nil, protocol.InvalidConfig(fmt.Sprintf("no transport for scheme %q", scheme))
	}
	return factory(r.logger), nil
}

// Schemes lists registered schemes in sorted order
func (r *Registry) Schemes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	schemes := make([]string, 0, len(r.factories))
	for scheme := range r.factories {
		schemes = append(schemes, scheme)
	}
	sort.Strings(schemes)
	return schemes
}

// SchemeOf returns the lower-cased scheme of a port identifier, or SchemeSerial if it has none
func SchemeOf(port string) string {
	if i := strings.Index(port, "://"); i > 0 {
		return strings.ToLower(port[:i])
	}
	return SchemeSerial
}
