// internal/protocol/tcp/transport.go
package tcp

import (
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"register-terminal/internal/protocol"
)

// Scheme prefixes port identifiers served by this transport
const Scheme = "tcp://"

// DefaultDialTimeout bounds connection setup
const DefaultDialTimeout = 5 * time.Second

const readChunkSize = 256

// Transport implements protocol.LineTransport over a TCP serial bridge
// such as ser2net, addressed as tcp://host:port
type Transport struct {
	dialTimeout time.Duration
	logger      *zap.Logger
	mutex       sync.RWMutex
	conn        net.Conn
	config      protocol.ConnectionConfig
	isOpen      atomic.Bool
	pending     protocol.LineBuffer
}

// NewTransport creates a closed TCP transport
func NewTransport(logger *zap.Logger, dialTimeout time.Duration) *Transport {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dialTimeout <= 0 {
		dialTimeout = DefaultDialTimeout
	}
	return &Transport{
		dialTimeout: dialTimeout,
		logger:      logger.With(zap.String("protocol", "tcp")),
	}
}

// Address strips the scheme from a port identifier
func Address(port string) (string, error) {
	if !strings.HasPrefix(port, Scheme) {
		return "", protocol.InvalidConfig(fmt.Sprintf("not a tcp port identifier: %q", port))
	}
	addr := strings.TrimPrefix(port, Scheme)
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return "", protocol.InvalidConfig(fmt.Sprintf("invalid tcp address %q: %v", addr, err))
	}
	return addr, nil
}

// Open dials the bridge, closing any connection this transport already holds
func (t *Transport) Open(cfg protocol.ConnectionConfig) error {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}
	address, err := Address(cfg.Port)
	if err != nil {
		return err
	}

	t.mutex.Lock()
	defer t.mutex.Unlock()

	t.closeLocked()

	t.logger.Info("Opening TCP connection", zap.String("address", address))

	dialer := &net.Dialer{
		Timeout:   t.dialTimeout,
		KeepAlive: 30 * time.Second,
	}
	conn, err := dialer.Dial("tcp", address)
	if err != nil {
		t.logger.Error("Failed to open TCP connection", zap.Error(err))
		return protocol.PortUnavailable(cfg.Port, err)
	}

	t.conn = conn
	t.config = cfg
	t.isOpen.Store(true)

	t.logger.Info("TCP connection opened successfully", zap.String("address", address))
	return nil
}

// Close closes the connection. Closing a closed transport is a no-op.
func (t *Transport) Close() error {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.closeLocked()
	return nil
}

func (t *Transport) closeLocked() {
	if !t.isOpen.Load() || t.conn == nil {
		return
	}

	if err := t.conn.Close(); err != nil {
		t.logger.Warn("Error while closing TCP connection", zap.Error(err))
	}

	t.conn = nil
	t.isOpen.Store(false)
	t.pending.Reset()

	t.logger.Info("TCP connection closed")
}

// IsOpen returns whether the connection is open
func (t *Transport) IsOpen() bool {
	return t.isOpen.Load()
}

// WriteLine writes text exactly as given
func (t *Transport) WriteLine(text string) error {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	if !t.isOpen.Load() || t.conn == nil {
		return protocol.NotConnected("write")
	}

	if err := t.conn.SetWriteDeadline(time.Now().Add(t.config.ReadTimeout)); err != nil {
		return protocol.TransportFailure("write", err)
	}

	data := []byte(text)
	n, err := t.conn.Write(data)
	if err != nil {
		t.logger.Error("TCP write failed", zap.Error(err))
		return protocol.TransportFailure("write", err)
	}
	if n != len(data) {
		return protocol.TransportFailure("write", io.ErrShortWrite)
	}

	t.logger.Debug("TCP write completed", zap.Int("bytes", n))
	return nil
}

// ReadLine waits up to timeout for a complete line. Deadline expiry is not
// an error: whatever arrived, possibly nothing, is returned.
func (t *Transport) ReadLine(timeout time.Duration) (string, error) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if !t.isOpen.Load() || t.conn == nil {
		return "", protocol.NotConnected("read")
	}

	if line, ok := t.pending.Next(); ok {
		return protocol.DecodeLine(line), nil
	}

	if err := t.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return "", protocol.TransportFailure("read", err)
	}

	buf := make([]byte, readChunkSize)
	for {
		n, err := t.conn.Read(buf)
		if n > 0 {
			t.pending.Write(buf[:n])
			if line, ok := t.pending.Next(); ok {
				return protocol.DecodeLine(line), nil
			}
		}
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				break
			}
			t.logger.Error("TCP read failed", zap.Error(err))
			return "", protocol.TransportFailure("read", err)
		}
	}

	return protocol.DecodeLine(t.pending.Flush()), nil
}
