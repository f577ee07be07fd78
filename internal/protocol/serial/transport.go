// internal/protocol/serial/transport.go
package serial

import (
	"errors"
	"io"
	"sync"
	"time"

	gobug "go.bug.st/serial"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"register-terminal/internal/protocol"
)

// portHandle is the subset of gobug.Port the transport uses
type portHandle interface {
	SetReadTimeout(timeout time.Duration) error
	Write(p []byte) (int, error)
	Read(p []byte) (int, error)
	Close() error
}

// openPort is swapped out in tests
var openPort = func(name string, mode *gobug.Mode) (portHandle, error) {
	return gobug.Open(name, mode)
}

const readChunkSize = 256

// Transport implements protocol.LineTransport over a local serial port (8N1)
type Transport struct {
	logger  *zap.Logger
	mutex   sync.RWMutex
	port    portHandle
	config  protocol.ConnectionConfig
	isOpen  atomic.Bool
	pending protocol.LineBuffer
}

// NewTransport creates a closed serial transport
func NewTransport(logger *zap.Logger) *Transport {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Transport{
		logger: logger.With(zap.String("protocol", "serial")),
	}
}

// Open opens cfg.Port, closing any port this transport already holds
func (t *Transport) Open(cfg protocol.ConnectionConfig) error {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}

	t.mutex.Lock()
	defer t.mutex.Unlock()

	t.closeLocked()

	t.logger.Info("Opening serial port",
		zap.String("port", cfg.Port),
		zap.Int("baud_rate", cfg.BaudRate),
	)

	mode := &gobug.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: 8,
		Parity:   gobug.NoParity,
		StopBits: gobug.OneStopBit,
	}

	port, err := openPort(cfg.Port, mode)
	if err != nil {
		fields := []zap.Field{zap.String("port", cfg.Port), zap.Error(err)}
		var portErr *gobug.PortError
		if errors.As(err, &portErr) {
			fields = append(fields, zap.Int("error_code", int(portErr.Code())))
		}
		t.logger.Error("Failed to open serial port", fields...)
		return protocol.PortUnavailable(cfg.Port, err)
	}

	t.port = port
	t.config = cfg
	t.isOpen.Store(true)

	t.logger.Info("Serial port opened successfully", zap.String("port", cfg.Port))
	return nil
}

// Close closes the port. Closing a closed transport is a no-op.
func (t *Transport) Close() error {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.closeLocked()
	return nil
}

func (t *Transport) closeLocked() {
	if !t.isOpen.Load() || t.port == nil {
		return
	}

	if err := t.port.Close(); err != nil {
		t.logger.Warn("Error while closing serial port", zap.Error(err))
	}

	t.port = nil
	t.isOpen.Store(false)
	t.pending.Reset()

	t.logger.Info("Serial port closed", zap.String("port", t.config.Port))
}

// IsOpen returns whether the port is open
func (t *Transport) IsOpen() bool {
	return t.isOpen.Load()
}

// Config returns the configuration the port was opened with
func (t *Transport) Config() protocol.ConnectionConfig {
	t.mutex.RLock()
	defer t.mutex.RUnlock()
	return t.config
}

// WriteLine writes text exactly as given
func (t *Transport) WriteLine(text string) error {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	if !t.isOpen.Load() || t.port == nil {
		return protocol.NotConnected("write")
	}

	data := []byte(text)
	n, err := t.port.Write(data)
	if err != nil {
		t.logger.Error("Failed to write to serial port",
			zap.Error(err),
			zap.Int("bytes_to_write", len(data)),
		)
		return protocol.TransportFailure("write", err)
	}
	if n != len(data) {
		return protocol.TransportFailure("write", io.ErrShortWrite)
	}

	t.logger.Debug("Data written to serial port",
		zap.Int("bytes_written", n),
		zap.ByteString("data", data),
	)
	return nil
}

// ReadLine waits up to timeout for a complete line. On timeout it returns
// whatever arrived, possibly nothing, without an error.
func (t *Transport) ReadLine(timeout time.Duration) (string, error) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if !t.isOpen.Load() || t.port == nil {
		return "", protocol.NotConnected("read")
	}

	deadline := time.Now().Add(timeout)
	buf := make([]byte, readChunkSize)

	for {
		if line, ok := t.pending.Next(); ok {
			return protocol.DecodeLine(line), nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		if err := t.port.SetReadTimeout(remaining); err != nil {
			return "", protocol.TransportFailure("read", err)
		}

		n, err := t.port.Read(buf)
		if n > 0 {
			t.pending.Write(buf[:n])
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			t.logger.Error("Failed to read from serial port", zap.Error(err))
			return "", protocol.TransportFailure("read", err)
		}
		if n == 0 {
			// read timeout expired with nothing received
			break
		}
	}

	partial := t.pending.Flush()
	if len(partial) > 0 {
		t.logger.Debug("Returning partial line after timeout", zap.Int("bytes", len(partial)))
	}
	return protocol.DecodeLine(partial), nil
}
