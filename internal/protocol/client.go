// internal/protocol/client.go
package protocol

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// DefaultGraceDelay is the pause between sending a request and reading its response
const DefaultGraceDelay = 50 * time.Millisecond

// Reply is the outcome of one request/response exchange
type Reply struct {
	Command  Command       `json:"command"`
	Response string        `json:"response"`
	TimedOut bool          `json:"timed_out"`
	Duration time.Duration `json:"duration"`
}

// Stats provides client-level counters
type Stats struct {
	CommandsSent int64     `json:"commands_sent"`
	Timeouts     int64     `json:"timeouts"`
	ErrorCount   int64     `json:"error_count"`
	LastActivity time.Time     `json:"last_activity"`
	IsConnected  bool          `json:"is_connected"`
	GraceDelay   time.Duration `json:"grace_delay"`
}

// Client sends register commands over a LineTransport. Exchanges are serialized:
// the wire protocol has no request identifiers, so only one may be in flight.
// Status queries never wait for an exchange.
type Client struct {
	transport  LineTransport
	logger     *zap.Logger
	graceDelay time.Duration
	sleep      func(time.Duration)

	// mu serializes Open, Close and exchanges
	mu sync.Mutex

	configMu sync.RWMutex
	config   ConnectionConfig

	commandsSent atomic.Int64
	timeouts     atomic.Int64
	errorCount   atomic.Int64
	lastActivity atomic.Time
}

// Option configures a Client
type Option func(*Client)

// WithGraceDelay overrides the pause between write and read. Negative values are ignored.
func WithGraceDelay(d time.Duration) Option {
	return func(c *Client) {
		if d >= 0 {
			c.graceDelay = d
		}
	}
}

// WithLogger sets the logger used for command tracing
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithSleep replaces time.Sleep for the grace delay
func WithSleep(sleep func(time.Duration)) Option {
	return func(c *Client) {
		if sleep != nil {
			c.sleep = sleep
		}
	}
}

// NewClient creates a client that owns transport
func NewClient(transport LineTransport, opts ...Option) *Client {
	c := &Client{
		transport:  transport,
		logger:     zap.NewNop(),
		graceDelay: DefaultGraceDelay,
		sleep:      time.Sleep,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(zap.String("component", "register-client"))
	return c
}

// Open validates cfg and opens the transport, closing any previous connection
func (c *Client) Open(cfg ConnectionConfig) error {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.transport.Open(cfg); err != nil {
		if KindOf(err) == "" {
			err = PortUnavailable(cfg.Port, err)
		}
		c.logger.Warn("Open failed", zap.String("port", cfg.Port), zap.Error(err))
		return err
	}

	c.configMu.Lock()
	c.config = cfg
	c.configMu.Unlock()
	c.lastActivity.Store(time.Now())
	c.logger.Info("Connection opened",
		zap.String("port", cfg.Port),
		zap.Int("baud_rate", cfg.BaudRate),
		zap.Duration("read_timeout", cfg.ReadTimeout),
	)
	return nil
}

// Close closes the connection. It is safe to call on a closed client.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	wasOpen := c.transport.IsOpen()
	if err := c.transport.Close(); err != nil {
		c.logger.Warn("Close reported an error", zap.Error(err))
	}
	if wasOpen {
		c.logger.Info("Connection closed", zap.String("port", c.Config().Port))
	}
	return nil
}

// IsConnected reports whether a connection is open
func (c *Client) IsConnected() bool {
	return c.transport.IsOpen()
}

// Config returns the configuration of the current or last opened connection
func (c *Client) Config() ConnectionConfig {
	c.configMu.RLock()
	defer c.configMu.RUnlock()
	return c.config
}

// GraceDelay returns the pause applied between write and read
func (c *Client) GraceDelay() time.Duration {
	return c.graceDelay
}

// Stats returns a snapshot of the client counters
func (c *Client) Stats() Stats {
	return Stats{
		CommandsSent: c.commandsSent.Load(),
		Timeouts:     c.timeouts.Load(),
		ErrorCount:   c.errorCount.Load(),
		LastActivity: c.lastActivity.Load(),
		IsConnected:  c.transport.IsOpen(),
		GraceDelay:   c.graceDelay,
	}
}

// ReadRegister reads the register at address and returns the device's response line
func (c *Client) ReadRegister(ctx context.Context, address uint32) (string, error) {
	reply, err := c.Transact(ctx, ReadCommand(address))
	return reply.Response, err
}

// WriteRegister stores value at address and returns the device's response line
func (c *Client) WriteRegister(ctx context.Context, address, value uint32) (string, error) {
	reply, err := c.Transact(ctx, WriteCommand(address, value))
	return reply.Response, err
}

// ReadNamed reads one of the SCB registers by name
func (c *Client) ReadNamed(ctx context.Context, name string) (string, error) {
	reg, err := LookupRegister(name)
	if err != nil {
		return "", err
	}
	return c.ReadRegister(ctx, reg.Address)
}

// Transact sends cmd, waits the grace delay and reads one response line.
// The context is only consulted before anything is sent; once the request is on the
// wire the exchange runs to completion so its response cannot be misattributed.
// A transport fault yields Response == ErrorResponse together with a TRANSPORT_ERROR.
func (c *Client) Transact(ctx context.Context, cmd Command) (Reply, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	reply := Reply{Command: cmd}

	if !c.transport.IsOpen() {
		return reply, NotConnected(string(cmd.Op))
	}
	if err := ctx.Err(); err != nil {
		return reply, err
	}

	start := time.Now()
	log := c.logger.With(zap.String("command", cmd.Text()))

	if err := c.transport.WriteLine(cmd.String()); err != nil {
		return c.fail(reply, start, log, "write", err)
	}
	c.commandsSent.Inc()

	if c.graceDelay > 0 {
		c.sleep(c.graceDelay)
	}

	line, err := c.transport.ReadLine(c.config.ReadTimeout)
	if err != nil {
		return c.fail(reply, start, log, "read", err)
	}

	reply.Response = strings.TrimSpace(line)
	reply.TimedOut = reply.Response == ""
	reply.Duration = time.Since(start)
	c.lastActivity.Store(time.Now())

	if reply.TimedOut {
		c.timeouts.Inc()
		log.Warn("No response before timeout", zap.Duration("timeout", c.config.ReadTimeout))
	} else {
		log.Debug("Response received",
			zap.String("response", reply.Response),
			zap.Duration("duration", reply.Duration),
		)
	}
	return reply, nil
}

func (c *Client) fail(reply Reply, start time.Time, log *zap.Logger, op string, err error) (Reply, error) {
	c.errorCount.Inc()
	c.lastActivity.Store(time.Now())
	reply.Response = ErrorResponse
	reply.Duration = time.Since(start)

	var perr *Error
	if !errors.As(err, &perr) {
		err = TransportFailure(op, err)
	}
	log.Error("Command failed", zap.String("stage", op), zap.Error(err))
	return reply, err
}
