// internal/service/terminal_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"register-terminal/internal/model"
	"register-terminal/internal/protocol"
	"register-terminal/internal/utils"
)

// Display texts shared by all front-ends
const (
	msgPortRequired   = "Please enter a COM port (e.g., COM5)."
	msgNotOpen        = "Serial port not open."
	msgInvalidAddress = "Invalid address format. Use hex (e.g., 0x48000010)."
	msgInvalidWrite   = "Invalid address or value format. Use hex (e.g., 0x48000010)."
	msgNoResponse     = "(no response)"
)

// Publisher receives every result the service produces
type Publisher interface {
	PublishResult(result *model.Result)
}

// RegisterClient is the protocol client the service drives
type RegisterClient interface {
	Open(cfg protocol.ConnectionConfig) error
	Close() error
	IsConnected() bool
	Config() protocol.ConnectionConfig
	Stats() protocol.Stats
	Transact(ctx context.Context, cmd protocol.Command) (protocol.Reply, error)
}

// TerminalService is the contract front-ends call into. Every method returns a
// Result that is also appended to the in-memory log and published.
type TerminalService struct {
	client      RegisterClient
	publisher   Publisher
	history     *History
	readTimeout time.Duration
	logger      *utils.ServiceLogger
}

// ServiceOptions configures a TerminalService
type ServiceOptions struct {
	ReadTimeout time.Duration
	HistorySize int
}

// NewTerminalService creates a terminal service. publisher may be nil.
func NewTerminalService(client RegisterClient, publisher Publisher, opts ServiceOptions, logger *zap.Logger) *TerminalService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = protocol.DefaultReadTimeout
	}
	if opts.HistorySize <= 0 {
		opts.HistorySize = 500
	}
	return &TerminalService{
		client:      client,
		publisher:   publisher,
		history:     NewHistory(opts.HistorySize),
		readTimeout: opts.ReadTimeout,
		logger:      utils.NewServiceLogger(logger, "terminal-service"),
	}
}

// Open connects to port at baud using the configured read timeout
func (s *TerminalService) Open(ctx context.Context, port string, baud int) *model.Result {
	result := model.NewResult(model.ActionOpen)
	port = strings.TrimSpace(port)
	result.Port = port

	if port == "" {
		return s.finish(result, fail(protocol.KindInvalidConfig, msgPortRequired, nil))
	}

	cfg := protocol.ConnectionConfig{Port: port, BaudRate: baud, ReadTimeout: s.readTimeout}
	if err := s.client.Open(cfg); err != nil {
		kind := protocol.KindOf(err)
		msg := fmt.Sprintf("Failed to open serial port: %v", err)
		if kind == protocol.KindInvalidConfig {
			msg = fmt.Sprintf("Invalid connection settings: %v", err)
		}
		if kind == "" {
			kind = protocol.KindPortUnavailable
		}
		return s.finish(result, fail(kind, msg, err))
	}

	result.Success = true
	result.Line = fmt.Sprintf("Connected to %s at %d baud.", port, baud)
	return s.finish(result, nil)
}

// Close disconnects. Closing while disconnected succeeds.
func (s *TerminalService) Close(ctx context.Context) *model.Result {
	result := model.NewResult(model.ActionClose)
	wasOpen := s.client.IsConnected()
	result.Port = s.client.Config().Port

	_ = s.client.Close()

	result.Success = true
	result.Line = "Disconnected."
	if !wasOpen {
		result.Line = "Not connected."
	}
	return s.finish(result, nil)
}

// ReadRegister reads the register whose address is given as hex text
func (s *TerminalService) ReadRegister(ctx context.Context, addressHex string) *model.Result {
	result := model.NewResult(model.ActionRead)

	address, err := protocol.ParseHex(addressHex)
	if err != nil {
		return s.finish(result, fail(protocol.KindInvalidFormat, msgInvalidAddress, err))
	}

	return s.exchange(ctx, result, protocol.ReadCommand(address), func(resp string) string {
		return fmt.Sprintf("Read %s: %s", protocol.FormatHex(address), resp)
	})
}

// WriteRegister writes the hex value text to the hex address text
func (s *TerminalService) WriteRegister(ctx context.Context, addressHex, valueHex string) *model.Result {
	result := model.NewResult(model.ActionWrite)

	address, err := protocol.ParseHex(addressHex)
	if err != nil {
		return s.finish(result, fail(protocol.KindInvalidFormat, msgInvalidWrite, err))
	}
	value, err := protocol.ParseHex(valueHex)
	if err != nil {
		return s.finish(result, fail(protocol.KindInvalidFormat, msgInvalidWrite, err))
	}

	return s.exchange(ctx, result, protocol.WriteCommand(address, value), func(resp string) string {
		return fmt.Sprintf("Wrote %s to %s: %s", protocol.FormatHex(value), protocol.FormatHex(address), resp)
	})
}

// ReadNamed reads one of the SCB registers by name
func (s *TerminalService) ReadNamed(ctx context.Context, name string) *model.Result {
	result := model.NewResult(model.ActionReadNamed)

	reg, err := protocol.LookupRegister(name)
	if err != nil {
		msg := fmt.Sprintf("Unknown register: %s", strings.TrimSpace(name))
		return s.finish(result, fail(protocol.KindUnknownRegister, msg, err))
	}
	result.Register = reg.Name

	return s.exchange(ctx, result, protocol.ReadCommand(reg.Address), func(resp string) string {
		return fmt.Sprintf("%s: %s", reg.Name, resp)
	})
}

// Registers returns the SCB register table
func (s *TerminalService) Registers() []protocol.NamedRegister {
	return protocol.NamedRegisters()
}

// Status describes the current connection
func (s *TerminalService) Status() model.ConnectionStatus {
	stats := s.client.Stats()
	status := model.ConnectionStatus{
		Connected:    stats.IsConnected,
		GraceDelay:   stats.GraceDelay,
		CommandsSent: stats.CommandsSent,
		Timeouts:     stats.Timeouts,
		ErrorCount:   stats.ErrorCount,
	}
	if stats.IsConnected {
		cfg := s.client.Config()
		status.Port = cfg.Port
		status.BaudRate = cfg.BaudRate
		status.ReadTimeout = cfg.ReadTimeout
	}
	if !stats.LastActivity.IsZero() {
		last := stats.LastActivity
		status.LastActivity = &last
	}
	return status
}

// IsConnected reports whether a connection is open
func (s *TerminalService) IsConnected() bool {
	return s.client.IsConnected()
}

// Log returns up to limit most recent results, oldest first
func (s *TerminalService) Log(limit int) []*model.Result {
	return s.history.Last(limit)
}

func (s *TerminalService) exchange(ctx context.Context, result *model.Result, cmd protocol.Command, display func(string) string) *model.Result {
	result.Command = cmd.Text()
	cmdLog := utils.NewCommandLogger(s.logger.Logger, string(result.Action), result.ID.String())
	cmdLog.Start(zap.String("command", result.Command))

	reply, err := s.client.Transact(ctx, cmd)
	result.DurationMs = reply.Duration.Milliseconds()

	if err != nil {
		cmdLog.Error(err, zap.String("command", result.Command))
		kind := protocol.KindOf(err)
		switch {
		case kind == protocol.KindNotConnected:
			return s.finish(result, fail(kind, msgNotOpen, err))
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return s.finish(result, fail(protocol.KindTransport, fmt.Sprintf("Command not sent: %v", err), err))
		}
		if kind == "" {
			kind = protocol.KindTransport
		}
		result.Response = reply.Response
		result.Line = display(reply.Response)
		return s.finish(result, fail(kind, fmt.Sprintf("Serial error: %v", err), err))
	}

	result.Success = true
	result.Response = reply.Response
	result.TimedOut = reply.TimedOut
	shown := reply.Response
	if reply.TimedOut {
		shown = msgNoResponse
	}
	result.Line = display(shown)
	cmdLog.Success(zap.String("response", reply.Response), zap.Bool("timed_out", reply.TimedOut))
	return s.finish(result, nil)
}

func fail(kind protocol.ErrorKind, msg string, err error) *model.ResultError {
	re := &model.ResultError{Kind: kind, Message: msg}
	if err != nil {
		re.Details = err.Error()
	}
	return re
}

func (s *TerminalService) finish(result *model.Result, resErr *model.ResultError) *model.Result {
	if resErr != nil {
		result.Success = false
		result.Error = resErr
		result.Alert = true
		if result.Line == "" {
			result.Line = resErr.Message
		}
		s.logger.Warn("Request failed",
			zap.String("action", string(result.Action)),
			zap.String("kind", string(resErr.Kind)),
			zap.String("message", resErr.Message),
		)
	}

	s.history.Add(result)
	if s.publisher != nil {
		s.publisher.PublishResult(result)
	}
	return result
}
