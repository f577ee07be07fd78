// internal/console/console.go
package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/peterh/liner"
	"go.uber.org/zap"

	"register-terminal/internal/model"
	"register-terminal/internal/protocol"
)

const usageLine = "Invalid command. Use: read 0xADDR or write 0xADDR 0xVALUE"

// Terminal is the subset of the terminal service the console drives
type Terminal interface {
	Open(ctx context.Context, port string, baud int) *model.Result
	Close(ctx context.Context) *model.Result
	ReadRegister(ctx context.Context, addressHex string) *model.Result
	WriteRegister(ctx context.Context, addressHex, valueHex string) *model.Result
	ReadNamed(ctx context.Context, name string) *model.Result
	Registers() []protocol.NamedRegister
	Status() model.ConnectionStatus
}

// Options configures a Console
type Options struct {
	Prompt      string
	HistoryFile string
	DefaultBaud int
}

type command struct {
	Name        string
	Usage       string
	Description string
	MinArgs     int
	MaxArgs     int
	Handler     func(ctx context.Context, c *Console, args []string)
}

var commands = map[string]command{
	"open": {
		Name: "open", Usage: "open <port> [baud]", Description: "open a serial port (COM5, /dev/ttyUSB0, tcp://host:port)",
		MinArgs: 1, MaxArgs: 2, Handler: openCommand,
	},
	"close": {
		Name: "close", Usage: "close", Description: "close the serial port",
		Handler: func(ctx context.Context, c *Console, _ []string) { c.show(c.terminal.Close(ctx)) },
	},
	"read": {
		Name: "read", Usage: "read 0xADDR", Description: "read a register",
		MinArgs: 1, MaxArgs: 1,
		Handler: func(ctx context.Context, c *Console, args []string) { c.show(c.terminal.ReadRegister(ctx, args[0])) },
	},
	"write": {
		Name: "write", Usage: "write 0xADDR 0xVALUE", Description: "write a register",
		MinArgs: 2, MaxArgs: 2,
		Handler: func(ctx context.Context, c *Console, args []string) {
			c.show(c.terminal.WriteRegister(ctx, args[0], args[1]))
		},
	},
	"scb": {
		Name: "scb", Usage: "scb NAME", Description: "read a System Control Block register by name",
		MinArgs: 1, MaxArgs: 1,
		Handler: func(ctx context.Context, c *Console, args []string) { c.show(c.terminal.ReadNamed(ctx, args[0])) },
	},
	"regs": {
		Name: "regs", Usage: "regs", Description: "list the named registers",
		Handler: regsCommand,
	},
	"status": {
		Name: "status", Usage: "status", Description: "show connection status",
		Handler: statusCommand,
	},
}

// Console is an interactive register terminal
type Console struct {
	terminal Terminal
	out      io.Writer
	opts     Options
	logger   *zap.Logger
}

// New creates a console writing to out
func New(terminal Terminal, out io.Writer, opts Options, logger *zap.Logger) *Console {
	if opts.Prompt == "" {
		opts.Prompt = ">> "
	}
	if opts.DefaultBaud == 0 {
		opts.DefaultBaud = 115200
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Console{
		terminal: terminal,
		out:      out,
		opts:     opts,
		logger:   logger.With(zap.String("component", "console")),
	}
}

// lineReader is the part of liner.State the prompt loop uses
type lineReader interface {
	Prompt(prompt string) (string, error)
	AppendHistory(item string)
}

type inputLine struct {
	text string
	err  error
}

// Run reads commands until exit, Ctrl-C, Ctrl-D or ctx is done
func (c *Console) Run(ctx context.Context) error {
	shell := liner.NewLiner()
	defer shell.Close()

	shell.SetCtrlCAborts(true)
	shell.SetCompleter(c.Complete)

	if c.opts.HistoryFile != "" {
		if f, err := os.Open(c.opts.HistoryFile); err == nil {
			shell.ReadHistory(f)
			f.Close()
		}
	}

	fmt.Fprintln(c.out, "Type \"help\" for commands, Ctrl-D to quit.")
	err := c.loop(ctx, shell)

	if c.opts.HistoryFile != "" {
		if f, ferr := os.Create(c.opts.HistoryFile); ferr == nil {
			shell.WriteHistory(f)
			f.Close()
		} else {
			c.logger.Warn("Failed to save history", zap.String("file", c.opts.HistoryFile), zap.Error(ferr))
		}
	}
	return err
}

// loop prompts until the user leaves or ctx is done. Prompt blocks on the
// terminal, so it runs in its own goroutine and is abandoned on cancellation.
func (c *Console) loop(ctx context.Context, reader lineReader) error {
	for {
		lines := make(chan inputLine, 1)
		go func() {
			text, err := reader.Prompt(c.opts.Prompt)
			lines <- inputLine{text: text, err: err}
		}()

		var line inputLine
		select {
		case <-ctx.Done():
			c.logger.Info("Console interrupted", zap.Error(ctx.Err()))
			fmt.Fprintln(c.out, "\nExiting...")
			return nil
		case line = <-lines:
		}

		if errors.Is(line.err, liner.ErrPromptAborted) || errors.Is(line.err, io.EOF) {
			fmt.Fprintln(c.out, "\nExiting...")
			return nil
		}
		if line.err != nil {
			return fmt.Errorf("failed to read input: %w", line.err)
		}

		input := strings.TrimSpace(line.text)
		if input == "" {
			continue
		}
		reader.AppendHistory(input)

		if c.Execute(ctx, input) {
			return nil
		}
	}
}

// Execute runs one input line and reports whether the console should exit
func (c *Console) Execute(ctx context.Context, input string) bool {
	tokens := strings.Fields(input)
	if len(tokens) == 0 {
		return false
	}
	name := strings.ToLower(tokens[0])
	args := tokens[1:]

	switch name {
	case "exit", "quit":
		fmt.Fprintln(c.out, "Exiting...")
		return true
	case "help":
		c.help()
		return false
	}

	cmd, ok := commands[name]
	if !ok {
		if _, err := protocol.LookupRegister(tokens[0]); err == nil && len(args) == 0 {
			c.show(c.terminal.ReadNamed(ctx, tokens[0]))
			return false
		}
		fmt.Fprintln(c.out, usageLine)
		return false
	}
	if len(args) < cmd.MinArgs || len(args) > cmd.MaxArgs {
		fmt.Fprintf(c.out, "usage: %s\n", cmd.Usage)
		return false
	}

	c.logger.Debug("Executing command", zap.String("command", name), zap.Strings("args", args))
	cmd.Handler(ctx, c, args)
	return false
}

// Complete suggests command and register names for the line typed so far
func (c *Console) Complete(line string) []string {
	lower := strings.ToLower(line)
	var out []string

	if strings.HasPrefix(lower, "scb ") {
		prefix := strings.TrimSpace(lower[len("scb "):])
		for _, r := range c.terminal.Registers() {
			if strings.HasPrefix(strings.ToLower(r.Name), prefix) {
				out = append(out, "scb "+r.Name)
			}
		}
		return out
	}
	if strings.Contains(lower, " ") {
		return nil
	}

	for _, name := range commandNames() {
		if strings.HasPrefix(name, lower) {
			out = append(out, name)
		}
	}
	for _, r := range c.terminal.Registers() {
		if strings.HasPrefix(strings.ToLower(r.Name), lower) {
			out = append(out, r.Name)
		}
	}
	return out
}

// show prints a result the way the desktop log rendered it
func (c *Console) show(result *model.Result) {
	if !result.Failed() {
		fmt.Fprintln(c.out, result.Line)
		return
	}
	if result.Response != "" {
		fmt.Fprintln(c.out, result.Line)
	}
	fmt.Fprintf(c.out, "Error: %s\n", result.Error.Message)
}

func (c *Console) help() {
	names := append(commandNames(), "help", "exit")
	sort.Strings(names)
	for _, name := range names {
		switch name {
		case "help":
			fmt.Fprintf(c.out, "  %-24s %s\n", "help", "show this help")
		case "exit":
			fmt.Fprintf(c.out, "  %-24s %s\n", "exit | quit", "leave the console")
		default:
			cmd := commands[name]
			fmt.Fprintf(c.out, "  %-24s %s\n", cmd.Usage, cmd.Description)
		}
	}
	fmt.Fprintf(c.out, "  %-24s %s\n", "NAME", "read a named register, e.g. CPUID")
}

func commandNames() []string {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func openCommand(ctx context.Context, c *Console, args []string) {
	baud := c.opts.DefaultBaud
	if len(args) == 2 {
		b, err := strconv.Atoi(args[1])
		if err != nil {
			fmt.Fprintf(c.out, "Error: invalid baud rate %q\n", args[1])
			return
		}
		baud = b
	}
	c.show(c.terminal.Open(ctx, args[0], baud))
}

func regsCommand(_ context.Context, c *Console, _ []string) {
	for _, r := range c.terminal.Registers() {
		fmt.Fprintf(c.out, "  %-6s %s\n", r.Name, protocol.FormatHex(r.Address))
	}
}

func statusCommand(_ context.Context, c *Console, _ []string) {
	status := c.terminal.Status()
	if !status.Connected {
		fmt.Fprintln(c.out, "Not connected.")
	} else {
		fmt.Fprintf(c.out, "Connected to %s at %d baud (timeout %s).\n", status.Port, status.BaudRate, status.ReadTimeout)
	}
	fmt.Fprintf(c.out, "Commands sent: %d, timeouts: %d, errors: %d\n", status.CommandsSent, status.Timeouts, status.ErrorCount)
}
