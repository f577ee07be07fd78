// cmd/console/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"register-terminal/internal/config"
	"register-terminal/internal/console"
	"register-terminal/internal/protocol"
	"register-terminal/internal/service"
	"register-terminal/internal/transport"
	"register-terminal/internal/utils"
)

func main() {
	os.Exit(run())
}

func run() int {
	flags := pflag.NewFlagSet("register-terminal", pflag.ExitOnError)
	config.RegisterFlags(flags)
	flags.Parse(os.Args[1:])

	configPath, _ := flags.GetString("config")
	cfg, err := config.LoadWithFlags(configPath, flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		return 1
	}

	// stdout belongs to the prompt
	if cfg.Logging.Output == "stdout" && os.Getenv(config.EnvPrefix+"_LOGGING_OUTPUT") == "" {
		cfg.Logging.Output = "file"
	}
	logger, err := utils.NewLogger(&cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		return 1
	}
	defer utils.CloseLogger(logger)
	defer utils.LogPanic(logger)

	router := transport.NewDefaultRouter(logger, cfg.Serial.DialTimeout)
	client := protocol.NewClient(router,
		protocol.WithGraceDelay(cfg.Protocol.GraceDelay),
		protocol.WithLogger(logger),
	)
	terminal := service.NewTerminalService(client, nil, service.ServiceOptions{
		ReadTimeout: cfg.Serial.ReadTimeout,
		HistorySize: cfg.App.LogHistory,
	}, logger)
	defer client.Close()

	// Ctrl-C at the prompt is read by liner; these cover signals sent from outside
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Serial.Port != "" {
		result := terminal.Open(ctx, cfg.Serial.Port, cfg.Serial.BaudRate)
		if result.Failed() {
			fmt.Println(result.Error.Message)
			return 1
		}
		fmt.Println(result.Line)
	}

	repl := console.New(terminal, os.Stdout, console.Options{
		Prompt:      cfg.Console.Prompt,
		HistoryFile: cfg.Console.HistoryFile,
		DefaultBaud: cfg.Serial.BaudRate,
	}, logger)

	err = repl.Run(ctx)
	terminal.Close(context.Background())
	if err != nil {
		logger.Error("Console stopped", zap.Error(err))
		fmt.Fprintf(os.Stderr, "console error: %v\n", err)
		return 1
	}
	return 0
}
