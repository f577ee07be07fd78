// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"register-terminal/internal/config"
	"register-terminal/internal/events"
	"register-terminal/internal/protocol"
	"register-terminal/internal/routes"
	"register-terminal/internal/service"
	"register-terminal/internal/transport"
	"register-terminal/internal/utils"
)

// Application represents the main application
type Application struct {
	config *config.Config
	logger *zap.Logger
	server *http.Server

	transport *transport.Router
	client    *protocol.Client
	eventBus  *events.EventBus
	terminal  *service.TerminalService
	router    *routes.Router
}

func main() {
	flags := pflag.NewFlagSet("register-terminal-server", pflag.ExitOnError)
	config.RegisterFlags(flags)
	flags.Parse(os.Args[1:])

	app, err := NewApplication(flags)
	if err != nil {
		fmt.Printf("Failed to initialize application: %v\n", err)
		os.Exit(1)
	}

	if err := app.Start(); err != nil {
		app.logger.Fatal("Failed to start application", zap.Error(err))
	}
}

// NewApplication creates a new application instance
func NewApplication(flags *pflag.FlagSet) (*Application, error) {
	configPath, _ := flags.GetString("config")
	cfg, err := config.LoadWithFlags(configPath, flags)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := utils.NewLogger(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	serviceLogger := utils.NewServiceLogger(logger, "register-terminal")
	serviceLogger.LogServiceStart(cfg.App.Version, cfg)

	app := &Application{
		config: cfg,
		logger: logger,
	}

	app.initializeTerminal()

	if err := app.initializeServer(); err != nil {
		return nil, fmt.Errorf("failed to initialize server: %w", err)
	}

	return app, nil
}

// initializeTerminal wires transport, client, event bus and terminal service
func (app *Application) initializeTerminal() {
	app.transport = transport.NewDefaultRouter(app.logger, app.config.Serial.DialTimeout)
	app.client = protocol.NewClient(app.transport,
		protocol.WithGraceDelay(app.config.Protocol.GraceDelay),
		protocol.WithLogger(app.logger),
	)

	app.eventBus = events.NewEventBus(app.logger)
	go app.eventBus.Start()

	app.terminal = service.NewTerminalService(app.client, app.eventBus, service.ServiceOptions{
		ReadTimeout: app.config.Serial.ReadTimeout,
		HistorySize: app.config.App.LogHistory,
	}, app.logger)

	app.logger.Info("Terminal initialized",
		zap.Duration("grace_delay", app.config.Protocol.GraceDelay),
		zap.Duration("read_timeout", app.config.Serial.ReadTimeout),
	)
}

// initializeServer sets up HTTP server and routes
func (app *Application) initializeServer() error {
	app.router = routes.NewRouter(app.config, app.logger, app.terminal, app.eventBus)
	handler := app.router.SetupRouter()

	app.server = &http.Server{
		Addr:         app.config.GetServerAddr(),
		Handler:      handler,
		ReadTimeout:  app.config.Server.ReadTimeout,
		WriteTimeout: app.config.Server.WriteTimeout,
		IdleTimeout:  app.config.Server.IdleTimeout,
	}

	app.logger.Info("HTTP server initialized",
		zap.String("address", app.config.GetServerAddr()),
	)
	return nil
}

// openConfiguredPort opens the startup connection if one is configured. A
// failure is logged and the server keeps running so the port can be opened later.
func (app *Application) openConfiguredPort() {
	if app.config.Serial.Port == "" {
		return
	}

	result := app.terminal.Open(context.Background(), app.config.Serial.Port, app.config.Serial.BaudRate)
	if result.Failed() {
		app.logger.Warn("Startup connection failed",
			zap.String("port", app.config.Serial.Port),
			zap.String("kind", string(result.Kind())),
			zap.String("message", result.Error.Message),
		)
		return
	}
	app.logger.Info(result.Line)
}

// waitForShutdown waits for shutdown signal and performs graceful shutdown
func (app *Application) waitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	app.logger.Info("Received shutdown signal", zap.String("signal", sig.String()))

	app.shutdown()
}

// shutdown performs graceful shutdown
func (app *Application) shutdown() {
	serviceLogger := utils.NewServiceLogger(app.logger, "register-terminal")
	serviceLogger.LogServiceStop("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	app.router.Shutdown()
	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("HTTP server shutdown error", zap.Error(err))
	} else {
		app.logger.Info("HTTP server stopped")
	}

	if app.client.IsConnected() {
		app.terminal.Close(ctx)
	}
	app.eventBus.Stop()

	app.logger.Info("Application shutdown completed")

	if err := utils.CloseLogger(app.logger); err != nil {
		fmt.Printf("Logger close error: %v\n", err)
	}
}

// Start serves HTTP until a shutdown signal arrives
func (app *Application) Start() error {
	app.openConfiguredPort()

	go func() {
		app.logger.Info("Starting HTTP server",
			zap.String("address", app.server.Addr),
		)

		if err := app.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.logger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	app.waitForShutdown()
	return nil
}
