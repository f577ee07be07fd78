// internal/routes/routes.go
package routes

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"register-terminal/internal/config"
	"register-terminal/internal/events"
	"register-terminal/internal/handler"
	"register-terminal/internal/middleware"
	"register-terminal/internal/service"
	"register-terminal/internal/utils"
)

// Router holds all dependencies for routing
type Router struct {
	config    *config.Config
	logger    *zap.Logger
	terminal  *service.TerminalService
	eventBus  *events.EventBus
	wsHandler *handler.WebSocketHandler
}

// NewRouter creates a new router instance
func NewRouter(
	config *config.Config,
	logger *zap.Logger,
	terminal *service.TerminalService,
	eventBus *events.EventBus,
) *Router {
	return &Router{
		config:   config,
		logger:   logger,
		terminal: terminal,
		eventBus: eventBus,
	}
}

// SetupRouter creates and configures the Gin router
func (r *Router) SetupRouter() *gin.Engine {
	switch {
	case r.config.App.Environment == "test":
		gin.SetMode(gin.TestMode)
	case r.config.IsProduction():
		gin.SetMode(gin.ReleaseMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()

	r.addMiddleware(router)
	r.addRoutes(router)

	return router
}

// Shutdown disconnects WebSocket clients
func (r *Router) Shutdown() {
	if r.wsHandler != nil {
		r.wsHandler.Stop()
	}
}

// addMiddleware adds middleware to the router
func (r *Router) addMiddleware(router *gin.Engine) {
	router.Use(middleware.RecoveryMiddleware(r.logger))
	router.Use(middleware.RequestIDMiddleware())

	serviceLogger := utils.NewServiceLogger(r.logger, "http-server")
	router.Use(middleware.LoggingMiddleware(serviceLogger))

	router.Use(middleware.CORSMiddleware(&r.config.Security))

	r.logger.Debug("Middleware configured")
}

// addRoutes sets up all application routes
func (r *Router) addRoutes(router *gin.Engine) {
	r.wsHandler = handler.NewWebSocketHandler(r.terminal, r.eventBus, r.config.Security.AllowedOrigins, r.logger)
	healthHandler := handler.NewHealthHandler(r.terminal, r.wsHandler, r.config, r.logger)
	registerHandler := handler.NewRegisterHandler(r.terminal, r.config.Serial.BaudRate, r.logger)

	healthHandler.RegisterRoutes(&router.RouterGroup)

	apiV1 := router.Group("/api/v1")
	registerHandler.RegisterRoutes(apiV1)

	r.wsHandler.RegisterRoutes(router.Group("/ws"))

	r.logger.Info("All routes configured successfully")
}
