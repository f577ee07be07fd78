// internal/handler/health_handler.go
package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"register-terminal/internal/config"
	"register-terminal/internal/service"
	"register-terminal/internal/utils"
)

// StreamStats reports the clients attached to the live log stream
type StreamStats interface {
	GetConnectionStats() *ConnectionStats
}

// HealthHandler handles health check requests
type HealthHandler struct {
	terminal  *service.TerminalService
	streams   StreamStats
	config    *config.Config
	startedAt time.Time
	logger    *utils.ServiceLogger
}

// NewHealthHandler creates a new health handler. streams may be nil.
func NewHealthHandler(terminal *service.TerminalService, streams StreamStats, config *config.Config, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		terminal:  terminal,
		streams:   streams,
		config:    config,
		startedAt: time.Now(),
		logger:    utils.NewServiceLogger(logger, "health-handler"),
	}
}

// RegisterRoutes registers health check routes
func (h *HealthHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/health", h.HealthCheck)
	router.GET("/ready", h.ReadinessCheck)
	router.GET("/live", h.LivenessCheck)
}

// HealthCheck reports service health. A closed serial connection is reported
// but does not make the service unhealthy.
// @Summary Health check
// @Tags Health
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /health [get]
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	status := h.terminal.Status()

	health := &HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Service:   h.config.App.Name,
		Version:   h.config.App.Version,
		Uptime:    time.Since(h.startedAt).Round(time.Second).String(),
		Checks:    make(map[string]CheckResult),
	}

	serial := CheckResult{
		Status:  "disconnected",
		Message: "Serial port not open",
		Data: map[string]interface{}{
			"commands_sent": status.CommandsSent,
			"timeouts":      status.Timeouts,
			"errors":        status.ErrorCount,
		},
	}
	if status.Connected {
		serial.Status = "connected"
		serial.Message = "Serial port open"
		serial.Data["port"] = status.Port
		serial.Data["baud_rate"] = status.BaudRate
	}
	health.Checks["serial"] = serial

	if h.streams != nil {
		stats := h.streams.GetConnectionStats()
		clients := make([]string, 0, len(stats.Clients))
		for _, client := range stats.Clients {
			clients = append(clients, client.ID)
		}
		health.Checks["log_stream"] = CheckResult{
			Status: "ok",
			Data: map[string]interface{}{
				"total_connections": stats.TotalConnections,
				"clients":           clients,
			},
		}
	}

	c.JSON(http.StatusOK, health)
}

// ReadinessCheck is ready once a connection is open
// @Summary Readiness check
// @Tags Health
// @Produce json
// @Success 200 {object} object{status=string,timestamp=string}
// @Failure 503 {object} object{status=string,reason=string}
// @Router /ready [get]
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	if !h.terminal.IsConnected() {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": "serial port not open",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "ready",
		"timestamp": time.Now(),
	})
}

// LivenessCheck for liveness probes
// @Summary Liveness check
// @Tags Health
// @Produce json
// @Success 200 {object} object{status=string,timestamp=string}
// @Router /live [get]
func (h *HealthHandler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "alive",
		"timestamp": time.Now(),
	})
}

// HealthResponse represents health check response
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Service   string                 `json:"service"`
	Version   string                 `json:"version"`
	Uptime    string                 `json:"uptime"`
	Checks    map[string]CheckResult `json:"checks"`
}

// CheckResult represents individual check result
type CheckResult struct {
	Status  string                 `json:"status"`
	Message string                 `json:"message,omitempty"`
	Data    map[string]interface{} `json:"data,omitempty"`
}
