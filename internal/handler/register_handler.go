// internal/handler/register_handler.go
package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"register-terminal/internal/model"
	"register-terminal/internal/protocol"
	"register-terminal/internal/service"
	"register-terminal/internal/utils"
)

// RegisterHandler exposes the terminal service over HTTP
type RegisterHandler struct {
	terminal    *service.TerminalService
	defaultBaud int
	logger      *utils.ServiceLogger
}

// OpenRequest opens a connection. BaudRate falls back to the configured default.
// Field contents are checked by the terminal service so rejected input is logged.
type OpenRequest struct {
	Port     string `json:"port"`
	BaudRate int    `json:"baud_rate"`
}

// ReadRequest reads one register
type ReadRequest struct {
	Address string `json:"address"`
}

// WriteRequest writes one register
type WriteRequest struct {
	Address string `json:"address"`
	Value   string `json:"value"`
}

// RegisterView is a named register as rendered in responses
type RegisterView struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

// NewRegisterHandler creates a new register handler
func NewRegisterHandler(terminal *service.TerminalService, defaultBaud int, logger *zap.Logger) *RegisterHandler {
	if defaultBaud == 0 {
		defaultBaud = 115200
	}
	return &RegisterHandler{
		terminal:    terminal,
		defaultBaud: defaultBaud,
		logger:      utils.NewServiceLogger(logger, "register-handler"),
	}
}

// RegisterRoutes registers connection, register and log routes
func (h *RegisterHandler) RegisterRoutes(router *gin.RouterGroup) {
	connection := router.Group("/connection")
	{
		connection.GET("", h.GetConnection)
		connection.POST("", h.OpenConnection)
		connection.DELETE("", h.CloseConnection)
	}

	registers := router.Group("/registers")
	{
		registers.GET("", h.ListRegisters)
		registers.POST("/read", h.ReadRegister)
		registers.POST("/write", h.WriteRegister)
		registers.POST("/named/:name/read", h.ReadNamedRegister)
	}

	router.GET("/log", h.GetLog)
}

// GetConnection returns the connection status
// @Summary Connection status
// @Tags Connection
// @Produce json
// @Success 200 {object} utils.APIResponse{data=model.ConnectionStatus}
// @Router /connection [get]
func (h *RegisterHandler) GetConnection(c *gin.Context) {
	utils.SuccessResponse(c, http.StatusOK, "Connection status retrieved", h.terminal.Status())
}

// OpenConnection opens the serial connection
// @Summary Open connection
// @Tags Connection
// @Accept json
// @Produce json
// @Param request body OpenRequest true "Port and baud rate"
// @Success 200 {object} utils.APIResponse{data=model.Result}
// @Failure 400 {object} utils.APIResponse
// @Failure 503 {object} utils.APIResponse
// @Router /connection [post]
func (h *RegisterHandler) OpenConnection(c *gin.Context) {
	var req OpenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.BaudRate == 0 {
		req.BaudRate = h.defaultBaud
	}

	result := h.terminal.Open(c.Request.Context(), req.Port, req.BaudRate)
	h.respond(c, result)
}

// CloseConnection closes the serial connection
// @Summary Close connection
// @Tags Connection
// @Produce json
// @Success 200 {object} utils.APIResponse{data=model.Result}
// @Router /connection [delete]
func (h *RegisterHandler) CloseConnection(c *gin.Context) {
	h.respond(c, h.terminal.Close(c.Request.Context()))
}

// ListRegisters returns the named SCB registers
// @Summary List named registers
// @Tags Registers
// @Produce json
// @Success 200 {object} utils.APIResponse{data=[]RegisterView}
// @Router /registers [get]
func (h *RegisterHandler) ListRegisters(c *gin.Context) {
	regs := h.terminal.Registers()
	views := make([]RegisterView, 0, len(regs))
	for _, r := range regs {
		views = append(views, RegisterView{Name: r.Name, Address: protocol.FormatHex(r.Address)})
	}
	utils.SuccessResponse(c, http.StatusOK, "Registers retrieved", views)
}

// ReadRegister reads a register by address
// @Summary Read register
// @Tags Registers
// @Accept json
// @Produce json
// @Param request body ReadRequest true "Hex address"
// @Success 200 {object} utils.APIResponse{data=model.Result}
// @Failure 400 {object} utils.APIResponse
// @Failure 409 {object} utils.APIResponse
// @Failure 502 {object} utils.APIResponse
// @Router /registers/read [post]
func (h *RegisterHandler) ReadRegister(c *gin.Context) {
	var req ReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	h.respond(c, h.terminal.ReadRegister(c.Request.Context(), req.Address))
}

// WriteRegister writes a register
// @Summary Write register
// @Tags Registers
// @Accept json
// @Produce json
// @Param request body WriteRequest true "Hex address and value"
// @Success 200 {object} utils.APIResponse{data=model.Result}
// @Failure 400 {object} utils.APIResponse
// @Failure 409 {object} utils.APIResponse
// @Failure 502 {object} utils.APIResponse
// @Router /registers/write [post]
func (h *RegisterHandler) WriteRegister(c *gin.Context) {
	var req WriteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	h.respond(c, h.terminal.WriteRegister(c.Request.Context(), req.Address, req.Value))
}

// ReadNamedRegister reads an SCB register by name
// @Summary Read named register
// @Tags Registers
// @Produce json
// @Param name path string true "Register name" Enums(CPUID, ICSR, VTOR, AIRCR, SCR, CCR)
// @Success 200 {object} utils.APIResponse{data=model.Result}
// @Failure 404 {object} utils.APIResponse
// @Router /registers/named/{name}/read [post]
func (h *RegisterHandler) ReadNamedRegister(c *gin.Context) {
	h.respond(c, h.terminal.ReadNamed(c.Request.Context(), c.Param("name")))
}

// GetLog returns the most recent log entries
// @Summary Display log
// @Tags Log
// @Produce json
// @Param limit query int false "Maximum number of entries" default(100)
// @Success 200 {object} utils.APIResponse{data=[]model.Result}
// @Router /log [get]
func (h *RegisterHandler) GetLog(c *gin.Context) {
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		l, err := strconv.Atoi(raw)
		if err != nil || l < 0 {
			utils.ErrorResponse(c, http.StatusBadRequest, "limit must be a non-negative integer", err)
			return
		}
		limit = l
	}

	entries := h.terminal.Log(limit)
	utils.SuccessResponse(c, http.StatusOK, "Log retrieved", gin.H{
		"entries": entries,
		"count":   len(entries),
	})
}

func (h *RegisterHandler) respond(c *gin.Context, result *model.Result) {
	if result.Failed() {
		h.logger.Debug("Request returned an error result",
			zap.String("action", string(result.Action)),
			zap.String("kind", string(result.Kind())),
		)
		utils.KindResponse(c, result.Kind(), result.Error.Message, result.Error.Details, result)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, result.Line, result)
}
