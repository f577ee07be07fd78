// internal/utils/response.go
package utils

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"register-terminal/internal/protocol"
)

// RequestIDKey is the gin context key holding the request ID
const RequestIDKey = "request_id"

// ErrorKindKey is the gin context key holding the error kind of a failed request
const ErrorKindKey = "error_kind"

// APIResponse represents standard API response structure
type APIResponse struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Error     *APIError   `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	RequestID string      `json:"request_id,omitempty"`
}

// APIError represents error information
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// SuccessResponse sends a successful response
func SuccessResponse(c *gin.Context, statusCode int, message string, data interface{}) {
	response := APIResponse{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now(),
		RequestID: getRequestID(c),
	}

	c.JSON(statusCode, response)
}

// ErrorResponse sends an error response
func ErrorResponse(c *gin.Context, statusCode int, message string, err error) {
	apiError := &APIError{
		Code:    getErrorCode(statusCode),
		Message: message,
	}

	if err != nil {
		apiError.Details = err.Error()
	}

	response := APIResponse{
		Success:   false,
		Message:   message,
		Error:     apiError,
		Timestamp: time.Now(),
		RequestID: getRequestID(c),
	}

	c.JSON(statusCode, response)
}

// KindResponse sends an error response for a protocol error kind. data is
// still attached so clients can show e.g. the ERROR response of a failed exchange.
func KindResponse(c *gin.Context, kind protocol.ErrorKind, message, details string, data interface{}) {
	c.Set(ErrorKindKey, string(kind))
	response := APIResponse{
		Success: false,
		Message: message,
		Data:    data,
		Error: &APIError{
			Code:    string(kind),
			Message: message,
			Details: details,
		},
		Timestamp: time.Now(),
		RequestID: getRequestID(c),
	}

	c.JSON(StatusForKind(kind), response)
}

// StatusForKind maps a protocol error kind to an HTTP status
func StatusForKind(kind protocol.ErrorKind) int {
	switch kind {
	case protocol.KindInvalidFormat, protocol.KindInvalidConfig:
		return http.StatusBadRequest
	case protocol.KindUnknownRegister:
		return http.StatusNotFound
	case protocol.KindNotConnected:
		return http.StatusConflict
	case protocol.KindPortUnavailable:
		return http.StatusServiceUnavailable
	case protocol.KindTransport:
		return http.StatusBadGateway
	case protocol.KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// getRequestID extracts request ID from context
func getRequestID(c *gin.Context) string {
	if requestID, exists := c.Get(RequestIDKey); exists {
		if id, ok := requestID.(string); ok {
			return id
		}
	}
	return ""
}

// getErrorCode returns error code based on HTTP status
func getErrorCode(statusCode int) string {
	switch statusCode {
	case http.StatusBadRequest:
		return "BAD_REQUEST"
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusConflict:
		return "CONFLICT"
	case http.StatusInternalServerError:
		return "INTERNAL_SERVER_ERROR"
	case http.StatusBadGateway:
		return "BAD_GATEWAY"
	case http.StatusServiceUnavailable:
		return "SERVICE_UNAVAILABLE"
	default:
		return "UNKNOWN_ERROR"
	}
}
