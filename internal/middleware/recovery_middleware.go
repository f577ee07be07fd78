// internal/middleware/recovery_middleware.go
package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"register-terminal/internal/utils"
)

// PanicKind tags requests that ended in a recovered panic
const PanicKind = "PANIC"

// RecoveryMiddleware turns a panicking handler into a 500 envelope carrying the request ID
func RecoveryMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		c.Set(utils.ErrorKindKey, PanicKind)
		logger.Error("Panic recovered",
			zap.Any("panic", recovered),
			zap.String("path", c.Request.URL.Path),
			zap.String("method", c.Request.Method),
			zap.String("request_id", c.GetString(utils.RequestIDKey)),
			zap.String("route", c.FullPath()),
			zap.Stack("stacktrace"),
		)

		requestID := c.GetString(utils.RequestIDKey)
		utils.ErrorResponse(c, http.StatusInternalServerError, "Internal server error",
			fmt.Errorf("request %s failed on %s %s", requestID, c.Request.Method, c.FullPath()))
	})
}
