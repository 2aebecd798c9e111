package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// RequestLogger is a Gin middleware that logs every status API request
// with its status code and latency.
func RequestLogger(logger *slog.Logger) gin.HandlerFunc {
	logger = logger.With("component", "http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", status,
			"latency_ms", time.Since(start).Milliseconds(),
			"remote", c.ClientIP(),
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "error", c.Errors.String())
		}

		// only server errors reach the log channel at the default level
		if status >= http.StatusInternalServerError {
			logger.Warn("status_api_request", attrs...)
			return
		}
		logger.Debug("status_api_request", attrs...)
	}
}

// RequireGET rejects anything but GET and HEAD. The status API is read-only.
func RequireGET() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
			c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "status API is read-only"})
			c.Abort()
			return
		}
		c.Next()
	}
}
