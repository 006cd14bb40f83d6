package middleware

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
)

// RequestLogger logs one line per request with the context required for
// debugging: method, path, status, origin and latency. Secret material is
// never logged.
func RequestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"origin", c.ClientIP(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}
