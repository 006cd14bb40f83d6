package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"ingest-svc/app/dto"
	"ingest-svc/app/ratelimit"

	"github.com/gin-gonic/gin"
)

// RateLimit bounds requests per client IP within the limiter's window. It
// runs before auth so unauthenticated endpoints are bounded too, and its
// rejection does not reveal whether auth would also have failed.
//
// On limiter backend errors the middleware fails open: the limiter is a
// secondary dependency and must not take down ingestion. Every pass-through
// is logged at WARN so the condition is alertable.
func RateLimit(limiter ratelimit.Limiter, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		decision, err := limiter.Allow(c.Request.Context(), c.ClientIP())
		if err != nil {
			logger.Warn("rate limiter unavailable, failing open",
				"client", c.ClientIP(), "path", c.Request.URL.Path, "error", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(decision.Reset.Unix(), 10))

		if !decision.Allowed {
			retryAfter := int(time.Until(decision.Reset).Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			rateLimitedTotal.Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, dto.ErrorResponse{
				Error: "rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}
