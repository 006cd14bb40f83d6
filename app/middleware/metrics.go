package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ingest_http_requests_total",
		Help: "HTTP requests processed, by method, route and status.",
	}, []string{"method", "path", "status"})

	rateLimitedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ingest_rate_limited_total",
		Help: "Requests rejected by the rate limiter.",
	})

	authFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ingest_auth_failures_total",
		Help: "Requests rejected for missing or invalid credentials.",
	})
)

func init() {
	prometheus.MustRegister(requestsTotal, rateLimitedTotal, authFailuresTotal)
}

// Metrics counts every request by method, matched route and response status.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		requestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
	}
}
