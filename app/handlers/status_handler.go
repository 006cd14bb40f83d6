package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"ingest-svc/app/dto"

	"github.com/gin-gonic/gin"
)

// Pinger checks reachability of one backing dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StatusHandler reports service health including backing dependencies.
type StatusHandler struct {
	version string
	db      Pinger
	cache   Pinger
	logger  *slog.Logger
}

// NewStatusHandler creates a new status handler.
func NewStatusHandler(version string, db, cache Pinger, logger *slog.Logger) *StatusHandler {
	return &StatusHandler{version: version, db: db, cache: cache, logger: logger}
}

// Status handles the public health check. Any unreachable dependency turns
// the response into the degraded variant with 503.
func (h *StatusHandler) Status(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	services := map[string]string{
		"database": "ok",
		"cache":    "ok",
	}
	status := "ok"
	code := http.StatusOK

	if err := h.db.Ping(ctx); err != nil {
		h.logger.Warn("database unreachable", "error", err)
		services["database"] = "unavailable"
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	if h.cache != nil {
		if err := h.cache.Ping(ctx); err != nil {
			h.logger.Warn("cache unreachable", "error", err)
			services["cache"] = "unavailable"
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
	}

	respondJSON(c, code, dto.StatusResponse{
		Status:    status,
		Version:   h.version,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Services:  services,
	})
}
