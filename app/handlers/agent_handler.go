package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"ingest-svc/app/clients"
	"ingest-svc/app/domains"
	"ingest-svc/app/dto"
	"ingest-svc/app/services"
	"ingest-svc/app/utils"

	"github.com/gin-gonic/gin"
)

// respondJSON sends a JSON response
func respondJSON(c *gin.Context, status int, data interface{}) {
	c.JSON(status, data)
}

// respondError sends an error response
func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, dto.ErrorResponse{Error: message})
}

// respondInternal logs the failure with request context and returns a generic
// message. Internal detail never reaches the caller.
func respondInternal(c *gin.Context, logger *slog.Logger, msg string, err error) {
	logger.Error(msg,
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"origin", c.ClientIP(),
		"error", err,
	)
	respondError(c, http.StatusInternalServerError, "internal server error")
}

// AgentHandler handles agent check-ins and listing.
type AgentHandler struct {
	storage clients.StorageAdapter
	events  *services.EventService
	logger  *slog.Logger
}

// NewAgentHandler creates a new agent handler.
func NewAgentHandler(storage clients.StorageAdapter, events *services.EventService, logger *slog.Logger) *AgentHandler {
	return &AgentHandler{storage: storage, events: events, logger: logger}
}

// Beacon handles an agent check-in. First contact inserts the agent; every
// later beacon from the same identifier updates it in place, replaces the
// metadata document wholesale and forces active=true.
func (h *AgentHandler) Beacon(c *gin.Context) {
	var req dto.BeaconRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if errs := utils.ValidateStruct(&req); errs != nil {
		respondError(c, http.StatusBadRequest, errs.Error())
		return
	}

	ctx := c.Request.Context()

	metadata := req.Metadata
	if metadata == nil {
		metadata = make(map[string]interface{})
	}

	agent, err := h.storage.UpsertAgent(ctx, domains.BeaconUpdate{
		AgentID:  req.AgentID,
		Hostname: req.Hostname,
		Platform: req.Platform,
		Version:  req.Version,
		Origin:   c.ClientIP(),
		Metadata: metadata,
	})
	if err != nil {
		respondInternal(c, h.logger, "failed to upsert agent", err)
		return
	}

	if err := h.storage.RecordBeacon(ctx, req.AgentID, c.ClientIP(), metadata); err != nil {
		respondInternal(c, h.logger, "failed to record beacon", err)
		return
	}

	h.events.PublishBeacon(agent)

	respondJSON(c, http.StatusOK, dto.BeaconResponse{
		Success:   true,
		AgentID:   agent.AgentID,
		Timestamp: agent.LastSeenAt.UTC().Format(time.RFC3339),
	})
}

// ListAgents handles the agent listing, last-seen descending.
func (h *AgentHandler) ListAgents(c *gin.Context) {
	var req dto.ListAgentsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid query parameters")
		return
	}

	agents, err := h.storage.ListAgents(c.Request.Context(), req.ActiveOnly)
	if err != nil {
		respondInternal(c, h.logger, "failed to list agents", err)
		return
	}
	if agents == nil {
		agents = []domains.Agent{}
	}

	respondJSON(c, http.StatusOK, dto.ListAgentsResponse{
		Agents: agents,
		Count:  len(agents),
	})
}
