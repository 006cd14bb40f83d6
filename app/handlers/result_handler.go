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
	"github.com/google/uuid"
)

// ResultHandler handles finding submission and querying.
type ResultHandler struct {
	storage clients.StorageAdapter
	events  *services.EventService
	logger  *slog.Logger
}

// NewResultHandler creates a new result handler.
func NewResultHandler(storage clients.StorageAdapter, events *services.EventService, logger *slog.Logger) *ResultHandler {
	return &ResultHandler{storage: storage, events: events, logger: logger}
}

// Submit validates and persists one finding. Results are immutable once
// written; the server assigns id and timestamp.
func (h *ResultHandler) Submit(c *gin.Context) {
	var req dto.SubmitResultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if errs := utils.ValidateStruct(&req); errs != nil {
		respondError(c, http.StatusBadRequest, errs.Error())
		return
	}

	result := &domains.Result{
		ID:        uuid.New(),
		AgentID:   req.AgentID,
		Module:    req.Module,
		Data:      req.Data,
		Metadata:  req.Metadata,
		CreatedAt: time.Now().UTC(),
	}
	if req.Target != "" {
		result.Target = &req.Target
	}
	if req.ResultType != "" {
		result.ResultType = &req.ResultType
	}
	if req.Severity != "" {
		result.Severity = &req.Severity
	}

	if err := h.storage.InsertResult(c.Request.Context(), result); err != nil {
		respondInternal(c, h.logger, "failed to store result", err)
		return
	}

	h.events.PublishResult(result)

	respondJSON(c, http.StatusOK, dto.SubmitResultResponse{
		Success:   true,
		ID:        result.ID.String(),
		Timestamp: result.CreatedAt.Format(time.RFC3339),
	})
}

// Query serves filtered, paginated results, timestamp descending. The limit
// is applied even when the caller omits it.
func (h *ResultHandler) Query(c *gin.Context) {
	var req dto.QueryResultsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid query parameters")
		return
	}
	if errs := utils.ValidateStruct(&req); errs != nil {
		respondError(c, http.StatusBadRequest, errs.Error())
		return
	}

	filter := domains.ResultFilter{
		AgentID:  req.AgentID,
		Module:   req.Module,
		Severity: req.Severity,
		Limit:    req.Limit,
		Offset:   req.Offset,
	}
	if req.Since != "" {
		since, err := time.Parse(time.RFC3339, req.Since)
		if err != nil {
			respondError(c, http.StatusBadRequest, "validation failed: field 'since' must be an RFC 3339 timestamp")
			return
		}
		filter.Since = &since
	}
	filter.Normalize()

	results, err := h.storage.QueryResults(c.Request.Context(), filter)
	if err != nil {
		respondInternal(c, h.logger, "failed to query results", err)
		return
	}
	if results == nil {
		results = []domains.Result{}
	}

	respondJSON(c, http.StatusOK, dto.QueryResultsResponse{
		Results: results,
		Count:   len(results),
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	})
}
