package dto

import "ingest-svc/app/domains"

// StatusResponse represents service health.
type StatusResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	Timestamp string            `json:"timestamp"`
	Services  map[string]string `json:"services"`
}

// ModulesResponse lists the known capability modules.
type ModulesResponse struct {
	Modules []ModuleInfo `json:"modules"`
	Count   int          `json:"count"`
}

// ModuleInfo describes one capability module.
type ModuleInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// BeaconResponse acknowledges a check-in.
type BeaconResponse struct {
	Success   bool   `json:"success"`
	AgentID   string `json:"agent_id"`
	Timestamp string `json:"timestamp"`
}

// SubmitResultResponse acknowledges a finding submission.
type SubmitResultResponse struct {
	Success   bool   `json:"success"`
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
}

// QueryResultsResponse carries a page of results.
type QueryResultsResponse struct {
	Results []domains.Result `json:"results"`
	Count   int              `json:"count"`
	Limit   int              `json:"limit"`
	Offset  int              `json:"offset"`
}

// ListAgentsResponse carries the agent listing.
type ListAgentsResponse struct {
	Agents []domains.Agent `json:"agents"`
	Count  int             `json:"count"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}
