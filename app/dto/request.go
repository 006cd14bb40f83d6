package dto

// BeaconRequest represents an agent check-in.
type BeaconRequest struct {
	AgentID  string                 `json:"agent_id" validate:"required"`
	Hostname string                 `json:"hostname,omitempty"`
	Platform string                 `json:"platform,omitempty"`
	Version  string                 `json:"version,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// SubmitResultRequest represents a finding submission.
type SubmitResultRequest struct {
	AgentID    string                 `json:"agent_id" validate:"required"`
	Module     string                 `json:"module" validate:"required"`
	Target     string                 `json:"target,omitempty"`
	ResultType string                 `json:"result_type,omitempty"`
	Data       map[string]interface{} `json:"data" validate:"required"`
	Severity   string                 `json:"severity,omitempty" validate:"omitempty,oneof=low medium high critical"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// QueryResultsRequest represents result query parameters.
type QueryResultsRequest struct {
	AgentID  string `form:"agent_id"`
	Module   string `form:"module"`
	Severity string `form:"severity" validate:"omitempty,oneof=low medium high critical"`
	Since    string `form:"since"`
	Limit    int    `form:"limit" validate:"omitempty,min=0"`
	Offset   int    `form:"offset" validate:"omitempty,min=0"`
}

// ListAgentsRequest represents agent listing parameters.
type ListAgentsRequest struct {
	ActiveOnly bool `form:"active_only"`
}
