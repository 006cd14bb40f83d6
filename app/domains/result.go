package domains

import (
	"time"

	"github.com/google/uuid"
)

// Severity levels accepted on submitted results.
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// ValidSeverity reports whether s is one of the accepted severity levels.
func ValidSeverity(s string) bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// Result is an immutable finding submitted by an agent.
type Result struct {
	ID         uuid.UUID              `json:"id" db:"id"`
	AgentID    string                 `json:"agent_id" db:"agent_id"`
	Module     string                 `json:"module" db:"module"`
	Target     *string                `json:"target,omitempty" db:"target"`
	ResultType *string                `json:"result_type,omitempty" db:"result_type"`
	Data       map[string]interface{} `json:"data" db:"data"`
	Severity   *string                `json:"severity,omitempty" db:"severity"`
	Metadata   map[string]interface{} `json:"metadata,omitempty" db:"metadata"`
	CreatedAt  time.Time              `json:"created_at" db:"created_at"`
}

// ResultFilter narrows a result query. Zero-value fields are ignored;
// populated fields combine with logical AND.
type ResultFilter struct {
	AgentID  string
	Module   string
	Severity string
	Since    *time.Time
	Limit    int
	Offset   int
}

// Query volume guards applied even when the caller omits pagination.
const (
	DefaultQueryLimit = 100
	MaxQueryLimit     = 1000
)

// Normalize clamps pagination to sane bounds.
func (f *ResultFilter) Normalize() {
	if f.Limit <= 0 {
		f.Limit = DefaultQueryLimit
	}
	if f.Limit > MaxQueryLimit {
		f.Limit = MaxQueryLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
}
