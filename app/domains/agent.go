package domains

import "time"

// Agent represents a known agent, one row per caller-supplied identifier.
type Agent struct {
	ID          int64                  `json:"-" db:"id"`
	AgentID     string                 `json:"agent_id" db:"agent_id"`
	Hostname    string                 `json:"hostname,omitempty" db:"hostname"`
	Platform    string                 `json:"platform,omitempty" db:"platform"`
	Version     string                 `json:"version,omitempty" db:"version"`
	LastIP      string                 `json:"last_ip,omitempty" db:"last_ip"`
	Metadata    map[string]interface{} `json:"metadata,omitempty" db:"metadata"`
	FirstSeenAt time.Time              `json:"first_seen_at" db:"first_seen_at"`
	LastSeenAt  time.Time              `json:"last_seen_at" db:"last_seen_at"`
	Active      bool                   `json:"active" db:"active"`
}

// BeaconUpdate carries the mutable fields applied by a single check-in.
// Metadata replaces the stored document wholesale.
type BeaconUpdate struct {
	AgentID  string
	Hostname string
	Platform string
	Version  string
	Origin   string
	Metadata map[string]interface{}
}

// Beacon is one append-only check-in record.
type Beacon struct {
	ID        int64                  `json:"-" db:"id"`
	AgentID   string                 `json:"agent_id" db:"agent_id"`
	Origin    string                 `json:"origin" db:"origin"`
	Metadata  map[string]interface{} `json:"metadata,omitempty" db:"metadata"`
	CreatedAt time.Time              `json:"created_at" db:"created_at"`
}
