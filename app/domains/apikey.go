package domains

import (
	"time"

	"github.com/google/uuid"
)

// APIKey represents a provisioned caller credential. The raw secret is never
// stored; only a bcrypt hash and a short prefix kept for identification.
type APIKey struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	Name       string     `json:"name" db:"name"`
	KeyHash    string     `json:"-" db:"key_hash"`
	KeyPrefix  string     `json:"key_prefix" db:"key_prefix"`
	Active     bool       `json:"active" db:"active"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty" db:"last_used_at"`
}
