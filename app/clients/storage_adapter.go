package clients

import (
	"context"
	"time"

	"ingest-svc/app/domains"

	"github.com/google/uuid"
)

// StorageAdapter defines the interface for storage operations
type StorageAdapter interface {
	// Credential store
	ListActiveAPIKeys(ctx context.Context) ([]domains.APIKey, error)
	ListAPIKeys(ctx context.Context) ([]domains.APIKey, error)
	CreateAPIKey(ctx context.Context, name, keyHash, keyPrefix string) (*domains.APIKey, error)
	DeactivateAPIKey(ctx context.Context, id uuid.UUID) error
	TouchAPIKey(ctx context.Context, id uuid.UUID) error

	// Agent registry
	UpsertAgent(ctx context.Context, update domains.BeaconUpdate) (*domains.Agent, error)
	RecordBeacon(ctx context.Context, agentID, origin string, metadata map[string]interface{}) error
	ListAgents(ctx context.Context, activeOnly bool) ([]domains.Agent, error)
	MarkAgentsInactive(ctx context.Context, staleBefore time.Time) (int64, error)

	// Result store
	InsertResult(ctx context.Context, result *domains.Result) error
	QueryResults(ctx context.Context, filter domains.ResultFilter) ([]domains.Result, error)

	// Health
	Ping(ctx context.Context) error
}
