package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ingest-svc/app/domains"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store represents the Postgres storage implementation
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Postgres store
// The database must already exist - creation should be handled at the infrastructure/deployment level
func NewStore(connString string) (*Store, error) {
	pool, err := pgxpool.New(context.Background(), connString)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Close closes the connection pool
func (s *Store) Close() {
	s.pool.Close()
}

// Ping checks database reachability
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// ListActiveAPIKeys returns every key eligible for verification
func (s *Store) ListActiveAPIKeys(ctx context.Context) ([]domains.APIKey, error) {
	return s.listAPIKeys(ctx, true)
}

// ListAPIKeys returns all keys, newest first
func (s *Store) ListAPIKeys(ctx context.Context) ([]domains.APIKey, error) {
	return s.listAPIKeys(ctx, false)
}

func (s *Store) listAPIKeys(ctx context.Context, activeOnly bool) ([]domains.APIKey, error) {
	query := `SELECT id, name, key_hash, key_prefix, active, created_at, last_used_at FROM api_keys`
	if activeOnly {
		query += ` WHERE active = TRUE`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []domains.APIKey
	for rows.Next() {
		var key domains.APIKey
		err := rows.Scan(
			&key.ID, &key.Name, &key.KeyHash, &key.KeyPrefix, &key.Active, &key.CreatedAt, &key.LastUsedAt,
		)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// CreateAPIKey stores a provisioned key hash
func (s *Store) CreateAPIKey(ctx context.Context, name, keyHash, keyPrefix string) (*domains.APIKey, error) {
	key := &domains.APIKey{
		ID:        uuid.New(),
		Name:      name,
		KeyHash:   keyHash,
		KeyPrefix: keyPrefix,
		Active:    true,
		CreatedAt: time.Now(),
	}

	query := `
		INSERT INTO api_keys (id, name, key_hash, key_prefix, active, created_at)
		VALUES ($1, $2, $3, $4, TRUE, $5)
	`
	if _, err := s.pool.Exec(ctx, query, key.ID, key.Name, key.KeyHash, key.KeyPrefix, key.CreatedAt); err != nil {
		return nil, err
	}
	return key, nil
}

// DeactivateAPIKey soft-disables a key; rows are never deleted
func (s *Store) DeactivateAPIKey(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE api_keys SET active = FALSE WHERE id = $1`
	_, err := s.pool.Exec(ctx, query, id)
	return err
}

// TouchAPIKey records a successful verification
func (s *Store) TouchAPIKey(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE api_keys SET last_used_at = $1 WHERE id = $2`
	_, err := s.pool.Exec(ctx, query, time.Now(), id)
	return err
}

// UpsertAgent inserts the agent on first contact and overwrites the mutable
// fields on every later beacon. One atomic statement per identifier, so
// concurrent beacons cannot produce a partially updated row.
func (s *Store) UpsertAgent(ctx context.Context, update domains.BeaconUpdate) (*domains.Agent, error) {
	metadataJSON, err := json.Marshal(update.Metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}

	query := `
		INSERT INTO agents (agent_id, hostname, platform, version, last_ip, metadata, first_seen_at, last_seen_at, active)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7, $7, TRUE)
		ON CONFLICT (agent_id)
		DO UPDATE SET
			hostname = EXCLUDED.hostname,
			platform = EXCLUDED.platform,
			version = EXCLUDED.version,
			last_ip = EXCLUDED.last_ip,
			metadata = EXCLUDED.metadata,
			last_seen_at = EXCLUDED.last_seen_at,
			active = TRUE
		RETURNING id, agent_id, hostname, platform, version, last_ip, metadata, first_seen_at, last_seen_at, active
	`

	var agent domains.Agent
	var storedMetadata []byte
	err = s.pool.QueryRow(ctx, query,
		update.AgentID, update.Hostname, update.Platform, update.Version, update.Origin,
		string(metadataJSON), time.Now(),
	).Scan(
		&agent.ID, &agent.AgentID, &agent.Hostname, &agent.Platform, &agent.Version,
		&agent.LastIP, &storedMetadata, &agent.FirstSeenAt, &agent.LastSeenAt, &agent.Active,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(storedMetadata, &agent.Metadata); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	return &agent, nil
}

// RecordBeacon appends one check-in row; beacon history is never mutated
func (s *Store) RecordBeacon(ctx context.Context, agentID, origin string, metadata map[string]interface{}) error {
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	query := `INSERT INTO beacons (agent_id, origin, metadata) VALUES ($1, $2, $3::jsonb)`
	_, err = s.pool.Exec(ctx, query, agentID, origin, string(metadataJSON))
	return err
}

// ListAgents retrieves agents, last-seen descending
func (s *Store) ListAgents(ctx context.Context, activeOnly bool) ([]domains.Agent, error) {
	query := `SELECT id, agent_id, hostname, platform, version, last_ip, metadata, first_seen_at, last_seen_at, active FROM agents`
	if activeOnly {
		query += ` WHERE active = TRUE`
	}
	query += ` ORDER BY last_seen_at DESC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var agents []domains.Agent
	for rows.Next() {
		var agent domains.Agent
		var metadataJSON []byte
		err := rows.Scan(
			&agent.ID, &agent.AgentID, &agent.Hostname, &agent.Platform, &agent.Version,
			&agent.LastIP, &metadataJSON, &agent.FirstSeenAt, &agent.LastSeenAt, &agent.Active,
		)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(metadataJSON, &agent.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
		agents = append(agents, agent)
	}
	return agents, rows.Err()
}

// MarkAgentsInactive flips active=false for agents whose last beacon predates
// staleBefore. Invoked by the external maintenance sweep.
func (s *Store) MarkAgentsInactive(ctx context.Context, staleBefore time.Time) (int64, error) {
	query := `UPDATE agents SET active = FALSE WHERE active = TRUE AND last_seen_at < $1`
	tag, err := s.pool.Exec(ctx, query, staleBefore)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// InsertResult appends one immutable finding
func (s *Store) InsertResult(ctx context.Context, result *domains.Result) error {
	dataJSON, err := json.Marshal(result.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}
	metadata := result.Metadata
	if metadata == nil {
		metadata = make(map[string]interface{})
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	query := `
		INSERT INTO results (id, agent_id, module, target, result_type, data, severity, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7, $8::jsonb, $9)
	`
	_, err = s.pool.Exec(ctx, query,
		result.ID, result.AgentID, result.Module, result.Target, result.ResultType,
		string(dataJSON), result.Severity, string(metadataJSON), result.CreatedAt,
	)
	return err
}

// QueryResults retrieves findings matching the filter, newest first. Optional
// filters combine with AND; ordering is stable via the id tiebreaker.
func (s *Store) QueryResults(ctx context.Context, filter domains.ResultFilter) ([]domains.Result, error) {
	query := `
		SELECT id, agent_id, module, target, result_type, data, severity, metadata, created_at
		FROM results
	`
	conditions := []string{}
	args := []interface{}{}
	argIdx := 1

	addCondition := func(cond string, arg interface{}) {
		conditions = append(conditions, fmt.Sprintf(cond, argIdx))
		args = append(args, arg)
		argIdx++
	}

	if filter.AgentID != "" {
		addCondition("agent_id = $%d", filter.AgentID)
	}
	if filter.Module != "" {
		addCondition("module = $%d", filter.Module)
	}
	if filter.Severity != "" {
		addCondition("severity = $%d", filter.Severity)
	}
	if filter.Since != nil {
		addCondition("created_at >= $%d", *filter.Since)
	}

	for i, cond := range conditions {
		if i == 0 {
			query += ` WHERE ` + cond
		} else {
			query += ` AND ` + cond
		}
	}

	query += ` ORDER BY created_at DESC, id DESC`
	query += fmt.Sprintf(` LIMIT $%d OFFSET $%d`, argIdx, argIdx+1)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domains.Result
	for rows.Next() {
		var result domains.Result
		var dataJSON, metadataJSON []byte
		err := rows.Scan(
			&result.ID, &result.AgentID, &result.Module, &result.Target, &result.ResultType,
			&dataJSON, &result.Severity, &metadataJSON, &result.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(dataJSON, &result.Data); err != nil {
			return nil, fmt.Errorf("failed to unmarshal data: %w", err)
		}
		if err := json.Unmarshal(metadataJSON, &result.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
		results = append(results, result)
	}
	return results, rows.Err()
}
