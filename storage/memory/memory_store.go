package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"ingest-svc/app/domains"

	"github.com/google/uuid"
)

// Store is an in-memory StorageAdapter used by tests. It mirrors the
// ordering and filtering semantics of the Postgres store.
type Store struct {
	mu      sync.Mutex
	keys    []domains.APIKey
	agents  map[string]*domains.Agent
	beacons []domains.Beacon
	results []domains.Result
	nextID  int64
	pingErr error
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{agents: make(map[string]*domains.Agent)}
}

// SetPingError makes subsequent Ping calls fail, simulating an unreachable
// database.
func (s *Store) SetPingError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pingErr = err
}

// Ping checks simulated reachability.
func (s *Store) Ping(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pingErr
}

// ListActiveAPIKeys returns every active key.
func (s *Store) ListActiveAPIKeys(_ context.Context) ([]domains.APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var active []domains.APIKey
	for _, key := range s.keys {
		if key.Active {
			active = append(active, key)
		}
	}
	return active, nil
}

// ListAPIKeys returns all keys, newest first.
func (s *Store) ListAPIKeys(_ context.Context) ([]domains.APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]domains.APIKey, len(s.keys))
	copy(keys, s.keys)
	sort.SliceStable(keys, func(i, j int) bool {
		return keys[i].CreatedAt.After(keys[j].CreatedAt)
	})
	return keys, nil
}

// CreateAPIKey stores a provisioned key hash.
func (s *Store) CreateAPIKey(_ context.Context, name, keyHash, keyPrefix string) (*domains.APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := domains.APIKey{
		ID:        uuid.New(),
		Name:      name,
		KeyHash:   keyHash,
		KeyPrefix: keyPrefix,
		Active:    true,
		CreatedAt: time.Now(),
	}
	s.keys = append(s.keys, key)
	return &key, nil
}

// DeactivateAPIKey soft-disables a key.
func (s *Store) DeactivateAPIKey(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.keys {
		if s.keys[i].ID == id {
			s.keys[i].Active = false
		}
	}
	return nil
}

// TouchAPIKey records a successful verification.
func (s *Store) TouchAPIKey(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for i := range s.keys {
		if s.keys[i].ID == id {
			s.keys[i].LastUsedAt = &now
		}
	}
	return nil
}

// APIKeyByID returns a copy of the stored key, for test assertions.
func (s *Store) APIKeyByID(id uuid.UUID) (domains.APIKey, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range s.keys {
		if key.ID == id {
			return key, true
		}
	}
	return domains.APIKey{}, false
}

// UpsertAgent inserts or overwrites the agent row for update.AgentID.
func (s *Store) UpsertAgent(_ context.Context, update domains.BeaconUpdate) (*domains.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	agent, ok := s.agents[update.AgentID]
	if !ok {
		s.nextID++
		agent = &domains.Agent{ID: s.nextID, AgentID: update.AgentID, FirstSeenAt: now}
		s.agents[update.AgentID] = agent
	}
	agent.Hostname = update.Hostname
	agent.Platform = update.Platform
	agent.Version = update.Version
	agent.LastIP = update.Origin
	agent.Metadata = update.Metadata
	agent.LastSeenAt = now
	agent.Active = true

	copied := *agent
	return &copied, nil
}

// RecordBeacon appends one check-in row.
func (s *Store) RecordBeacon(_ context.Context, agentID, origin string, metadata map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.beacons = append(s.beacons, domains.Beacon{
		AgentID:   agentID,
		Origin:    origin,
		Metadata:  metadata,
		CreatedAt: time.Now(),
	})
	return nil
}

// Beacons returns the recorded check-ins, for test assertions.
func (s *Store) Beacons() []domains.Beacon {
	s.mu.Lock()
	defer s.mu.Unlock()

	beacons := make([]domains.Beacon, len(s.beacons))
	copy(beacons, s.beacons)
	return beacons
}

// ListAgents retrieves agents, last-seen descending.
func (s *Store) ListAgents(_ context.Context, activeOnly bool) ([]domains.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var agents []domains.Agent
	for _, agent := range s.agents {
		if activeOnly && !agent.Active {
			continue
		}
		agents = append(agents, *agent)
	}
	sort.SliceStable(agents, func(i, j int) bool {
		return agents[i].LastSeenAt.After(agents[j].LastSeenAt)
	})
	return agents, nil
}

// MarkAgentsInactive flips active=false for agents last seen before staleBefore.
func (s *Store) MarkAgentsInactive(_ context.Context, staleBefore time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var swept int64
	for _, agent := range s.agents {
		if agent.Active && agent.LastSeenAt.Before(staleBefore) {
			agent.Active = false
			swept++
		}
	}
	return swept, nil
}

// InsertResult appends one finding.
func (s *Store) InsertResult(_ context.Context, result *domains.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.results = append(s.results, *result)
	return nil
}

// ResultCount reports the number of stored findings, for test assertions.
func (s *Store) ResultCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.results)
}

// QueryResults retrieves findings matching the filter, newest first.
func (s *Store) QueryResults(_ context.Context, filter domains.ResultFilter) ([]domains.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []domains.Result
	for _, result := range s.results {
		if filter.AgentID != "" && result.AgentID != filter.AgentID {
			continue
		}
		if filter.Module != "" && result.Module != filter.Module {
			continue
		}
		if filter.Severity != "" && (result.Severity == nil || *result.Severity != filter.Severity) {
			continue
		}
		if filter.Since != nil && result.CreatedAt.Before(*filter.Since) {
			continue
		}
		matched = append(matched, result)
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	if filter.Offset >= len(matched) {
		return nil, nil
	}
	matched = matched[filter.Offset:]
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}
