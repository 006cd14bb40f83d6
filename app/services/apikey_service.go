package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ingest-svc/app/clients"
	"ingest-svc/app/domains"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned for any failed verification. Callers get
// no detail on which check failed.
var ErrInvalidCredentials = errors.New("invalid credentials")

const secretPrefix = "ik_"

// APIKeyService verifies presented secrets against the hashed credential
// store and provisions new keys. Verification deliberately scans every active
// key: key counts are small and the bcrypt cost dominates, so a lookup index
// keyed on secret material would weaken storage for no practical gain.
type APIKeyService struct {
	storage clients.StorageAdapter
	logger  *slog.Logger
}

// NewAPIKeyService creates a new API key service.
func NewAPIKeyService(storage clients.StorageAdapter, logger *slog.Logger) *APIKeyService {
	return &APIKeyService{storage: storage, logger: logger}
}

// Verify compares the presented secret against every active key hash and
// returns the matching credential. The last-used touch happens off the
// request path so the caller's response is not delayed by a second write.
func (s *APIKeyService) Verify(ctx context.Context, secret string) (*domains.APIKey, error) {
	keys, err := s.storage.ListActiveAPIKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load api keys: %w", err)
	}

	for i := range keys {
		key := keys[i]
		if bcrypt.CompareHashAndPassword([]byte(key.KeyHash), []byte(secret)) == nil {
			go s.touch(key.ID)
			return &key, nil
		}
	}
	return nil, ErrInvalidCredentials
}

func (s *APIKeyService) touch(id uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.storage.TouchAPIKey(ctx, id); err != nil {
		s.logger.Warn("failed to record api key use", "key_id", id, "error", err)
	}
}

// Mint generates a fresh random secret, stores only its bcrypt hash plus a
// short prefix for identification, and returns the secret exactly once.
func (s *APIKeyService) Mint(ctx context.Context, name string) (string, *domains.APIKey, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", nil, fmt.Errorf("failed to generate secret: %w", err)
	}
	secret := secretPrefix + hex.EncodeToString(buf)

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", nil, fmt.Errorf("failed to hash secret: %w", err)
	}

	key, err := s.storage.CreateAPIKey(ctx, name, string(hash), secret[:8])
	if err != nil {
		return "", nil, fmt.Errorf("failed to store api key: %w", err)
	}
	return secret, key, nil
}

// Revoke soft-disables a key. Keys are never deleted, for audit continuity.
func (s *APIKeyService) Revoke(ctx context.Context, id uuid.UUID) error {
	return s.storage.DeactivateAPIKey(ctx, id)
}
