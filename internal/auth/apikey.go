package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// APIKeyPrefix namespaces every raw key.
	APIKeyPrefix = "ak_"
	// APIKeyHeader carries the raw key on external login.
	APIKeyHeader = "X-API-Key"

	apiKeyRandomBytes = 32
	apiKeyDisplayLen  = len(APIKeyPrefix) + 8
	maxAPIKeyLabelLen = 100
)

// GenerateAPIKey returns a new raw key: the namespace prefix and 64 hex characters.
func GenerateAPIKey() (string, error) {
	buf := make([]byte, apiKeyRandomBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate api key: %w", err)
	}
	return APIKeyPrefix + hex.EncodeToString(buf), nil
}

// HashAPIKey is the lookup digest stored in place of the raw key.
func HashAPIKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func wellFormedAPIKey(raw string) bool {
	return strings.HasPrefix(raw, APIKeyPrefix) && len(raw) == len(APIKeyPrefix)+2*apiKeyRandomBytes
}

// APIKeyRegistry issues and manages API keys for external employee login.
type APIKeyRegistry struct {
	store APIKeyStore
	now   func() time.Time
}

func NewAPIKeyRegistry(store APIKeyStore, opts ...Option) (*APIKeyRegistry, error) {
	if store == nil {
		return nil, errors.New("api key store is required")
	}
	st := applyOptions(opts)
	return &APIKeyRegistry{store: store, now: st.now}, nil
}

// Issue creates an active key for ownerID. The raw key is only returned here.
func (r *APIKeyRegistry) Issue(ctx context.Context, ownerID, label string) (APIKey, string, error) {
	ownerID = strings.TrimSpace(ownerID)
	label = strings.TrimSpace(label)
	if ownerID == "" {
		return APIKey{}, "", fmt.Errorf("%w: owner is required", ErrInvalidInput)
	}
	if label == "" {
		return APIKey{}, "", fmt.Errorf("%w: el nombre es obligatorio", ErrInvalidInput)
	}
	if len(label) > maxAPIKeyLabelLen {
		return APIKey{}, "", fmt.Errorf("%w: el nombre es demasiado largo", ErrInvalidInput)
	}
	raw, err := GenerateAPIKey()
	if err != nil {
		return APIKey{}, "", err
	}
	key, err := r.store.CreateAPIKey(ctx, APIKey{
		OwnerID:   ownerID,
		Label:     label,
		Prefix:    raw[:apiKeyDisplayLen],
		Hash:      HashAPIKey(raw),
		Active:    true,
		CreatedAt: r.now().UTC(),
	})
	if err != nil {
		return APIKey{}, "", err
	}
	return key, raw, nil
}

// Lookup resolves a raw key. Unknown or malformed keys are ErrNotFound; inactive
// keys are returned as stored so callers decide.
func (r *APIKeyRegistry) Lookup(ctx context.Context, raw string) (APIKeyRecord, error) {
	raw = strings.TrimSpace(raw)
	if !wellFormedAPIKey(raw) {
		return APIKeyRecord{}, ErrNotFound
	}
	return r.store.APIKeyByHash(ctx, HashAPIKey(raw))
}

// Touch records a successful use of the key.
func (r *APIKeyRegistry) Touch(ctx context.Context, id string) error {
	return r.store.TouchAPIKey(ctx, id, r.now().UTC())
}

// List returns ownerID's keys.
func (r *APIKeyRegistry) List(ctx context.Context, ownerID string) ([]APIKey, error) {
	return r.store.ListAPIKeys(ctx, ownerID)
}

// SetActive flips the key state. Keys of other owners, and keys already in the
// requested state, are ErrNotFound.
func (r *APIKeyRegistry) SetActive(ctx context.Context, id, ownerID string, active bool) (APIKey, error) {
	if strings.TrimSpace(id) == "" || strings.TrimSpace(ownerID) == "" {
		return APIKey{}, ErrNotFound
	}
	return r.store.SetAPIKeyActive(ctx, id, ownerID, active)
}

// Delete removes a key owned by ownerID, otherwise ErrNotFound.
func (r *APIKeyRegistry) Delete(ctx context.Context, id, ownerID string) error {
	if strings.TrimSpace(id) == "" || strings.TrimSpace(ownerID) == "" {
		return ErrNotFound
	}
	return r.store.DeleteAPIKey(ctx, id, ownerID)
}
