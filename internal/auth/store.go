package auth

import (
	"context"
	"time"
)

// OwnerStore persists owner accounts.
type OwnerStore interface {
	// CreateOwner stores the owner, a default company and a default employee atomically.
	CreateOwner(ctx context.Context, in NewOwner) (Registration, error)
	OwnerByEmail(ctx context.Context, email string) (Owner, error)
	OwnerByID(ctx context.Context, id string) (Owner, error)
	UpdateOwner(ctx context.Context, id string, upd OwnerUpdate) (Owner, error)
	SetOwnerPassword(ctx context.Context, id, passwordHash string) error
	SetExternalLogin(ctx context.Context, id string, enabled bool) (Owner, error)
	// DeleteOwner removes the owner and everything reachable through its companies.
	DeleteOwner(ctx context.Context, id string) error
}

// EmployeeAccountStore resolves employees for login.
type EmployeeAccountStore interface {
	// EmployeeAccountByLogin matches the employee code first, then the national id.
	EmployeeAccountByLogin(ctx context.Context, login string) (EmployeeAccount, error)
	EmployeeAccountByID(ctx context.Context, id string) (EmployeeAccount, error)
}

// APIKeyStore persists API keys. SetAPIKeyActive and DeleteAPIKey match on both id
// and owner and return ErrNotFound when nothing changed.
type APIKeyStore interface {
	CreateAPIKey(ctx context.Context, key APIKey) (APIKey, error)
	APIKeyByHash(ctx context.Context, hash string) (APIKeyRecord, error)
	ListAPIKeys(ctx context.Context, ownerID string) ([]APIKey, error)
	TouchAPIKey(ctx context.Context, id string, at time.Time) error
	SetAPIKeyActive(ctx context.Context, id, ownerID string, active bool) (APIKey, error)
	DeleteAPIKey(ctx context.Context, id, ownerID string) error
}

// SessionStore receives session audit records.
type SessionStore interface {
	RecordSession(ctx context.Context, rec SessionRecord) error
}

// Store is everything the auth Service needs from persistence.
type Store interface {
	OwnerStore
	EmployeeAccountStore
	APIKeyStore
	SessionStore
}
