package out

import (
	"context"
	"time"

	"assistant_server/core/domain"

	"github.com/google/uuid"
)

// CredentialRepository is the persistence port for per-user Google credentials.
type CredentialRepository interface {
	// GetByUser returns the credential row for a user. ErrNotFound when absent.
	GetByUser(ctx context.Context, userID uuid.UUID) (*domain.Credential, error)

	// Upsert creates or replaces the credential keyed by user_id.
	Upsert(ctx context.Context, cred *domain.Credential) error

	// UpdateTokens persists a refreshed token set. An empty refreshToken keeps
	// the stored one.
	UpdateTokens(ctx context.Context, userID uuid.UUID, accessToken, refreshToken string, expiresAt time.Time) error

	Delete(ctx context.Context, userID uuid.UUID) error
}

// StateStore issues and atomically consumes single-use OAuth state tokens.
type StateStore interface {
	Create(ctx context.Context, state *domain.OAuthState) error

	// Consume validates and burns the state in one step. A second Consume of
	// the same state, or a Consume after expiry, returns ErrNotFound.
	Consume(ctx context.Context, state string) (*domain.OAuthState, error)

	// CleanupExpired removes expired states and returns how many were dropped.
	CleanupExpired(ctx context.Context) (int64, error)
}

// UserDirectory resolves users of a tenant for agent-driven requests.
type UserDirectory interface {
	// GetByPhone looks up an active user by phone, matching E.164 variants.
	GetByPhone(ctx context.Context, phone string) (*domain.User, error)
	GetByID(ctx context.Context, userID uuid.UUID) (*domain.User, error)
}
