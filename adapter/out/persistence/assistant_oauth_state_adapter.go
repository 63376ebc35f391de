package persistence

import (
	"context"
	"database/sql"
	"errors"

	"assistant_server/core/domain"
	"assistant_server/core/port/out"

	"github.com/jmoiron/sqlx"
)

// OAuthStateAdapter implements out.StateStore using PostgreSQL.
// Consuming a state is a single conditional UPDATE, so two concurrent
// callbacks carrying the same state can never both succeed.
type OAuthStateAdapter struct {
	db *sqlx.DB
}

var _ out.StateStore = (*OAuthStateAdapter)(nil)

// NewOAuthStateAdapter creates a new OAuthStateAdapter.
func NewOAuthStateAdapter(db *sqlx.DB) *OAuthStateAdapter {
	return &OAuthStateAdapter{db: db}
}

func (a *OAuthStateAdapter) Create(ctx context.Context, state *domain.OAuthState) error {
	query := `
		INSERT INTO oauth_states (state, user_phone, tenant_id, redirect_url, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())`
	_, err := a.db.ExecContext(ctx, query,
		state.State,
		state.UserPhone,
		state.TenantID,
		state.RedirectURL,
		state.ExpiresAt,
	)
	return err
}

// Consume claims the state atomically: the UPDATE only matches an unused,
// unexpired row and returns it in the same statement.
func (a *OAuthStateAdapter) Consume(ctx context.Context, state string) (*domain.OAuthState, error) {
	var record domain.OAuthState
	query := `
		UPDATE oauth_states
		SET used_at = NOW()
		WHERE state = $1 AND used_at IS NULL AND expires_at > NOW()
		RETURNING state, user_phone, tenant_id, redirect_url, expires_at, used_at, created_at`
	if err := a.db.GetContext(ctx, &record, query, state); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, out.ErrNotFound
		}
		return nil, err
	}
	return &record, nil
}

func (a *OAuthStateAdapter) CleanupExpired(ctx context.Context) (int64, error) {
	result, err := a.db.ExecContext(ctx, `DELETE FROM oauth_states WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
