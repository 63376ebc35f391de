package persistence

import (
	"context"
	"database/sql"
	"errors"

	"assistant_server/core/domain"
	"assistant_server/core/port/out"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const userColumns = `id, tenant_id, phone, email, display_name, role, is_active`

// UserAdapter implements out.UserDirectory using PostgreSQL.
type UserAdapter struct {
	db *sqlx.DB
}

var _ out.UserDirectory = (*UserAdapter)(nil)

// NewUserAdapter creates a new UserAdapter.
func NewUserAdapter(db *sqlx.DB) *UserAdapter {
	return &UserAdapter{db: db}
}

// GetByPhone resolves an active user by phone. Argentine numbers are matched
// both with and without the mobile 9 so WhatsApp and stored formats agree.
func (a *UserAdapter) GetByPhone(ctx context.Context, phone string) (*domain.User, error) {
	variants := domain.PhoneVariants(phone)
	if len(variants) == 0 {
		return nil, out.ErrNotFound
	}

	var user domain.User
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE phone = ANY($1) AND is_active = true
		LIMIT 1`
	if err := a.db.GetContext(ctx, &user, query, pq.Array(variants)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, out.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (a *UserAdapter) GetByID(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	var user domain.User
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	if err := a.db.GetContext(ctx, &user, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, out.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}
