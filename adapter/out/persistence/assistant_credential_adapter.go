package persistence

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"assistant_server/core/domain"
	"assistant_server/core/port/out"
	"assistant_server/pkg/crypto"
	"assistant_server/pkg/logger"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// CredentialAdapter implements out.CredentialRepository using PostgreSQL.
// OAuth tokens are encrypted at rest when an encryption key is configured.
type CredentialAdapter struct {
	db                *sqlx.DB
	encryptionEnabled bool
}

var _ out.CredentialRepository = (*CredentialAdapter)(nil)

// NewCredentialAdapter creates a new CredentialAdapter.
func NewCredentialAdapter(db *sqlx.DB) *CredentialAdapter {
	err := crypto.Init()
	encryptionEnabled := err == nil
	if !encryptionEnabled {
		logger.Warn("Token encryption disabled: %v", err)
	} else {
		logger.Info("Token encryption enabled")
	}

	return &CredentialAdapter{
		db:                db,
		encryptionEnabled: encryptionEnabled,
	}
}

func (a *CredentialAdapter) encryptToken(token string) string {
	if !a.encryptionEnabled || token == "" {
		return token
	}
	encrypted, err := crypto.EncryptToken(token)
	if err != nil {
		logger.Warn("Failed to encrypt token: %v", err)
		return token
	}
	return encrypted
}

func (a *CredentialAdapter) decryptToken(token string) string {
	if token == "" || !crypto.IsEncrypted(token) {
		return token
	}
	decrypted, err := crypto.DecryptToken(token)
	if err != nil {
		// Legacy plaintext rows pass through untouched.
		return token
	}
	return decrypted
}

// credentialRow is the database shape; scopes need pq's array scanner.
type credentialRow struct {
	ID             uuid.UUID      `db:"id"`
	UserID         uuid.UUID      `db:"user_id"`
	TenantID       uuid.UUID      `db:"tenant_id"`
	AccessToken    string         `db:"access_token"`
	RefreshToken   string         `db:"refresh_token"`
	TokenExpiresAt time.Time      `db:"token_expires_at"`
	CalendarID     string         `db:"calendar_id"`
	Scopes         pq.StringArray `db:"scopes"`
	CreatedAt      time.Time      `db:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at"`
}

func (a *CredentialAdapter) toDomain(row *credentialRow) *domain.Credential {
	return &domain.Credential{
		ID:             row.ID,
		UserID:         row.UserID,
		TenantID:       row.TenantID,
		AccessToken:    a.decryptToken(row.AccessToken),
		RefreshToken:   a.decryptToken(row.RefreshToken),
		TokenExpiresAt: row.TokenExpiresAt,
		CalendarID:     row.CalendarID,
		Scopes:         row.Scopes,
		CreatedAt:      row.CreatedAt,
		UpdatedAt:      row.UpdatedAt,
	}
}

func (a *CredentialAdapter) GetByUser(ctx context.Context, userID uuid.UUID) (*domain.Credential, error) {
	var row credentialRow
	query := `
		SELECT id, user_id, tenant_id, access_token, refresh_token,
		       token_expires_at, calendar_id, scopes, created_at, updated_at
		FROM google_credentials
		WHERE user_id = $1`
	if err := a.db.GetContext(ctx, &row, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, out.ErrNotFound
		}
		return nil, err
	}
	return a.toDomain(&row), nil
}

// Upsert creates or replaces the credential keyed by user_id. Reconnecting
// always overwrites the stored token set.
func (a *CredentialAdapter) Upsert(ctx context.Context, cred *domain.Credential) error {
	if cred.ID == uuid.Nil {
		cred.ID = uuid.New()
	}
	query := `
		INSERT INTO google_credentials (id, user_id, tenant_id, access_token, refresh_token,
		                                token_expires_at, calendar_id, scopes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		ON CONFLICT (user_id)
		DO UPDATE SET access_token = EXCLUDED.access_token,
		              refresh_token = EXCLUDED.refresh_token,
		              token_expires_at = EXCLUDED.token_expires_at,
		              calendar_id = EXCLUDED.calendar_id,
		              scopes = EXCLUDED.scopes,
		              updated_at = NOW()
		RETURNING id`

	return a.db.QueryRowContext(ctx, query,
		cred.ID,
		cred.UserID,
		cred.TenantID,
		a.encryptToken(cred.AccessToken),
		a.encryptToken(cred.RefreshToken),
		cred.TokenExpiresAt,
		cred.CalendarID,
		pq.StringArray(cred.Scopes),
	).Scan(&cred.ID)
}

// UpdateTokens persists a refreshed token set. Google often omits the refresh
// token on refresh responses, so an empty one keeps the stored value.
func (a *CredentialAdapter) UpdateTokens(ctx context.Context, userID uuid.UUID, accessToken, refreshToken string, expiresAt time.Time) error {
	query := `
		UPDATE google_credentials
		SET access_token = $2,
		    refresh_token = CASE WHEN $3 = '' THEN refresh_token ELSE $3 END,
		    token_expires_at = $4,
		    updated_at = NOW()
		WHERE user_id = $1`

	encryptedRefresh := ""
	if refreshToken != "" {
		encryptedRefresh = a.encryptToken(refreshToken)
	}
	result, err := a.db.ExecContext(ctx, query, userID, a.encryptToken(accessToken), encryptedRefresh, expiresAt)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return out.ErrNotFound
	}
	return nil
}

func (a *CredentialAdapter) Delete(ctx context.Context, userID uuid.UUID) error {
	result, err := a.db.ExecContext(ctx, `DELETE FROM google_credentials WHERE user_id = $1`, userID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return out.ErrNotFound
	}
	return nil
}
