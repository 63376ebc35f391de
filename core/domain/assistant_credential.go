package domain

import (
	"time"

	"github.com/google/uuid"
)

// Credential holds the Google Calendar OAuth tokens for a single user.
// One row per user; the OAuth callback and token refresh are the only writers.
type Credential struct {
	ID             uuid.UUID `json:"id" db:"id"`
	UserID         uuid.UUID `json:"user_id" db:"user_id"`
	TenantID       uuid.UUID `json:"tenant_id" db:"tenant_id"`
	AccessToken    string    `json:"-" db:"access_token"`
	RefreshToken   string    `json:"-" db:"refresh_token"`
	TokenExpiresAt time.Time `json:"token_expires_at" db:"token_expires_at"`
	CalendarID     string    `json:"calendar_id" db:"calendar_id"`
	Scopes         []string  `json:"scopes" db:"scopes"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// ExpiresWithin reports whether the access token expires inside the buffer.
func (c *Credential) ExpiresWithin(buffer time.Duration) bool {
	return time.Until(c.TokenExpiresAt) < buffer
}

// OAuthState is a single-use token binding an OAuth callback to the user
// who initiated the flow.
type OAuthState struct {
	State       string     `json:"state" db:"state"`
	UserPhone   string     `json:"user_phone" db:"user_phone"`
	TenantID    *uuid.UUID `json:"tenant_id,omitempty" db:"tenant_id"`
	RedirectURL *string    `json:"redirect_url,omitempty" db:"redirect_url"`
	ExpiresAt   time.Time  `json:"expires_at" db:"expires_at"`
	UsedAt      *time.Time `json:"used_at,omitempty" db:"used_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
}
