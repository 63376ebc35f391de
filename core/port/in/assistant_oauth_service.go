package in

import (
	"context"

	"assistant_server/core/domain"

	"github.com/google/uuid"
)

type OAuthService interface {
	// Start the authorization flow for a user identified by phone
	Initiate(ctx context.Context, req *InitiateOAuthRequest) (*OAuthInitiation, error)

	// Exchange the callback code and persist credentials
	HandleCallback(ctx context.Context, state, code string) (*CallbackResult, error)

	// Connection state
	ConnectionStatus(ctx context.Context, userID uuid.UUID) (*ConnectionStatus, error)

	// Disconnect
	Disconnect(ctx context.Context, userID uuid.UUID) error

	// Token management
	ResolveValidCredentials(ctx context.Context, userID uuid.UUID) (*domain.Credential, error)
}

type InitiateOAuthRequest struct {
	UserPhone   string     `json:"user_phone"`
	TenantID    *uuid.UUID `json:"tenant_id,omitempty"`
	RedirectURL *string    `json:"redirect_url,omitempty"`
}

type OAuthInitiation struct {
	AuthURL   string `json:"auth_url"`
	State     string `json:"state"`
	ExpiresIn int    `json:"expires_in"` // seconds
}

type CallbackResult struct {
	UserID      uuid.UUID `json:"user_id"`
	RedirectURL string    `json:"redirect_url"`
}

type ConnectionStatus struct {
	Connected bool   `json:"connected"`
	Status    string `json:"status"` // connected, expired, absent
	Email     string `json:"email,omitempty"`
	Message   string `json:"message"`
}
