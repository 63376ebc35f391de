package auth

import (
	"context"
	"errors"
	"time"

	"assistant_server/core/domain"
	"assistant_server/core/port/in"
	"assistant_server/core/port/out"
	"assistant_server/pkg/apperr"
	"assistant_server/pkg/logger"

	"github.com/google/uuid"
)

// refreshBuffer is how close to expiry a token may get before we refresh it.
const refreshBuffer = 5 * time.Minute

const (
	StatusConnected = "connected"
	StatusExpired   = "expired"
	StatusAbsent    = "absent"
)

// ResolveValidCredentials returns credentials guaranteed to be usable for at
// least refreshBuffer, refreshing them first when needed. It returns
// (nil, nil) when the user has no connection or the refresh token was
// revoked; callers treat nil as "not connected" rather than a hard failure.
func (s *OAuthService) ResolveValidCredentials(ctx context.Context, userID uuid.UUID) (*domain.Credential, error) {
	cred, err := s.credRepo.GetByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, out.ErrNotFound) {
			return nil, nil
		}
		return nil, apperr.DatabaseError("load credentials", err)
	}

	if !cred.ExpiresWithin(refreshBuffer) {
		return cred, nil
	}

	if cred.RefreshToken == "" {
		logger.Warn("[OAuthService.ResolveValidCredentials] No refresh token for user %s", userID)
		return nil, nil
	}

	tokens, err := s.provider.Refresh(ctx, cred.RefreshToken)
	if err != nil {
		// A revoked grant means the user must reconnect; anything else is
		// transient but the caller still cannot sync right now.
		logger.Warn("[OAuthService.ResolveValidCredentials] Refresh failed for user %s: %v", userID, err)
		return nil, nil
	}

	if err := s.credRepo.UpdateTokens(ctx, userID, tokens.AccessToken, tokens.RefreshToken, tokens.ExpiresAt); err != nil {
		return nil, apperr.DatabaseError("store refreshed tokens", err)
	}

	cred.AccessToken = tokens.AccessToken
	if tokens.RefreshToken != "" {
		cred.RefreshToken = tokens.RefreshToken
	}
	cred.TokenExpiresAt = tokens.ExpiresAt

	logger.Debug("[OAuthService.ResolveValidCredentials] Token refreshed for user %s", userID)
	return cred, nil
}

func (s *OAuthService) ConnectionStatus(ctx context.Context, userID uuid.UUID) (*in.ConnectionStatus, error) {
	if _, err := s.credRepo.GetByUser(ctx, userID); err != nil {
		if errors.Is(err, out.ErrNotFound) {
			return &in.ConnectionStatus{
				Connected: false,
				Status:    StatusAbsent,
				Message:   "No tenés Google Calendar conectado. ¿Querés conectarlo?",
			}, nil
		}
		return nil, apperr.DatabaseError("load credentials", err)
	}

	// A stored credential still counts as connected while it can refresh
	// itself; only a dead refresh token downgrades it to expired.
	valid, err := s.ResolveValidCredentials(ctx, userID)
	if err != nil {
		return nil, err
	}
	if valid == nil {
		return &in.ConnectionStatus{
			Connected: false,
			Status:    StatusExpired,
			Message:   "Tu conexión con Google Calendar expiró. Necesitás reconectarla.",
		}, nil
	}

	return &in.ConnectionStatus{
		Connected: true,
		Status:    StatusConnected,
		Message:   "Tu Google Calendar está conectado.",
	}, nil
}
