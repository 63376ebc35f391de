package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/http"
	"time"

	"assistant_server/core/domain"
	"assistant_server/core/port/in"
	"assistant_server/core/port/out"
	"assistant_server/pkg/apperr"
	"assistant_server/pkg/logger"

	"github.com/google/uuid"
)

// OAuthService drives the Google authorization flow and owns the stored
// credentials afterwards. State tokens are single use: Consume on the
// store either claims the token atomically or reports it gone.
type OAuthService struct {
	credRepo   out.CredentialRepository
	stateStore out.StateStore
	users      out.UserDirectory
	provider   out.CalendarProviderPort

	stateTTL   time.Duration
	successURL string
	failureURL string
}

var _ in.OAuthService = (*OAuthService)(nil)

func NewOAuthService(
	credRepo out.CredentialRepository,
	stateStore out.StateStore,
	users out.UserDirectory,
	provider out.CalendarProviderPort,
	stateTTL time.Duration,
	successURL, failureURL string,
) *OAuthService {
	if stateTTL <= 0 {
		stateTTL = 15 * time.Minute
	}
	return &OAuthService{
		credRepo:   credRepo,
		stateStore: stateStore,
		users:      users,
		provider:   provider,
		stateTTL:   stateTTL,
		successURL: successURL,
		failureURL: failureURL,
	}
}

// FailureURL is where the callback handler redirects when the flow errors out.
func (s *OAuthService) FailureURL() string {
	return s.failureURL
}

func (s *OAuthService) Initiate(ctx context.Context, req *in.InitiateOAuthRequest) (*in.OAuthInitiation, error) {
	phone := domain.NormalizePhone(req.UserPhone)
	if phone == "" {
		return nil, apperr.BadRequest("user_phone is required")
	}

	// Verify the phone maps to an active user before handing out an auth URL.
	user, err := s.users.GetByPhone(ctx, phone)
	if err != nil {
		if errors.Is(err, out.ErrNotFound) {
			return nil, apperr.NotFound("user").WithDetail("phone", phone)
		}
		return nil, apperr.DatabaseError("lookup user", err)
	}

	state, err := newStateToken()
	if err != nil {
		return nil, apperr.InternalWithError(err)
	}

	tenantID := req.TenantID
	if tenantID == nil {
		tenantID = &user.TenantID
	}

	record := &domain.OAuthState{
		State:       state,
		UserPhone:   phone,
		TenantID:    tenantID,
		RedirectURL: req.RedirectURL,
		ExpiresAt:   time.Now().Add(s.stateTTL),
		CreatedAt:   time.Now(),
	}
	if err := s.stateStore.Create(ctx, record); err != nil {
		return nil, apperr.DatabaseError("store oauth state", err)
	}

	logger.Info("[OAuthService.Initiate] Flow started for user %s", user.ID)
	return &in.OAuthInitiation{
		AuthURL:   s.provider.AuthCodeURL(state),
		State:     state,
		ExpiresIn: int(s.stateTTL.Seconds()),
	}, nil
}

func (s *OAuthService) HandleCallback(ctx context.Context, state, code string) (*in.CallbackResult, error) {
	if state == "" || code == "" {
		return nil, apperr.BadRequest("state and code are required")
	}

	record, err := s.stateStore.Consume(ctx, state)
	if err != nil {
		if errors.Is(err, out.ErrNotFound) {
			return nil, apperr.New(apperr.CodeOAuthFailed,
				"authorization state is invalid, expired or already used", http.StatusBadRequest)
		}
		return nil, apperr.DatabaseError("consume oauth state", err)
	}

	tokens, err := s.provider.Exchange(ctx, code)
	if err != nil {
		logger.Warn("[OAuthService.HandleCallback] Code exchange failed: %v", err)
		return nil, apperr.OAuthFailed("google", err)
	}

	user, err := s.users.GetByPhone(ctx, record.UserPhone)
	if err != nil {
		if errors.Is(err, out.ErrNotFound) {
			return nil, apperr.NotFound("user").WithDetail("phone", record.UserPhone)
		}
		return nil, apperr.DatabaseError("lookup user", err)
	}

	tenantID := user.TenantID
	if record.TenantID != nil {
		tenantID = *record.TenantID
	}

	cred := &domain.Credential{
		UserID:         user.ID,
		TenantID:       tenantID,
		AccessToken:    tokens.AccessToken,
		RefreshToken:   tokens.RefreshToken,
		TokenExpiresAt: tokens.ExpiresAt,
		CalendarID:     "primary",
		Scopes:         tokens.Scopes,
	}
	if err := s.credRepo.Upsert(ctx, cred); err != nil {
		return nil, apperr.DatabaseError("store credentials", err)
	}

	logger.Info("[OAuthService.HandleCallback] Calendar connected for user %s", user.ID)

	redirect := s.successURL
	if record.RedirectURL != nil && *record.RedirectURL != "" {
		redirect = *record.RedirectURL
	}
	return &in.CallbackResult{UserID: user.ID, RedirectURL: redirect}, nil
}

func (s *OAuthService) Disconnect(ctx context.Context, userID uuid.UUID) error {
	if err := s.credRepo.Delete(ctx, userID); err != nil {
		if errors.Is(err, out.ErrNotFound) {
			return apperr.NotFound("credentials").WithDetail("user_id", userID.String())
		}
		return apperr.DatabaseError("delete credentials", err)
	}
	logger.Info("[OAuthService.Disconnect] Calendar disconnected for user %s", userID)
	return nil
}

func newStateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
