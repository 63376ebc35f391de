package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"assistant_server/core/domain"
	"assistant_server/core/port/in"
	"assistant_server/core/port/out"
	"assistant_server/pkg/apperr"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

type fakeCredRepo struct {
	creds map[uuid.UUID]*domain.Credential
}

func newFakeCredRepo() *fakeCredRepo {
	return &fakeCredRepo{creds: make(map[uuid.UUID]*domain.Credential)}
}

func (r *fakeCredRepo) GetByUser(ctx context.Context, userID uuid.UUID) (*domain.Credential, error) {
	cred, ok := r.creds[userID]
	if !ok {
		return nil, out.ErrNotFound
	}
	cp := *cred
	return &cp, nil
}

func (r *fakeCredRepo) Upsert(ctx context.Context, cred *domain.Credential) error {
	cp := *cred
	r.creds[cred.UserID] = &cp
	return nil
}

func (r *fakeCredRepo) UpdateTokens(ctx context.Context, userID uuid.UUID, accessToken, refreshToken string, expiresAt time.Time) error {
	cred, ok := r.creds[userID]
	if !ok {
		return out.ErrNotFound
	}
	cred.AccessToken = accessToken
	if refreshToken != "" {
		cred.RefreshToken = refreshToken
	}
	cred.TokenExpiresAt = expiresAt
	return nil
}

func (r *fakeCredRepo) Delete(ctx context.Context, userID uuid.UUID) error {
	if _, ok := r.creds[userID]; !ok {
		return out.ErrNotFound
	}
	delete(r.creds, userID)
	return nil
}

type fakeStateStore struct {
	states map[string]*domain.OAuthState
}

func newFakeStateStore() *fakeStateStore {
	return &fakeStateStore{states: make(map[string]*domain.OAuthState)}
}

func (s *fakeStateStore) Create(ctx context.Context, state *domain.OAuthState) error {
	cp := *state
	s.states[state.State] = &cp
	return nil
}

func (s *fakeStateStore) Consume(ctx context.Context, state string) (*domain.OAuthState, error) {
	record, ok := s.states[state]
	if !ok || record.UsedAt != nil || time.Now().After(record.ExpiresAt) {
		return nil, out.ErrNotFound
	}
	now := time.Now()
	record.UsedAt = &now
	cp := *record
	return &cp, nil
}

func (s *fakeStateStore) CleanupExpired(ctx context.Context) (int64, error) {
	var n int64
	for k, v := range s.states {
		if time.Now().After(v.ExpiresAt) {
			delete(s.states, k)
			n++
		}
	}
	return n, nil
}

type fakeUserDirectory struct {
	byPhone map[string]*domain.User
}

func (d *fakeUserDirectory) GetByPhone(ctx context.Context, phone string) (*domain.User, error) {
	for _, variant := range domain.PhoneVariants(phone) {
		if u, ok := d.byPhone[variant]; ok {
			return u, nil
		}
	}
	return nil, out.ErrNotFound
}

func (d *fakeUserDirectory) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	for _, u := range d.byPhone {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, out.ErrNotFound
}

type fakeProvider struct {
	exchangeTokens *out.TokenSet
	exchangeErr    error
	refreshTokens  *out.TokenSet
	refreshErr     error
	refreshCalls   int
}

func (p *fakeProvider) AuthCodeURL(state string) string {
	return "https://accounts.example.com/auth?state=" + state
}

func (p *fakeProvider) Exchange(ctx context.Context, code string) (*out.TokenSet, error) {
	if p.exchangeErr != nil {
		return nil, p.exchangeErr
	}
	return p.exchangeTokens, nil
}

func (p *fakeProvider) Refresh(ctx context.Context, refreshToken string) (*out.TokenSet, error) {
	p.refreshCalls++
	if p.refreshErr != nil {
		return nil, p.refreshErr
	}
	return p.refreshTokens, nil
}

func (p *fakeProvider) CreateEvent(ctx context.Context, token *oauth2.Token, calendarID string, event *out.RemoteEvent) (*out.RemoteEvent, error) {
	return nil, errors.New("not implemented")
}

func (p *fakeProvider) UpdateEvent(ctx context.Context, token *oauth2.Token, calendarID, eventID string, event *out.RemoteEvent) (*out.RemoteEvent, error) {
	return nil, errors.New("not implemented")
}

func (p *fakeProvider) DeleteEvent(ctx context.Context, token *oauth2.Token, calendarID, eventID string) error {
	return errors.New("not implemented")
}

func (p *fakeProvider) ListEvents(ctx context.Context, token *oauth2.Token, calendarID string, start, end time.Time) ([]*out.RemoteEvent, error) {
	return nil, errors.New("not implemented")
}

func (p *fakeProvider) GetEvent(ctx context.Context, token *oauth2.Token, calendarID, eventID string) (*out.RemoteEvent, error) {
	return nil, errors.New("not implemented")
}

var _ out.CalendarProviderPort = (*fakeProvider)(nil)

func newTestService(users *fakeUserDirectory, provider *fakeProvider) (*OAuthService, *fakeCredRepo, *fakeStateStore) {
	creds := newFakeCredRepo()
	states := newFakeStateStore()
	svc := NewOAuthService(creds, states, users, provider,
		15*time.Minute, "https://app.example.com/ok", "https://app.example.com/fail")
	return svc, creds, states
}

func testUser() *domain.User {
	return &domain.User{
		ID:       uuid.New(),
		TenantID: uuid.New(),
		Phone:    "+5491122334455",
		IsActive: true,
	}
}

func TestInitiateStoresSingleUseState(t *testing.T) {
	user := testUser()
	users := &fakeUserDirectory{byPhone: map[string]*domain.User{user.Phone: user}}
	svc, _, states := newTestService(users, &fakeProvider{})

	got, err := svc.Initiate(context.Background(), &in.InitiateOAuthRequest{UserPhone: user.Phone})
	if err != nil {
		t.Fatalf("Initiate() error = %v", err)
	}
	if got.State == "" {
		t.Fatal("Initiate() returned empty state")
	}
	if got.ExpiresIn != int((15 * time.Minute).Seconds()) {
		t.Errorf("ExpiresIn = %d, want %d", got.ExpiresIn, 900)
	}
	record, ok := states.states[got.State]
	if !ok {
		t.Fatal("state was not stored")
	}
	if record.UserPhone != user.Phone {
		t.Errorf("stored phone = %q, want %q", record.UserPhone, user.Phone)
	}
	if record.TenantID == nil || *record.TenantID != user.TenantID {
		t.Errorf("stored tenant = %v, want %s", record.TenantID, user.TenantID)
	}
}

func TestInitiateNormalizesPhone(t *testing.T) {
	user := testUser()
	users := &fakeUserDirectory{byPhone: map[string]*domain.User{user.Phone: user}}
	svc, _, _ := newTestService(users, &fakeProvider{})

	// Ten-digit argentine number without the mobile 9 resolves to the same user.
	got, err := svc.Initiate(context.Background(), &in.InitiateOAuthRequest{UserPhone: "+541122334455"})
	if err != nil {
		t.Fatalf("Initiate() error = %v", err)
	}
	if got.AuthURL == "" {
		t.Error("Initiate() returned empty auth URL")
	}
}

func TestInitiateUnknownPhone(t *testing.T) {
	users := &fakeUserDirectory{byPhone: map[string]*domain.User{}}
	svc, _, _ := newTestService(users, &fakeProvider{})

	_, err := svc.Initiate(context.Background(), &in.InitiateOAuthRequest{UserPhone: "+5491100000000"})
	if apperr.GetHTTPStatus(err) != 404 {
		t.Fatalf("Initiate() error = %v, want 404", err)
	}
}

func TestHandleCallbackStoresCredentials(t *testing.T) {
	user := testUser()
	users := &fakeUserDirectory{byPhone: map[string]*domain.User{user.Phone: user}}
	expiry := time.Now().Add(time.Hour).Truncate(time.Second)
	provider := &fakeProvider{exchangeTokens: &out.TokenSet{
		AccessToken:  "at-1",
		RefreshToken: "rt-1",
		ExpiresAt:    expiry,
		Scopes:       []string{"https://www.googleapis.com/auth/calendar.events"},
	}}
	svc, creds, _ := newTestService(users, provider)

	init, err := svc.Initiate(context.Background(), &in.InitiateOAuthRequest{UserPhone: user.Phone})
	if err != nil {
		t.Fatalf("Initiate() error = %v", err)
	}

	result, err := svc.HandleCallback(context.Background(), init.State, "code-1")
	if err != nil {
		t.Fatalf("HandleCallback() error = %v", err)
	}
	if result.UserID != user.ID {
		t.Errorf("UserID = %s, want %s", result.UserID, user.ID)
	}
	if result.RedirectURL != "https://app.example.com/ok" {
		t.Errorf("RedirectURL = %q", result.RedirectURL)
	}

	stored, err := creds.GetByUser(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("credential was not stored: %v", err)
	}
	if stored.AccessToken != "at-1" || stored.RefreshToken != "rt-1" {
		t.Errorf("stored tokens = %q/%q", stored.AccessToken, stored.RefreshToken)
	}
	if stored.CalendarID != "primary" {
		t.Errorf("CalendarID = %q, want primary", stored.CalendarID)
	}
	if !stored.TokenExpiresAt.Equal(expiry) {
		t.Errorf("TokenExpiresAt = %v, want %v", stored.TokenExpiresAt, expiry)
	}
}

func TestHandleCallbackStateIsSingleUse(t *testing.T) {
	user := testUser()
	users := &fakeUserDirectory{byPhone: map[string]*domain.User{user.Phone: user}}
	provider := &fakeProvider{exchangeTokens: &out.TokenSet{
		AccessToken: "at", RefreshToken: "rt", ExpiresAt: time.Now().Add(time.Hour),
	}}
	svc, _, _ := newTestService(users, provider)

	init, err := svc.Initiate(context.Background(), &in.InitiateOAuthRequest{UserPhone: user.Phone})
	if err != nil {
		t.Fatalf("Initiate() error = %v", err)
	}
	if _, err := svc.HandleCallback(context.Background(), init.State, "code"); err != nil {
		t.Fatalf("first HandleCallback() error = %v", err)
	}
	if _, err := svc.HandleCallback(context.Background(), init.State, "code"); err == nil {
		t.Fatal("second HandleCallback() with same state should fail")
	}
}

func TestHandleCallbackCustomRedirect(t *testing.T) {
	user := testUser()
	users := &fakeUserDirectory{byPhone: map[string]*domain.User{user.Phone: user}}
	provider := &fakeProvider{exchangeTokens: &out.TokenSet{
		AccessToken: "at", ExpiresAt: time.Now().Add(time.Hour),
	}}
	svc, _, _ := newTestService(users, provider)

	redirect := "https://chat.example.com/done"
	init, err := svc.Initiate(context.Background(), &in.InitiateOAuthRequest{
		UserPhone:   user.Phone,
		RedirectURL: &redirect,
	})
	if err != nil {
		t.Fatalf("Initiate() error = %v", err)
	}
	result, err := svc.HandleCallback(context.Background(), init.State, "code")
	if err != nil {
		t.Fatalf("HandleCallback() error = %v", err)
	}
	if result.RedirectURL != redirect {
		t.Errorf("RedirectURL = %q, want %q", result.RedirectURL, redirect)
	}
}

func TestResolveValidCredentials(t *testing.T) {
	user := testUser()
	users := &fakeUserDirectory{byPhone: map[string]*domain.User{user.Phone: user}}

	tests := []struct {
		name        string
		cred        *domain.Credential
		refreshed   *out.TokenSet
		refreshErr  error
		wantNil     bool
		wantAccess  string
		wantRefresh string
		wantCalls   int
	}{
		{
			name:    "no credential",
			wantNil: true,
		},
		{
			name: "fresh token passes through",
			cred: &domain.Credential{
				UserID:         user.ID,
				AccessToken:    "at-fresh",
				RefreshToken:   "rt",
				TokenExpiresAt: time.Now().Add(time.Hour),
			},
			wantAccess:  "at-fresh",
			wantRefresh: "rt",
			wantCalls:   0,
		},
		{
			name: "expiring token is refreshed",
			cred: &domain.Credential{
				UserID:         user.ID,
				AccessToken:    "at-old",
				RefreshToken:   "rt-old",
				TokenExpiresAt: time.Now().Add(2 * time.Minute),
			},
			refreshed: &out.TokenSet{
				AccessToken: "at-new",
				ExpiresAt:   time.Now().Add(time.Hour),
			},
			wantAccess: "at-new",
			// Google omits the refresh token on refresh; the stored one survives.
			wantRefresh: "rt-old",
			wantCalls:   1,
		},
		{
			name: "revoked grant yields nil without error",
			cred: &domain.Credential{
				UserID:         user.ID,
				AccessToken:    "at-old",
				RefreshToken:   "rt-dead",
				TokenExpiresAt: time.Now().Add(-time.Minute),
			},
			refreshErr: errors.New("oauth2: \"invalid_grant\""),
			wantNil:    true,
			wantCalls:  1,
		},
		{
			name: "expired without refresh token yields nil",
			cred: &domain.Credential{
				UserID:         user.ID,
				AccessToken:    "at-old",
				TokenExpiresAt: time.Now().Add(-time.Minute),
			},
			wantNil:   true,
			wantCalls: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &fakeProvider{refreshTokens: tt.refreshed, refreshErr: tt.refreshErr}
			svc, creds, _ := newTestService(users, provider)
			if tt.cred != nil {
				creds.creds[user.ID] = tt.cred
			}

			got, err := svc.ResolveValidCredentials(context.Background(), user.ID)
			if err != nil {
				t.Fatalf("ResolveValidCredentials() error = %v", err)
			}
			if provider.refreshCalls != tt.wantCalls {
				t.Errorf("refresh calls = %d, want %d", provider.refreshCalls, tt.wantCalls)
			}
			if tt.wantNil {
				if got != nil {
					t.Fatalf("ResolveValidCredentials() = %+v, want nil", got)
				}
				return
			}
			if got == nil {
				t.Fatal("ResolveValidCredentials() returned nil credential")
			}
			if got.AccessToken != tt.wantAccess {
				t.Errorf("AccessToken = %q, want %q", got.AccessToken, tt.wantAccess)
			}
			if got.RefreshToken != tt.wantRefresh {
				t.Errorf("RefreshToken = %q, want %q", got.RefreshToken, tt.wantRefresh)
			}
		})
	}
}

func TestResolveValidCredentialsPersistsRefresh(t *testing.T) {
	user := testUser()
	users := &fakeUserDirectory{byPhone: map[string]*domain.User{user.Phone: user}}
	provider := &fakeProvider{refreshTokens: &out.TokenSet{
		AccessToken: "at-new",
		ExpiresAt:   time.Now().Add(time.Hour),
	}}
	svc, creds, _ := newTestService(users, provider)
	creds.creds[user.ID] = &domain.Credential{
		UserID:         user.ID,
		AccessToken:    "at-old",
		RefreshToken:   "rt-old",
		TokenExpiresAt: time.Now().Add(time.Minute),
	}

	if _, err := svc.ResolveValidCredentials(context.Background(), user.ID); err != nil {
		t.Fatalf("ResolveValidCredentials() error = %v", err)
	}
	stored := creds.creds[user.ID]
	if stored.AccessToken != "at-new" {
		t.Errorf("stored access token = %q, want at-new", stored.AccessToken)
	}
	if stored.RefreshToken != "rt-old" {
		t.Errorf("stored refresh token = %q, want rt-old", stored.RefreshToken)
	}
}

func TestConnectionStatus(t *testing.T) {
	user := testUser()
	users := &fakeUserDirectory{byPhone: map[string]*domain.User{user.Phone: user}}

	tests := []struct {
		name       string
		cred       *domain.Credential
		refreshErr error
		wantStatus string
	}{
		{
			name:       "absent",
			wantStatus: StatusAbsent,
		},
		{
			name: "connected",
			cred: &domain.Credential{
				UserID:         user.ID,
				AccessToken:    "at",
				RefreshToken:   "rt",
				TokenExpiresAt: time.Now().Add(time.Hour),
			},
			wantStatus: StatusConnected,
		},
		{
			name: "expired",
			cred: &domain.Credential{
				UserID:         user.ID,
				AccessToken:    "at",
				RefreshToken:   "rt",
				TokenExpiresAt: time.Now().Add(-time.Hour),
			},
			refreshErr: errors.New("oauth2: \"invalid_grant\""),
			wantStatus: StatusExpired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &fakeProvider{refreshErr: tt.refreshErr}
			svc, creds, _ := newTestService(users, provider)
			if tt.cred != nil {
				creds.creds[user.ID] = tt.cred
			}

			got, err := svc.ConnectionStatus(context.Background(), user.ID)
			if err != nil {
				t.Fatalf("ConnectionStatus() error = %v", err)
			}
			if got.Status != tt.wantStatus {
				t.Errorf("Status = %q, want %q", got.Status, tt.wantStatus)
			}
			if got.Connected != (tt.wantStatus == StatusConnected) {
				t.Errorf("Connected = %v for status %q", got.Connected, got.Status)
			}
			if got.Message == "" {
				t.Error("Message is empty")
			}
		})
	}
}

func TestDisconnect(t *testing.T) {
	user := testUser()
	users := &fakeUserDirectory{byPhone: map[string]*domain.User{user.Phone: user}}
	svc, creds, _ := newTestService(users, &fakeProvider{})
	creds.creds[user.ID] = &domain.Credential{UserID: user.ID, AccessToken: "at"}

	if err := svc.Disconnect(context.Background(), user.ID); err != nil {
		t.Fatalf("Disconnect() error = %v", err)
	}
	if _, ok := creds.creds[user.ID]; ok {
		t.Error("credential still stored after Disconnect")
	}
	if err := svc.Disconnect(context.Background(), user.ID); apperr.GetHTTPStatus(err) != 404 {
		t.Errorf("second Disconnect() error = %v, want 404", err)
	}
}
