package calendar

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"assistant_server/core/domain"
	"assistant_server/core/port/in"
	"assistant_server/core/port/out"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

const testTZ = "America/Argentina/Buenos_Aires"

type fakeEventRepo struct {
	mu     sync.Mutex
	events map[uuid.UUID]*domain.Event
}

var _ out.EventRepository = (*fakeEventRepo)(nil)

func newFakeEventRepo() *fakeEventRepo {
	return &fakeEventRepo{events: make(map[uuid.UUID]*domain.Event)}
}

func (r *fakeEventRepo) Create(ctx context.Context, event *domain.Event) (*domain.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if event.IdempotencyKey != nil {
		for _, e := range r.events {
			if e.TenantID == event.TenantID && e.IdempotencyKey != nil && *e.IdempotencyKey == *event.IdempotencyKey {
				cp := *e
				return &cp, nil
			}
		}
	}
	cp := *event
	cp.ID = uuid.New()
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	r.events[cp.ID] = &cp
	res := cp
	return &res, nil
}

func (r *fakeEventRepo) GetByID(ctx context.Context, tenantID, eventID uuid.UUID) (*domain.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.events[eventID]
	if !ok || e.TenantID != tenantID {
		return nil, out.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (r *fakeEventRepo) GetByGoogleID(ctx context.Context, tenantID uuid.UUID, googleEventID string) (*domain.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e.TenantID == tenantID && e.GoogleEventID != nil && *e.GoogleEventID == googleEventID {
			cp := *e
			return &cp, nil
		}
	}
	return nil, out.ErrNotFound
}

func (r *fakeEventRepo) List(ctx context.Context, tenantID uuid.UUID, filter *domain.EventFilter) ([]*domain.Event, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*domain.Event
	for _, e := range r.events {
		if e.TenantID != tenantID {
			continue
		}
		if filter.StartDate != nil && e.StartAt.Before(*filter.StartDate) {
			continue
		}
		if filter.EndDate != nil && !e.StartAt.Before(*filter.EndDate) {
			continue
		}
		if filter.Search != nil && !strings.Contains(strings.ToLower(e.Title), strings.ToLower(*filter.Search)) {
			continue
		}
		cp := *e
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].StartAt.Before(result[j].StartAt) })
	return result, len(result), nil
}

func (r *fakeEventRepo) InRange(ctx context.Context, tenantID uuid.UUID, start, end time.Time) ([]*domain.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*domain.Event
	for _, e := range r.events {
		if e.TenantID != tenantID {
			continue
		}
		if e.StartAt.Before(start) || e.StartAt.After(end) {
			continue
		}
		cp := *e
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].StartAt.Before(result[j].StartAt) })
	return result, nil
}

func (r *fakeEventRepo) FindPotentialDuplicate(ctx context.Context, tenantID uuid.UUID, start time.Time, keyword string, threshold time.Duration) (*domain.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if keyword == "" {
		return nil, nil
	}
	for _, e := range r.events {
		if e.TenantID != tenantID {
			continue
		}
		diff := e.StartAt.Sub(start)
		if diff < 0 {
			diff = -diff
		}
		if diff < threshold && strings.Contains(strings.ToLower(e.Title), keyword) {
			cp := *e
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeEventRepo) Search(ctx context.Context, tenantID uuid.UUID, query string, limit int) ([]*domain.Event, error) {
	result, _, err := r.List(ctx, tenantID, &domain.EventFilter{Search: &query})
	if err != nil {
		return nil, err
	}
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *fakeEventRepo) NextUpcoming(ctx context.Context, tenantID uuid.UUID) (*domain.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var next *domain.Event
	now := time.Now()
	for _, e := range r.events {
		if e.TenantID != tenantID || e.StartAt.Before(now) {
			continue
		}
		if next == nil || e.StartAt.Before(next.StartAt) {
			next = e
		}
	}
	if next == nil {
		return nil, out.ErrNotFound
	}
	cp := *next
	return &cp, nil
}

func (r *fakeEventRepo) ListPendingSync(ctx context.Context, tenantID uuid.UUID) ([]*domain.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*domain.Event
	for _, e := range r.events {
		if e.TenantID != tenantID {
			continue
		}
		if e.SyncStatus == domain.SyncStatusPendingSync || e.SyncStatus == domain.SyncStatusFailed {
			cp := *e
			result = append(result, &cp)
		}
	}
	return result, nil
}

func (r *fakeEventRepo) Update(ctx context.Context, tenantID, eventID uuid.UUID, patch *out.EventPatch) (*domain.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.events[eventID]
	if !ok || e.TenantID != tenantID {
		return nil, out.ErrNotFound
	}
	if patch.Title != nil {
		e.Title = *patch.Title
	}
	if patch.Description != nil {
		e.Description = patch.Description
	}
	if patch.Location != nil {
		e.Location = patch.Location
	}
	if patch.StartAt != nil {
		e.StartAt = *patch.StartAt
	}
	if patch.EndAt != nil {
		e.EndAt = patch.EndAt
	}
	if patch.RecurrenceRule != nil {
		e.RecurrenceRule = patch.RecurrenceRule
	}
	if patch.SyncStatus != nil {
		e.SyncStatus = *patch.SyncStatus
	}
	if patch.GoogleEventID != nil {
		e.GoogleEventID = patch.GoogleEventID
	}
	if patch.GoogleCalendarID != nil {
		e.GoogleCalendarID = patch.GoogleCalendarID
	}
	if patch.LastSyncedAt != nil {
		e.LastSyncedAt = patch.LastSyncedAt
	}
	e.UpdatedAt = time.Now()
	cp := *e
	return &cp, nil
}

func (r *fakeEventRepo) Delete(ctx context.Context, tenantID, eventID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.events[eventID]
	if !ok || e.TenantID != tenantID {
		return out.ErrNotFound
	}
	delete(r.events, eventID)
	return nil
}

type fakeCredSource struct {
	cred *domain.Credential
}

func (c *fakeCredSource) ResolveValidCredentials(ctx context.Context, userID uuid.UUID) (*domain.Credential, error) {
	if c.cred == nil {
		return nil, nil
	}
	return c.cred, nil
}

type fakeCalendarProvider struct {
	createErr   error
	updateErr   error
	deleteErr   error
	listed      []*out.RemoteEvent
	listErr     error
	createCalls int
	updateCalls int
	deleteCalls int
}

var _ out.CalendarProviderPort = (*fakeCalendarProvider)(nil)

func (p *fakeCalendarProvider) AuthCodeURL(state string) string { return "https://auth/" + state }

func (p *fakeCalendarProvider) Exchange(ctx context.Context, code string) (*out.TokenSet, error) {
	return nil, errors.New("not implemented")
}

func (p *fakeCalendarProvider) Refresh(ctx context.Context, refreshToken string) (*out.TokenSet, error) {
	return nil, errors.New("not implemented")
}

func (p *fakeCalendarProvider) CreateEvent(ctx context.Context, token *oauth2.Token, calendarID string, event *out.RemoteEvent) (*out.RemoteEvent, error) {
	p.createCalls++
	if p.createErr != nil {
		return nil, p.createErr
	}
	cp := *event
	cp.ID = "g-" + uuid.NewString()[:8]
	cp.CalendarID = calendarID
	return &cp, nil
}

func (p *fakeCalendarProvider) UpdateEvent(ctx context.Context, token *oauth2.Token, calendarID, eventID string, event *out.RemoteEvent) (*out.RemoteEvent, error) {
	p.updateCalls++
	if p.updateErr != nil {
		return nil, p.updateErr
	}
	cp := *event
	cp.ID = eventID
	cp.CalendarID = calendarID
	return &cp, nil
}

func (p *fakeCalendarProvider) DeleteEvent(ctx context.Context, token *oauth2.Token, calendarID, eventID string) error {
	p.deleteCalls++
	return p.deleteErr
}

func (p *fakeCalendarProvider) ListEvents(ctx context.Context, token *oauth2.Token, calendarID string, start, end time.Time) ([]*out.RemoteEvent, error) {
	if p.listErr != nil {
		return nil, p.listErr
	}
	return p.listed, nil
}

func (p *fakeCalendarProvider) GetEvent(ctx context.Context, token *oauth2.Token, calendarID, eventID string) (*out.RemoteEvent, error) {
	return nil, nil
}

func connectedCred(userID uuid.UUID) *domain.Credential {
	return &domain.Credential{
		UserID:         userID,
		AccessToken:    "at",
		RefreshToken:   "rt",
		TokenExpiresAt: time.Now().Add(time.Hour),
		CalendarID:     "primary",
	}
}

func newCalendarTestService(cred *domain.Credential) (*Service, *fakeEventRepo, *fakeCalendarProvider) {
	repo := newFakeEventRepo()
	provider := &fakeCalendarProvider{}
	svc := NewService(repo, provider, &fakeCredSource{cred: cred}, testTZ)
	return svc, repo, provider
}

func TestCreateEventDefaults(t *testing.T) {
	tenantID := uuid.New()
	svc, _, _ := newCalendarTestService(nil)

	result, err := svc.CreateEvent(context.Background(), tenantID, &in.CreateEventRequest{
		Title: "Dentista",
		Date:  "2026-09-10",
	})
	if err != nil {
		t.Fatalf("CreateEvent() error = %v", err)
	}
	if !result.Created {
		t.Fatal("Created = false, want true")
	}
	event := result.Event

	loc, _ := time.LoadLocation(testTZ)
	wantStart := time.Date(2026, 9, 10, 9, 0, 0, 0, loc)
	if !event.StartAt.Equal(wantStart) {
		t.Errorf("StartAt = %v, want %v", event.StartAt, wantStart)
	}
	if event.EndAt == nil || !event.EndAt.Equal(wantStart.Add(time.Hour)) {
		t.Errorf("EndAt = %v, want %v", event.EndAt, wantStart.Add(time.Hour))
	}
	if event.SyncStatus != domain.SyncStatusLocal {
		t.Errorf("SyncStatus = %s, want local", event.SyncStatus)
	}
	if event.Source != domain.EventSourceApp {
		t.Errorf("Source = %s, want app", event.Source)
	}
}

func TestCreateEventRejectsMissingFields(t *testing.T) {
	tenantID := uuid.New()
	svc, _, _ := newCalendarTestService(nil)

	tests := []struct {
		name string
		req  *in.CreateEventRequest
	}{
		{"empty title", &in.CreateEventRequest{Date: "2026-09-10"}},
		{"empty date", &in.CreateEventRequest{Title: "Turno"}},
		{"bad date", &in.CreateEventRequest{Title: "Turno", Date: "10/09/2026"}},
		{"bad timezone", &in.CreateEventRequest{Title: "Turno", Date: "2026-09-10", Timezone: "Mars/Olympus"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.CreateEvent(context.Background(), tenantID, tt.req); err == nil {
				t.Error("CreateEvent() succeeded, want error")
			}
		})
	}
}

func TestCreateEventDuplicateGate(t *testing.T) {
	tenantID := uuid.New()
	svc, _, _ := newCalendarTestService(nil)

	first, err := svc.CreateEvent(context.Background(), tenantID, &in.CreateEventRequest{
		Title: "Dentista con la Dra. López",
		Date:  "2026-09-10",
		Time:  "10:00",
	})
	if err != nil {
		t.Fatalf("CreateEvent() error = %v", err)
	}

	// Same first word, 20 minutes later: inside the window.
	dup, err := svc.CreateEvent(context.Background(), tenantID, &in.CreateEventRequest{
		Title: "Dentista control",
		Date:  "2026-09-10",
		Time:  "10:20",
	})
	if err != nil {
		t.Fatalf("CreateEvent() error = %v", err)
	}
	if dup.Created {
		t.Fatal("Created = true, want duplicate warning")
	}
	if dup.Duplicate == nil {
		t.Fatal("Duplicate is nil")
	}
	if dup.Duplicate.ExistingEvent.ID != first.Event.ID {
		t.Error("duplicate warning points at the wrong event")
	}
	if dup.Duplicate.SimilarityScore != duplicateSimilarity {
		t.Errorf("SimilarityScore = %v, want %v", dup.Duplicate.SimilarityScore, duplicateSimilarity)
	}
	if dup.Duplicate.Message == "" {
		t.Error("duplicate warning has no message")
	}

	// An hour away: outside the window.
	far, err := svc.CreateEvent(context.Background(), tenantID, &in.CreateEventRequest{
		Title: "Dentista control",
		Date:  "2026-09-10",
		Time:  "11:30",
	})
	if err != nil {
		t.Fatalf("CreateEvent() error = %v", err)
	}
	if !far.Created {
		t.Error("event an hour away was flagged as duplicate")
	}

	// ForceCreate bypasses the gate entirely.
	forced, err := svc.CreateEvent(context.Background(), tenantID, &in.CreateEventRequest{
		Title:       "Dentista control",
		Date:        "2026-09-10",
		Time:        "10:20",
		ForceCreate: true,
	})
	if err != nil {
		t.Fatalf("CreateEvent() error = %v", err)
	}
	if !forced.Created {
		t.Error("ForceCreate did not bypass the duplicate gate")
	}
}

func TestCreateEventIdempotencyKey(t *testing.T) {
	tenantID := uuid.New()
	svc, _, _ := newCalendarTestService(nil)
	key := "wa-msg-123"

	first, err := svc.CreateEvent(context.Background(), tenantID, &in.CreateEventRequest{
		Title:          "Turno pediatra",
		Date:           "2026-09-11",
		IdempotencyKey: &key,
	})
	if err != nil {
		t.Fatalf("CreateEvent() error = %v", err)
	}
	second, err := svc.CreateEvent(context.Background(), tenantID, &in.CreateEventRequest{
		Title:          "Turno pediatra",
		Date:           "2026-09-11",
		IdempotencyKey: &key,
		ForceCreate:    true,
	})
	if err != nil {
		t.Fatalf("CreateEvent() retry error = %v", err)
	}
	if first.Event.ID != second.Event.ID {
		t.Errorf("retry created a new event: %s vs %s", first.Event.ID, second.Event.ID)
	}
}

func TestCreateEventSyncsToGoogle(t *testing.T) {
	tenantID := uuid.New()
	userID := uuid.New()

	tests := []struct {
		name       string
		cred       *domain.Credential
		createErr  error
		wantStatus domain.SyncStatus
		wantLinked bool
	}{
		{
			name:       "sync success",
			cred:       connectedCred(userID),
			wantStatus: domain.SyncStatusSynced,
			wantLinked: true,
		},
		{
			name:       "remote failure stays pending_sync",
			cred:       connectedCred(userID),
			createErr:  out.NewCalendarError(out.CalendarErrCreateFailed, "boom", errors.New("503")),
			wantStatus: domain.SyncStatusPendingSync,
		},
		{
			name:       "not connected stays pending_sync",
			wantStatus: domain.SyncStatusPendingSync,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo, provider := newCalendarTestService(tt.cred)
			provider.createErr = tt.createErr

			result, err := svc.CreateEvent(context.Background(), tenantID, &in.CreateEventRequest{
				Title:        "Reunión colegio",
				Date:         "2026-09-12",
				Time:         "18:00",
				SyncToGoogle: true,
				SyncUserID:   &userID,
			})
			if err != nil {
				t.Fatalf("CreateEvent() error = %v", err)
			}
			if !result.Created {
				t.Fatal("Created = false")
			}
			stored, err := repo.GetByID(context.Background(), tenantID, result.Event.ID)
			if err != nil {
				t.Fatalf("event not stored: %v", err)
			}
			if stored.SyncStatus != tt.wantStatus {
				t.Errorf("SyncStatus = %s, want %s", stored.SyncStatus, tt.wantStatus)
			}
			if tt.wantLinked {
				if stored.GoogleEventID == nil || *stored.GoogleEventID == "" {
					t.Error("GoogleEventID not set after successful sync")
				}
				if stored.LastSyncedAt == nil {
					t.Error("LastSyncedAt not set after successful sync")
				}
			}
			if tt.wantStatus == domain.SyncStatusPendingSync {
				pending, err := repo.ListPendingSync(context.Background(), tenantID)
				if err != nil {
					t.Fatalf("ListPendingSync() error = %v", err)
				}
				if len(pending) != 1 || pending[0].ID != stored.ID {
					t.Error("event not queued for the resync pass")
				}
			}
		})
	}
}

func TestUpdateEventRecomputesSchedule(t *testing.T) {
	tenantID := uuid.New()
	svc, _, _ := newCalendarTestService(nil)

	created, err := svc.CreateEvent(context.Background(), tenantID, &in.CreateEventRequest{
		Title:           "Fútbol",
		Date:            "2026-09-14",
		Time:            "17:00",
		DurationMinutes: 90,
	})
	if err != nil {
		t.Fatalf("CreateEvent() error = %v", err)
	}
	eventID := created.Event.ID
	loc, _ := time.LoadLocation(testTZ)

	// Title change alone leaves the schedule untouched.
	newTitle := "Fútbol 5"
	updated, err := svc.UpdateEvent(context.Background(), tenantID, eventID, &in.UpdateEventRequest{Title: &newTitle})
	if err != nil {
		t.Fatalf("UpdateEvent() error = %v", err)
	}
	if updated.Title != newTitle {
		t.Errorf("Title = %q, want %q", updated.Title, newTitle)
	}
	if !updated.StartAt.Equal(created.Event.StartAt) {
		t.Errorf("StartAt moved on a title-only update: %v", updated.StartAt)
	}

	// A date change keeps the stored clock time and duration.
	newDate := "2026-09-15"
	updated, err = svc.UpdateEvent(context.Background(), tenantID, eventID, &in.UpdateEventRequest{Date: &newDate})
	if err != nil {
		t.Fatalf("UpdateEvent() error = %v", err)
	}
	wantStart := time.Date(2026, 9, 15, 17, 0, 0, 0, loc)
	if !updated.StartAt.Equal(wantStart) {
		t.Errorf("StartAt = %v, want %v", updated.StartAt, wantStart)
	}
	if updated.EndAt == nil || !updated.EndAt.Equal(wantStart.Add(90*time.Minute)) {
		t.Errorf("EndAt = %v, want %v", updated.EndAt, wantStart.Add(90*time.Minute))
	}

	// A time change on its own also recomputes.
	newClock := "19:30"
	updated, err = svc.UpdateEvent(context.Background(), tenantID, eventID, &in.UpdateEventRequest{Time: &newClock})
	if err != nil {
		t.Fatalf("UpdateEvent() error = %v", err)
	}
	wantStart = time.Date(2026, 9, 15, 19, 30, 0, 0, loc)
	if !updated.StartAt.Equal(wantStart) {
		t.Errorf("StartAt = %v, want %v", updated.StartAt, wantStart)
	}
}

func TestUpdateEventPushesLinkedEvent(t *testing.T) {
	tenantID := uuid.New()
	userID := uuid.New()
	svc, repo, provider := newCalendarTestService(connectedCred(userID))

	created, err := svc.CreateEvent(context.Background(), tenantID, &in.CreateEventRequest{
		Title:        "Médico",
		Date:         "2026-09-16",
		Time:         "10:00",
		SyncToGoogle: true,
		SyncUserID:   &userID,
	})
	if err != nil {
		t.Fatalf("CreateEvent() error = %v", err)
	}

	newClock := "11:00"
	updated, err := svc.UpdateEvent(context.Background(), tenantID, created.Event.ID, &in.UpdateEventRequest{
		Time:       &newClock,
		SyncUserID: &userID,
	})
	if err != nil {
		t.Fatalf("UpdateEvent() error = %v", err)
	}
	if provider.updateCalls != 1 {
		t.Errorf("remote update calls = %d, want 1", provider.updateCalls)
	}
	if updated.SyncStatus != domain.SyncStatusSynced {
		t.Errorf("SyncStatus = %s, want synced", updated.SyncStatus)
	}

	// Remote failure leaves the local change in place, still pending_sync.
	provider.updateErr = out.NewCalendarError(out.CalendarErrUpdateFailed, "boom", errors.New("502"))
	newClock = "12:00"
	updated, err = svc.UpdateEvent(context.Background(), tenantID, created.Event.ID, &in.UpdateEventRequest{
		Time:       &newClock,
		SyncUserID: &userID,
	})
	if err != nil {
		t.Fatalf("UpdateEvent() error = %v", err)
	}
	if updated.SyncStatus != domain.SyncStatusPendingSync {
		t.Errorf("SyncStatus = %s, want pending_sync", updated.SyncStatus)
	}
	stored, _ := repo.GetByID(context.Background(), tenantID, created.Event.ID)
	loc, _ := time.LoadLocation(testTZ)
	if !stored.StartAt.Equal(time.Date(2026, 9, 16, 12, 0, 0, 0, loc)) {
		t.Errorf("local change lost after remote failure: %v", stored.StartAt)
	}
}

func TestDeleteEventBestEffortRemote(t *testing.T) {
	tenantID := uuid.New()
	userID := uuid.New()
	svc, repo, provider := newCalendarTestService(connectedCred(userID))

	created, err := svc.CreateEvent(context.Background(), tenantID, &in.CreateEventRequest{
		Title:        "Cumple",
		Date:         "2026-09-20",
		CreatedBy:    &userID,
		SyncToGoogle: true,
		SyncUserID:   &userID,
	})
	if err != nil {
		t.Fatalf("CreateEvent() error = %v", err)
	}

	// Remote delete blows up; the local row still goes away.
	provider.deleteErr = out.NewCalendarError(out.CalendarErrDeleteFailed, "boom", errors.New("500"))
	if err := svc.DeleteEvent(context.Background(), tenantID, created.Event.ID); err != nil {
		t.Fatalf("DeleteEvent() error = %v", err)
	}
	if provider.deleteCalls != 1 {
		t.Errorf("remote delete calls = %d, want 1", provider.deleteCalls)
	}
	if _, err := repo.GetByID(context.Background(), tenantID, created.Event.ID); !errors.Is(err, out.ErrNotFound) {
		t.Error("event still stored after delete")
	}
}

func TestGetNextEventEmptyAgenda(t *testing.T) {
	svc, _, _ := newCalendarTestService(nil)
	event, err := svc.GetNextEvent(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("GetNextEvent() error = %v", err)
	}
	if event != nil {
		t.Errorf("GetNextEvent() = %+v, want nil", event)
	}
}

func TestResyncPendingEvents(t *testing.T) {
	tenantID := uuid.New()
	userID := uuid.New()
	svc, repo, provider := newCalendarTestService(connectedCred(userID))

	// The first push fails, leaving the event in pending_sync.
	provider.createErr = out.NewCalendarError(out.CalendarErrCreateFailed, "boom", errors.New("503"))
	failed, err := svc.CreateEvent(context.Background(), tenantID, &in.CreateEventRequest{
		Title:        "Veterinaria",
		Date:         "2026-09-22",
		CreatedBy:    &userID,
		SyncToGoogle: true,
		SyncUserID:   &userID,
	})
	if err != nil {
		t.Fatalf("CreateEvent() error = %v", err)
	}
	provider.createErr = nil

	result, err := svc.ResyncPendingEvents(context.Background(), tenantID)
	if err != nil {
		t.Fatalf("ResyncPendingEvents() error = %v", err)
	}
	if result.Attempted != 1 || result.Synced != 1 || result.Failed != 0 {
		t.Errorf("ResyncPendingEvents() = %+v, want attempted=1 synced=1", result)
	}
	stored, _ := repo.GetByID(context.Background(), tenantID, failed.Event.ID)
	if stored.SyncStatus != domain.SyncStatusSynced {
		t.Errorf("SyncStatus = %s, want synced", stored.SyncStatus)
	}
}
