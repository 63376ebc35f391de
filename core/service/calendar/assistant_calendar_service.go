package calendar

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"assistant_server/core/domain"
	"assistant_server/core/port/in"
	"assistant_server/core/port/out"
	"assistant_server/pkg/apperr"
	"assistant_server/pkg/logger"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

const (
	defaultEventTime    = "09:00"
	defaultDurationMin  = 60
	duplicateThreshold  = 30 * time.Minute
	duplicateSimilarity = 0.8
	defaultSearchLimit  = 10
)

// CredentialSource yields usable Google credentials for a user, or nil when
// the user is not connected. The auth service implements it.
type CredentialSource interface {
	ResolveValidCredentials(ctx context.Context, userID uuid.UUID) (*domain.Credential, error)
}

// Service owns the local event store and the best-effort two-way sync with
// Google Calendar. The local database is the source of truth: remote failures
// never fail a local write, they only degrade the event's sync_status.
type Service struct {
	eventRepo out.EventRepository
	provider  out.CalendarProviderPort
	creds     CredentialSource
	defaultTZ string
}

var _ in.CalendarService = (*Service)(nil)

func NewService(eventRepo out.EventRepository, provider out.CalendarProviderPort, creds CredentialSource, defaultTZ string) *Service {
	if defaultTZ == "" {
		defaultTZ = "America/Argentina/Buenos_Aires"
	}
	return &Service{
		eventRepo: eventRepo,
		provider:  provider,
		creds:     creds,
		defaultTZ: defaultTZ,
	}
}

func (s *Service) CreateEvent(ctx context.Context, tenantID uuid.UUID, req *in.CreateEventRequest) (*in.CreateEventResult, error) {
	if strings.TrimSpace(req.Title) == "" {
		return nil, apperr.MissingField("title")
	}

	tz := req.Timezone
	if tz == "" {
		tz = s.defaultTZ
	}
	start, err := parseLocalDateTime(req.Date, req.Time, tz)
	if err != nil {
		return nil, err
	}
	duration := req.DurationMinutes
	if duration <= 0 {
		duration = defaultDurationMin
	}
	end := start.Add(time.Duration(duration) * time.Minute)

	if !req.ForceCreate {
		existing, err := s.eventRepo.FindPotentialDuplicate(ctx, tenantID, start, duplicateKeyword(req.Title), duplicateThreshold)
		if err != nil {
			return nil, apperr.DatabaseError("duplicate check", err)
		}
		if existing != nil {
			return &in.CreateEventResult{
				Created: false,
				Duplicate: &domain.DuplicateWarning{
					ExistingEvent:   existing,
					SimilarityScore: duplicateSimilarity,
					Message: fmt.Sprintf("Ya tenés un evento similar: \"%s\" el %s. ¿Querés crearlo igual?",
						existing.Title, existing.StartAt.In(start.Location()).Format("02/01 15:04")),
				},
			}, nil
		}
	}

	// Propagation requested means the event is born pending_sync, so the
	// reconciliation pass picks it up even if the push below never runs.
	status := domain.SyncStatusLocal
	if req.SyncToGoogle && req.SyncUserID != nil {
		status = domain.SyncStatusPendingSync
	}

	event := &domain.Event{
		TenantID:       tenantID,
		Title:          strings.TrimSpace(req.Title),
		Description:    req.Description,
		Location:       req.Location,
		StartAt:        start,
		EndAt:          &end,
		Timezone:       tz,
		RecurrenceRule: req.RecurrenceRule,
		CreatedBy:      req.CreatedBy,
		IdempotencyKey: req.IdempotencyKey,
		SyncStatus:     status,
		Source:         domain.EventSourceApp,
	}

	stored, err := s.eventRepo.Create(ctx, event)
	if err != nil {
		return nil, apperr.DatabaseError("create event", err)
	}

	if req.SyncToGoogle && req.SyncUserID != nil {
		stored = s.pushCreate(ctx, stored, *req.SyncUserID)
	}

	return &in.CreateEventResult{Created: true, Event: stored}, nil
}

func (s *Service) GetEvent(ctx context.Context, tenantID, eventID uuid.UUID) (*domain.Event, error) {
	event, err := s.eventRepo.GetByID(ctx, tenantID, eventID)
	if err != nil {
		if errors.Is(err, out.ErrNotFound) {
			return nil, apperr.NotFound("event")
		}
		return nil, apperr.DatabaseError("get event", err)
	}
	return event, nil
}

func (s *Service) UpdateEvent(ctx context.Context, tenantID, eventID uuid.UUID, req *in.UpdateEventRequest) (*domain.Event, error) {
	event, err := s.eventRepo.GetByID(ctx, tenantID, eventID)
	if err != nil {
		if errors.Is(err, out.ErrNotFound) {
			return nil, apperr.NotFound("event")
		}
		return nil, apperr.DatabaseError("get event", err)
	}

	patch := &out.EventPatch{
		Title:          req.Title,
		Description:    req.Description,
		Location:       req.Location,
		RecurrenceRule: req.RecurrenceRule,
	}

	// Start and end move only when the request touches the date or the time.
	if req.Date != nil || req.Time != nil {
		loc, err := time.LoadLocation(event.Timezone)
		if err != nil {
			loc = time.UTC
		}
		current := event.StartAt.In(loc)

		date := current.Format("2006-01-02")
		if req.Date != nil {
			date = *req.Date
		}
		clock := current.Format("15:04")
		if req.Time != nil {
			clock = *req.Time
		}
		start, err := parseLocalDateTime(date, clock, event.Timezone)
		if err != nil {
			return nil, err
		}

		duration := eventDurationMinutes(event)
		if req.DurationMinutes != nil && *req.DurationMinutes > 0 {
			duration = *req.DurationMinutes
		}
		end := start.Add(time.Duration(duration) * time.Minute)
		patch.StartAt = &start
		patch.EndAt = &end
	} else if req.DurationMinutes != nil && *req.DurationMinutes > 0 {
		end := event.StartAt.Add(time.Duration(*req.DurationMinutes) * time.Minute)
		patch.EndAt = &end
	}

	// A linked event goes back to pending_sync until the remote copy catches up.
	if event.GoogleEventID != nil {
		pending := domain.SyncStatusPendingSync
		patch.SyncStatus = &pending
	}

	updated, err := s.eventRepo.Update(ctx, tenantID, eventID, patch)
	if err != nil {
		if errors.Is(err, out.ErrNotFound) {
			return nil, apperr.NotFound("event")
		}
		return nil, apperr.DatabaseError("update event", err)
	}

	if updated.GoogleEventID != nil {
		syncUser := req.SyncUserID
		if syncUser == nil {
			syncUser = updated.CreatedBy
		}
		if syncUser != nil {
			updated = s.pushUpdate(ctx, updated, *syncUser)
		}
	}

	return updated, nil
}

// DeleteEvent removes the event locally after a best-effort remote delete.
// The remote call never blocks the local removal.
func (s *Service) DeleteEvent(ctx context.Context, tenantID, eventID uuid.UUID) error {
	event, err := s.eventRepo.GetByID(ctx, tenantID, eventID)
	if err != nil {
		if errors.Is(err, out.ErrNotFound) {
			return apperr.NotFound("event")
		}
		return apperr.DatabaseError("get event", err)
	}

	if event.GoogleEventID != nil && event.CreatedBy != nil {
		if token := s.tokenFor(ctx, *event.CreatedBy); token != nil {
			if err := s.provider.DeleteEvent(ctx, token, calendarIDOf(event), *event.GoogleEventID); err != nil {
				logger.Warn("[CalendarService.DeleteEvent] Remote delete failed for event %s: %v", event.ID, err)
			}
		}
	}

	if err := s.eventRepo.Delete(ctx, tenantID, eventID); err != nil {
		if errors.Is(err, out.ErrNotFound) {
			return apperr.NotFound("event")
		}
		return apperr.DatabaseError("delete event", err)
	}
	return nil
}

func (s *Service) SearchEvents(ctx context.Context, tenantID uuid.UUID, query string, limit int) ([]*domain.Event, error) {
	if strings.TrimSpace(query) == "" {
		return nil, apperr.MissingField("query")
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	events, err := s.eventRepo.Search(ctx, tenantID, query, limit)
	if err != nil {
		return nil, apperr.DatabaseError("search events", err)
	}
	return events, nil
}

// GetNextEvent returns the next upcoming event, or nil when the agenda is empty.
func (s *Service) GetNextEvent(ctx context.Context, tenantID uuid.UUID) (*domain.Event, error) {
	event, err := s.eventRepo.NextUpcoming(ctx, tenantID)
	if err != nil {
		if errors.Is(err, out.ErrNotFound) {
			return nil, nil
		}
		return nil, apperr.DatabaseError("next event", err)
	}
	return event, nil
}

// ResyncPendingEvents retries the remote push for every event stuck in
// pending_sync (plus any legacy sync_failed rows). Each event syncs with its
// creator's credentials.
func (s *Service) ResyncPendingEvents(ctx context.Context, tenantID uuid.UUID) (*in.ResyncResult, error) {
	pending, err := s.eventRepo.ListPendingSync(ctx, tenantID)
	if err != nil {
		return nil, apperr.DatabaseError("list pending events", err)
	}

	result := &in.ResyncResult{Attempted: len(pending)}
	for _, event := range pending {
		if event.CreatedBy == nil {
			result.Failed++
			continue
		}
		var synced *domain.Event
		if event.GoogleEventID != nil {
			synced = s.pushUpdate(ctx, event, *event.CreatedBy)
		} else {
			synced = s.pushCreate(ctx, event, *event.CreatedBy)
		}
		if synced.SyncStatus == domain.SyncStatusSynced {
			result.Synced++
		} else {
			result.Failed++
		}
	}

	logger.Info("[CalendarService.ResyncPendingEvents] Tenant %s: %d/%d synced", tenantID, result.Synced, result.Attempted)
	return result, nil
}

// pushCreate mirrors a local event into Google Calendar. It returns the event
// with its sync columns updated; every failure path is logged and swallowed,
// leaving the event in pending_sync so the reconciliation pass retries it.
func (s *Service) pushCreate(ctx context.Context, event *domain.Event, syncUserID uuid.UUID) *domain.Event {
	event = s.ensurePending(ctx, event)

	cred, err := s.creds.ResolveValidCredentials(ctx, syncUserID)
	if err != nil || cred == nil {
		if err != nil {
			logger.Warn("[CalendarService.pushCreate] Credential lookup failed for user %s: %v", syncUserID, err)
		}
		return event
	}

	remote, err := s.provider.CreateEvent(ctx, credentialToken(cred), cred.CalendarID, toRemoteEvent(event))
	if err != nil {
		logger.Warn("[CalendarService.pushCreate] Remote create failed for event %s: %v", event.ID, err)
		return event
	}

	return s.markStatus(ctx, event, domain.SyncStatusSynced, &remote.ID, &cred.CalendarID)
}

// pushUpdate pushes local changes of an already linked event.
func (s *Service) pushUpdate(ctx context.Context, event *domain.Event, syncUserID uuid.UUID) *domain.Event {
	if event.GoogleEventID == nil {
		return s.pushCreate(ctx, event, syncUserID)
	}

	event = s.ensurePending(ctx, event)

	cred, err := s.creds.ResolveValidCredentials(ctx, syncUserID)
	if err != nil || cred == nil {
		if err != nil {
			logger.Warn("[CalendarService.pushUpdate] Credential lookup failed for user %s: %v", syncUserID, err)
		}
		return event
	}

	remote, err := s.provider.UpdateEvent(ctx, credentialToken(cred), calendarIDOf(event), *event.GoogleEventID, toRemoteEvent(event))
	if err != nil {
		logger.Warn("[CalendarService.pushUpdate] Remote update failed for event %s: %v", event.ID, err)
		return event
	}

	return s.markStatus(ctx, event, domain.SyncStatusSynced, &remote.ID, nil)
}

// ensurePending moves an event back onto the retry path before a push
// attempt. Events that are already pending_sync pass through untouched.
func (s *Service) ensurePending(ctx context.Context, event *domain.Event) *domain.Event {
	if event.SyncStatus == domain.SyncStatusPendingSync {
		return event
	}
	return s.markStatus(ctx, event, domain.SyncStatusPendingSync, nil, nil)
}

func (s *Service) markStatus(ctx context.Context, event *domain.Event, status domain.SyncStatus, googleEventID, googleCalendarID *string) *domain.Event {
	patch := &out.EventPatch{SyncStatus: &status, GoogleEventID: googleEventID, GoogleCalendarID: googleCalendarID}
	if status == domain.SyncStatusSynced {
		now := time.Now()
		patch.LastSyncedAt = &now
	}
	updated, err := s.eventRepo.Update(ctx, event.TenantID, event.ID, patch)
	if err != nil {
		logger.Error("[CalendarService.markStatus] Failed to mark event %s as %s: %v", event.ID, status, err)
		return event
	}
	return updated
}

func (s *Service) tokenFor(ctx context.Context, userID uuid.UUID) *oauth2.Token {
	cred, err := s.creds.ResolveValidCredentials(ctx, userID)
	if err != nil || cred == nil {
		return nil
	}
	return credentialToken(cred)
}

func credentialToken(cred *domain.Credential) *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  cred.AccessToken,
		RefreshToken: cred.RefreshToken,
		Expiry:       cred.TokenExpiresAt,
		TokenType:    "Bearer",
	}
}

func toRemoteEvent(event *domain.Event) *out.RemoteEvent {
	remote := &out.RemoteEvent{
		Title:    event.Title,
		StartAt:  event.StartAt,
		EndAt:    event.EndAt,
		Timezone: event.Timezone,
	}
	if event.Description != nil {
		remote.Description = *event.Description
	}
	if event.Location != nil {
		remote.Location = *event.Location
	}
	return remote
}

func calendarIDOf(event *domain.Event) string {
	if event.GoogleCalendarID != nil && *event.GoogleCalendarID != "" {
		return *event.GoogleCalendarID
	}
	return "primary"
}

// duplicateKeyword reduces a title to its first word for the similarity probe.
func duplicateKeyword(title string) string {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(title)))
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func eventDurationMinutes(event *domain.Event) int {
	if event.EndAt != nil {
		if minutes := int(event.EndAt.Sub(event.StartAt).Minutes()); minutes > 0 {
			return minutes
		}
	}
	return defaultDurationMin
}

func parseLocalDateTime(date, clock, tz string) (time.Time, error) {
	if date == "" {
		return time.Time{}, apperr.MissingField("date")
	}
	if clock == "" {
		clock = defaultEventTime
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.Time{}, apperr.InvalidInput("timezone", "unknown timezone "+tz)
	}
	t, err := time.ParseInLocation("2006-01-02 15:04", date+" "+clock, loc)
	if err != nil {
		return time.Time{}, apperr.InvalidInput("date", "expected date 2006-01-02 and time 15:04")
	}
	return t, nil
}
