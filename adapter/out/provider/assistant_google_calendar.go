// Package provider contains adapters for external service integrations.
package provider

import (
	"context"
	"time"

	"assistant_server/core/port/out"
	"assistant_server/pkg/logger"

	"github.com/sony/gobreaker"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// GoogleCalendarAdapter implements out.CalendarProviderPort against the
// Google Calendar API, with a circuit breaker guarding every API call.
type GoogleCalendarAdapter struct {
	config      *oauth2.Config
	cb          *gobreaker.CircuitBreaker
	callTimeout time.Duration
}

var _ out.CalendarProviderPort = (*GoogleCalendarAdapter)(nil)

const defaultCallTimeout = 30 * time.Second

// GoogleCalendarConfig holds the OAuth client settings. CallTimeout bounds
// every API call; zero means the 30s default.
type GoogleCalendarConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
	CallTimeout  time.Duration
}

// NewGoogleCalendarAdapter creates a new Google Calendar adapter.
func NewGoogleCalendarAdapter(cfg *GoogleCalendarConfig) *GoogleCalendarAdapter {
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{
			calendar.CalendarEventsScope,
			calendar.CalendarReadonlyScope,
		}
	}

	config := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Scopes:       scopes,
		Endpoint:     google.Endpoint,
	}

	cbSettings := gobreaker.Settings{
		Name:        "google-calendar-api",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.ConsecutiveFailures > 5 ||
				(counts.Requests >= 10 && failureRatio >= 0.6)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("[CircuitBreaker] %s: state changed from %s to %s", name, from.String(), to.String())
		},
	}

	timeout := cfg.CallTimeout
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}

	return &GoogleCalendarAdapter{
		config:      config,
		cb:          gobreaker.NewCircuitBreaker(cbSettings),
		callTimeout: timeout,
	}
}

// getService creates a Calendar service bound to the token.
func (a *GoogleCalendarAdapter) getService(ctx context.Context, token *oauth2.Token) (*calendar.Service, error) {
	client := a.config.Client(ctx, token)
	return calendar.NewService(ctx, option.WithHTTPClient(client))
}

// =============================================================================
// OAuth
// =============================================================================

// AuthCodeURL returns the consent screen URL. Offline access plus forced
// approval guarantees Google hands back a refresh token.
func (a *GoogleCalendarAdapter) AuthCodeURL(state string) string {
	return a.config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange trades the authorization code for a token set.
func (a *GoogleCalendarAdapter) Exchange(ctx context.Context, code string) (*out.TokenSet, error) {
	token, err := a.config.Exchange(ctx, code)
	if err != nil {
		return nil, &out.AuthError{Message: "failed to exchange authorization code", Err: err}
	}
	return &out.TokenSet{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.Expiry,
		Scopes:       a.config.Scopes,
	}, nil
}

// Refresh obtains a fresh access token from the stored refresh token.
func (a *GoogleCalendarAdapter) Refresh(ctx context.Context, refreshToken string) (*out.TokenSet, error) {
	src := a.config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	token, err := src.Token()
	if err != nil {
		return nil, &out.AuthError{Message: "failed to refresh token", Err: err}
	}
	return &out.TokenSet{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.Expiry,
	}, nil
}

// =============================================================================
// Event Operations
// =============================================================================

// CreateEvent inserts the event into the calendar.
func (a *GoogleCalendarAdapter) CreateEvent(ctx context.Context, token *oauth2.Token, calendarID string, event *out.RemoteEvent) (*out.RemoteEvent, error) {
	svc, err := a.getService(ctx, token)
	if err != nil {
		return nil, out.NewCalendarError(out.CalendarErrCreateFailed, "failed to create calendar service", err)
	}
	if calendarID == "" {
		calendarID = "primary"
	}

	var created *calendar.Event
	cbErr := a.executeWithCircuitBreaker(ctx, "CreateEvent", func(callCtx context.Context) error {
		var apiErr error
		created, apiErr = svc.Events.Insert(calendarID, a.toGoogleEvent(event)).Context(callCtx).Do()
		return apiErr
	})
	if cbErr != nil {
		return nil, out.NewCalendarError(out.CalendarErrCreateFailed, "failed to create event", cbErr)
	}

	return a.convertEvent(created, calendarID), nil
}

// UpdateEvent overwrites the remote copy of an event.
func (a *GoogleCalendarAdapter) UpdateEvent(ctx context.Context, token *oauth2.Token, calendarID, eventID string, event *out.RemoteEvent) (*out.RemoteEvent, error) {
	svc, err := a.getService(ctx, token)
	if err != nil {
		return nil, out.NewCalendarError(out.CalendarErrUpdateFailed, "failed to create calendar service", err)
	}
	if calendarID == "" {
		calendarID = "primary"
	}

	var updated *calendar.Event
	cbErr := a.executeWithCircuitBreaker(ctx, "UpdateEvent", func(callCtx context.Context) error {
		var apiErr error
		updated, apiErr = svc.Events.Update(calendarID, eventID, a.toGoogleEvent(event)).Context(callCtx).Do()
		return apiErr
	})
	if cbErr != nil {
		return nil, out.NewCalendarError(out.CalendarErrUpdateFailed, "failed to update event", cbErr)
	}

	return a.convertEvent(updated, calendarID), nil
}

// DeleteEvent removes the remote event. A 404 or 410 counts as success: the
// event is gone either way.
func (a *GoogleCalendarAdapter) DeleteEvent(ctx context.Context, token *oauth2.Token, calendarID, eventID string) error {
	svc, err := a.getService(ctx, token)
	if err != nil {
		return out.NewCalendarError(out.CalendarErrDeleteFailed, "failed to create calendar service", err)
	}
	if calendarID == "" {
		calendarID = "primary"
	}

	cbErr := a.executeWithCircuitBreaker(ctx, "DeleteEvent", func(callCtx context.Context) error {
		return svc.Events.Delete(calendarID, eventID).Context(callCtx).Do()
	})
	if cbErr != nil {
		if apiErr, ok := cbErr.(*googleapi.Error); ok && (apiErr.Code == 404 || apiErr.Code == 410) {
			return nil
		}
		return out.NewCalendarError(out.CalendarErrDeleteFailed, "failed to delete event", cbErr)
	}
	return nil
}

// ListEvents fetches single-instance events in [start, end], ordered by start.
func (a *GoogleCalendarAdapter) ListEvents(ctx context.Context, token *oauth2.Token, calendarID string, start, end time.Time) ([]*out.RemoteEvent, error) {
	svc, err := a.getService(ctx, token)
	if err != nil {
		return nil, out.NewCalendarError(out.CalendarErrListFailed, "failed to create calendar service", err)
	}
	if calendarID == "" {
		calendarID = "primary"
	}

	var resp *calendar.Events
	cbErr := a.executeWithCircuitBreaker(ctx, "ListEvents", func(callCtx context.Context) error {
		var apiErr error
		resp, apiErr = svc.Events.List(calendarID).
			TimeMin(start.Format(time.RFC3339)).
			TimeMax(end.Format(time.RFC3339)).
			SingleEvents(true).
			OrderBy("startTime").
			MaxResults(250).
			Context(callCtx).Do()
		return apiErr
	})
	if cbErr != nil {
		return nil, out.NewCalendarError(out.CalendarErrListFailed, "failed to list events", cbErr)
	}

	events := make([]*out.RemoteEvent, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.Status == "cancelled" {
			continue
		}
		events = append(events, a.convertEvent(item, calendarID))
	}
	return events, nil
}

// GetEvent fetches one event, returning (nil, nil) when it no longer exists.
func (a *GoogleCalendarAdapter) GetEvent(ctx context.Context, token *oauth2.Token, calendarID, eventID string) (*out.RemoteEvent, error) {
	svc, err := a.getService(ctx, token)
	if err != nil {
		return nil, out.NewCalendarError(out.CalendarErrGetFailed, "failed to create calendar service", err)
	}
	if calendarID == "" {
		calendarID = "primary"
	}

	var event *calendar.Event
	cbErr := a.executeWithCircuitBreaker(ctx, "GetEvent", func(callCtx context.Context) error {
		var apiErr error
		event, apiErr = svc.Events.Get(calendarID, eventID).Context(callCtx).Do()
		return apiErr
	})
	if cbErr != nil {
		if apiErr, ok := cbErr.(*googleapi.Error); ok && (apiErr.Code == 404 || apiErr.Code == 410) {
			return nil, nil
		}
		return nil, out.NewCalendarError(out.CalendarErrGetFailed, "failed to get event", cbErr)
	}

	return a.convertEvent(event, calendarID), nil
}

// =============================================================================
// Circuit Breaker
// =============================================================================

// executeWithCircuitBreaker runs fn under the breaker with a bounded
// deadline. A timeout counts as a remote failure like any other.
func (a *GoogleCalendarAdapter) executeWithCircuitBreaker(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	_, err := a.cb.Execute(func() (interface{}, error) {
		callCtx, cancel := context.WithTimeout(ctx, a.callTimeout)
		defer cancel()
		if err := fn(callCtx); err != nil {
			if apiErr, ok := err.(*googleapi.Error); ok {
				switch apiErr.Code {
				case 500, 502, 503, 429:
					// Server-side trouble trips the breaker.
					return nil, err
				case 400, 401, 403, 404, 410:
					// Client errors must not open the circuit.
					return nil, &nonCircuitError{err: err}
				}
			}
			return nil, err
		}
		return nil, nil
	})

	if nce, ok := err.(*nonCircuitError); ok {
		return nce.err
	}

	if err != nil {
		logger.Warn("[GoogleCalendarAdapter] Circuit breaker error for %s: state=%s, err=%v",
			operation, a.cb.State().String(), err)
	}
	return err
}

// nonCircuitError wraps errors that should not trip the circuit breaker.
type nonCircuitError struct {
	err error
}

func (e *nonCircuitError) Error() string {
	return e.err.Error()
}

// CircuitBreakerState reports the breaker state for health checks.
func (a *GoogleCalendarAdapter) CircuitBreakerState() string {
	return a.cb.State().String()
}

// =============================================================================
// Conversion
// =============================================================================

func (a *GoogleCalendarAdapter) convertEvent(event *calendar.Event, calendarID string) *out.RemoteEvent {
	result := &out.RemoteEvent{
		ID:          event.Id,
		CalendarID:  calendarID,
		Title:       event.Summary,
		Description: event.Description,
		Location:    event.Location,
		Status:      event.Status,
	}

	if event.Start != nil {
		if event.Start.DateTime != "" {
			t, _ := time.Parse(time.RFC3339, event.Start.DateTime)
			result.StartAt = t
			result.Timezone = event.Start.TimeZone
		} else if event.Start.Date != "" {
			t, _ := time.Parse("2006-01-02", event.Start.Date)
			result.StartAt = t
			result.IsAllDay = true
		}
	}

	if event.End != nil {
		if event.End.DateTime != "" {
			t, _ := time.Parse(time.RFC3339, event.End.DateTime)
			result.EndAt = &t
		} else if event.End.Date != "" {
			t, _ := time.Parse("2006-01-02", event.End.Date)
			result.EndAt = &t
		}
	}

	return result
}

func (a *GoogleCalendarAdapter) toGoogleEvent(event *out.RemoteEvent) *calendar.Event {
	gcalEvent := &calendar.Event{
		Summary:     event.Title,
		Description: event.Description,
		Location:    event.Location,
	}

	if event.IsAllDay {
		gcalEvent.Start = &calendar.EventDateTime{Date: event.StartAt.Format("2006-01-02")}
		end := event.StartAt.AddDate(0, 0, 1)
		if event.EndAt != nil {
			end = *event.EndAt
		}
		gcalEvent.End = &calendar.EventDateTime{Date: end.Format("2006-01-02")}
		return gcalEvent
	}

	gcalEvent.Start = &calendar.EventDateTime{
		DateTime: event.StartAt.Format(time.RFC3339),
		TimeZone: event.Timezone,
	}
	end := event.StartAt.Add(time.Hour)
	if event.EndAt != nil {
		end = *event.EndAt
	}
	gcalEvent.End = &calendar.EventDateTime{
		DateTime: end.Format(time.RFC3339),
		TimeZone: event.Timezone,
	}
	return gcalEvent
}
