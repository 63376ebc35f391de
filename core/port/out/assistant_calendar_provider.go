package out

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/oauth2"
)

// RemoteEvent is the provider-neutral projection of a Google Calendar event.
type RemoteEvent struct {
	ID          string
	CalendarID  string
	Title       string
	Description string
	Location    string
	StartAt     time.Time
	EndAt       *time.Time
	Timezone    string
	IsAllDay    bool
	Status      string
}

// TokenSet is the result of an OAuth code exchange or token refresh.
type TokenSet struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	Scopes       []string
}

// CalendarProviderPort is the outbound port for the remote calendar.
// Implementations return *CalendarError for calendar API failures and
// *AuthError for OAuth failures; no raw provider errors cross this boundary.
type CalendarProviderPort interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*TokenSet, error)
	Refresh(ctx context.Context, refreshToken string) (*TokenSet, error)

	CreateEvent(ctx context.Context, token *oauth2.Token, calendarID string, event *RemoteEvent) (*RemoteEvent, error)
	UpdateEvent(ctx context.Context, token *oauth2.Token, calendarID, eventID string, event *RemoteEvent) (*RemoteEvent, error)

	// DeleteEvent treats a 404 from the provider as success.
	DeleteEvent(ctx context.Context, token *oauth2.Token, calendarID, eventID string) error

	ListEvents(ctx context.Context, token *oauth2.Token, calendarID string, start, end time.Time) ([]*RemoteEvent, error)

	// GetEvent returns (nil, nil) when the event does not exist remotely.
	GetEvent(ctx context.Context, token *oauth2.Token, calendarID, eventID string) (*RemoteEvent, error)
}

// CalendarErrorKind classifies remote calendar failures.
type CalendarErrorKind string

const (
	CalendarErrNoCredentials CalendarErrorKind = "no_credentials"
	CalendarErrCreateFailed  CalendarErrorKind = "create_failed"
	CalendarErrUpdateFailed  CalendarErrorKind = "update_failed"
	CalendarErrDeleteFailed  CalendarErrorKind = "delete_failed"
	CalendarErrListFailed    CalendarErrorKind = "list_failed"
	CalendarErrGetFailed     CalendarErrorKind = "get_failed"
)

// CalendarError is a recoverable remote calendar failure. Local writes never
// fail because of one; sync degrades to pending_sync instead.
type CalendarError struct {
	Kind    CalendarErrorKind
	Message string
	Err     error
}

func (e *CalendarError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("calendar %s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("calendar %s: %s", e.Kind, e.Message)
}

func (e *CalendarError) Unwrap() error {
	return e.Err
}

// NewCalendarError builds a CalendarError.
func NewCalendarError(kind CalendarErrorKind, message string, err error) *CalendarError {
	return &CalendarError{Kind: kind, Message: message, Err: err}
}

// AuthError is an OAuth failure that requires the user to re-authorize.
type AuthError struct {
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("oauth: %s: %v", e.Message, e.Err)
	}
	return "oauth: " + e.Message
}

func (e *AuthError) Unwrap() error {
	return e.Err
}
