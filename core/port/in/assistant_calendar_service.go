package in

import (
	"context"
	"time"

	"assistant_server/core/domain"

	"github.com/google/uuid"
)

type CalendarService interface {
	// Event operations
	CreateEvent(ctx context.Context, tenantID uuid.UUID, req *CreateEventRequest) (*CreateEventResult, error)
	GetEvent(ctx context.Context, tenantID, eventID uuid.UUID) (*domain.Event, error)
	ListEvents(ctx context.Context, tenantID uuid.UUID, req *ListEventsRequest) (*EventList, error)
	UpdateEvent(ctx context.Context, tenantID, eventID uuid.UUID, req *UpdateEventRequest) (*domain.Event, error)
	DeleteEvent(ctx context.Context, tenantID, eventID uuid.UUID) error

	// Lookup helpers for the conversational agent
	SearchEvents(ctx context.Context, tenantID uuid.UUID, query string, limit int) ([]*domain.Event, error)
	GetNextEvent(ctx context.Context, tenantID uuid.UUID) (*domain.Event, error)

	// Availability
	CheckAvailability(ctx context.Context, tenantID uuid.UUID, req *AvailabilityRequest) (*AvailabilityResult, error)

	// Sync
	ResyncPendingEvents(ctx context.Context, tenantID uuid.UUID) (*ResyncResult, error)
}

type CreateEventRequest struct {
	Title           string     `json:"title"`
	Description     *string    `json:"description,omitempty"`
	Location        *string    `json:"location,omitempty"`
	Date            string     `json:"date"` // 2006-01-02
	Time            string     `json:"time,omitempty"` // 15:04, defaults to 09:00
	DurationMinutes int        `json:"duration_minutes,omitempty"`
	Timezone        string     `json:"timezone,omitempty"`
	RecurrenceRule  *string    `json:"recurrence_rule,omitempty"`
	CreatedBy       *uuid.UUID `json:"created_by,omitempty"`
	IdempotencyKey  *string    `json:"idempotency_key,omitempty"`
	SyncToGoogle    bool       `json:"sync_to_google"`
	SyncUserID      *uuid.UUID `json:"sync_user_id,omitempty"`
	ForceCreate     bool       `json:"force_create,omitempty"`
}

// CreateEventResult carries either the stored event or, when a similar
// event already exists and ForceCreate was not set, a duplicate warning.
type CreateEventResult struct {
	Created   bool                     `json:"created"`
	Event     *domain.Event            `json:"event,omitempty"`
	Duplicate *domain.DuplicateWarning `json:"duplicate,omitempty"`
}

type UpdateEventRequest struct {
	Title           *string    `json:"title,omitempty"`
	Description     *string    `json:"description,omitempty"`
	Location        *string    `json:"location,omitempty"`
	Date            *string    `json:"date,omitempty"`
	Time            *string    `json:"time,omitempty"`
	DurationMinutes *int       `json:"duration_minutes,omitempty"`
	RecurrenceRule  *string    `json:"recurrence_rule,omitempty"`
	SyncUserID      *uuid.UUID `json:"sync_user_id,omitempty"`
}

type ListEventsRequest struct {
	StartDate      *time.Time `json:"start_date,omitempty"`
	EndDate        *time.Time `json:"end_date,omitempty"`
	Search         string     `json:"search,omitempty"`
	Limit          int        `json:"limit,omitempty"`
	Offset         int        `json:"offset,omitempty"`
	IncludeRemote  bool       `json:"include_remote"`
	RemoteUserID   *uuid.UUID `json:"remote_user_id,omitempty"`
}

type EventList struct {
	Events []*domain.Event `json:"events"`
	Total  int             `json:"total"`
}

type AvailabilityRequest struct {
	Date            string     `json:"date"` // 2006-01-02
	Time            string     `json:"time"` // 15:04
	DurationMinutes int        `json:"duration_minutes,omitempty"`
	Timezone        string     `json:"timezone,omitempty"`
	RemoteUserID    *uuid.UUID `json:"remote_user_id,omitempty"`
}

type AvailabilityResult struct {
	Available      bool            `json:"available"`
	Conflicts      []*domain.Event `json:"conflicts,omitempty"`
	SuggestedTimes []string        `json:"suggested_times,omitempty"`
}

type ResyncResult struct {
	Attempted int `json:"attempted"`
	Synced    int `json:"synced"`
	Failed    int `json:"failed"`
}
