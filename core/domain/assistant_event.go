package domain

import (
	"time"

	"github.com/google/uuid"
)

// SyncStatus tracks how an event relates to the user's Google Calendar.
type SyncStatus string

const (
	SyncStatusLocal       SyncStatus = "local"
	SyncStatusPendingSync SyncStatus = "pending_sync"
	SyncStatusSynced      SyncStatus = "synced"
	SyncStatusFailed      SyncStatus = "sync_failed"
)

// EventSource identifies where an event originated.
type EventSource string

const (
	EventSourceApp    EventSource = "app"
	EventSourceGoogle EventSource = "google"
)

// Event is a calendar event owned by a tenant (household).
// Events projected from Google Calendar carry a zero ID and are never persisted.
type Event struct {
	ID       uuid.UUID `json:"id" db:"id"`
	TenantID uuid.UUID `json:"tenant_id" db:"tenant_id"`

	Title       string  `json:"title" db:"title"`
	Description *string `json:"description,omitempty" db:"description"`
	Location    *string `json:"location,omitempty" db:"location"`

	StartAt  time.Time  `json:"start_datetime" db:"start_datetime"`
	EndAt    *time.Time `json:"end_datetime,omitempty" db:"end_datetime"`
	Timezone string     `json:"timezone" db:"timezone"`

	RecurrenceRule *string `json:"recurrence_rule,omitempty" db:"recurrence_rule"`

	CreatedBy      *uuid.UUID `json:"created_by,omitempty" db:"created_by"`
	IdempotencyKey *string    `json:"-" db:"idempotency_key"`

	GoogleEventID    *string     `json:"google_event_id,omitempty" db:"google_event_id"`
	GoogleCalendarID *string     `json:"google_calendar_id,omitempty" db:"google_calendar_id"`
	SyncStatus       SyncStatus  `json:"sync_status" db:"sync_status"`
	Source           EventSource `json:"source" db:"source"`
	LastSyncedAt     *time.Time  `json:"last_synced_at,omitempty" db:"last_synced_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// End returns the event end, assuming one hour when none is stored.
func (e *Event) End() time.Time {
	if e.EndAt != nil {
		return *e.EndAt
	}
	return e.StartAt.Add(time.Hour)
}

// Overlaps reports whether the event intersects the half-open interval [start, end).
func (e *Event) Overlaps(start, end time.Time) bool {
	return e.StartAt.Before(end) && e.End().After(start)
}

// EventFilter narrows an event listing.
type EventFilter struct {
	StartDate *time.Time
	EndDate   *time.Time
	Search    *string
	Limit     int
	Offset    int
}

// DuplicateWarning describes a near-duplicate found during event creation.
type DuplicateWarning struct {
	ExistingEvent   *Event  `json:"existing_event"`
	SimilarityScore float64 `json:"similarity_score"`
	Message         string  `json:"message"`
}
