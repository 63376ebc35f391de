// Package out defines outbound ports (driven ports) for the application.
package out

import (
	"context"
	"time"

	"assistant_server/core/domain"

	"github.com/google/uuid"
)

// EventPatch carries the mutable event fields. Nil means "leave unchanged".
type EventPatch struct {
	Title            *string
	Description      *string
	Location         *string
	StartAt          *time.Time
	EndAt            *time.Time
	RecurrenceRule   *string
	SyncStatus       *domain.SyncStatus
	GoogleEventID    *string
	GoogleCalendarID *string
	LastSyncedAt     *time.Time
}

// EventRepository is the persistence port for locally owned events.
type EventRepository interface {
	// Create inserts the event. When an idempotency key is set and a row with
	// the same (tenant, key) already exists, the existing row is returned and
	// no new row is created.
	Create(ctx context.Context, event *domain.Event) (*domain.Event, error)

	GetByID(ctx context.Context, tenantID, eventID uuid.UUID) (*domain.Event, error)
	GetByGoogleID(ctx context.Context, tenantID uuid.UUID, googleEventID string) (*domain.Event, error)

	// List returns events matching the filter plus the total match count.
	List(ctx context.Context, tenantID uuid.UUID, filter *domain.EventFilter) ([]*domain.Event, int, error)

	// InRange returns events whose start falls inside [start, end], ordered by start.
	InRange(ctx context.Context, tenantID uuid.UUID, start, end time.Time) ([]*domain.Event, error)

	// FindPotentialDuplicate returns an event starting within threshold of start
	// whose title contains keyword (case-insensitive), or nil when none exists.
	FindPotentialDuplicate(ctx context.Context, tenantID uuid.UUID, start time.Time, keyword string, threshold time.Duration) (*domain.Event, error)

	Search(ctx context.Context, tenantID uuid.UUID, query string, limit int) ([]*domain.Event, error)
	NextUpcoming(ctx context.Context, tenantID uuid.UUID) (*domain.Event, error)
	ListPendingSync(ctx context.Context, tenantID uuid.UUID) ([]*domain.Event, error)

	Update(ctx context.Context, tenantID, eventID uuid.UUID, patch *EventPatch) (*domain.Event, error)
	Delete(ctx context.Context, tenantID, eventID uuid.UUID) error
}
