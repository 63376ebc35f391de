// Package persistence provides database adapters.
package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"assistant_server/core/domain"
	"assistant_server/core/port/out"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const eventColumns = `id, tenant_id, title, description, location,
	start_datetime, end_datetime, timezone, recurrence_rule,
	created_by, idempotency_key, google_event_id, google_calendar_id,
	sync_status, source, last_synced_at, created_at, updated_at`

// EventAdapter implements out.EventRepository using PostgreSQL.
type EventAdapter struct {
	db *sqlx.DB
}

var _ out.EventRepository = (*EventAdapter)(nil)

// NewEventAdapter creates a new EventAdapter.
func NewEventAdapter(db *sqlx.DB) *EventAdapter {
	return &EventAdapter{db: db}
}

// Create inserts the event. The partial unique index on
// (tenant_id, idempotency_key) turns retried inserts into a read of the
// existing row, so agent retries never produce a second event.
func (a *EventAdapter) Create(ctx context.Context, event *domain.Event) (*domain.Event, error) {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	query := `
		INSERT INTO events (id, tenant_id, title, description, location,
		                    start_datetime, end_datetime, timezone, recurrence_rule,
		                    created_by, idempotency_key, sync_status, source,
		                    created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW(), NOW())
		ON CONFLICT (tenant_id, idempotency_key) WHERE idempotency_key IS NOT NULL
		DO UPDATE SET id = events.id
		RETURNING ` + eventColumns

	var stored domain.Event
	err := a.db.GetContext(ctx, &stored, query,
		event.ID,
		event.TenantID,
		event.Title,
		event.Description,
		event.Location,
		event.StartAt,
		event.EndAt,
		event.Timezone,
		event.RecurrenceRule,
		event.CreatedBy,
		event.IdempotencyKey,
		event.SyncStatus,
		event.Source,
	)
	if err != nil {
		return nil, err
	}
	return &stored, nil
}

func (a *EventAdapter) GetByID(ctx context.Context, tenantID, eventID uuid.UUID) (*domain.Event, error) {
	var event domain.Event
	query := `SELECT ` + eventColumns + ` FROM events WHERE tenant_id = $1 AND id = $2`
	if err := a.db.GetContext(ctx, &event, query, tenantID, eventID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, out.ErrNotFound
		}
		return nil, err
	}
	return &event, nil
}

func (a *EventAdapter) GetByGoogleID(ctx context.Context, tenantID uuid.UUID, googleEventID string) (*domain.Event, error) {
	var event domain.Event
	query := `SELECT ` + eventColumns + ` FROM events WHERE tenant_id = $1 AND google_event_id = $2`
	if err := a.db.GetContext(ctx, &event, query, tenantID, googleEventID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, out.ErrNotFound
		}
		return nil, err
	}
	return &event, nil
}

// List returns events matching the filter plus the total match count.
func (a *EventAdapter) List(ctx context.Context, tenantID uuid.UUID, filter *domain.EventFilter) ([]*domain.Event, int, error) {
	conditions := []string{"tenant_id = $1"}
	args := []any{tenantID}

	if filter.StartDate != nil {
		args = append(args, *filter.StartDate)
		conditions = append(conditions, fmt.Sprintf("start_datetime >= $%d", len(args)))
	}
	if filter.EndDate != nil {
		args = append(args, *filter.EndDate)
		conditions = append(conditions, fmt.Sprintf("start_datetime < $%d", len(args)))
	}
	if filter.Search != nil && *filter.Search != "" {
		args = append(args, "%"+*filter.Search+"%")
		conditions = append(conditions, fmt.Sprintf("(title ILIKE $%d OR description ILIKE $%d)", len(args), len(args)))
	}
	where := strings.Join(conditions, " AND ")

	var total int
	countQuery := `SELECT COUNT(*) FROM events WHERE ` + where
	if err := a.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + eventColumns + ` FROM events WHERE ` + where + ` ORDER BY start_datetime`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	var events []*domain.Event
	if err := a.db.SelectContext(ctx, &events, query, args...); err != nil {
		return nil, 0, err
	}
	return events, total, nil
}

func (a *EventAdapter) InRange(ctx context.Context, tenantID uuid.UUID, start, end time.Time) ([]*domain.Event, error) {
	var events []*domain.Event
	query := `
		SELECT ` + eventColumns + `
		FROM events
		WHERE tenant_id = $1 AND start_datetime BETWEEN $2 AND $3
		ORDER BY start_datetime`
	if err := a.db.SelectContext(ctx, &events, query, tenantID, start, end); err != nil {
		return nil, err
	}
	return events, nil
}

// FindPotentialDuplicate probes for an event starting within threshold of
// start whose title contains the keyword.
func (a *EventAdapter) FindPotentialDuplicate(ctx context.Context, tenantID uuid.UUID, start time.Time, keyword string, threshold time.Duration) (*domain.Event, error) {
	if keyword == "" {
		return nil, nil
	}
	var event domain.Event
	query := `
		SELECT ` + eventColumns + `
		FROM events
		WHERE tenant_id = $1
		  AND ABS(EXTRACT(EPOCH FROM start_datetime - $2)) < $3
		  AND LOWER(title) LIKE '%' || LOWER($4) || '%'
		ORDER BY start_datetime
		LIMIT 1`
	err := a.db.GetContext(ctx, &event, query, tenantID, start, threshold.Seconds(), keyword)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &event, nil
}

func (a *EventAdapter) Search(ctx context.Context, tenantID uuid.UUID, query string, limit int) ([]*domain.Event, error) {
	var events []*domain.Event
	sqlQuery := `
		SELECT ` + eventColumns + `
		FROM events
		WHERE tenant_id = $1
		  AND (title ILIKE $2 OR description ILIKE $2 OR location ILIKE $2)
		ORDER BY start_datetime
		LIMIT $3`
	if err := a.db.SelectContext(ctx, &events, sqlQuery, tenantID, "%"+query+"%", limit); err != nil {
		return nil, err
	}
	return events, nil
}

func (a *EventAdapter) NextUpcoming(ctx context.Context, tenantID uuid.UUID) (*domain.Event, error) {
	var event domain.Event
	query := `
		SELECT ` + eventColumns + `
		FROM events
		WHERE tenant_id = $1 AND start_datetime > NOW()
		ORDER BY start_datetime
		LIMIT 1`
	if err := a.db.GetContext(ctx, &event, query, tenantID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, out.ErrNotFound
		}
		return nil, err
	}
	return &event, nil
}

func (a *EventAdapter) ListPendingSync(ctx context.Context, tenantID uuid.UUID) ([]*domain.Event, error) {
	var events []*domain.Event
	query := `
		SELECT ` + eventColumns + `
		FROM events
		WHERE tenant_id = $1 AND sync_status IN ($2, $3)
		ORDER BY start_datetime`
	err := a.db.SelectContext(ctx, &events, query, tenantID,
		domain.SyncStatusPendingSync, domain.SyncStatusFailed)
	if err != nil {
		return nil, err
	}
	return events, nil
}

// Update applies the non-nil patch fields and returns the updated row.
func (a *EventAdapter) Update(ctx context.Context, tenantID, eventID uuid.UUID, patch *out.EventPatch) (*domain.Event, error) {
	sets := []string{"updated_at = NOW()"}
	args := []any{tenantID, eventID}

	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if patch.Title != nil {
		add("title", *patch.Title)
	}
	if patch.Description != nil {
		add("description", *patch.Description)
	}
	if patch.Location != nil {
		add("location", *patch.Location)
	}
	if patch.StartAt != nil {
		add("start_datetime", *patch.StartAt)
	}
	if patch.EndAt != nil {
		add("end_datetime", *patch.EndAt)
	}
	if patch.RecurrenceRule != nil {
		add("recurrence_rule", *patch.RecurrenceRule)
	}
	if patch.SyncStatus != nil {
		add("sync_status", *patch.SyncStatus)
	}
	if patch.GoogleEventID != nil {
		add("google_event_id", *patch.GoogleEventID)
	}
	if patch.GoogleCalendarID != nil {
		add("google_calendar_id", *patch.GoogleCalendarID)
	}
	if patch.LastSyncedAt != nil {
		add("last_synced_at", *patch.LastSyncedAt)
	}

	query := fmt.Sprintf(`
		UPDATE events SET %s
		WHERE tenant_id = $1 AND id = $2
		RETURNING %s`, strings.Join(sets, ", "), eventColumns)

	var event domain.Event
	if err := a.db.GetContext(ctx, &event, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, out.ErrNotFound
		}
		return nil, err
	}
	return &event, nil
}

func (a *EventAdapter) Delete(ctx context.Context, tenantID, eventID uuid.UUID) error {
	result, err := a.db.ExecContext(ctx, `DELETE FROM events WHERE tenant_id = $1 AND id = $2`, tenantID, eventID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return out.ErrNotFound
	}
	return nil
}
