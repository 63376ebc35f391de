package calendar

import (
	"context"
	"fmt"
	"sort"
	"time"

	"assistant_server/core/domain"
	"assistant_server/core/port/in"
	"assistant_server/core/port/out"
	"assistant_server/pkg/apperr"
	"assistant_server/pkg/logger"

	"github.com/google/uuid"
)

const (
	defaultListWindow = 7 * 24 * time.Hour
	availabilityPad   = 2 * time.Hour
	suggestFirstHour  = 8
	suggestLastHour   = 19
	maxSuggestions    = 3
)

// ListEvents returns the merged agenda: locally stored events plus, when
// requested, the connected user's Google Calendar for the same window. Remote
// events already mirrored locally are dropped by google_event_id.
func (s *Service) ListEvents(ctx context.Context, tenantID uuid.UUID, req *in.ListEventsRequest) (*in.EventList, error) {
	loc, err := time.LoadLocation(s.defaultTZ)
	if err != nil {
		loc = time.UTC
	}

	now := time.Now().In(loc)
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	if req.StartDate != nil {
		start = *req.StartDate
	}
	end := start.Add(defaultListWindow)
	if req.EndDate != nil {
		end = *req.EndDate
	}

	filter := &domain.EventFilter{
		StartDate: &start,
		EndDate:   &end,
		Limit:     req.Limit,
		Offset:    req.Offset,
	}
	if req.Search != "" {
		filter.Search = &req.Search
	}

	local, total, err := s.eventRepo.List(ctx, tenantID, filter)
	if err != nil {
		return nil, apperr.DatabaseError("list events", err)
	}

	merged := local
	if req.IncludeRemote && req.RemoteUserID != nil {
		remote := s.fetchRemote(ctx, *req.RemoteUserID, start, end)
		added := mergeRemote(local, remote)
		total += len(added)
		merged = append(merged, added...)
	}

	sort.Slice(merged, func(i, j int) bool {
		return merged[i].StartAt.Before(merged[j].StartAt)
	})

	return &in.EventList{Events: merged, Total: total}, nil
}

// CheckAvailability reports whether [start, start+duration) is free, treating
// event intervals as half-open so back-to-back bookings never collide. On
// conflict it proposes up to three free same-day slots on the hour.
func (s *Service) CheckAvailability(ctx context.Context, tenantID uuid.UUID, req *in.AvailabilityRequest) (*in.AvailabilityResult, error) {
	tz := req.Timezone
	if tz == "" {
		tz = s.defaultTZ
	}
	if req.Time == "" {
		return nil, apperr.MissingField("time")
	}
	start, err := parseLocalDateTime(req.Date, req.Time, tz)
	if err != nil {
		return nil, err
	}
	duration := time.Duration(req.DurationMinutes) * time.Minute
	if duration <= 0 {
		duration = defaultDurationMin * time.Minute
	}
	end := start.Add(duration)

	// Widen the fetch window so events straddling the slot are included.
	events, err := s.eventRepo.InRange(ctx, tenantID, start.Add(-availabilityPad), end.Add(availabilityPad))
	if err != nil {
		return nil, apperr.DatabaseError("load events", err)
	}
	if req.RemoteUserID != nil {
		remote := s.fetchRemote(ctx, *req.RemoteUserID, start.Add(-availabilityPad), end.Add(availabilityPad))
		events = append(events, mergeRemote(events, remote)...)
	}

	var conflicts []*domain.Event
	for _, event := range events {
		if event.Overlaps(start, end) {
			conflicts = append(conflicts, event)
		}
	}

	if len(conflicts) == 0 {
		return &in.AvailabilityResult{Available: true}, nil
	}

	return &in.AvailabilityResult{
		Available:      false,
		Conflicts:      conflicts,
		SuggestedTimes: suggestSlots(start, duration, events),
	}, nil
}

// fetchRemote pulls the user's Google agenda for the window. Remote failures
// degrade to an empty slice so the local view always comes back.
func (s *Service) fetchRemote(ctx context.Context, userID uuid.UUID, start, end time.Time) []*domain.Event {
	cred, err := s.creds.ResolveValidCredentials(ctx, userID)
	if err != nil || cred == nil {
		if err != nil {
			logger.Warn("[CalendarService.fetchRemote] Credential lookup failed for user %s: %v", userID, err)
		}
		return nil
	}

	remotes, err := s.provider.ListEvents(ctx, credentialToken(cred), cred.CalendarID, start, end)
	if err != nil {
		logger.Warn("[CalendarService.fetchRemote] Remote list failed for user %s: %v", userID, err)
		return nil
	}

	events := make([]*domain.Event, 0, len(remotes))
	for _, remote := range remotes {
		events = append(events, projectRemoteEvent(remote))
	}
	return events
}

// projectRemoteEvent shapes a Google event as a read-only domain event.
func projectRemoteEvent(remote *out.RemoteEvent) *domain.Event {
	event := &domain.Event{
		Title:            remote.Title,
		StartAt:          remote.StartAt,
		EndAt:            remote.EndAt,
		Timezone:         remote.Timezone,
		GoogleEventID:    &remote.ID,
		GoogleCalendarID: &remote.CalendarID,
		SyncStatus:       domain.SyncStatusSynced,
		Source:           domain.EventSourceGoogle,
	}
	if remote.Description != "" {
		event.Description = &remote.Description
	}
	if remote.Location != "" {
		event.Location = &remote.Location
	}
	return event
}

// mergeRemote returns the remote events not already present locally,
// matching on google_event_id.
func mergeRemote(local []*domain.Event, remote []*domain.Event) []*domain.Event {
	seen := make(map[string]struct{}, len(local))
	for _, event := range local {
		if event.GoogleEventID != nil {
			seen[*event.GoogleEventID] = struct{}{}
		}
	}

	var added []*domain.Event
	for _, event := range remote {
		if event.GoogleEventID != nil {
			if _, ok := seen[*event.GoogleEventID]; ok {
				continue
			}
		}
		added = append(added, event)
	}
	return added
}

// suggestSlots scans the same day on the hour, business hours only, and
// returns the first free slots as HH:MM strings.
func suggestSlots(requested time.Time, duration time.Duration, events []*domain.Event) []string {
	var slots []string

	for hour := suggestFirstHour; hour <= suggestLastHour && len(slots) < maxSuggestions; hour++ {
		candidate := time.Date(requested.Year(), requested.Month(), requested.Day(),
			hour, 0, 0, 0, requested.Location())
		if candidate.Equal(requested) {
			continue
		}
		candidateEnd := candidate.Add(duration)

		free := true
		for _, event := range events {
			if event.Overlaps(candidate, candidateEnd) {
				free = false
				break
			}
		}
		if free {
			slots = append(slots, fmt.Sprintf("%02d:00", hour))
		}
	}

	return slots
}
