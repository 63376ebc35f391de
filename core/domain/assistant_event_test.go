package domain

import (
	"testing"
	"time"
)

func mustTime(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse("2006-01-02 15:04", value)
	if err != nil {
		t.Fatalf("bad time literal %q: %v", value, err)
	}
	return parsed
}

func TestEventOverlaps(t *testing.T) {
	start := func(s string) time.Time { return mustTime(t, s) }

	tests := []struct {
		name       string
		eventStart string
		eventEnd   string // empty means no stored end
		checkStart string
		checkEnd   string
		want       bool
	}{
		{"full overlap", "2025-03-10 10:00", "2025-03-10 11:00", "2025-03-10 10:15", "2025-03-10 10:45", true},
		{"partial overlap at start", "2025-03-10 10:00", "2025-03-10 11:00", "2025-03-10 10:30", "2025-03-10 11:30", true},
		{"event ends exactly at check start", "2025-03-10 09:00", "2025-03-10 10:00", "2025-03-10 10:00", "2025-03-10 11:00", false},
		{"event starts exactly at check end", "2025-03-10 11:00", "2025-03-10 12:00", "2025-03-10 10:00", "2025-03-10 11:00", false},
		{"no stored end defaults to one hour", "2025-03-10 10:00", "", "2025-03-10 10:30", "2025-03-10 11:30", true},
		{"no stored end misses later slot", "2025-03-10 10:00", "", "2025-03-10 11:00", "2025-03-10 12:00", false},
		{"disjoint", "2025-03-10 08:00", "2025-03-10 09:00", "2025-03-10 14:00", "2025-03-10 15:00", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := &Event{StartAt: start(tt.eventStart)}
			if tt.eventEnd != "" {
				end := start(tt.eventEnd)
				ev.EndAt = &end
			}

			if got := ev.Overlaps(start(tt.checkStart), start(tt.checkEnd)); got != tt.want {
				t.Errorf("Overlaps() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEventEnd(t *testing.T) {
	startAt := mustTime(t, "2025-03-10 10:00")

	ev := &Event{StartAt: startAt}
	if got := ev.End(); !got.Equal(startAt.Add(time.Hour)) {
		t.Errorf("End() without stored end = %v, want %v", got, startAt.Add(time.Hour))
	}

	endAt := mustTime(t, "2025-03-10 10:30")
	ev.EndAt = &endAt
	if got := ev.End(); !got.Equal(endAt) {
		t.Errorf("End() with stored end = %v, want %v", got, endAt)
	}
}
