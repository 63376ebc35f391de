package out

import "context"

// DetectedEvent is the structured best guess extracted from a free-form message.
type DetectedEvent struct {
	Title             string  `json:"title"`
	Date              string  `json:"date"` // YYYY-MM-DD
	Time              string  `json:"time"` // HH:MM, 24h
	DurationMinutes   int     `json:"duration_minutes"`
	Location          *string `json:"location"`
	IsRecurring       bool    `json:"is_recurring"`
	RecurrencePattern *string `json:"recurrence_pattern"`
}

// DetectionResult is the full detector response.
type DetectionResult struct {
	Detected      bool           `json:"detected"`
	Confidence    float64        `json:"confidence"`
	Event         *DetectedEvent `json:"event"`
	MissingFields []string       `json:"missing_fields"`
	Message       string         `json:"message"`
}

// EventDetectorPort is the boundary to the external NLP collaborator that
// guesses schedulable events in user messages. Optional: bootstrap leaves it
// nil when no API key is configured.
type EventDetectorPort interface {
	DetectEvent(ctx context.Context, message, conversationContext string) (*DetectionResult, error)
}
