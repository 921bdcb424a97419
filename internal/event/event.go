package event

import (
	"crypto/sha1"
	"fmt"
	"time"
)

const (
	// DefaultDuration is applied to timed events; the portal never states an end time.
	DefaultDuration = 2 * time.Hour

	// AllDayDuration is the exclusive end offset of an all-day event.
	AllDayDuration = 24 * time.Hour
)

// Event represents one event recovered from a TroopWebHost detail page
type Event struct {
	ID          string    `json:"id"` // Stable identifier based on source URL and summary
	Summary     string    `json:"summary"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	AllDay      bool      `json:"all_day"`
	Location    string    `json:"location,omitempty"`
	Description string    `json:"description,omitempty"`
	SourceURL   string    `json:"source_url"`
}

// GenerateID creates a deterministic ID for an event based on its source URL and summary.
// A changed summary or URL yields a different ID.
func GenerateID(sourceURL, summary string) string {
	h := sha1.New()
	h.Write([]byte(sourceURL + "|" + summary))
	return fmt.Sprintf("%x", h.Sum(nil))
}

// NewTimedEvent creates an event that starts at start and lasts DefaultDuration.
func NewTimedEvent(summary, sourceURL string, start time.Time, location, description string) *Event {
	return &Event{
		ID:          GenerateID(sourceURL, summary),
		Summary:     summary,
		Start:       start,
		End:         start.Add(DefaultDuration),
		Location:    location,
		Description: description,
		SourceURL:   sourceURL,
	}
}

// NewAllDayEvent creates an all-day event on the calendar date of day.
// Start is local midnight in day's location and End is the following midnight.
func NewAllDayEvent(summary, sourceURL string, day time.Time, location, description string) *Event {
	start := Midnight(day)
	return &Event{
		ID:          GenerateID(sourceURL, summary),
		Summary:     summary,
		Start:       start,
		End:         start.Add(AllDayDuration),
		AllDay:      true,
		Location:    location,
		Description: description,
		SourceURL:   sourceURL,
	}
}

// Midnight truncates t to 00:00 of its calendar day in t's own location.
func Midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// Duration returns End - Start
func (e *Event) Duration() time.Duration {
	return e.End.Sub(e.Start)
}

// String renders the event for logs and CLI listings
func (e *Event) String() string {
	if e.AllDay {
		return fmt.Sprintf("%s (all day) %s", e.Start.Format("2006-01-02"), e.Summary)
	}
	return fmt.Sprintf("%s %s", e.Start.Format("2006-01-02 15:04 -07:00"), e.Summary)
}
