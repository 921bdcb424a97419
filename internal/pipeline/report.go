package pipeline

import (
	"fmt"
	"time"
)

// Status summarizes how a run ended
type Status string

const (
	StatusOK     Status = "ok"
	StatusEmpty  Status = "empty" // completed, zero events written
	StatusFailed Status = "failed"
)

// Report is the record of one run
type Report struct {
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
	LinksFound    int       `json:"links_found"`
	EventsWritten int       `json:"events_written"`
	Dropped       int       `json:"dropped"`
	FetchFailures int       `json:"fetch_failures"`
	Added         []string  `json:"added,omitempty"`
	Removed       []string  `json:"removed,omitempty"`
	OutputPath    string    `json:"output_path,omitempty"`
	Error         string    `json:"error,omitempty"`
	Status        Status    `json:"status"`
}

// Duration is the wall time of the run
func (r *Report) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// String returns a one-line summary
func (r *Report) String() string {
	switch r.Status {
	case StatusFailed:
		return fmt.Sprintf("%s failed after %s: %s", r.StartedAt.Format(time.RFC3339), r.Duration().Round(time.Millisecond), r.Error)
	default:
		return fmt.Sprintf("%s %s: %d links, %d events, %d dropped, %d fetch failures (+%d/-%d)",
			r.StartedAt.Format(time.RFC3339), r.Status, r.LinksFound, r.EventsWritten,
			r.Dropped, r.FetchFailures, len(r.Added), len(r.Removed))
	}
}
