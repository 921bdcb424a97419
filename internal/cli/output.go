package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/pfrederiksen/troopcal/internal/calendar"
	"github.com/pfrederiksen/troopcal/internal/event"
	"github.com/pfrederiksen/troopcal/internal/pipeline"
	"github.com/pfrederiksen/troopcal/internal/scraper"
)

// OutputFormat specifies the output format
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
)

// OutputResult contains data to be output after a sync
type OutputResult struct {
	CheckedAt time.Time        `json:"checked_at"`
	Report    *pipeline.Report `json:"report"`
	Events    []*event.Event   `json:"events"`
}

// WriteOutput writes the result in the specified format
func WriteOutput(w io.Writer, result *OutputResult, format OutputFormat, verbose bool, order SortOrder) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, result)
	case FormatText:
		return writeText(w, result, verbose, order)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

// writeJSON outputs any value as indented JSON
func writeJSON(w io.Writer, v interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// writeText outputs a sync result as human-readable text
func writeText(w io.Writer, result *OutputResult, verbose bool, order SortOrder) error {
	r := result.Report
	if r.Status == pipeline.StatusFailed {
		fmt.Fprintf(w, "Sync failed: %s\n", r.Error)
		return nil
	}

	fmt.Fprintf(w, "Found %d event links.\n", r.LinksFound)
	if r.OutputPath != "" {
		fmt.Fprintf(w, "Wrote %s with %d events\n", r.OutputPath, r.EventsWritten)
	} else {
		fmt.Fprintf(w, "Parsed %d events.\n", r.EventsWritten)
	}
	if r.Dropped > 0 {
		fmt.Fprintf(w, "Skipped %d pages without a date.\n", r.Dropped)
	}
	if r.FetchFailures > 0 {
		fmt.Fprintf(w, "Failed to fetch %d pages.\n", r.FetchFailures)
	}
	if len(r.Added) > 0 || len(r.Removed) > 0 {
		fmt.Fprintf(w, "Changes since last sync: %d added, %d removed.\n", len(r.Added), len(r.Removed))
	}

	if !verbose || len(result.Events) == 0 {
		return nil
	}

	events := make([]*event.Event, len(result.Events))
	copy(events, result.Events)
	sortEvents(events, order)

	fmt.Fprintln(w)
	for _, evt := range events {
		writeEventText(w, evt)
	}
	return nil
}

// writeEvent prints a single parsed event
func writeEvent(w io.Writer, evt *event.Event, format OutputFormat) error {
	if format == FormatJSON {
		return writeJSON(w, evt)
	}
	writeEventText(w, evt)
	return nil
}

func writeEventText(w io.Writer, evt *event.Event) {
	fmt.Fprintf(w, "• %s\n", evt.Summary)
	fmt.Fprintf(w, "  When: %s\n", formatWhen(evt))
	if evt.Location != "" {
		fmt.Fprintf(w, "  Where: %s\n", evt.Location)
	}
	if evt.SourceURL != "" {
		fmt.Fprintf(w, "  URL: %s\n", evt.SourceURL)
	}
	fmt.Fprintf(w, "  ID: %s\n", evt.ID)
}

// formatWhen renders the event time span in its own zone
func formatWhen(evt *event.Event) string {
	if evt.AllDay {
		last := evt.End.AddDate(0, 0, -1)
		if !last.After(evt.Start) {
			return evt.Start.Format("Mon Jan 2, 2006") + " (all day)"
		}
		return evt.Start.Format("Mon Jan 2") + " to " + last.Format("Mon Jan 2, 2006") + " (all day)"
	}
	return evt.Start.Format("Mon Jan 2, 2006 3:04 PM") + " to " + evt.End.Format("3:04 PM MST")
}

// writeLinks prints detail links, one per line in text mode
func writeLinks(w io.Writer, links []scraper.Link, format OutputFormat) error {
	if format == FormatJSON {
		return writeJSON(w, links)
	}
	if len(links) == 0 {
		fmt.Fprintln(w, "No event links found.")
		return nil
	}
	for _, l := range links {
		title := l.Title
		if title == "" {
			title = "(untitled)"
		}
		fmt.Fprintf(w, "%-6s %s\n       %s\n", scraper.QueryParam(l.URL, "ID"), title, l.URL)
	}
	return nil
}

// writeSummaries prints the events read back from a calendar file
func writeSummaries(w io.Writer, summaries []calendar.Summary, format OutputFormat) error {
	if format == FormatJSON {
		return writeJSON(w, summaries)
	}
	fmt.Fprintf(w, "Valid calendar with %d events.\n", len(summaries))
	for _, s := range summaries {
		kind := "timed"
		if s.AllDay {
			kind = "all day"
		}
		fmt.Fprintf(w, "  %-18s %-8s %s\n", s.Start, kind, s.Summary)
	}
	return nil
}

// writeRuns prints recorded runs, newest first
func writeRuns(w io.Writer, runs []*pipeline.Report, format OutputFormat) error {
	if format == FormatJSON {
		return writeJSON(w, runs)
	}
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return nil
	}
	for _, r := range runs {
		fmt.Fprintln(w, r.String())
	}
	return nil
}
