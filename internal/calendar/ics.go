package calendar

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	ical "github.com/arran4/golang-ical"

	"github.com/pfrederiksen/troopcal/internal/event"
)

const (
	// DefaultProdID identifies the generator in the PRODID header
	DefaultProdID = "-//TroopCalendarSync//EN"

	// DefaultUIDDomain is appended to every event ID to form the UID
	DefaultUIDDomain = "troopwebhost"

	// maxLineOctets is the RFC 5545 content line limit, CRLF excluded
	maxLineOctets = 75
)

// Options controls the calendar header and UID suffix
type Options struct {
	ProdID    string
	UIDDomain string
	Name      string // X-WR-CALNAME, omitted when empty
}

func (o Options) withDefaults() Options {
	if o.ProdID == "" {
		o.ProdID = DefaultProdID
	}
	if o.UIDDomain == "" {
		o.UIDDomain = DefaultUIDDomain
	}
	return o
}

// Serialize renders events as an iCalendar document, one VEVENT per event in
// input order. now is stamped on every event as DTSTAMP, so the output is
// deterministic for the same events and now. An empty slice still yields a
// valid calendar with no events.
func Serialize(events []*event.Event, now time.Time, opts Options) string {
	opts = opts.withDefaults()

	var ics strings.Builder
	w := lineWriter{b: &ics}

	w.line("BEGIN:VCALENDAR")
	w.line("VERSION:2.0")
	w.line("PRODID:" + opts.ProdID)
	w.line("CALSCALE:GREGORIAN")
	w.line("METHOD:PUBLISH")
	if opts.Name != "" {
		w.line("X-WR-CALNAME:" + escapeICS(opts.Name))
	}

	stamp := formatICSTime(now)
	for _, evt := range events {
		if evt == nil {
			continue
		}
		writeEvent(&w, evt, stamp, opts)
	}

	w.line("END:VCALENDAR")
	return ics.String()
}

func writeEvent(w *lineWriter, evt *event.Event, stamp string, opts Options) {
	w.line("BEGIN:VEVENT")
	w.line(fmt.Sprintf("UID:%s@%s", evt.ID, opts.UIDDomain))
	w.line("DTSTAMP:" + stamp)

	if evt.AllDay {
		w.line("DTSTART;VALUE=DATE:" + formatICSDate(evt.Start))
		w.line("DTEND;VALUE=DATE:" + formatICSDate(evt.End))
	} else {
		w.line("DTSTART:" + formatICSTime(evt.Start))
		w.line("DTEND:" + formatICSTime(evt.End))
	}

	w.line("SUMMARY:" + escapeICS(singleLine(evt.Summary)))

	if loc := singleLine(evt.Location); loc != "" {
		w.line("LOCATION:" + escapeICS(loc))
	}

	parts := make([]string, 0, 2)
	if evt.Description != "" {
		parts = append(parts, evt.Description)
	}
	if evt.SourceURL != "" {
		parts = append(parts, evt.SourceURL)
	}
	if len(parts) > 0 {
		w.line("DESCRIPTION:" + escapeICS(strings.Join(parts, "\n\n")))
	}

	if evt.SourceURL != "" {
		w.line("URL:" + evt.SourceURL)
	}

	w.line("END:VEVENT")
}

// formatICSTime formats a time.Time as an iCalendar UTC datetime string
func formatICSTime(t time.Time) string {
	return t.UTC().Format("20060102T150405Z")
}

// formatICSDate formats the calendar date of t in its own zone
func formatICSDate(t time.Time) string {
	return t.Format("20060102")
}

// singleLine replaces line breaks with spaces and trims the result
func singleLine(s string) string {
	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.TrimSpace(s)
}

// escapeICS escapes special characters for iCalendar format
func escapeICS(s string) string {
	// Replace special characters according to RFC 5545
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, ";", "\\;")
	s = strings.ReplaceAll(s, ",", "\\,")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = strings.ReplaceAll(s, "\n", "\\n")
	return s
}

// lineWriter emits CRLF-terminated content lines, folding at 75 octets
type lineWriter struct {
	b *strings.Builder
}

func (w *lineWriter) line(s string) {
	w.b.WriteString(foldLine(s))
	w.b.WriteString("\r\n")
}

// foldLine splits s into CRLF+space separated chunks of at most 75 octets
// (the leading space counts) without cutting a UTF-8 sequence.
func foldLine(s string) string {
	if len(s) <= maxLineOctets {
		return s
	}

	var out strings.Builder
	width := 0
	for _, r := range s {
		size := utf8.RuneLen(r)
		if width+size > maxLineOctets {
			out.WriteString("\r\n ")
			width = 1
		}
		out.WriteRune(r)
		width += size
	}
	return out.String()
}

// Validate parses doc back and returns the number of VEVENTs. Every event
// must carry a UID and a DTSTART.
func Validate(doc string) (int, error) {
	cal, err := ical.ParseCalendar(strings.NewReader(doc))
	if err != nil {
		return 0, fmt.Errorf("parsing calendar: %w", err)
	}

	events := cal.Events()
	for i, ve := range events {
		if p := ve.GetProperty(ical.ComponentPropertyUniqueId); p == nil || p.Value == "" {
			return 0, fmt.Errorf("event %d: missing UID", i+1)
		}
		if p := ve.GetProperty(ical.ComponentPropertyDtStart); p == nil || p.Value == "" {
			return 0, fmt.Errorf("event %d: missing DTSTART", i+1)
		}
	}
	return len(events), nil
}

// Summary is a parsed-back VEVENT as shown by inspection tools
type Summary struct {
	UID     string `json:"uid"`
	Summary string `json:"summary"`
	Start   string `json:"start"`
	AllDay  bool   `json:"all_day"`
}

// Inspect parses doc and lists its events in document order
func Inspect(doc string) ([]Summary, error) {
	cal, err := ical.ParseCalendar(strings.NewReader(doc))
	if err != nil {
		return nil, fmt.Errorf("parsing calendar: %w", err)
	}

	out := make([]Summary, 0, len(cal.Events()))
	for _, ve := range cal.Events() {
		var s Summary
		if p := ve.GetProperty(ical.ComponentPropertyUniqueId); p != nil {
			s.UID = p.Value
		}
		if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
			s.Summary = p.Value
		}
		if p := ve.GetProperty(ical.ComponentPropertyDtStart); p != nil {
			s.Start = p.Value
			if vs, ok := p.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
				s.AllDay = true
			}
		}
		out = append(out, s)
	}
	return out, nil
}
