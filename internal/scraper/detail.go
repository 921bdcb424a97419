package scraper

import (
	"regexp"
	"strings"
	"time"

	"github.com/pfrederiksen/troopcal/internal/event"
)

// DefaultDescriptionLimit caps the description so verbose pages do not bloat the feed
const DefaultDescriptionLimit = 2000

var (
	// "Location:" label and the text after it, up to two spaces or the end
	locationTextPattern = regexp.MustCompile(`(?i)Location:\s*(.+?)(?:\s{2,}|$)`)

	// The same label inside one text run
	locationLabelPattern = regexp.MustCompile(`(?i)Location:\s*(.*)`)
)

// DetailOptions are the plain values ParseDetail needs from configuration
type DetailOptions struct {
	SourceURL        string
	Location         *time.Location // fixed UTC offset, not DST aware
	DescriptionLimit int            // in runes; <= 0 means DefaultDescriptionLimit

	// TimedWithoutClock turns a page without a clock token into a timed
	// event at local midnight. By default such a page is an all-day event.
	TimedWithoutClock bool
}

// NewDetailOptions returns the options used by the sync pipeline
func NewDetailOptions(sourceURL string, loc *time.Location) DetailOptions {
	return DetailOptions{
		SourceURL:        sourceURL,
		Location:         loc,
		DescriptionLimit: DefaultDescriptionLimit,
	}
}

// ParseDetail builds an event from one detail page. titleHint is the link
// title from the listing page. The date comes from the first M/D/Y token of
// the page text, else from a "(MM/DD/YY)" annotation in titleHint; when
// neither yields a real date the event is dropped and ok is false.
func ParseDetail(rawHTML, titleHint string, opts DetailOptions) (*event.Event, bool) {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}

	text, runs := Flatten(rawHTML)

	day, ok := event.FindShortDate(text, loc)
	if !ok {
		day, ok = event.FindTitleDate(titleHint, loc)
	}
	if !ok {
		return nil, false
	}

	summary := event.StripTitleDate(titleHint)
	location := findLocation(text, runs)
	description := truncateRunes(text, opts.DescriptionLimit)

	if hour, minute, found := event.FindClock(text); found {
		start := time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, loc)
		return event.NewTimedEvent(summary, opts.SourceURL, start, location, description), true
	}

	if opts.TimedWithoutClock {
		return event.NewTimedEvent(summary, opts.SourceURL, day, location, description), true
	}
	return event.NewAllDayEvent(summary, opts.SourceURL, day, location, description), true
}

// findLocation takes the text after the first "Location:" label of the
// flattened text, up to two spaces or the end. Flattened text has no double
// spaces, so that value usually runs on to the end of the page; it is cut
// back to the text run holding the label (or the next run when the label
// stands alone in its block), as long as that run is a prefix of the value.
func findLocation(text string, runs []string) string {
	m := locationTextPattern.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	value := strings.TrimSpace(m[1])

	for i, run := range runs {
		lm := locationLabelPattern.FindStringSubmatch(run)
		if lm == nil {
			continue
		}
		narrowed := strings.TrimSpace(lm[1])
		if narrowed == "" && i+1 < len(runs) {
			narrowed = runs[i+1]
		}
		if narrowed != "" && strings.HasPrefix(value, narrowed) {
			return narrowed
		}
		break
	}
	return value
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		limit = DefaultDescriptionLimit
	}
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}
