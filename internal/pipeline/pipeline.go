package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pfrederiksen/troopcal/internal/calendar"
	"github.com/pfrederiksen/troopcal/internal/event"
	"github.com/pfrederiksen/troopcal/internal/logger"
	"github.com/pfrederiksen/troopcal/internal/scraper"
)

// ErrListingUnavailable means the listing page could not be fetched. It is
// the only fetch failure that aborts a run.
var ErrListingUnavailable = errors.New("listing page unavailable")

// PageSource supplies page HTML
type PageSource interface {
	FetchListingHTML(ctx context.Context) (string, error)
	FetchDetailHTML(ctx context.Context, url string) (string, error)
}

// Options are the plain values a run needs
type Options struct {
	SiteURL          string
	FormID           string // keep only links with this Form_ID; empty keeps all
	Location         *time.Location
	DescriptionLimit int
	Workers          int // concurrent detail fetches, 1 = sequential

	// TimedWithoutClock makes pages without a time timed midnight events
	// instead of all-day events
	TimedWithoutClock bool

	// OutputPath is written atomically when set
	OutputPath string
	Calendar   calendar.Options

	// PreviousIDs are the event IDs of the last written feed. When nil no
	// Added/Removed diff is computed.
	PreviousIDs []string

	Metrics *logger.Metrics
	Now     func() time.Time
}

// Result is what a run produced
type Result struct {
	Report   *Report
	Events   []*event.Event
	Document string
}

// Pipeline runs syncs against one page source
type Pipeline struct {
	src  PageSource
	opts Options
}

// New creates a Pipeline
func New(src PageSource, opts Options) *Pipeline {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.SiteURL == "" {
		opts.SiteURL = scraper.DefaultSiteURL
	}
	return &Pipeline{src: src, opts: opts}
}

// detailOutcome is the result of one detail page, kept by link index
type detailOutcome struct {
	evt     *event.Event
	failed  bool
	dropped bool
}

// Run performs one sync. The returned Result (and its Report) is non-nil
// even when err is not, so failed runs can be recorded.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	report := &Report{
		StartedAt:  p.opts.Now(),
		OutputPath: p.opts.OutputPath,
		Status:     StatusFailed,
	}
	res := &Result{Report: report}

	err := p.run(ctx, res)
	report.FinishedAt = p.opts.Now()
	p.record(report, err)

	if err != nil {
		report.Error = err.Error()
		logger.Error("Sync failed", logger.Fields{"duration": report.Duration().String()}, err)
		return res, err
	}
	return res, nil
}

func (p *Pipeline) run(ctx context.Context, res *Result) error {
	report := res.Report

	listing, err := p.src.FetchListingHTML(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrListingUnavailable, err)
	}

	links := FilterByForm(scraper.ExtractLinks(listing, p.opts.SiteURL), p.opts.FormID)
	report.LinksFound = len(links)
	logger.Info("Found event detail links", logger.Fields{
		"links":   len(links),
		"form_id": p.opts.FormID,
	})

	outcomes, err := p.fetchDetails(ctx, links)
	if err != nil {
		return err
	}

	events := make([]*event.Event, 0, len(outcomes))
	for _, o := range outcomes {
		switch {
		case o.failed:
			report.FetchFailures++
		case o.dropped:
			report.Dropped++
		default:
			events = append(events, o.evt)
		}
	}
	res.Events = events

	doc := calendar.Serialize(events, p.opts.Now(), p.opts.Calendar)
	n, err := calendar.Validate(doc)
	if err != nil {
		return fmt.Errorf("calendar self-check: %w", err)
	}
	if n != len(events) {
		return fmt.Errorf("calendar self-check: %d events serialized, %d parsed back", len(events), n)
	}
	res.Document = doc

	if p.opts.OutputPath != "" {
		if err := writeFileAtomic(p.opts.OutputPath, []byte(doc)); err != nil {
			return fmt.Errorf("writing calendar: %w", err)
		}
		logger.Info(fmt.Sprintf("Wrote %s with %d events", p.opts.OutputPath, len(events)), logger.Fields{
			"path":   p.opts.OutputPath,
			"events": len(events),
		})
	}

	if p.opts.PreviousIDs != nil {
		diff := event.Diff(p.opts.PreviousIDs, events)
		report.Added = diff.Added
		report.Removed = diff.Removed
	}

	report.EventsWritten = len(events)
	if len(events) == 0 {
		report.Status = StatusEmpty
		logger.Warn("No events written", logger.Fields{
			"links":          report.LinksFound,
			"dropped":        report.Dropped,
			"fetch_failures": report.FetchFailures,
		})
	} else {
		report.Status = StatusOK
	}
	return nil
}

// FilterByForm keeps links whose Form_ID parameter equals formID. An empty
// formID keeps every link.
func FilterByForm(links []scraper.Link, formID string) []scraper.Link {
	if formID == "" {
		return links
	}
	kept := make([]scraper.Link, 0, len(links))
	for _, l := range links {
		if scraper.QueryParam(l.URL, "Form_ID") == formID {
			kept = append(kept, l)
		}
	}
	return kept
}

// fetchDetails fetches and parses every link with at most Workers in flight.
// Outcomes are indexed like links. Only cancellation returns an error.
func (p *Pipeline) fetchDetails(ctx context.Context, links []scraper.Link) ([]detailOutcome, error) {
	outcomes := make([]detailOutcome, len(links))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Workers)

	for i, link := range links {
		title := link.Title
		if title == "" {
			title = fmt.Sprintf("(untitled) ID=%s", idOf(link.URL))
		}

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			logger.Debug("Fetching detail page", logger.Fields{
				"index": i + 1,
				"total": len(links),
				"title": title,
			})

			html, err := p.src.FetchDetailHTML(gctx, link.URL)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				logger.Warn("Skipping detail page", logger.Fields{"url": link.URL, "title": title, "error": err.Error()})
				outcomes[i] = detailOutcome{failed: true}
				return nil
			}

			opts := scraper.DetailOptions{
				SourceURL:         link.URL,
				Location:          p.opts.Location,
				DescriptionLimit:  p.opts.DescriptionLimit,
				TimedWithoutClock: p.opts.TimedWithoutClock,
			}
			evt, ok := scraper.ParseDetail(html, title, opts)
			if !ok {
				logger.Info("Dropping event without a date", logger.Fields{"url": link.URL, "title": title})
				outcomes[i] = detailOutcome{dropped: true}
				return nil
			}
			outcomes[i] = detailOutcome{evt: evt}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("fetching detail pages: %w", err)
	}
	return outcomes, nil
}

func (p *Pipeline) record(r *Report, err error) {
	m := p.opts.Metrics
	if m == nil {
		return
	}
	m.IncrCounter("pipeline.runs")
	if err != nil {
		m.IncrCounter("pipeline.failed")
	}
	m.RecordTiming("pipeline.run", r.Duration())
	m.SetGauge("links.found", float64(r.LinksFound))
	m.SetGauge("events.written", float64(r.EventsWritten))
	m.SetGauge("events.dropped", float64(r.Dropped))
	m.SetGauge("detail.fetch_failed", float64(r.FetchFailures))
}

func idOf(url string) string {
	if id := scraper.QueryParam(url, "ID"); id != "" {
		return id
	}
	return "unknown"
}

// writeFileAtomic writes to a temp file in the target directory and renames
// it into place, so readers never see a partial calendar.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))+"-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // nolint:errcheck

	if _, err := tmp.Write(data); err != nil {
		tmp.Close() // nolint:errcheck
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
