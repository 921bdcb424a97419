package pagesource

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/pfrederiksen/troopcal/internal/logger"
	"github.com/pfrederiksen/troopcal/internal/scraper"
)

// ListingFile is the file name of the listing page in a page directory
const ListingFile = "listing.html"

// Source fetches listing and detail pages
type Source interface {
	FetchListingHTML(ctx context.Context) (string, error)
	FetchDetailHTML(ctx context.Context, url string) (string, error)
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// DetailFile is the file name a detail page is stored under: detail-<ID>.html
func DetailFile(detailURL string) (string, error) {
	id := scraper.QueryParam(detailURL, "ID")
	if id == "" {
		return "", fmt.Errorf("no ID parameter in %q", detailURL)
	}
	return "detail-" + unsafeName.ReplaceAllString(id, "_") + ".html", nil
}

// Dir replays pages from a directory
type Dir struct {
	root string
}

// NewDir returns a Source reading listing.html and detail-<ID>.html from root
func NewDir(root string) *Dir {
	return &Dir{root: root}
}

// FetchListingHTML reads the listing page
func (d *Dir) FetchListingHTML(ctx context.Context) (string, error) {
	return d.read(ctx, ListingFile)
}

// FetchDetailHTML reads the page stored for url
func (d *Dir) FetchDetailHTML(ctx context.Context, url string) (string, error) {
	name, err := DetailFile(url)
	if err != nil {
		return "", err
	}
	return d.read(ctx, name)
}

func (d *Dir) read(ctx context.Context, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := os.ReadFile(filepath.Join(d.root, name))
	if err != nil {
		return "", fmt.Errorf("reading page: %w", err)
	}
	return string(data), nil
}

// Recorder saves every page fetched through it
type Recorder struct {
	src Source
	dir string
}

// NewRecorder wraps src and writes pages under dir in the Dir layout
func NewRecorder(src Source, dir string) (*Recorder, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating dump directory: %w", err)
	}
	return &Recorder{src: src, dir: dir}, nil
}

// FetchListingHTML fetches and saves the listing page
func (r *Recorder) FetchListingHTML(ctx context.Context) (string, error) {
	html, err := r.src.FetchListingHTML(ctx)
	if err != nil {
		return "", err
	}
	r.save(ListingFile, html)
	return html, nil
}

// FetchDetailHTML fetches and saves a detail page
func (r *Recorder) FetchDetailHTML(ctx context.Context, url string) (string, error) {
	html, err := r.src.FetchDetailHTML(ctx, url)
	if err != nil {
		return "", err
	}
	name, err := DetailFile(url)
	if err != nil {
		logger.Warn("Not recording detail page", logger.Fields{"url": url, "reason": err.Error()})
		return html, nil
	}
	r.save(name, html)
	return html, nil
}

// save logs write failures instead of returning them
func (r *Recorder) save(name, html string) {
	path := filepath.Join(r.dir, name)
	if err := os.WriteFile(path, []byte(html), 0o644); err != nil {
		logger.Warn("Failed to record page", logger.Fields{"path": path, "error": err.Error()})
		return
	}
	logger.Debug("Recorded page", logger.Fields{"path": path, "bytes": len(html)})
}
