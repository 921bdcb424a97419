package pagesource

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const detailURL = "https://www.troopwebhost.org/FormDetail.aspx?Form_ID=182&ID=55"

type stubSource struct {
	listing string
	details map[string]string
	err     error
}

func (s *stubSource) FetchListingHTML(context.Context) (string, error) {
	return s.listing, s.err
}

func (s *stubSource) FetchDetailHTML(_ context.Context, url string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.details[url], nil
}

func TestDetailFile(t *testing.T) {
	name, err := DetailFile(detailURL)
	require.NoError(t, err)
	assert.Equal(t, "detail-55.html", name)

	_, err = DetailFile("https://www.troopwebhost.org/FormDetail.aspx?Form_ID=182")
	assert.Error(t, err)
}

func TestDir(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, ListingFile), []byte("<html>list</html>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "detail-55.html"), []byte("<p>1/2/26</p>"), 0o644))

	d := NewDir(root)
	ctx := context.Background()

	listing, err := d.FetchListingHTML(ctx)
	require.NoError(t, err)
	assert.Equal(t, "<html>list</html>", listing)

	detail, err := d.FetchDetailHTML(ctx, detailURL)
	require.NoError(t, err)
	assert.Equal(t, "<p>1/2/26</p>", detail)

	_, err = d.FetchDetailHTML(ctx, "https://www.troopwebhost.org/FormDetail.aspx?ID=99")
	assert.True(t, errors.Is(err, os.ErrNotExist), "missing page should wrap ErrNotExist: %v", err)
}

func TestDir_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewDir(t.TempDir()).FetchListingHTML(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRecorder_RoundTrip(t *testing.T) {
	src := &stubSource{
		listing: "<html>list</html>",
		details: map[string]string{detailURL: "<p>detail</p>"},
	}
	dir := filepath.Join(t.TempDir(), "dump")

	rec, err := NewRecorder(src, dir)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = rec.FetchListingHTML(ctx)
	require.NoError(t, err)
	html, err := rec.FetchDetailHTML(ctx, detailURL)
	require.NoError(t, err)
	assert.Equal(t, "<p>detail</p>", html)

	// The dump replays through Dir.
	replay := NewDir(dir)
	listing, err := replay.FetchListingHTML(ctx)
	require.NoError(t, err)
	assert.Equal(t, src.listing, listing)

	detail, err := replay.FetchDetailHTML(ctx, detailURL)
	require.NoError(t, err)
	assert.Equal(t, "<p>detail</p>", detail)
}

func TestRecorder_PassesErrorsThrough(t *testing.T) {
	boom := errors.New("boom")
	dir := t.TempDir()
	rec, err := NewRecorder(&stubSource{err: boom}, dir)
	require.NoError(t, err)

	_, err = rec.FetchListingHTML(context.Background())
	assert.ErrorIs(t, err, boom)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "failed fetches are not recorded")
}

func TestRecorder_UnnamedDetail(t *testing.T) {
	url := "https://www.troopwebhost.org/FormDetail.aspx?Form_ID=182"
	rec, err := NewRecorder(&stubSource{details: map[string]string{url: "<p>x</p>"}}, t.TempDir())
	require.NoError(t, err)

	html, err := rec.FetchDetailHTML(context.Background(), url)
	require.NoError(t, err)
	assert.Equal(t, "<p>x</p>", html)
}
