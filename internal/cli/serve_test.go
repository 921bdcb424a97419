package cli

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/pfrederiksen/troopcal/internal/config"
	"github.com/pfrederiksen/troopcal/internal/logger"
	"github.com/pfrederiksen/troopcal/internal/pipeline"
	"github.com/pfrederiksen/troopcal/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncJob_SourceFailureRecorded(t *testing.T) {
	store, err := storage.New(t.TempDir())
	require.NoError(t, err)

	c := config.DefaultConfig()
	job := newSyncJob(c, store, logger.NewMetrics(), "")

	err = job(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrMissingConfig)

	last, err := store.LastRun()
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, pipeline.StatusFailed, last.Status)
	assert.Contains(t, last.Error, config.EnvBase)
}

func TestSyncJob_RecordsRun(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.New(filepath.Join(dir, "data"))
	require.NoError(t, err)

	c := config.DefaultConfig()
	c.OutputPath = filepath.Join(dir, "troop.ics")
	c.FormID = "182"
	job := newSyncJob(c, store, logger.NewMetrics(), siteDir)

	require.NoError(t, job(context.Background()))

	last, err := store.LastRun()
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, pipeline.StatusOK, last.Status)
	assert.Equal(t, 2, last.EventsWritten)
	assert.FileExists(t, c.OutputPath)
}
