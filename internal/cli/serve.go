package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pfrederiksen/troopcal/internal/config"
	"github.com/pfrederiksen/troopcal/internal/logger"
	"github.com/pfrederiksen/troopcal/internal/scheduler"
	"github.com/pfrederiksen/troopcal/internal/server"
	"github.com/pfrederiksen/troopcal/internal/storage"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

var (
	flagListen   string
	flagSchedule string
	flagNoInit   bool
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Sync on a schedule and serve the calendar over HTTP",
		Long: `Run a sync on the configured cron schedule and serve the latest calendar
at /calendar.ics. GET /status shows the last run, POST /sync starts one.`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}
	addSourceFlags(cmd)
	cmd.Flags().StringVar(&flagListen, "listen", "", "HTTP listen address (overrides listen)")
	cmd.Flags().StringVar(&flagSchedule, "schedule", "", "Cron schedule (overrides schedule)")
	cmd.Flags().BoolVar(&flagNoInit, "no-initial-sync", false, "Wait for the schedule instead of syncing at startup")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	applySyncFlags(cmd, cfg)
	if flagListen != "" {
		cfg.Listen = flagListen
	}
	if flagSchedule != "" {
		cfg.Schedule = flagSchedule
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if flagFromDir == "" {
		if err := cfg.CheckCredentials(); err != nil {
			return err
		}
	}

	store, err := storage.New(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}
	metrics := logger.NewMetrics()

	sched, err := scheduler.New(cfg.Schedule, newSyncJob(cfg, store, metrics, flagFromDir))
	if err != nil {
		return err
	}

	srv := server.New(cfg.Listen, server.Deps{
		FeedPath:  cfg.OutputPath,
		History:   store,
		Trigger:   sched,
		Metrics:   metrics,
		Next:      sched.Next,
		StartTime: time.Now(),
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sched.Start(ctx)
	if !flagNoInit {
		if err := sched.Trigger(); err != nil {
			logger.Warn("Initial sync not started", logger.Fields{"error": err.Error()})
		}
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutting down", nil)
	case err := <-errCh:
		if err != nil {
			serveErr = fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil && serveErr == nil {
		serveErr = fmt.Errorf("stopping http server: %w", err)
	}
	sched.Stop()

	return serveErr
}

// newSyncJob returns the scheduled sync. A source that cannot be opened is
// recorded as a failed run so /status reflects it.
func newSyncJob(c *config.Config, store *storage.Storage, metrics *logger.Metrics, fromDir string) scheduler.Job {
	return func(ctx context.Context) error {
		src, release, err := openSource(ctx, c, fromDir)
		if err != nil {
			if store != nil {
				if saveErr := store.SaveRun(failedResult(err).Report, nil); saveErr != nil {
					logger.Warn("Could not record run", logger.Fields{"error": saveErr.Error()})
				}
			}
			return err
		}
		defer release()
		_, err = syncOnce(ctx, c, src, store, metrics)
		return err
	}
}
