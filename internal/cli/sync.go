package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/pfrederiksen/troopcal/internal/calendar"
	"github.com/pfrederiksen/troopcal/internal/config"
	"github.com/pfrederiksen/troopcal/internal/event"
	"github.com/pfrederiksen/troopcal/internal/logger"
	"github.com/pfrederiksen/troopcal/internal/pagesource"
	"github.com/pfrederiksen/troopcal/internal/pipeline"
	"github.com/pfrederiksen/troopcal/internal/storage"
	"github.com/spf13/cobra"
)

var (
	flagFromDir   string
	flagDumpDir   string
	flagOutput    string
	flagFormID    string
	flagWorkers   int
	flagHeaded    bool
	flagNoHistory bool
	flagSort      string
)

func newSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Fetch the troop events and write the calendar file",
		Long: `Log into the troop site, collect every event detail page linked from the
events listing and write them to an .ics file.

Exit status is 0 when events were written, 2 when the run completed but
found no events and 1 on failure.`,
		Args: cobra.NoArgs,
		RunE: runSync,
	}

	addSourceFlags(cmd)
	cmd.Flags().StringVar(&flagOutput, "output", "", "Calendar file to write (overrides output_path)")
	cmd.Flags().StringVar(&flagFormID, "form-id", "", "Keep only detail links with this Form_ID")
	cmd.Flags().IntVar(&flagWorkers, "workers", 0, "Concurrent detail page fetches")
	cmd.Flags().BoolVar(&flagNoHistory, "no-history", false, "Do not read or record run history")
	cmd.Flags().StringVar(&flagSort, "sort", string(SortByDate), "Event order in verbose output: date or title")

	return cmd
}

// addSourceFlags registers the flags that pick where pages come from
func addSourceFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&flagFromDir, "from-dir", "", "Read saved pages from this directory instead of the live site")
	cmd.Flags().StringVar(&flagDumpDir, "dump-dir", "", "Save a copy of every fetched page to this directory")
	cmd.Flags().BoolVar(&flagHeaded, "headed", false, "Show the browser window")
}

// applySyncFlags copies explicitly set flags over the loaded config
func applySyncFlags(cmd *cobra.Command, c *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("output") {
		c.OutputPath = flagOutput
	}
	if flags.Changed("form-id") {
		c.FormID = flagFormID
	}
	if flags.Changed("workers") {
		c.Workers = flagWorkers
	}
	if flags.Changed("dump-dir") {
		c.DumpDir = flagDumpDir
	}
	if flagHeaded {
		headless := false
		c.Headless = &headless
	}
}

func runSync(cmd *cobra.Command, args []string) error {
	format, err := parseFormat()
	if err != nil {
		return err
	}
	order, err := parseSortOrder(flagSort)
	if err != nil {
		return err
	}

	applySyncFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	var store *storage.Storage
	if !flagNoHistory {
		store, err = storage.New(cfg.DataDir)
		if err != nil {
			return fmt.Errorf("initializing storage: %w", err)
		}
	}

	ctx := cmd.Context()
	src, closeSrc, err := openSource(ctx, cfg, flagFromDir)
	if err != nil {
		return err
	}
	defer closeSrc()

	res, runErr := syncOnce(ctx, cfg, src, store, nil)

	result := &OutputResult{
		CheckedAt: time.Now().UTC(),
		Report:    res.Report,
		Events:    res.Events,
	}
	if err := WriteOutput(cmd.OutOrStdout(), result, format, flagVerbose, order); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}

	if runErr != nil {
		return runErr
	}
	if res.Report.Status == pipeline.StatusEmpty {
		return exitCode(ExitNoEvents)
	}
	return nil
}

// openSource returns the live browser source, or a directory of saved pages
// when fromDir is set, wrapped in a recorder when dump_dir is configured.
// The returned func releases the source and is never nil.
func openSource(ctx context.Context, c *config.Config, fromDir string) (pagesource.Source, func(), error) {
	noop := func() {}

	var src pagesource.Source
	release := noop
	if fromDir != "" {
		src = pagesource.NewDir(fromDir)
	} else {
		if err := c.CheckCredentials(); err != nil {
			return nil, noop, err
		}
		b, err := pagesource.NewBrowser(ctx, browserOptions(c))
		if err != nil {
			return nil, noop, err
		}
		src = b
		release = b.Close
	}

	if c.DumpDir != "" {
		rec, err := pagesource.NewRecorder(src, c.DumpDir)
		if err != nil {
			release()
			return nil, noop, err
		}
		src = rec
	}
	return src, release, nil
}

func browserOptions(c *config.Config) pagesource.BrowserOptions {
	return pagesource.BrowserOptions{
		BaseURL:          c.BaseURL,
		ListURL:          c.ListURL,
		Username:         c.Username,
		Password:         c.Password,
		UsernameSelector: c.Login.UsernameSelector,
		PasswordSelector: c.Login.PasswordSelector,
		SubmitSelector:   c.Login.SubmitSelector,
		Headless:         c.IsHeadless(),
		NavTimeout:       c.NavTimeout,
		SettleDelay:      c.SettleDelay,
		Retries:          c.Retries,
	}
}

// syncOnce runs the pipeline once and records the run when store is set.
// The returned result is never nil.
func syncOnce(ctx context.Context, c *config.Config, src pipeline.PageSource, store *storage.Storage, metrics *logger.Metrics) (*pipeline.Result, error) {
	loc, err := c.Location()
	if err != nil {
		return failedResult(err), err
	}

	var previous []string
	if store != nil {
		previous, err = store.FeedIDs()
		if err != nil {
			logger.Warn("Could not read previous feed", logger.Fields{"error": err.Error()})
			previous = nil
		}
	}

	p := pipeline.New(src, pipeline.Options{
		SiteURL:           c.SiteURL,
		FormID:            c.FormID,
		Location:          loc,
		DescriptionLimit:  c.DescriptionLimit,
		TimedWithoutClock: !c.IsAllDayDefault(),
		Workers:           c.Workers,
		OutputPath:        c.OutputPath,
		Calendar:          calendar.Options{Name: c.CalendarName},
		PreviousIDs:       previous,
		Metrics:           metrics,
	})
	res, runErr := p.Run(ctx)

	if store != nil {
		var ids []string
		if runErr == nil && c.OutputPath != "" {
			ids = event.IDs(res.Events)
		}
		if err := store.SaveRun(res.Report, ids); err != nil {
			logger.Warn("Could not record run", logger.Fields{"error": err.Error()})
		}
	}
	return res, runErr
}

func failedResult(err error) *pipeline.Result {
	now := time.Now().UTC()
	return &pipeline.Result{Report: &pipeline.Report{
		StartedAt:  now,
		FinishedAt: now,
		Status:     pipeline.StatusFailed,
		Error:      err.Error(),
	}}
}
