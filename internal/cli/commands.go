package cli

import (
	"fmt"
	"os"

	"github.com/pfrederiksen/troopcal/internal/calendar"
	"github.com/pfrederiksen/troopcal/internal/pipeline"
	"github.com/pfrederiksen/troopcal/internal/scraper"
	"github.com/pfrederiksen/troopcal/internal/storage"
	"github.com/spf13/cobra"
)

var (
	flagListing string
	flagTitle   string
	flagURL     string
	flagLimit   int
	flagPrune   int
)

func newLinksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "links",
		Short: "List the event detail links found on the events listing",
		Args:  cobra.NoArgs,
		RunE:  runLinks,
	}
	addSourceFlags(cmd)
	cmd.Flags().StringVar(&flagListing, "file", "", "Parse this saved listing page instead of fetching one")
	cmd.Flags().StringVar(&flagFormID, "form-id", "", "Keep only detail links with this Form_ID")
	return cmd
}

func runLinks(cmd *cobra.Command, args []string) error {
	format, err := parseFormat()
	if err != nil {
		return err
	}
	applySyncFlags(cmd, cfg)

	var listing string
	if flagListing != "" {
		data, err := os.ReadFile(flagListing)
		if err != nil {
			return fmt.Errorf("reading listing: %w", err)
		}
		listing = string(data)
	} else {
		src, release, err := openSource(cmd.Context(), cfg, flagFromDir)
		if err != nil {
			return err
		}
		defer release()
		if listing, err = src.FetchListingHTML(cmd.Context()); err != nil {
			return fmt.Errorf("%w: %w", pipeline.ErrListingUnavailable, err)
		}
	}

	links := pipeline.FilterByForm(scraper.ExtractLinks(listing, cfg.SiteURL), cfg.FormID)
	if err := writeLinks(cmd.OutOrStdout(), links, format); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	if len(links) == 0 {
		return exitCode(ExitNoEvents)
	}
	return nil
}

func newParseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parse FILE",
		Short: "Parse one saved event detail page",
		Long: `Parse a saved event detail page and print the event it produces.
Pages without a recognizable date produce no event and exit with status 2.`,
		Args: cobra.ExactArgs(1),
		RunE: runParse,
	}
	cmd.Flags().StringVar(&flagTitle, "title", "", "Title seen on the listing link")
	cmd.Flags().StringVar(&flagURL, "url", "", "Source URL of the page")
	return cmd
}

func runParse(cmd *cobra.Command, args []string) error {
	format, err := parseFormat()
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading page: %w", err)
	}

	opts := scraper.NewDetailOptions(flagURL, loc)
	opts.DescriptionLimit = cfg.DescriptionLimit
	opts.TimedWithoutClock = !cfg.IsAllDayDefault()

	evt, ok := scraper.ParseDetail(string(data), flagTitle, opts)
	if !ok {
		fmt.Fprintln(cmd.ErrOrStderr(), "No date found on page.")
		return exitCode(ExitNoEvents)
	}
	return writeEvent(cmd.OutOrStdout(), evt, format)
}

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect FILE",
		Short: "Validate a calendar file and list its events",
		Args:  cobra.ExactArgs(1),
		RunE:  runInspect,
	}
}

func runInspect(cmd *cobra.Command, args []string) error {
	format, err := parseFormat()
	if err != nil {
		return err
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading calendar: %w", err)
	}

	if _, err := calendar.Validate(string(data)); err != nil {
		return err
	}
	summaries, err := calendar.Inspect(string(data))
	if err != nil {
		return err
	}
	return writeSummaries(cmd.OutOrStdout(), summaries, format)
}

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Show recorded sync runs",
		Args:  cobra.NoArgs,
		RunE:  runRuns,
	}
	cmd.Flags().IntVar(&flagLimit, "limit", 10, "Number of runs to show, 0 for all")
	cmd.Flags().IntVar(&flagPrune, "prune", 0, "Delete all but the newest N runs first")
	return cmd
}

func runRuns(cmd *cobra.Command, args []string) error {
	format, err := parseFormat()
	if err != nil {
		return err
	}
	store, err := storage.New(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}

	if flagPrune > 0 {
		removed, err := store.Prune(flagPrune)
		if err != nil {
			return err
		}
		if flagVerbose {
			fmt.Fprintf(cmd.ErrOrStderr(), "Pruned %d runs\n", removed)
		}
	}

	runs, err := store.Runs(flagLimit)
	if err != nil {
		return err
	}
	return writeRuns(cmd.OutOrStdout(), runs, format)
}
