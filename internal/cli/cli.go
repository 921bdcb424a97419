package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/pfrederiksen/troopcal/internal/config"
	"github.com/pfrederiksen/troopcal/internal/logger"
	"github.com/spf13/cobra"
)

const (
	ExitSuccess  = 0
	ExitError    = 1
	ExitNoEvents = 2
)

// DefaultConfigFile is read when --config is not given and the file exists
const DefaultConfigFile = "troopcal.yaml"

var (
	flagConfig   string
	flagDataDir  string
	flagFormat   string
	flagLogLevel string
	flagPretty   bool
	flagVerbose  bool

	// cfg is loaded once per invocation by the root command
	cfg *config.Config
)

// exitCode is returned by commands that finish without an error but want a
// non-zero process status.
type exitCode int

func (e exitCode) Error() string {
	return fmt.Sprintf("exit status %d", int(e))
}

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "troopcal",
		Short: "Sync a TroopWebHost events calendar to an iCalendar feed",
		Long: `A CLI tool that logs into a TroopWebHost site, collects the event detail
pages linked from the events listing and writes them as an RFC 5545 calendar
that Google Calendar, Apple Calendar or Outlook can subscribe to.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: setup,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&flagConfig, "config", "", "Path to YAML config file (default: ./"+DefaultConfigFile+" if present)")
	flags.StringVar(&flagDataDir, "data-dir", "", "Directory for the run history database")
	flags.StringVar(&flagFormat, "format", "text", "Output format: text or json")
	flags.StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn or error")
	flags.BoolVar(&flagPretty, "pretty", false, "Human-readable colored logs")
	flags.BoolVar(&flagVerbose, "verbose", false, "Enable verbose output")

	cmd.AddCommand(
		newSyncCmd(),
		newLinksCmd(),
		newParseCmd(),
		newInspectCmd(),
		newRunsCmd(),
		newServeCmd(),
	)

	return cmd
}

// setup loads the configuration and installs the default logger
func setup(cmd *cobra.Command, args []string) error {
	path := flagConfig
	if path == "" {
		if _, err := os.Stat(DefaultConfigFile); err == nil {
			path = DefaultConfigFile
		}
	}

	loaded, err := config.Load(path)
	if err != nil {
		return err
	}
	if flagDataDir != "" {
		loaded.DataDir = flagDataDir
	}
	if flagLogLevel != "" {
		loaded.LogLevel = flagLogLevel
	}
	if flagPretty {
		loaded.PrettyLog = true
	}

	level, err := logger.ParseLevel(loaded.LogLevel)
	if err != nil {
		return err
	}
	if flagVerbose {
		level = logger.LevelDebug
	}

	// Logs go to stderr so stdout stays clean for results.
	if loaded.PrettyLog {
		logger.SetDefault(logger.NewConsole(level, cmd.ErrOrStderr()))
	} else {
		logger.SetDefault(logger.New(level, cmd.ErrOrStderr()))
	}

	if path != "" {
		logger.Debug("Loaded config", logger.Fields{"path": path})
	}

	cfg = loaded
	return nil
}

// parseFormat validates the --format flag
func parseFormat() (OutputFormat, error) {
	format := OutputFormat(strings.ToLower(strings.TrimSpace(flagFormat)))
	if format != FormatText && format != FormatJSON {
		return "", fmt.Errorf("invalid format: %s (must be 'text' or 'json')", flagFormat)
	}
	return format, nil
}

// exitStatus maps a command error to the process exit status
func exitStatus(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var code exitCode
	if errors.As(err, &code) {
		return int(code)
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	return ExitError
}

// Execute runs the CLI
func Execute() {
	err := NewRootCmd().Execute()
	_ = logger.Default().Sync()
	os.Exit(exitStatus(err))
}
