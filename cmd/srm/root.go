package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/srm/pkg/srm/config"
	"github.com/jamesainslie/srm/pkg/srm/logging"
	"github.com/jamesainslie/srm/pkg/srm/session"
	"github.com/jamesainslie/srm/pkg/srm/trash"
	"github.com/jamesainslie/srm/pkg/srm/types"
)

var (
	cfgFile string
	verbose bool
	quiet   bool
	noSweep bool

	// Set by loadSettings before any command runs.
	cfgStore *config.Store
	cfg      *config.Config
	cfgErr   error

	// clock is replaced in tests.
	clock types.Clock = types.SystemClock{}

	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

var rootCmd = &cobra.Command{
	Use:   "srm",
	Short: "Move files to a trash that empties itself",
	Long: `srm moves files into a per-user safe storage directory instead of deleting
them. Every trashed file carries an expiry; once it passes, the next sweep
deletes the file for good. Until then it can be restored.

Examples:
  srm rm notes.txt build/          # trash with the default retention (7d)
  srm rm -d 12h core.dump          # keep for 12 hours
  srm rm --max-size 1G big.iso     # also purge early if it grows past 1 GiB
  srm list                         # what is in the trash
  srm restore notes.txt            # put it back
  srm restore -i                   # pick interactively
  srm sweep                        # purge what has expired
  srm daemon start                 # sweep in the background`,
	SilenceUsage:      true,
	PersistentPreRunE: loadSettings,
	PersistentPostRun: func(*cobra.Command, []string) {
		_ = logging.Close()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.config/srm/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "minimal output")
	rootCmd.PersistentFlags().BoolVar(&noSweep, "no-sweep", false, "skip the sweep that runs before list, restore and rm")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadSettings reads configuration and starts logging. A configuration
// that fails validation is kept in cfgErr so "srm config set" can fix it.
func loadSettings(_ *cobra.Command, _ []string) error {
	s, err := config.Open(cfgFile)
	if err != nil {
		return err
	}
	cfgStore = s
	cfg, cfgErr = s.Config()

	opts := logging.Config{Level: "info"}
	if cfg != nil {
		opts = cfg.LoggingOptions()
	}
	switch {
	case verbose:
		opts.Level = "debug"
		opts.ConsoleLevel = "debug"
	case quiet:
		opts.ConsoleLevel = "error"
	default:
		opts.ConsoleLevel = "warn"
	}
	if err := logging.Init(opts); err != nil {
		printVerbose("file logging disabled: %v", err)
	}
	return nil
}

// settings returns the validated configuration.
func settings() (*config.Config, error) {
	if cfgErr != nil {
		return nil, fmt.Errorf("invalid configuration (fix with 'srm config set'): %w", cfgErr)
	}
	if cfg == nil {
		return nil, types.E(types.InvalidArgument, "config", "", fmt.Errorf("configuration not loaded"))
	}
	return cfg, nil
}

// openSession loads the store and engine for one command.
func openSession() (*session.Session, error) {
	c, err := settings()
	if err != nil {
		return nil, err
	}
	return session.Open(c, trash.WithClock(clock))
}

// sweepFirst purges expired entries before list, restore and rm. Failures
// are reported but never stop the command.
func sweepFirst(s *session.Session) {
	if noSweep {
		return
	}
	report, err := s.Engine.Sweep()
	if err != nil {
		printWarn("sweep: %v", err)
	}
	if n := len(report.Purged); n > 0 {
		printVerbose("purged %d expired entries (%s)", n, types.FormatSize(report.PurgedBytes()))
	}
	for _, f := range report.Failed {
		printWarn("could not purge %s: %v", f.Entry.Name(), f.Err)
	}
}

// failures turns a count of failed items into the command error.
func failures(failed, total int, what string) error {
	if failed == 0 {
		return nil
	}
	return fmt.Errorf("%d of %d %s failed", failed, total, what)
}

// printVerbose prints a message if verbose mode is enabled.
func printVerbose(format string, args ...any) {
	if verbose && !quiet {
		fmt.Fprintf(stderr, "[DEBUG] "+format+"\n", args...)
	}
}

// printInfo prints a message if quiet mode is not enabled.
func printInfo(format string, args ...any) {
	if !quiet {
		fmt.Fprintf(stdout, format+"\n", args...)
	}
}

func printWarn(format string, args ...any) {
	fmt.Fprintf(stderr, "Warning: "+format+"\n", args...)
}

// printError prints an error message to stderr.
func printError(format string, args ...any) {
	fmt.Fprintf(stderr, "Error: "+format+"\n", args...)
}
