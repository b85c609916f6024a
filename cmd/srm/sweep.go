package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/jamesainslie/srm/pkg/srm/session"
	"github.com/jamesainslie/srm/pkg/srm/sweeper"
	"github.com/jamesainslie/srm/pkg/srm/trash"
	"github.com/jamesainslie/srm/pkg/srm/types"
)

var (
	sweepForce bool
	sweepYes   bool
	sweepLoop  bool
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Purge expired entries",
	Long: `Delete every entry whose retention has run out or whose rule matches.
With --force every tracked entry is deleted, expired or not.
With --loop srm keeps sweeping in the foreground on the sweeper schedule
until interrupted; "srm daemon start" does the same in the background.`,
	Args: cobra.NoArgs,
	RunE: runSweep,
}

func init() {
	sweepCmd.Flags().BoolVar(&sweepForce, "force", false, "purge everything now")
	sweepCmd.Flags().BoolVarP(&sweepYes, "yes", "y", false, "do not ask before --force")
	sweepCmd.Flags().BoolVar(&sweepLoop, "loop", false, "keep sweeping until interrupted")
	sweepCmd.MarkFlagsMutuallyExclusive("force", "loop")
	rootCmd.AddCommand(sweepCmd)
}

func runSweep(_ *cobra.Command, _ []string) error {
	if sweepLoop {
		return runSweepLoop()
	}

	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	var report trash.SweepReport
	if sweepForce {
		n := s.Store.Len()
		if n == 0 {
			printInfo("Trash is empty.")
			return nil
		}
		if !sweepYes && !confirm(fmt.Sprintf("Permanently delete all %d entries?", n)) {
			return errAborted
		}
		report, err = s.Engine.ForceClean()
	} else {
		report, err = s.Engine.Sweep()
	}
	printSweep(report)
	if err != nil {
		return err
	}
	if _, err := s.PruneHistory(clock.Now()); err != nil {
		printWarn("%v", err)
	}
	return failures(len(report.Failed), len(report.Failed)+len(report.Purged), "purges")
}

var errAborted = errors.New("force clean not confirmed (use --yes to skip the prompt)")

func runSweepLoop() error {
	c, err := settings()
	if err != nil {
		return err
	}
	sc, err := session.SweeperConfig(c)
	if err != nil {
		return err
	}
	sw, err := sweeper.New(session.SweepFunc(c, clock), sc, sweeper.WithClock(clock))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	printInfo("Sweeping until interrupted (Ctrl+C to stop).")
	return sw.Run(ctx)
}

func printSweep(report trash.SweepReport) {
	for _, e := range report.Purged {
		printVerbose("purged %s (%s)", e.Name(), e.OriginalPath)
	}
	for _, f := range report.Failed {
		printError("%s: %v", f.Entry.Name(), f.Err)
	}
	printInfo("Purged %d entries (%s), %d kept, %d failed in %s.",
		len(report.Purged), types.FormatSize(report.PurgedBytes()),
		len(report.Retained), len(report.Failed), report.Elapsed.Round(time.Millisecond))
}

// confirm asks a yes/no question on the terminal. Without a terminal the
// answer is no.
func confirm(question string) bool {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return false
	}
	fmt.Fprintf(stderr, "%s [y/N] ", question)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
