package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/srm/pkg/srm/history"
	"github.com/jamesainslie/srm/pkg/srm/types"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View the trash, restore and purge journal",
	Long: `View the journal of operations performed by srm and srmd.

The journal is an audit trail kept under history.path. Events older than
history.retention_days are dropped by sweeps and by "srm history clean".`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

var historyShowCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Show one journal event",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var historyCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Drop old journal events",
	Args:  cobra.NoArgs,
	RunE:  runHistoryClean,
}

var (
	historyLimit     int
	historyOps       []string
	historyOlderThan string
)

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "l", 20, "maximum number of events to show (0 for all)")
	historyCmd.Flags().StringSliceVar(&historyOps, "op", nil, "only these operations (trash, restore, purge, force-purge, purge-failed)")
	historyCleanCmd.Flags().StringVar(&historyOlderThan, "older-than", "", "drop events older than this instead of history.retention_days")

	historyCmd.AddCommand(historyShowCmd, historyCleanCmd)
	rootCmd.AddCommand(historyCmd)
}

func openJournal() (*history.Journal, func(), error) {
	s, err := openSession()
	if err != nil {
		return nil, nil, err
	}
	j, err := s.History()
	if err != nil {
		_ = s.Close()
		return nil, nil, fmt.Errorf("%w (enabled in config, and is srmd holding it?)", err)
	}
	return j, func() { _ = s.Close() }, nil
}

func runHistory(_ *cobra.Command, _ []string) error {
	ops := make([]history.Op, 0, len(historyOps))
	for _, op := range historyOps {
		ops = append(ops, history.Op(op))
	}

	j, done, err := openJournal()
	if err != nil {
		return err
	}
	defer done()

	events, err := j.List(historyLimit, ops...)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		printInfo("No history entries found.")
		return nil
	}

	fmt.Fprintf(stdout, "%-36s  %-19s  %-12s  %-10s  %s\n", "ID", "TIME", "OP", "SIZE", "PATH")
	fmt.Fprintln(stdout, strings.Repeat("-", 100))
	for _, ev := range events {
		fmt.Fprintf(stdout, "%-36s  %-19s  %-12s  %-10s  %s\n",
			ev.ID,
			ev.Time.Local().Format(time.DateTime),
			ev.Op,
			types.FormatSize(ev.Size),
			ev.OriginalPath,
		)
	}
	printInfo("\nShowing %d events. Use 'srm history show <id>' for details.", len(events))
	return nil
}

func runHistoryShow(_ *cobra.Command, args []string) error {
	j, done, err := openJournal()
	if err != nil {
		return err
	}
	defer done()

	ev, err := j.Get(args[0])
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "ID:        %s\n", ev.ID)
	fmt.Fprintf(stdout, "Time:      %s\n", ev.Time.Local().Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(stdout, "Operation: %s\n", ev.Op)
	fmt.Fprintf(stdout, "Original:  %s\n", ev.OriginalPath)
	fmt.Fprintf(stdout, "Stored:    %s\n", ev.StoredPath)
	fmt.Fprintf(stdout, "Size:      %s\n", types.FormatSize(ev.Size))
	if ev.Checksum != "" {
		fmt.Fprintf(stdout, "SHA-256:   %s\n", ev.Checksum)
	}
	if ev.Warning != "" {
		fmt.Fprintf(stdout, "Warning:   %s\n", ev.Warning)
	}
	if ev.Error != "" {
		fmt.Fprintf(stdout, "Error:     %s\n", ev.Error)
	}
	return nil
}

func runHistoryClean(_ *cobra.Command, _ []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	var n int
	if historyOlderThan != "" {
		age, err := types.ParseDuration(historyOlderThan)
		if err != nil {
			return types.E(types.InvalidArgument, "history clean", "--older-than", err)
		}
		j, err := s.History()
		if err != nil {
			return err
		}
		n, err = j.Cleanup(clock.Now().Add(-age))
		if err != nil {
			return err
		}
	} else {
		if _, err := s.History(); err != nil {
			return err
		}
		n, err = s.PruneHistory(clock.Now())
		if err != nil {
			return err
		}
	}
	printInfo("Removed %d history entries.", n)
	return nil
}
