package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/srm/pkg/srm/types"
)

var viewCmd = &cobra.Command{
	Use:   "view NAME",
	Short: "Print a trashed file without restoring it",
	Args:  cobra.ExactArgs(1),
	RunE:  runView,
}

var verifyCmd = &cobra.Command{
	Use:   "verify [NAME...]",
	Short: "Check stored files against their recorded checksums",
	RunE:  runVerify,
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Report files in storage that metadata does not know about, and the reverse",
	Long: `Compare the storage directory with the metadata store. Untracked files
are never purged by a sweep. Missing entries stay tracked, and once expired
they fail every sweep; --forget-missing removes them from the metadata.
Nothing is changed without --forget-missing.`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

var doctorForget bool

func init() {
	doctorCmd.Flags().BoolVar(&doctorForget, "forget-missing", false, "drop entries whose stored file is gone")
	rootCmd.AddCommand(viewCmd, verifyCmd, doctorCmd)
}

func runView(_ *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	entry, ok := s.Store.Find(args[0])
	if !ok {
		return types.E(types.NotFound, "view", args[0], nil)
	}
	if entry.IsDir {
		return types.E(types.InvalidArgument, "view", args[0], fmt.Errorf("is a directory"))
	}
	f, err := os.Open(entry.StoredPath)
	if err != nil {
		return types.E(types.FilesystemError, "view", entry.StoredPath, err)
	}
	defer f.Close()
	_, err = io.Copy(stdout, f)
	return err
}

func runVerify(_ *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	names := args
	if len(names) == 0 {
		for _, e := range s.Engine.List() {
			names = append(names, e.Name())
		}
	}

	failed := 0
	for _, name := range names {
		if err := s.Engine.Verify(name); err != nil {
			failed++
			printError("%s: %v", name, err)
			continue
		}
		printVerbose("%s: ok", name)
	}
	if failed == 0 {
		printInfo("%d entries verified.", len(names))
	}
	return failures(failed, len(names), "checks")
}

func runDoctor(_ *cobra.Command, _ []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	found, err := s.Engine.Reconcile(ctx)
	if err != nil {
		return err
	}
	if found.Empty() {
		printInfo("Storage and metadata agree (%d entries).", s.Store.Len())
		return nil
	}
	for _, path := range found.Untracked {
		fmt.Fprintf(stdout, "untracked  %s\n", path)
	}
	for _, e := range found.Missing {
		fmt.Fprintf(stdout, "missing    %s (from %s)\n", e.Name(), e.OriginalPath)
	}
	if doctorForget && len(found.Missing) > 0 {
		dropped, err := s.Engine.Forget(found.Missing)
		if err != nil {
			return err
		}
		printInfo("Forgot %d missing entries.", len(dropped))
		if len(found.Untracked) == 0 && len(dropped) == len(found.Missing) {
			return nil
		}
		return fmt.Errorf("%d untracked, %d missing", len(found.Untracked), len(found.Missing)-len(dropped))
	}
	return fmt.Errorf("%d untracked, %d missing", len(found.Untracked), len(found.Missing))
}
