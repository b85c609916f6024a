package main

import (
	"errors"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/jamesainslie/srm/cmd/srm/tui"
	"github.com/jamesainslie/srm/pkg/srm/output"
	"github.com/jamesainslie/srm/pkg/srm/trash"
)

var (
	restoreAll         bool
	restoreInteractive bool
)

var restoreCmd = &cobra.Command{
	Use:   "restore [NAME...]",
	Short: "Move trashed files back to where they came from",
	Long: `Restore entries by the name shown in "srm list". A restore never
overwrites: if something already exists at the original path the entry
stays in the trash. Content is checked against the checksum recorded at
trash time; a mismatch is reported but the file is still restored.`,
	RunE: runRestore,
}

func init() {
	restoreCmd.Flags().BoolVarP(&restoreAll, "all", "a", false, "restore every entry")
	restoreCmd.Flags().BoolVarP(&restoreInteractive, "interactive", "i", false, "choose entries in a picker")
	restoreCmd.MarkFlagsMutuallyExclusive("all", "interactive")
	rootCmd.AddCommand(restoreCmd)
}

func runRestore(_ *cobra.Command, args []string) error {
	if len(args) == 0 && !restoreAll && !restoreInteractive {
		return errors.New("name the entries to restore, or use --all or -i")
	}
	if len(args) > 0 && (restoreAll || restoreInteractive) {
		return errors.New("names cannot be combined with --all or -i")
	}

	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()
	sweepFirst(s)

	var report trash.BatchReport
	switch {
	case restoreAll:
		report = s.Engine.RestoreAll()
	case restoreInteractive:
		if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
			return errors.New("interactive restore needs a terminal")
		}
		listing := output.NewListing(s.Engine.List(), s.Engine.StorageDir(), clock.Now())
		names, err := tui.Run(listing.Items)
		if err != nil {
			return err
		}
		if len(names) == 0 {
			printInfo("Nothing restored.")
			return nil
		}
		report = restoreNames(s.Engine, names)
	default:
		report = restoreNames(s.Engine, args)
	}

	for _, res := range report.Results {
		for _, w := range res.Warnings {
			printWarn("%s: %v", res.Path, w)
		}
		if res.Err != nil {
			printError("%s: %v", res.Path, res.Err)
			continue
		}
		printInfo("%s -> %s", res.Path, res.Entry.OriginalPath)
	}
	if len(report.Results) == 0 {
		printInfo("Trash is empty.")
	}
	return failures(len(report.Failed()), len(report.Results), "restores")
}

func restoreNames(e *trash.Engine, names []string) trash.BatchReport {
	var report trash.BatchReport
	for _, name := range names {
		res, _ := e.Restore(name)
		report.Results = append(report.Results, res)
	}
	return report
}
