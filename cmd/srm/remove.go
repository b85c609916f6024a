package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/srm/pkg/srm/rule"
	"github.com/jamesainslie/srm/pkg/srm/trash"
	"github.com/jamesainslie/srm/pkg/srm/types"
)

var (
	rmDuration string
	rmMaxAge   string
	rmBefore   string
	rmMaxSize  string
)

var removeCmd = &cobra.Command{
	Use:     "remove FILE...",
	Aliases: []string{"rm", "trash"},
	Short:   "Move files to safe storage",
	Long: `Move files or directories into safe storage. Each one is kept until its
retention runs out and is then deleted by the next sweep.

Durations are an integer plus a unit: s, m, h, d or w ("90m", "12h", "7d").

A retention rule can purge an entry earlier; it is checked against the
stored file at every sweep, and any matching condition is enough:
  --max-age   the file is older than this (by creation time)
  --before    the file was created before this date (YYYY-MM-DD or RFC3339)
  --max-size  the file is larger than this ("500M", "1G")`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRemove,
}

func init() {
	removeCmd.Flags().StringVarP(&rmDuration, "duration", "d", "", "retention (default from retention.default)")
	removeCmd.Flags().StringVar(&rmMaxAge, "max-age", "", "purge once the file is older than this")
	removeCmd.Flags().StringVar(&rmBefore, "before", "", "purge if the file was created before this date")
	removeCmd.Flags().StringVar(&rmMaxSize, "max-size", "", "purge once the file is larger than this")
	rootCmd.AddCommand(removeCmd)
}

func runRemove(_ *cobra.Command, args []string) error {
	req, err := buildRequest(rmDuration, rmMaxAge, rmBefore, rmMaxSize)
	if err != nil {
		return err
	}

	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()
	sweepFirst(s)

	report := s.Engine.TrashBatch(args, req)
	for _, res := range report.Results {
		for _, w := range res.Warnings {
			printWarn("%s: %v", res.Path, w)
		}
		switch {
		case res.Err != nil && res.Moved:
			// The file is in storage but no entry points at it.
			printError("%s was moved to %s but could not be recorded: %v", res.Path, res.Entry.StoredPath, res.Err)
		case res.Err != nil:
			printError("%s: %v", res.Path, res.Err)
		default:
			printInfo("%s -> %s (expires %s)", res.Path, res.Entry.Name(), res.Entry.ExpiresAt.Local().Format(time.DateTime))
		}
	}
	return failures(len(report.Failed()), len(report.Results), "files")
}

// buildRequest parses the retention flags of "srm rm".
func buildRequest(duration, maxAge, before, maxSize string) (trash.Request, error) {
	var req trash.Request
	if duration != "" {
		d, err := types.ParseDuration(duration)
		if err != nil {
			return req, fmt.Errorf("--duration: %w", err)
		}
		req.Retention = trash.Retain(d)
	}

	var r rule.Rule
	if maxAge != "" {
		d, err := types.ParseDuration(maxAge)
		if err != nil {
			return req, fmt.Errorf("--max-age: %w", err)
		}
		age := types.Duration(d)
		r.MaxAge = &age
	}
	if before != "" {
		t, err := parseDate(before)
		if err != nil {
			return req, fmt.Errorf("--before: %w", err)
		}
		r.AbsoluteExpiry = &t
	}
	if maxSize != "" {
		n, err := types.ParseSize(maxSize)
		if err != nil {
			return req, fmt.Errorf("--max-size: %w", err)
		}
		r.MaxSize = &n
	}
	if !r.IsZero() {
		if err := r.Validate(); err != nil {
			return req, err
		}
		req.Rule = &r
	}
	return req, nil
}

// parseDate accepts a local calendar date or an RFC3339 timestamp.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.ParseInLocation(time.DateOnly, s, time.Local); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Time{}, types.E(types.InvalidArgument, "parse date", s,
		fmt.Errorf("want YYYY-MM-DD or RFC3339"))
}
