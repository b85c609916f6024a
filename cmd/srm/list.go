package main

import (
	"bytes"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/srm/pkg/srm/output"
)

var listFormat string

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "Show what is in the trash",
	Long: `List tracked entries ordered by expiry, soonest first.

Formats: ` + strings.Join(output.Available(), ", ") + `. The default is "table"
on a terminal and "plain" otherwise.`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func init() {
	listCmd.Flags().StringVarP(&listFormat, "format", "f", "", "output format")
	rootCmd.AddCommand(listCmd)
}

func runList(_ *cobra.Command, _ []string) error {
	name := listFormat
	if name == "" {
		name = output.DefaultFormat(os.Stdout)
	}
	formatter, err := output.Get(name)
	if err != nil {
		return err
	}

	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()
	sweepFirst(s)

	listing := output.NewListing(s.Engine.List(), s.Engine.StorageDir(), clock.Now())
	var buf bytes.Buffer
	if err := formatter.Format(&buf, listing); err != nil {
		return err
	}
	_, err = stdout.Write(buf.Bytes())
	return err
}
