// Package main provides the srm command: a safe replacement for rm that
// moves files into a per-user trash which empties itself on a schedule.
package main

import (
	"os"
)

func main() {
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}
