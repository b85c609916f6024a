package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	srmv1 "github.com/jamesainslie/srm/pkg/api/srm/v1"
	"github.com/jamesainslie/srm/pkg/client"
	"github.com/jamesainslie/srm/pkg/srm/types"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Manage the srmd background sweeper",
	Long: `Manage srmd, which sweeps expired entries on the sweeper schedule
(sweeper.interval or sweeper.schedule) and, with sweeper.watch, soon after
srm changes the metadata file.`,
}

var daemonStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start srmd in the background",
	Args:  cobra.NoArgs,
	RunE:  runDaemonStart,
}

var daemonStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop srmd gracefully",
	Args:  cobra.NoArgs,
	RunE:  runDaemonStop,
}

var daemonRestartCmd = &cobra.Command{
	Use:   "restart",
	Short: "Stop and start srmd",
	Args:  cobra.NoArgs,
	RunE:  runDaemonRestart,
}

var daemonStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show srmd status",
	Args:  cobra.NoArgs,
	RunE:  runDaemonStatus,
}

var daemonSweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Ask srmd to sweep now",
	Args:  cobra.NoArgs,
	RunE:  runDaemonSweep,
}

var daemonWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow purges made by srmd",
	Args:  cobra.NoArgs,
	RunE:  runDaemonWatch,
}

func init() {
	daemonCmd.AddCommand(daemonStartCmd, daemonStopCmd, daemonRestartCmd, daemonStatusCmd, daemonSweepCmd, daemonWatchCmd)
	rootCmd.AddCommand(daemonCmd)
}

func daemonPaths() (client.DaemonPaths, error) {
	c, err := settings()
	if err != nil {
		return client.DaemonPaths{}, err
	}
	return client.DaemonPaths{
		Binary: c.Daemon.BinaryPath,
		Socket: c.Daemon.SocketPath,
		PID:    c.Daemon.PIDPath,
		Status: c.Daemon.StatusPath,
		Config: cfgFile,
	}, nil
}

func runDaemonStart(_ *cobra.Command, _ []string) error {
	paths, err := daemonPaths()
	if err != nil {
		return err
	}
	if client.IsDaemonRunning(paths.PID) {
		printInfo("Daemon already running")
		return nil
	}
	printVerbose("starting daemon...")
	if err := client.StartDaemon(paths); err != nil {
		return err
	}
	printInfo("Daemon started")
	return nil
}

func runDaemonStop(_ *cobra.Command, _ []string) error {
	paths, err := daemonPaths()
	if err != nil {
		return err
	}
	if !client.IsDaemonRunning(paths.PID) {
		return errors.New("daemon is not running")
	}
	if err := client.StopDaemon(paths); err != nil {
		return err
	}
	printInfo("Daemon stopped")
	return nil
}

func runDaemonRestart(cmd *cobra.Command, args []string) error {
	paths, err := daemonPaths()
	if err != nil {
		return err
	}
	if client.IsDaemonRunning(paths.PID) {
		if err := runDaemonStop(cmd, args); err != nil {
			return fmt.Errorf("failed to stop daemon: %w", err)
		}
	}
	return runDaemonStart(cmd, args)
}

func runDaemonStatus(_ *cobra.Command, _ []string) error {
	paths, err := daemonPaths()
	if err != nil {
		return err
	}
	if !client.IsDaemonRunning(paths.PID) {
		printInfo("Daemon status: not running")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, err := client.Connect(paths.Socket)
	if err != nil {
		printInfo("Daemon status: running (but not responding)")
		return nil
	}
	defer c.Close()

	st, err := c.Status(ctx)
	if err != nil {
		return fmt.Errorf("failed to get daemon status: %w", err)
	}

	printInfo("Daemon status: running")
	printInfo("  PID:        %d", st.PID)
	printInfo("  Version:    %s", st.Version)
	printInfo("  Started:    %s", humanize.Time(st.StartedAt))
	printInfo("  Storage:    %s", st.StorageDir)
	printInfo("  Tracked:    %d entries (%s)", st.Tracked, types.FormatSize(st.TrackedBytes))
	printInfo("  Sweeps:     %d", st.Iterations)
	if !st.LastRun.IsZero() {
		printInfo("  Last sweep: %s, purged %d, failed %d, took %s",
			humanize.Time(st.LastRun), st.LastPurged, st.LastFailed, st.LastElapsed.Round(time.Millisecond))
	}
	if st.LastError != "" {
		printInfo("  Last error: %s", st.LastError)
	}
	if !st.NextRun.IsZero() {
		printInfo("  Next sweep: %s", humanize.Time(st.NextRun))
	}
	return nil
}

func runDaemonSweep(_ *cobra.Command, _ []string) error {
	paths, err := daemonPaths()
	if err != nil {
		return err
	}
	if !client.IsDaemonRunning(paths.PID) {
		return errors.New("daemon is not running (start with: srm daemon start)")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	c, err := client.Connect(paths.Socket)
	if err != nil {
		return err
	}
	defer c.Close()

	res, err := c.SweepNow(ctx)
	if err != nil {
		return fmt.Errorf("sweep failed: %w", err)
	}
	for _, f := range res.Failures {
		printError("%s", f)
	}
	printInfo("Purged %d entries (%s), %d kept, %d failed in %s.",
		res.Purged, types.FormatSize(res.PurgedBytes), res.Retained, len(res.Failures), res.Elapsed.Round(time.Millisecond))
	return failures(len(res.Failures), len(res.Failures)+res.Purged, "purges")
}

func runDaemonWatch(_ *cobra.Command, _ []string) error {
	paths, err := daemonPaths()
	if err != nil {
		return err
	}
	if !client.IsDaemonRunning(paths.PID) {
		return errors.New("daemon is not running (start with: srm daemon start)")
	}

	c, err := client.Connect(paths.Socket)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	printInfo("Watching srmd (Ctrl+C to stop).")
	return c.Watch(ctx, printEvent)
}

func printEvent(ev *srmv1.Event) {
	at := ev.Time.Local().Format(time.TimeOnly)
	switch ev.Type {
	case srmv1.EventPurged:
		fmt.Fprintf(stdout, "%s  purged  %s (%s) from %s\n", at, ev.Name, types.FormatSize(ev.Size), ev.OriginalPath)
	case srmv1.EventPurgeFailed:
		fmt.Fprintf(stdout, "%s  failed  %s: %s\n", at, ev.Name, ev.Error)
	case srmv1.EventSwept:
		if ev.Error != "" {
			fmt.Fprintf(stdout, "%s  sweep failed: %s\n", at, ev.Error)
			return
		}
		printVerbose("%s  sweep: %d purged (%s), %d failed", at, ev.Purged, types.FormatSize(ev.Size), ev.Failed)
	}
}
