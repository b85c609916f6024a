// Command srmd sweeps the srm trash in the background and answers
// status, sweep and shutdown requests on a unix socket.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/srm/pkg/daemon"
	"github.com/jamesainslie/srm/pkg/daemon/broadcaster"
	"github.com/jamesainslie/srm/pkg/srm/config"
	"github.com/jamesainslie/srm/pkg/srm/logging"
	"github.com/jamesainslie/srm/pkg/srm/session"
	"github.com/jamesainslie/srm/pkg/srm/sweeper"
	"github.com/jamesainslie/srm/pkg/srm/trash"
	"github.com/jamesainslie/srm/pkg/srm/types"
)

// Set by go build -ldflags.
var version = "dev"

var (
	cfgFile    string
	foreground bool
)

func main() {
	cmd := &cobra.Command{
		Use:           "srmd",
		Short:         "Background sweeper for srm",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
		RunE: func(*cobra.Command, []string) error {
			return run()
		},
	}
	cmd.Flags().StringVar(&cfgFile, "config", "", "config file (default: ~/.config/srm/config.yaml)")
	cmd.Flags().BoolVar(&foreground, "foreground", false, "also log to stderr")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "srmd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	store, err := config.Open(cfgFile)
	if err != nil {
		return err
	}
	cfg, err := store.Config()
	if err != nil {
		return err
	}

	logOpts := cfg.LoggingOptions()
	if foreground {
		logOpts.ConsoleLevel = cfg.Logging.Level
	}
	if err := logging.Init(logOpts); err != nil {
		fmt.Fprintf(os.Stderr, "srmd: file logging disabled: %v\n", err)
	}
	defer logging.Close()
	log := logging.Get("daemon")

	paths := cfg.Daemon
	if err := daemon.RecoverFromStaleDaemon(paths.PIDPath, paths.SocketPath, cfg.History.Path); err != nil {
		if errors.Is(err, daemon.ErrDaemonAlreadyRunning) {
			_ = daemon.WriteStatusError(paths.StatusPath, err)
		}
		return err
	}

	fail := func(err error) error {
		log.Error("startup failed", "error", err)
		_ = daemon.WriteStatusError(paths.StatusPath, err)
		return err
	}

	sc, err := session.SweeperConfig(cfg)
	if err != nil {
		return fail(err)
	}
	clock := types.SystemClock{}
	events := broadcaster.New()
	sweep := session.SweepFunc(cfg, clock)
	publish := func(ctx context.Context) (trash.SweepReport, error) {
		report, err := sweep(ctx)
		events.PublishSweep(report, err)
		return report, err
	}
	sw, err := sweeper.New(publish, sc, sweeper.WithClock(clock))
	if err != nil {
		return fail(err)
	}

	if err := daemon.WritePIDFile(paths.PIDPath); err != nil {
		return fail(err)
	}
	defer func() {
		if err := daemon.RemovePIDFile(paths.PIDPath); err != nil {
			log.Warn("failed to remove PID file", "error", err)
		}
		_ = daemon.RemoveStatus(paths.StatusPath)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc := daemon.NewService(sw, events, cfg.Storage.Dir, version, stop)
	srv, err := daemon.NewServer(daemon.Config{SocketPath: paths.SocketPath}, svc)
	if err != nil {
		return fail(err)
	}

	loopErr := make(chan error, 1)
	go func() { loopErr <- sw.Run(ctx) }()

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve() }()

	if err := daemon.WriteStatusReady(paths.StatusPath, paths.SocketPath); err != nil {
		log.Warn("failed to write status file", "error", err)
	}
	log.Info("srmd started", "pid", os.Getpid(), "socket", paths.SocketPath, "storage", cfg.Storage.Dir)

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-serveErr:
		log.Error("server stopped", "error", runErr)
		stop()
	}

	// The loop finishes a sweep in progress before returning.
	if err := <-loopErr; err != nil && runErr == nil {
		runErr = err
	}
	// Watch streams end when the broadcaster closes; GracefulStop waits for them.
	events.Close()
	if err := srv.Close(); err != nil {
		log.Warn("error during shutdown", "error", err)
	}
	log.Info("srmd stopped")
	return runErr
}
