// Package client connects srm to a running srmd and starts or stops it.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	srmv1 "github.com/jamesainslie/srm/pkg/api/srm/v1"
	"github.com/jamesainslie/srm/pkg/daemon"
	"github.com/jamesainslie/srm/pkg/srm/config"
)

// DaemonBinary is the daemon executable name.
const DaemonBinary = "srmd"

// ErrNoDaemon is returned when no daemon socket exists.
var ErrNoDaemon = errors.New("srmd is not running")

// Client talks to srmd over its unix socket.
type Client struct {
	conn   *grpc.ClientConn
	client srmv1.SweeperClient
}

// DaemonPaths configures paths for daemon operations.
// Empty fields use defaults.
type DaemonPaths struct {
	Binary string // auto-discovered if empty
	Socket string
	PID    string
	Status string
	Config string // passed to srmd as --config when set
}

func (p DaemonPaths) withDefaults() DaemonPaths {
	if p.Socket == "" {
		p.Socket = config.DefaultSocketPath()
	}
	if p.PID == "" {
		p.PID = config.DefaultPIDPath()
	}
	if p.Status == "" {
		p.Status = config.DefaultStatusPath()
	}
	return p
}

// Connect creates a client for the daemon at socketPath. The connection
// is established lazily by the first call.
func Connect(socketPath string) (*Client, error) {
	if _, err := os.Stat(socketPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: no socket at %s", ErrNoDaemon, socketPath)
	}
	conn, err := grpc.NewClient("unix://"+socketPath,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to daemon: %w", err)
	}
	return &Client{conn: conn, client: srmv1.NewSweeperClient(conn)}, nil
}

// Close closes the connection to the daemon.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// Status returns the daemon status.
func (c *Client) Status(ctx context.Context) (*srmv1.Status, error) {
	return c.client.Status(ctx)
}

// SweepNow asks the daemon to sweep and waits for the result.
func (c *Client) SweepNow(ctx context.Context) (*srmv1.SweepResult, error) {
	return c.client.Sweep(ctx)
}

// Shutdown asks the daemon to exit.
func (c *Client) Shutdown(ctx context.Context) error {
	return c.client.Shutdown(ctx)
}

// Watch calls fn for every daemon event until ctx ends or the daemon
// closes the stream.
func (c *Client) Watch(ctx context.Context, fn func(*srmv1.Event)) error {
	stream, err := c.client.Watch(ctx)
	if err != nil {
		return err
	}
	for {
		ev, err := stream.Recv()
		switch {
		case errors.Is(err, io.EOF):
			return nil
		case err != nil && ctx.Err() != nil:
			return nil
		case err != nil:
			return err
		}
		fn(ev)
	}
}

// IsDaemonRunning reports whether the PID file names a live process.
func IsDaemonRunning(pidPath string) bool {
	return daemon.IsDaemonRunning(pidPath)
}

// StartDaemon launches srmd in the background and waits until it reports
// ready through its socket or status file. It is a no-op if srmd runs.
func StartDaemon(paths DaemonPaths) error {
	paths = paths.withDefaults()
	if IsDaemonRunning(paths.PID) {
		return nil
	}

	binary, err := resolveBinary(paths.Binary)
	if err != nil {
		return fmt.Errorf("find %s: %w", DaemonBinary, err)
	}

	_ = daemon.RemoveStatus(paths.Status)

	var args []string
	if paths.Config != "" {
		args = append(args, "--config", paths.Config)
	}
	// exec.Command, not CommandContext: the daemon must outlive the caller.
	cmd := exec.Command(binary, args...) //nolint:gosec // binary path is resolved above
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}
	if cmd.Process != nil {
		_ = cmd.Process.Release()
	}

	return waitReady(paths, 50, 100*time.Millisecond)
}

func waitReady(paths DaemonPaths, attempts int, every time.Duration) error {
	for range attempts {
		time.Sleep(every)

		if status, err := daemon.ReadStatus(paths.Status); err == nil {
			switch status.Status {
			case daemon.StateReady:
				return nil
			case daemon.StateError:
				return fmt.Errorf("daemon failed to start: %s", status.Error)
			}
		}
		if _, err := os.Stat(paths.Socket); err == nil && IsDaemonRunning(paths.PID) {
			return nil
		}
	}
	return errors.New("daemon did not become ready within timeout")
}

// StopDaemon asks srmd to shut down and waits for it to exit.
func StopDaemon(paths DaemonPaths) error {
	paths = paths.withDefaults()
	if !IsDaemonRunning(paths.PID) {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	c, err := Connect(paths.Socket)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown daemon: %w", err)
	}

	for range 40 {
		time.Sleep(250 * time.Millisecond)
		if !IsDaemonRunning(paths.PID) {
			return nil
		}
	}
	return errors.New("daemon did not stop within timeout")
}

func resolveBinary(configured string) (string, error) {
	if configured != "" {
		if _, err := os.Stat(configured); err != nil {
			return "", fmt.Errorf("configured binary not found: %s", configured)
		}
		return configured, nil
	}

	if execPath, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(execPath), DaemonBinary)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}

	if path, err := exec.LookPath(DaemonBinary); err == nil {
		return path, nil
	}
	return "", fmt.Errorf("%s not found next to srm or on PATH", DaemonBinary)
}
