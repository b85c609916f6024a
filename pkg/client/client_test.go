package client

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	srmv1 "github.com/jamesainslie/srm/pkg/api/srm/v1"
	"github.com/jamesainslie/srm/pkg/daemon"
	"github.com/jamesainslie/srm/pkg/daemon/broadcaster"
	"github.com/jamesainslie/srm/pkg/srm/store"
	"github.com/jamesainslie/srm/pkg/srm/sweeper"
	"github.com/jamesainslie/srm/pkg/srm/trash"
)

type stubLoop struct{}

func (stubLoop) Trigger(context.Context) (trash.SweepReport, error) {
	return trash.SweepReport{Purged: []store.Entry{{StoredPath: "/t/a", SizeBytes: 7}}}, nil
}

func (stubLoop) Status() sweeper.Status {
	return sweeper.Status{Running: true, Iterations: 1}
}

// setupTestServer serves a daemon.Service on a short unix socket path.
func setupTestServer(t *testing.T, shutdown func()) (string, *broadcaster.Broadcaster) {
	t.Helper()

	dir, err := os.MkdirTemp("", "srm-client-test-*")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })

	socketPath := filepath.Join(dir, "test.sock")
	events := broadcaster.New()
	srv, err := daemon.NewServer(daemon.Config{SocketPath: socketPath}, daemon.NewService(stubLoop{}, events, "/t", "test", shutdown))
	require.NoError(t, err)
	go func() { _ = srv.Serve() }()
	t.Cleanup(func() {
		events.Close()
		_ = srv.Close()
	})
	return socketPath, events
}

func TestConnectInvalidSocket(t *testing.T) {
	_, err := Connect(filepath.Join(t.TempDir(), "missing.sock"))
	assert.ErrorIs(t, err, ErrNoDaemon)
}

func TestClientCalls(t *testing.T) {
	stopped := make(chan struct{}, 1)
	socket, _ := setupTestServer(t, func() { stopped <- struct{}{} })

	c, err := Connect(socket)
	require.NoError(t, err)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	st, err := c.Status(ctx)
	require.NoError(t, err)
	assert.True(t, st.Running)
	assert.Equal(t, "test", st.Version)

	res, err := c.SweepNow(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Purged)
	assert.Equal(t, int64(7), res.PurgedBytes)

	require.NoError(t, c.Shutdown(ctx))
	select {
	case <-stopped:
	case <-ctx.Done():
		t.Fatal("shutdown callback not invoked")
	}
}

func TestClientWatch(t *testing.T) {
	socket, events := setupTestServer(t, nil)

	c, err := Connect(socket)
	require.NoError(t, err)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	got := make(chan *srmv1.Event, 4)
	done := make(chan error, 1)
	go func() { done <- c.Watch(ctx, func(ev *srmv1.Event) { got <- ev }) }()

	require.Eventually(t, func() bool { return events.SubscriberCount() == 1 }, 2*time.Second, 10*time.Millisecond)
	events.PublishSweep(trash.SweepReport{}, nil)

	select {
	case ev := <-got:
		assert.Equal(t, srmv1.EventSwept, ev.Type)
	case <-ctx.Done():
		t.Fatal("no event received")
	}

	events.Close()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-ctx.Done():
		t.Fatal("Watch did not return after the stream closed")
	}
}

func TestClientClose(t *testing.T) {
	c := &Client{}
	assert.NoError(t, c.Close())
}

func TestStopDaemonNotRunning(t *testing.T) {
	dir := t.TempDir()
	err := StopDaemon(DaemonPaths{PID: filepath.Join(dir, "srmd.pid"), Socket: filepath.Join(dir, "srmd.sock")})
	assert.NoError(t, err)
}

func TestStartDaemonAlreadyRunning(t *testing.T) {
	pid := filepath.Join(t.TempDir(), "srmd.pid")
	require.NoError(t, daemon.WritePIDFile(pid))
	assert.NoError(t, StartDaemon(DaemonPaths{PID: pid, Binary: "/does/not/exist"}))
}

func TestWaitReady(t *testing.T) {
	dir := t.TempDir()
	paths := DaemonPaths{
		Socket: filepath.Join(dir, "srmd.sock"),
		PID:    filepath.Join(dir, "srmd.pid"),
		Status: filepath.Join(dir, "srmd.status.json"),
	}

	require.NoError(t, daemon.WriteStatusError(paths.Status, errors.New("no storage")))
	err := waitReady(paths, 3, time.Millisecond)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no storage")

	require.NoError(t, daemon.WriteStatusReady(paths.Status, paths.Socket))
	assert.NoError(t, waitReady(paths, 3, time.Millisecond))

	require.NoError(t, daemon.RemoveStatus(paths.Status))
	assert.Error(t, waitReady(paths, 2, time.Millisecond))
}

func TestResolveBinary(t *testing.T) {
	bin := filepath.Join(t.TempDir(), DaemonBinary)
	require.NoError(t, os.WriteFile(bin, []byte("#!/bin/sh\n"), 0o755))

	got, err := resolveBinary(bin)
	require.NoError(t, err)
	assert.Equal(t, bin, got)

	_, err = resolveBinary(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}
