package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/srm/pkg/srm/config"
	"github.com/jamesainslie/srm/pkg/srm/history"
	"github.com/jamesainslie/srm/pkg/srm/trash"
	"github.com/jamesainslie/srm/pkg/srm/types"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{}
	cfg.Retention.Default = "2d"
	cfg.Storage.Dir = filepath.Join(dir, "trash")
	cfg.Storage.Metadata = filepath.Join(dir, "metadata.json")
	cfg.History.Enabled = true
	cfg.History.Path = filepath.Join(dir, "history")
	cfg.History.RetentionDays = 30
	return cfg
}

func TestOpen_TrashRecordsHistory(t *testing.T) {
	cfg := testConfig(t)
	clock := &types.FixedClock{T: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}

	s, err := Open(cfg, trash.WithClock(clock))
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, 2*types.Day, s.Engine.DefaultRetention())

	src := filepath.Join(t.TempDir(), "a.txt")
	require.NoError(t, os.WriteFile(src, []byte("a"), 0o644))
	res, err := s.Engine.Trash(src, trash.Request{})
	require.NoError(t, err)
	assert.Equal(t, clock.T.Add(2*types.Day), res.Entry.ExpiresAt)

	j, err := s.History()
	require.NoError(t, err)
	events, err := j.List(0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, history.OpTrash, events[0].Op)
}

func TestOpen_HistoryDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.History.Enabled = false

	s, err := Open(cfg)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.History()
	assert.ErrorIs(t, err, ErrHistoryDisabled)

	n, err := s.PruneHistory(time.Now())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestOpen_JournalLockedStillWorks(t *testing.T) {
	cfg := testConfig(t)

	first, err := Open(cfg)
	require.NoError(t, err)
	defer first.Close()

	second, err := Open(cfg)
	require.NoError(t, err, "a busy journal only disables history")
	defer second.Close()

	_, err = second.History()
	assert.ErrorIs(t, err, ErrHistoryDisabled)
}

func TestOpen_BadRetention(t *testing.T) {
	cfg := testConfig(t)
	cfg.Retention.Default = "never"

	_, err := Open(cfg)
	assert.Equal(t, types.InvalidArgument, types.KindOf(err))
}

func TestOpen_ZeroRetention(t *testing.T) {
	cfg := testConfig(t)
	cfg.Retention.Default = "0s"
	clock := &types.FixedClock{T: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}

	s, err := Open(cfg, trash.WithClock(clock))
	require.NoError(t, err)
	defer s.Close()
	assert.Zero(t, s.Engine.DefaultRetention())

	src := filepath.Join(t.TempDir(), "a.txt")
	require.NoError(t, os.WriteFile(src, []byte("a"), 0o644))
	res, err := s.Engine.Trash(src, trash.Request{})
	require.NoError(t, err)
	assert.Equal(t, clock.T, res.Entry.ExpiresAt)
}

func TestPruneHistory(t *testing.T) {
	cfg := testConfig(t)
	s, err := Open(cfg)
	require.NoError(t, err)
	defer s.Close()

	j, err := s.History()
	require.NoError(t, err)
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	_, err = j.Record(history.Event{Op: history.OpPurge, Time: now.Add(-40 * types.Day)})
	require.NoError(t, err)
	_, err = j.Record(history.Event{Op: history.OpPurge, Time: now.Add(-time.Hour)})
	require.NoError(t, err)

	n, err := s.PruneHistory(now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
