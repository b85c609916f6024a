package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/srm/pkg/srm/types"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestRecordAssignsIDAndTime(t *testing.T) {
	j := openTestJournal(t)
	fixed := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	j.now = func() time.Time { return fixed }

	ev, err := j.Record(Event{Op: OpTrash, OriginalPath: "/home/u/a.txt", StoredPath: "/trash/a.txt", Size: 10})
	require.NoError(t, err)
	assert.NotEmpty(t, ev.ID)
	assert.True(t, ev.Time.Equal(fixed))

	got, err := j.Get(ev.ID)
	require.NoError(t, err)
	assert.Equal(t, ev.OriginalPath, got.OriginalPath)
	assert.Equal(t, OpTrash, got.Op)
}

func TestGetUnknownIsNotFound(t *testing.T) {
	j := openTestJournal(t)
	_, err := j.Get("missing")
	assert.ErrorIs(t, err, types.NotFound)
}

func TestListNewestFirst(t *testing.T) {
	j := openTestJournal(t)
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	for i, op := range []Op{OpTrash, OpRestore, OpPurge, OpPurgeFailed} {
		_, err := j.Record(Event{Op: op, Time: base.Add(time.Duration(i) * time.Hour), StoredPath: string(op)})
		require.NoError(t, err)
	}

	all, err := j.List(0)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, OpPurgeFailed, all[0].Op)
	assert.Equal(t, OpTrash, all[3].Op)

	limited, err := j.List(2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, OpPurge, limited[1].Op)

	purges, err := j.List(0, OpPurge, OpPurgeFailed)
	require.NoError(t, err)
	assert.Len(t, purges, 2)
}

func TestListEmpty(t *testing.T) {
	j := openTestJournal(t)
	events, err := j.List(10)
	require.NoError(t, err)
	assert.NotNil(t, events)
	assert.Empty(t, events)
}

func TestCleanup(t *testing.T) {
	j := openTestJournal(t)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	old, err := j.Record(Event{Op: OpTrash, Time: base})
	require.NoError(t, err)
	_, err = j.Record(Event{Op: OpTrash, Time: base.Add(48 * time.Hour)})
	require.NoError(t, err)

	removed, err := j.Cleanup(base.Add(24 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	events, err := j.List(0)
	require.NoError(t, err)
	assert.Len(t, events, 1)

	_, err = j.Get(old.ID)
	assert.ErrorIs(t, err, types.NotFound)

	removed, err = j.Cleanup(base)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestReopenOnDisk(t *testing.T) {
	dir := t.TempDir()
	j, err := Open(dir)
	require.NoError(t, err)
	ev, err := j.Record(Event{Op: OpRestore, OriginalPath: "/a"})
	require.NoError(t, err)
	require.NoError(t, j.Close())

	j, err = Open(dir)
	require.NoError(t, err)
	defer j.Close()

	got, err := j.Get(ev.ID)
	require.NoError(t, err)
	assert.Equal(t, "/a", got.OriginalPath)
}
