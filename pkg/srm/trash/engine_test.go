package trash

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/srm/pkg/srm/history"
	"github.com/jamesainslie/srm/pkg/srm/rule"
	"github.com/jamesainslie/srm/pkg/srm/store"
	"github.com/jamesainslie/srm/pkg/srm/types"
)

type fixture struct {
	engine  *Engine
	clock   *types.FixedClock
	store   *store.Store
	work    string
	storage string
	meta    string
}

// sizeOnlyStat reports size but never a creation time, so tests behave
// the same on every filesystem.
func sizeOnlyStat(path string) (rule.FileStat, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return rule.FileStat{}, types.E(types.NotFound, "stat", path, err)
	}
	return rule.FileStat{Size: info.Size()}, nil
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	root := t.TempDir()
	f := &fixture{
		clock:   &types.FixedClock{T: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)},
		work:    filepath.Join(root, "work"),
		storage: filepath.Join(root, "trash"),
		meta:    filepath.Join(root, "metadata.json"),
	}
	require.NoError(t, os.MkdirAll(f.work, 0o755))

	st, err := store.Open(f.meta)
	require.NoError(t, err)
	f.store = st

	opts = append([]Option{WithClock(f.clock), WithStatFunc(sizeOnlyStat)}, opts...)
	f.engine, err = New(st, f.storage, opts...)
	require.NoError(t, err)
	return f
}

func (f *fixture) write(t *testing.T, rel, content string) string {
	t.Helper()
	path := filepath.Join(f.work, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func (f *fixture) reloaded(t *testing.T) []store.Entry {
	t.Helper()
	st, err := store.Open(f.meta)
	require.NoError(t, err)
	return st.Entries()
}

func TestNewValidation(t *testing.T) {
	_, err := New(nil, t.TempDir())
	assert.ErrorIs(t, err, types.InvalidArgument)

	st, err := store.Open(filepath.Join(t.TempDir(), "m.json"))
	require.NoError(t, err)
	_, err = New(st, "")
	assert.ErrorIs(t, err, types.InvalidArgument)

	e, err := New(st, filepath.Join(t.TempDir(), "deep", "trash"), WithDefaultRetention(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, types.DefaultRetention, e.DefaultRetention())

	e, err = New(st, filepath.Join(t.TempDir(), "trash"), WithDefaultRetention(0))
	require.NoError(t, err)
	assert.Zero(t, e.DefaultRetention())
	assert.DirExists(t, e.StorageDir())
}

func TestTrashThenSweepByExpiry(t *testing.T) {
	f := newFixture(t)
	src := f.write(t, "a.txt", "hello")

	res, err := f.engine.Trash(src, Request{Retention: Retain(time.Hour)})
	require.NoError(t, err)
	assert.True(t, res.Moved)
	assert.Empty(t, res.Warnings)
	assert.Equal(t, f.clock.T.Add(time.Hour), res.Entry.ExpiresAt)
	assert.Equal(t, filepath.Join(f.engine.StorageDir(), "a.txt"), res.Entry.StoredPath)
	assert.Equal(t, int64(5), res.Entry.SizeBytes)
	assert.Len(t, res.Entry.Checksum, 64)

	assert.NoFileExists(t, src)
	assert.FileExists(t, res.Entry.StoredPath)
	require.Len(t, f.reloaded(t), 1, "trash persists before returning")

	report, err := f.engine.Sweep()
	require.NoError(t, err)
	assert.Empty(t, report.Purged)
	assert.Len(t, report.Retained, 1)

	f.clock.Advance(time.Hour)
	report, err = f.engine.Sweep()
	require.NoError(t, err)
	require.Len(t, report.Purged, 1)
	assert.Equal(t, int64(5), report.PurgedBytes())
	assert.NoFileExists(t, res.Entry.StoredPath)
	assert.Empty(t, f.reloaded(t))
}

func TestTrashUsesDefaultRetention(t *testing.T) {
	f := newFixture(t, WithDefaultRetention(2*time.Hour))
	res, err := f.engine.Trash(f.write(t, "b.txt", "x"), Request{})
	require.NoError(t, err)
	assert.Equal(t, f.clock.T.Add(2*time.Hour), res.Entry.ExpiresAt)

	g := newFixture(t)
	res, err = g.engine.Trash(g.write(t, "b.txt", "x"), Request{})
	require.NoError(t, err)
	assert.Equal(t, g.clock.T.Add(7*24*time.Hour), res.Entry.ExpiresAt)
}

func TestTrashZeroRetentionExpiresAtOnce(t *testing.T) {
	f := newFixture(t)
	res, err := f.engine.Trash(f.write(t, "now.txt", "x"), Request{Retention: Retain(0)})
	require.NoError(t, err)
	assert.Equal(t, res.Entry.TrashedAt, res.Entry.ExpiresAt)

	report, err := f.engine.Sweep()
	require.NoError(t, err)
	require.Len(t, report.Purged, 1)
	assert.Empty(t, report.Retained)
	assert.NoFileExists(t, res.Entry.StoredPath)

	g := newFixture(t, WithDefaultRetention(0))
	res, err = g.engine.Trash(g.write(t, "now.txt", "x"), Request{})
	require.NoError(t, err)
	assert.Equal(t, g.clock.T, res.Entry.ExpiresAt)
}

func TestTrashCollidingNames(t *testing.T) {
	f := newFixture(t)
	first := f.write(t, "one/report.txt", "first")
	second := f.write(t, "two/report.txt", "second")
	third := f.write(t, "three/report.txt", "third")

	r1, err := f.engine.Trash(first, Request{})
	require.NoError(t, err)
	r2, err := f.engine.Trash(second, Request{})
	require.NoError(t, err)
	r3, err := f.engine.Trash(third, Request{})
	require.NoError(t, err)

	assert.Equal(t, "report.txt", r1.Entry.Name())
	assert.Equal(t, "report_20240101120000.txt", r2.Entry.Name())
	assert.Equal(t, "report_20240101120000_1.txt", r3.Entry.Name())

	seen := map[string]bool{}
	for _, e := range f.engine.List() {
		assert.False(t, seen[e.StoredPath], "duplicate stored path %s", e.StoredPath)
		seen[e.StoredPath] = true
	}
	assert.Len(t, seen, 3)

	data, err := os.ReadFile(r2.Entry.StoredPath)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
}

func TestSplitName(t *testing.T) {
	tests := []struct{ in, stem, ext string }{
		{"report.txt", "report", ".txt"},
		{"archive.tar.gz", "archive.tar", ".gz"},
		{".bashrc", ".bashrc", ""},
		{"Makefile", "Makefile", ""},
		{"..", "..", ""},
	}
	for _, tt := range tests {
		stem, ext := splitName(tt.in)
		assert.Equal(t, tt.stem, stem, tt.in)
		assert.Equal(t, tt.ext, ext, tt.in)
	}
}

func TestTrashErrors(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.Trash("", Request{})
	assert.ErrorIs(t, err, types.InvalidArgument)

	_, err = f.engine.Trash(filepath.Join(f.work, "missing.txt"), Request{})
	assert.ErrorIs(t, err, types.NotFound)

	_, err = f.engine.Trash(f.engine.StorageDir(), Request{})
	assert.ErrorIs(t, err, types.InvalidArgument)

	_, err = f.engine.Trash(filepath.Dir(f.engine.StorageDir()), Request{})
	assert.ErrorIs(t, err, types.InvalidArgument)

	_, err = f.engine.Trash("/", Request{})
	assert.ErrorIs(t, err, types.InvalidArgument)

	negative := int64(-1)
	_, err = f.engine.Trash(f.write(t, "c.txt", "c"), Request{Rule: &rule.Rule{MaxSize: &negative}})
	assert.ErrorIs(t, err, types.InvalidArgument)
	assert.FileExists(t, filepath.Join(f.work, "c.txt"))

	assert.Empty(t, f.engine.List())
}

func TestTrashInsideStorageRefused(t *testing.T) {
	f := newFixture(t)
	res, err := f.engine.Trash(f.write(t, "d.txt", "d"), Request{})
	require.NoError(t, err)

	_, err = f.engine.Trash(res.Entry.StoredPath, Request{})
	assert.ErrorIs(t, err, types.InvalidArgument)
}

func TestTrashPersistenceFailureIsDistinct(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.Mkdir(f.meta, 0o755))
	src := f.write(t, "e.txt", "e")

	res, err := f.engine.Trash(src, Request{})
	require.Error(t, err)
	assert.ErrorIs(t, err, types.PersistenceFailed)
	assert.True(t, res.Moved)
	assert.FileExists(t, res.Entry.StoredPath)
	assert.Empty(t, f.engine.List())
}

func TestTrashBatchContinuesOnError(t *testing.T) {
	f := newFixture(t)
	a := f.write(t, "a.txt", "a")
	b := f.write(t, "b.txt", "b")

	report := f.engine.TrashBatch([]string{a, filepath.Join(f.work, "nope"), b}, Request{})
	require.Len(t, report.Results, 3)
	failed := report.Failed()
	require.Len(t, failed, 1)
	assert.ErrorIs(t, failed[0].Err, types.NotFound)

	assert.Len(t, f.reloaded(t), 2)
}

func TestTrashDirectory(t *testing.T) {
	f := newFixture(t)
	f.write(t, "dir/x.txt", "12345")
	f.write(t, "dir/sub/y.txt", "123")

	res, err := f.engine.Trash(filepath.Join(f.work, "dir"), Request{Retention: Retain(time.Minute)})
	require.NoError(t, err)
	assert.True(t, res.Entry.IsDir)
	assert.Equal(t, int64(8), res.Entry.SizeBytes)
	assert.Empty(t, res.Entry.Checksum)
	assert.Len(t, res.Warnings, 1)

	f.clock.Advance(time.Minute)
	report, err := f.engine.Sweep()
	require.NoError(t, err)
	assert.Len(t, report.Purged, 1)
	assert.NoDirExists(t, res.Entry.StoredPath)
}

func TestRestoreInverse(t *testing.T) {
	f := newFixture(t)
	src := f.write(t, "docs/notes.md", "# notes")
	before, err := checksumFile(src)
	require.NoError(t, err)

	res, err := f.engine.Trash(src, Request{})
	require.NoError(t, err)
	assert.Equal(t, before, res.Entry.Checksum)

	require.NoError(t, os.RemoveAll(filepath.Join(f.work, "docs")))

	restored, err := f.engine.Restore("notes.md")
	require.NoError(t, err)
	assert.Empty(t, restored.Warnings)

	after, err := checksumFile(src)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Empty(t, f.engine.List())
	assert.Empty(t, f.reloaded(t))
}

func TestRestoreUnknownName(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.Trash(f.write(t, "keep.txt", "k"), Request{})
	require.NoError(t, err)

	_, err = f.engine.Restore("ghost.txt")
	assert.ErrorIs(t, err, types.NotFound)
	assert.Len(t, f.engine.List(), 1)
}

func TestRestoreDestinationOccupied(t *testing.T) {
	f := newFixture(t)
	src := f.write(t, "f.txt", "old")
	_, err := f.engine.Trash(src, Request{})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(src, []byte("new"), 0o644))

	_, err = f.engine.Restore("f.txt")
	assert.ErrorIs(t, err, types.DestinationOccupied)

	data, err := os.ReadFile(src)
	require.NoError(t, err)
	assert.Equal(t, "new", string(data), "restore never overwrites")
	assert.Len(t, f.engine.List(), 1)
}

func TestRestoreChecksumMismatchWarns(t *testing.T) {
	f := newFixture(t)
	src := f.write(t, "g.txt", "original")
	res, err := f.engine.Trash(src, Request{})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(res.Entry.StoredPath, []byte("tampered"), 0o644))
	assert.ErrorIs(t, f.engine.Verify("g.txt"), types.ChecksumMismatch)

	restored, err := f.engine.Restore("g.txt")
	require.NoError(t, err)
	require.Len(t, restored.Warnings, 1)
	assert.ErrorIs(t, restored.Warnings[0], types.ChecksumMismatch)
	assert.FileExists(t, src)
}

func TestRestoreStoredFileMissing(t *testing.T) {
	f := newFixture(t)
	res, err := f.engine.Trash(f.write(t, "h.txt", "h"), Request{})
	require.NoError(t, err)
	require.NoError(t, os.Remove(res.Entry.StoredPath))

	_, err = f.engine.Restore("h.txt")
	assert.ErrorIs(t, err, types.MoveFailed)
	assert.Len(t, f.engine.List(), 1)
}

func TestRestoreAll(t *testing.T) {
	f := newFixture(t)
	a := f.write(t, "a.txt", "a")
	b := f.write(t, "b.txt", "b")
	for _, p := range []string{a, b} {
		_, err := f.engine.Trash(p, Request{})
		require.NoError(t, err)
	}
	require.NoError(t, os.WriteFile(b, []byte("occupied"), 0o644))

	report := f.engine.RestoreAll()
	require.Len(t, report.Results, 2)
	failed := report.Failed()
	require.Len(t, failed, 1)
	assert.ErrorIs(t, failed[0].Err, types.DestinationOccupied)
	assert.FileExists(t, a)

	entries := f.reloaded(t)
	require.Len(t, entries, 1)
	assert.Equal(t, "b.txt", entries[0].Name())
}

func TestSweepIdempotent(t *testing.T) {
	f := newFixture(t)
	for _, name := range []string{"a", "b", "c"} {
		_, err := f.engine.Trash(f.write(t, name, name), Request{Retention: Retain(time.Minute)})
		require.NoError(t, err)
	}
	f.clock.Advance(2 * time.Minute)

	first, err := f.engine.Sweep()
	require.NoError(t, err)
	assert.Len(t, first.Purged, 3)

	second, err := f.engine.Sweep()
	require.NoError(t, err)
	assert.Empty(t, second.Purged)
	assert.Empty(t, second.Failed)
}

func TestSweepRuleMatches(t *testing.T) {
	f := newFixture(t)
	limit := int64(3)
	res, err := f.engine.Trash(f.write(t, "big.bin", "0123456789"), Request{
		Retention: Retain(24 * time.Hour),
		Rule:      &rule.Rule{MaxSize: &limit},
	})
	require.NoError(t, err)
	require.NotNil(t, res.Entry.Rule)

	report, err := f.engine.Sweep()
	require.NoError(t, err)
	require.Len(t, report.Purged, 1)
	assert.Equal(t, "big.bin", report.Purged[0].Name())
}

func TestSweepSizeRuleCountsDirectoryContents(t *testing.T) {
	f := newFixture(t)
	limit := int64(64 << 10)
	f.write(t, "big/a.bin", strings.Repeat("x", 512<<10))
	f.write(t, "big/sub/b.bin", strings.Repeat("y", 512<<10))
	f.write(t, "small/c.bin", "tiny")

	big, err := f.engine.Trash(filepath.Join(f.work, "big"), Request{Rule: &rule.Rule{MaxSize: &limit}})
	require.NoError(t, err)
	assert.Equal(t, int64(1<<20), big.Entry.SizeBytes)
	_, err = f.engine.Trash(filepath.Join(f.work, "small"), Request{Rule: &rule.Rule{MaxSize: &limit}})
	require.NoError(t, err)

	report, err := f.engine.Sweep()
	require.NoError(t, err)
	require.Len(t, report.Purged, 1)
	assert.Equal(t, "big", report.Purged[0].Name())
	require.Len(t, report.Retained, 1)
	assert.Equal(t, "small", report.Retained[0].Name())
	assert.NoDirExists(t, big.Entry.StoredPath)
}

func TestSweepRuleUsesRecordedCreationTime(t *testing.T) {
	f := newFixture(t)
	maxAge := types.Duration(time.Hour)
	res, err := f.engine.Trash(f.write(t, "old.txt", "x"), Request{Rule: &rule.Rule{MaxAge: &maxAge}})
	require.NoError(t, err)

	// sizeOnlyStat reports no creation time; the snapshot from trash time is used.
	entries := f.store.Entries()
	entries[0].CreatedAt = f.clock.T.Add(-2 * time.Hour)
	f.store.Remove(res.Entry.StoredPath)
	require.NoError(t, f.store.Add(entries[0]))

	report, err := f.engine.Sweep()
	require.NoError(t, err)
	assert.Len(t, report.Purged, 1)
}

func TestSweepRuleWithoutCreationTimeFails(t *testing.T) {
	f := newFixture(t)
	maxAge := types.Duration(time.Hour)
	res, err := f.engine.Trash(f.write(t, "young.txt", "x"), Request{Rule: &rule.Rule{MaxAge: &maxAge}})
	require.NoError(t, err)
	require.True(t, res.Entry.CreatedAt.IsZero())

	report, err := f.engine.Sweep()
	require.NoError(t, err)
	require.Len(t, report.Failed, 1)
	assert.ErrorIs(t, report.Failed[0].Err, types.FilesystemError)
	assert.ErrorIs(t, report.Failed[0].Err, rule.ErrNoCreationTime)
	assert.Len(t, f.reloaded(t), 1, "entry is kept")
}

func TestForceCleanIsolatesFailures(t *testing.T) {
	f := newFixture(t)
	var stored []string
	for _, name := range []string{"a.txt", "b.txt", "c.txt"} {
		res, err := f.engine.Trash(f.write(t, name, name), Request{})
		require.NoError(t, err)
		stored = append(stored, res.Entry.StoredPath)
	}
	require.NoError(t, os.Remove(stored[1]))

	report, err := f.engine.ForceClean()
	require.NoError(t, err)
	assert.Len(t, report.Purged, 2)
	require.Len(t, report.Failed, 1)
	assert.ErrorIs(t, report.Failed[0].Err, types.NotFound)

	entries := f.reloaded(t)
	require.Len(t, entries, 1)
	assert.Equal(t, stored[1], entries[0].StoredPath)
}

func TestSweepPersistenceFailure(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.Trash(f.write(t, "a.txt", "a"), Request{Retention: Retain(time.Second)})
	require.NoError(t, err)
	require.NoError(t, os.Remove(f.meta))
	require.NoError(t, os.Mkdir(f.meta, 0o755))
	f.clock.Advance(time.Second)

	report, err := f.engine.Sweep()
	assert.ErrorIs(t, err, types.PersistenceFailed)
	assert.Len(t, report.Purged, 1)
}

func TestEngineRecordsHistory(t *testing.T) {
	journal, err := history.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = journal.Close() })

	f := newFixture(t, WithRecorder(journal))
	_, err = f.engine.Trash(f.write(t, "a.txt", "a"), Request{Retention: Retain(time.Minute)})
	require.NoError(t, err)
	_, err = f.engine.Trash(f.write(t, "b.txt", "b"), Request{})
	require.NoError(t, err)
	_, err = f.engine.Restore("b.txt")
	require.NoError(t, err)
	f.clock.Advance(time.Minute)
	_, err = f.engine.Sweep()
	require.NoError(t, err)

	events, err := journal.List(0)
	require.NoError(t, err)
	var ops []history.Op
	for _, ev := range events {
		ops = append(ops, ev.Op)
	}
	assert.ElementsMatch(t, []history.Op{history.OpTrash, history.OpTrash, history.OpRestore, history.OpPurge}, ops)
}

func TestReconcile(t *testing.T) {
	f := newFixture(t)
	kept, err := f.engine.Trash(f.write(t, "kept.txt", "k"), Request{})
	require.NoError(t, err)
	lost, err := f.engine.Trash(f.write(t, "lost.txt", "l"), Request{})
	require.NoError(t, err)
	require.NoError(t, os.Remove(lost.Entry.StoredPath))

	stray := filepath.Join(f.engine.StorageDir(), "stray.txt")
	require.NoError(t, os.WriteFile(stray, []byte("?"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(f.engine.StorageDir(), "straydir", "inner"), 0o755))

	inc, err := f.engine.Reconcile(context.Background())
	require.NoError(t, err)
	assert.False(t, inc.Empty())
	assert.Equal(t, []string{stray, filepath.Join(f.engine.StorageDir(), "straydir")}, inc.Untracked)
	require.Len(t, inc.Missing, 1)
	assert.Equal(t, lost.Entry.StoredPath, inc.Missing[0].StoredPath)
	assert.FileExists(t, kept.Entry.StoredPath)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = f.engine.Reconcile(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestForgetMissing(t *testing.T) {
	journal, err := history.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = journal.Close() })

	f := newFixture(t, WithRecorder(journal))
	kept, err := f.engine.Trash(f.write(t, "kept.txt", "k"), Request{Retention: Retain(time.Hour)})
	require.NoError(t, err)
	lost, err := f.engine.Trash(f.write(t, "lost.txt", "l"), Request{Retention: Retain(0)})
	require.NoError(t, err)
	require.NoError(t, os.Remove(lost.Entry.StoredPath))

	// An expired entry with no file fails every sweep until it is forgotten.
	report, err := f.engine.Sweep()
	require.NoError(t, err)
	require.Len(t, report.Failed, 1)
	assert.ErrorIs(t, report.Failed[0].Err, types.NotFound)

	dropped, err := f.engine.Forget([]store.Entry{kept.Entry, lost.Entry})
	require.NoError(t, err)
	require.Len(t, dropped, 1)
	assert.Equal(t, lost.Entry.StoredPath, dropped[0].StoredPath)
	entries := f.reloaded(t)
	require.Len(t, entries, 1)
	assert.Equal(t, kept.Entry.StoredPath, entries[0].StoredPath)

	report, err = f.engine.Sweep()
	require.NoError(t, err)
	assert.Empty(t, report.Failed)
	assert.Len(t, report.Retained, 1)

	events, err := journal.List(0, history.OpForget)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, lost.Entry.OriginalPath, events[0].OriginalPath)
}
