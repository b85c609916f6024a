package trash

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/charlievieth/fastwalk"

	"github.com/jamesainslie/srm/pkg/srm/history"
	"github.com/jamesainslie/srm/pkg/srm/store"
	"github.com/jamesainslie/srm/pkg/srm/types"
)

// Inconsistencies lists disagreements between the storage directory and
// the metadata store.
type Inconsistencies struct {
	// Untracked are files in storage with no entry.
	Untracked []string

	// Missing are entries whose stored file is gone.
	Missing []store.Entry
}

// Empty reports whether storage and store agree.
func (i Inconsistencies) Empty() bool {
	return len(i.Untracked) == 0 && len(i.Missing) == 0
}

// Reconcile compares the top level of the storage directory with the
// tracked entries. It only reports; nothing is moved or deleted.
func (e *Engine) Reconcile(ctx context.Context) (Inconsistencies, error) {
	var (
		mu      sync.Mutex
		present = make(map[string]struct{})
	)

	conf := fastwalk.Config{Follow: false}
	err := fastwalk.Walk(&conf, e.dir, func(path string, d os.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if path == e.dir {
				return err
			}
			return nil
		}
		if path == e.dir {
			return nil
		}
		if filepath.Dir(path) != e.dir {
			return nil
		}

		mu.Lock()
		present[path] = struct{}{}
		mu.Unlock()

		if d.IsDir() {
			return filepath.SkipDir
		}
		return nil
	})
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Inconsistencies{}, ctxErr
	}
	if err != nil {
		return Inconsistencies{}, types.E(types.FilesystemError, "reconcile", e.dir, err)
	}

	var out Inconsistencies
	tracked := make(map[string]struct{})
	for _, entry := range e.store.Entries() {
		tracked[entry.StoredPath] = struct{}{}
		if _, ok := present[entry.StoredPath]; !ok {
			out.Missing = append(out.Missing, entry)
		}
	}
	for path := range present {
		if path == e.store.Path() {
			continue
		}
		if _, ok := tracked[path]; !ok {
			out.Untracked = append(out.Untracked, path)
		}
	}
	slices.Sort(out.Untracked)

	for _, p := range out.Untracked {
		e.log.Warn("untracked file in storage", "path", p)
	}
	for _, m := range out.Missing {
		e.log.Warn("tracked file missing from storage", "stored", m.StoredPath, "original", m.OriginalPath)
	}
	return out, nil
}

// Forget drops the entries whose stored file is gone and saves the store
// once. Entries whose file is still present are left alone.
func (e *Engine) Forget(entries []store.Entry) ([]store.Entry, error) {
	var dropped []store.Entry
	for _, entry := range entries {
		if _, err := os.Lstat(entry.StoredPath); !errors.Is(err, os.ErrNotExist) {
			continue
		}
		if e.store.Remove(entry.StoredPath) {
			dropped = append(dropped, entry)
		}
	}
	if len(dropped) == 0 {
		return nil, nil
	}
	if err := e.persist("forget", e.dir); err != nil {
		for _, entry := range dropped {
			_ = e.store.Add(entry)
		}
		return nil, err
	}
	for _, entry := range dropped {
		e.log.Info("forgot missing entry", "stored", entry.StoredPath, "original", entry.OriginalPath)
		e.record(eventFor(history.OpForget, entry))
	}
	return dropped, nil
}
