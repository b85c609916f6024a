package trash

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/jamesainslie/srm/pkg/srm/history"
	"github.com/jamesainslie/srm/pkg/srm/types"
)

// Restore moves the stored file named name back to its original path.
// It never overwrites: an occupied original path is DestinationOccupied.
// A checksum mismatch is reported as a warning and the restore proceeds.
func (e *Engine) Restore(name string) (Result, error) {
	res := Result{Path: name}
	entry, ok := e.store.Find(name)
	if !ok {
		res.Err = types.E(types.NotFound, "restore", name, nil)
		return res, res.Err
	}
	res.Entry = entry

	if err := os.MkdirAll(filepath.Dir(entry.OriginalPath), 0o755); err != nil {
		res.Err = types.E(types.FilesystemError, "restore", filepath.Dir(entry.OriginalPath), err)
		return res, res.Err
	}

	if _, err := os.Lstat(entry.OriginalPath); err == nil {
		res.Err = types.E(types.DestinationOccupied, "restore", entry.OriginalPath, nil)
		return res, res.Err
	} else if !errors.Is(err, os.ErrNotExist) {
		res.Err = types.E(types.FilesystemError, "restore", entry.OriginalPath, err)
		return res, res.Err
	}

	if _, err := os.Lstat(entry.StoredPath); err != nil {
		res.Err = types.E(types.MoveFailed, "restore", entry.StoredPath, err)
		return res, res.Err
	}
	if err := verify(entry); err != nil {
		res.Warnings = append(res.Warnings, err)
		e.log.Warn("restoring file that failed verification", "stored", entry.StoredPath, "error", err)
	}

	if err := renameNoReplace(entry.StoredPath, entry.OriginalPath); err != nil {
		kind := types.MoveFailed
		if errors.Is(err, os.ErrExist) {
			kind = types.DestinationOccupied
		}
		res.Err = types.E(kind, "restore", entry.OriginalPath, err)
		return res, res.Err
	}
	res.Moved = true

	e.store.Remove(entry.StoredPath)
	if err := e.persist("restore", entry.OriginalPath); err != nil {
		res.Err = err
		e.log.Error("file restored but metadata still lists it", "original", entry.OriginalPath, "error", err)
		return res, err
	}

	e.log.Info("restored", "stored", entry.StoredPath, "original", entry.OriginalPath)
	ev := eventFor(history.OpRestore, entry)
	for _, w := range res.Warnings {
		ev.Warning = w.Error()
	}
	e.record(ev)
	return res, nil
}

// RestoreAll restores every tracked entry independently.
func (e *Engine) RestoreAll() BatchReport {
	entries := e.store.Entries()
	report := BatchReport{Results: make([]Result, 0, len(entries))}
	for _, entry := range entries {
		res, _ := e.Restore(entry.Name())
		report.Results = append(report.Results, res)
	}
	return report
}
