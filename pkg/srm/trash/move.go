package trash

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charlievieth/fastwalk"

	"github.com/jamesainslie/srm/pkg/srm/history"
	"github.com/jamesainslie/srm/pkg/srm/rule"
	"github.com/jamesainslie/srm/pkg/srm/store"
	"github.com/jamesainslie/srm/pkg/srm/types"
)

// collisionStamp is appended to the stem of a name already present in storage.
const collisionStamp = "20060102150405"

// Request carries per-call trash options.
type Request struct {
	// Retention overrides the engine default when set. Zero is a valid
	// retention: the entry expires at once.
	Retention *time.Duration

	// Rule is evaluated at sweep time in addition to the expiry.
	Rule *rule.Rule
}

// Retain returns d as a Request.Retention value.
func Retain(d time.Duration) *time.Duration {
	return &d
}

// Result describes the outcome for one path.
type Result struct {
	// Path is the path as the caller gave it.
	Path string

	// Entry is the tracked entry on success, or the entry that would have
	// been tracked when the move succeeded but persisting it failed.
	Entry store.Entry

	// Moved reports whether the file left its original location.
	Moved bool

	// Warnings are non-fatal problems, such as a checksum that could not
	// be computed or did not match.
	Warnings []error

	Err error
}

// BatchReport collects per-item results of a batch operation.
type BatchReport struct {
	Results []Result
}

// Failed returns the results that carry an error.
func (r BatchReport) Failed() []Result {
	var out []Result
	for _, res := range r.Results {
		if res.Err != nil {
			out = append(out, res)
		}
	}
	return out
}

// Trash moves path into safe storage and tracks it. If the move succeeds
// but the metadata cannot be written, the returned error is
// PersistenceFailed and Result.Moved is true.
func (e *Engine) Trash(path string, req Request) (Result, error) {
	res := Result{Path: path}
	if strings.TrimSpace(path) == "" {
		res.Err = types.E(types.InvalidArgument, "trash", path, fmt.Errorf("empty path"))
		return res, res.Err
	}
	if err := req.Rule.Validate(); err != nil {
		res.Err = err
		return res, err
	}

	src, err := filepath.Abs(path)
	if err != nil {
		res.Err = types.E(types.NotFound, "trash", path, err)
		return res, res.Err
	}
	info, err := os.Lstat(src)
	if err != nil {
		kind := types.FilesystemError
		if errors.Is(err, os.ErrNotExist) {
			kind = types.NotFound
		}
		res.Err = types.E(kind, "trash", src, err)
		return res, res.Err
	}
	if err := e.checkSource(src); err != nil {
		res.Err = err
		return res, err
	}

	now := e.clock.Now()
	entry := store.Entry{
		OriginalPath: src,
		TrashedAt:    now.UTC(),
		ExpiresAt:    now.Add(e.retentionFor(req)).UTC(),
		SizeBytes:    info.Size(),
		IsDir:        info.IsDir(),
	}
	if !req.Rule.IsZero() {
		entry.Rule = req.Rule
	}
	if entry.IsDir {
		entry.SizeBytes = dirSize(src)
	}
	if st, err := e.stat(src); err != nil {
		res.Warnings = append(res.Warnings, err)
	} else if st.HasCreatedAt {
		entry.CreatedAt = st.CreatedAt.UTC()
	}

	dest, err := e.moveIn(src, now)
	if err != nil {
		res.Err = err
		return res, err
	}
	entry.StoredPath = dest
	res.Moved = true

	if entry.IsDir {
		res.Warnings = append(res.Warnings, fmt.Errorf("checksum skipped for directory %s", src))
	} else if sum, err := checksumFile(dest); err != nil {
		res.Warnings = append(res.Warnings, types.E(types.FilesystemError, "checksum", dest, err))
	} else {
		entry.Checksum = sum
	}
	res.Entry = entry

	if err := e.store.Add(entry); err != nil {
		res.Err = types.E(types.PersistenceFailed, "trash", dest, err)
		return res, res.Err
	}
	if err := e.persist("trash", dest); err != nil {
		e.store.Remove(dest)
		res.Err = err
		e.log.Error("file moved but not tracked", "original", src, "stored", dest, "error", err)
		return res, err
	}

	for _, w := range res.Warnings {
		e.log.Warn("trash warning", "path", src, "warning", w)
	}
	e.log.Info("trashed", "original", src, "stored", dest, "expires", entry.ExpiresAt.Format(time.RFC3339))
	e.record(eventFor(history.OpTrash, entry))
	return res, nil
}

// TrashBatch trashes every path independently. Successful items are
// persisted even when others fail.
func (e *Engine) TrashBatch(paths []string, req Request) BatchReport {
	report := BatchReport{Results: make([]Result, 0, len(paths))}
	for _, p := range paths {
		res, _ := e.Trash(p, req)
		report.Results = append(report.Results, res)
	}
	return report
}

func (e *Engine) retentionFor(req Request) time.Duration {
	if req.Retention != nil {
		return *req.Retention
	}
	return e.retention
}

// moveIn renames src to a free name in storage. A name taken between
// choosing it and the rename is chosen again.
func (e *Engine) moveIn(src string, now time.Time) (string, error) {
	for {
		dest, err := e.destination(filepath.Base(src), now)
		if err != nil {
			return "", err
		}
		err = renameNoReplace(src, dest)
		if err == nil {
			return dest, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return "", types.E(types.MoveFailed, "trash", src, err)
		}
	}
}

// checkSource refuses to trash the storage directory, anything inside it,
// or any directory that contains it.
func (e *Engine) checkSource(src string) error {
	if src == filepath.Dir(src) {
		return types.E(types.InvalidArgument, "trash", src, fmt.Errorf("refusing to trash the filesystem root"))
	}
	rel, err := filepath.Rel(src, e.dir)
	if err == nil && (rel == "." || !strings.HasPrefix(rel, "..")) {
		return types.E(types.InvalidArgument, "trash", src, fmt.Errorf("path contains the trash directory"))
	}
	rel, err = filepath.Rel(e.dir, src)
	if err == nil && !strings.HasPrefix(rel, "..") {
		return types.E(types.InvalidArgument, "trash", src, fmt.Errorf("path is already in the trash"))
	}
	return nil
}

// destination picks a free name in storage. A taken name gets the trash
// time appended to its stem (report.txt -> report_20240101120000.txt);
// within the same second a counter follows.
func (e *Engine) destination(base string, now time.Time) (string, error) {
	candidate := filepath.Join(e.dir, base)
	free, err := e.available(candidate)
	if err != nil || free {
		return candidate, err
	}

	stem, ext := splitName(base)
	stamped := stem + "_" + now.Format(collisionStamp)
	for i := 0; ; i++ {
		name := stamped
		if i > 0 {
			name += "_" + strconv.Itoa(i)
		}
		candidate = filepath.Join(e.dir, name+ext)
		free, err := e.available(candidate)
		if err != nil || free {
			return candidate, err
		}
	}
}

func (e *Engine) available(path string) (bool, error) {
	if e.store.Contains(path) {
		return false, nil
	}
	_, err := os.Lstat(path)
	if errors.Is(err, os.ErrNotExist) {
		return true, nil
	}
	if err != nil {
		return false, types.E(types.FilesystemError, "trash", path, err)
	}
	return false, nil
}

// splitName separates the extension, treating dotfiles such as ".bashrc"
// as having none.
func splitName(base string) (stem, ext string) {
	ext = filepath.Ext(base)
	stem = strings.TrimSuffix(base, ext)
	if stem == "" || strings.Trim(stem, ".") == "" {
		return base, ""
	}
	return stem, ext
}

// dirSize sums regular file sizes below root. Unreadable entries are skipped.
func dirSize(root string) int64 {
	var total atomic.Int64
	conf := fastwalk.Config{Follow: false}
	_ = fastwalk.Walk(&conf, root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.Type().IsRegular() {
			if info, err := d.Info(); err == nil {
				total.Add(info.Size())
			}
		}
		return nil
	})
	return total.Load()
}
