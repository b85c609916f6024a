package trash

import (
	"errors"
	"os"
	"time"

	"github.com/jamesainslie/srm/pkg/srm/history"
	"github.com/jamesainslie/srm/pkg/srm/rule"
	"github.com/jamesainslie/srm/pkg/srm/store"
	"github.com/jamesainslie/srm/pkg/srm/types"
)

// Failure pairs an entry kept in the store with the reason it was not purged.
type Failure struct {
	Entry store.Entry
	Err   error
}

// SweepReport is the outcome of one Sweep or ForceClean call.
type SweepReport struct {
	Started  time.Time
	Elapsed  time.Duration
	Purged   []store.Entry
	Retained []store.Entry
	Failed   []Failure
}

// PurgedBytes sums the recorded size of purged entries.
func (r SweepReport) PurgedBytes() int64 {
	var n int64
	for _, e := range r.Purged {
		n += e.SizeBytes
	}
	return n
}

// Sweep purges every entry whose expiry has passed or whose rule matches
// the stored file's current metadata. Entries that cannot be evaluated or
// deleted stay tracked and are listed in Failed. The store is written
// once, after all entries are processed.
func (e *Engine) Sweep() (SweepReport, error) {
	return e.purgeWhere(history.OpPurge, e.eligible)
}

// ForceClean purges every tracked entry regardless of eligibility.
func (e *Engine) ForceClean() (SweepReport, error) {
	return e.purgeWhere(history.OpForcePurge, func(store.Entry, time.Time) (bool, error) {
		return true, nil
	})
}

func (e *Engine) purgeWhere(op history.Op, match func(store.Entry, time.Time) (bool, error)) (SweepReport, error) {
	now := e.clock.Now()
	report := SweepReport{Started: now}

	for _, entry := range e.store.Entries() {
		ok, err := match(entry, now)
		if err != nil {
			report.Failed = append(report.Failed, Failure{Entry: entry, Err: err})
			e.log.Warn("cannot evaluate retention", "stored", entry.StoredPath, "error", err)
			continue
		}
		if !ok {
			report.Retained = append(report.Retained, entry)
			continue
		}

		if err := purge(entry); err != nil {
			report.Failed = append(report.Failed, Failure{Entry: entry, Err: err})
			e.log.Warn("purge failed", "stored", entry.StoredPath, "error", err)
			ev := eventFor(history.OpPurgeFailed, entry)
			ev.Error = err.Error()
			e.record(ev)
			continue
		}
		e.store.Remove(entry.StoredPath)
		report.Purged = append(report.Purged, entry)
		e.log.Info("purged", "stored", entry.StoredPath, "original", entry.OriginalPath)
		e.record(eventFor(op, entry))
	}

	err := e.persist("sweep", e.store.Path())
	report.Elapsed = e.clock.Now().Sub(now)
	return report, err
}

// eligible is true once the expiry has passed, or when the entry's rule
// matches the stored file. Rule evaluation errors are returned, not
// treated as either outcome.
func (e *Engine) eligible(entry store.Entry, now time.Time) (bool, error) {
	if entry.Expired(now) {
		return true, nil
	}
	if entry.Rule.IsZero() {
		return false, nil
	}

	st, err := e.stat(entry.StoredPath)
	if err != nil {
		return false, err
	}
	if entry.IsDir {
		st.Size = dirSize(entry.StoredPath)
	}
	if !st.HasCreatedAt && !entry.CreatedAt.IsZero() {
		st.CreatedAt = entry.CreatedAt
		st.HasCreatedAt = true
	}
	ok, err := entry.Rule.Eligible(st, now)
	if errors.Is(err, rule.ErrNoCreationTime) {
		return false, types.E(types.FilesystemError, "evaluate rule", entry.StoredPath, rule.ErrNoCreationTime)
	}
	return ok, err
}

func purge(entry store.Entry) error {
	info, err := os.Lstat(entry.StoredPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return types.E(types.NotFound, "purge", entry.StoredPath, err)
		}
		return types.E(types.FilesystemError, "purge", entry.StoredPath, err)
	}
	if info.IsDir() {
		err = os.RemoveAll(entry.StoredPath)
	} else {
		err = os.Remove(entry.StoredPath)
	}
	if err != nil {
		return types.E(types.FilesystemError, "purge", entry.StoredPath, err)
	}
	return nil
}
