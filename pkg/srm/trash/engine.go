// Package trash moves files into safe storage, restores them and purges
// them once their retention has run out. The metadata store is kept in
// step with the storage directory after every mutating step.
package trash

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jamesainslie/srm/pkg/srm/history"
	"github.com/jamesainslie/srm/pkg/srm/logging"
	"github.com/jamesainslie/srm/pkg/srm/rule"
	"github.com/jamesainslie/srm/pkg/srm/store"
	"github.com/jamesainslie/srm/pkg/srm/types"
)

// Recorder receives an event for every completed operation.
// *history.Journal satisfies it.
type Recorder interface {
	Record(ev history.Event) (history.Event, error)
}

// Engine owns the storage directory and the metadata store for one invocation.
type Engine struct {
	store     *store.Store
	dir       string
	retention time.Duration
	clock     types.Clock
	stat      rule.StatFunc
	recorder  Recorder
	log       *logging.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the time source.
func WithClock(c types.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithDefaultRetention sets the retention used when a request carries none.
// Zero is honoured; negative values keep the built-in 7 days.
func WithDefaultRetention(d time.Duration) Option {
	return func(e *Engine) {
		if d >= 0 {
			e.retention = d
		}
	}
}

// WithStatFunc replaces rule.Stat for reading live file metadata.
func WithStatFunc(f rule.StatFunc) Option {
	return func(e *Engine) { e.stat = f }
}

// WithRecorder journals every operation to r.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// New returns an Engine that stores files flat inside storageDir,
// creating it if needed.
func New(st *store.Store, storageDir string, opts ...Option) (*Engine, error) {
	if st == nil {
		return nil, types.E(types.InvalidArgument, "new engine", "", fmt.Errorf("store is required"))
	}
	if storageDir == "" {
		return nil, types.E(types.InvalidArgument, "new engine", "", fmt.Errorf("storage directory is required"))
	}
	dir, err := filepath.Abs(storageDir)
	if err != nil {
		return nil, types.E(types.FilesystemError, "new engine", storageDir, err)
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, types.E(types.FilesystemError, "new engine", dir, err)
	}

	e := &Engine{
		store:     st,
		dir:       dir,
		retention: types.DefaultRetention,
		clock:     types.SystemClock{},
		stat:      rule.Stat,
		log:       logging.Get("engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// StorageDir returns the absolute safe-storage directory.
func (e *Engine) StorageDir() string {
	return e.dir
}

// DefaultRetention returns the retention applied when a request has none.
func (e *Engine) DefaultRetention() time.Duration {
	return e.retention
}

// List returns the tracked entries in insertion order.
func (e *Engine) List() []store.Entry {
	return e.store.Entries()
}

// persist saves the store, mapping failures to PersistenceFailed for op.
func (e *Engine) persist(op, path string) error {
	if err := e.store.Save(); err != nil {
		return types.E(types.PersistenceFailed, op, path, err)
	}
	return nil
}

func (e *Engine) record(ev history.Event) {
	if e.recorder == nil {
		return
	}
	if _, err := e.recorder.Record(ev); err != nil {
		e.log.Warn("history record failed", "op", ev.Op, "path", ev.StoredPath, "error", err)
	}
}

func eventFor(op history.Op, entry store.Entry) history.Event {
	return history.Event{
		Op:           op,
		OriginalPath: entry.OriginalPath,
		StoredPath:   entry.StoredPath,
		Size:         entry.SizeBytes,
		Checksum:     entry.Checksum,
	}
}
