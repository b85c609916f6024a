// Package session assembles the metadata store, history journal and
// engine for one srm command or one srmd sweep.
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/jamesainslie/srm/pkg/srm/config"
	"github.com/jamesainslie/srm/pkg/srm/history"
	"github.com/jamesainslie/srm/pkg/srm/logging"
	"github.com/jamesainslie/srm/pkg/srm/store"
	"github.com/jamesainslie/srm/pkg/srm/trash"
	"github.com/jamesainslie/srm/pkg/srm/types"
)

// ErrHistoryDisabled is returned by History when the journal is off or
// could not be opened.
var ErrHistoryDisabled = errors.New("history is not available")

// Session is the per-invocation wiring of the engine.
type Session struct {
	Engine  *trash.Engine
	Store   *store.Store
	journal *history.Journal
	cfg     *config.Config
}

// Open loads the metadata store and opens the journal. A journal that
// cannot be opened (srmd holding it, for example) only disables history.
func Open(cfg *config.Config, opts ...trash.Option) (*Session, error) {
	retention, err := cfg.DefaultRetention()
	if err != nil {
		return nil, types.E(types.InvalidArgument, "open session", "retention.default", err)
	}

	st, err := store.Open(cfg.Storage.Metadata)
	if err != nil {
		return nil, err
	}

	s := &Session{Store: st, cfg: cfg}
	log := logging.Get("engine")
	if cfg.History.Enabled {
		j, err := history.Open(cfg.History.Path)
		if err != nil {
			log.Warn("history unavailable", "path", cfg.History.Path, "error", err)
		} else {
			s.journal = j
		}
	}

	base := []trash.Option{trash.WithDefaultRetention(retention)}
	if s.journal != nil {
		base = append(base, trash.WithRecorder(s.journal))
	}
	eng, err := trash.New(st, cfg.Storage.Dir, append(base, opts...)...)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	s.Engine = eng
	return s, nil
}

// History returns the open journal.
func (s *Session) History() (*history.Journal, error) {
	if s.journal == nil {
		return nil, ErrHistoryDisabled
	}
	return s.journal, nil
}

// PruneHistory drops journal events older than history.retention_days.
// It is a no-op when history is unavailable or retention is zero.
func (s *Session) PruneHistory(now time.Time) (int, error) {
	if s.journal == nil || s.cfg.History.RetentionDays == 0 {
		return 0, nil
	}
	cutoff := now.Add(-time.Duration(s.cfg.History.RetentionDays) * types.Day)
	n, err := s.journal.Cleanup(cutoff)
	if err != nil {
		return n, fmt.Errorf("prune history: %w", err)
	}
	return n, nil
}

// Close releases the journal.
func (s *Session) Close() error {
	if s.journal == nil {
		return nil
	}
	err := s.journal.Close()
	s.journal = nil
	return err
}
