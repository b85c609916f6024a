// Package sweeper drives periodic sweeps. One loop owns every sweep:
// timer ticks, metadata changes and explicit triggers are all queued
// through it, so sweeps never overlap, and cancellation is only observed
// between sweeps.
package sweeper

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/jamesainslie/srm/pkg/srm/logging"
	"github.com/jamesainslie/srm/pkg/srm/trash"
	"github.com/jamesainslie/srm/pkg/srm/types"
)

// ErrNotRunning is returned by Trigger when the loop has stopped.
var ErrNotRunning = errors.New("sweeper is not running")

// SweepFunc performs one complete sweep, including persistence.
type SweepFunc func(ctx context.Context) (trash.SweepReport, error)

// Config configures a Sweeper.
type Config struct {
	// Interval between sweeps. Zero uses DefaultInterval.
	Interval time.Duration

	// Schedule is an optional cron expression that replaces Interval.
	Schedule string

	// WatchPath is the metadata file; when set, changes made by other
	// processes wake the loop early.
	WatchPath string

	// Debounce coalesces bursts of metadata changes. Zero uses one second.
	Debounce time.Duration

	// MetricsPath, when set, receives a Prometheus textfile after every sweep.
	MetricsPath string
}

// Status is a snapshot of the loop's progress.
type Status struct {
	RunID        string
	Running      bool
	Iterations   int64
	LastRun      time.Time
	LastElapsed  time.Duration
	LastPurged   int
	LastFailed   int
	LastError    string
	NextRun      time.Time
	Tracked      int
	TrackedBytes int64
}

type outcome struct {
	report trash.SweepReport
	err    error
}

// Sweeper runs a SweepFunc on a schedule.
type Sweeper struct {
	sweep       SweepFunc
	schedule    cron.Schedule
	watchPath   string
	debounce    time.Duration
	metricsPath string
	metrics     *Metrics
	clock       types.Clock
	log         *logging.Logger

	triggers chan chan outcome
	done     chan struct{}

	mu      sync.Mutex
	started bool
	status  Status
	seen    fingerprint
}

// Option configures a Sweeper.
type Option func(*Sweeper)

// WithClock sets the clock used to compute the next scheduled run.
func WithClock(c types.Clock) Option {
	return func(s *Sweeper) { s.clock = c }
}

// WithMetrics records every sweep in m.
func WithMetrics(m *Metrics) Option {
	return func(s *Sweeper) { s.metrics = m }
}

// New validates cfg and returns a stopped Sweeper.
func New(fn SweepFunc, cfg Config, opts ...Option) (*Sweeper, error) {
	if fn == nil {
		return nil, types.E(types.InvalidArgument, "new sweeper", "", fmt.Errorf("sweep function is required"))
	}
	if cfg.Interval < 0 {
		return nil, types.E(types.InvalidArgument, "new sweeper", "", types.ErrNegativeValue)
	}
	sched, err := ParseSchedule(cfg.Schedule, cfg.Interval)
	if err != nil {
		return nil, types.E(types.InvalidArgument, "new sweeper", "", err)
	}

	s := &Sweeper{
		sweep:       fn,
		schedule:    sched,
		debounce:    cfg.Debounce,
		metricsPath: cfg.MetricsPath,
		clock:       types.SystemClock{},
		log:         logging.Get("sweeper"),
		triggers:    make(chan chan outcome),
		done:        make(chan struct{}),
		status:      Status{RunID: uuid.NewString()},
	}
	if cfg.WatchPath != "" {
		s.watchPath = filepath.Clean(cfg.WatchPath)
	}
	if s.debounce <= 0 {
		s.debounce = time.Second
	}
	if s.metricsPath != "" && s.metrics == nil {
		s.metrics = NewMetrics()
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Run sweeps immediately and then whenever the schedule fires, the
// metadata file changes, or Trigger is called, until ctx is cancelled.
// A sweep in progress always completes before Run returns. Run may be
// called only once per Sweeper.
func (s *Sweeper) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("sweeper already started")
	}
	s.started = true
	s.status.Running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.status.Running = false
		s.mu.Unlock()
		close(s.done)
	}()

	wake := make(chan struct{}, 1)
	if s.watchPath != "" {
		if err := s.watchFile(ctx, s.watchPath, wake); err != nil {
			s.log.Warn("metadata watch disabled", "path", s.watchPath, "error", err)
		}
	}

	s.log.Info("sweeper started", "run", s.status.RunID)
	if ctx.Err() == nil {
		s.runOnce(ctx, "startup")
	}

	for {
		// Cancellation wins over any wake source that is ready with it.
		if ctx.Err() != nil {
			s.log.Info("sweeper stopped", "run", s.status.RunID, "iterations", s.Status().Iterations)
			return nil
		}

		next := s.schedule.Next(s.clock.Now())
		s.mu.Lock()
		s.status.NextRun = next
		s.mu.Unlock()

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()

		case <-timer.C:
			if ctx.Err() == nil {
				s.runOnce(ctx, "schedule")
			}

		case reply := <-s.triggers:
			timer.Stop()
			if ctx.Err() != nil {
				reply <- outcome{err: ErrNotRunning}
				continue
			}
			reply <- s.runOnce(ctx, "trigger")

		case <-wake:
			timer.Stop()
			if ctx.Err() != nil || fingerprintOf(s.watchPath) == s.lastSeen() {
				continue
			}
			s.runOnce(ctx, "metadata changed")
		}
	}
}

// Trigger asks the loop to sweep now and waits for the result. It fails
// with ErrNotRunning once Run has returned.
func (s *Sweeper) Trigger(ctx context.Context) (trash.SweepReport, error) {
	reply := make(chan outcome, 1)
	select {
	case s.triggers <- reply:
	case <-s.done:
		return trash.SweepReport{}, ErrNotRunning
	case <-ctx.Done():
		return trash.SweepReport{}, ctx.Err()
	}

	select {
	case out := <-reply:
		return out.report, out.err
	case <-ctx.Done():
		return trash.SweepReport{}, ctx.Err()
	}
}

// Done is closed when Run returns.
func (s *Sweeper) Done() <-chan struct{} {
	return s.done
}

// Status returns a snapshot of the loop state.
func (s *Sweeper) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Sweeper) lastSeen() fingerprint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seen
}

func (s *Sweeper) runOnce(ctx context.Context, reason string) outcome {
	report, err := s.sweep(context.WithoutCancel(ctx))
	if report.Started.IsZero() {
		report.Started = s.clock.Now()
	}

	tracked, trackedBytes := trackedAfter(report)
	s.mu.Lock()
	s.status.Iterations++
	s.status.LastRun = report.Started
	s.status.LastElapsed = report.Elapsed
	s.status.LastPurged = len(report.Purged)
	s.status.LastFailed = len(report.Failed)
	s.status.LastError = ""
	if err != nil {
		s.status.LastError = err.Error()
	} else {
		s.status.Tracked = tracked
		s.status.TrackedBytes = trackedBytes
	}
	if s.watchPath != "" {
		s.seen = fingerprintOf(s.watchPath)
	}
	s.mu.Unlock()

	if err != nil {
		s.log.Error("sweep failed", "reason", reason, "error", err)
	} else {
		s.log.Info("sweep complete",
			"reason", reason,
			"purged", len(report.Purged),
			"freed", humanize.IBytes(uint64(report.PurgedBytes())),
			"retained", len(report.Retained),
			"failed", len(report.Failed),
			"elapsed", report.Elapsed,
		)
	}
	for _, f := range report.Failed {
		s.log.Warn("entry kept", "stored", f.Entry.StoredPath, "error", f.Err)
	}

	if s.metrics != nil {
		s.metrics.observe(report, err)
		if s.metricsPath != "" {
			if werr := s.metrics.WriteTextfile(s.metricsPath); werr != nil {
				s.log.Warn("metrics textfile write failed", "path", s.metricsPath, "error", werr)
			}
		}
	}
	return outcome{report: report, err: err}
}
