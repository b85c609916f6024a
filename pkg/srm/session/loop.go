package session

import (
	"context"
	"time"

	"github.com/jamesainslie/srm/pkg/srm/config"
	"github.com/jamesainslie/srm/pkg/srm/logging"
	"github.com/jamesainslie/srm/pkg/srm/sweeper"
	"github.com/jamesainslie/srm/pkg/srm/trash"
	"github.com/jamesainslie/srm/pkg/srm/types"
)

// SweepFunc returns a sweeper.SweepFunc that opens a fresh session for
// every sweep, so metadata written by srm between sweeps is always seen
// and the journal lock is only held while sweeping.
func SweepFunc(cfg *config.Config, clock types.Clock) sweeper.SweepFunc {
	log := logging.Get("sweeper")
	return func(context.Context) (trash.SweepReport, error) {
		s, err := Open(cfg, trash.WithClock(clock))
		if err != nil {
			return trash.SweepReport{}, err
		}
		defer s.Close()

		report, err := s.Engine.Sweep()
		if err != nil {
			return report, err
		}
		if n, err := s.PruneHistory(clock.Now()); err != nil {
			log.Warn("history prune failed", "error", err)
		} else if n > 0 {
			log.Debug("history pruned", "events", n)
		}
		return report, nil
	}
}

// SweeperConfig maps the sweeper section onto sweeper.Config.
func SweeperConfig(cfg *config.Config) (sweeper.Config, error) {
	every, err := cfg.SweepInterval()
	if err != nil {
		return sweeper.Config{}, types.E(types.InvalidArgument, "sweeper config", "sweeper.interval", err)
	}
	sc := sweeper.Config{
		Interval:    every,
		Schedule:    cfg.Sweeper.Schedule,
		Debounce:    time.Second,
		MetricsPath: cfg.Sweeper.MetricsPath,
	}
	if cfg.Sweeper.Watch {
		sc.WatchPath = cfg.Storage.Metadata
	}
	return sc, nil
}
