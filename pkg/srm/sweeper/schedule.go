package sweeper

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultInterval is the pause between sweeps when nothing is configured.
const DefaultInterval = 300 * time.Second

// interval is a constant-delay cron.Schedule. Unlike cron.Every it keeps
// sub-second precision.
type interval time.Duration

func (i interval) Next(t time.Time) time.Time {
	return t.Add(time.Duration(i))
}

// ParseSchedule returns a schedule for a standard five-field cron
// expression or descriptor ("@hourly", "@every 10m"). An empty expression
// yields a fixed interval, DefaultInterval when every <= 0.
func ParseSchedule(expr string, every time.Duration) (cron.Schedule, error) {
	if strings.TrimSpace(expr) == "" {
		if every <= 0 {
			every = DefaultInterval
		}
		return interval(every), nil
	}
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", expr, err)
	}
	return sched, nil
}
