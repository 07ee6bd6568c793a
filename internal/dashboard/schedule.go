package dashboard

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// ParseSchedule parses a standard five-field cron expression. An empty
// expression yields a nil Schedule, which selects the hourly default.
func ParseSchedule(expr string) (cron.Schedule, error) {
	if expr == "" {
		return nil, nil
	}
	s, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("dashboard: refresh schedule %q: %w", expr, err)
	}
	return s, nil
}

// NextWake is how long to sleep after a cycle that finished at now.
//
// Without a schedule it is 60*(61-minute) seconds: the start of the next
// hour plus one minute, so the hourly forecast has rolled over.
func (d *Dashboard) NextWake(now time.Time) time.Duration {
	if d.Schedule != nil {
		if next := d.Schedule.Next(now); !next.IsZero() {
			return max(next.Sub(now), time.Second)
		}
	}
	return time.Duration(60*(61-now.Minute())) * time.Second
}
