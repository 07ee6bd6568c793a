// Package clock provides the logical wall clock: a monotonic second counter
// plus a correction offset fed by the time-sync task.
//
// Before the first Sync the offset is 0 and Now reports boot-relative time
// (1970-01-01 plus uptime). Callers must not trust Now until Synced.
package clock

import (
	"fmt"
	"math"
	"os"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
)

// Monotonic reports whole seconds elapsed on a counter that never goes
// backwards.
type Monotonic interface {
	Seconds() int64
}

// Uptime counts seconds since it was created, using the monotonic reading
// of the wrapped clock.
type Uptime struct {
	clk   clockwork.Clock
	start time.Time
}

// NewUptime starts an uptime counter on clk. A nil clk uses the real clock.
func NewUptime(clk clockwork.Clock) *Uptime {
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	return &Uptime{clk: clk, start: clk.Now()}
}

func (u *Uptime) Seconds() int64 {
	return int64(u.clk.Since(u.start) / time.Second)
}

// Clock is safe for concurrent use: a single writer (the sync task) stores
// the offset atomically, any number of readers load it.
type Clock struct {
	loc    *time.Location
	mono   Monotonic
	offset atomic.Int64
	synced atomic.Bool
}

// New creates a Clock with offset 0.
func New(loc *time.Location, mono Monotonic) *Clock {
	if loc == nil {
		loc = time.UTC
	}
	return &Clock{loc: loc, mono: mono}
}

// Sync sets the offset so that Now reports epochSeconds at this instant.
// A time source behind the monotonic counter clamps the offset to 0.
func (c *Clock) Sync(epochSeconds int64) {
	offset := epochSeconds - c.mono.Seconds()
	if offset < 0 {
		offset = 0
	}
	c.offset.Store(offset)
	c.synced.Store(true)
}

// Now returns the current wall-clock instant in the configured zone.
func (c *Clock) Now() time.Time {
	mono := c.mono.Seconds()
	offset := c.offset.Load()
	if mono > math.MaxInt64-offset {
		panic(fmt.Sprintf("clock: instant out of range (monotonic=%d offset=%d)", mono, offset))
	}
	return time.Unix(mono+offset, 0).In(c.loc)
}

// Offset returns the current correction in seconds.
func (c *Clock) Offset() int64 { return c.offset.Load() }

// Synced reports whether Sync has been called at least once.
func (c *Clock) Synced() bool { return c.synced.Load() }

// Location returns the configured display zone.
func (c *Clock) Location() *time.Location { return c.loc }

// LoadLocation resolves the display zone. When tzifPath is set the rule data
// is read from that file (TZif format, e.g. /usr/share/zoneinfo/Europe/Berlin)
// instead of the system database.
func LoadLocation(name, tzifPath string) (*time.Location, error) {
	if tzifPath == "" {
		loc, err := time.LoadLocation(name)
		if err != nil {
			return nil, fmt.Errorf("clock: load zone %q: %w", name, err)
		}
		return loc, nil
	}

	data, err := os.ReadFile(tzifPath)
	if err != nil {
		return nil, fmt.Errorf("clock: read zone data: %w", err)
	}
	loc, err := time.LoadLocationFromTZData(name, data)
	if err != nil {
		return nil, fmt.Errorf("clock: parse zone data %q: %w", tzifPath, err)
	}
	return loc, nil
}
