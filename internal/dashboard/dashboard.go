// Package dashboard runs the periodic refresh: fetch every source, draw
// what succeeded, push the frame to the panel, sleep until the next slot.
package dashboard

import (
	"context"
	"errors"
	"image"
	"io"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/robfig/cron/v3"

	"homedash/internal/battery"
	"homedash/internal/epd"
	"homedash/internal/fault"
	"homedash/internal/fetch"
	"homedash/internal/ics"
	appLog "homedash/internal/log"
	"homedash/internal/model"
	"homedash/internal/render"
	"homedash/internal/todo"
	"homedash/internal/weather"
)

// How much of each source ends up on screen.
const (
	hourlySlots = 3
	hourlyStep  = 2
	maxTodos    = 3
)

// Surface is what a cycle draws on.
type Surface interface {
	Reset()
	DrawHourly(items []model.HourlyForecast)
	DrawDaily(items []model.DailyForecast)
	DrawDate(t time.Time)
	DrawEvents(events []model.Event)
	DrawTodos(items []model.Todo)
	DrawBattery(st model.BatteryStatus)
	DrawFault(msg string)
	Image() image.Image
}

// Clock supplies the wall-clock time shown on screen.
type Clock interface {
	Now() time.Time
}

// LinkWaiter blocks until the network is usable.
type LinkWaiter interface {
	WaitUp(ctx context.Context) error
}

// Forecaster fetches both weather forecasts.
type Forecaster interface {
	Hourly(ctx context.Context) ([weather.HourlyCount]model.HourlyForecast, error)
	Daily(ctx context.Context) ([weather.DailyCount]model.DailyForecast, error)
}

// Streamer opens a streaming response body.
type Streamer interface {
	Open(ctx context.Context, url string, hdr fetch.Header) (io.ReadCloser, error)
}

// TodoSource fetches the todo list.
type TodoSource interface {
	Fetch(ctx context.Context) ([]model.Todo, error)
}

// Source names one step of a cycle.
type Source string

const (
	SourceHourly   Source = "hourly_weather"
	SourceDaily    Source = "daily_weather"
	SourceCalendar Source = "calendar"
	SourceTodos    Source = "todos"
	SourceBattery  Source = "battery"
	SourceDisplay  Source = "display"
)

// Outcome is the result of one step.
type Outcome struct {
	Source   Source        `json:"source"`
	Err      error         `json:"-"`
	Error    string        `json:"error,omitempty"`
	Kind     string        `json:"kind,omitempty"`
	Duration time.Duration `json:"duration_ns"`
}

// OK reports whether the step succeeded.
func (o Outcome) OK() bool { return o.Err == nil }

// Cycle is the record of one refresh.
type Cycle struct {
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished"`
	// Events is the number of calendar events drawn.
	Events   int       `json:"events"`
	Outcomes []Outcome `json:"outcomes"`
}

// Outcome returns the outcome for s and whether that step ran.
func (c Cycle) Outcome(s Source) (Outcome, bool) {
	for _, o := range c.Outcomes {
		if o.Source == s {
			return o, true
		}
	}
	return Outcome{}, false
}

// Dashboard wires the sources to the surface and the panel. Todos, Battery
// and Panel are optional.
type Dashboard struct {
	Surface     Surface
	Panel       epd.Panel
	Clock       Clock
	Link        LinkWaiter
	Weather     Forecaster
	Calendar    Streamer
	CalendarURL string
	MaxEvents   int
	Todos       TodoSource
	Battery     battery.Reader

	// FetchTimeout bounds every single fetch.
	FetchTimeout time.Duration
	// DisplayTimeout bounds one panel update, wake to idle.
	DisplayTimeout time.Duration
	// SettleDelay is waited between triggering the refresh and polling
	// for idle.
	SettleDelay time.Duration
	// Schedule overrides the hourly wake-up when set.
	Schedule cron.Schedule
	// Sleeper drives the waits; nil uses the real clock.
	Sleeper clockwork.Clock

	mu      sync.Mutex
	last    Cycle
	frame   *image.Gray
	cleared bool
}

func (d *Dashboard) defaults() {
	if d.Sleeper == nil {
		d.Sleeper = clockwork.NewRealClock()
	}
	if d.FetchTimeout <= 0 {
		d.FetchTimeout = 30 * time.Second
	}
	if d.MaxEvents <= 0 {
		d.MaxEvents = 10
	}
	if d.DisplayTimeout <= 0 {
		d.DisplayTimeout = 2 * time.Minute
	}
}

// Run refreshes forever. It only returns when ctx is done.
func (d *Dashboard) Run(ctx context.Context) error {
	d.defaults()
	for {
		if err := d.Link.WaitUp(ctx); err != nil {
			return err
		}
		d.RunOnce(ctx)
		if err := ctx.Err(); err != nil {
			return err
		}

		wait := d.NextWake(d.Clock.Now())
		appLog.Info("dashboard sleeping", "duration", wait.String())
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-d.Sleeper.After(wait):
		}
	}
}

// RunOnce performs one refresh without waiting for the link. Every step
// may fail on its own; the frame is pushed to the panel regardless.
func (d *Dashboard) RunOnce(ctx context.Context) Cycle {
	d.defaults()
	c := Cycle{Started: d.Clock.Now()}

	d.Surface.Reset()

	c.Outcomes = append(c.Outcomes, d.step(ctx, SourceHourly, func(ctx context.Context) error {
		hourly, err := d.Weather.Hourly(ctx)
		if err != nil {
			return err
		}
		d.Surface.DrawHourly(weather.Upcoming(hourly, d.Clock.Now().Hour(), hourlySlots, hourlyStep))
		return nil
	}))

	c.Outcomes = append(c.Outcomes, d.step(ctx, SourceDaily, func(ctx context.Context) error {
		daily, err := d.Weather.Daily(ctx)
		if err != nil {
			return err
		}
		d.Surface.DrawDaily(weather.AfterToday(daily))
		return nil
	}))

	d.Surface.DrawDate(d.Clock.Now())

	c.Outcomes = append(c.Outcomes, d.step(ctx, SourceCalendar, func(ctx context.Context) error {
		events, err := d.calendar(ctx)
		if err != nil {
			return err
		}
		c.Events = len(events)
		d.Surface.DrawEvents(events)
		return nil
	}))

	if d.Todos != nil {
		c.Outcomes = append(c.Outcomes, d.step(ctx, SourceTodos, func(ctx context.Context) error {
			items, err := d.Todos.Fetch(ctx)
			if err != nil {
				return err
			}
			d.Surface.DrawTodos(todo.Latest(items, maxTodos))
			return nil
		}))
	}

	if d.Battery != nil {
		c.Outcomes = append(c.Outcomes, d.step(ctx, SourceBattery, func(ctx context.Context) error {
			st, err := d.Battery.Read(ctx)
			if err != nil {
				return err
			}
			d.Surface.DrawBattery(st)
			return nil
		}))
	}

	frame := render.Snapshot(d.Surface.Image())

	if d.Panel != nil {
		start := time.Now()
		err := d.display(ctx, frame)
		if err != nil {
			appLog.Error("display update failed", err)
		}
		c.Outcomes = append(c.Outcomes, newOutcome(SourceDisplay, err, time.Since(start)))
	}

	c.Finished = d.Clock.Now()
	d.mu.Lock()
	d.last = c
	d.frame = frame
	d.mu.Unlock()

	appLog.Info("dashboard cycle completed", "events", c.Events, "failed", failed(c))
	return c
}

func (d *Dashboard) step(ctx context.Context, src Source, fn func(context.Context) error) Outcome {
	ctx, cancel := context.WithTimeout(ctx, d.FetchTimeout)
	defer cancel()

	start := time.Now()
	err := fn(ctx)
	if err != nil {
		appLog.Error("dashboard step failed", err, "source", string(src), "kind", fault.KindOf(err).String())
	}
	return newOutcome(src, err, time.Since(start))
}

func newOutcome(src Source, err error, dur time.Duration) Outcome {
	o := Outcome{Source: src, Err: err, Duration: dur}
	if err != nil {
		o.Error = err.Error()
		o.Kind = fault.KindOf(err).String()
	}
	return o
}

func failed(c Cycle) int {
	n := 0
	for _, o := range c.Outcomes {
		if !o.OK() {
			n++
		}
	}
	return n
}

var errNoCalendar = errors.New("dashboard: no calendar configured")

func (d *Dashboard) calendar(ctx context.Context) ([]model.Event, error) {
	if d.Calendar == nil || d.CalendarURL == "" {
		return nil, errNoCalendar
	}
	body, err := d.Calendar.Open(ctx, d.CalendarURL, fetch.Header{})
	if err != nil {
		return nil, err
	}
	defer body.Close()

	events, err := ics.Parse(body, d.Clock.Now(), make([]model.Event, d.MaxEvents))
	if err != nil {
		return nil, err
	}
	ics.SortByDate(events)
	return events, nil
}

// panelSleepTimeout bounds the final Sleep, which runs even after the
// update ran out of time.
const panelSleepTimeout = 10 * time.Second

// display pushes frame and puts the panel back to sleep. The first update
// after boot clears the panel fully. Sleep is attempted even when the update
// failed or timed out.
func (d *Dashboard) display(ctx context.Context, frame image.Image) error {
	err := d.update(ctx, frame)

	sleepCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), panelSleepTimeout)
	defer cancel()
	return errors.Join(err, d.Panel.Sleep(sleepCtx))
}

func (d *Dashboard) update(ctx context.Context, frame image.Image) error {
	ctx, cancel := context.WithTimeout(ctx, d.DisplayTimeout)
	defer cancel()

	if err := d.Panel.Wake(ctx); err != nil {
		return err
	}
	if err := d.clearOnce(ctx); err != nil {
		return err
	}
	if err := d.Panel.UpdateAndDisplay(ctx, frame); err != nil {
		return err
	}
	if d.SettleDelay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-d.Sleeper.After(d.SettleDelay):
		}
	}
	return d.Panel.WaitUntilIdle(ctx)
}

func (d *Dashboard) clearOnce(ctx context.Context) error {
	d.mu.Lock()
	done := d.cleared
	d.mu.Unlock()
	if done {
		return nil
	}
	if err := d.Panel.Clear(ctx); err != nil {
		return err
	}
	d.mu.Lock()
	d.cleared = true
	d.mu.Unlock()
	return nil
}

// ShowFault replaces the screen with msg. It is used by the degraded state
// and does not touch the last cycle record.
func (d *Dashboard) ShowFault(ctx context.Context, msg string) error {
	d.defaults()
	d.Surface.Reset()
	d.Surface.DrawFault(msg)
	frame := render.Snapshot(d.Surface.Image())

	d.mu.Lock()
	d.frame = frame
	d.mu.Unlock()

	if d.Panel == nil {
		return nil
	}
	return d.display(ctx, frame)
}

// LastCycle returns the most recent completed cycle.
func (d *Dashboard) LastCycle() Cycle {
	d.mu.Lock()
	defer d.mu.Unlock()
	c := d.last
	c.Outcomes = append([]Outcome(nil), c.Outcomes...)
	return c
}

// LastFrame returns a copy of the most recent frame, or nil before the
// first cycle.
func (d *Dashboard) LastFrame() image.Image {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.frame == nil {
		return nil
	}
	return render.Snapshot(d.frame)
}
