package main

import (
	"context"
	"errors"
	"fmt"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"homedash/internal/battery"
	"homedash/internal/clock"
	"homedash/internal/config"
	"homedash/internal/convert"
	"homedash/internal/dashboard"
	"homedash/internal/epd"
	"homedash/internal/fetch"
	"homedash/internal/ics"
	appLog "homedash/internal/log"
	"homedash/internal/netpool"
	"homedash/internal/render"
	"homedash/internal/supervisor"
	"homedash/internal/timesync"
	"homedash/internal/todo"
	"homedash/internal/weather"
	"homedash/internal/web"
	"homedash/internal/wifi"
)

// app holds the wired components of one process.
type app struct {
	conf   *config.Config
	clock  *clock.Clock
	pool   *netpool.Pool
	state  *wifi.State
	keeper *wifi.Keeper
	syncer *timesync.Syncer
	dash   *dashboard.Dashboard
	web    *web.Server
}

func newApp(conf *config.Config, renderOnly bool) (*app, error) {
	loc, err := clock.LoadLocation(conf.Timezone, conf.TimezoneFile)
	if err != nil {
		return nil, err
	}
	clk := clock.New(loc, clock.NewUptime(nil))
	pool := netpool.New(conf.PoolSize, nil, nil)
	client := fetch.NewClient(pool.DialContext)
	state := wifi.NewState()

	var link wifi.Link
	switch conf.WiFi.Backend {
	case "interface":
		link = wifi.InterfaceLink{Name: conf.WiFi.Interface}
	default:
		link = &wifi.NMLink{
			Interface: conf.WiFi.Interface,
			SSID:      conf.WiFi.SSID,
			Password:  conf.WiFi.Password,
		}
	}

	schedule, err := dashboard.ParseSchedule(conf.Refresh)
	if err != nil {
		return nil, err
	}

	dash := &dashboard.Dashboard{
		Surface: render.NewFrame(),
		Clock:   clk,
		Link:    state,
		Weather: &weather.Client{
			Getter:    client,
			BaseURL:   conf.Weather.BaseURL,
			Latitude:  conf.Weather.Latitude,
			Longitude: conf.Weather.Longitude,
			Timezone:  conf.Timezone,
			Location:  loc,
		},
		Calendar:       client,
		CalendarURL:    conf.CalendarURL,
		MaxEvents:      conf.MaxEvents,
		FetchTimeout:   conf.FetchTimeout,
		DisplayTimeout: conf.Display.Timeout,
		SettleDelay:    conf.Display.SettleDelay,
		Schedule:       schedule,
	}
	if conf.Todo.Enabled() {
		dash.Todos = &todo.Client{Getter: client, URL: conf.Todo.URL, Authorization: conf.Todo.Authorization}
	}

	bat, err := battery.Open(conf.Battery)
	switch {
	case err == nil:
		dash.Battery = bat
	case !battery.IsDisabled(err):
		return nil, err
	}

	if !renderOnly {
		panel, err := epd.Open(conf.Display)
		if err != nil {
			return nil, fmt.Errorf("open display %q: %w", conf.Display.Model, err)
		}
		dash.Panel = panel
	}

	a := &app{
		conf:  conf,
		clock: clk,
		pool:  pool,
		state: state,
		keeper: &wifi.Keeper{
			Link:         link,
			State:        state,
			PollInterval: conf.WiFi.PollInterval,
		},
		syncer: &timesync.Syncer{
			Clock:    clk,
			Link:     state,
			Dial:     pool.DialContext,
			Host:     conf.NTPHost,
			Interval: conf.NTPInterval,
		},
		dash: dash,
	}
	if conf.Listen != "" {
		a.web = web.NewServer(dash, clk, pool, state)
	}
	return a, nil
}

func (a *app) tasks() []supervisor.Task {
	tasks := []supervisor.Task{
		{Name: "socket_pool", Run: a.pool.Run},
		{Name: "wifi", Run: a.keeper.Run},
		{Name: "clock_sync", Run: a.syncer.Run},
		{Name: "dashboard", Run: a.dash.Run},
	}
	if a.web != nil {
		tasks = append(tasks, supervisor.Task{Name: "web", Run: func(ctx context.Context) error {
			return a.web.Run(ctx, a.conf.Listen)
		}})
	}
	return tasks
}

// run supervises the tasks until ctx ends. Whenever the set stops, the
// degraded state idles and the set is started again.
func (a *app) run(ctx context.Context) error {
	for {
		err := supervisor.Run(ctx, a.tasks()...)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		appLog.Error("supervised tasks stopped", err)

		err = supervisor.Degraded(ctx, err, supervisor.DegradedOptions{
			Notice:     a.dash.ShowFault,
			RetryAfter: a.conf.RetryAfterFault,
		})
		if err != nil {
			return err
		}
	}
}

// runOnce brings the link up, tries one clock sync and renders one cycle.
func (a *app) runOnce(ctx context.Context, dump bool) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() { _ = a.pool.Run(ctx) }()
	go func() { _ = a.keeper.Run(ctx) }()

	if err := a.state.WaitUp(ctx); err != nil {
		return err
	}
	if sec, err := timesync.Query(ctx, a.pool.DialContext, a.conf.NTPHost); err != nil {
		appLog.Warn("clock sync failed, using local time", "error", err)
	} else {
		a.clock.Sync(sec)
	}

	c := a.dash.RunOnce(ctx)
	for _, o := range c.Outcomes {
		if !o.OK() {
			appLog.Warn("step failed", "source", string(o.Source), "kind", o.Kind, "error", o.Error)
		}
	}

	if dump {
		return a.dump()
	}
	return nil
}

// dump writes the last frame as PNG and as the packed panel plane.
func (a *app) dump() error {
	frame := a.dash.LastFrame()
	if frame == nil {
		return errors.New("dump: no frame rendered")
	}
	dir := a.conf.Display.PreviewDir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	f, err := os.Create(filepath.Join(dir, "frame.png"))
	if err != nil {
		return err
	}
	if err := png.Encode(f, frame); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	plane, err := convert.PackGray(frame, true)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, "plane.bin"), plane, 0o644); err != nil {
		return err
	}
	appLog.Info("dumped frame", "dir", dir, "plane_bytes", len(plane))
	return nil
}

// runAudit compares both calendar parsers on a local file or a URL and
// prints what the bounded one misses.
func runAudit(ctx context.Context, conf *config.Config, src string) error {
	loc, err := clock.LoadLocation(conf.Timezone, conf.TimezoneFile)
	if err != nil {
		return err
	}

	var body io.ReadCloser
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		fctx, cancel := context.WithTimeout(ctx, conf.FetchTimeout)
		defer cancel()
		body, err = fetch.NewClient(nil).Open(fctx, src, fetch.Header{})
	} else {
		body, err = os.Open(src)
	}
	if err != nil {
		return err
	}
	defer body.Close()

	rep, err := ics.Audit(body, time.Now().In(loc), conf.MaxEvents)
	if err != nil {
		return err
	}

	fmt.Printf("bounded parser: %d events, full parser: %d upcoming\n", len(rep.Bounded), rep.Upcoming)
	for _, ev := range rep.Bounded {
		fmt.Printf("  %s  %s\n", ev.Start.Format("2006-01-02 15:04"), ev.Summary)
	}
	if len(rep.Missed) == 0 {
		fmt.Println("no missed events")
		return nil
	}
	fmt.Printf("missed %d events:\n", len(rep.Missed))
	for _, m := range rep.Missed {
		fmt.Printf("  %s  %-32s  %s\n", m.Start.Format("2006-01-02 15:04"), m.Summary, m.Reason)
	}
	return nil
}
