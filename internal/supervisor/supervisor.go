// Package supervisor runs the long-lived tasks together and provides the
// degraded idle state entered when one of them stops.
package supervisor

import (
	"context"
	"errors"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"homedash/internal/fault"
	appLog "homedash/internal/log"
)

// Task is one long-lived loop. Run is expected to return only when its
// context is cancelled.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

var errTaskReturned = errors.New("task returned")

// Run starts every task and waits. The first task that returns while ctx is
// still live ends the whole set: the others are cancelled and a Fatal fault
// naming that task is returned. When ctx itself ends, Run returns ctx.Err().
func Run(ctx context.Context, tasks ...Task) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, t := range tasks {
		g.Go(func() error {
			appLog.Debug("task started", "task", t.Name)
			err := t.Run(gctx)
			if ctx.Err() != nil {
				return nil
			}
			if gctx.Err() != nil && errors.Is(err, context.Canceled) {
				// cancelled because a sibling stopped first
				return nil
			}
			if err == nil {
				err = errTaskReturned
			}
			appLog.Error("task stopped", err, "task", t.Name)
			return fault.Fatal("supervisor: "+t.Name, err)
		})
	}

	err := g.Wait()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// DegradedOptions tunes the degraded idle.
type DegradedOptions struct {
	// Notice draws the fault message once. May be nil.
	Notice func(ctx context.Context, msg string) error
	// LogEvery is the interval of the "invalid state" log line.
	LogEvery time.Duration
	// RetryAfter is how long to idle before returning.
	RetryAfter time.Duration
	// Clock drives the waits; nil uses the real clock.
	Clock clockwork.Clock
}

// Degraded idles after cause ended the supervised set. It draws a notice,
// logs periodically and returns nil after RetryAfter so the caller can
// restart the tasks, or ctx.Err() when ctx ends first.
func Degraded(ctx context.Context, cause error, opts DegradedOptions) error {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.LogEvery <= 0 {
		opts.LogEvery = 5 * time.Second
	}
	if opts.RetryAfter <= 0 {
		opts.RetryAfter = 15 * time.Minute
	}

	if opts.Notice != nil {
		if err := opts.Notice(ctx, "invalid state"); err != nil {
			appLog.Error("failed to show fault notice", err)
		}
	}

	ticker := opts.Clock.NewTicker(opts.LogEvery)
	defer ticker.Stop()
	retry := opts.Clock.After(opts.RetryAfter)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-retry:
			appLog.Info("leaving degraded state", "cause", cause)
			return nil
		case <-ticker.Chan():
			appLog.Error("invalid state", cause, "retry_after", opts.RetryAfter.String())
		}
	}
}
