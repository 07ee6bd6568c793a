package timesync

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jonboulle/clockwork"

	"homedash/internal/clock"
	appLog "homedash/internal/log"
)

// LinkWaiter blocks until the network link is up.
type LinkWaiter interface {
	WaitUp(ctx context.Context) error
}

// Syncer periodically queries Host and feeds the result into Clock.
type Syncer struct {
	Clock    *clock.Clock
	Link     LinkWaiter
	Dial     DialFunc
	Host     string
	Interval time.Duration

	// Sleeper drives waits; nil uses the real clock.
	Sleeper clockwork.Clock

	// MinRetry and MaxRetry bound the exponential backoff after a failed
	// query.
	MinRetry time.Duration
	MaxRetry time.Duration
}

func (s *Syncer) defaults() {
	if s.Sleeper == nil {
		s.Sleeper = clockwork.NewRealClock()
	}
	if s.Interval <= 0 {
		s.Interval = time.Hour
	}
	if s.MinRetry <= 0 {
		s.MinRetry = 2 * time.Second
	}
	if s.MaxRetry <= 0 {
		s.MaxRetry = 5 * time.Minute
	}
}

// Run loops until ctx is done: wait for the link, query, apply, sleep.
func (s *Syncer) Run(ctx context.Context) error {
	s.defaults()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.MinRetry
	bo.MaxInterval = s.MaxRetry
	bo.Reset()

	for {
		if err := s.Link.WaitUp(ctx); err != nil {
			return err
		}

		sec, err := Query(ctx, s.Dial, s.Host)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			delay := bo.NextBackOff()
			appLog.Error("time sync failed", err, "host", s.Host, "retry_in", delay.String())
			if err := s.sleep(ctx, delay); err != nil {
				return err
			}
			continue
		}

		bo.Reset()
		first := !s.Clock.Synced()
		s.Clock.Sync(sec)
		if first {
			appLog.Info("clock synchronized", "host", s.Host, "now", s.Clock.Now().Format(time.RFC3339))
		} else {
			appLog.Debug("clock resynchronized", "host", s.Host, "offset", s.Clock.Offset())
		}

		if err := s.sleep(ctx, s.Interval); err != nil {
			return err
		}
	}
}

func (s *Syncer) sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.Sleeper.After(d):
		return nil
	}
}
