package wifi

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jonboulle/clockwork"

	appLog "homedash/internal/log"
)

var errNotAssociated = errors.New("wifi: link reported success but is not connected")

// Keeper re-associates the link whenever it drops and mirrors the result
// into State.
type Keeper struct {
	Link  Link
	State *State
	Clock clockwork.Clock

	// PollInterval is how often a connected link is re-checked.
	PollInterval time.Duration
	// ReconnectDelay is waited after a disconnect before reconnecting.
	ReconnectDelay time.Duration
	// MinRetry and MaxRetry bound the backoff after a failed Connect.
	MinRetry time.Duration
	MaxRetry time.Duration
}

func (k *Keeper) defaults() {
	if k.Clock == nil {
		k.Clock = clockwork.NewRealClock()
	}
	if k.PollInterval <= 0 {
		k.PollInterval = 5 * time.Second
	}
	if k.ReconnectDelay <= 0 {
		k.ReconnectDelay = 5 * time.Second
	}
	if k.MinRetry <= 0 {
		k.MinRetry = 5 * time.Second
	}
	if k.MaxRetry <= 0 {
		k.MaxRetry = 5 * time.Minute
	}
}

// Run keeps the link up until ctx is done.
func (k *Keeper) Run(ctx context.Context) error {
	k.defaults()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = k.MinRetry
	bo.MaxInterval = k.MaxRetry
	bo.Reset()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		connected, err := k.Link.Connected(ctx)
		if err != nil {
			appLog.Warn("wifi state check failed", "error", err)
		}

		if connected {
			k.State.SetUp(true)
			bo.Reset()
			appLog.Info("wifi connected")

			if err := k.waitDisconnected(ctx); err != nil {
				return err
			}
			k.State.SetUp(false)
			appLog.Warn("wifi disconnected")
			if err := k.sleep(ctx, k.ReconnectDelay); err != nil {
				return err
			}
			continue
		}

		k.State.SetUp(false)
		err = k.Link.Connect(ctx)
		if err == nil {
			if ok, _ := k.Link.Connected(ctx); !ok {
				err = errNotAssociated
			}
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			delay := bo.NextBackOff()
			appLog.Error("wifi connect failed", err, "retry_in", delay.String())
			if err := k.sleep(ctx, delay); err != nil {
				return err
			}
		}
	}
}

func (k *Keeper) waitDisconnected(ctx context.Context) error {
	ticker := k.Clock.NewTicker(k.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
		}
		ok, err := k.Link.Connected(ctx)
		if err != nil || !ok {
			return nil
		}
	}
}

func (k *Keeper) sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-k.Clock.After(d):
		return nil
	}
}
