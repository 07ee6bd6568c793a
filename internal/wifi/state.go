// Package wifi keeps the network link associated and publishes whether it
// is usable.
package wifi

import (
	"context"
	"sync"
)

// State is the shared "link is up" flag. Waiters are woken on every change.
type State struct {
	mu      sync.Mutex
	up      bool
	changed chan struct{}
}

func NewState() *State {
	return &State{changed: make(chan struct{})}
}

// SetUp records the link state and wakes all waiters if it changed.
func (s *State) SetUp(up bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.up == up {
		return
	}
	s.up = up
	close(s.changed)
	s.changed = make(chan struct{})
}

// Up reports the last recorded state.
func (s *State) Up() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.up
}

// WaitUp blocks until the link is up or ctx is done.
func (s *State) WaitUp(ctx context.Context) error {
	for {
		s.mu.Lock()
		up, ch := s.up, s.changed
		s.mu.Unlock()
		if up {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ch:
		}
	}
}
