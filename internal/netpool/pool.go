// Package netpool bounds the number of sockets the process holds open at the
// same time. A dial that finds no free slot fails immediately instead of
// queueing.
package netpool

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/semaphore"

	"homedash/internal/fault"
	appLog "homedash/internal/log"
)

// ErrExhausted is wrapped by every dial that found the pool full.
var ErrExhausted = errors.New("netpool: no free socket slot")

// Dialer opens network connections.
type Dialer interface {
	DialContext(ctx context.Context, network, addr string) (net.Conn, error)
}

// Pool hands out at most Size concurrent connections.
type Pool struct {
	size   int64
	sem    *semaphore.Weighted
	dialer Dialer
	clock  clockwork.Clock

	nextID atomic.Uint64
	mu     sync.Mutex
	leases map[uint64]lease

	// LeaseWarn is how long a connection may stay open before the pump
	// logs it as suspicious.
	LeaseWarn time.Duration
	// Tick is the pump interval.
	Tick time.Duration
}

type lease struct {
	network string
	addr    string
	since   time.Time
}

// Stats is a point-in-time view of slot usage.
type Stats struct {
	Size  int `json:"size"`
	InUse int `json:"in_use"`
}

// New creates a pool of size slots dialing through d. A nil d uses a
// net.Dialer with a 10s connect timeout; a nil clk uses the real clock.
func New(size int, d Dialer, clk clockwork.Clock) *Pool {
	if size <= 0 {
		size = 1
	}
	if d == nil {
		d = &net.Dialer{Timeout: 10 * time.Second}
	}
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	return &Pool{
		size:      int64(size),
		sem:       semaphore.NewWeighted(int64(size)),
		dialer:    d,
		clock:     clk,
		leases:    make(map[uint64]lease),
		LeaseWarn: 2 * time.Minute,
		Tick:      30 * time.Second,
	}
}

// DialContext acquires a slot without blocking and dials. The slot is
// returned when the connection is closed or the dial fails.
func (p *Pool) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	if !p.sem.TryAcquire(1) {
		return nil, fault.ResourceExhausted("netpool: dial "+network, ErrExhausted)
	}

	conn, err := p.dialer.DialContext(ctx, network, addr)
	if err != nil {
		p.sem.Release(1)
		return nil, fault.Transport("netpool: dial "+network+" "+addr, err)
	}

	id := p.nextID.Add(1)
	p.mu.Lock()
	p.leases[id] = lease{network: network, addr: addr, since: p.clock.Now()}
	p.mu.Unlock()

	return &pooledConn{Conn: conn, release: func() { p.release(id) }}, nil
}

func (p *Pool) release(id uint64) {
	p.mu.Lock()
	delete(p.leases, id)
	p.mu.Unlock()
	p.sem.Release(1)
}

// Stats reports current usage.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{Size: int(p.size), InUse: len(p.leases)}
}

// Run is the network pump. It wakes every Tick, logs slot usage and warns
// about connections held longer than LeaseWarn. It returns only when ctx is
// done.
func (p *Pool) Run(ctx context.Context) error {
	ticker := p.clock.NewTicker(p.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
			p.housekeep()
		}
	}
}

func (p *Pool) housekeep() {
	now := p.clock.Now()

	p.mu.Lock()
	inUse := len(p.leases)
	var stale []lease
	for _, l := range p.leases {
		if now.Sub(l.since) > p.LeaseWarn {
			stale = append(stale, l)
		}
	}
	p.mu.Unlock()

	appLog.Debug("netpool usage", "in_use", inUse, "size", p.size)
	for _, l := range stale {
		appLog.Warn("netpool long-held socket",
			"network", l.network,
			"addr", l.addr,
			"held", fmt.Sprint(now.Sub(l.since).Round(time.Second)),
		)
	}
}

type pooledConn struct {
	net.Conn
	once    sync.Once
	release func()
}

func (c *pooledConn) Close() error {
	err := c.Conn.Close()
	c.once.Do(c.release)
	return err
}
