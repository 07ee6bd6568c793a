package netpool

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"homedash/internal/fault"
)

type pipeDialer struct {
	peers []net.Conn
	err   error
}

func (d *pipeDialer) DialContext(_ context.Context, _, _ string) (net.Conn, error) {
	if d.err != nil {
		return nil, d.err
	}
	a, b := net.Pipe()
	d.peers = append(d.peers, b)
	return a, nil
}

func (d *pipeDialer) closeAll() {
	for _, c := range d.peers {
		_ = c.Close()
	}
}

func TestDialExhaustionIsResourceExhausted(t *testing.T) {
	t.Parallel()
	d := &pipeDialer{}
	defer d.closeAll()
	p := New(2, d, clockwork.NewFakeClock())

	c1, err := p.DialContext(context.Background(), "tcp", "a:1")
	require.NoError(t, err)
	c2, err := p.DialContext(context.Background(), "udp", "b:2")
	require.NoError(t, err)

	_, err = p.DialContext(context.Background(), "tcp", "c:3")
	require.Error(t, err)
	assert.ErrorIs(t, err, fault.ErrResourceExhausted)
	assert.ErrorIs(t, err, ErrExhausted)
	assert.Equal(t, Stats{Size: 2, InUse: 2}, p.Stats())

	require.NoError(t, c1.Close())
	c3, err := p.DialContext(context.Background(), "tcp", "c:3")
	require.NoError(t, err)

	_ = c2.Close()
	_ = c3.Close()
	assert.Equal(t, 0, p.Stats().InUse)
}

func TestCloseReleasesOnce(t *testing.T) {
	t.Parallel()
	d := &pipeDialer{}
	defer d.closeAll()
	p := New(1, d, clockwork.NewFakeClock())

	c, err := p.DialContext(context.Background(), "tcp", "a:1")
	require.NoError(t, err)
	_ = c.Close()
	_ = c.Close()

	// A double release would let two dials through on a size-1 pool.
	c1, err := p.DialContext(context.Background(), "tcp", "a:1")
	require.NoError(t, err)
	defer c1.Close()
	_, err = p.DialContext(context.Background(), "tcp", "a:1")
	assert.ErrorIs(t, err, fault.ErrResourceExhausted)
}

func TestDialFailureReturnsSlot(t *testing.T) {
	t.Parallel()
	d := &pipeDialer{err: errors.New("refused")}
	p := New(1, d, clockwork.NewFakeClock())

	_, err := p.DialContext(context.Background(), "tcp", "a:1")
	require.Error(t, err)
	assert.ErrorIs(t, err, fault.ErrTransport)
	assert.Equal(t, 0, p.Stats().InUse)

	_, err = p.DialContext(context.Background(), "tcp", "a:1")
	assert.ErrorIs(t, err, fault.ErrTransport)
}

func TestPumpStopsWithContext(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	fc := clockwork.NewFakeClock()
	d := &pipeDialer{}
	defer d.closeAll()
	p := New(1, d, fc)
	p.Tick = time.Second
	p.LeaseWarn = 5 * time.Second

	c, err := p.DialContext(context.Background(), "tcp", "a:1")
	require.NoError(t, err)
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.NoError(t, fc.BlockUntilContext(ctx, 1))
	fc.Advance(10 * time.Second)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("pump did not stop")
	}
}
