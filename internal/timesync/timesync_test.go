package timesync

import (
	"context"
	"encoding/binary"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"homedash/internal/clock"
	"homedash/internal/fault"
)

// serveSNTP answers every request on a local UDP socket with transmit time
// unix. mutate may corrupt the reply.
func serveSNTP(t *testing.T, unix int64, mutate func([]byte)) string {
	t.Helper()
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = pc.Close() })

	go func() {
		buf := make([]byte, 512)
		for {
			n, addr, err := pc.ReadFrom(buf)
			if err != nil {
				return
			}
			if n < packetSize {
				continue
			}
			resp := make([]byte, packetSize)
			resp[0] = 0x24 // VN=4, mode=4 (server)
			resp[1] = 2
			copy(resp[24:32], buf[40:48])
			binary.BigEndian.PutUint32(resp[32:36], uint32(unix+ntpEpochOffset))
			binary.BigEndian.PutUint32(resp[40:44], uint32(unix+ntpEpochOffset))
			if mutate != nil {
				mutate(resp)
			}
			_, _ = pc.WriteTo(resp, addr)
		}
	}()
	return pc.LocalAddr().String()
}

func plainDial(ctx context.Context, network, addr string) (net.Conn, error) {
	var d net.Dialer
	return d.DialContext(ctx, network, addr)
}

func TestQuery(t *testing.T) {
	t.Parallel()
	addr := serveSNTP(t, 1_700_000_000, nil)

	sec, err := Query(context.Background(), plainDial, addr)
	require.NoError(t, err)
	assert.Equal(t, int64(1_700_000_000), sec)
}

func TestQueryRejectsWrongMode(t *testing.T) {
	t.Parallel()
	addr := serveSNTP(t, 1_700_000_000, func(b []byte) { b[0] = 0x23 })

	_, err := Query(context.Background(), plainDial, addr)
	require.Error(t, err)
	assert.ErrorIs(t, err, fault.ErrDecode)
	assert.ErrorIs(t, err, errMode)
}

func TestQueryRejectsOriginateMismatch(t *testing.T) {
	t.Parallel()
	addr := serveSNTP(t, 1_700_000_000, func(b []byte) { b[24] ^= 0xff })

	_, err := Query(context.Background(), plainDial, addr)
	assert.ErrorIs(t, err, errOriginate)
}

func TestQueryDialFailureIsTransport(t *testing.T) {
	t.Parallel()
	dial := func(context.Context, string, string) (net.Conn, error) {
		return nil, errors.New("no route")
	}
	_, err := Query(context.Background(), dial, "ntp.invalid")
	assert.ErrorIs(t, err, fault.ErrTransport)
}

type upLink struct{}

func (upLink) WaitUp(ctx context.Context) error { return ctx.Err() }

func TestSyncerAppliesResult(t *testing.T) {
	t.Parallel()
	addr := serveSNTP(t, 1_700_000_000, nil)
	fc := clockwork.NewFakeClock()
	clk := clock.New(time.UTC, clock.NewUptime(fc))

	s := &Syncer{Clock: clk, Link: upLink{}, Dial: plainDial, Host: addr, Sleeper: fc}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, clk.Synced, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int64(1_700_000_000), clk.Now().Unix())

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestSyncerBacksOffAndRetries(t *testing.T) {
	t.Parallel()
	fc := clockwork.NewFakeClock()
	clk := clock.New(time.UTC, clock.NewUptime(fc))

	var calls atomic.Int32
	dial := func(context.Context, string, string) (net.Conn, error) {
		calls.Add(1)
		return nil, fault.ResourceExhausted("netpool: dial udp", errors.New("full"))
	}

	s := &Syncer{
		Clock:    clk,
		Link:     upLink{},
		Dial:     dial,
		Host:     "ntp.test",
		Sleeper:  fc,
		MinRetry: time.Second,
		MaxRetry: 4 * time.Second,
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Run(ctx) }()

	require.NoError(t, fc.BlockUntilContext(ctx, 1))
	assert.Equal(t, int32(1), calls.Load())

	fc.Advance(10 * time.Second)
	require.Eventually(t, func() bool { return calls.Load() == 2 }, 2*time.Second, 5*time.Millisecond)
	assert.False(t, clk.Synced())
}
