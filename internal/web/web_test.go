package web

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"homedash/internal/dashboard"
	"homedash/internal/netpool"
)

type fakeCycles struct {
	cycle dashboard.Cycle
	frame image.Image
}

func (f *fakeCycles) LastCycle() dashboard.Cycle { return f.cycle }
func (f *fakeCycles) LastFrame() image.Image     { return f.frame }

type fakeClock struct{}

func (fakeClock) Now() time.Time { return time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC) }
func (fakeClock) Synced() bool   { return true }
func (fakeClock) Offset() int64  { return 1741593600 }

type fakePool struct{}

func (fakePool) Stats() netpool.Stats { return netpool.Stats{Size: 2, InUse: 1} }

type fakeLink bool

func (l fakeLink) Up() bool { return bool(l) }

func TestHealth(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(NewServer(nil, nil, nil, nil).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStatus(t *testing.T) {
	t.Parallel()
	finished := time.Date(2025, 3, 10, 7, 1, 0, 0, time.UTC)
	cycles := &fakeCycles{cycle: dashboard.Cycle{
		Finished: finished,
		Events:   4,
		Outcomes: []dashboard.Outcome{
			{Source: dashboard.SourceCalendar, Err: errors.New("x"), Error: "x", Kind: "transport"},
		},
	}}
	srv := httptest.NewServer(NewServer(cycles, fakeClock{}, fakePool{}, fakeLink(true)).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Clock struct {
			Synced bool  `json:"synced"`
			Offset int64 `json:"offset_seconds"`
		} `json:"clock"`
		LinkUp    bool `json:"link_up"`
		Pool      netpool.Stats
		LastCycle struct {
			Events   int `json:"events"`
			Outcomes []struct {
				Source string `json:"source"`
				Kind   string `json:"kind"`
			} `json:"outcomes"`
		} `json:"last_cycle"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.True(t, body.Clock.Synced)
	assert.Equal(t, int64(1741593600), body.Clock.Offset)
	assert.True(t, body.LinkUp)
	assert.Equal(t, netpool.Stats{Size: 2, InUse: 1}, body.Pool)
	assert.Equal(t, 4, body.LastCycle.Events)
	require.Len(t, body.LastCycle.Outcomes, 1)
	assert.Equal(t, "calendar", body.LastCycle.Outcomes[0].Source)
	assert.Equal(t, "transport", body.LastCycle.Outcomes[0].Kind)
}

func TestPreview(t *testing.T) {
	t.Parallel()
	cycles := &fakeCycles{}
	srv := httptest.NewServer(NewServer(cycles, nil, nil, nil).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/preview.png")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	cycles.frame = image.NewGray(image.Rect(0, 0, 48, 80))
	resp, err = http.Get(srv.URL + "/preview.png")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	img, err := png.Decode(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 48, 80), img.Bounds())
}

func TestRunStopsOnCancel(t *testing.T) {
	t.Parallel()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewServer(nil, nil, nil, nil).Run(ctx, addr) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
