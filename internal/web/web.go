// Package web serves a small status API and the last rendered frame.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"homedash/internal/dashboard"
	appLog "homedash/internal/log"
	"homedash/internal/netpool"
)

// CycleSource exposes the orchestrator's last results.
type CycleSource interface {
	LastCycle() dashboard.Cycle
	LastFrame() image.Image
}

// ClockState exposes the synchronised wall clock.
type ClockState interface {
	Now() time.Time
	Synced() bool
	Offset() int64
}

// PoolState exposes socket pool usage.
type PoolState interface {
	Stats() netpool.Stats
}

// LinkState reports whether the network link is up.
type LinkState interface {
	Up() bool
}

// Server provides the HTTP endpoints. Every field may be nil; the matching
// part of the status is then omitted.
type Server struct {
	Cycles CycleSource
	Clock  ClockState
	Pool   PoolState
	Link   LinkState

	router chi.Router
}

func NewServer(cycles CycleSource, clk ClockState, pool PoolState, link LinkState) *Server {
	s := &Server{Cycles: cycles, Clock: clk, Pool: pool, Link: link}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.NoCache)
	r.Use(middleware.Timeout(10 * time.Second))

	r.Get("/health", s.handleHealth)
	r.Get("/api/status", s.handleStatus)
	r.Get("/preview.png", s.handlePreview)
	s.router = r
}

// Handler returns the router.
func (s *Server) Handler() http.Handler { return s.router }

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLog.Warn("HTTP server shutdown", "error", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return ctx.Err()
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

type clockStatus struct {
	Now    time.Time `json:"now"`
	Synced bool      `json:"synced"`
	Offset int64     `json:"offset_seconds"`
}

type statusResponse struct {
	Clock     *clockStatus     `json:"clock,omitempty"`
	LinkUp    *bool            `json:"link_up,omitempty"`
	Pool      *netpool.Stats   `json:"pool,omitempty"`
	LastCycle *dashboard.Cycle `json:"last_cycle,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	var resp statusResponse
	if s.Clock != nil {
		resp.Clock = &clockStatus{Now: s.Clock.Now(), Synced: s.Clock.Synced(), Offset: s.Clock.Offset()}
	}
	if s.Link != nil {
		up := s.Link.Up()
		resp.LinkUp = &up
	}
	if s.Pool != nil {
		st := s.Pool.Stats()
		resp.Pool = &st
	}
	if s.Cycles != nil {
		if c := s.Cycles.LastCycle(); !c.Finished.IsZero() {
			resp.LastCycle = &c
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handlePreview encodes the last rendered frame.
func (s *Server) handlePreview(w http.ResponseWriter, _ *http.Request) {
	var frame image.Image
	if s.Cycles != nil {
		frame = s.Cycles.LastFrame()
	}
	if frame == nil {
		writeError(w, http.StatusNotFound, "no frame rendered yet")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	if err := png.Encode(w, frame); err != nil {
		appLog.Error("failed to write preview", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
