// Package httpapi serves the read-only display surface: recent samples,
// store status and a websocket stream of cycle reports.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/bft-labs/trackship/internal/domain"
	"github.com/bft-labs/trackship/internal/ports"
)

const maxRecentLimit = 1000

// StatsSource reports store-wide counters.
type StatsSource interface {
	Counts(ctx context.Context) (total, unsynced int, err error)
	DeviceID(ctx context.Context) (string, error)
}

// Status is the body of GET /v1/status.
type Status struct {
	DeviceID  string              `json:"device_id"`
	Total     int                 `json:"total"`
	Unsynced  int                 `json:"unsynced"`
	LastCycle *domain.CycleReport `json:"last_cycle,omitempty"`
}

// Server exposes the display endpoints.
type Server struct {
	recent ports.RecentLister
	stats  StatsSource
	status ports.StatusRepository
	hub    *Hub
	logger ports.Logger
	mux    *http.ServeMux
}

// NewServer wires the handlers. status may be nil.
func NewServer(recent ports.RecentLister, stats StatsSource, status ports.StatusRepository, hub *Hub, logger ports.Logger) *Server {
	s := &Server{
		recent: recent,
		stats:  stats,
		status: status,
		hub:    hub,
		logger: logger,
		mux:    http.NewServeMux(),
	}
	s.mux.HandleFunc("GET /v1/samples", s.handleSamples)
	s.mux.HandleFunc("GET /v1/status", s.handleStatus)
	s.mux.Handle("GET /v1/stream", hub)
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Run listens on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.hub.Close()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutCtx)
	}()

	s.logger.Info("display api listening", ports.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleSamples(w http.ResponseWriter, r *http.Request) {
	limit := domain.DefaultRecentLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = min(n, maxRecentLimit)
	}

	samples, err := s.recent.ListRecent(r.Context(), limit)
	if err != nil {
		s.fail(w, "list recent samples", err)
		return
	}
	if samples == nil {
		samples = []domain.Sample{}
	}
	writeJSON(w, samples)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	total, unsynced, err := s.stats.Counts(ctx)
	if err != nil {
		s.fail(w, "count samples", err)
		return
	}
	deviceID, err := s.stats.DeviceID(ctx)
	if err != nil {
		s.fail(w, "read device id", err)
		return
	}

	st := Status{DeviceID: deviceID, Total: total, Unsynced: unsynced}
	if s.status != nil {
		last, err := s.status.Load(ctx)
		if err != nil {
			s.logger.Warn("failed to load last cycle", ports.Err(err))
		}
		st.LastCycle = last
	}
	writeJSON(w, st)
}

func (s *Server) fail(w http.ResponseWriter, what string, err error) {
	s.logger.Error("display api: "+what, ports.Err(err))
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
