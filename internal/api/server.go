// Package api provides the PlantPulse HTTP API.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mvasconcelos/plantpulse/internal/ingest"
	"github.com/mvasconcelos/plantpulse/internal/recommend"
	"github.com/mvasconcelos/plantpulse/internal/state"
	"github.com/mvasconcelos/plantpulse/internal/store"
)

// Server is the HTTP server for PlantPulse.
type Server struct {
	store    *store.Store
	pipeline *ingest.Pipeline
	tracker  *state.Tracker
	engine   *recommend.Engine
	window   time.Duration
	mux      *http.ServeMux
	server   *http.Server
}

// NewServer creates the HTTP server. window is the default lookback for the
// maintenance schedule endpoint.
func NewServer(addr string, st *store.Store, p *ingest.Pipeline, tr *state.Tracker, eng *recommend.Engine, reg *prometheus.Registry, window time.Duration) *Server {
	if window <= 0 {
		window = 24 * time.Hour
	}
	srv := &Server{
		store:    st,
		pipeline: p,
		tracker:  tr,
		engine:   eng,
		window:   window,
		mux:      http.NewServeMux(),
	}

	srv.registerRoutes(reg)

	srv.server = &http.Server{
		Addr:         addr,
		Handler:      SecurityHeadersMiddleware(RecoveryMiddleware(LoggingMiddleware(srv.mux))),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return srv
}

// Run starts the HTTP server. It blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	slog.Info("HTTP server starting", "addr", s.server.Addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		slog.Info("HTTP server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) registerRoutes(reg *prometheus.Registry) {
	s.mux.HandleFunc("POST /api/ingest", s.handleIngest)

	s.mux.HandleFunc("GET /api/readings", s.handleReadings)
	s.mux.HandleFunc("GET /api/anomalies", s.handleAnomalies)
	s.mux.HandleFunc("GET /api/machines/stats", s.handleMachineStats)
	s.mux.HandleFunc("GET /api/machines/current", s.handleMachinesCurrent)
	s.mux.HandleFunc("GET /api/schedule", s.handleSchedule)

	s.mux.HandleFunc("GET /healthz", s.handleHealthz)

	if reg != nil {
		s.mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}
}

// writeJSON marshals v to JSON into a buffer first, then writes it to the
// response. This ensures marshalling errors can be returned as a proper 500.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("encoding JSON response", "path", r.URL.Path, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		slog.Debug("writing JSON response", "path", r.URL.Path, "error", err)
	}
}
