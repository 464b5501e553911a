// Package api exposes the harvester's observability endpoints: a health
// probe and the Prometheus metrics registry. The server only runs while a
// harvest is in flight and is disabled unless an address is configured.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server serves /healthz and /metrics.
type Server struct {
	router chi.Router
	srv    *http.Server
	logger *zap.Logger
}

// NewServer constructs a Server listening on addr.
func NewServer(addr string, logger *zap.Logger) *Server {
	r := chi.NewRouter()
	r.Get("/healthz", healthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return &Server{
		router: r,
		srv: &http.Server{
			Addr:              addr,
			Handler:           r,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// Handler returns the router, primarily for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until Shutdown is called. It returns only on listener
// failure.
func (s *Server) Start() error {
	s.logger.Info("Metrics server listening", zap.String("addr", s.srv.Addr))
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}

// Shutdown drains connections and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown metrics server: %w", err)
	}
	return nil
}

func healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
