// Package httpapi wires the HTTP surface of the point service. Handlers are
// thin adapters: they parse a user id and an amount and delegate to the
// engine, which owns all balance rules.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	chi "github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/tinoosan/pointledger/internal/service/ledger"
)

// ReadyChecker reports storage health for the readiness probe.
type ReadyChecker interface {
	Ready(ctx context.Context) error
}

// Server wires handlers and middleware using Chi.
type Server struct {
	svc   ledger.Service
	ready ReadyChecker
	log   *slog.Logger
	rt    *chi.Mux
}

// New constructs the HTTP server with routes and middleware.
func New(svc ledger.Service, ready ReadyChecker, logger *slog.Logger) *Server {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(requestLogger(logger))
	r.Use(recoverer(logger))
	r.Use(metricsMiddleware)

	s := &Server{svc: svc, ready: ready, log: logger, rt: r}
	s.routes()
	return s
}

// Handler exposes the configured http.Handler.
func (s *Server) Handler() http.Handler { return s.rt }

// routes declares the public HTTP API endpoints.
func (s *Server) routes() {
	s.rt.Get("/point/{id}", s.getPoint)
	s.rt.Get("/point/{id}/histories", s.getHistories)
	s.rt.Patch("/point/{id}/charge", s.chargePoint)
	s.rt.Patch("/point/{id}/use", s.usePoint)
	// Health and metrics (unversioned)
	s.rt.Get("/healthz", s.healthz)
	s.rt.Get("/readyz", s.readyz)
	s.rt.Method(http.MethodGet, "/metrics", metricsHandler())
}
