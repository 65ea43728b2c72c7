// Package api exposes the pipeline's HTTP surface: lead views, manual
// re-runs, sequence review and editing, the memory feed, and tenant
// settings. Handlers translate service sentinel errors into the JSON
// error envelope; they carry no domain logic of their own.
package api

import (
	"context"
	"net/http"
	"time"
)

// Server wraps the HTTP server lifecycle around the router.
type Server struct {
	handler http.Handler
	server  *http.Server
}

// NewServer creates the API server over configured handlers.
func NewServer(h *Handlers, hc *HealthChecker, devMode bool) *Server {
	return &Server{handler: SetupRoutes(h, hc, devMode)}
}

// ListenAndServe starts the HTTP server on addr and blocks.
func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler returns the HTTP handler for testing.
func (s *Server) Handler() http.Handler {
	return s.handler
}
