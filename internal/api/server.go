// Package api serves the admin and public HTTP endpoints.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ignite/listflow/internal/config"
)

// Server wraps the HTTP server and its router.
type Server struct {
	config  config.ServerConfig
	handler http.Handler
	server  *http.Server
}

// NewServer creates a server for the given handlers.
func NewServer(cfg config.ServerConfig, h *Handlers) *Server {
	return &Server{config: cfg, handler: NewRouter(h)}
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}

// ListenAndServe starts the HTTP server
func (s *Server) ListenAndServe() error {
	s.server = &http.Server{
		Addr:              s.Addr(),
		Handler:           s.handler,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler returns the HTTP handler for testing
func (s *Server) Handler() http.Handler {
	return s.handler
}
