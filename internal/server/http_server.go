// Package server constructs and stops the HTTP side of the chat service with
// helpers that apply sensible production defaults.
package server

import (
	"context"
	"net/http"
	"time"
)

// CreateServer creates an HTTP server with the given address and handler.
// WriteTimeout is left unset: WebSocket sessions live on hijacked
// connections and manage their own deadlines.
func CreateServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// shutdownHTTP gracefully shuts down srv, waiting for in-flight requests
// until ctx is done.
func (s *Server) shutdownHTTP(ctx context.Context, srv *http.Server) error {
	s.logger.Info("shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
		return err
	}
	s.logger.Info("HTTP server shutdown completed")
	return nil
}
