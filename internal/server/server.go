package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/Tyrowin/linechat/internal/chat"
	"github.com/Tyrowin/linechat/internal/metrics"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
)

// Server runs the chat core behind a TCP listener and an optional HTTP
// listener carrying the WebSocket gateway.
type Server struct {
	cfg      Config
	logger   *slog.Logger
	chat     *chat.Server
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
	upgrader websocket.Upgrader

	// conns tracks connection read loops.
	conns sync.WaitGroup
}

// New builds a Server from cfg. Metrics are registered with reg.
func New(cfg Config, logger *slog.Logger, reg *prometheus.Registry) *Server {
	cfg = cfg.Sanitize()
	if logger == nil {
		logger = slog.Default()
	}
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := metrics.New(reg, metrics.DefaultNamespace)
	origins := newOriginPolicy(cfg.AllowedOrigins, logger)

	return &Server{
		cfg:      cfg,
		logger:   logger,
		metrics:  m,
		gatherer: reg,
		chat: chat.NewServer(
			chat.WithLogger(logger),
			chat.WithMetrics(m),
			chat.WithHistorySize(cfg.HistorySize),
			chat.WithQueueSize(cfg.SendQueueSize),
		),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     origins.check,
		},
	}
}

// Chat returns the chat core.
func (s *Server) Chat() *chat.Server { return s.chat }

// Run listens on the configured addresses and serves until ctx is done or a
// listener fails, then shuts everything down.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Addr, err)
	}

	errCh := make(chan error, 2)
	go func() {
		errCh <- s.ServeTCP(ctx, ln)
	}()

	var httpServer *http.Server
	if s.cfg.HTTPAddr != "" {
		httpServer = CreateServer(s.cfg.HTTPAddr, s.Routes())
		go func() {
			s.logger.Info("HTTP server listening", "addr", s.cfg.HTTPAddr)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("http server: %w", err)
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		s.logger.Info("shutdown requested")
	case runErr = <-errCh:
		if runErr != nil {
			s.logger.Error("listener failed", "error", runErr)
		}
	}

	if err := s.Shutdown(ln, httpServer, s.cfg.ShutdownTimeout); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// Shutdown stops accepting clients, closes every session and waits for the
// connection goroutines to finish. The HTTP drain and the session drain share
// one deadline, timeout from now. ln and httpServer may be nil.
func (s *Server) Shutdown(ln net.Listener, httpServer *http.Server, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if ln != nil {
		if err := ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			s.logger.Warn("error closing listener", "error", err)
		}
	}

	var errs []error
	if httpServer != nil {
		errs = append(errs, s.shutdownHTTP(ctx, httpServer))
	}
	errs = append(errs, s.chat.Shutdown(ctx))

	done := make(chan struct{})
	go func() {
		s.conns.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("timed out waiting for connections to close")
		errs = append(errs, ctx.Err())
	}

	return errors.Join(errs...)
}
