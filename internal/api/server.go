// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package api serves the local status endpoints of a running genplay session.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ManuGH/genplay/internal/api/middleware"
	"github.com/ManuGH/genplay/internal/app"
	"github.com/ManuGH/genplay/internal/health"
	xglog "github.com/ManuGH/genplay/internal/log"
)

// StateSource exposes the current view state.
type StateSource interface {
	State() app.State
}

// Config holds status server settings.
type Config struct {
	Addr               string
	RateLimitPerMinute int
	TracingService     string
	ShutdownTimeout    time.Duration
	// Health answers /healthz and /readyz. Nil serves a manager without checks.
	Health *health.Manager
}

// Server is the local status server.
type Server struct {
	cfg Config
	src StateSource
}

// New creates a status server over src.
func New(cfg Config, src StateSource) *Server {
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 5 * time.Second
	}
	if cfg.Health == nil {
		cfg.Health = health.NewManager("")
	}
	return &Server{cfg: cfg, src: src}
}

// Handler returns the routed handler with the middleware stack applied.
func (s *Server) Handler() http.Handler {
	r := middleware.NewRouter(middleware.StackConfig{
		EnableMetrics:      true,
		TracingService:     s.cfg.TracingService,
		EnableLogging:      true,
		RateLimitPerMinute: s.cfg.RateLimitPerMinute,
	})
	r.Get("/healthz", s.cfg.Health.ServeHealth)
	r.Get("/readyz", s.cfg.Health.ServeReady)
	r.Get("/api/v1/session", s.handleSession)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	})
	return r
}

// Run listens on the configured address and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("status server listen %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       30 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	logger := xglog.WithComponent("api")
	logger.Info().
		Str(xglog.FieldEvent, "status.listen").
		Str("addr", ln.Addr().String()).
		Msg("status server listening")

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("status server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		_ = srv.Close()
		<-errCh
		return fmt.Errorf("status server shutdown: %w", err)
	}
	<-errCh
	logger.Info().Str(xglog.FieldEvent, "status.stopped").Msg("status server stopped")
	return nil
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	if s.src == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "no session"})
		return
	}
	writeJSON(w, http.StatusOK, s.src.State())
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
