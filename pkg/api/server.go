// Package api exposes the chat front-end over HTTP: a webhook endpoint for
// inbound messages, a health probe, and an authenticated admin surface.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/Mindburn-Labs/pact/pkg/dispatch"
)

// Server is the HTTP front door.
type Server struct {
	dispatcher *dispatch.Dispatcher
	sweeper    SweepRunner
	limiter    *SenderRateLimiter
	admin      *AdminAuth
	logger     *slog.Logger
	middleware []func(http.Handler) http.Handler
}

// NewServer wires handlers to their collaborators.
func NewServer(dispatcher *dispatch.Dispatcher, sweeper SweepRunner, limiter *SenderRateLimiter, admin *AdminAuth, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		dispatcher: dispatcher,
		sweeper:    sweeper,
		limiter:    limiter,
		admin:      admin,
		logger:     logger,
	}
}

// Use appends outer middleware, e.g. telemetry instrumentation.
func (s *Server) Use(mw func(http.Handler) http.Handler) *Server {
	s.middleware = append(s.middleware, mw)
	return s
}

// Handler builds the full route table with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/webhook", s.HandleWebhook)
	mux.HandleFunc("/v1/health", s.HandleHealth)
	mux.Handle("/v1/admin/sweep", s.admin.Middleware(http.HandlerFunc(s.HandleSweep)))

	var h http.Handler = RequestIDMiddleware(mux)
	for i := len(s.middleware) - 1; i >= 0; i-- {
		h = s.middleware[i](h)
	}
	return h
}

// ListenAndServe runs the server until ctx is cancelled, then drains
// in-flight requests.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
