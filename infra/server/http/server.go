// Package http owns the process-wide HTTP listener. Handlers mount
// themselves through chi; the server only knows how to start and drain.
package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/boardkit/event-hub/config"
)

type Server struct {
	srv      *http.Server
	router   chi.Router
	logger   *slog.Logger
	drainFor time.Duration
}

func NewServer(cfg config.HTTPConfig, logger *slog.Logger) *Server {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)

	return &Server{
		router:   router,
		logger:   logger,
		drainFor: cfg.ShutdownTimeout,
		srv: &http.Server{
			Addr:              cfg.Addr,
			Handler:           router,
			ReadHeaderTimeout: cfg.ReadHeaderTimeout,
			// No WriteTimeout: SSE and long-poll responses stay open
			// for the life of the subscription.
		},
	}
}

func (s *Server) Router() chi.Router { return s.router }

// Start begins serving in the background and reports only startup errors.
func (s *Server) Start() {
	s.logger.Info("http server listening", "addr", s.srv.Addr)
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server terminated", "error", err)
		}
	}()
}

// Stop drains in-flight requests. Live subscriber streams are closed by the
// hub shutting down their connections; the grace period here covers the
// short-lived request handlers.
func (s *Server) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.drainFor)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
