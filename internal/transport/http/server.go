package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/davidluisklein/wire-price-change/internal/config"
	"github.com/davidluisklein/wire-price-change/internal/session"
)

// Server runs the operator surface until its context is cancelled.
type Server struct {
	server   *http.Server
	sessions *session.Manager
	cfg      config.ServerConfig
	logger   *slog.Logger
}

// NewServer creates a Server for handler. sessions are released on shutdown.
func NewServer(cfg config.ServerConfig, handler http.Handler, sessions *session.Manager, logger *slog.Logger) *Server {
	return &Server{
		server: &http.Server{
			Addr:         cfg.Addr,
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
		sessions: sessions,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "server")),
	}
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.InfoContext(ctx, "Server listening", slog.String("addr", s.cfg.Addr))
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	err := s.server.Shutdown(shutdownCtx)
	if s.sessions != nil {
		if closeErr := s.sessions.Close(); closeErr != nil {
			s.logger.Warn("Failed to release sessions", slog.String("error", closeErr.Error()))
		}
	}
	if err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}
	return nil
}
