package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"jsonrelay/internal/pkg/logger"
)

// Server represents the HTTP listener and its lifecycle
type Server struct {
	addr            string
	server          *http.Server
	log             *logger.Logger
	shutdownTimeout time.Duration
}

// New creates a new Server instance
func New(addr string, log *logger.Logger) *Server {
	return &Server{
		addr:            addr,
		log:             log,
		shutdownTimeout: 10 * time.Second,
	}
}

// serve runs handler until ctx is cancelled, then shuts down gracefully.
func (s *Server) serve(ctx context.Context, handler http.Handler, readTimeout, writeTimeout time.Duration) error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      handler,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("Starting jsonrelay", zap.String("addr", s.addr))
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

	s.log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	return s.server.Shutdown(shutdownCtx)
}
