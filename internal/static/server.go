package static

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"go.uber.org/zap/zapio"
)

const shutdownTimeout = 5 * time.Second

// Config holds server settings.
type Config struct {
	// Host is the interface to bind; empty binds all.
	Host      string
	Port      int
	AssetRoot string
}

// Server is the HTTP front of the responder.
type Server struct {
	server *http.Server
	access *zapio.Writer
	logger *zap.Logger
}

// NewServer builds a server for cfg. Every request is written to the access
// log in combined log format.
func NewServer(cfg Config, logger *zap.Logger) *Server {
	logger = logger.With(zap.String("component", "http"))
	access := &zapio.Writer{Log: logger.Named("access"), Level: zap.InfoLevel}

	r := mux.NewRouter()
	r.PathPrefix("/").Handler(NewResponder(cfg.AssetRoot, logger))

	return &Server{
		server: &http.Server{
			Addr:              net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
			Handler:           handlers.CombinedLoggingHandler(access, r),
			ReadHeaderTimeout: time.Second,
			IdleTimeout:       30 * time.Second,
		},
		access: access,
		logger: logger,
	}
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.server.Addr
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.server.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	defer s.access.Close()

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.server.Serve(ln)
	}()

	s.logger.Info("Static server listening", zap.String("addr", ln.Addr().String()))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.logger.Info("Static server stopped")
	return nil
}
