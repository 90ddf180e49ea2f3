// AngelaMos | 2026
// server.go

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/carterperez-dev/bookshelf/internal/config"
	"github.com/carterperez-dev/bookshelf/internal/health"
)

const readHeaderTimeout = 5 * time.Second

type Config struct {
	ServerConfig  config.ServerConfig
	HealthHandler *health.Handler
	Logger        *slog.Logger
}

type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	health     *health.Handler
	logger     *slog.Logger
	cfg        config.ServerConfig
}

func New(cfg Config) *Server {
	router := chi.NewRouter()
	router.Use(chimw.Recoverer)

	addr := net.JoinHostPort(cfg.ServerConfig.Host, strconv.Itoa(cfg.ServerConfig.Port))

	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           router,
			ReadHeaderTimeout: readHeaderTimeout,
			ReadTimeout:       cfg.ServerConfig.ReadTimeout,
			WriteTimeout:      cfg.ServerConfig.WriteTimeout,
			IdleTimeout:       cfg.ServerConfig.IdleTimeout,
		},
		router: router,
		health: cfg.HealthHandler,
		logger: cfg.Logger,
		cfg:    cfg.ServerConfig,
	}
}

func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start blocks serving HTTP until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.httpServer.Addr)

	if err := s.httpServer.ListenAndServe(); err != nil &&
		!errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown fails readiness first, waits drainDelay so load balancers stop
// routing here, then stops accepting and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context, drainDelay time.Duration) error {
	if s.health != nil {
		s.health.SetShutdown(true)
	}

	s.logger.Info("draining connections", "delay", drainDelay)

	select {
	case <-time.After(drainDelay):
	case <-ctx.Done():
		return ctx.Err()
	}

	shutdownCtx := ctx
	if s.cfg.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		shutdownCtx, cancel = context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
		defer cancel()
	}

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}

	s.logger.Info("http server stopped")
	return nil
}
