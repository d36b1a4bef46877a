// AngelaMos | 2026
// server.go

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/carterperez-dev/harvest-table/internal/config"
)

type HealthState interface {
	SetReady(ready bool)
	SetShutdown(shutdown bool)
}

type Config struct {
	ServerConfig  config.ServerConfig
	HealthHandler HealthState
	Logger        *slog.Logger
}

type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	health     HealthState
	logger     *slog.Logger
}

func New(cfg Config) *Server {
	router := chi.NewRouter()
	router.Use(chimw.Recoverer)

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Server{
		router: router,
		health: cfg.HealthHandler,
		logger: logger,
		httpServer: &http.Server{
			Addr:              cfg.ServerConfig.Address(),
			Handler:           router,
			ReadTimeout:       cfg.ServerConfig.ReadTimeout,
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      cfg.ServerConfig.WriteTimeout,
			IdleTimeout:       cfg.ServerConfig.IdleTimeout,
			ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelError),
		},
	}
}

func (s *Server) Router() chi.Router {
	return s.router
}

func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.httpServer.Addr)

	if err := s.httpServer.ListenAndServe(); err != nil &&
		!errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen and serve: %w", err)
	}

	return nil
}

// Shutdown flips readiness off, waits drainDelay so load balancers stop
// routing new traffic, then drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context, drainDelay time.Duration) error {
	if s.health != nil {
		s.health.SetReady(false)
		s.health.SetShutdown(true)
	}

	select {
	case <-time.After(drainDelay):
	case <-ctx.Done():
		return ctx.Err()
	}

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}

	return nil
}
