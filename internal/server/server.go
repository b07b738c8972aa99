// Package server exposes the HTTP surface: the SSE and WebSocket streams,
// the snapshot REST API, health endpoints, and Prometheus metrics.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/entropy-jam/kalitraf-current/internal/domain"
	"github.com/entropy-jam/kalitraf-current/internal/hub"
	"github.com/entropy-jam/kalitraf-current/internal/platform/config"
)

// ReadinessChecker reports whether an optional external dependency is
// reachable. Nil means the dependency is not configured and is skipped.
type ReadinessChecker interface {
	Ping(ctx context.Context) error
}

type Server struct {
	echo      *echo.Echo
	config    *config.Config
	sources   []domain.Source
	store     domain.SnapshotStore
	hub       *hub.Hub
	clock     clockwork.Clock
	readiness ReadinessChecker
	startTime time.Time
}

func NewServer(cfg *config.Config, sources []domain.Source, store domain.SnapshotStore, h *hub.Hub, clock clockwork.Clock, readiness ReadinessChecker) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	srv := &Server{
		echo:      e,
		config:    cfg,
		sources:   sources,
		store:     store,
		hub:       h,
		clock:     clock,
		readiness: readiness,
		startTime: clock.Now(),
	}
	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	return s.echo.Start(fmt.Sprintf(":%s", s.config.Port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// currentStates assembles one SourceState per configured source, in catalog
// order. Never-polled sources report an empty incident list.
func (s *Server) currentStates() []domain.SourceState {
	now := s.clock.Now()
	states := make([]domain.SourceState, 0, len(s.sources))
	for _, src := range s.sources {
		incidents, _ := s.store.Get(src.Code)
		states = append(states, domain.NewSourceState(src, incidents, now))
	}
	return states
}
