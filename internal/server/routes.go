package server

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() {
	// Observability
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Streaming
	s.echo.GET("/events", s.handleSSE)
	s.echo.GET("/ws", s.handleWebSocket)

	// Snapshot API
	s.echo.GET("/api/sources", s.handleSources)
	s.echo.GET("/api/incidents", s.handleIncidents)
	s.echo.GET("/api/incidents/:code", s.handleIncidentsByCode)
}
