package server

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/entropy-jam/kalitraf-current/internal/platform/version"
)

func (s *Server) handleHealth(c echo.Context) error {
	body := map[string]any{
		"status":         "ok",
		"uptime_seconds": s.clock.Since(s.startTime).Seconds(),
		"sources":        len(s.sources),
		"subscribers":    s.hub.SubscriberCount(),
		"version":        version.Get(),
	}

	if s.readiness != nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()

		if err := s.readiness.Ping(ctx); err != nil {
			body["status"] = "degraded"
			body["redis_error"] = err.Error()
			return c.JSON(http.StatusServiceUnavailable, body)
		}
	}

	return c.JSON(http.StatusOK, body)
}

func (s *Server) handleLiveness(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": s.clock.Since(s.startTime).Seconds(),
	})
}
