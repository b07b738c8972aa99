package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/entropy-jam/kalitraf-current/internal/domain"
)

func (s *Server) handleSources(c echo.Context) error {
	return c.JSON(http.StatusOK, s.sources)
}

func (s *Server) handleIncidents(c echo.Context) error {
	return c.JSON(http.StatusOK, s.currentStates())
}

func (s *Server) handleIncidentsByCode(c echo.Context) error {
	code := c.Param("code")

	for _, src := range s.sources {
		if src.Code != code {
			continue
		}
		incidents, _ := s.store.Get(code)
		return c.JSON(http.StatusOK, domain.NewSourceState(src, incidents, s.clock.Now()))
	}

	return c.JSON(http.StatusNotFound, map[string]string{"error": "unknown source code"})
}
