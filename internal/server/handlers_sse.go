package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/entropy-jam/kalitraf-current/internal/domain"
)

const sseWriteTimeout = 10 * time.Second

// handleSSE streams hub frames as server-sent events. The connection ends
// when the client goes away, the hub evicts the subscriber, or the server
// shuts down. An idle stream carries heartbeats so intermediaries keep the
// connection open; any real frame resets the heartbeat timer.
func (s *Server) handleSSE(c echo.Context) error {
	sub, err := s.hub.Register()
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
	}
	defer s.hub.Unregister(sub.ID)

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set(echo.HeaderCacheControl, "no-cache")
	res.Header().Set(echo.HeaderConnection, "keep-alive")
	res.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(res)

	heartbeat := s.clock.NewTicker(s.config.HeartbeatInterval)
	defer heartbeat.Stop()

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil

		case frame, ok := <-sub.Events():
			if !ok {
				return nil
			}
			if err := writeSSEFrame(rc, res, frame); err != nil {
				return nil
			}
			heartbeat.Reset(s.config.HeartbeatInterval)

		case <-heartbeat.Chan():
			frame, err := s.heartbeatFrame()
			if err != nil {
				return nil
			}
			if err := writeSSEFrame(rc, res, frame); err != nil {
				return nil
			}
		}
	}
}

func writeSSEFrame(rc *http.ResponseController, res *echo.Response, frame []byte) error {
	_ = rc.SetWriteDeadline(time.Now().Add(sseWriteTimeout))
	if _, err := fmt.Fprintf(res, "data: %s\n\n", frame); err != nil {
		return err
	}
	res.Flush()
	return nil
}

func (s *Server) heartbeatFrame() ([]byte, error) {
	return json.Marshal(domain.NewHeartbeatEvent(s.clock.Now()))
}
