package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const (
	wsWriteTimeout = 5 * time.Second
	wsPingInterval = 30 * time.Second
	wsPongDeadline = 60 * time.Second
	wsReadLimit    = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // public read-only stream
	},
}

// handleWebSocket serves the same event stream over a WebSocket. The write
// pump owns the connection for writes; the read pump only consumes control
// frames and detects disconnects.
func (s *Server) handleWebSocket(c echo.Context) error {
	sub, err := s.hub.Register()
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.hub.Unregister(sub.ID)
		return nil
	}

	go s.writePump(conn, sub.Events())

	conn.SetReadLimit(wsReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongDeadline))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongDeadline))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	s.hub.Unregister(sub.ID)
	return nil
}

// writePump forwards hub frames and keeps the connection alive with pings.
// A closed events channel means the hub dropped the subscriber; the pump
// sends a close frame so the client knows the stream ended on purpose.
func (s *Server) writePump(conn *websocket.Conn, events <-chan []byte) {
	ping := s.clock.NewTicker(wsPingInterval)
	defer ping.Stop()

	for {
		select {
		case frame, ok := <-events:
			if !ok {
				msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "stream closed")
				_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsWriteTimeout))
				_ = conn.Close()
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				_ = conn.Close()
				return
			}

		case <-ping.Chan():
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = conn.Close()
				return
			}
		}
	}
}
