package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocket keepalive parameters.
const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The stream carries no credentials and serves the bundled UI;
	// same-origin enforcement happens at the reverse proxy.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleStream upgrades to a WebSocket and relays bus events as JSON
// until the client goes away. A slow client misses events (bus
// semantics) instead of stalling agent runs.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ch := s.bus.Subscribe(256)
	defer s.bus.Unsubscribe(ch)

	s.logger.Debug("stream client connected", "remote", r.RemoteAddr)

	// Reader goroutine: we never expect client frames, but reading is
	// required to process pong/close control messages.
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(512)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case evt, ok := <-ch:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(evt); err != nil {
				s.logger.Debug("stream client write failed", "remote", r.RemoteAddr, "error", err)
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		case <-r.Context().Done():
			return
		}
	}
}
