package server

import (
	"net/http"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// CORS is permissive across the whole API; the stream matches.
	CheckOrigin: func(*http.Request) bool { return true },
}

// handleBlockStream upgrades the connection and forwards block events
// until the subscriber disconnects or the write side fails. A reader
// goroutine drains incoming frames so close handshakes are honored;
// either side terminating tears the connection down.
func (s *Server) handleBlockStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("WebSocket upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}
	sub := s.bus.Subscribe()
	defer func() {
		sub.Unsubscribe()
		conn.Close()
	}()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	s.log.Debug("Stream subscriber attached", "remote", r.RemoteAddr)
	for {
		select {
		case <-closed:
			s.log.Debug("Stream subscriber disconnected", "remote", r.RemoteAddr)
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				s.log.Debug("Stream write failed", "remote", r.RemoteAddr, "err", err)
				return
			}
		}
	}
}
