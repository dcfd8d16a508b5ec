package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/ABHI-11949/avatar/internal/events"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
)

// handleSessionEvents streams the session's lifecycle events until the
// session stops or the client goes away.
func (s *Server) handleSessionEvents(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(chi.URLParam(r, "session_id"))
	if s.hub == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "event hub not configured")
		return
	}
	feed, cancel, ok := s.subscribe(sessionID)
	if !ok {
		respondError(w, http.StatusNotFound, "session_not_found", "Session not found")
		return
	}
	defer cancel()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	// The read loop only services control frames and notices the close.
	readerDone := make(chan struct{})
	conn.SetReadLimit(4 << 10)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})
	go func() {
		defer close(readerDone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-readerDone:
			return
		case e, ok := <-feed:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session stopped"))
				return
			}
			if err := conn.WriteJSON(e); err != nil {
				s.metrics.ObserveDroppedEvent("websocket")
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// subscribe registers with the hub before checking the registry. A stop that
// lands after the check publishes into this subscription and closes it; one
// that landed before makes the check fail.
func (s *Server) subscribe(sessionID string) (<-chan events.Event, func(), bool) {
	feed, cancel := s.hub.Subscribe(sessionID)
	if !s.gateway.Exists(sessionID) {
		cancel()
		return nil, nil, false
	}
	return feed, cancel, true
}
