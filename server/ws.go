package server

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/runtime"
)

const writeWait = 10 * time.Second

// streamRoom upgrades the request to a WebSocket and bridges the caller's
// registry connection onto it. The membership gate runs before the upgrade
// so rejected callers get a plain HTTP status instead of a dead socket.
func (s *Server) streamRoom(w http.ResponseWriter, r *http.Request) {
	room := domain.RoomID(mux.Vars(r)["room"])
	if !s.service.IsMember(callerID(r), room) {
		s.writeError(w, errors.ErrNotMember)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WarnContext(r.Context(), "websocket upgrade failed", "error", err)
		return
	}

	conn := s.registry.Subscribe(room)
	s.log.InfoContext(r.Context(), "stream opened",
		"connection_id", conn.ID, "room_id", room, "user_id", callerID(r))

	// The stream is one-way. Reads only detect the client going away.
	go func() {
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				conn.Complete()
				return
			}
		}
	}()

	defer func() {
		_ = ws.Close()
		s.log.InfoContext(r.Context(), "stream closed",
			"connection_id", conn.ID, "room_id", room, "reason", conn.Reason())
	}()

	for {
		select {
		case <-conn.Done():
			if conn.Reason() == runtime.CloseTimedOut {
				deadline := time.Now().Add(writeWait)
				_ = ws.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "session lifetime exceeded"),
					deadline)
			}
			return
		case frame := <-conn.Frames():
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteJSON(frame); err != nil {
				conn.Fail(err)
				return
			}
		}
	}
}
