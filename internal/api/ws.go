package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/rflorenc/facility-workbench/internal/notify"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

const pingInterval = 30 * time.Second

// ListNotifications returns the live notification queue.
func (s *Server) ListNotifications(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Notes.List())
}

func (s *Server) DismissNotification(w http.ResponseWriter, r *http.Request) {
	if !s.Notes.Dismiss(chi.URLParam(r, "id")) {
		writeError(w, http.StatusNotFound, "notification not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// StreamNotifications pushes notification events over WebSocket. The
// current queue is sent first as "added" events.
func (s *Server) StreamNotifications(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	events, unsubscribe := s.Notes.Subscribe(32)
	defer unsubscribe()

	replayed := newReplaySet()
	for _, n := range s.Notes.List() {
		if err := conn.WriteJSON(notify.Event{Kind: notify.EventAdded, Notification: n}); err != nil {
			return
		}
		replayed.add(n.ID)
	}

	// Reader goroutine: detects client close.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "shutting down"))
				return
			}
			if replayed.skip(ev) {
				continue
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-gone:
			return
		case <-r.Context().Done():
			return
		}
	}
}

// replaySet remembers notifications sent from the initial queue so an
// "added" event raised between Subscribe and List is not sent twice.
type replaySet map[string]struct{}

func newReplaySet() replaySet { return make(replaySet) }

func (r replaySet) add(id string) { r[id] = struct{}{} }

func (r replaySet) skip(ev notify.Event) bool {
	if ev.Kind != notify.EventAdded {
		return false
	}
	if _, ok := r[ev.Notification.ID]; ok {
		delete(r, ev.Notification.ID)
		return true
	}
	return false
}
