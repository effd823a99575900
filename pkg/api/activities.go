package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"marquee/pkg/logger"
	"marquee/pkg/queue"
	"marquee/pkg/state"
)

const defaultHistoryLimit = 50

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// handleActivities answers with the live queue plus the persisted
// history, newest first.
func (a *API) handleActivities(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			jsonError(w, http.StatusBadRequest, "invalid limit parameter")
			return
		}
		limit = n
	}

	history, err := a.state.RecentActivities(limit)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if history == nil {
		history = []state.ActivityRecord{}
	}

	live := a.queue.Snapshot()
	if live == nil {
		live = []queue.Snapshot{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"live":    live,
		"history": history,
	})
}

// handleActivitiesWS streams status updates over a WebSocket. The
// current queue state is sent first so clients need no separate
// fetch.
func (a *API) handleActivitiesWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed: %v", err)
		return
	}

	updates := a.queue.Subscribe()
	defer func() {
		a.queue.Unsubscribe(updates)
		conn.Close()
	}()

	// Drain client frames so pongs are processed and closes surface.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for _, snap := range a.queue.Snapshot() {
		update := queue.StatusUpdate{
			ActivityID: snap.ID,
			Type:       snap.Type,
			Title:      snap.Title,
			Status:     snap.Status,
			Timestamp:  time.Now(),
		}
		if err := conn.WriteJSON(update); err != nil {
			return
		}
	}

	ping := time.NewTicker(15 * time.Second)
	defer ping.Stop()
	for {
		select {
		case update, ok := <-updates:
			if !ok {
				return
			}
			if err := conn.WriteJSON(update); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
