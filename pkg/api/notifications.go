package api

import (
	"net/http"

	"marquee/pkg/state"
)

func (a *API) handleNotifications(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	notifications, err := a.state.Notifications()
	if err != nil {
		jsonError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if notifications == nil {
		notifications = []state.Notification{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"notifications": notifications})
}

// handleClearNotifications acknowledges the feed: pending notices are
// removed and the recent-change badges on library entries drop with
// them.
func (a *API) handleClearNotifications(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if err := a.state.ClearNotifications(); err != nil {
		jsonError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := a.store.ClearRecentChanges(); err != nil {
		jsonError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
