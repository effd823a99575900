package api

import (
	"fmt"
	"net/http"

	"marquee/pkg/config"
)

// handleConfig exposes the editable settings. Secrets come back
// masked; posting values persists them to the .env file and notifies
// subscribers so the scheduler picks changes up immediately.
func (a *API) handleConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]interface{}{"values": config.Values()})

	case http.MethodPost:
		var updates map[string]string
		if err := readJSON(r, &updates); err != nil {
			jsonError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if len(updates) == 0 {
			jsonError(w, http.StatusBadRequest, "no values to update")
			return
		}
		for key := range updates {
			if !config.KnownKey(key) {
				jsonError(w, http.StatusBadRequest, fmt.Sprintf("unknown key %s", key))
				return
			}
		}
		if err := config.Save(updates); err != nil {
			jsonError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"values": config.Values()})

	default:
		jsonError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}
