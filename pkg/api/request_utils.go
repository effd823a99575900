package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"marquee/pkg/logger"
)

var (
	errMissingID = errors.New("missing id")
	errInvalidID = errors.New("invalid id")
)

func getPathSegments(r *http.Request, prefix string) []string {
	prefix = strings.TrimRight(prefix, "/")
	if !strings.HasPrefix(r.URL.Path, prefix) {
		return nil
	}
	path := strings.TrimPrefix(r.URL.Path, prefix)
	path = strings.TrimPrefix(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

// pathID extracts the numeric id that follows prefix in the request
// path, e.g. /api/library/movies/42 -> 42.
func pathID(r *http.Request, prefix string) (int64, error) {
	parts := getPathSegments(r, prefix)
	if len(parts) == 0 || parts[0] == "" {
		return 0, errMissingID
	}
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, errInvalidID
	}
	return id, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("Failed to encode response: %v", err)
	}
}

func jsonError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func readJSON(r *http.Request, dst interface{}) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
