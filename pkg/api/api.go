package api

import (
	"errors"
	"net/http"
	"time"

	"marquee/pkg/archive"
	"marquee/pkg/auth"
	"marquee/pkg/config"
	"marquee/pkg/library"
	"marquee/pkg/logger"
	"marquee/pkg/queue"
	"marquee/pkg/refresh"
	"marquee/pkg/state"
	"marquee/pkg/tmdb"
)

// Version is reported by the health endpoint
const Version = "v1.0.0"

// API carries the handlers for the JSON endpoints. Every dependency
// is injected, nothing lives at package level.
type API struct {
	cfg     *config.Config
	store   *library.Store
	state   *state.Store
	queue   *queue.Queue
	tmdb    *tmdb.Client
	engine  *refresh.Engine
	archive *archive.Manager

	startedAt time.Time
}

func New(cfg *config.Config, store *library.Store, st *state.Store, q *queue.Queue, client *tmdb.Client, engine *refresh.Engine, manager *archive.Manager) *API {
	return &API{
		cfg:       cfg,
		store:     store,
		state:     st,
		queue:     q,
		tmdb:      client,
		engine:    engine,
		archive:   manager,
		startedAt: time.Now(),
	}
}

// Register wires every endpoint onto mux.
func (a *API) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/health", a.handleHealth)

	mux.HandleFunc("/api/auth/login", auth.HandleLogin)
	mux.HandleFunc("/api/auth/enabled", auth.HandleEnabled)
	mux.HandleFunc("/api/auth/check", auth.HandleAuthCheck)
	mux.HandleFunc("/api/auth/me", auth.HandleMe)

	mux.HandleFunc("/api/search/movies", a.handleSearchMovies)
	mux.HandleFunc("/api/search/series", a.handleSearchSeries)

	mux.HandleFunc("/api/library/movies", a.handleMovies)
	mux.HandleFunc("/api/library/movies/", a.handleMovieByID)
	mux.HandleFunc("/api/library/series", a.handleSeries)
	mux.HandleFunc("/api/library/series/", a.handleSeriesByID)
	mux.HandleFunc("/api/library/refresh", a.handleRefresh)
	mux.HandleFunc("/api/library/export", a.handleExport)
	mux.HandleFunc("/api/library/import", a.handleImport)
	mux.HandleFunc("/api/exports", a.handleExports)

	mux.HandleFunc("/api/activities", a.handleActivities)
	mux.HandleFunc("/api/activities/ws", a.handleActivitiesWS)

	mux.HandleFunc("/api/notifications", a.handleNotifications)
	mux.HandleFunc("/api/notifications/clear", a.handleClearNotifications)

	mux.HandleFunc("/api/config", a.handleConfig)
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	movies, series, err := a.store.Counts()
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "library unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "ok",
		"version":    Version,
		"uptime":     int64(time.Since(a.startedAt).Seconds()),
		"movies":     movies,
		"series":     series,
		"queueDepth": a.queue.Depth(),
		"offline":    config.OfflineMode(),
	})
}

// enqueue admits an activity with history recording attached and
// answers 202 with the activity id. It reports whether the activity
// was admitted so callers can clean up staged files.
func (a *API) enqueue(w http.ResponseWriter, act *queue.Activity) bool {
	if err := a.queue.EnqueueWithCallback(act, refresh.RecordCompletion(a.state)); err != nil {
		if errors.Is(err, queue.ErrQueueFull) {
			jsonError(w, http.StatusTooManyRequests, "too many running activities, try again later")
			return false
		}
		jsonError(w, http.StatusServiceUnavailable, err.Error())
		return false
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"activityId": act.ID()})
	return true
}

// providerError translates metadata provider failures into response
// codes.
func (a *API) providerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, tmdb.ErrOffline):
		jsonError(w, http.StatusServiceUnavailable, "offline mode is enabled")
	case tmdb.IsNotFound(err):
		jsonError(w, http.StatusNotFound, "not found at TMDB")
	default:
		logger.Error("Provider request failed: %v", err)
		jsonError(w, http.StatusBadGateway, "metadata provider unavailable")
	}
}
