package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"marquee/pkg/library"
	"marquee/pkg/logger"
	"marquee/pkg/queue"
)

// addItemRequest covers both ways into the library: a TMDB id for a
// provider-backed add, or a manual payload with at least a title.
type addItemRequest struct {
	TmdbID int  `json:"tmdbId"`
	Manual bool `json:"manual"`

	Title        string `json:"title"`
	Overview     string `json:"overview"`
	ReleaseDate  string `json:"releaseDate"`
	Runtime      int    `json:"runtime"`
	FirstAirDate string `json:"firstAirDate"`
	Seasons      int    `json:"seasons"`
	Episodes     int    `json:"episodes"`
	Genres       string `json:"genres"`
	Cast         string `json:"cast"`
}

type patchItemRequest struct {
	Watched          *bool `json:"watched"`
	NotificationList *bool `json:"notificationList"`
	WatchedEpisodes  *int  `json:"watchedEpisodes"`
}

func (a *API) handleMovies(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		movies, err := a.store.ListMovies()
		if err != nil {
			jsonError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if movies == nil {
			movies = []library.Movie{}
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"movies": movies})

	case http.MethodPost:
		var req addItemRequest
		if err := readJSON(r, &req); err != nil {
			jsonError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Manual {
			if strings.TrimSpace(req.Title) == "" {
				jsonError(w, http.StatusBadRequest, "manual entries need a title")
				return
			}
			m := &library.Movie{
				Manual:      true,
				Title:       req.Title,
				Overview:    req.Overview,
				ReleaseDate: req.ReleaseDate,
				Runtime:     req.Runtime,
				Genres:      req.Genres,
				Cast:        req.Cast,
			}
			if err := a.store.AddMovie(m); err != nil {
				jsonError(w, http.StatusInternalServerError, err.Error())
				return
			}
			writeJSON(w, http.StatusCreated, m)
			return
		}
		if req.TmdbID <= 0 {
			jsonError(w, http.StatusBadRequest, "tmdbId is required")
			return
		}
		if _, err := a.store.GetMovieByTmdbID(req.TmdbID); err == nil {
			jsonError(w, http.StatusConflict, "already in the library")
			return
		}
		act := queue.NewActivity(queue.ActivityTypeAdd, fmt.Sprintf("Add movie #%d to the library", req.TmdbID), func() error {
			_, err := a.engine.AddMovie(context.Background(), req.TmdbID)
			return err
		})
		a.enqueue(w, act)

	default:
		jsonError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (a *API) handleMovieByID(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "/api/library/movies/")
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}
	m, err := a.store.GetMovie(id)
	if err != nil {
		if errors.Is(err, library.ErrNotFound) {
			jsonError(w, http.StatusNotFound, "not in the library")
			return
		}
		jsonError(w, http.StatusInternalServerError, err.Error())
		return
	}

	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, m)

	case http.MethodPatch:
		var req patchItemRequest
		if err := readJSON(r, &req); err != nil {
			jsonError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.WatchedEpisodes != nil {
			jsonError(w, http.StatusBadRequest, "watchedEpisodes only applies to series")
			return
		}
		if req.Watched != nil {
			if err := a.store.SetMovieWatched(id, *req.Watched); err != nil {
				jsonError(w, http.StatusInternalServerError, err.Error())
				return
			}
		}
		if req.NotificationList != nil {
			if err := a.store.SetMovieNotification(id, *req.NotificationList); err != nil {
				jsonError(w, http.StatusInternalServerError, err.Error())
				return
			}
		}
		updated, err := a.store.GetMovie(id)
		if err != nil {
			jsonError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, updated)

	case http.MethodDelete:
		act := queue.NewActivity(queue.ActivityTypeRemove, fmt.Sprintf("Remove %s from the library", m.Title), func() error {
			if err := a.store.DeleteMovie(id); err != nil {
				return err
			}
			a.removePosterFile(m.PosterPath)
			return nil
		})
		a.enqueue(w, act)

	default:
		jsonError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (a *API) handleSeries(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		series, err := a.store.ListSeries()
		if err != nil {
			jsonError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if series == nil {
			series = []library.Series{}
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"series": series})

	case http.MethodPost:
		var req addItemRequest
		if err := readJSON(r, &req); err != nil {
			jsonError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Manual {
			if strings.TrimSpace(req.Title) == "" {
				jsonError(w, http.StatusBadRequest, "manual entries need a title")
				return
			}
			sr := &library.Series{
				Manual:       true,
				Title:        req.Title,
				Overview:     req.Overview,
				FirstAirDate: req.FirstAirDate,
				Seasons:      req.Seasons,
				Episodes:     req.Episodes,
				Genres:       req.Genres,
				Cast:         req.Cast,
			}
			if err := a.store.AddSeries(sr); err != nil {
				jsonError(w, http.StatusInternalServerError, err.Error())
				return
			}
			writeJSON(w, http.StatusCreated, sr)
			return
		}
		if req.TmdbID <= 0 {
			jsonError(w, http.StatusBadRequest, "tmdbId is required")
			return
		}
		if _, err := a.store.GetSeriesByTmdbID(req.TmdbID); err == nil {
			jsonError(w, http.StatusConflict, "already in the library")
			return
		}
		act := queue.NewActivity(queue.ActivityTypeAdd, fmt.Sprintf("Add series #%d to the library", req.TmdbID), func() error {
			_, err := a.engine.AddSeries(context.Background(), req.TmdbID)
			return err
		})
		a.enqueue(w, act)

	default:
		jsonError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (a *API) handleSeriesByID(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "/api/library/series/")
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}
	sr, err := a.store.GetSeries(id)
	if err != nil {
		if errors.Is(err, library.ErrNotFound) {
			jsonError(w, http.StatusNotFound, "not in the library")
			return
		}
		jsonError(w, http.StatusInternalServerError, err.Error())
		return
	}

	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, sr)

	case http.MethodPatch:
		var req patchItemRequest
		if err := readJSON(r, &req); err != nil {
			jsonError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Watched != nil {
			if err := a.store.SetSeriesWatched(id, *req.Watched); err != nil {
				jsonError(w, http.StatusInternalServerError, err.Error())
				return
			}
		}
		if req.WatchedEpisodes != nil {
			if err := a.store.SetSeriesWatchedEpisodes(id, *req.WatchedEpisodes); err != nil {
				jsonError(w, http.StatusInternalServerError, err.Error())
				return
			}
		}
		if req.NotificationList != nil {
			if err := a.store.SetSeriesNotification(id, *req.NotificationList); err != nil {
				jsonError(w, http.StatusInternalServerError, err.Error())
				return
			}
		}
		updated, err := a.store.GetSeries(id)
		if err != nil {
			jsonError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, updated)

	case http.MethodDelete:
		act := queue.NewActivity(queue.ActivityTypeRemove, fmt.Sprintf("Remove %s from the library", sr.Title), func() error {
			if err := a.store.DeleteSeries(id); err != nil {
				return err
			}
			a.removePosterFile(sr.PosterPath)
			return nil
		})
		a.enqueue(w, act)

	default:
		jsonError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req struct {
		Kind string `json:"kind"`
		ID   int64  `json:"id"`
	}
	if err := readJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// No body means the whole library.
	if req.Kind == "" {
		var act *queue.Activity
		act = queue.NewActivity(queue.ActivityTypeUpdate, "Manual update", func() error {
			stats, err := a.engine.RefreshLibrary(context.Background())
			if err != nil {
				return err
			}
			if stats.Failed > 0 {
				act.MarkError()
			}
			return nil
		})
		a.enqueue(w, act)
		return
	}

	title, err := a.itemTitle(req.Kind, req.ID)
	if err != nil {
		if errors.Is(err, library.ErrNotFound) {
			jsonError(w, http.StatusNotFound, "not in the library")
			return
		}
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}
	kind, id := req.Kind, req.ID
	act := queue.NewActivity(queue.ActivityTypeUpdate, fmt.Sprintf("Update of %s", title), func() error {
		return a.engine.RefreshItem(context.Background(), kind, id)
	})
	a.enqueue(w, act)
}

func (a *API) itemTitle(kind string, id int64) (string, error) {
	switch kind {
	case "movie":
		m, err := a.store.GetMovie(id)
		if err != nil {
			return "", err
		}
		return m.Title, nil
	case "series":
		sr, err := a.store.GetSeries(id)
		if err != nil {
			return "", err
		}
		return sr.Title, nil
	}
	return "", fmt.Errorf("unknown kind %q", kind)
}

// removePosterFile deletes the cached poster for an entry that left
// the library. Posters are shared caches, a miss is not an error.
func (a *API) removePosterFile(posterPath string) {
	if posterPath == "" {
		return
	}
	name := strings.TrimPrefix(posterPath, "/")
	if name == "" || strings.Contains(name, "/") {
		return
	}
	if err := os.Remove(filepath.Join(a.cfg.PostersDir(), name)); err != nil && !os.IsNotExist(err) {
		logger.Warn("Could not remove cached poster %s: %v", name, err)
	}
}
