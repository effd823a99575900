package api

import (
	"net/http"
	"strings"

	"marquee/pkg/tmdb"
)

func (a *API) handleSearchMovies(w http.ResponseWriter, r *http.Request) {
	query, ok := searchQuery(w, r)
	if !ok {
		return
	}
	results, err := a.tmdb.SearchMovies(r.Context(), query)
	if err != nil {
		a.providerError(w, err)
		return
	}
	if results == nil {
		results = []tmdb.Movie{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"results": results})
}

func (a *API) handleSearchSeries(w http.ResponseWriter, r *http.Request) {
	query, ok := searchQuery(w, r)
	if !ok {
		return
	}
	results, err := a.tmdb.SearchSeries(r.Context(), query)
	if err != nil {
		a.providerError(w, err)
		return
	}
	if results == nil {
		results = []tmdb.Series{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"results": results})
}

func searchQuery(w http.ResponseWriter, r *http.Request) (string, bool) {
	if r.Method != http.MethodGet {
		jsonError(w, http.StatusMethodNotAllowed, "method not allowed")
		return "", false
	}
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		jsonError(w, http.StatusBadRequest, "missing q parameter")
		return "", false
	}
	return query, true
}
