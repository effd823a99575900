package tmdb

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(Options{
		APIKey:       "test-key",
		Language:     "en",
		Region:       "US",
		BaseURL:      srv.URL,
		ImageBaseURL: srv.URL,
	})
	require.NoError(t, err)
	return c
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	_, err := NewClient(Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TMDB_API_KEY")
}

func TestSearchMoviesSendsQueryParams(t *testing.T) {
	var gotQuery atomic.Value
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery.Store(r.URL.Query())
		w.Write([]byte(`{"results":[{"id":603,"title":"The Matrix","release_date":"1999-03-31"}]}`))
	}))

	movies, err := c.SearchMovies(context.Background(), "matrix")
	require.NoError(t, err)
	require.Len(t, movies, 1)
	assert.Equal(t, 603, movies[0].ID)
	assert.Equal(t, "The Matrix", movies[0].Title)

	q := gotQuery.Load().(url.Values)
	assert.Equal(t, []string{"test-key"}, q["api_key"])
	assert.Equal(t, []string{"matrix"}, q["query"])
	assert.Equal(t, []string{"en"}, q["language"])
	assert.Equal(t, []string{"US"}, q["region"])
}

func TestMovieDetails(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/movie/603", r.URL.Path)
		assert.Equal(t, "credits", r.URL.Query().Get("append_to_response"))
		w.Write([]byte(`{
			"id": 603,
			"title": "The Matrix",
			"overview": "A hacker learns the truth.",
			"poster_path": "/matrix.jpg",
			"release_date": "1999-03-31",
			"runtime": 136,
			"status": "Released",
			"genres": [{"id":28,"name":"Action"},{"id":878,"name":"Science Fiction"}],
			"credits": {"cast":[
				{"name":"Keanu Reeves","character":"Neo","order":0},
				{"name":"Laurence Fishburne","character":"Morpheus","order":1}
			]}
		}`))
	}))

	movie, err := c.MovieDetails(context.Background(), 603)
	require.NoError(t, err)
	assert.Equal(t, "The Matrix", movie.Title)
	assert.Equal(t, 136, movie.Runtime)
	assert.Equal(t, "Action, Science Fiction", movie.GenreNames())
	assert.Equal(t, "Keanu Reeves, Laurence Fishburne", movie.CastNames())
	assert.Equal(t, tmdbImageBase+"/matrix.jpg", movie.PosterURL())
}

func TestSeriesDetailsEpisodeDates(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tv/1396", r.URL.Path)
		w.Write([]byte(`{
			"id": 1396,
			"name": "Breaking Bad",
			"first_air_date": "2008-01-20",
			"last_air_date": "2013-09-29",
			"in_production": false,
			"number_of_seasons": 5,
			"number_of_episodes": 62,
			"last_episode_to_air": {"air_date":"2013-09-29","season_number":5,"episode_number":16},
			"next_episode_to_air": null
		}`))
	}))

	series, err := c.SeriesDetails(context.Background(), 1396)
	require.NoError(t, err)
	assert.Equal(t, "Breaking Bad", series.Name)
	assert.Equal(t, "2013-09-29", series.LastAirDate)
	assert.False(t, series.InProduction)
	require.NotNil(t, series.LastEpisode)
	assert.Equal(t, 16, series.LastEpisode.EpisodeNumber)
	assert.Equal(t, "", series.NextAirDate())
}

func TestDetailsAreCached(t *testing.T) {
	var hits atomic.Int64
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(`{"id":603,"title":"The Matrix"}`))
	}))

	for i := 0; i < 3; i++ {
		movie, err := c.MovieDetails(context.Background(), 603)
		require.NoError(t, err)
		assert.Equal(t, "The Matrix", movie.Title)
	}
	assert.Equal(t, int64(1), hits.Load(), "repeated detail lookups should be served from cache")
}

func TestSearchesAreNotCached(t *testing.T) {
	var hits atomic.Int64
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(`{"results":[]}`))
	}))

	for i := 0; i < 2; i++ {
		_, err := c.SearchMovies(context.Background(), "matrix")
		require.NoError(t, err)
	}
	assert.Equal(t, int64(2), hits.Load())
}

func TestOfflineModeShortCircuits(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	t.Cleanup(srv.Close)

	offline := true
	c, err := NewClient(Options{
		APIKey:  "test-key",
		Offline: func() bool { return offline },
		BaseURL: srv.URL,
	})
	require.NoError(t, err)

	_, err = c.SearchMovies(context.Background(), "matrix")
	require.ErrorIs(t, err, ErrOffline)
	assert.Equal(t, int64(0), hits.Load(), "offline mode must not touch the network")
}

func TestOfflineModeStillServesCache(t *testing.T) {
	offline := false
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":603,"title":"The Matrix"}`))
	}))
	c.offline = func() bool { return offline }

	_, err := c.MovieDetails(context.Background(), 603)
	require.NoError(t, err)

	offline = true
	movie, err := c.MovieDetails(context.Background(), 603)
	require.NoError(t, err)
	assert.Equal(t, "The Matrix", movie.Title)

	_, err = c.MovieDetails(context.Background(), 604)
	require.ErrorIs(t, err, ErrOffline)
}

func TestNotFoundDetails(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	_, err := c.MovieDetails(context.Background(), 999999)
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestDownloadPoster(t *testing.T) {
	var hits atomic.Int64
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "/poster1.jpg", r.URL.Path)
		w.Write([]byte("image-bytes"))
	}))

	dir := t.TempDir()
	path, err := c.DownloadPoster(context.Background(), "/poster1.jpg", dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "poster1.jpg"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "image-bytes", string(data))

	// A second download of the same poster is a no-op.
	path2, err := c.DownloadPoster(context.Background(), "/poster1.jpg", dir)
	require.NoError(t, err)
	assert.Equal(t, path, path2)
	assert.Equal(t, int64(1), hits.Load())
}

func TestDownloadPosterEmptyPath(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for an empty poster path")
	}))

	path, err := c.DownloadPoster(context.Background(), "", t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "", path)
}
