package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marquee/pkg/api"
	"marquee/pkg/archive"
	"marquee/pkg/config"
	"marquee/pkg/library"
	"marquee/pkg/queue"
	"marquee/pkg/refresh"
	"marquee/pkg/state"
	"marquee/pkg/tmdb"
)

// newTestServer wires the whole HTTP stack against temp stores and a
// stubbed metadata provider.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	stub := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(stub.Close)

	cfg := &config.Config{DataDir: t.TempDir()}
	store, err := library.Open(cfg.LibraryDBPath())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	st, err := state.Open(cfg.StateDBPath())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	q := queue.New(queue.Options{})
	t.Cleanup(q.Close)

	client, err := tmdb.NewClient(tmdb.Options{
		APIKey:       "test-key",
		Language:     "en",
		Region:       "US",
		BaseURL:      stub.URL,
		ImageBaseURL: stub.URL,
	})
	require.NoError(t, err)

	engine := refresh.NewEngine(cfg, store, st, client)
	a := api.New(cfg, store, st, q, client, engine, archive.NewManager(cfg, store))

	require.NoError(t, os.MkdirAll(cfg.PostersDir(), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.PostersDir(), "603.jpg"), []byte("jpeg bytes"), 0644))

	srv := httptest.NewServer(New(a, cfg.DataDir).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func login(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	resp, err := http.Post(srv.URL+"/api/auth/login", "application/json",
		strings.NewReader(`{"username":"alice","password":"s3cret"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.NotEmpty(t, body["token"])
	return body["token"]
}

func TestHealthIsPublic(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAPIRequiresToken(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/library/movies")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLoginThenRequest(t *testing.T) {
	t.Setenv("MARQUEE_USERNAME", "alice")
	t.Setenv("MARQUEE_PASSWORD", "s3cret")
	srv := newTestServer(t)

	token := login(t, srv)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/library/movies", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestWebDAVShare(t *testing.T) {
	t.Setenv("MARQUEE_USERNAME", "alice")
	t.Setenv("MARQUEE_PASSWORD", "s3cret")
	srv := newTestServer(t)

	// No token: blocked.
	resp, err := http.Get(srv.URL + "/dav/posters/603.jpg")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Token as query parameter, the way DAV clients pass it.
	token := login(t, srv)
	resp, err = http.Get(srv.URL + "/dav/posters/603.jpg?token=" + token)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Writes are rejected even when authenticated.
	req, err := http.NewRequest(http.MethodPut, srv.URL+"/dav/posters/evil.jpg?token="+token, strings.NewReader("x"))
	require.NoError(t, err)
	putResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer putResp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, putResp.StatusCode)
}

func TestPreflightRequest(t *testing.T) {
	srv := newTestServer(t)

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/library/movies", nil)
	require.NoError(t, err)
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Origin", "http://localhost:5173")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}
