package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setTestCredentials(t *testing.T) {
	t.Helper()
	t.Setenv("MARQUEE_USERNAME", "alice")
	t.Setenv("MARQUEE_PASSWORD", "s3cret")
}

func doLogin(t *testing.T, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(body))
	rec := httptest.NewRecorder()
	HandleLogin(rec, req)
	return rec
}

func markerHandler(called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
	})
}

func TestLoginIssuesToken(t *testing.T) {
	setTestCredentials(t)

	rec := doLogin(t, `{"username":"alice","password":"s3cret"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp["token"])

	claims, err := parseToken(resp["token"])
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "marquee", claims.Issuer)
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	setTestCredentials(t)

	rec := doLogin(t, `{"username":"alice","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginRejectsGet(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/auth/login", nil)
	rec := httptest.NewRecorder()
	HandleLogin(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestMiddlewareBlocksMissingToken(t *testing.T) {
	called := false
	h := JWTMiddleware(markerHandler(&called))

	req := httptest.NewRequest(http.MethodGet, "/api/library/movies", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, called)
}

func TestMiddlewareRejectsGarbageToken(t *testing.T) {
	called := false
	h := JWTMiddleware(markerHandler(&called))

	req := httptest.NewRequest(http.MethodGet, "/api/library/movies", nil)
	req.Header.Set("Authorization", "Bearer not.a.token")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, called)
}

func TestMiddlewareAcceptsBearerToken(t *testing.T) {
	token, err := GenerateJWT("alice")
	require.NoError(t, err)

	called := false
	h := JWTMiddleware(markerHandler(&called))

	req := httptest.NewRequest(http.MethodGet, "/api/library/movies", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, called)
}

func TestMiddlewareAcceptsQueryToken(t *testing.T) {
	token, err := GenerateJWT("alice")
	require.NoError(t, err)

	called := false
	h := JWTMiddleware(markerHandler(&called))

	req := httptest.NewRequest(http.MethodGet, "/dav/posters/603.jpg?token="+token, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, called)
}

func TestMiddlewareAllowsPublicPaths(t *testing.T) {
	for _, path := range []string{"/api/auth/login", "/api/auth/enabled", "/api/health"} {
		called := false
		h := JWTMiddleware(markerHandler(&called))

		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.True(t, called, path)
	}
}

func TestMiddlewareDisabled(t *testing.T) {
	t.Setenv("MARQUEE_AUTH_ENABLED", "false")

	called := false
	h := JWTMiddleware(markerHandler(&called))

	req := httptest.NewRequest(http.MethodGet, "/api/library/movies", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, called)
}

func TestHandleEnabled(t *testing.T) {
	t.Setenv("MARQUEE_AUTH_ENABLED", "false")

	rec := httptest.NewRecorder()
	HandleEnabled(rec, httptest.NewRequest(http.MethodGet, "/api/auth/enabled", nil))

	var resp map[string]bool
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp["enabled"])
}

func TestHandleMe(t *testing.T) {
	token, err := GenerateJWT("alice")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	HandleMe(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "alice", resp["username"])
}
