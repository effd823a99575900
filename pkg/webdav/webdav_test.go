package webdav

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "posters"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "posters", "603.jpg"), []byte("jpeg bytes"), 0644))
	return NewHandler(dir)
}

func TestServesFiles(t *testing.T) {
	h := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/dav/posters/603.jpg", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "jpeg bytes", rec.Body.String())
}

func TestPropfindListsDirectory(t *testing.T) {
	h := newTestHandler(t)

	req := httptest.NewRequest("PROPFIND", "/dav/posters/", nil)
	req.Header.Set("Depth", "1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusMultiStatus, rec.Code)
	assert.Contains(t, rec.Body.String(), "603.jpg")
}

func TestRejectsWrites(t *testing.T) {
	h := newTestHandler(t)

	for _, method := range []string{http.MethodPut, http.MethodDelete, "MKCOL", "MOVE", "COPY", "LOCK"} {
		req := httptest.NewRequest(method, "/dav/posters/evil.jpg", nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code, method)
		assert.NotEmpty(t, rec.Header().Get("Allow"), method)
	}
}
