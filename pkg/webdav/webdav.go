package webdav

import (
	"net/http"

	"golang.org/x/net/webdav"

	"marquee/pkg/logger"
)

// Handler exposes the data directory (posters, exports) over WebDAV
// so media centers can mount the artwork and archives. Only reading
// methods are allowed; the library itself is managed through the API.
type Handler struct {
	inner *webdav.Handler
}

var readMethods = map[string]bool{
	http.MethodOptions: true,
	http.MethodGet:     true,
	http.MethodHead:    true,
	"PROPFIND":         true,
}

// NewHandler creates a read-only WebDAV handler rooted at dir,
// served under /dav/.
func NewHandler(dir string) *Handler {
	return &Handler{
		inner: &webdav.Handler{
			Prefix:     "/dav",
			FileSystem: webdav.Dir(dir),
			LockSystem: webdav.NewMemLS(),
			Logger: func(r *http.Request, err error) {
				if err != nil {
					logger.Warn("WebDAV %s %s: %v", r.Method, r.URL.Path, err)
				} else {
					logger.Debug("WebDAV %s %s", r.Method, r.URL.Path)
				}
			},
		},
	}
}

// ServeHTTP handles HTTP requests for WebDAV
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !readMethods[r.Method] {
		w.Header().Set("Allow", "OPTIONS, GET, HEAD, PROPFIND")
		http.Error(w, "The share is read-only", http.StatusMethodNotAllowed)
		return
	}
	h.inner.ServeHTTP(w, r)
}
