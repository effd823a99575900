package server

import (
	"net/http"

	"marquee/pkg/api"
	"marquee/pkg/auth"
	"marquee/pkg/logger"
	"marquee/pkg/webdav"
)

// Server assembles the HTTP surface: the JSON API, the auth
// middleware and the read-only WebDAV share over the data directory.
type Server struct {
	api     *api.API
	dataDir string
}

// New creates a new server instance
func New(a *api.API, dataDir string) *Server {
	return &Server{api: a, dataDir: dataDir}
}

// Handler returns the fully wired root handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.api.Register(mux)

	mux.Handle("/dav/", webdav.NewHandler(s.dataDir))
	logger.Debug("WebDAV share mounted for directory: %s", s.dataDir)

	return corsMiddleware(auth.JWTMiddleware(mux))
}

// corsMiddleware lets browser UIs served from another origin reach
// the API. Preflight requests are answered directly; a plain OPTIONS
// still reaches WebDAV for capability discovery.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS, PROPFIND")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Depth")
		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
