package api

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"marquee/pkg/queue"
)

// Upload cap for imported archives.
const maxImportSize = 1 << 30

func (a *API) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	act := queue.NewActivity(queue.ActivityTypeUpdate, "Export library", func() error {
		_, err := a.archive.Export()
		return err
	})
	a.enqueue(w, act)
}

func (a *API) handleExports(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	exports, err := a.archive.ListExports()
	if err != nil {
		jsonError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"exports": exports})
}

// handleImport restores the library either from an uploaded archive
// or, with a JSON body naming one, from an archive already in the
// exports directory.
func (a *API) handleImport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		a.importUpload(w, r)
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if err := readJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	path, err := a.archive.ResolveExport(req.Name)
	if err != nil {
		jsonError(w, http.StatusNotFound, err.Error())
		return
	}
	act := queue.NewActivity(queue.ActivityTypeUpdate, fmt.Sprintf("Import library from %s", req.Name), func() error {
		return a.archive.Import(path)
	})
	a.enqueue(w, act)
}

func (a *API) importUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImportSize)
	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	temp, err := os.CreateTemp("", "marquee-import-*.zip")
	if err != nil {
		jsonError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if _, err := io.Copy(temp, file); err != nil {
		temp.Close()
		os.Remove(temp.Name())
		jsonError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := temp.Close(); err != nil {
		os.Remove(temp.Name())
		jsonError(w, http.StatusInternalServerError, err.Error())
		return
	}

	tempPath := temp.Name()
	act := queue.NewActivity(queue.ActivityTypeUpdate, fmt.Sprintf("Import library from %s", filepath.Base(header.Filename)), func() error {
		defer os.Remove(tempPath)
		return a.archive.Import(tempPath)
	})
	if !a.enqueue(w, act) {
		os.Remove(tempPath)
	}
}
