package archive

import (
	"archive/zip"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marquee/pkg/config"
	"marquee/pkg/library"
)

func newTestManager(t *testing.T) (*Manager, *library.Store, *config.Config) {
	t.Helper()
	cfg := &config.Config{DataDir: t.TempDir()}
	store, err := library.Open(cfg.LibraryDBPath())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return NewManager(cfg, store), store, cfg
}

func writeZip(t *testing.T, entries map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "archive.zip")
	out, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(out)
	for name, body := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, out.Close())
	return path
}

func TestExportCreatesArchive(t *testing.T) {
	m, store, cfg := newTestManager(t)

	require.NoError(t, store.AddMovie(&library.Movie{TmdbID: 603, Title: "The Matrix"}))
	require.NoError(t, os.MkdirAll(cfg.PostersDir(), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.PostersDir(), "603.jpg"), []byte("jpeg bytes"), 0644))

	zipPath, err := m.Export()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(filepath.Base(zipPath), "marquee-export-"))

	r, err := zip.OpenReader(zipPath)
	require.NoError(t, err)
	defer r.Close()

	names := make([]string, 0, len(r.File))
	for _, f := range r.File {
		names = append(names, f.Name)
	}
	assert.Contains(t, names, "marquee.db")
	assert.Contains(t, names, "posters/603.jpg")
}

func TestExportImportRoundTrip(t *testing.T) {
	m, store, cfg := newTestManager(t)

	require.NoError(t, store.AddMovie(&library.Movie{TmdbID: 603, Title: "The Matrix"}))
	zipPath, err := m.Export()
	require.NoError(t, err)

	// Changes made after the export must disappear on import.
	require.NoError(t, store.AddMovie(&library.Movie{TmdbID: 604, Title: "The Matrix Reloaded"}))

	require.NoError(t, m.Import(zipPath))

	movies, err := store.ListMovies()
	require.NoError(t, err)
	require.Len(t, movies, 1)
	assert.Equal(t, "The Matrix", movies[0].Title)

	_, err = os.Stat(cfg.LibraryDBPath() + ".bak")
	assert.NoError(t, err, "previous database should be kept as .bak")
}

func TestImportRestoresPosters(t *testing.T) {
	m, store, cfg := newTestManager(t)

	require.NoError(t, store.AddMovie(&library.Movie{TmdbID: 603, Title: "The Matrix"}))
	require.NoError(t, os.MkdirAll(cfg.PostersDir(), 0755))
	poster := filepath.Join(cfg.PostersDir(), "603.jpg")
	require.NoError(t, os.WriteFile(poster, []byte("jpeg bytes"), 0644))

	zipPath, err := m.Export()
	require.NoError(t, err)
	require.NoError(t, os.Remove(poster))

	require.NoError(t, m.Import(zipPath))

	data, err := os.ReadFile(poster)
	require.NoError(t, err)
	assert.Equal(t, "jpeg bytes", string(data))
}

func TestImportRejectsArchiveWithoutDatabase(t *testing.T) {
	m, store, _ := newTestManager(t)
	zipPath := writeZip(t, map[string]string{"posters/603.jpg": "jpeg bytes"})

	err := m.Import(zipPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not contain a library database")

	_, err = store.ListMovies()
	assert.NoError(t, err, "live store must stay usable")
}

func TestImportRejectsPathTraversal(t *testing.T) {
	m, _, _ := newTestManager(t)
	zipPath := writeZip(t, map[string]string{"../evil.db": "boom"})

	err := m.Import(zipPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsafe entry name")
}

func TestImportRejectsNonDatabaseFile(t *testing.T) {
	m, store, _ := newTestManager(t)
	require.NoError(t, store.AddMovie(&library.Movie{TmdbID: 603, Title: "The Matrix"}))
	zipPath := writeZip(t, map[string]string{"marquee.db": "not a database"})

	err := m.Import(zipPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a SQLite database")

	movies, err := store.ListMovies()
	require.NoError(t, err)
	assert.Len(t, movies, 1)
}

func TestListExportsNewestFirst(t *testing.T) {
	m, _, cfg := newTestManager(t)
	require.NoError(t, os.MkdirAll(cfg.ExportsDir(), 0755))

	older := filepath.Join(cfg.ExportsDir(), "marquee-export-20240101-120000.zip")
	newer := filepath.Join(cfg.ExportsDir(), "marquee-export-20240201-120000.zip")
	require.NoError(t, os.WriteFile(older, []byte("zip"), 0644))
	require.NoError(t, os.WriteFile(newer, []byte("zip"), 0644))
	stale := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(older, stale, stale))

	exports, err := m.ListExports()
	require.NoError(t, err)
	require.Len(t, exports, 2)
	assert.Equal(t, filepath.Base(newer), exports[0].Name)
	assert.Equal(t, filepath.Base(older), exports[1].Name)
}

func TestListExportsMissingDir(t *testing.T) {
	m, _, _ := newTestManager(t)

	exports, err := m.ListExports()
	require.NoError(t, err)
	assert.Empty(t, exports)
}

func TestResolveExport(t *testing.T) {
	m, _, cfg := newTestManager(t)
	require.NoError(t, os.MkdirAll(cfg.ExportsDir(), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.ExportsDir(), "good.zip"), []byte("zip"), 0644))

	full, err := m.ResolveExport("good.zip")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cfg.ExportsDir(), "good.zip"), full)

	_, err = m.ResolveExport("../good.zip")
	assert.Error(t, err)
	_, err = m.ResolveExport("missing.zip")
	assert.Error(t, err)
}

func TestDiskUsage(t *testing.T) {
	total, free, err := DiskUsage(t.TempDir())
	require.NoError(t, err)
	assert.Greater(t, total, uint64(0))
	assert.LessOrEqual(t, free, total)
}
