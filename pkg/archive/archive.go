package archive

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"marquee/pkg/config"
	"marquee/pkg/library"
	"marquee/pkg/logger"
)

const (
	dbEntryName       = "marquee.db"
	posterEntryPrefix = "posters/"
)

var sqliteHeader = []byte("SQLite format 3\x00")

// Manager exports the library to zip archives and restores it from
// them. Archives hold the database file plus the cached posters.
type Manager struct {
	cfg   *config.Config
	store *library.Store
}

func NewManager(cfg *config.Config, store *library.Store) *Manager {
	return &Manager{cfg: cfg, store: store}
}

// ExportInfo describes one archive in the exports directory.
type ExportInfo struct {
	Name      string    `json:"name"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"createdAt"`
}

// Export writes the library database and cached posters into a new
// zip archive in the exports directory and returns its path.
func (m *Manager) Export() (string, error) {
	// Fold the WAL into the main file so the archive holds a complete
	// database.
	if err := m.store.Checkpoint(); err != nil {
		return "", fmt.Errorf("archive: checkpoint before export: %w", err)
	}

	if err := os.MkdirAll(m.cfg.ExportsDir(), 0755); err != nil {
		return "", fmt.Errorf("archive: create exports dir: %w", err)
	}
	if err := m.preflight(); err != nil {
		return "", err
	}

	name := "marquee-export-" + time.Now().Format("20060102-150405") + ".zip"
	zipPath := filepath.Join(m.cfg.ExportsDir(), name)
	tempPath := zipPath + ".tmp"

	if err := m.writeArchive(tempPath); err != nil {
		os.Remove(tempPath)
		return "", err
	}
	if err := os.Rename(tempPath, zipPath); err != nil {
		os.Remove(tempPath)
		return "", fmt.Errorf("archive: finalize export: %w", err)
	}

	logger.Info("Exported library to %s", zipPath)
	return zipPath, nil
}

// preflight verifies the target filesystem has room for the archive
// before anything is written.
func (m *Manager) preflight() error {
	var needed int64
	if info, err := os.Stat(m.store.Path()); err == nil {
		needed += info.Size()
	}
	if posters, err := os.ReadDir(m.cfg.PostersDir()); err == nil {
		for _, p := range posters {
			if info, err := p.Info(); err == nil {
				needed += info.Size()
			}
		}
	}

	_, free, err := DiskUsage(m.cfg.ExportsDir())
	if err != nil {
		// Exotic filesystems may not answer. The export itself still
		// fails cleanly if space runs out.
		logger.Warn("Could not check free disk space for %s: %v", m.cfg.ExportsDir(), err)
		return nil
	}
	if free < uint64(needed) {
		return fmt.Errorf("archive: not enough disk space for export: need %d bytes, %d free", needed, free)
	}
	return nil
}

func (m *Manager) writeArchive(dest string) error {
	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("archive: create export file: %w", err)
	}
	zw := zip.NewWriter(out)

	werr := func() error {
		if err := addFileToZip(zw, m.store.Path(), dbEntryName); err != nil {
			return err
		}
		posters, err := os.ReadDir(m.cfg.PostersDir())
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return fmt.Errorf("archive: read posters dir: %w", err)
		}
		for _, p := range posters {
			if p.IsDir() {
				continue
			}
			src := filepath.Join(m.cfg.PostersDir(), p.Name())
			if err := addFileToZip(zw, src, posterEntryPrefix+p.Name()); err != nil {
				return err
			}
		}
		return nil
	}()
	if werr != nil {
		zw.Close()
		out.Close()
		return werr
	}

	if err := zw.Close(); err != nil {
		out.Close()
		return fmt.Errorf("archive: close export: %w", err)
	}
	return out.Close()
}

// Import replaces the library with the contents of the given export
// archive. The previous database is kept as a .bak file next to the
// live one until the next import.
func (m *Manager) Import(zipPath string) error {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return fmt.Errorf("archive: open %s: %w", zipPath, err)
	}
	defer r.Close()

	var dbEntry *zip.File
	var posterEntries []*zip.File
	for _, f := range r.File {
		if !safeEntryName(f.Name) {
			return fmt.Errorf("archive: unsafe entry name %q", f.Name)
		}
		switch {
		case f.Name == dbEntryName:
			dbEntry = f
		case strings.HasPrefix(f.Name, posterEntryPrefix) && !strings.HasSuffix(f.Name, "/"):
			posterEntries = append(posterEntries, f)
		}
	}
	if dbEntry == nil {
		return fmt.Errorf("archive: %s does not contain a library database", filepath.Base(zipPath))
	}

	// Stage the database next to the live one so the final step is a
	// rename on the same filesystem.
	tempDB := m.store.Path() + ".import"
	if err := extractEntry(dbEntry, tempDB); err != nil {
		return err
	}
	defer os.Remove(tempDB)

	if err := verifySQLite(tempDB); err != nil {
		return err
	}
	if err := m.swapDatabase(tempDB); err != nil {
		return err
	}

	for _, f := range posterEntries {
		dest := filepath.Join(m.cfg.PostersDir(), path.Base(f.Name))
		if err := extractEntry(f, dest); err != nil {
			logger.Warn("Could not restore poster %s: %v", f.Name, err)
		}
	}

	logger.Info("Imported library from %s (%d posters)", filepath.Base(zipPath), len(posterEntries))
	return nil
}

// swapDatabase closes the live store, moves the imported file into
// place and reopens. On any failure the previous database is put
// back.
func (m *Manager) swapDatabase(tempDB string) error {
	dbPath := m.store.Path()
	if err := m.store.Close(); err != nil {
		return fmt.Errorf("archive: close library for import: %w", err)
	}

	backup := dbPath + ".bak"
	os.Remove(backup)
	if err := os.Rename(dbPath, backup); err != nil && !os.IsNotExist(err) {
		m.store.Reopen()
		return fmt.Errorf("archive: back up current library: %w", err)
	}
	// The WAL and shm sidecars belong to the old database.
	os.Remove(dbPath + "-wal")
	os.Remove(dbPath + "-shm")

	if err := os.Rename(tempDB, dbPath); err != nil {
		os.Rename(backup, dbPath)
		m.store.Reopen()
		return fmt.Errorf("archive: install imported library: %w", err)
	}

	if err := m.store.Reopen(); err != nil {
		os.Remove(dbPath)
		os.Rename(backup, dbPath)
		m.store.Reopen()
		return fmt.Errorf("archive: open imported library: %w", err)
	}
	return nil
}

// ListExports returns the archives in the exports directory, newest
// first.
func (m *Manager) ListExports() ([]ExportInfo, error) {
	entries, err := os.ReadDir(m.cfg.ExportsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return []ExportInfo{}, nil
		}
		return nil, fmt.Errorf("archive: read exports dir: %w", err)
	}

	out := []ExportInfo{}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".zip") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, ExportInfo{Name: e.Name(), Size: info.Size(), CreatedAt: info.ModTime()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// ResolveExport turns a bare archive name into its full path inside
// the exports directory, rejecting anything that tries to escape it.
func (m *Manager) ResolveExport(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("archive: invalid export name %q", name)
	}
	full := filepath.Join(m.cfg.ExportsDir(), name)
	if _, err := os.Stat(full); err != nil {
		return "", fmt.Errorf("archive: export %s not found", name)
	}
	return full, nil
}

func addFileToZip(zw *zip.Writer, filePath, entryName string) error {
	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("archive: open %s: %w", filePath, err)
	}
	defer file.Close()

	entry, err := zw.Create(entryName)
	if err != nil {
		return fmt.Errorf("archive: create zip entry %s: %w", entryName, err)
	}
	if _, err := io.Copy(entry, file); err != nil {
		return fmt.Errorf("archive: write zip entry %s: %w", entryName, err)
	}
	return nil
}

func extractEntry(f *zip.File, dest string) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("archive: open entry %s: %w", f.Name, err)
	}
	defer rc.Close()

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("archive: create %s: %w", filepath.Dir(dest), err)
	}
	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("archive: create %s: %w", dest, err)
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		os.Remove(dest)
		return fmt.Errorf("archive: extract %s: %w", f.Name, err)
	}
	return out.Close()
}

func verifySQLite(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("archive: open imported database: %w", err)
	}
	defer f.Close()

	header := make([]byte, len(sqliteHeader))
	if _, err := io.ReadFull(f, header); err != nil {
		return fmt.Errorf("archive: imported database is truncated: %w", err)
	}
	if !bytes.Equal(header, sqliteHeader) {
		return fmt.Errorf("archive: imported file is not a SQLite database")
	}
	return nil
}

// safeEntryName rejects absolute paths, parent references and
// backslashes so a crafted archive can never write outside the data
// directory.
func safeEntryName(name string) bool {
	if name == "" || strings.Contains(name, `\`) {
		return false
	}
	if path.IsAbs(name) {
		return false
	}
	for _, part := range strings.Split(name, "/") {
		if part == ".." {
			return false
		}
	}
	return true
}
