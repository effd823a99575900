package library

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a requested row does not exist
var (
	ErrNotFound = errors.New("library: not found")
	ErrExists   = errors.New("library: already in the library")
)

// Store is the persistent library of movies and series. It keeps a single
// connection so all writes are serialized inside the store; concurrently
// running activities never need their own locking.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates or opens the library database at the given path
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	s := &Store{path: path}
	if err := s.open(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) open() error {
	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA busy_timeout = 5000;",
		"PRAGMA synchronous = NORMAL;",
		"PRAGMA foreign_keys = ON;",
		"PRAGMA page_size = 4096;",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return fmt.Errorf("failed to apply %s: %w", pragma, err)
		}
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s.db = db
	return s.createTables()
}

func (s *Store) createTables() error {
	moviesQuery := `CREATE TABLE IF NOT EXISTS movies (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tmdb_id INTEGER NOT NULL DEFAULT 0,
		title TEXT NOT NULL,
		overview TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT '',
		poster_path TEXT NOT NULL DEFAULT '',
		backdrop_path TEXT NOT NULL DEFAULT '',
		release_date TEXT NOT NULL DEFAULT '',
		runtime INTEGER NOT NULL DEFAULT 0,
		genres TEXT NOT NULL DEFAULT '',
		cast_list TEXT NOT NULL DEFAULT '',
		manual INTEGER NOT NULL DEFAULT 0,
		watched INTEGER NOT NULL DEFAULT 0,
		new_release INTEGER NOT NULL DEFAULT 0,
		soon_release INTEGER NOT NULL DEFAULT 0,
		recent_change INTEGER NOT NULL DEFAULT 0,
		notification_list INTEGER NOT NULL DEFAULT 0,
		added_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		updated_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);`
	if _, err := s.db.Exec(moviesQuery); err != nil {
		return fmt.Errorf("failed to create movies table: %w", err)
	}

	seriesQuery := `CREATE TABLE IF NOT EXISTS series (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tmdb_id INTEGER NOT NULL DEFAULT 0,
		title TEXT NOT NULL,
		overview TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT '',
		poster_path TEXT NOT NULL DEFAULT '',
		backdrop_path TEXT NOT NULL DEFAULT '',
		first_air_date TEXT NOT NULL DEFAULT '',
		last_air_date TEXT NOT NULL DEFAULT '',
		next_air_date TEXT NOT NULL DEFAULT '',
		in_production INTEGER NOT NULL DEFAULT 0,
		seasons INTEGER NOT NULL DEFAULT 0,
		episodes INTEGER NOT NULL DEFAULT 0,
		genres TEXT NOT NULL DEFAULT '',
		cast_list TEXT NOT NULL DEFAULT '',
		manual INTEGER NOT NULL DEFAULT 0,
		watched INTEGER NOT NULL DEFAULT 0,
		watched_episodes INTEGER NOT NULL DEFAULT 0,
		new_release INTEGER NOT NULL DEFAULT 0,
		soon_release INTEGER NOT NULL DEFAULT 0,
		recent_change INTEGER NOT NULL DEFAULT 0,
		notification_list INTEGER NOT NULL DEFAULT 0,
		added_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		updated_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);`
	if _, err := s.db.Exec(seriesQuery); err != nil {
		return fmt.Errorf("failed to create series table: %w", err)
	}

	metaQuery := `CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);`
	if _, err := s.db.Exec(metaQuery); err != nil {
		return fmt.Errorf("failed to create meta table: %w", err)
	}

	// Provider-backed entries are unique per TMDB id; manual entries (id 0)
	// may repeat.
	_, _ = s.db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_movies_tmdb ON movies(tmdb_id) WHERE tmdb_id != 0;`)
	_, _ = s.db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_series_tmdb ON series(tmdb_id) WHERE tmdb_id != 0;`)
	_, _ = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_movies_notification ON movies(notification_list);`)
	_, _ = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_series_notification ON series(notification_list);`)

	return nil
}

// Path returns the database file location
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Reopen closes and reopens the database file. The archive importer uses
// this after swapping the file on disk.
func (s *Store) Reopen() error {
	if err := s.Close(); err != nil {
		return fmt.Errorf("failed to close db before reopen: %w", err)
	}
	return s.open()
}

// Checkpoint flushes the WAL into the main database file so the file on
// disk is complete before it is copied into an export archive
func (s *Store) Checkpoint() error {
	_, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE);")
	return err
}

// LastUpdate returns when the library metadata was last refreshed.
// The second return is false when no refresh ever ran.
func (s *Store) LastUpdate() (time.Time, bool, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM meta WHERE key = 'last_update';`).Scan(&value)
	if err == sql.ErrNoRows {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}

	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("corrupt last_update value %q: %w", value, err)
	}
	return t, true, nil
}

// TouchLastUpdate records the time of a completed metadata refresh
func (s *Store) TouchLastUpdate(t time.Time) error {
	query := `INSERT INTO meta (key, value) VALUES ('last_update', ?)
		ON CONFLICT(key) DO UPDATE SET value=excluded.value;`
	_, err := s.db.Exec(query, t.UTC().Format(time.RFC3339))
	return err
}

// ClearRecentChanges drops the recent-change badge from every entry,
// typically after the user acknowledged the notification feed
func (s *Store) ClearRecentChanges() error {
	if _, err := s.db.Exec(`UPDATE movies SET recent_change = 0 WHERE recent_change = 1;`); err != nil {
		return fmt.Errorf("failed to clear movie change flags: %w", err)
	}
	if _, err := s.db.Exec(`UPDATE series SET recent_change = 0 WHERE recent_change = 1;`); err != nil {
		return fmt.Errorf("failed to clear series change flags: %w", err)
	}
	return nil
}

// Counts returns the number of movies and series in the library
func (s *Store) Counts() (movies int, series int, err error) {
	if err = s.db.QueryRow(`SELECT COUNT(*) FROM movies;`).Scan(&movies); err != nil {
		return 0, 0, err
	}
	if err = s.db.QueryRow(`SELECT COUNT(*) FROM series;`).Scan(&series); err != nil {
		return 0, 0, err
	}
	return movies, series, nil
}
