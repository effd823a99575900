package library

import (
	"database/sql"
	"fmt"
	"time"
)

const movieColumns = `id, tmdb_id, title, overview, status, poster_path, backdrop_path,
	release_date, runtime, genres, cast_list, manual, watched, new_release, soon_release,
	recent_change, notification_list, added_at, updated_at`

func scanMovie(row interface{ Scan(...interface{}) error }) (*Movie, error) {
	var m Movie
	err := row.Scan(&m.ID, &m.TmdbID, &m.Title, &m.Overview, &m.Status, &m.PosterPath,
		&m.BackdropPath, &m.ReleaseDate, &m.Runtime, &m.Genres, &m.Cast, &m.Manual,
		&m.Watched, &m.NewRelease, &m.SoonRelease, &m.RecentChange, &m.NotificationList,
		&m.AddedAt, &m.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan movie: %w", err)
	}
	return &m, nil
}

// AddMovie inserts a movie and fills in its assigned id
func (s *Store) AddMovie(m *Movie) error {
	now := time.Now().Unix()
	query := `INSERT INTO movies (tmdb_id, title, overview, status, poster_path, backdrop_path,
		release_date, runtime, genres, cast_list, manual, watched, new_release, soon_release,
		recent_change, notification_list, added_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`
	res, err := s.db.Exec(query, m.TmdbID, m.Title, m.Overview, m.Status, m.PosterPath,
		m.BackdropPath, m.ReleaseDate, m.Runtime, m.Genres, m.Cast, m.Manual, m.Watched,
		m.NewRelease, m.SoonRelease, m.RecentChange, m.NotificationList, now, now)
	if err != nil {
		return fmt.Errorf("failed to add movie %q: %w", m.Title, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	m.ID = id
	m.AddedAt = now
	m.UpdatedAt = now
	return nil
}

// GetMovie returns the movie with the given library id
func (s *Store) GetMovie(id int64) (*Movie, error) {
	query := fmt.Sprintf(`SELECT %s FROM movies WHERE id = ?;`, movieColumns)
	return scanMovie(s.db.QueryRow(query, id))
}

// GetMovieByTmdbID returns the provider-backed movie with the given TMDB id
func (s *Store) GetMovieByTmdbID(tmdbID int) (*Movie, error) {
	query := fmt.Sprintf(`SELECT %s FROM movies WHERE tmdb_id = ? AND tmdb_id != 0;`, movieColumns)
	return scanMovie(s.db.QueryRow(query, tmdbID))
}

// ListMovies returns every movie, ordered by title
func (s *Store) ListMovies() ([]Movie, error) {
	query := fmt.Sprintf(`SELECT %s FROM movies ORDER BY title COLLATE NOCASE;`, movieColumns)
	return s.queryMovies(query)
}

// ListNotificationMovies returns the movies on the notification list
func (s *Store) ListNotificationMovies() ([]Movie, error) {
	query := fmt.Sprintf(`SELECT %s FROM movies WHERE notification_list = 1 ORDER BY title COLLATE NOCASE;`, movieColumns)
	return s.queryMovies(query)
}

func (s *Store) queryMovies(query string, args ...interface{}) ([]Movie, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query movies: %w", err)
	}
	defer rows.Close()

	var results []Movie
	for rows.Next() {
		m, err := scanMovie(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *m)
	}
	return results, rows.Err()
}

// UpdateMovieMetadata refreshes the provider-owned fields of a movie while
// leaving user state (watched, manual, flags, notification membership) alone
func (s *Store) UpdateMovieMetadata(m *Movie) error {
	query := `UPDATE movies SET title = ?, overview = ?, status = ?, poster_path = ?,
		backdrop_path = ?, release_date = ?, runtime = ?, genres = ?, cast_list = ?,
		updated_at = ? WHERE id = ?;`
	res, err := s.db.Exec(query, m.Title, m.Overview, m.Status, m.PosterPath,
		m.BackdropPath, m.ReleaseDate, m.Runtime, m.Genres, m.Cast, time.Now().Unix(), m.ID)
	if err != nil {
		return fmt.Errorf("failed to update movie %d: %w", m.ID, err)
	}
	return requireRow(res)
}

// SetMovieFlags updates the release/change flags of a movie
func (s *Store) SetMovieFlags(id int64, newRelease, soonRelease, recentChange bool) error {
	query := `UPDATE movies SET new_release = ?, soon_release = ?, recent_change = ?, updated_at = ? WHERE id = ?;`
	res, err := s.db.Exec(query, newRelease, soonRelease, recentChange, time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to set movie flags for %d: %w", id, err)
	}
	return requireRow(res)
}

// SetMovieWatched toggles the watched state of a movie
func (s *Store) SetMovieWatched(id int64, watched bool) error {
	res, err := s.db.Exec(`UPDATE movies SET watched = ?, updated_at = ? WHERE id = ?;`,
		watched, time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to set movie watched for %d: %w", id, err)
	}
	return requireRow(res)
}

// SetMovieNotification adds or removes a movie from the notification list
func (s *Store) SetMovieNotification(id int64, enabled bool) error {
	res, err := s.db.Exec(`UPDATE movies SET notification_list = ?, updated_at = ? WHERE id = ?;`,
		enabled, time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to set movie notification for %d: %w", id, err)
	}
	return requireRow(res)
}

// DeleteMovie removes a movie from the library
func (s *Store) DeleteMovie(id int64) error {
	res, err := s.db.Exec(`DELETE FROM movies WHERE id = ?;`, id)
	if err != nil {
		return fmt.Errorf("failed to delete movie %d: %w", id, err)
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
