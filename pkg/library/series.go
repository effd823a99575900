package library

import (
	"database/sql"
	"fmt"
	"time"
)

const seriesColumns = `id, tmdb_id, title, overview, status, poster_path, backdrop_path,
	first_air_date, last_air_date, next_air_date, in_production, seasons, episodes,
	genres, cast_list, manual, watched, watched_episodes, new_release, soon_release,
	recent_change, notification_list, added_at, updated_at`

func scanSeries(row interface{ Scan(...interface{}) error }) (*Series, error) {
	var sr Series
	err := row.Scan(&sr.ID, &sr.TmdbID, &sr.Title, &sr.Overview, &sr.Status, &sr.PosterPath,
		&sr.BackdropPath, &sr.FirstAirDate, &sr.LastAirDate, &sr.NextAirDate,
		&sr.InProduction, &sr.Seasons, &sr.Episodes, &sr.Genres, &sr.Cast, &sr.Manual,
		&sr.Watched, &sr.WatchedEpisodes, &sr.NewRelease, &sr.SoonRelease,
		&sr.RecentChange, &sr.NotificationList, &sr.AddedAt, &sr.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan series: %w", err)
	}
	return &sr, nil
}

// AddSeries inserts a series and fills in its assigned id
func (s *Store) AddSeries(sr *Series) error {
	now := time.Now().Unix()
	query := `INSERT INTO series (tmdb_id, title, overview, status, poster_path, backdrop_path,
		first_air_date, last_air_date, next_air_date, in_production, seasons, episodes,
		genres, cast_list, manual, watched, watched_episodes, new_release, soon_release,
		recent_change, notification_list, added_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`
	res, err := s.db.Exec(query, sr.TmdbID, sr.Title, sr.Overview, sr.Status, sr.PosterPath,
		sr.BackdropPath, sr.FirstAirDate, sr.LastAirDate, sr.NextAirDate, sr.InProduction,
		sr.Seasons, sr.Episodes, sr.Genres, sr.Cast, sr.Manual, sr.Watched, sr.WatchedEpisodes,
		sr.NewRelease, sr.SoonRelease, sr.RecentChange, sr.NotificationList, now, now)
	if err != nil {
		return fmt.Errorf("failed to add series %q: %w", sr.Title, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	sr.ID = id
	sr.AddedAt = now
	sr.UpdatedAt = now
	return nil
}

// GetSeries returns the series with the given library id
func (s *Store) GetSeries(id int64) (*Series, error) {
	query := fmt.Sprintf(`SELECT %s FROM series WHERE id = ?;`, seriesColumns)
	return scanSeries(s.db.QueryRow(query, id))
}

// GetSeriesByTmdbID returns the provider-backed series with the given TMDB id
func (s *Store) GetSeriesByTmdbID(tmdbID int) (*Series, error) {
	query := fmt.Sprintf(`SELECT %s FROM series WHERE tmdb_id = ? AND tmdb_id != 0;`, seriesColumns)
	return scanSeries(s.db.QueryRow(query, tmdbID))
}

// ListSeries returns every series, ordered by title
func (s *Store) ListSeries() ([]Series, error) {
	query := fmt.Sprintf(`SELECT %s FROM series ORDER BY title COLLATE NOCASE;`, seriesColumns)
	return s.querySeries(query)
}

// ListNotificationSeries returns the series on the notification list
func (s *Store) ListNotificationSeries() ([]Series, error) {
	query := fmt.Sprintf(`SELECT %s FROM series WHERE notification_list = 1 ORDER BY title COLLATE NOCASE;`, seriesColumns)
	return s.querySeries(query)
}

func (s *Store) querySeries(query string, args ...interface{}) ([]Series, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query series: %w", err)
	}
	defer rows.Close()

	var results []Series
	for rows.Next() {
		sr, err := scanSeries(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *sr)
	}
	return results, rows.Err()
}

// UpdateSeriesMetadata refreshes the provider-owned fields of a series while
// leaving user state (watched, manual, flags, notification membership) alone
func (s *Store) UpdateSeriesMetadata(sr *Series) error {
	query := `UPDATE series SET title = ?, overview = ?, status = ?, poster_path = ?,
		backdrop_path = ?, first_air_date = ?, last_air_date = ?, next_air_date = ?,
		in_production = ?, seasons = ?, episodes = ?, genres = ?, cast_list = ?,
		updated_at = ? WHERE id = ?;`
	res, err := s.db.Exec(query, sr.Title, sr.Overview, sr.Status, sr.PosterPath,
		sr.BackdropPath, sr.FirstAirDate, sr.LastAirDate, sr.NextAirDate, sr.InProduction,
		sr.Seasons, sr.Episodes, sr.Genres, sr.Cast, time.Now().Unix(), sr.ID)
	if err != nil {
		return fmt.Errorf("failed to update series %d: %w", sr.ID, err)
	}
	return requireRow(res)
}

// SetSeriesFlags updates the release/change flags of a series
func (s *Store) SetSeriesFlags(id int64, newRelease, soonRelease, recentChange bool) error {
	query := `UPDATE series SET new_release = ?, soon_release = ?, recent_change = ?, updated_at = ? WHERE id = ?;`
	res, err := s.db.Exec(query, newRelease, soonRelease, recentChange, time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to set series flags for %d: %w", id, err)
	}
	return requireRow(res)
}

// SetSeriesWatched toggles the watched state of a whole series
func (s *Store) SetSeriesWatched(id int64, watched bool) error {
	res, err := s.db.Exec(`UPDATE series SET watched = ?, updated_at = ? WHERE id = ?;`,
		watched, time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to set series watched for %d: %w", id, err)
	}
	return requireRow(res)
}

// SetSeriesWatchedEpisodes records how many episodes the user has watched
func (s *Store) SetSeriesWatchedEpisodes(id int64, count int) error {
	res, err := s.db.Exec(`UPDATE series SET watched_episodes = ?, updated_at = ? WHERE id = ?;`,
		count, time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to set watched episodes for %d: %w", id, err)
	}
	return requireRow(res)
}

// SetSeriesNotification adds or removes a series from the notification list
func (s *Store) SetSeriesNotification(id int64, enabled bool) error {
	res, err := s.db.Exec(`UPDATE series SET notification_list = ?, updated_at = ? WHERE id = ?;`,
		enabled, time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to set series notification for %d: %w", id, err)
	}
	return requireRow(res)
}

// DeleteSeries removes a series from the library
func (s *Store) DeleteSeries(id int64) error {
	res, err := s.db.Exec(`DELETE FROM series WHERE id = ?;`, id)
	if err != nil {
		return fmt.Errorf("failed to delete series %d: %w", id, err)
	}
	return requireRow(res)
}
