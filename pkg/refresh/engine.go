package refresh

import (
	"context"
	"errors"
	"fmt"
	"time"

	"marquee/pkg/config"
	"marquee/pkg/library"
	"marquee/pkg/logger"
	"marquee/pkg/state"
	"marquee/pkg/tmdb"
)

// Provider is the slice of the TMDB client the engine needs.
type Provider interface {
	MovieDetails(ctx context.Context, tmdbID int) (*tmdb.Movie, error)
	SeriesDetails(ctx context.Context, tmdbID int) (*tmdb.Series, error)
	DownloadPoster(ctx context.Context, posterPath, destDir string) (string, error)
}

// Engine keeps library metadata in sync with the provider and turns
// watchlist changes into notifications.
type Engine struct {
	cfg      *config.Config
	store    *library.Store
	state    *state.Store
	provider Provider

	now func() time.Time
}

func NewEngine(cfg *config.Config, store *library.Store, st *state.Store, provider Provider) *Engine {
	return &Engine{
		cfg:      cfg,
		store:    store,
		state:    st,
		provider: provider,
		now:      time.Now,
	}
}

// Stats reports what a refresh pass touched.
type Stats struct {
	Updated int `json:"updated"`
	Failed  int `json:"failed"`
	Notices int `json:"notices"`
}

// AddMovie fetches a movie from the provider and stores it in the
// library. Adding a movie that is already present fails with
// library.ErrExists.
func (e *Engine) AddMovie(ctx context.Context, tmdbID int) (*library.Movie, error) {
	existing, err := e.store.GetMovieByTmdbID(tmdbID)
	if err == nil {
		return nil, fmt.Errorf("%w: %s", library.ErrExists, existing.Title)
	}
	if !errors.Is(err, library.ErrNotFound) {
		return nil, err
	}

	fresh, err := e.provider.MovieDetails(ctx, tmdbID)
	if err != nil {
		return nil, err
	}
	m := &library.Movie{}
	applyMovieMetadata(m, fresh)
	if err := e.store.AddMovie(m); err != nil {
		return nil, err
	}
	e.downloadPoster(ctx, fresh.PosterPath)
	logger.Info("Added movie '%s' (TMDB %d) to the library", m.Title, tmdbID)
	return m, nil
}

// AddSeries fetches a TV series from the provider and stores it in
// the library.
func (e *Engine) AddSeries(ctx context.Context, tmdbID int) (*library.Series, error) {
	existing, err := e.store.GetSeriesByTmdbID(tmdbID)
	if err == nil {
		return nil, fmt.Errorf("%w: %s", library.ErrExists, existing.Title)
	}
	if !errors.Is(err, library.ErrNotFound) {
		return nil, err
	}

	fresh, err := e.provider.SeriesDetails(ctx, tmdbID)
	if err != nil {
		return nil, err
	}
	sr := &library.Series{}
	applySeriesMetadata(sr, fresh)
	if err := e.store.AddSeries(sr); err != nil {
		return nil, err
	}
	e.downloadPoster(ctx, fresh.PosterPath)
	logger.Info("Added series '%s' (TMDB %d) to the library", sr.Title, tmdbID)
	return sr, nil
}

// RefreshLibrary refetches provider metadata for every non-manual
// library entry. Individual lookups that fail are counted and
// skipped; the whole pass fails only when it cannot proceed at all.
func (e *Engine) RefreshLibrary(ctx context.Context) (Stats, error) {
	var stats Stats

	movies, err := e.store.ListMovies()
	if err != nil {
		return stats, err
	}
	for i := range movies {
		m := &movies[i]
		if m.Manual || m.TmdbID == 0 {
			continue
		}
		if err := e.refreshMovie(ctx, m); err != nil {
			if refreshAborted(err) {
				return stats, err
			}
			stats.Failed++
			logger.Warn("Refresh failed for movie '%s': %v", m.Title, err)
			continue
		}
		stats.Updated++
	}

	series, err := e.store.ListSeries()
	if err != nil {
		return stats, err
	}
	for i := range series {
		sr := &series[i]
		if sr.Manual || sr.TmdbID == 0 {
			continue
		}
		if err := e.refreshSeries(ctx, sr); err != nil {
			if refreshAborted(err) {
				return stats, err
			}
			stats.Failed++
			logger.Warn("Refresh failed for series '%s': %v", sr.Title, err)
			continue
		}
		stats.Updated++
	}

	if err := e.store.TouchLastUpdate(e.now()); err != nil {
		return stats, err
	}
	logger.Info("Library refresh done: %d updated, %d failed", stats.Updated, stats.Failed)
	return stats, nil
}

// RefreshItem refetches provider metadata for a single library entry.
// Kind is "movie" or "series".
func (e *Engine) RefreshItem(ctx context.Context, kind string, id int64) error {
	switch kind {
	case "movie":
		m, err := e.store.GetMovie(id)
		if err != nil {
			return err
		}
		if m.Manual || m.TmdbID == 0 {
			return fmt.Errorf("refresh: '%s' is a manual entry", m.Title)
		}
		return e.refreshMovie(ctx, m)
	case "series":
		sr, err := e.store.GetSeries(id)
		if err != nil {
			return err
		}
		if sr.Manual || sr.TmdbID == 0 {
			return fmt.Errorf("refresh: '%s' is a manual entry", sr.Title)
		}
		return e.refreshSeries(ctx, sr)
	default:
		return fmt.Errorf("refresh: unknown kind %q", kind)
	}
}

// CheckNotifications compares every watchlisted item against fresh
// provider data, updates the release flags and stores the resulting
// notices.
func (e *Engine) CheckNotifications(ctx context.Context) (Stats, error) {
	now := e.now()
	var stats Stats
	var events []Event

	series, err := e.store.ListNotificationSeries()
	if err != nil {
		return stats, err
	}
	for i := range series {
		sr := &series[i]
		if sr.Manual || sr.TmdbID == 0 {
			continue
		}
		evs, err := e.checkSeries(ctx, sr, now)
		if err != nil {
			if refreshAborted(err) {
				return stats, err
			}
			stats.Failed++
			logger.Warn("Notification check failed for series '%s': %v", sr.Title, err)
			continue
		}
		events = append(events, evs...)
		stats.Updated++
	}

	movies, err := e.store.ListNotificationMovies()
	if err != nil {
		return stats, err
	}
	for i := range movies {
		m := &movies[i]
		if m.Manual || m.TmdbID == 0 {
			continue
		}
		evs, err := e.checkMovie(ctx, m, now)
		if err != nil {
			if refreshAborted(err) {
				return stats, err
			}
			stats.Failed++
			logger.Warn("Notification check failed for movie '%s': %v", m.Title, err)
			continue
		}
		events = append(events, evs...)
		stats.Updated++
	}

	for _, n := range Summarize(events, now) {
		if err := e.state.AddNotification(n); err != nil {
			return stats, err
		}
		stats.Notices++
		logger.Info("Notification: %s", n.Title)
	}
	return stats, nil
}

func (e *Engine) refreshMovie(ctx context.Context, m *library.Movie) error {
	fresh, err := e.provider.MovieDetails(ctx, m.TmdbID)
	if err != nil {
		return err
	}
	applyMovieMetadata(m, fresh)
	if err := e.store.UpdateMovieMetadata(m); err != nil {
		return err
	}
	e.downloadPoster(ctx, fresh.PosterPath)
	return nil
}

func (e *Engine) refreshSeries(ctx context.Context, sr *library.Series) error {
	fresh, err := e.provider.SeriesDetails(ctx, sr.TmdbID)
	if err != nil {
		return err
	}
	applySeriesMetadata(sr, fresh)
	if err := e.store.UpdateSeriesMetadata(sr); err != nil {
		return err
	}
	e.downloadPoster(ctx, fresh.PosterPath)
	return nil
}

func (e *Engine) checkMovie(ctx context.Context, m *library.Movie, now time.Time) ([]Event, error) {
	fresh, err := e.provider.MovieDetails(ctx, m.TmdbID)
	if err != nil {
		return nil, err
	}
	ch, events, err := evaluateMovie(m, fresh, now)
	if err != nil {
		return nil, err
	}
	if ch.Apply {
		if err := e.store.SetMovieFlags(m.ID, ch.NewRelease, ch.SoonRelease, ch.Recent); err != nil {
			return nil, err
		}
	}
	applyMovieMetadata(m, fresh)
	if err := e.store.UpdateMovieMetadata(m); err != nil {
		return nil, err
	}
	e.downloadPoster(ctx, fresh.PosterPath)
	return events, nil
}

func (e *Engine) checkSeries(ctx context.Context, sr *library.Series, now time.Time) ([]Event, error) {
	fresh, err := e.provider.SeriesDetails(ctx, sr.TmdbID)
	if err != nil {
		return nil, err
	}
	ch, events, err := evaluateSeries(sr, fresh, now)
	if err != nil {
		return nil, err
	}
	if ch.Apply {
		if err := e.store.SetSeriesFlags(sr.ID, ch.NewRelease, ch.SoonRelease, ch.Recent); err != nil {
			return nil, err
		}
	}
	if ch.DropFromList {
		if err := e.store.SetSeriesNotification(sr.ID, false); err != nil {
			return nil, err
		}
		logger.Info("Series '%s' left production, removing it from the watchlist", sr.Title)
	}
	applySeriesMetadata(sr, fresh)
	if err := e.store.UpdateSeriesMetadata(sr); err != nil {
		return nil, err
	}
	e.downloadPoster(ctx, fresh.PosterPath)
	return events, nil
}

// downloadPoster caches artwork next to the library. Failures are
// logged and swallowed; missing artwork never fails a refresh.
func (e *Engine) downloadPoster(ctx context.Context, posterPath string) {
	if posterPath == "" {
		return
	}
	if _, err := e.provider.DownloadPoster(ctx, posterPath, e.cfg.PostersDir()); err != nil {
		logger.Warn("Poster download failed for %s: %v", posterPath, err)
	}
}

// refreshAborted reports whether an item error should abort the whole
// pass instead of being counted and skipped.
func refreshAborted(err error) bool {
	return errors.Is(err, tmdb.ErrOffline) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

func applyMovieMetadata(m *library.Movie, fresh *tmdb.Movie) {
	m.TmdbID = fresh.ID
	m.Title = fresh.Title
	m.Overview = fresh.Overview
	m.Status = fresh.Status
	m.PosterPath = fresh.PosterPath
	m.BackdropPath = fresh.BackdropPath
	m.ReleaseDate = fresh.ReleaseDate
	m.Runtime = fresh.Runtime
	m.Genres = fresh.GenreNames()
	m.Cast = fresh.CastNames()
}

func applySeriesMetadata(sr *library.Series, fresh *tmdb.Series) {
	sr.TmdbID = fresh.ID
	sr.Title = fresh.Name
	sr.Overview = fresh.Overview
	sr.Status = fresh.Status
	sr.PosterPath = fresh.PosterPath
	sr.BackdropPath = fresh.BackdropPath
	sr.FirstAirDate = fresh.FirstAirDate
	sr.LastAirDate = fresh.LastAirDate
	sr.NextAirDate = fresh.NextAirDate()
	sr.InProduction = fresh.InProduction
	sr.Seasons = fresh.NumberOfSeasons
	sr.Episodes = fresh.NumberOfEpisodes
	sr.Genres = fresh.GenreNames()
	sr.Cast = fresh.CastNames()
}
