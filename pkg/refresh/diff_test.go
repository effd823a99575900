package refresh

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marquee/pkg/library"
	"marquee/pkg/tmdb"
)

// checkTime is a fixed "now" for the diff tests: Saturday noon.
var checkTime = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func TestEvaluateMovieReleased(t *testing.T) {
	stored := &library.Movie{Title: "Dune", NewRelease: false}
	fresh := &tmdb.Movie{Title: "Dune", ReleaseDate: "2024-06-01"}

	ch, events, err := evaluateMovie(stored, fresh, checkTime)
	require.NoError(t, err)
	assert.True(t, ch.Apply)
	assert.True(t, ch.NewRelease)
	assert.False(t, ch.SoonRelease)
	assert.True(t, ch.Recent)

	require.Len(t, events, 1)
	assert.Equal(t, CategoryReleased, events[0].Category)
	assert.Equal(t, "movie", events[0].Kind)
	assert.Equal(t, "Dune", events[0].Title)
	assert.Equal(t, 14, events[0].Days)
}

func TestEvaluateMovieReleasedAlreadySeen(t *testing.T) {
	stored := &library.Movie{Title: "Dune", NewRelease: true}
	fresh := &tmdb.Movie{Title: "Dune", ReleaseDate: "2024-06-01"}

	ch, events, err := evaluateMovie(stored, fresh, checkTime)
	require.NoError(t, err)
	assert.True(t, ch.Apply, "flags are refreshed even without a notice")
	assert.Empty(t, events, "the release was already announced")
}

func TestEvaluateMovieComingSoon(t *testing.T) {
	stored := &library.Movie{Title: "Dune Part Two"}
	fresh := &tmdb.Movie{Title: "Dune Part Two", ReleaseDate: "2024-06-25"}

	ch, events, err := evaluateMovie(stored, fresh, checkTime)
	require.NoError(t, err)
	assert.True(t, ch.Apply)
	assert.False(t, ch.NewRelease)
	assert.True(t, ch.SoonRelease)
	assert.True(t, ch.Recent)

	require.Len(t, events, 1)
	assert.Equal(t, CategorySoon, events[0].Category)
	assert.Equal(t, 9, events[0].Days)
}

func TestEvaluateMovieComingSoonAlreadySeen(t *testing.T) {
	stored := &library.Movie{Title: "Dune Part Two", SoonRelease: true}
	fresh := &tmdb.Movie{Title: "Dune Part Two", ReleaseDate: "2024-06-25"}

	ch, events, err := evaluateMovie(stored, fresh, checkTime)
	require.NoError(t, err)
	assert.True(t, ch.Apply)
	assert.Empty(t, events)
}

func TestEvaluateMovieFarOut(t *testing.T) {
	stored := &library.Movie{Title: "Avatar 4"}
	fresh := &tmdb.Movie{Title: "Avatar 4", ReleaseDate: "2024-12-25"}

	ch, events, err := evaluateMovie(stored, fresh, checkTime)
	require.NoError(t, err)
	assert.False(t, ch.Apply)
	assert.Empty(t, events)
}

func TestEvaluateMovieUnscheduled(t *testing.T) {
	stored := &library.Movie{Title: "Untitled Project"}
	fresh := &tmdb.Movie{Title: "Untitled Project", ReleaseDate: ""}

	ch, events, err := evaluateMovie(stored, fresh, checkTime)
	require.NoError(t, err)
	assert.False(t, ch.Apply)
	assert.Empty(t, events)
}

func TestEvaluateMovieBadDate(t *testing.T) {
	stored := &library.Movie{Title: "Broken"}
	fresh := &tmdb.Movie{Title: "Broken", ReleaseDate: "soonish"}

	_, _, err := evaluateMovie(stored, fresh, checkTime)
	require.Error(t, err)
}

func TestEvaluateSeriesNewEpisode(t *testing.T) {
	stored := &library.Series{Title: "Severance", LastAirDate: "2024-06-01", InProduction: true}
	fresh := &tmdb.Series{Name: "Severance", LastAirDate: "2024-06-14", InProduction: true}

	ch, events, err := evaluateSeries(stored, fresh, checkTime)
	require.NoError(t, err)
	assert.True(t, ch.Apply)
	assert.True(t, ch.NewRelease)
	assert.False(t, ch.SoonRelease)
	assert.True(t, ch.Recent)
	assert.False(t, ch.DropFromList)

	require.Len(t, events, 1)
	assert.Equal(t, CategoryReleased, events[0].Category)
	assert.Equal(t, "series", events[0].Kind)
	assert.Equal(t, 1, events[0].Days)
}

func TestEvaluateSeriesWeeklyScheduleStaysQuiet(t *testing.T) {
	// A weekly show: episode yesterday, next one in five days. The new
	// episode is announced but the imminent one is not.
	stored := &library.Series{Title: "The Acolyte", LastAirDate: "2024-06-08", InProduction: true}
	fresh := &tmdb.Series{
		Name:         "The Acolyte",
		LastAirDate:  "2024-06-14",
		InProduction: true,
		NextEpisode:  &tmdb.Episode{AirDate: "2024-06-20"},
	}

	ch, events, err := evaluateSeries(stored, fresh, checkTime)
	require.NoError(t, err)
	assert.True(t, ch.NewRelease)
	assert.True(t, ch.SoonRelease, "the soon flag is still kept current")
	require.Len(t, events, 1)
	assert.Equal(t, CategoryReleased, events[0].Category)
}

func TestEvaluateSeriesSeasonPremiereSoon(t *testing.T) {
	// Long gap since the finale, premiere in three days.
	stored := &library.Series{Title: "House of the Dragon", LastAirDate: "2023-12-01", InProduction: true}
	fresh := &tmdb.Series{
		Name:         "House of the Dragon",
		LastAirDate:  "2023-12-01",
		InProduction: true,
		NextEpisode:  &tmdb.Episode{AirDate: "2024-06-18"},
	}

	ch, events, err := evaluateSeries(stored, fresh, checkTime)
	require.NoError(t, err)
	assert.True(t, ch.Apply)
	assert.False(t, ch.NewRelease)
	assert.True(t, ch.SoonRelease)
	assert.True(t, ch.Recent)

	require.Len(t, events, 1)
	assert.Equal(t, CategorySoon, events[0].Category)
	assert.Equal(t, 2, events[0].Days)
}

func TestEvaluateSeriesOutOfProduction(t *testing.T) {
	stored := &library.Series{Title: "Dark", LastAirDate: "2020-06-27", InProduction: true}
	fresh := &tmdb.Series{Name: "Dark", LastAirDate: "2020-06-27", InProduction: false}

	ch, events, err := evaluateSeries(stored, fresh, checkTime)
	require.NoError(t, err)
	assert.True(t, ch.Apply)
	assert.True(t, ch.Recent)
	assert.True(t, ch.DropFromList)
	assert.False(t, ch.NewRelease)

	require.Len(t, events, 1)
	assert.Equal(t, CategoryEnded, events[0].Category)
	assert.Equal(t, "Dark", events[0].Title)
}

func TestEvaluateSeriesNoAnnouncedNextEpisode(t *testing.T) {
	// No next air date means a placeholder well outside the soon
	// window, so nothing fires.
	stored := &library.Series{Title: "Severance", LastAirDate: "2024-06-01", InProduction: true}
	fresh := &tmdb.Series{Name: "Severance", LastAirDate: "2024-06-01", InProduction: true}

	ch, events, err := evaluateSeries(stored, fresh, checkTime)
	require.NoError(t, err)
	assert.False(t, ch.Apply)
	assert.Empty(t, events)
}

func TestEvaluateSeriesNeverAired(t *testing.T) {
	stored := &library.Series{Title: "Announced Show", InProduction: true}
	fresh := &tmdb.Series{Name: "Announced Show", InProduction: true}

	ch, events, err := evaluateSeries(stored, fresh, checkTime)
	require.NoError(t, err)
	assert.False(t, ch.Apply)
	assert.Empty(t, events)
}

func TestEvaluateSeriesFirstEpisodeEver(t *testing.T) {
	stored := &library.Series{Title: "New Show", InProduction: true}
	fresh := &tmdb.Series{Name: "New Show", LastAirDate: "2024-06-14", InProduction: true}

	ch, events, err := evaluateSeries(stored, fresh, checkTime)
	require.NoError(t, err)
	assert.True(t, ch.NewRelease)
	require.Len(t, events, 1)
	assert.Equal(t, CategoryReleased, events[0].Category)
}

func TestEvaluateSeriesBadStoredDate(t *testing.T) {
	stored := &library.Series{Title: "Broken", LastAirDate: "not-a-date"}
	fresh := &tmdb.Series{Name: "Broken", LastAirDate: "2024-06-14"}

	_, _, err := evaluateSeries(stored, fresh, checkTime)
	require.Error(t, err)
}
