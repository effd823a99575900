package refresh

import (
	"fmt"
	"time"

	"marquee/pkg/library"
	"marquee/pkg/tmdb"
)

const dateLayout = "2006-01-02"

// Release notice categories.
const (
	CategoryReleased = "released"
	CategorySoon     = "soon"
	CategoryEnded    = "ended"
	CategoryUpdate   = "update"
)

// Event is one watchlisted item that crossed a release boundary
// during a notification check.
type Event struct {
	Category string
	Kind     string // movie or series
	Title    string
	Days     int
}

// movieChanges holds the watch flags to write back after a check.
// Apply is false when nothing changed.
type movieChanges struct {
	Apply       bool
	NewRelease  bool
	SoonRelease bool
	Recent      bool
}

type seriesChanges struct {
	Apply        bool
	NewRelease   bool
	SoonRelease  bool
	Recent       bool
	DropFromList bool
}

// evaluateMovie compares a stored movie against fresh provider data.
// Releases in the past mark the movie as released; releases within two
// weeks mark it as coming soon. The user is notified only on the
// transition, tracked through the stored flags.
func evaluateMovie(stored *library.Movie, fresh *tmdb.Movie, now time.Time) (movieChanges, []Event, error) {
	if fresh.ReleaseDate == "" {
		// Announced but unscheduled. Nothing to compare yet.
		return movieChanges{}, nil, nil
	}
	release, err := time.Parse(dateLayout, fresh.ReleaseDate)
	if err != nil {
		return movieChanges{}, nil, fmt.Errorf("bad release date %q for %s: %w", fresh.ReleaseDate, stored.Title, err)
	}

	var events []Event
	switch {
	case release.Before(now):
		ch := movieChanges{Apply: true, NewRelease: true, SoonRelease: false, Recent: true}
		if !stored.NewRelease {
			events = append(events, Event{
				Category: CategoryReleased,
				Kind:     "movie",
				Title:    fresh.Title,
				Days:     daysBetween(release, now),
			})
		}
		return ch, events, nil
	case release.Before(now.AddDate(0, 0, 14)):
		ch := movieChanges{Apply: true, NewRelease: stored.NewRelease, SoonRelease: true, Recent: true}
		if !stored.SoonRelease {
			events = append(events, Event{
				Category: CategorySoon,
				Kind:     "movie",
				Title:    fresh.Title,
				Days:     daysBetween(now, release),
			})
		}
		return ch, events, nil
	}
	return movieChanges{}, nil, nil
}

// evaluateSeries compares a stored series against fresh provider data.
// A newer last air date means a new episode came out. A next air date
// within a week marks the series as coming soon, but only gaps of more
// than three weeks since the previous episode are announced, so weekly
// and bi-weekly schedules stay quiet. A series leaving production is
// announced once and dropped from the watchlist.
func evaluateSeries(stored *library.Series, fresh *tmdb.Series, now time.Time) (seriesChanges, []Event, error) {
	storedLastAir, err := parseDateOrZero(stored.LastAirDate)
	if err != nil {
		return seriesChanges{}, nil, fmt.Errorf("bad stored last air date for %s: %w", stored.Title, err)
	}
	freshLastAir, err := parseDateOrZero(fresh.LastAirDate)
	if err != nil {
		return seriesChanges{}, nil, fmt.Errorf("bad last air date for %s: %w", fresh.Name, err)
	}

	// A series without an announced next episode gets a placeholder
	// far enough out that it never looks imminent.
	nextAir := now.AddDate(0, 0, 10)
	if d := fresh.NextAirDate(); d != "" {
		nextAir, err = time.Parse(dateLayout, d)
		if err != nil {
			return seriesChanges{}, nil, fmt.Errorf("bad next air date for %s: %w", fresh.Name, err)
		}
	}

	ch := seriesChanges{
		NewRelease:  stored.NewRelease,
		SoonRelease: stored.SoonRelease,
		Recent:      stored.RecentChange,
	}
	var events []Event

	if !freshLastAir.IsZero() && storedLastAir.Before(freshLastAir) {
		ch.Apply = true
		ch.NewRelease = true
		ch.SoonRelease = false
		ch.Recent = true
		events = append(events, Event{
			Category: CategoryReleased,
			Kind:     "series",
			Title:    fresh.Name,
			Days:     daysBetween(freshLastAir, now),
		})
	}

	if now.AddDate(0, 0, 7).After(nextAir) {
		ch.Apply = true
		ch.SoonRelease = true
		if nextAir.AddDate(0, 0, -20).After(storedLastAir) {
			ch.Recent = true
			events = append(events, Event{
				Category: CategorySoon,
				Kind:     "series",
				Title:    fresh.Name,
				Days:     daysBetween(now, nextAir),
			})
		}
	}

	if stored.InProduction && !fresh.InProduction {
		ch.Apply = true
		ch.Recent = true
		ch.DropFromList = true
		events = append(events, Event{
			Category: CategoryEnded,
			Kind:     "series",
			Title:    fresh.Name,
		})
	}

	return ch, events, nil
}

func daysBetween(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}

func parseDateOrZero(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(dateLayout, s)
}
