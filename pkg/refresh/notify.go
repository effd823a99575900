package refresh

import (
	"fmt"
	"strings"
	"time"

	"marquee/pkg/state"
)

// Summarize folds the events of one notification check into the
// notices shown to the user. A single affected category gets specific
// copy; several affected categories collapse into one aggregate
// notice so a big refresh never floods the notification list.
func Summarize(events []Event, now time.Time) []state.Notification {
	var moviesReleased, moviesSoon, seriesReleased, seriesSoon, seriesEnded []Event
	for _, ev := range events {
		switch {
		case ev.Kind == "movie" && ev.Category == CategoryReleased:
			moviesReleased = append(moviesReleased, ev)
		case ev.Kind == "movie" && ev.Category == CategorySoon:
			moviesSoon = append(moviesSoon, ev)
		case ev.Kind == "series" && ev.Category == CategoryReleased:
			seriesReleased = append(seriesReleased, ev)
		case ev.Kind == "series" && ev.Category == CategorySoon:
			seriesSoon = append(seriesSoon, ev)
		case ev.Kind == "series" && ev.Category == CategoryEnded:
			seriesEnded = append(seriesEnded, ev)
		}
	}

	groups := 0
	for _, g := range [][]Event{moviesReleased, moviesSoon, seriesReleased, seriesSoon, seriesEnded} {
		if len(g) > 0 {
			groups++
		}
	}
	if groups == 0 {
		return nil
	}

	if groups > 1 {
		countMovies := len(moviesReleased) + len(moviesSoon)
		countSeries := len(seriesReleased) + len(seriesSoon) + len(seriesEnded)
		return []state.Notification{{
			Category:  CategoryUpdate,
			Title:     fmt.Sprintf("%d items of your watchlist have an update", countMovies+countSeries),
			Message:   aggregateBody(countMovies, countSeries),
			CreatedAt: now,
		}}
	}

	var n state.Notification
	switch {
	case len(seriesReleased) > 0:
		n = seriesReleasedNotice(seriesReleased)
	case len(seriesSoon) > 0:
		n = seriesSoonNotice(seriesSoon)
	case len(seriesEnded) > 0:
		n = seriesEndedNotice(seriesEnded)
	case len(moviesReleased) > 0:
		n = moviesReleasedNotice(moviesReleased)
	case len(moviesSoon) > 0:
		n = moviesSoonNotice(moviesSoon)
	}
	n.CreatedAt = now
	return []state.Notification{n}
}

func seriesReleasedNotice(evs []Event) state.Notification {
	if len(evs) == 1 {
		ev := evs[0]
		return state.Notification{
			Category: CategoryReleased,
			Title:    fmt.Sprintf("New release for %s", ev.Title),
			Message:  fmt.Sprintf("A new episode of %s was released %s ago.", ev.Title, days(ev.Days)),
		}
	}
	return state.Notification{
		Category: CategoryReleased,
		Title:    fmt.Sprintf("New release for %d TV series on your watchlist", len(evs)),
		Message:  fmt.Sprintf("The TV series are %s.", titles(evs)),
	}
}

func seriesSoonNotice(evs []Event) state.Notification {
	if len(evs) == 1 {
		ev := evs[0]
		return state.Notification{
			Category: CategorySoon,
			Title:    fmt.Sprintf("%s will have a release soon", ev.Title),
			Message:  fmt.Sprintf("A new episode will release in %s.", days(ev.Days)),
		}
	}
	return state.Notification{
		Category: CategorySoon,
		Title:    fmt.Sprintf("%d TV series on your watchlist will have a new episode soon", len(evs)),
		Message:  fmt.Sprintf("The TV series are %s.", titles(evs)),
	}
}

func seriesEndedNotice(evs []Event) state.Notification {
	if len(evs) == 1 {
		ev := evs[0]
		return state.Notification{
			Category: CategoryEnded,
			Title:    fmt.Sprintf("%s has gone out of production", ev.Title),
			Message:  fmt.Sprintf("%s has wrapped up its run. Now is the perfect time to revisit your favorite moments or find the next binge!", ev.Title),
		}
	}
	return state.Notification{
		Category: CategoryEnded,
		Title:    fmt.Sprintf("%d TV series of your watchlist have gone out of production", len(evs)),
		Message:  fmt.Sprintf("The TV series are %s.", titles(evs)),
	}
}

func moviesReleasedNotice(evs []Event) state.Notification {
	if len(evs) == 1 {
		ev := evs[0]
		return state.Notification{
			Category: CategoryReleased,
			Title:    fmt.Sprintf("%s has had its release!", ev.Title),
			Message:  fmt.Sprintf("%s was released %s ago.", ev.Title, days(ev.Days)),
		}
	}
	return state.Notification{
		Category: CategoryReleased,
		Title:    fmt.Sprintf("%d movies on your watchlist have had their releases", len(evs)),
		Message:  fmt.Sprintf("The movies are %s.", titles(evs)),
	}
}

func moviesSoonNotice(evs []Event) state.Notification {
	if len(evs) == 1 {
		ev := evs[0]
		return state.Notification{
			Category: CategorySoon,
			Title:    fmt.Sprintf("%s will have its release soon!", ev.Title),
			Message:  fmt.Sprintf("%s will have its release in %s.", ev.Title, days(ev.Days)),
		}
	}
	return state.Notification{
		Category: CategorySoon,
		Title:    fmt.Sprintf("%d movies on your watchlist will have their releases soon", len(evs)),
		Message:  fmt.Sprintf("The movies are %s.", titles(evs)),
	}
}

func aggregateBody(movies, series int) string {
	switch {
	case movies > 0 && series > 0:
		return fmt.Sprintf("These updates affect %s and %s.", countMovies(movies), countSeries(series))
	case movies > 0:
		return fmt.Sprintf("These updates affect %s.", countMovies(movies))
	default:
		return fmt.Sprintf("These updates affect %s.", countSeries(series))
	}
}

func countMovies(n int) string {
	if n == 1 {
		return "1 movie"
	}
	return fmt.Sprintf("%d movies", n)
}

func countSeries(n int) string {
	if n == 1 {
		return "1 TV series"
	}
	return fmt.Sprintf("%d TV series", n)
}

func days(n int) string {
	if n == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", n)
}

func titles(evs []Event) string {
	names := make([]string, 0, len(evs))
	for _, ev := range evs {
		names = append(names, ev.Title)
	}
	return strings.Join(names, ", ")
}
