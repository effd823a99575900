package tmdb

import "strings"

const (
	tmdbBaseURL   = "https://api.themoviedb.org/3"
	tmdbImageBase = "https://image.tmdb.org/t/p/w500"
)

// Genre is a TMDB genre entry as returned by the details endpoints.
type Genre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// CastMember is one billed actor from the credits block of a details
// response.
type CastMember struct {
	Name      string `json:"name"`
	Character string `json:"character"`
	Order     int    `json:"order"`
}

// Credits carries the cast appended to a details response via
// append_to_response.
type Credits struct {
	Cast []CastMember `json:"cast"`
}

// Movie holds the TMDB movie fields used by the library. Search results
// carry genre IDs only; the details endpoint fills in the full objects.
type Movie struct {
	ID           int      `json:"id"`
	Title        string   `json:"title"`
	Overview     string   `json:"overview"`
	PosterPath   string   `json:"poster_path"`
	BackdropPath string   `json:"backdrop_path"`
	ReleaseDate  string   `json:"release_date"`
	Runtime      int      `json:"runtime"`
	Status       string   `json:"status"`
	VoteAverage  float64  `json:"vote_average"`
	GenreIDs     []int    `json:"genre_ids,omitempty"`
	Genres       []Genre  `json:"genres,omitempty"`
	Credits      *Credits `json:"credits,omitempty"`
}

// Episode is the slice of episode metadata TMDB reports for a series'
// last and next episodes.
type Episode struct {
	AirDate       string `json:"air_date"`
	SeasonNumber  int    `json:"season_number"`
	EpisodeNumber int    `json:"episode_number"`
	Name          string `json:"name"`
}

// Series holds the TMDB TV fields used by the library.
type Series struct {
	ID               int      `json:"id"`
	Name             string   `json:"name"`
	Overview         string   `json:"overview"`
	PosterPath       string   `json:"poster_path"`
	BackdropPath     string   `json:"backdrop_path"`
	FirstAirDate     string   `json:"first_air_date"`
	LastAirDate      string   `json:"last_air_date"`
	InProduction     bool     `json:"in_production"`
	NumberOfSeasons  int      `json:"number_of_seasons"`
	NumberOfEpisodes int      `json:"number_of_episodes"`
	Status           string   `json:"status"`
	VoteAverage      float64  `json:"vote_average"`
	GenreIDs         []int    `json:"genre_ids,omitempty"`
	Genres           []Genre  `json:"genres,omitempty"`
	LastEpisode      *Episode `json:"last_episode_to_air,omitempty"`
	NextEpisode      *Episode `json:"next_episode_to_air,omitempty"`
	Credits          *Credits `json:"credits,omitempty"`
}

// PosterURL returns the full TMDB image URL for the movie poster, or
// empty if the movie has no poster.
func (m *Movie) PosterURL() string {
	if m.PosterPath == "" {
		return ""
	}
	return tmdbImageBase + m.PosterPath
}

// GenreNames returns the genre names as a comma separated string.
func (m *Movie) GenreNames() string {
	return joinGenres(m.Genres)
}

// CastNames returns the top-billed cast as a comma separated string.
func (m *Movie) CastNames() string {
	if m.Credits == nil {
		return ""
	}
	return joinCast(m.Credits.Cast)
}

// PosterURL returns the full TMDB image URL for the series poster, or
// empty if the series has no poster.
func (s *Series) PosterURL() string {
	if s.PosterPath == "" {
		return ""
	}
	return tmdbImageBase + s.PosterPath
}

// GenreNames returns the genre names as a comma separated string.
func (s *Series) GenreNames() string {
	return joinGenres(s.Genres)
}

// CastNames returns the top-billed cast as a comma separated string.
func (s *Series) CastNames() string {
	if s.Credits == nil {
		return ""
	}
	return joinCast(s.Credits.Cast)
}

// NextAirDate returns the air date of the next scheduled episode, or
// empty when TMDB has not announced one.
func (s *Series) NextAirDate() string {
	if s.NextEpisode == nil {
		return ""
	}
	return s.NextEpisode.AirDate
}

func joinGenres(genres []Genre) string {
	if len(genres) == 0 {
		return ""
	}
	names := make([]string, 0, len(genres))
	for _, g := range genres {
		names = append(names, g.Name)
	}
	return strings.Join(names, ", ")
}

// joinCast keeps the first ten billed names so the library column
// stays a readable headline rather than a full credit roll.
func joinCast(cast []CastMember) string {
	names := make([]string, 0, len(cast))
	for _, c := range cast {
		if len(names) == 10 {
			break
		}
		names = append(names, c.Name)
	}
	return strings.Join(names, ", ")
}
