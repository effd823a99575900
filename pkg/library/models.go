package library

// Movie represents one movie in the library. Manual entries carry a zero
// TmdbID and are never refreshed against the metadata provider.
type Movie struct {
	ID           int64  `json:"id"`
	TmdbID       int    `json:"tmdbId"`
	Title        string `json:"title"`
	Overview     string `json:"overview,omitempty"`
	Status       string `json:"status,omitempty"`
	PosterPath   string `json:"posterPath,omitempty"`
	BackdropPath string `json:"backdropPath,omitempty"`
	ReleaseDate  string `json:"releaseDate,omitempty"`
	Runtime      int    `json:"runtime,omitempty"`
	Genres       string `json:"genres,omitempty"`
	Cast         string `json:"cast,omitempty"`

	Manual           bool `json:"manual"`
	Watched          bool `json:"watched"`
	NewRelease       bool `json:"newRelease"`
	SoonRelease      bool `json:"soonRelease"`
	RecentChange     bool `json:"recentChange"`
	NotificationList bool `json:"notificationList"`

	AddedAt   int64 `json:"addedAt"`
	UpdatedAt int64 `json:"updatedAt"`
}

// Series represents one TV series in the library
type Series struct {
	ID           int64  `json:"id"`
	TmdbID       int    `json:"tmdbId"`
	Title        string `json:"title"`
	Overview     string `json:"overview,omitempty"`
	Status       string `json:"status,omitempty"`
	PosterPath   string `json:"posterPath,omitempty"`
	BackdropPath string `json:"backdropPath,omitempty"`
	FirstAirDate string `json:"firstAirDate,omitempty"`
	LastAirDate  string `json:"lastAirDate,omitempty"`
	NextAirDate  string `json:"nextAirDate,omitempty"`
	InProduction bool   `json:"inProduction"`
	Seasons      int    `json:"seasons,omitempty"`
	Episodes     int    `json:"episodes,omitempty"`
	Genres       string `json:"genres,omitempty"`
	Cast         string `json:"cast,omitempty"`

	Manual           bool `json:"manual"`
	Watched          bool `json:"watched"`
	WatchedEpisodes  int  `json:"watchedEpisodes"`
	NewRelease       bool `json:"newRelease"`
	SoonRelease      bool `json:"soonRelease"`
	RecentChange     bool `json:"recentChange"`
	NotificationList bool `json:"notificationList"`

	AddedAt   int64 `json:"addedAt"`
	UpdatedAt int64 `json:"updatedAt"`
}
