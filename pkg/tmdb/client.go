package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// ErrOffline is returned when offline mode is enabled and a request
// would have to hit the network.
var ErrOffline = errors.New("tmdb: offline mode is enabled")

// StatusError reports a non-200 response from TMDB.
type StatusError struct {
	Code int
	Path string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("tmdb: HTTP %d for %s", e.Code, e.Path)
}

// IsNotFound reports whether err is a TMDB 404 response.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusNotFound
}

// Options configures a Client.
type Options struct {
	APIKey   string
	Language string
	Region   string
	// Offline reports whether network lookups are currently disabled.
	// Nil means always online.
	Offline func() bool
	// BaseURL and ImageBaseURL override the production endpoints.
	// Used by tests and API proxies.
	BaseURL      string
	ImageBaseURL string
}

// Client talks to the TMDB v3 API. Requests are processed one at a
// time and detail responses are cached for a few hours, so repeated
// refreshes of the same library stay well under TMDB's rate limits.
type Client struct {
	apiKey     string
	language   string
	region     string
	baseURL    string
	imageBase  string
	offline    func() bool
	httpClient *http.Client
	slot       chan struct{}
	cache      *responseCache
}

// NewClient builds a TMDB client. The API key is required.
func NewClient(opts Options) (*Client, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("tmdb: TMDB_API_KEY is not set")
	}
	c := &Client{
		apiKey:    opts.APIKey,
		language:  opts.Language,
		region:    opts.Region,
		baseURL:   tmdbBaseURL,
		imageBase: tmdbImageBase,
		offline:   opts.Offline,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		slot:  make(chan struct{}, 1),
		cache: newResponseCache(6 * time.Hour),
	}
	if opts.BaseURL != "" {
		c.baseURL = opts.BaseURL
	}
	if opts.ImageBaseURL != "" {
		c.imageBase = opts.ImageBaseURL
	}
	c.slot <- struct{}{}
	return c, nil
}

// SearchMovies searches TMDB for movies matching the query.
func (c *Client) SearchMovies(ctx context.Context, query string) ([]Movie, error) {
	q := c.baseQuery()
	q.Set("query", query)
	q.Set("include_adult", "false")

	var result struct {
		Results []Movie `json:"results"`
	}
	if err := c.get(ctx, "/search/movie", q, false, &result); err != nil {
		return nil, err
	}
	return result.Results, nil
}

// SearchSeries searches TMDB for TV series matching the query.
func (c *Client) SearchSeries(ctx context.Context, query string) ([]Series, error) {
	q := c.baseQuery()
	q.Set("query", query)
	q.Set("include_adult", "false")

	var result struct {
		Results []Series `json:"results"`
	}
	if err := c.get(ctx, "/search/tv", q, false, &result); err != nil {
		return nil, err
	}
	return result.Results, nil
}

// MovieDetails fetches full movie details by TMDB id, with the cast
// appended in the same request.
func (c *Client) MovieDetails(ctx context.Context, tmdbID int) (*Movie, error) {
	q := c.baseQuery()
	q.Set("append_to_response", "credits")

	var movie Movie
	if err := c.get(ctx, "/movie/"+strconv.Itoa(tmdbID), q, true, &movie); err != nil {
		return nil, err
	}
	return &movie, nil
}

// SeriesDetails fetches full TV series details by TMDB id, including
// the last and next episodes to air and the cast.
func (c *Client) SeriesDetails(ctx context.Context, tmdbID int) (*Series, error) {
	q := c.baseQuery()
	q.Set("append_to_response", "credits")

	var series Series
	if err := c.get(ctx, "/tv/"+strconv.Itoa(tmdbID), q, true, &series); err != nil {
		return nil, err
	}
	return &series, nil
}

func (c *Client) baseQuery() url.Values {
	q := url.Values{}
	q.Set("api_key", c.apiKey)
	if c.language != "" {
		q.Set("language", c.language)
	}
	if c.region != "" {
		q.Set("region", c.region)
	}
	return q
}

// get performs a GET against the TMDB API and decodes the JSON
// response into dst. Detail lookups are served from the response
// cache when possible; search results are always fetched fresh.
func (c *Client) get(ctx context.Context, path string, q url.Values, cacheable bool, dst interface{}) error {
	cacheKey := path + "?" + q.Encode()
	if cacheable {
		if body, ok := c.cache.get(cacheKey); ok {
			return json.Unmarshal(body, dst)
		}
	}

	if c.offline != nil && c.offline() {
		return ErrOffline
	}

	// One request at a time keeps us far away from TMDB's burst limits.
	select {
	case <-c.slot:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { c.slot <- struct{}{} }()

	reqURL := c.baseURL + path + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("tmdb: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("tmdb: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("tmdb: invalid API key, check TMDB_API_KEY")
	}
	if resp.StatusCode != http.StatusOK {
		return &StatusError{Code: resp.StatusCode, Path: path}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("tmdb: read response: %w", err)
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("tmdb: decode response: %w", err)
	}
	if cacheable {
		c.cache.put(cacheKey, body)
	}
	return nil
}
