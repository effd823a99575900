package tmdb

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"marquee/pkg/logger"
)

// DownloadPoster fetches a poster image into destDir and returns the
// local file path. Already downloaded posters are not fetched again.
// An empty posterPath is not an error; it returns an empty path.
func (c *Client) DownloadPoster(ctx context.Context, posterPath, destDir string) (string, error) {
	if posterPath == "" {
		return "", nil
	}

	filename := strings.TrimPrefix(posterPath, "/")
	if filename == "" || strings.Contains(filename, "/") {
		return "", fmt.Errorf("tmdb: unexpected poster path %q", posterPath)
	}
	localPath := filepath.Join(destDir, filename)

	if _, err := os.Stat(localPath); err == nil {
		return localPath, nil
	}

	if c.offline != nil && c.offline() {
		return "", ErrOffline
	}

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", fmt.Errorf("tmdb: create poster dir: %w", err)
	}

	imageURL := c.imageBase + "/" + filename
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return "", fmt.Errorf("tmdb: build poster request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("tmdb: download poster: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &StatusError{Code: resp.StatusCode, Path: posterPath}
	}

	// Write to a temp file first so a failed download never leaves a
	// truncated poster behind.
	tempPath := localPath + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return "", fmt.Errorf("tmdb: create poster file: %w", err)
	}
	_, err = io.Copy(file, resp.Body)
	file.Close()
	if err != nil {
		os.Remove(tempPath)
		return "", fmt.Errorf("tmdb: write poster file: %w", err)
	}
	if err := os.Rename(tempPath, localPath); err != nil {
		os.Remove(tempPath)
		return "", fmt.Errorf("tmdb: finalize poster file: %w", err)
	}

	logger.Debug("Cached poster %s", filename)
	return localPath, nil
}
