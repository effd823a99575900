package tmdb

import (
	"sync"
	"time"
)

// Simple in-memory cache for detail responses
type responseCache struct {
	mu    sync.Mutex
	ttl   time.Duration
	items map[string]cachedResponse
}

type cachedResponse struct {
	body    []byte
	fetched time.Time
}

func newResponseCache(ttl time.Duration) *responseCache {
	return &responseCache{
		ttl:   ttl,
		items: make(map[string]cachedResponse),
	}
}

func (rc *responseCache) get(key string) ([]byte, bool) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	item, ok := rc.items[key]
	if !ok {
		return nil, false
	}
	if time.Since(item.fetched) > rc.ttl {
		delete(rc.items, key)
		return nil, false
	}
	return item.body, true
}

func (rc *responseCache) put(key string, body []byte) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	// Drop expired entries before storing so the map cannot grow
	// without bound across long refresh cycles.
	if len(rc.items) > 512 {
		for k, item := range rc.items {
			if time.Since(item.fetched) > rc.ttl {
				delete(rc.items, k)
			}
		}
	}
	rc.items[key] = cachedResponse{body: body, fetched: time.Now()}
}
