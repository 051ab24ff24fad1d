package extract

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/avoronkov/mediafetch/internal/domain"
	"github.com/avoronkov/mediafetch/internal/metrics"
)

// InfoCache caches extraction metadata per request URL for a short TTL and
// collapses concurrent extractions of the same URL into a single engine call.
type InfoCache struct {
	engine Engine
	ttl    time.Duration

	mu      sync.RWMutex
	entries map[string]cacheEntry
	group   singleflight.Group

	now func() time.Time
}

type cacheEntry struct {
	info      *domain.VideoInfo
	fetchedAt time.Time
}

// NewInfoCache wraps an engine with a TTL metadata cache.
func NewInfoCache(engine Engine, ttl time.Duration) *InfoCache {
	return &InfoCache{
		engine:  engine,
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

func cacheKey(url string) string {
	sum := md5.Sum([]byte(url))
	return hex.EncodeToString(sum[:])
}

// Info returns cached metadata when fresh, otherwise queries the engine.
// Concurrent callers for the same URL share one engine call.
func (c *InfoCache) Info(ctx context.Context, url string) (*domain.VideoInfo, error) {
	key := cacheKey(url)

	c.mu.RLock()
	entry, exists := c.entries[key]
	c.mu.RUnlock()

	if exists && c.now().Sub(entry.fetchedAt) < c.ttl {
		metrics.InfoCacheHits.Inc()
		return entry.info, nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		info, err := c.engine.Info(ctx, url)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.entries[key] = cacheEntry{info: info, fetchedAt: c.now()}
		c.mu.Unlock()

		return info, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*domain.VideoInfo), nil
}

// Purge drops all entries older than the TTL as of the given moment.
func (c *InfoCache) Purge(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, entry := range c.entries {
		if now.Sub(entry.fetchedAt) >= c.ttl {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of cached entries.
func (c *InfoCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
