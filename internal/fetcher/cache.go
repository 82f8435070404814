package fetcher

import (
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/JakeFAU/recipe-importer/internal/metrics"
	"github.com/JakeFAU/recipe-importer/internal/recipe"
)

// Cache holds recent crawl results keyed by canonical URL. It is bounded by
// entry count and every entry expires after the TTL.
type Cache struct {
	entries *ristretto.Cache[string, recipe.CrawlResult]
	ttl     time.Duration
}

// NewCache builds a cache of at most maxEntries results. A non-positive ttl
// disables caching.
func NewCache(maxEntries int, ttl time.Duration) (*Cache, error) {
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	entries, err := ristretto.NewCache(&ristretto.Config[string, recipe.CrawlResult]{
		NumCounters:        int64(maxEntries) * 10,
		MaxCost:            int64(maxEntries),
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create crawl cache: %w", err)
	}
	return &Cache{entries: entries, ttl: ttl}, nil
}

// Get returns the cached result for key, marked FromCache.
func (c *Cache) Get(key string) (recipe.CrawlResult, bool) {
	if c == nil || c.ttl <= 0 {
		return recipe.CrawlResult{}, false
	}
	res, ok := c.entries.Get(key)
	metrics.ObserveCache("crawl", ok)
	if !ok {
		return recipe.CrawlResult{}, false
	}
	res.FromCache = true
	return res, true
}

// Set stores res under key. Concurrent writers to the same key race and the
// last write wins.
func (c *Cache) Set(key string, res recipe.CrawlResult) {
	if c == nil || c.ttl <= 0 {
		return
	}
	c.entries.SetWithTTL(key, res, 1, c.ttl)
	c.entries.Wait()
}

// Clear drops every entry.
func (c *Cache) Clear() {
	if c == nil {
		return
	}
	c.entries.Clear()
}

// Close releases the cache's background goroutines.
func (c *Cache) Close() {
	if c == nil {
		return
	}
	c.entries.Close()
}
