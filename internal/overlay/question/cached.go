package question

import (
	"context"
	"strings"

	"github.com/msto63/overlay/pkg/core/cache"
)

// Cached remembers the results of an extractor per normalized transcript
// window. The auto loop and captures often send the same window twice;
// only the first one reaches the remote classifier.
type Cached struct {
	inner Extractor
	cache *cache.Cache[Extraction]
}

// NewCached wraps inner with the given cache
func NewCached(inner Extractor, c *cache.Cache[Extraction]) *Cached {
	return &Cached{inner: inner, cache: c}
}

// Extract implements Extractor. Failures are not cached.
func (c *Cached) Extract(ctx context.Context, text string, keywords []string) (Extraction, error) {
	key := cache.Key(Normalize(text), strings.Join(keywords, ","))
	return c.cache.GetOrSet(key, func() (Extraction, error) {
		return c.inner.Extract(ctx, text, keywords)
	})
}

// Stats returns the hit counters of the underlying cache
func (c *Cached) Stats() cache.Stats {
	return c.cache.Stats()
}

// Close releases the cache
func (c *Cached) Close() {
	c.cache.Close()
}
