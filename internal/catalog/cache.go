package catalog

import (
	"context"
	"sync"
	"time"

	"github.com/signalsfoundry/conjunction-screener/model"
)

// Fetcher is anything that can supply a catalog.
type Fetcher interface {
	Fetch(ctx context.Context) ([]model.TLE, error)
}

// Cache is a thread-safe TTL cache in front of a Fetcher. Screening
// requests arrive in bursts and the upstream catalog changes on the
// order of hours, so one fetch serves many scans. When a refresh fails
// but a previous catalog is still held, the stale copy is served
// instead of the error.
type Cache struct {
	fetcher Fetcher
	ttl     time.Duration
	now     func() time.Time

	mu        sync.Mutex
	catalog   []model.TLE
	fetchedAt time.Time
}

// NewCache wraps fetcher with the given freshness window.
func NewCache(fetcher Fetcher, ttl time.Duration) *Cache {
	return &Cache{
		fetcher: fetcher,
		ttl:     ttl,
		now:     time.Now,
	}
}

// Fetch returns the cached catalog while fresh, refreshing it through
// the underlying fetcher otherwise. Callers receive a shared read-only
// slice and must not mutate it.
func (c *Cache) Fetch(ctx context.Context) ([]model.TLE, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.catalog != nil && c.now().Sub(c.fetchedAt) < c.ttl {
		return c.catalog, nil
	}

	fresh, err := c.fetcher.Fetch(ctx)
	if err != nil {
		if c.catalog != nil {
			return c.catalog, nil
		}
		return nil, err
	}

	c.catalog = fresh
	c.fetchedAt = c.now()
	return c.catalog, nil
}
