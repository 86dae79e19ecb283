package geostore

import (
	"context"
	"errors"
	"sync"

	"github.com/golang/groupcache/lru"
	"github.com/marweda/water-level-forecast/internal/domain"
	"github.com/marweda/water-level-forecast/internal/observability"
)

// Cached remembers resolved stations in front of a slower lookup.
type Cached struct {
	inner   domain.StationLookup
	cache   *lruCache
	metrics *observability.Metrics
}

// NewCached keeps up to maxEntries stations resolved by inner.
func NewCached(inner domain.StationLookup, maxEntries int, metrics *observability.Metrics) *Cached {
	return &Cached{
		inner:   inner,
		cache:   newLRUCache(maxEntries),
		metrics: metrics,
	}
}

// Station implements domain.StationLookup.
func (c *Cached) Station(ctx context.Context, entityID string) (domain.StationMeta, error) {
	if meta, ok := c.cache.get(entityID); ok {
		c.metrics.StationCache.WithLabelValues("hit").Inc()
		return meta, nil
	}
	c.metrics.StationCache.WithLabelValues("miss").Inc()

	meta, err := c.inner.Station(ctx, entityID)
	if err != nil {
		if !errors.Is(err, domain.ErrStationNotFound) {
			c.metrics.StationLookupErrors.Inc()
		}
		return meta, err
	}
	// Misses are not cached so stations added later are found.
	c.cache.put(entityID, meta)
	return meta, nil
}

// lruCache guards a groupcache LRU, which is not safe for concurrent use.
type lruCache struct {
	mu  sync.Mutex
	lru *lru.Cache
}

func newLRUCache(maxEntries int) *lruCache {
	return &lruCache{lru: lru.New(max(maxEntries, 1))}
}

func (c *lruCache) get(entityID string) (domain.StationMeta, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.lru.Get(entityID)
	if !ok {
		return domain.StationMeta{}, false
	}
	return v.(domain.StationMeta), true
}

func (c *lruCache) put(entityID string, meta domain.StationMeta) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Add(entityID, meta)
}

func (c *lruCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}
