package llmrelay

import (
	"context"
	"sync"
	"time"
)

// ModelFetcher retrieves a provider's model catalog over the network.
type ModelFetcher func(ctx context.Context, providerKey string) (map[string]ModelInfo, error)

// CatalogCache is a get-or-fetch cache over dynamically fetched model
// catalogs. Discipline: empty or failed fetch results are never cached, and
// concurrent refreshes for the same provider key are coalesced into one
// in-flight request.
type CatalogCache struct {
	fetch ModelFetcher
	ttl   time.Duration

	mu       sync.Mutex
	entries  map[string]catalogEntry
	inflight map[string]*inflightFetch
}

type catalogEntry struct {
	models  map[string]ModelInfo
	fetched time.Time
}

type inflightFetch struct {
	done   chan struct{}
	models map[string]ModelInfo
	err    error
}

// NewCatalogCache builds a cache around fetch with the given in-memory TTL.
func NewCatalogCache(fetch ModelFetcher, ttl time.Duration) *CatalogCache {
	return &CatalogCache{
		fetch:    fetch,
		ttl:      ttl,
		entries:  make(map[string]catalogEntry),
		inflight: make(map[string]*inflightFetch),
	}
}

// GetModels returns the catalog for providerKey, fetching on miss or expiry.
// Concurrent callers for the same key share a single fetch.
func (c *CatalogCache) GetModels(ctx context.Context, providerKey string) (map[string]ModelInfo, error) {
	c.mu.Lock()
	if entry, ok := c.entries[providerKey]; ok && time.Since(entry.fetched) < c.ttl {
		c.mu.Unlock()
		return entry.models, nil
	}
	if flight, ok := c.inflight[providerKey]; ok {
		c.mu.Unlock()
		select {
		case <-flight.done:
			return flight.models, flight.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	flight := &inflightFetch{done: make(chan struct{})}
	c.inflight[providerKey] = flight
	c.mu.Unlock()

	models, err := c.fetch(ctx, providerKey)
	flight.models = models
	flight.err = err

	c.mu.Lock()
	delete(c.inflight, providerKey)
	if err == nil && len(models) > 0 {
		c.entries[providerKey] = catalogEntry{models: models, fetched: time.Now()}
	}
	c.mu.Unlock()

	close(flight.done)
	return models, err
}

// GetModelsFromCache returns the cached catalog for providerKey without any
// network call, or false when absent. Expired entries are still returned:
// stale data beats none for display purposes.
func (c *CatalogCache) GetModelsFromCache(providerKey string) (map[string]ModelInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[providerKey]
	if !ok {
		return nil, false
	}
	return entry.models, true
}
