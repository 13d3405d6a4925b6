package whois

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"linkaudit/pkg/models"
)

// Cache memoizes Resolve per domain for the lifetime of a run. Concurrent
// first lookups for the same domain collapse into a single upstream call;
// every later lookup is served from memory, error sentinels included, so a
// domain is queried upstream at most once per run.
type Cache struct {
	resolver Resolver
	group    singleflight.Group

	mu      sync.RWMutex
	records map[string]models.WhoisRecord
}

// NewCache wraps resolver with per-domain memoization.
func NewCache(resolver Resolver) *Cache {
	return &Cache{
		resolver: resolver,
		records:  make(map[string]models.WhoisRecord),
	}
}

// Resolve implements Resolver.
func (c *Cache) Resolve(ctx context.Context, domain string) models.WhoisRecord {
	c.mu.RLock()
	record, ok := c.records[domain]
	c.mu.RUnlock()
	if ok {
		return record
	}

	v, _, _ := c.group.Do(domain, func() (any, error) {
		rec := c.resolver.Resolve(ctx, domain)
		c.mu.Lock()
		c.records[domain] = rec
		c.mu.Unlock()
		return rec, nil
	})
	return v.(models.WhoisRecord)
}

// Lookup returns the cached record for domain without triggering a lookup.
func (c *Cache) Lookup(domain string) (models.WhoisRecord, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	record, ok := c.records[domain]
	return record, ok
}

// Size returns the number of cached domains.
func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}
