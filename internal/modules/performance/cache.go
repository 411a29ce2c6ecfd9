package performance

import (
	"strings"
	"sync"
	"time"
)

// Cache holds computed metrics for a short TTL. Keys are
// portfolioID|windowKey|asOfDay, so a tick of the clock past midnight or
// any mutation on the portfolio naturally misses.
type Cache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	ttl     time.Duration
}

type cacheEntry struct {
	metrics   *Metrics
	expiresAt time.Time
}

func NewCache(ttl time.Duration) *Cache {
	return &Cache{entries: make(map[string]cacheEntry), ttl: ttl}
}

func cacheKey(portfolioID, windowKey string, asOf time.Time) string {
	return portfolioID + "|" + windowKey + "|" + asOf.UTC().Format("2006-01-02")
}

func (c *Cache) Get(key string) (*Metrics, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		delete(c.entries, key)
		return nil, false
	}
	return entry.metrics, true
}

func (c *Cache) Set(key string, m *Metrics) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Opportunistic sweep keeps the map from accumulating dead windows
	now := time.Now()
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
		}
	}
	c.entries[key] = cacheEntry{metrics: m, expiresAt: now.Add(c.ttl)}
}

// Invalidate drops every cached window for a portfolio. Called after any
// mutation that changes holdings or prices.
func (c *Cache) Invalidate(portfolioID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	prefix := portfolioID + "|"
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
		}
	}
}
