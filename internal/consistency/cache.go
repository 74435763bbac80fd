// Package consistency keeps reads that follow a caller's own write on the
// primary for a short window.
//
// A write by an identified caller records a mutation marker for that caller.
// Until the marker expires, the caller's reads are sent to the primary
// instead of a replica that may still be lagging. Markers live in an
// in-memory Cache or, for deployments with several processes, in Redis.
package consistency

import (
	"context"
	"sync"
	"time"

	"github.com/juju/clock"

	"github.com/koustreak/dbroute/internal/logger"
	"github.com/koustreak/dbroute/internal/metrics"
)

// DefaultTTL is the read-after-write window.
const DefaultTTL = 5 * time.Second

type entry struct {
	createdAt time.Time
	expiresAt time.Time
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithClock sets the time source.
func WithClock(clk clock.Clock) CacheOption {
	return func(c *Cache) {
		if clk != nil {
			c.clock = clk
		}
	}
}

// WithCacheMetrics reports cache size and evictions to m.
func WithCacheMetrics(m *metrics.Metrics) CacheOption {
	return func(c *Cache) { c.metrics = m }
}

// WithCacheLogger sets the logger used by Run.
func WithCacheLogger(l *logger.Logger) CacheOption {
	return func(c *Cache) { c.log = logger.OrNop(l) }
}

// Cache maps consistency keys to mutation windows. Safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	entries map[string]entry
	ttl     time.Duration

	clock   clock.Clock
	metrics *metrics.Metrics
	log     *logger.Logger
}

// NewCache returns an empty cache. A non-positive ttl means DefaultTTL.
func NewCache(ttl time.Duration, opts ...CacheOption) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &Cache{
		entries: make(map[string]entry),
		ttl:     ttl,
		clock:   clock.WallClock,
		log:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TTL returns the window length.
func (c *Cache) TTL() time.Duration { return c.ttl }

// Set starts a fresh window for key, replacing any earlier one.
func (c *Cache) Set(key string) {
	now := c.clock.Now()

	c.mu.Lock()
	c.entries[key] = entry{createdAt: now, expiresAt: now.Add(c.ttl)}
	n := len(c.entries)
	c.mu.Unlock()

	c.metrics.SetCacheEntries(n)
}

// Get returns the expiry of key's window. An expired entry is removed and
// reported absent.
func (c *Cache) Get(key string) (time.Time, bool) {
	now := c.clock.Now()

	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok {
		c.mu.Unlock()
		return time.Time{}, false
	}
	if !now.Before(e.expiresAt) {
		delete(c.entries, key)
		n := len(c.entries)
		c.mu.Unlock()

		c.metrics.AddCacheEvictions(1)
		c.metrics.SetCacheEntries(n)
		return time.Time{}, false
	}
	c.mu.Unlock()
	return e.expiresAt, true
}

// Cleanup removes every expired entry and returns how many it removed.
func (c *Cache) Cleanup() int {
	now := c.clock.Now()

	c.mu.Lock()
	removed := 0
	for k, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, k)
			removed++
		}
	}
	n := len(c.entries)
	c.mu.Unlock()

	c.metrics.AddCacheEvictions(removed)
	c.metrics.SetCacheEntries(n)
	return removed
}

// Len returns the number of entries, expired or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Run calls Cleanup every interval until ctx is done.
func (c *Cache) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.clock.After(interval):
			if n := c.Cleanup(); n > 0 {
				c.log.Debugf("swept %d expired mutation entries", n)
			}
		}
	}
}
