package consistency

import "context"

// Tracker records and looks up recent mutations per consistency key.
type Tracker interface {
	MarkMutation(ctx context.Context, key string) error
	RecentMutation(ctx context.Context, key string) (bool, error)
}

// CacheTracker adapts a Cache to Tracker. It never fails.
type CacheTracker struct {
	cache *Cache
}

// NewCacheTracker wraps c.
func NewCacheTracker(c *Cache) *CacheTracker {
	return &CacheTracker{cache: c}
}

// Cache returns the underlying cache.
func (t *CacheTracker) Cache() *Cache { return t.cache }

func (t *CacheTracker) MarkMutation(_ context.Context, key string) error {
	t.cache.Set(key)
	return nil
}

func (t *CacheTracker) RecentMutation(_ context.Context, key string) (bool, error) {
	_, ok := t.cache.Get(key)
	return ok, nil
}
