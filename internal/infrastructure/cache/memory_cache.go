package cache

import (
	"context"
	"sync"
	"time"

	"github.com/craftshop/backend/internal/domain/integration"
)

// cacheEntry is a stored value with expiration.
type cacheEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryCache implements the integration cache on an in-memory map. This is
// suitable for single-instance deployments and testing. A background
// goroutine reaps expired entries.
type MemoryCache struct {
	mu        sync.RWMutex
	entries   map[string]cacheEntry
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
	now       func() time.Time
}

// NewMemoryCache creates an in-memory cache and starts its cleanup loop.
func NewMemoryCache() *MemoryCache {
	c := &MemoryCache{
		entries:  make(map[string]cacheEntry),
		stopChan: make(chan struct{}),
		now:      time.Now,
	}
	c.wg.Add(1)
	go c.cleanupLoop()
	return c
}

// Get returns the cached value or ErrCacheMiss. Expired entries report as
// absent even before the cleanup loop reaps them.
func (c *MemoryCache) Get(_ context.Context, key integration.CacheKey) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key.String()]
	if !ok || c.now().After(e.expiresAt) {
		return nil, integration.ErrCacheMiss
	}
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, nil
}

// Set stores value under key with the given TTL.
func (c *MemoryCache) Set(_ context.Context, key integration.CacheKey, value []byte, ttl time.Duration) error {
	stored := make([]byte, len(value))
	copy(stored, value)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key.String()] = cacheEntry{
		value:     stored,
		expiresAt: c.now().Add(ttl),
	}
	return nil
}

// Invalidate removes key. Removing an absent key is not an error.
func (c *MemoryCache) Invalidate(_ context.Context, key integration.CacheKey) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key.String())
	return nil
}

// Close stops the cleanup loop.
func (c *MemoryCache) Close() {
	c.closeOnce.Do(func() {
		close(c.stopChan)
	})
	c.wg.Wait()
}

func (c *MemoryCache) cleanupLoop() {
	defer c.wg.Done()
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-c.stopChan:
			return
		case <-ticker.C:
			c.reap()
		}
	}
}

func (c *MemoryCache) reap() {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
		}
	}
}

// Ensure MemoryCache implements the cache port.
var _ integration.Cache = (*MemoryCache)(nil)
