package storage

import (
	"context"
	"errors"
	"sync"
	"time"
)

// MemoryCache is an in-process prediction cache. It is safe for
// concurrent use by multiple goroutines.
//
// Without a TTL the cache grows without bound, which is acceptable at
// the documented scale (hundreds of distinct requests). With a TTL, a
// background goroutine removes expired entries; call Stop to shut it
// down when the cache is no longer needed.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry

	ttl           time.Duration
	cleanupTicker *time.Ticker
	stopCleanup   chan struct{}
	cleanupDone   chan struct{}
	stopOnce      sync.Once
}

type memoryEntry struct {
	prediction Prediction
	createdAt  time.Time
}

// NewMemoryCache creates an unbounded in-memory cache with no TTL.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
	}
}

// NewMemoryCacheWithTTL creates an in-memory cache whose entries expire
// after ttl. cleanupInterval controls how often expired entries are
// collected; it defaults to one minute when <= 0.
func NewMemoryCacheWithTTL(ttl, cleanupInterval time.Duration) *MemoryCache {
	if ttl <= 0 {
		panic("TTL must be positive")
	}
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}

	c := &MemoryCache{
		entries:       make(map[string]memoryEntry),
		ttl:           ttl,
		cleanupTicker: time.NewTicker(cleanupInterval),
		stopCleanup:   make(chan struct{}),
		cleanupDone:   make(chan struct{}),
	}

	go c.runCleanup()

	return c
}

// Stop shuts down the cleanup goroutine. Safe to call multiple times or
// on a cache without TTL.
func (c *MemoryCache) Stop() {
	if c.cleanupTicker == nil {
		return
	}
	c.stopOnce.Do(func() {
		close(c.stopCleanup)
		<-c.cleanupDone
		c.cleanupTicker.Stop()
	})
}

func (c *MemoryCache) runCleanup() {
	defer close(c.cleanupDone)

	for {
		select {
		case <-c.cleanupTicker.C:
			c.cleanup()
		case <-c.stopCleanup:
			return
		}
	}
}

func (c *MemoryCache) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, entry := range c.entries {
		if now.Sub(entry.createdAt) > c.ttl {
			delete(c.entries, key)
		}
	}
}

// Get returns the cached prediction for key, if present and not expired.
func (c *MemoryCache) Get(ctx context.Context, key string) (Prediction, bool, error) {
	select {
	case <-ctx.Done():
		return Prediction{}, false, ctx.Err()
	default:
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, found := c.entries[key]
	if !found {
		return Prediction{}, false, nil
	}
	if c.ttl > 0 && time.Since(entry.createdAt) > c.ttl {
		return Prediction{}, false, nil
	}
	return entry.prediction, true, nil
}

// Put stores a prediction under key, replacing any existing entry.
func (c *MemoryCache) Put(ctx context.Context, key string, p Prediction) error {
	if key == "" {
		return errors.New("cache key cannot be empty")
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = memoryEntry{prediction: p, createdAt: time.Now()}
	return nil
}

// Len returns the number of cached entries, expired ones included.
// Primarily useful for tests and metrics.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Delete removes the entry for key, reporting whether one existed.
func (c *MemoryCache) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, existed := c.entries[key]
	delete(c.entries, key)
	return existed
}
