package cache

import (
	"context"
	"sync"
	"time"
)

// TTLCache implements Store in memory with time-based expiration
type TTLCache struct {
	mu         sync.RWMutex
	entries    map[string]*cacheEntry
	maxEntries int
	stats      Stats
	now        func() time.Time

	// Cleanup
	stopCh   chan struct{}
	stopOnce sync.Once
}

type cacheEntry struct {
	value    []byte
	expires  time.Time // zero means no expiry
	accessed time.Time
}

// Stats is a snapshot of cache counters
type Stats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
	Entries   int   `json:"entries"`
}

// NewTTLCache creates a new TTL cache with specified maximum entries
func NewTTLCache(maxEntries int) *TTLCache {
	if maxEntries <= 0 {
		maxEntries = 1024
	}
	cache := &TTLCache{
		entries:    make(map[string]*cacheEntry),
		maxEntries: maxEntries,
		now:        time.Now,
		stopCh:     make(chan struct{}),
	}

	// Start cleanup goroutine
	go cache.cleanup()

	return cache
}

// Get retrieves a value from cache if not expired
func (c *TTLCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, exists := c.entries[key]
	if !exists || c.expired(entry) {
		c.stats.Misses++
		return nil, false, nil
	}

	entry.accessed = c.now()
	c.stats.Hits++
	return append([]byte(nil), entry.value...), true, nil
}

// Set stores a value in cache with TTL; a non-positive ttl never expires
func (c *TTLCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxEntries {
		c.evictLRU()
	}

	entry := &cacheEntry{
		value:    append([]byte(nil), value...),
		accessed: c.now(),
	}
	if ttl > 0 {
		entry.expires = c.now().Add(ttl)
	}
	c.entries[key] = entry
	return nil
}

// Delete removes a key
func (c *TTLCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

// Stats returns cache performance statistics
func (c *TTLCache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := c.stats
	s.Entries = len(c.entries)
	return s
}

// Close shuts down the cleanup goroutine
func (c *TTLCache) Close() error {
	c.stopOnce.Do(func() { close(c.stopCh) })
	return nil
}

func (c *TTLCache) expired(e *cacheEntry) bool {
	return !e.expires.IsZero() && c.now().After(e.expires)
}

// evictLRU removes the least recently used entry (caller must hold write lock)
func (c *TTLCache) evictLRU() {
	var oldestKey string
	var oldestTime time.Time

	for key, entry := range c.entries {
		if oldestKey == "" || entry.accessed.Before(oldestTime) {
			oldestTime = entry.accessed
			oldestKey = key
		}
	}

	if oldestKey != "" {
		delete(c.entries, oldestKey)
		c.stats.Evictions++
	}
}

// cleanup runs periodically to remove expired entries
func (c *TTLCache) cleanup() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.removeExpired()
		}
	}
}

// removeExpired removes all expired entries
func (c *TTLCache) removeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, entry := range c.entries {
		if c.expired(entry) {
			delete(c.entries, key)
		}
	}
}
