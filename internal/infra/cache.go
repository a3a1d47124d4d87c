// Package infra provides shared infrastructure for the wikikit client:
// a TTL cache for API responses and an in-flight request deduplicator.
package infra

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Cache size limits to prevent unbounded memory growth
const (
	DefaultMaxCacheEntries = 2000
	DefaultCacheCleanup    = 5 * time.Minute
)

// CacheEntry holds cached data with expiration and access tracking
type CacheEntry struct {
	Data       any
	ExpiresAt  time.Time
	AccessedAt time.Time
	Key        string
	mu         sync.Mutex
}

// Cache is a TTL cache with LRU eviction, used by the wiki client for
// site info, namespace tables and page content reads.
type Cache struct {
	entries    sync.Map // key (string) -> *CacheEntry
	count      int64
	maxEntries int64
	mu         sync.Mutex // serializes evictions

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewCache creates a cache holding at most maxEntries entries.
func NewCache(maxEntries int) *Cache {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxCacheEntries
	}
	c := &Cache{
		maxEntries: int64(maxEntries),
		stopCh:     make(chan struct{}),
	}
	go c.cleanupLoop()
	return c
}

// Get retrieves a cached value if it exists and has not expired.
func (c *Cache) Get(key string) (any, bool) {
	entry, ok := c.entries.Load(key)
	if !ok {
		return nil, false
	}
	ce := entry.(*CacheEntry)
	now := time.Now()
	if now.After(ce.ExpiresAt) {
		c.entries.Delete(key)
		atomic.AddInt64(&c.count, -1)
		return nil, false
	}
	ce.mu.Lock()
	ce.AccessedAt = now
	ce.mu.Unlock()
	return ce.Data, true
}

// Set stores a value with the given TTL.
func (c *Cache) Set(key string, data any, ttl time.Duration) {
	now := time.Now()
	_, existed := c.entries.Load(key)
	c.entries.Store(key, &CacheEntry{
		Data:       data,
		ExpiresAt:  now.Add(ttl),
		AccessedAt: now,
		Key:        key,
	})
	if !existed {
		if n := atomic.AddInt64(&c.count, 1); n > c.maxEntries {
			go c.evictLRU(int(n - c.maxEntries + c.maxEntries/10))
		}
	}
}

// Delete removes a key.
func (c *Cache) Delete(key string) {
	if _, existed := c.entries.LoadAndDelete(key); existed {
		atomic.AddInt64(&c.count, -1)
	}
}

// DeletePrefix removes every entry whose key starts with prefix. The wiki
// client uses this to invalidate page reads after a write to that page.
func (c *Cache) DeletePrefix(prefix string) {
	var deleted int64
	c.entries.Range(func(key, _ any) bool {
		if k := key.(string); len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			c.entries.Delete(key)
			deleted++
		}
		return true
	})
	if deleted > 0 {
		atomic.AddInt64(&c.count, -deleted)
	}
}

// Size returns the current number of entries.
func (c *Cache) Size() int64 {
	return atomic.LoadInt64(&c.count)
}

// Close stops the background cleanup goroutine. Safe to call repeatedly.
func (c *Cache) Close() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
	})
}

func (c *Cache) cleanupLoop() {
	ticker := time.NewTicker(DefaultCacheCleanup)
	defer ticker.Stop()
	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.cleanup()
		}
	}
}

func (c *Cache) cleanup() {
	now := time.Now()
	var expired int64
	c.entries.Range(func(key, value any) bool {
		if now.After(value.(*CacheEntry).ExpiresAt) {
			c.entries.Delete(key)
			expired++
		}
		return true
	})
	if expired > 0 {
		atomic.AddInt64(&c.count, -expired)
	}
	if n := atomic.LoadInt64(&c.count); n > c.maxEntries {
		c.evictLRU(int(n - c.maxEntries + c.maxEntries/10))
	}
}

func (c *Cache) evictLRU(count int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	type entryInfo struct {
		key        string
		accessedAt time.Time
	}
	var entries []entryInfo
	c.entries.Range(func(key, value any) bool {
		ce := value.(*CacheEntry)
		ce.mu.Lock()
		accessedAt := ce.AccessedAt
		ce.mu.Unlock()
		entries = append(entries, entryInfo{key.(string), accessedAt})
		return true
	})

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].accessedAt.Before(entries[j].accessedAt)
	})

	for i := 0; i < count && i < len(entries); i++ {
		c.Delete(entries[i].key)
	}
}
