package memory

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"
)

const defaultCacheSize = 1000

type cacheEntry struct {
	response string
	storedAt time.Time
}

// ResponseCache memoizes generated replies keyed by normalized utterance
// text, so a repeated question skips the generation stage entirely.
type ResponseCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	ttl     time.Duration
	maxSize int
	hits    int64
	misses  int64
	now     func() time.Time
}

// CacheOption configures a ResponseCache.
type CacheOption func(*ResponseCache)

// WithCacheTTL sets entry time-to-live.
func WithCacheTTL(ttl time.Duration) CacheOption {
	return func(c *ResponseCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithCacheSize bounds the entry count.
func WithCacheSize(n int) CacheOption {
	return func(c *ResponseCache) {
		if n > 0 {
			c.maxSize = n
		}
	}
}

// WithCacheClock injects a time source for tests.
func WithCacheClock(now func() time.Time) CacheOption {
	return func(c *ResponseCache) {
		if now != nil {
			c.now = now
		}
	}
}

// NewResponseCache returns an empty cache.
func NewResponseCache(opts ...CacheOption) *ResponseCache {
	c := &ResponseCache{
		entries: make(map[string]cacheEntry),
		ttl:     time.Hour,
		maxSize: defaultCacheSize,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func cacheKey(query string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(query))))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached reply for a query, if present and fresh.
func (c *ResponseCache) Get(query string) (string, bool) {
	key := cacheKey(query)
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok || c.now().Sub(entry.storedAt) > c.ttl {
		if ok {
			delete(c.entries, key)
		}
		c.misses++
		return "", false
	}
	c.hits++
	return entry.response, true
}

// Set stores a reply, evicting the stalest entry when full.
func (c *ResponseCache) Set(query, response string) {
	key := cacheKey(query)
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[key]; !ok && len(c.entries) >= c.maxSize {
		c.evictStalestLocked()
	}
	c.entries[key] = cacheEntry{response: response, storedAt: c.now()}
}

// Stats reports hit/miss totals.
func (c *ResponseCache) Stats() (hits, misses int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

func (c *ResponseCache) evictStalestLocked() {
	var stalestKey string
	var stalest time.Time
	for k, e := range c.entries {
		if stalestKey == "" || e.storedAt.Before(stalest) {
			stalestKey = k
			stalest = e.storedAt
		}
	}
	if stalestKey != "" {
		delete(c.entries, stalestKey)
	}
}
