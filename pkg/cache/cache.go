package cache

import (
	"encoding/json"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	// DefaultTTL is how long an upstream payload may be served from cache.
	DefaultTTL = 30 * time.Second

	// DefaultCapacity bounds the number of distinct keys held at once.
	DefaultCapacity = 1024
)

// Config holds the cache configuration.
type Config struct {
	TTL      time.Duration
	Capacity int

	// Now is the clock used for storing and aging entries (default time.Now).
	Now func() time.Time
}

// DefaultConfig returns the default cache configuration.
func DefaultConfig() Config {
	return Config{
		TTL:      DefaultTTL,
		Capacity: DefaultCapacity,
		Now:      time.Now,
	}
}

// Cache is an in-process response cache with lazy expiry: stale entries stay
// in place, are reported by Status, and are replaced on the next Put.
type Cache struct {
	entries *lru.Cache[string, *Entry]
	ttl     time.Duration
	now     func() time.Time
}

// New creates a cache from cfg.
func New(cfg Config) (*Cache, error) {
	if cfg.TTL <= 0 {
		return nil, fmt.Errorf("cache ttl must be positive (got %s)", cfg.TTL)
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultCapacity
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	entries, err := lru.New[string, *Entry](cfg.Capacity)
	if err != nil {
		return nil, fmt.Errorf("create lru: %w", err)
	}

	return &Cache{
		entries: entries,
		ttl:     cfg.TTL,
		now:     cfg.Now,
	}, nil
}

// TTL returns the configured time-to-live.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Get returns the payload for key if a fresh entry exists.
func (c *Cache) Get(key string) (json.RawMessage, bool) {
	entry, ok := c.entries.Get(key)
	if !ok {
		CacheMisses.WithLabelValues("absent").Inc()
		return nil, false
	}

	if !entry.IsFresh(c.now(), c.ttl) {
		CacheMisses.WithLabelValues("stale").Inc()
		return nil, false
	}

	CacheHits.Inc()
	return entry.Payload, true
}

// Put stores payload under key, replacing any previous entry.
func (c *Cache) Put(key string, payload json.RawMessage) {
	stored := make(json.RawMessage, len(payload))
	copy(stored, payload)

	evicted := c.entries.Add(key, &Entry{
		Key:      key,
		Payload:  stored,
		StoredAt: c.now(),
	})
	if evicted {
		CacheEvictions.Inc()
	}
	CacheEntries.Set(float64(c.entries.Len()))
}

// Status reports every held entry, including stale ones.
func (c *Cache) Status() map[string]EntryStatus {
	now := c.now()
	status := make(map[string]EntryStatus, c.entries.Len())

	for _, key := range c.entries.Keys() {
		entry, ok := c.entries.Peek(key)
		if !ok {
			continue
		}
		status[key] = EntryStatus{
			Age:      entry.Age(now),
			StoredAt: entry.StoredAt,
			Present:  entry.IsFresh(now, c.ttl),
		}
	}

	return status
}

// Clear removes the entry for key and reports whether one existed.
func (c *Cache) Clear(key string) bool {
	removed := c.entries.Remove(key)
	CacheEntries.Set(float64(c.entries.Len()))
	return removed
}

// ClearAll removes every entry.
func (c *Cache) ClearAll() {
	c.entries.Purge()
	CacheEntries.Set(0)
}

// Len returns the number of held entries, fresh or stale.
func (c *Cache) Len() int {
	return c.entries.Len()
}
