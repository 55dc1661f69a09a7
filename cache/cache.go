// Package cache provides an in-memory cache of evaluation results, keyed by
// the start URL and the query document that produced them, adapted from
// cache/cache.go's sha256-keyed response cache.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	"github.com/starlitlog/dr-web-engine/query"
)

// entry holds a cached evaluation result with its creation timestamp.
type entry struct {
	result    any
	createdAt time.Time
}

// Cache is a simple in-memory cache for evaluation results, safe for
// concurrent use.
type Cache struct {
	mu         sync.RWMutex
	store      map[string]*entry
	maxEntries int
	ttl        time.Duration
}

// New creates a Cache with the given capacity and entry lifetime. A
// background goroutine evicts expired entries every fifth of the TTL,
// so the sweep interval tracks whatever TTL the caller configures.
func New(maxEntries int, ttl time.Duration) *Cache {
	c := &Cache{
		store:      make(map[string]*entry),
		maxEntries: maxEntries,
		ttl:        ttl,
	}
	go c.cleanupLoop()
	return c
}

// Key derives a cache key from the start URL and the query document it will
// be evaluated against, so two requests only collide when both the target
// and the steps to run against it are identical.
func Key(startURL string, q *query.Query) string {
	h := sha256.New()
	h.Write([]byte(startURL))
	h.Write([]byte("|"))
	if body, err := json.Marshal(q); err == nil {
		h.Write(body)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Get retrieves a cached result, reporting whether it was present and still
// within its lifetime.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.RLock()
	e, ok := c.store[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}
	if time.Since(e.createdAt) > c.ttl {
		return nil, false
	}
	return e.result, true
}

// Set stores a result in the cache, evicting one entry at random if the
// cache is at capacity (map iteration order in Go is already randomized,
// so the first key seen during iteration is effectively a random pick).
func (c *Cache) Set(key string, result any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.store) >= c.maxEntries {
		for k := range c.store {
			delete(c.store, k)
			break
		}
	}
	c.store[key] = &entry{result: result, createdAt: time.Now()}
}

func (c *Cache) cleanupLoop() {
	interval := c.ttl / 5
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for range ticker.C {
		cutoff := time.Now().Add(-c.ttl)
		c.mu.Lock()
		for k, e := range c.store {
			if e.createdAt.Before(cutoff) {
				delete(c.store, k)
			}
		}
		c.mu.Unlock()
	}
}
