package notify

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strings"
	"sync"
	"time"
)

// CacheStats summarises cache effectiveness for observability.
type CacheStats struct {
	Hits    uint64  `json:"hits"`
	Misses  uint64  `json:"misses"`
	Entries int     `json:"entries"`
	HitRate float64 `json:"hit_rate"`
}

type cacheEntry struct {
	value     string
	expiresAt time.Time
	accesses  uint64
}

// TemplateCache memoizes rendered notification bodies. Entries expire
// independently; expiry never cascades to other entries.
type TemplateCache struct {
	defaultTTL time.Duration
	now        func() time.Time

	mu      sync.Mutex
	entries map[string]*cacheEntry
	hits    uint64
	misses  uint64
}

// NewTemplateCache creates a cache whose entries live for defaultTTL unless
// Set is called with an explicit TTL.
func NewTemplateCache(defaultTTL time.Duration) *TemplateCache {
	if defaultTTL <= 0 {
		defaultTTL = time.Hour
	}
	return &TemplateCache{
		defaultTTL: defaultTTL,
		now:        time.Now,
		entries:    make(map[string]*cacheEntry),
	}
}

// CacheKey derives the deterministic key for a (template, data) pair. Data
// keys are sorted before hashing so identical logical requests collide on the
// same key regardless of argument order.
func CacheKey(template string, data map[string]string) string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('|')
		}
		b.WriteString(k)
		b.WriteByte(':')
		b.WriteString(data[k])
	}
	h := fnv.New64a()
	h.Write([]byte(b.String()))
	return fmt.Sprintf("template:%s|data:%016x", template, h.Sum64())
}

// Get returns the cached value for key. Expired entries count as misses and
// are removed lazily.
func (c *TemplateCache) Get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if ok && c.now().Before(e.expiresAt) {
		e.accesses++
		c.hits++
		return e.value, true
	}
	if ok {
		delete(c.entries, key)
	}
	c.misses++
	return "", false
}

// Set stores value under key. A non-positive ttl uses the cache default.
func (c *TemplateCache) Set(key, value string, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	c.mu.Lock()
	c.entries[key] = &cacheEntry{value: value, expiresAt: c.now().Add(ttl)}
	c.mu.Unlock()
}

// Invalidate removes a single entry.
func (c *TemplateCache) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Flush drops every entry but keeps the hit/miss counters.
func (c *TemplateCache) Flush() {
	c.mu.Lock()
	c.entries = make(map[string]*cacheEntry)
	c.mu.Unlock()
}

// Stats returns a snapshot of the cache counters.
func (c *TemplateCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := CacheStats{Hits: c.hits, Misses: c.misses, Entries: len(c.entries)}
	if total := c.hits + c.misses; total > 0 {
		s.HitRate = float64(c.hits) / float64(total)
	}
	return s
}
