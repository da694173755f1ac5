package gamedb

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

type cacheEntry struct {
	rows     []Row
	storedAt time.Time
}

// queryCache is a small in-process TTL cache for read results. It is keyed by
// the expanded query plus its sorted parameters, so the same logical read with
// reordered params hits the same entry.
type queryCache struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[string]cacheEntry
}

func newQueryCache(ttl time.Duration) *queryCache {
	return &queryCache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]cacheEntry),
	}
}

func cacheKey(query string, params map[string]any) string {
	if len(params) == 0 {
		return query
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(query)
	for _, k := range keys {
		fmt.Fprintf(&b, "|%s=%v", k, params[k])
	}
	return b.String()
}

func (c *queryCache) get(key string) ([]Row, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().Sub(entry.storedAt) >= c.ttl {
		delete(c.entries, key)
		return nil, false
	}
	return entry.rows, true
}

func (c *queryCache) set(key string, rows []Row) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{rows: rows, storedAt: c.now()}
}

func (c *queryCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
}
