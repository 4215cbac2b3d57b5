package texture

import (
	"sync"

	"pc-texprep/internal/raster"
)

// Cache is a concurrency-safe cache of decoded pixel buffers, keyed by
// path. The channel packing pipeline re-reads companion maps (a normal map
// feeds both its own chain and the Toksvig pass); the cache keeps that to
// one decode.
type Cache struct {
	mu    sync.RWMutex
	items map[string]*cacheEntry
}

type cacheEntry struct {
	buf *raster.Buffer
	err error
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{items: make(map[string]*cacheEntry)}
}

// Load returns the decoded buffer for path, reading it at most once.
// Failed loads are cached too, so a missing companion is probed only once.
func (c *Cache) Load(path string) (*raster.Buffer, error) {
	// Fast path: read lock.
	c.mu.RLock()
	if entry, ok := c.items[path]; ok {
		c.mu.RUnlock()
		return entry.buf, entry.err
	}
	c.mu.RUnlock()

	buf, err := LoadBuffer(path)

	// Write lock with double-check.
	c.mu.Lock()
	if entry, ok := c.items[path]; ok {
		c.mu.Unlock()
		return entry.buf, entry.err
	}
	c.items[path] = &cacheEntry{buf: buf, err: err}
	c.mu.Unlock()

	return buf, err
}
