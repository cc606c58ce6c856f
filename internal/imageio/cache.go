package imageio

import (
	"path/filepath"
	"sync"

	"flatten360/internal/raster"
)

// Cache is a concurrency-safe cache of decoded frames keyed by path. Frames
// handed out are shared and must not be modified.
type Cache struct {
	mu    sync.RWMutex
	items map[string]*cacheEntry
	load  func(string) (*raster.Frame, error)
}

type cacheEntry struct {
	frame *raster.Frame
	err   error
}

// NewCache returns an empty cache backed by Load.
func NewCache() *Cache {
	return &Cache{
		items: make(map[string]*cacheEntry),
		load:  Load,
	}
}

// Get returns the decoded frame for path, decoding it on first use. Decode
// failures are cached too.
func (c *Cache) Get(path string) (*raster.Frame, error) {
	key := filepath.Clean(path)

	c.mu.RLock()
	if entry, ok := c.items[key]; ok {
		c.mu.RUnlock()
		return entry.frame, entry.err
	}
	c.mu.RUnlock()

	frame, err := c.load(key)

	// Double-check: another goroutine may have won the race.
	c.mu.Lock()
	defer c.mu.Unlock()
	if entry, ok := c.items[key]; ok {
		return entry.frame, entry.err
	}
	c.items[key] = &cacheEntry{frame: frame, err: err}
	return frame, err
}

// Len returns the number of cached paths.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
