package fs

import (
	"os"
	"slices"
	"sync"
	"time"
)

// cacheEntry is the last read content of a file with the stat it was read at.
type cacheEntry struct {
	Data         []byte
	LastModified time.Time
	Size         int64
}

// cache keeps file contents in memory while the file is unchanged on disk,
// so repeated scans decode from memory instead of re-reading every file.
type cache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry // Key is the absolute file path
	hits    uint64
	misses  uint64
}

func newCache() *cache {
	return &cache{entries: make(map[string]*cacheEntry)}
}

// Get returns a copy of the cached content when it matches the current stat.
func (c *cache) Get(path string, info os.FileInfo) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[path]
	if !ok || !entry.LastModified.Equal(info.ModTime()) || entry.Size != info.Size() {
		c.misses++
		return nil, false
	}
	c.hits++
	return slices.Clone(entry.Data), true
}

// Set stores content read at the given stat.
func (c *cache) Set(path string, info os.FileInfo, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[path] = &cacheEntry{
		Data:         slices.Clone(data),
		LastModified: info.ModTime(),
		Size:         info.Size(),
	}
}

// Delete removes a single entry from the cache.
func (c *cache) Delete(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, path)
}

// Clear drops every entry.
func (c *cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*cacheEntry)
}

// Len returns the number of entries in the cache.
func (c *cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats returns hit and miss counters.
func (c *cache) Stats() (hits, misses uint64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}
