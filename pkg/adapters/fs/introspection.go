package fs

import (
	"time"

	"github.com/aretw0/introspection"
)

// KVState exposes internal state for observability.
type KVState struct {
	Path          string     `json:"path"`
	ReadOnly      bool       `json:"read_only"`
	CacheSize     int        `json:"cache_size"`
	CacheHits     uint64     `json:"cache_hits"`
	CacheMisses   uint64     `json:"cache_misses"`
	WatcherActive bool       `json:"watcher_active"`
	LastEvent     *time.Time `json:"last_event,omitempty"`
}

// State implements introspection.Introspectable.
func (r *KV) State() any {
	r.mu.RLock()
	defer r.mu.RUnlock()

	hits, misses := r.cache.Stats()
	return KVState{
		Path:          r.Path,
		ReadOnly:      r.config.ReadOnly,
		CacheSize:     r.cache.Len(),
		CacheHits:     hits,
		CacheMisses:   misses,
		WatcherActive: r.watcherActive,
		LastEvent:     r.lastEvent,
	}
}

// ComponentType implements introspection.Component.
func (r *KV) ComponentType() string {
	return "fs"
}

var _ introspection.Introspectable = (*KV)(nil)
var _ introspection.Component = (*KV)(nil)

func (r *KV) setWatcherActive(active bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.watcherActive = active
}

func (r *KV) recordEvent() {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	r.lastEvent = &now
}
