// Package fs implements core.KV on a directory of JSON files, one file per key.
package fs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/notekeep/pkg/core"
)

// Extension is appended to every encoded key.
const Extension = ".json"

// Config holds the configuration for the filesystem engine.
type Config struct {
	Path         string
	ReadOnly     bool
	MustExist    bool
	Logger       *slog.Logger
	ErrorHandler func(error) // Receives runtime watcher failures.
}

// KV implements core.KV using the filesystem.
type KV struct {
	Path   string
	config Config
	cache  *cache

	mu            sync.RWMutex
	watcherActive bool
	lastEvent     *time.Time
	// own records the mtime of files this process wrote (zero time for
	// removals) so the watcher does not report them back.
	own map[string]time.Time
}

// New creates a new filesystem-backed engine.
func New(config Config) *KV {
	if config.Logger == nil {
		config.Logger = slog.New(slog.DiscardHandler)
	}
	return &KV{
		Path:   config.Path,
		config: config,
		cache:  newCache(),
		own:    make(map[string]time.Time),
	}
}

// Initialize ensures the data directory exists.
func (r *KV) Initialize(ctx context.Context) error {
	if r.config.MustExist || r.config.ReadOnly {
		info, err := os.Stat(r.Path)
		if os.IsNotExist(err) {
			return fmt.Errorf("data path does not exist: %s", r.Path)
		}
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return fmt.Errorf("data path is not a directory: %s", r.Path)
		}
		return nil
	}
	if err := os.MkdirAll(r.Path, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	return nil
}

// Get reads the file of key, served from cache while the file is unchanged.
func (r *KV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	path := r.pathOf(key)
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		r.cache.Delete(path)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to stat %s: %w", key, err)
	}
	if data, ok := r.cache.Get(path, info); ok {
		return data, true, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	r.cache.Set(path, info, data)
	return slices.Clone(data), true, nil
}

// Set writes the value of key atomically.
func (r *KV) Set(ctx context.Context, key string, value []byte) error {
	if r.config.ReadOnly {
		return core.ErrReadOnly
	}
	return writeFileAtomic(r.pathOf(key), value, 0644, r.markOwn)
}

// SetMany stages every value in temp files before renaming any of them, so
// a failure while staging leaves all keys untouched.
func (r *KV) SetMany(ctx context.Context, entries map[string][]byte) error {
	if r.config.ReadOnly {
		return core.ErrReadOnly
	}
	b := newBatch(r)
	defer b.rollback()
	for key, value := range entries {
		if err := b.stage(key, value); err != nil {
			return err
		}
	}
	return b.commit()
}

// Delete removes the file of key. Missing files are ignored.
func (r *KV) Delete(ctx context.Context, key string) error {
	if r.config.ReadOnly {
		return core.ErrReadOnly
	}
	path := r.pathOf(key)
	r.mu.Lock()
	r.own[path] = time.Time{}
	r.mu.Unlock()
	r.cache.Delete(path)
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// Keys lists the keys stored in the directory that start with prefix.
func (r *KV) Keys(ctx context.Context, prefix string) ([]string, error) {
	entries, err := os.ReadDir(r.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", r.Path, err)
	}

	var keys []string
	for _, e := range entries {
		key, ok := keyOf(e.Name())
		if !ok || e.IsDir() || !strings.HasPrefix(key, prefix) {
			continue
		}
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys, nil
}

// Close releases cached values. Watchers stop with their context.
func (r *KV) Close() error {
	r.cache.Clear()
	return nil
}

func (r *KV) pathOf(key string) string {
	return filepath.Join(r.Path, url.PathEscape(key)+Extension)
}

// keyOf decodes a file name back to its key. Temp files and foreign files
// are rejected.
func keyOf(name string) (string, bool) {
	if strings.HasPrefix(name, TempFilePrefix) || !strings.HasSuffix(name, Extension) {
		return "", false
	}
	key, err := url.PathUnescape(strings.TrimSuffix(name, Extension))
	if err != nil {
		return "", false
	}
	return key, true
}

// markOwn remembers the mtime a completed temp file will carry once renamed
// to target. Rename keeps the mtime.
func (r *KV) markOwn(tmp, target string) {
	r.cache.Delete(target)
	info, err := os.Stat(tmp)
	if err != nil {
		return
	}
	r.mu.Lock()
	r.own[target] = info.ModTime()
	r.mu.Unlock()
}

// isOwnChange reports whether the current state of path is the one this
// process produced last. A mismatch forgets the record.
func (r *KV) isOwnChange(path string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	mtime, ok := r.own[path]
	if !ok {
		return false
	}
	info, err := os.Stat(path)
	switch {
	case err != nil && mtime.IsZero():
		return true
	case err == nil && info.ModTime().Equal(mtime):
		return true
	}
	delete(r.own, path)
	return false
}

var _ core.KV = (*KV)(nil)
var _ core.Watchable = (*KV)(nil)
