// Package memory provides a volatile core.KV engine, used by tests and by
// the "memory" adapter.
package memory

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/aretw0/notekeep/pkg/core"
)

// KV is a map-backed engine. Values are copied on the way in and out.
type KV struct {
	mu     sync.RWMutex
	data   map[string][]byte
	closed bool
}

// New returns an empty engine.
func New() *KV {
	return &KV{data: make(map[string][]byte)}
}

func (m *KV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	return slices.Clone(v), true, nil
}

func (m *KV) Set(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = slices.Clone(value)
	return nil
}

func (m *KV) SetMany(ctx context.Context, entries map[string][]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range entries {
		m.data[k] = slices.Clone(v)
	}
	return nil
}

func (m *KV) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *KV) Keys(ctx context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var keys []string
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	return keys, nil
}

func (m *KV) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// ComponentType implements introspection.Component.
func (m *KV) ComponentType() string {
	return "memory"
}

var _ core.KV = (*KV)(nil)
