// Package redis implements core.KV on a Redis server. Every key is stored
// under a namespace so several applications can share one database.
package redis

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aretw0/notekeep/pkg/core"
)

// DefaultNamespace prefixes every key written by this engine.
const DefaultNamespace = "notekeep:"

// scanCount is the COUNT hint given to SCAN.
const scanCount = 256

// KV stores values as Redis strings.
type KV struct {
	rdb       redis.UniversalClient
	namespace string
}

// Option configures a KV.
type Option func(*KV)

// WithNamespace overrides DefaultNamespace.
func WithNamespace(ns string) Option {
	return func(k *KV) {
		k.namespace = ns
	}
}

// New wraps an existing client.
func New(rdb redis.UniversalClient, opts ...Option) *KV {
	k := &KV{rdb: rdb, namespace: DefaultNamespace}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// Connect creates a client from a redis:// URL and verifies connectivity.
func Connect(url string, opts ...Option) (*KV, error) {
	o, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	rdb := redis.NewClient(o)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return New(rdb, opts...), nil
}

// Raw returns the underlying client.
func (k *KV) Raw() redis.UniversalClient { return k.rdb }

func (k *KV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := k.rdb.Get(ctx, k.namespace+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return val, true, nil
}

func (k *KV) Set(ctx context.Context, key string, value []byte) error {
	if err := k.rdb.Set(ctx, k.namespace+key, value, 0).Err(); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

// SetMany writes all entries in one MULTI/EXEC transaction.
func (k *KV) SetMany(ctx context.Context, entries map[string][]byte) error {
	if len(entries) == 0 {
		return nil
	}
	_, err := k.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for key, value := range entries {
			pipe.Set(ctx, k.namespace+key, value, 0)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to set %d keys: %w", len(entries), err)
	}
	return nil
}

func (k *KV) Delete(ctx context.Context, key string) error {
	if err := k.rdb.Del(ctx, k.namespace+key).Err(); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// Keys walks the keyspace with SCAN, so large databases are not blocked.
func (k *KV) Keys(ctx context.Context, prefix string) ([]string, error) {
	pattern := escapeGlob(k.namespace+prefix) + "*"
	var keys []string
	iter := k.rdb.Scan(ctx, 0, pattern, scanCount).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), k.namespace))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan %q: %w", pattern, err)
	}
	// SCAN may return a key more than once.
	slices.Sort(keys)
	return slices.Compact(keys), nil
}

func (k *KV) Close() error {
	return k.rdb.Close()
}

// ComponentType implements introspection.Component.
func (k *KV) ComponentType() string {
	return "redis"
}

// escapeGlob quotes the characters SCAN MATCH treats as a pattern.
func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

var _ core.KV = (*KV)(nil)
