package redis_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/notekeep/pkg/adapters/redis"
	"github.com/aretw0/notekeep/pkg/core"
	"github.com/aretw0/notekeep/pkg/store"
)

func newKV(t *testing.T, opts ...redis.Option) (*redis.KV, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	kv, err := redis.Connect("redis://"+mr.Addr(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = kv.Close() })
	return kv, mr
}

func TestKV(t *testing.T) {
	ctx := context.Background()

	t.Run("Namespaces Keys", func(t *testing.T) {
		kv, mr := newKV(t)
		require.NoError(t, kv.Set(ctx, "note_a", []byte(`{"id":"a"}`)))

		raw, err := mr.Get(redis.DefaultNamespace + "note_a")
		require.NoError(t, err)
		assert.Equal(t, `{"id":"a"}`, raw)

		got, ok, err := kv.Get(ctx, "note_a")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, `{"id":"a"}`, string(got))
	})

	t.Run("Missing Key Is Absent", func(t *testing.T) {
		kv, _ := newKV(t)
		_, ok, err := kv.Get(ctx, "nope")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Keys Filters By Prefix And Namespace", func(t *testing.T) {
		kv, mr := newKV(t, redis.WithNamespace("app1:"))
		require.NoError(t, kv.SetMany(ctx, map[string][]byte{
			"note_b":   []byte("{}"),
			"note_a":   []byte("{}"),
			"note_*":   []byte("{}"),
			"settings": []byte("{}"),
		}))
		require.NoError(t, mr.Set("app2:note_z", "{}"))

		keys, err := kv.Keys(ctx, "note_")
		require.NoError(t, err)
		assert.Equal(t, []string{"note_*", "note_a", "note_b"}, keys)

		keys, err = kv.Keys(ctx, "note_*")
		require.NoError(t, err)
		assert.Equal(t, []string{"note_*"}, keys, "prefix is matched literally")
	})

	t.Run("Delete Is Idempotent", func(t *testing.T) {
		kv, _ := newKV(t)
		require.NoError(t, kv.Set(ctx, "k", []byte("v")))
		require.NoError(t, kv.Delete(ctx, "k"))
		require.NoError(t, kv.Delete(ctx, "k"))
		_, ok, _ := kv.Get(ctx, "k")
		assert.False(t, ok)
	})

	t.Run("Surfaces Server Errors", func(t *testing.T) {
		kv, mr := newKV(t)
		mr.SetError("ERR simulated failure")
		_, _, err := kv.Get(ctx, "k")
		assert.Error(t, err)
		assert.Error(t, kv.Set(ctx, "k", []byte("v")))
		_, err = kv.Keys(ctx, "")
		assert.Error(t, err)
	})
}

func TestConnect_RejectsBadURL(t *testing.T) {
	_, err := redis.Connect("not a url")
	assert.Error(t, err)
}

func TestKV_BacksNoteStore(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	s := store.New(redis.New(goredis.NewClient(&goredis.Options{Addr: mr.Addr()})))

	n, err := s.CreateNote(ctx)
	require.NoError(t, err)
	require.NoError(t, s.UpdateNote(ctx, n.ID, core.Update{Title: core.Ptr("on redis")}))
	require.NoError(t, s.TrashNote(ctx, n.ID))

	trashed, err := s.GetTrashedNotes(ctx)
	require.NoError(t, err)
	require.Len(t, trashed, 1)
	assert.Equal(t, "on redis", trashed[0].Title)
	assert.True(t, mr.Exists(redis.DefaultNamespace+core.KeyPrefix+n.ID))
}
