package store_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/notekeep/pkg/adapters/fs"
	"github.com/aretw0/notekeep/pkg/adapters/memory"
	"github.com/aretw0/notekeep/pkg/core"
	"github.com/aretw0/notekeep/pkg/store"
)

// tickingClock advances one millisecond per call.
func tickingClock() func() time.Time {
	t := time.UnixMilli(1_700_000_000_000)
	return func() time.Time {
		t = t.Add(time.Millisecond)
		return t
	}
}

func sequentialIDs() func() (string, error) {
	n := 0
	return func() (string, error) {
		n++
		return fmt.Sprintf("id%02d", n), nil
	}
}

func newStore(t *testing.T) (*store.Store, *memory.KV) {
	t.Helper()
	kv := memory.New()
	return store.New(kv, store.WithClock(tickingClock()), store.WithIDGenerator(sequentialIDs())), kv
}

func TestStore_CRUD(t *testing.T) {
	ctx := context.Background()

	t.Run("Creates And Reads Back", func(t *testing.T) {
		s, kv := newStore(t)
		n, err := s.CreateNote(ctx)
		require.NoError(t, err)
		assert.Equal(t, core.DefaultTitle, n.Title)
		assert.Equal(t, n.CreatedAt, n.UpdatedAt)
		assert.NotNil(t, n.Tags)
		assert.NotNil(t, n.History)

		_, ok, _ := kv.Get(ctx, core.KeyPrefix+n.ID)
		assert.True(t, ok, "record stored under prefixed key")

		got, ok, err := s.GetNote(ctx, n.ID)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, n, got)
	})

	t.Run("Missing Note Is Absent", func(t *testing.T) {
		s, _ := newStore(t)
		_, ok, err := s.GetNote(ctx, "nope")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Update Of Missing Note Is A No-Op", func(t *testing.T) {
		s, kv := newStore(t)
		require.NoError(t, s.UpdateNote(ctx, "nope", core.Update{Title: core.Ptr("x")}))
		keys, _ := kv.Keys(ctx, "")
		assert.Empty(t, keys)
	})

	t.Run("Update Tracks History", func(t *testing.T) {
		s, _ := newStore(t)
		n, _ := s.CreateNote(ctx)
		c := core.Content{Blocks: []core.Block{{Type: "paragraph", Data: map[string]any{"text": "hi"}}}}
		require.NoError(t, s.UpdateNote(ctx, n.ID, core.Update{Content: &c}))
		require.NoError(t, s.UpdateNote(ctx, n.ID, core.Update{Title: core.Ptr("t")}))

		got, _, _ := s.GetNote(ctx, n.ID)
		assert.Equal(t, "t", got.Title)
		require.Len(t, got.History, 1)
		assert.Equal(t, n.UpdatedAt, got.History[0].UpdatedAt)
		assert.Greater(t, got.UpdatedAt, n.UpdatedAt)
	})
}

func TestStore_Listing(t *testing.T) {
	ctx := context.Background()
	s, kv := newStore(t)

	a, _ := s.CreateNote(ctx)
	b, _ := s.CreateNote(ctx)
	c, _ := s.CreateNote(ctx)
	require.NoError(t, s.UpdateNote(ctx, a.ID, core.Update{Title: core.Ptr("touched")}))
	require.NoError(t, s.TrashNote(ctx, b.ID))
	require.NoError(t, kv.Set(ctx, core.KeyPrefix+"broken", []byte("{not json")))
	require.NoError(t, kv.Set(ctx, "settings", []byte("ignored")))

	notes, err := s.GetNotes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{a.ID, c.ID}, ids(notes), "newest first, corrupt record skipped")

	trashed, err := s.GetTrashedNotes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{b.ID}, ids(trashed))
	assert.True(t, trashed[0].IsTrashed)

	require.NoError(t, s.RestoreNote(ctx, b.ID))
	notes, _ = s.GetNotes(ctx)
	assert.Equal(t, []string{b.ID, a.ID, c.ID}, ids(notes))

	require.NoError(t, s.DeleteNotePermanently(ctx, b.ID))
	_, ok, _ := s.GetNote(ctx, b.ID)
	assert.False(t, ok)

	require.NoError(t, s.ClearAllNotes(ctx))
	notes, _ = s.GetNotes(ctx)
	assert.Empty(t, notes)
	_, ok, _ = kv.Get(ctx, "settings")
	assert.True(t, ok, "non-note keys survive a clear")
}

func TestStore_ImportExport(t *testing.T) {
	ctx := context.Background()
	src, _ := newStore(t)
	for i := 0; i < 3; i++ {
		n, _ := src.CreateNote(ctx)
		require.NoError(t, src.UpdateNote(ctx, n.ID, core.Update{Title: core.Ptr(fmt.Sprint("note ", i))}))
	}
	first, _ := src.GetNotes(ctx)
	require.NoError(t, src.TrashNote(ctx, first[0].ID))

	exported, err := src.ExportNotes(ctx)
	require.NoError(t, err)
	assert.Len(t, exported.Notes, 2)
	assert.Len(t, exported.Trashed, 1)

	dst, _ := newStore(t)
	require.NoError(t, dst.ImportNotes(ctx, exported.All()))
	again, err := dst.ExportNotes(ctx)
	require.NoError(t, err)
	assert.Equal(t, exported, again)

	err = dst.ImportNotes(ctx, []core.Note{{Title: "no id"}})
	assert.ErrorIs(t, err, core.ErrInvalidImport)
}

type failingKV struct {
	*memory.KV
	err error
}

func (f failingKV) Set(ctx context.Context, key string, value []byte) error { return f.err }
func (f failingKV) Keys(ctx context.Context, prefix string) ([]string, error) {
	return nil, f.err
}

func TestStore_PropagatesEngineErrors(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("quota exceeded")
	s := store.New(failingKV{KV: memory.New(), err: boom})

	_, err := s.CreateNote(ctx)
	assert.ErrorIs(t, err, boom)
	_, err = s.GetNotes(ctx)
	assert.ErrorIs(t, err, boom)
	_, err = s.Watch(ctx, core.KeyPrefix)
	assert.Error(t, err, "memory engine is not watchable")
}

func TestStore_DefaultIDsAreUnique(t *testing.T) {
	ctx := context.Background()
	s := store.New(memory.New())
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		n, err := s.CreateNote(ctx)
		require.NoError(t, err)
		require.False(t, seen[n.ID])
		seen[n.ID] = true
	}
}

func TestStore_State(t *testing.T) {
	t.Run("Memory Engine", func(t *testing.T) {
		s, _ := newStore(t)
		st := s.State().(store.StoreState)
		assert.Equal(t, "memory", st.Engine)
		assert.Nil(t, st.KV)
		assert.Equal(t, "store/memory", s.ComponentType())
	})

	t.Run("Includes Engine State", func(t *testing.T) {
		dir := t.TempDir()
		s := store.New(fs.New(fs.Config{Path: dir}))
		st := s.State().(store.StoreState)
		assert.Equal(t, "fs", st.Engine)
		kv, ok := st.KV.(fs.KVState)
		require.True(t, ok)
		assert.Equal(t, dir, kv.Path)
	})
}

func ids(notes []core.Note) []string {
	out := make([]string, len(notes))
	for i, n := range notes {
		out[i] = n.ID
	}
	return out
}
