package fs

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/notekeep/pkg/core"
)

func TestKV_Watch(t *testing.T) {
	t.Run("Reports External Writes", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		kv := newTestKV(t)

		events, err := kv.Watch(ctx, core.KeyPrefix)
		require.NoError(t, err)

		require.NoError(t, os.WriteFile(kv.pathOf("note_x"), []byte(`{"id":"x"}`), 0644))

		select {
		case e := <-events:
			assert.Equal(t, "note_x", e.ID)
			assert.NotEqual(t, core.EventDelete, e.Type)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for event")
		}

		require.NoError(t, os.Remove(kv.pathOf("note_x")))
		select {
		case e := <-events:
			assert.Equal(t, core.EventDelete, e.Type)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for delete event")
		}

		state := kv.State().(KVState)
		assert.True(t, state.WatcherActive)
		assert.NotNil(t, state.LastEvent)
	})

	t.Run("Ignores Own Writes And Other Prefixes", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		kv := newTestKV(t)

		events, err := kv.Watch(ctx, core.KeyPrefix)
		require.NoError(t, err)

		require.NoError(t, kv.Set(ctx, "note_own", []byte("{}")))
		require.NoError(t, kv.SetMany(ctx, map[string][]byte{"note_b1": []byte("{}"), "note_b2": []byte("{}")}))
		require.NoError(t, kv.Delete(ctx, "note_own"))
		require.NoError(t, os.WriteFile(kv.pathOf("settings"), []byte("{}"), 0644))

		select {
		case e := <-events:
			t.Fatalf("unexpected event %s", e)
		case <-time.After(300 * time.Millisecond):
		}
	})

	t.Run("Closes Channel On Cancel", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		kv := newTestKV(t)

		events, err := kv.Watch(ctx, "")
		require.NoError(t, err)
		cancel()

		require.Eventually(t, func() bool {
			select {
			case _, ok := <-events:
				return !ok
			default:
				return false
			}
		}, 2*time.Second, 10*time.Millisecond)
		require.Eventually(t, func() bool {
			return !kv.State().(KVState).WatcherActive
		}, time.Second, 10*time.Millisecond)
	})

	t.Run("Fails On Missing Directory", func(t *testing.T) {
		kv := New(Config{Path: t.TempDir() + "/missing"})
		_, err := kv.Watch(context.Background(), "")
		assert.Error(t, err)
	})
}

func TestDebouncer_CoalescesPerKey(t *testing.T) {
	d := newDebouncer(20 * time.Millisecond)
	got := make(chan core.Event, 10)
	emit := func(e core.Event) { got <- e }

	d.add(core.Event{Type: core.EventCreate, ID: "a"}, emit)
	d.add(core.Event{Type: core.EventModify, ID: "a"}, emit)
	d.add(core.Event{Type: core.EventCreate, ID: "b"}, emit)

	seen := map[string]core.EventType{}
	for len(seen) < 2 {
		select {
		case e := <-got:
			seen[e.ID] = e.Type
		case <-time.After(time.Second):
			t.Fatal("timed out")
		}
	}
	assert.Equal(t, core.EventModify, seen["a"])
	assert.Equal(t, core.EventCreate, seen["b"])

	d.stopAndWait(time.Second)
	d.add(core.Event{ID: "c"}, emit)
	select {
	case e := <-got:
		t.Fatalf("stopped debouncer emitted %s", e)
	case <-time.After(50 * time.Millisecond):
	}
}
