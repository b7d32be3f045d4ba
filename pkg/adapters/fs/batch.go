package fs

import (
	"fmt"
	"os"
)

// batch is a two-phase multi-key write: every value is first staged in a
// synced temp file, then all temp files are renamed into place.
type batch struct {
	kv     *KV
	staged map[string]string // target path -> temp path
	closed bool
}

func newBatch(kv *KV) *batch {
	return &batch{kv: kv, staged: make(map[string]string)}
}

// stage writes value to a temp file next to the target of key.
func (b *batch) stage(key string, value []byte) error {
	if b.closed {
		return fmt.Errorf("batch closed")
	}
	target := b.kv.pathOf(key)
	if prev, ok := b.staged[target]; ok {
		os.Remove(prev)
	}
	tmp, err := writeTemp(b.kv.Path, value, 0644)
	if err != nil {
		return fmt.Errorf("failed to stage %s: %w", key, err)
	}
	b.staged[target] = tmp
	return nil
}

// commit renames every staged file into place. A rename failure leaves the
// keys already renamed committed; the rest are discarded by rollback.
func (b *batch) commit() error {
	if b.closed {
		return fmt.Errorf("batch already closed")
	}
	for target, tmp := range b.staged {
		b.kv.markOwn(tmp, target)
		if err := os.Rename(tmp, target); err != nil {
			return fmt.Errorf("failed to commit %s: %w", target, err)
		}
		delete(b.staged, target)
	}
	b.closed = true
	return nil
}

// rollback removes temp files that were not committed.
func (b *batch) rollback() {
	for target, tmp := range b.staged {
		os.Remove(tmp)
		delete(b.staged, target)
	}
	b.closed = true
}
