package core

import (
	"context"
	"sync"
)

// writeQueue serializes durable writes per note id in FIFO order.
// Writes for different ids never wait on each other.
type writeQueue struct {
	mu    sync.Mutex
	tails map[string]chan struct{}
}

func newWriteQueue() *writeQueue {
	return &writeQueue{tails: make(map[string]chan struct{})}
}

// ticket is a reserved slot in the queue of one id.
type ticket struct {
	q    *writeQueue
	id   string
	prev <-chan struct{}
	done chan struct{}
}

// reserve takes the next slot for id. Callers reserve while still holding the
// lock that ordered their optimistic change, so queue order matches it.
func (q *writeQueue) reserve(id string) *ticket {
	q.mu.Lock()
	defer q.mu.Unlock()
	t := &ticket{q: q, id: id, prev: q.tails[id], done: make(chan struct{})}
	q.tails[id] = t.done
	return t
}

// run waits for every earlier write on the same id, then runs fn.
// The previous write is always awaited so order holds even when ctx is cancelled.
func (t *ticket) run(ctx context.Context, fn func(context.Context) error) error {
	defer t.release()
	if t.prev != nil {
		<-t.prev
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx)
}

func (t *ticket) release() {
	t.q.mu.Lock()
	if t.q.tails[t.id] == t.done {
		delete(t.q.tails, t.id)
	}
	t.q.mu.Unlock()
	close(t.done)
}

// pending returns the number of ids with queued or running writes.
func (q *writeQueue) pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tails)
}
