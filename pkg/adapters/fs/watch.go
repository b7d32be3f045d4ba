package fs

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/lifecycle"
	"github.com/fsnotify/fsnotify"

	"github.com/aretw0/notekeep/pkg/core"
)

// Watch reports changes to keys matching prefix made by other processes.
// Writes made through this KV are not reported. The channel is closed when
// ctx is done.
func (r *KV) Watch(ctx context.Context, prefix string) (<-chan core.Event, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(r.Path); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", r.Path, err)
	}

	w := &watchWorker{
		kv:        r,
		prefix:    prefix,
		watcher:   watcher,
		events:    make(chan core.Event, 100),
		debouncer: newDebouncer(50 * time.Millisecond),
	}
	r.setWatcherActive(true)

	lifecycle.Go(ctx, w.run, lifecycle.WithErrorHandler(func(err error) {
		r.handleError(fmt.Errorf("watcher panic: %w", err))
	}))
	return w.events, nil
}

type watchWorker struct {
	kv        *KV
	prefix    string
	watcher   *fsnotify.Watcher
	events    chan core.Event
	debouncer *debouncer
}

// run is the main event loop for the watcher worker.
func (w *watchWorker) run(ctx context.Context) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			panicErr := fmt.Errorf("watcher panic: %v", recovered)
			if w.kv.config.Logger.Enabled(ctx, slog.LevelDebug) {
				w.kv.config.Logger.Error("watcher panic", "error", panicErr, "stack", string(debug.Stack()))
			} else {
				w.kv.config.Logger.Error("watcher panic", "error", panicErr)
			}
			err = panicErr
		}
	}()
	defer w.kv.setWatcherActive(false)
	defer w.watcher.Close()

	err = w.loop(ctx)

	// Wait for in-flight debounce timers before closing the channel they send to.
	w.debouncer.stopAndWait(5 * time.Second)
	close(w.events)
	return err
}

func (w *watchWorker) loop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("watcher events channel closed")
			}
			w.process(ctx, event)

		case wErr, ok := <-w.watcher.Errors:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("watcher errors channel closed")
			}
			w.kv.config.Logger.Error("fsnotify error", "error", wErr)
			w.kv.handleError(wErr)
		}
	}
}

// process filters, maps and debounces one filesystem event.
func (w *watchWorker) process(ctx context.Context, event fsnotify.Event) {
	key, ok := keyOf(filepath.Base(event.Name))
	if !ok || !strings.HasPrefix(key, w.prefix) {
		return
	}

	var eType core.EventType
	switch {
	case event.Has(fsnotify.Create):
		eType = core.EventCreate
	case event.Has(fsnotify.Write):
		eType = core.EventModify
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		eType = core.EventDelete
	default:
		return
	}

	if w.kv.isOwnChange(event.Name) {
		return
	}
	w.kv.cache.Delete(event.Name)
	w.kv.config.Logger.Debug("external change", "key", key, "op", event.Op.String())

	w.debouncer.add(core.Event{Type: eType, ID: key, Timestamp: time.Now().UnixMilli()}, func(e core.Event) {
		defer func() {
			// Recover from panic if channel was closed (worker stopping)
			_ = recover()
		}()
		w.kv.recordEvent()
		select {
		case w.events <- e:
		case <-ctx.Done():
		}
	})
}

func (r *KV) handleError(err error) {
	if r.config.ErrorHandler != nil {
		r.config.ErrorHandler(err)
		return
	}
	r.config.Logger.Error("watcher failure", "error", err)
}

// debouncer coalesces bursts of events per key into the last one.
type debouncer struct {
	mu      sync.Mutex
	delay   time.Duration
	timers  map[string]*time.Timer
	pending map[string]core.Event
	stopped bool
	wg      sync.WaitGroup
}

func newDebouncer(delay time.Duration) *debouncer {
	return &debouncer{
		delay:   delay,
		timers:  make(map[string]*time.Timer),
		pending: make(map[string]core.Event),
	}
}

func (d *debouncer) add(e core.Event, emit func(core.Event)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}

	d.pending[e.ID] = e
	if t, ok := d.timers[e.ID]; ok && t.Stop() {
		d.wg.Done()
	}
	d.wg.Add(1)
	d.timers[e.ID] = time.AfterFunc(d.delay, func() {
		defer d.wg.Done()
		d.mu.Lock()
		ev, ok := d.pending[e.ID]
		delete(d.pending, e.ID)
		delete(d.timers, e.ID)
		stopped := d.stopped
		d.mu.Unlock()
		if ok && !stopped {
			emit(ev)
		}
	})
}

// stopAndWait stops accepting events and waits for running timers.
func (d *debouncer) stopAndWait(timeout time.Duration) {
	d.mu.Lock()
	d.stopped = true
	for id, t := range d.timers {
		if t.Stop() {
			d.wg.Done()
		}
		delete(d.timers, id)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
	}
}
