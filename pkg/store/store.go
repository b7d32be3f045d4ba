// Package store implements the Local Note Store on top of any core.KV engine.
//
// Every note is one JSON record under core.KeyPrefix+id. Listing scans all
// note keys, which is O(n) in the number of notes.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/introspection"
	"github.com/aretw0/lifecycle"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/aretw0/notekeep/pkg/core"
)

// Store is the durable note store.
type Store struct {
	kv      core.KV
	logger  *slog.Logger
	clock   func() time.Time
	newID   func() (string, error)
	workers int

	// mu serializes read-merge-write cycles within this process.
	mu sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used to report skipped records.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the time source.
func WithClock(clock func() time.Time) Option {
	return func(s *Store) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithIDGenerator overrides id generation (defaults to UUIDv7, which sorts by creation time).
func WithIDGenerator(fn func() (string, error)) Option {
	return func(s *Store) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// WithConcurrency bounds the number of records decoded in parallel during scans.
func WithConcurrency(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.workers = n
		}
	}
}

// New creates a Store over kv.
func New(kv core.KV, opts ...Option) *Store {
	s := &Store{
		kv:      kv,
		logger:  slog.New(slog.DiscardHandler),
		clock:   time.Now,
		newID:   newUUID,
		workers: runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func newUUID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// KV returns the underlying engine.
func (s *Store) KV() core.KV {
	return s.kv
}

// Close closes the underlying engine.
func (s *Store) Close() error {
	return s.kv.Close()
}

func (s *Store) now() int64 {
	return s.clock().UnixMilli()
}

// CreateNote writes a new empty note and returns it.
func (s *Store) CreateNote(ctx context.Context) (core.Note, error) {
	id, err := s.newID()
	if err != nil {
		return core.Note{}, fmt.Errorf("failed to generate id: %w", err)
	}
	n := core.NewNote(id, s.now())
	if err := s.put(ctx, n); err != nil {
		return core.Note{}, err
	}
	return n, nil
}

// GetNote returns the note with id. A missing note is (zero, false, nil).
func (s *Store) GetNote(ctx context.Context, id string) (core.Note, bool, error) {
	return s.load(ctx, core.KeyPrefix+id)
}

// GetNotes returns active notes, most recently updated first.
func (s *Store) GetNotes(ctx context.Context) ([]core.Note, error) {
	c, err := s.scan(ctx)
	return c.Notes, err
}

// GetTrashedNotes returns trashed notes, most recently updated first.
func (s *Store) GetTrashedNotes(ctx context.Context) ([]core.Note, error) {
	c, err := s.scan(ctx)
	return c.Trashed, err
}

// ExportNotes returns every stored note split by state.
func (s *Store) ExportNotes(ctx context.Context) (core.Collection, error) {
	return s.scan(ctx)
}

// UpdateNote merges u into the stored note. Missing notes are left alone.
func (s *Store) UpdateNote(ctx context.Context, id string, u core.Update) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok, err := s.load(ctx, core.KeyPrefix+id)
	if err != nil || !ok {
		return err
	}
	return s.put(ctx, n.Apply(u, s.now()))
}

// TrashNote marks the note as trashed.
func (s *Store) TrashNote(ctx context.Context, id string) error {
	return s.UpdateNote(ctx, id, core.Update{IsTrashed: core.Ptr(true)})
}

// RestoreNote clears the trashed flag.
func (s *Store) RestoreNote(ctx context.Context, id string) error {
	return s.UpdateNote(ctx, id, core.Update{IsTrashed: core.Ptr(false)})
}

// DeleteNotePermanently erases the note record.
func (s *Store) DeleteNotePermanently(ctx context.Context, id string) error {
	if err := s.kv.Delete(ctx, core.KeyPrefix+id); err != nil {
		return fmt.Errorf("failed to delete note %s: %w", id, err)
	}
	return nil
}

// ClearAllNotes erases every note record.
func (s *Store) ClearAllNotes(ctx context.Context) error {
	keys, err := s.kv.Keys(ctx, core.KeyPrefix)
	if err != nil {
		return fmt.Errorf("failed to list notes: %w", err)
	}
	for _, key := range keys {
		if err := s.kv.Delete(ctx, key); err != nil {
			return fmt.Errorf("failed to delete %s: %w", key, err)
		}
	}
	return nil
}

// ImportNotes upserts notes keyed by their own ids in a single batch.
func (s *Store) ImportNotes(ctx context.Context, notes []core.Note) error {
	entries := make(map[string][]byte, len(notes))
	for _, n := range notes {
		if n.ID == "" {
			return fmt.Errorf("%w: note without id", core.ErrInvalidImport)
		}
		n.Normalize()
		data, err := json.Marshal(n)
		if err != nil {
			return fmt.Errorf("failed to encode note %s: %w", n.ID, err)
		}
		entries[n.Key()] = data
	}
	if len(entries) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.kv.SetMany(ctx, entries); err != nil {
		return fmt.Errorf("failed to import notes: %w", err)
	}
	return nil
}

// Watch forwards changes of the underlying engine when it supports watching.
// Event ids are note ids, not storage keys.
func (s *Store) Watch(ctx context.Context, prefix string) (<-chan core.Event, error) {
	w, ok := s.kv.(core.Watchable)
	if !ok {
		return nil, fmt.Errorf("engine %T does not support watching", s.kv)
	}
	events, err := w.Watch(ctx, prefix)
	if err != nil {
		return nil, err
	}

	out := make(chan core.Event)
	lifecycle.Go(ctx, func(ctx context.Context) error {
		defer close(out)
		for e := range events {
			e.ID = strings.TrimPrefix(e.ID, core.KeyPrefix)
			select {
			case out <- e:
			case <-ctx.Done():
				return nil
			}
		}
		return nil
	})
	return out, nil
}

func (s *Store) put(ctx context.Context, n core.Note) error {
	n.Normalize()
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to encode note %s: %w", n.ID, err)
	}
	if err := s.kv.Set(ctx, n.Key(), data); err != nil {
		return fmt.Errorf("failed to write note %s: %w", n.ID, err)
	}
	return nil
}

func (s *Store) load(ctx context.Context, key string) (core.Note, bool, error) {
	data, ok, err := s.kv.Get(ctx, key)
	if err != nil {
		return core.Note{}, false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	if !ok {
		return core.Note{}, false, nil
	}
	var n core.Note
	if err := json.Unmarshal(data, &n); err != nil {
		return core.Note{}, false, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	n.Normalize()
	return n, true, nil
}

// scan loads every note record concurrently. Records that fail to decode
// are skipped and logged.
func (s *Store) scan(ctx context.Context) (core.Collection, error) {
	keys, err := s.kv.Keys(ctx, core.KeyPrefix)
	if err != nil {
		return core.Collection{}, fmt.Errorf("failed to list notes: %w", err)
	}

	results := make([]*core.Note, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, key := range keys {
		g.Go(func() error {
			data, ok, err := s.kv.Get(gctx, key)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", key, err)
			}
			if !ok {
				return nil
			}
			var n core.Note
			if err := json.Unmarshal(data, &n); err != nil {
				s.logger.Warn("skipping unreadable note", "key", key, "error", err)
				return nil
			}
			n.Normalize()
			results[i] = &n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return core.Collection{}, err
	}

	c := core.Collection{Notes: []core.Note{}, Trashed: []core.Note{}}
	for _, n := range results {
		if n == nil {
			continue
		}
		if n.IsTrashed {
			c.Trashed = append(c.Trashed, *n)
		} else {
			c.Notes = append(c.Notes, *n)
		}
	}
	sortByUpdated(c.Notes)
	sortByUpdated(c.Trashed)
	return c, nil
}

func sortByUpdated(notes []core.Note) {
	slices.SortFunc(notes, func(a, b core.Note) int {
		if a.UpdatedAt != b.UpdatedAt {
			if a.UpdatedAt > b.UpdatedAt {
				return -1
			}
			return 1
		}
		return strings.Compare(a.ID, b.ID)
	})
}

// StoreState exposes internal state for observability.
type StoreState struct {
	Engine string `json:"engine"`
	KV     any    `json:"kv,omitempty"`
}

// State implements introspection.Introspectable. The engine state is
// included when the engine exposes one.
func (s *Store) State() any {
	st := StoreState{Engine: "unknown"}
	if comp, ok := s.kv.(introspection.Component); ok {
		st.Engine = comp.ComponentType()
	}
	if intro, ok := s.kv.(introspection.Introspectable); ok {
		st.KV = intro.State()
	}
	return st
}

// ComponentType implements introspection.Component.
func (s *Store) ComponentType() string {
	if comp, ok := s.kv.(introspection.Component); ok {
		return "store/" + comp.ComponentType()
	}
	return "store"
}

var _ core.NoteStore = (*Store)(nil)
var _ core.Watchable = (*Store)(nil)
var _ introspection.Component = (*Store)(nil)
var _ introspection.Introspectable = (*Store)(nil)
