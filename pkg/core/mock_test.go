package core_test

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/notekeep/pkg/core"
)

// MockStore implements core.NoteStore in memory.
// Operations listed in failures return the given error without writing.
type MockStore struct {
	mu       sync.Mutex
	notes    map[string]core.Note
	seq      int
	clock    int64
	failures map[string]error
	calls    []string
}

func NewMockStore() *MockStore {
	return &MockStore{
		notes:    make(map[string]core.Note),
		clock:    1_000,
		failures: make(map[string]error),
	}
}

func (m *MockStore) Fail(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[op] = err
}

func (m *MockStore) Heal() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = make(map[string]error)
}

func (m *MockStore) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *MockStore) Put(n core.Note) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n.Normalize()
	m.notes[n.ID] = n.Clone()
}

func (m *MockStore) enter(op string) error {
	m.calls = append(m.calls, op)
	return m.failures[op]
}

func (m *MockStore) tick() int64 {
	m.clock++
	return m.clock
}

func (m *MockStore) CreateNote(ctx context.Context) (core.Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("create"); err != nil {
		return core.Note{}, err
	}
	m.seq++
	n := core.NewNote(fmt.Sprintf("n%03d", m.seq), m.tick())
	m.notes[n.ID] = n
	return n.Clone(), nil
}

func (m *MockStore) GetNote(ctx context.Context, id string) (core.Note, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("get"); err != nil {
		return core.Note{}, false, err
	}
	n, ok := m.notes[id]
	return n.Clone(), ok, nil
}

func (m *MockStore) list(trashed bool) []core.Note {
	var out []core.Note
	for _, n := range m.notes {
		if n.IsTrashed == trashed {
			out = append(out, n.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt != out[j].UpdatedAt {
			return out[i].UpdatedAt > out[j].UpdatedAt
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (m *MockStore) GetNotes(ctx context.Context) ([]core.Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("list"); err != nil {
		return nil, err
	}
	return m.list(false), nil
}

func (m *MockStore) GetTrashedNotes(ctx context.Context) ([]core.Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("list-trash"); err != nil {
		return nil, err
	}
	return m.list(true), nil
}

func (m *MockStore) UpdateNote(ctx context.Context, id string, u core.Update) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("update"); err != nil {
		return err
	}
	n, ok := m.notes[id]
	if !ok {
		return nil
	}
	m.notes[id] = n.Apply(u, m.tick())
	return nil
}

func (m *MockStore) setTrashed(op, id string, trashed bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(op); err != nil {
		return err
	}
	n, ok := m.notes[id]
	if !ok {
		return nil
	}
	m.notes[id] = n.Apply(core.Update{IsTrashed: core.Ptr(trashed)}, m.tick())
	return nil
}

func (m *MockStore) TrashNote(ctx context.Context, id string) error {
	return m.setTrashed("trash", id, true)
}

func (m *MockStore) RestoreNote(ctx context.Context, id string) error {
	return m.setTrashed("restore", id, false)
}

func (m *MockStore) DeleteNotePermanently(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("delete"); err != nil {
		return err
	}
	delete(m.notes, id)
	return nil
}

func (m *MockStore) ClearAllNotes(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("clear"); err != nil {
		return err
	}
	m.notes = make(map[string]core.Note)
	return nil
}

func (m *MockStore) ImportNotes(ctx context.Context, notes []core.Note) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("import"); err != nil {
		return err
	}
	for _, n := range notes {
		n.Normalize()
		m.notes[n.ID] = n.Clone()
	}
	return nil
}

func (m *MockStore) ExportNotes(ctx context.Context) (core.Collection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("export"); err != nil {
		return core.Collection{}, err
	}
	return core.Collection{Notes: m.list(false), Trashed: m.list(true)}, nil
}

// MockBackup implements core.BackupClient in memory.
type MockBackup struct {
	mu       sync.Mutex
	stored   *core.Collection
	tokens   []string
	uploadFn func() error
}

func (b *MockBackup) UploadBackup(ctx context.Context, token string, c core.Collection) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tokens = append(b.tokens, token)
	if b.uploadFn != nil {
		if err := b.uploadFn(); err != nil {
			return err
		}
	}
	b.stored = &c
	return nil
}

func (b *MockBackup) GetBackup(ctx context.Context, token string) (core.Collection, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tokens = append(b.tokens, token)
	if b.stored == nil {
		return core.Collection{}, false, nil
	}
	return *b.stored, true, nil
}

// recorder collects notices.
type recorder struct {
	mu      sync.Mutex
	notices []string
}

func (r *recorder) Notify(level core.NoticeLevel, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, string(level)+": "+msg)
}

func (r *recorder) All() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.notices...)
}

func ids(notes []core.Note) []string {
	out := make([]string, len(notes))
	for i, n := range notes {
		out[i] = n.ID
	}
	return out
}
