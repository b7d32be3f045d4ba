package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"
)

// DefaultEventBuffer is the buffer size of subscriber and watch channels.
const DefaultEventBuffer = 100

// State is a point-in-time copy of the in-memory note collections.
type State struct {
	Notes        []Note
	TrashedNotes []Note
	IsLoading    bool
	HasFetched   bool
}

// Service is the single in-memory authority for which notes exist and in
// what state. Mutations are applied optimistically, then made durable through
// the NoteStore; a failed durable write is rolled back precisely for single
// note operations and resynchronized in full for bulk ones.
//
// Durable writes are serialized per note id in call order. Service is safe
// for concurrent use.
type Service struct {
	store           NoteStore
	backup          BackupClient
	tokens          TokenSource
	logger          *slog.Logger
	notifier        Notifier
	clock           func() time.Time
	queue           *writeQueue
	eventBufferSize int
	debounce        time.Duration

	mu         sync.RWMutex
	notes      []Note
	trashed    []Note
	isLoading  bool
	hasFetched bool
	loadSince  uint64
	loadDone   chan struct{}
	gen        uint64
	revs       map[string]uint64
	holds      map[string]int
	subs       map[int]chan State
	nextSub    int
	watching   bool
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithBackup enables remote backup operations.
func WithBackup(client BackupClient, tokens TokenSource) ServiceOption {
	return func(s *Service) {
		s.backup = client
		s.tokens = tokens
	}
}

// WithLogger sets the logger for the service.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithNotifier sets the receiver of user-visible notices.
func WithNotifier(n Notifier) ServiceOption {
	return func(s *Service) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithClock overrides the time source (tests).
func WithClock(clock func() time.Time) ServiceOption {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithEventBuffer sets the size of subscriber and watch channels.
// Zero means default (100).
func WithEventBuffer(size int) ServiceOption {
	return func(s *Service) {
		if size > 0 {
			s.eventBufferSize = size
		}
	}
}

// WithWatchDebounce sets how long Watch waits for a burst of external
// changes to settle before refreshing.
func WithWatchDebounce(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d > 0 {
			s.debounce = d
		}
	}
}

// NewService creates a new Service over the given store.
func NewService(store NoteStore, opts ...ServiceOption) *Service {
	s := &Service{
		store:           store,
		logger:          slog.New(slog.DiscardHandler),
		notifier:        discardNotifier{},
		clock:           time.Now,
		queue:           newWriteQueue(),
		eventBufferSize: DefaultEventBuffer,
		debounce:        100 * time.Millisecond,
		notes:           []Note{},
		trashed:         []Note{},
		revs:            make(map[string]uint64),
		holds:           make(map[string]int),
		subs:            make(map[int]chan State),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store returns the durable store behind the service.
func (s *Service) Store() NoteStore {
	return s.store
}

// Close releases the store when it holds resources (files, connections).
func (s *Service) Close() error {
	if c, ok := s.store.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Snapshot returns a deep copy of the current state.
func (s *Service) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Note looks a note up in either collection.
func (s *Service) Note(id string) (Note, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list, i := s.locate(id)
	if list == nil {
		return Note{}, false
	}
	return (*list)[i].Clone(), true
}

// Subscribe returns a channel receiving a State after every change, and a
// function to stop the subscription. Slow subscribers miss intermediate states.
func (s *Service) Subscribe() (<-chan State, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	ch := make(chan State, s.eventBufferSize)
	s.subs[id] = ch
	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(c)
		}
	}
}

// FetchNotes loads the active notes from the store. It is a no-op while
// another fetch is in flight. On failure the previous notes are kept.
func (s *Service) FetchNotes(ctx context.Context) error {
	return s.fetchNotes(ctx, false)
}

// FetchTrashedNotes loads the trashed notes from the store.
func (s *Service) FetchTrashedNotes(ctx context.Context) error {
	return s.fetchTrashed(ctx, false)
}

func (s *Service) fetchNotes(ctx context.Context, wait bool) error {
	return s.fetch(ctx, "notes", false, wait, s.store.GetNotes, func(notes []Note) {
		s.notes = notes
		s.hasFetched = true
	})
}

func (s *Service) fetchTrashed(ctx context.Context, wait bool) error {
	return s.fetch(ctx, "trashed notes", true, wait, s.store.GetTrashedNotes, func(notes []Note) {
		s.trashed = notes
	})
}

// EnsureLoaded fetches both collections unless a fetch already succeeded.
func (s *Service) EnsureLoaded(ctx context.Context) error {
	s.mu.RLock()
	fetched := s.hasFetched
	s.mu.RUnlock()
	if fetched {
		return nil
	}
	return errors.Join(s.FetchNotes(ctx), s.FetchTrashedNotes(ctx))
}

// fetch loads one collection. With wait unset it returns at once when another
// fetch is in flight; with wait set it runs after that fetch completes, so
// the result reflects the store as of the call.
func (s *Service) fetch(ctx context.Context, what string, trashed, wait bool, load func(context.Context) ([]Note, error), apply func([]Note)) error {
	s.mu.Lock()
	for s.isLoading {
		done := s.loadDone
		s.mu.Unlock()
		if !wait {
			return nil
		}
		select {
		case <-done:
		case <-ctx.Done():
			return fmt.Errorf("fetch %s: %w", what, ctx.Err())
		}
		s.mu.Lock()
	}
	s.isLoading = true
	s.loadSince = s.gen
	s.loadDone = make(chan struct{})
	s.publishLocked()
	s.mu.Unlock()

	notes, err := load(ctx)

	s.mu.Lock()
	s.isLoading = false
	close(s.loadDone)
	s.loadDone = nil
	if err == nil {
		if notes == nil {
			notes = []Note{}
		}
		apply(s.reconcileLocked(notes, s.loadSince, trashed))
	}
	for id := range s.revs {
		s.pruneLocked(id)
	}
	s.publishLocked()
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("failed to fetch "+what, "error", err)
		s.notifier.Notify(NoticeError, "Failed to load "+what)
		return fmt.Errorf("fetch %s: %w", what, err)
	}
	return nil
}

// CreateNote persists a new empty note, then prepends it to the active notes.
func (s *Service) CreateNote(ctx context.Context) (string, error) {
	n, err := s.store.CreateNote(ctx)
	if err != nil {
		s.logger.Error("failed to create note", "error", err)
		s.notifier.Notify(NoticeError, "Failed to create note")
		return "", fmt.Errorf("create note: %w", err)
	}

	s.mu.Lock()
	if list, _ := s.locate(n.ID); list == nil {
		s.notes = append([]Note{n}, s.notes...)
	}
	s.bump(n.ID)
	s.pruneLocked(n.ID)
	s.publishLocked()
	s.mu.Unlock()

	s.logger.Debug("note created", "id", n.ID)
	return n.ID, nil
}

// AddImportedNotes merges already persisted notes into memory, skipping ids
// present in either collection. Trashed records land in the trash.
// It returns the number of notes added.
func (s *Service) AddImportedNotes(imported []Note) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	added := 0
	for _, n := range imported {
		if list, _ := s.locate(n.ID); list != nil {
			continue
		}
		n = n.Clone()
		n.Normalize()
		if n.IsTrashed {
			s.trashed = append(s.trashed, n)
		} else {
			s.notes = append(s.notes, n)
		}
		s.bump(n.ID)
		s.pruneLocked(n.ID)
		added++
	}
	if added > 0 {
		s.publishLocked()
	}
	return added
}

// ImportNotes upserts notes into the store, then merges them into memory
// with AddImportedNotes.
func (s *Service) ImportNotes(ctx context.Context, notes []Note) (int, error) {
	if err := s.store.ImportNotes(ctx, notes); err != nil {
		s.logger.Error("failed to import notes", "count", len(notes), "error", err)
		s.notifier.Notify(NoticeError, "Failed to import notes")
		return 0, fmt.Errorf("import notes: %w", err)
	}
	added := s.AddImportedNotes(notes)
	s.notifier.Notify(NoticeSuccess, fmt.Sprintf("Imported %d notes", len(notes)))
	return added, nil
}

// TrashNote moves a note to the trash.
func (s *Service) TrashNote(ctx context.Context, id string) error {
	return s.move(ctx, id, true)
}

// RestoreNote moves a note back from the trash.
func (s *Service) RestoreNote(ctx context.Context, id string) error {
	return s.move(ctx, id, false)
}

// move transfers a note between the collections. A pinned note restored
// while MaxPinned active notes are already pinned comes back unpinned.
func (s *Service) move(ctx context.Context, id string, toTrash bool) error {
	from, to, verb := &s.notes, &s.trashed, "trash"
	write := s.store.TrashNote
	if !toTrash {
		from, to, verb = &s.trashed, &s.notes, "restore"
		write = s.store.RestoreNote
	}

	s.mu.Lock()
	i := indexOf(*from, id)
	var pre Note
	unpinned := false
	if i >= 0 {
		pre = (*from)[i]
		moved := pre.Clone()
		moved.IsTrashed = toTrash
		moved.UpdatedAt = Touch(pre.UpdatedAt, s.now())
		if !toTrash && moved.IsPinned && CountPinned(s.notes) >= MaxPinned {
			moved.IsPinned = false
			unpinned = true
			write = func(ctx context.Context, id string) error {
				return s.store.UpdateNote(ctx, id, Update{IsTrashed: Ptr(false), IsPinned: Ptr(false)})
			}
		}
		*from = slices.Delete(slices.Clone(*from), i, i+1)
		*to = append([]Note{moved}, removeID(*to, id)...)
		s.publishLocked()
	}
	rev := s.bump(id)
	t := s.holdLocked(id)
	s.mu.Unlock()
	defer s.unhold(id)

	err := t.run(ctx, func(ctx context.Context) error { return write(ctx, id) })
	if err == nil {
		if unpinned {
			s.logger.Warn("restored note unpinned, pin limit reached", "id", id, "limit", MaxPinned)
			s.notifier.Notify(NoticeWarning, "Restored note was unpinned: "+ErrPinLimit.Error())
		}
		return nil
	}

	s.logger.Error("failed to "+verb+" note", "id", id, "error", err)
	if i >= 0 {
		s.rollback(ctx, id, rev, func() {
			*to = removeID(*to, id)
			*from = insertAt(*from, i, pre)
		})
	}
	s.notifier.Notify(NoticeError, "Failed to "+verb+" note")
	return fmt.Errorf("%s note %s: %w", verb, id, err)
}

// UpdateNote merges u into the note optimistically, then persists it.
// Unknown ids are a no-op. An update that would leave more than MaxPinned
// active notes pinned is refused whole: nothing changes and a warning
// notice is emitted.
func (s *Service) UpdateNote(ctx context.Context, id string, u Update) error {
	_, err := s.mutate(ctx, id, func(Note) (Update, bool) { return u, true })
	return err
}

// TogglePin flips the pin flag of an active note. Trashed notes cannot be
// pinned. Pinning beyond MaxPinned is refused as in UpdateNote.
func (s *Service) TogglePin(ctx context.Context, id string) (bool, error) {
	trashed := false
	ok, err := s.mutate(ctx, id, func(n Note) (Update, bool) {
		if n.IsTrashed {
			trashed = true
			return Update{}, false
		}
		return Update{IsPinned: Ptr(!n.IsPinned)}, true
	})
	if trashed {
		s.notifier.Notify(NoticeWarning, "Restore the note before pinning it")
	}
	return ok, err
}

// RestoreVersion replaces the content of a note with its history entry at
// index. The replaced content becomes the newest history entry.
func (s *Service) RestoreVersion(ctx context.Context, id string, index int) (bool, error) {
	return s.mutate(ctx, id, func(n Note) (Update, bool) {
		if index < 0 || index >= len(n.History) {
			return Update{}, false
		}
		content := n.History[index].Content.Clone()
		return Update{
			Content:   &content,
			Title:     Ptr(DeriveTitle(content)),
			CharCount: Ptr(CountChars(content)),
		}, true
	})
}

// mutate applies the update produced by build under the state lock, then
// persists it. build returning false refuses the change, and so does the pin
// ceiling.
func (s *Service) mutate(ctx context.Context, id string, build func(Note) (Update, bool)) (bool, error) {
	s.mu.Lock()
	list, i := s.locate(id)
	if list == nil {
		s.mu.Unlock()
		return false, nil
	}
	pre := (*list)[i]
	u, ok := build(pre)
	if !ok {
		s.mu.Unlock()
		return false, nil
	}
	next := pre.Apply(u, s.now())
	wasTrashed := list == &s.trashed
	if pinsActive(next) && !pinsActive(pre) && CountPinned(s.notes) >= MaxPinned {
		s.mu.Unlock()
		s.logger.Warn("pin limit reached", "id", id, "limit", MaxPinned)
		s.notifier.Notify(NoticeWarning, ErrPinLimit.Error())
		return false, nil
	}
	if next.IsTrashed != wasTrashed {
		*list = slices.Delete(slices.Clone(*list), i, i+1)
		if next.IsTrashed {
			s.trashed = append([]Note{next}, s.trashed...)
		} else {
			s.notes = append([]Note{next}, s.notes...)
		}
	} else {
		(*list)[i] = next
	}
	rev := s.bump(id)
	t := s.holdLocked(id)
	s.publishLocked()
	s.mu.Unlock()
	defer s.unhold(id)

	err := t.run(ctx, func(ctx context.Context) error { return s.store.UpdateNote(ctx, id, u) })
	if err == nil {
		return true, nil
	}

	s.logger.Error("failed to update note", "id", id, "error", err)
	s.rollback(ctx, id, rev, func() {
		s.notes = removeID(s.notes, id)
		s.trashed = removeID(s.trashed, id)
		if wasTrashed {
			s.trashed = insertAt(s.trashed, i, pre)
		} else {
			s.notes = insertAt(s.notes, i, pre)
		}
	})
	s.notifier.Notify(NoticeError, "Failed to save note")
	return false, fmt.Errorf("update note %s: %w", id, err)
}

// DeleteNotePermanently removes a note from memory and from the store.
// On failure the note is put back where it was.
func (s *Service) DeleteNotePermanently(ctx context.Context, id string) error {
	s.mu.Lock()
	list, i := s.locate(id)
	var pre Note
	inTrash := list == &s.trashed
	if list != nil {
		pre = (*list)[i]
		*list = slices.Delete(slices.Clone(*list), i, i+1)
		s.publishLocked()
	}
	rev := s.bump(id)
	t := s.holdLocked(id)
	s.mu.Unlock()
	defer s.unhold(id)

	err := t.run(ctx, func(ctx context.Context) error { return s.store.DeleteNotePermanently(ctx, id) })
	if err == nil {
		return nil
	}

	s.logger.Error("failed to delete note", "id", id, "error", err)
	if list != nil {
		s.rollback(ctx, id, rev, func() {
			if inTrash {
				s.trashed = insertAt(removeID(s.trashed, id), i, pre)
			} else {
				s.notes = insertAt(removeID(s.notes, id), i, pre)
			}
		})
	}
	s.notifier.Notify(NoticeError, "Failed to delete note")
	return fmt.Errorf("delete note %s: %w", id, err)
}

// ResetState clears both collections and the fetched flag.
func (s *Service) ResetState() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notes = []Note{}
	s.trashed = []Note{}
	s.hasFetched = false
	s.publishLocked()
}

// Resync discards the in-memory state and rebuilds it from the store.
// A fetch already in flight may have read the store too early, so Resync
// waits for it and loads again.
func (s *Service) Resync(ctx context.Context) error {
	s.ResetState()
	return errors.Join(s.fetchNotes(ctx, true), s.fetchTrashed(ctx, true))
}

// Refresh reloads both collections without clearing them first. Like
// Resync it waits for a fetch already in flight.
func (s *Service) Refresh(ctx context.Context) error {
	return errors.Join(s.fetchNotes(ctx, true), s.fetchTrashed(ctx, true))
}

// SyncToDrive uploads the full local collections to the remote backup.
func (s *Service) SyncToDrive(ctx context.Context) error {
	token, err := s.token(ctx)
	if err != nil {
		s.notifier.Notify(NoticeError, "Sync failed: "+err.Error())
		return err
	}

	c, err := s.store.ExportNotes(ctx)
	if err != nil {
		s.logger.Error("failed to read local notes for backup", "error", err)
		s.notifier.Notify(NoticeError, "Sync failed")
		return fmt.Errorf("sync to drive: %w", err)
	}
	if err := s.backup.UploadBackup(ctx, token, c); err != nil {
		s.logger.Error("failed to upload backup", "error", err)
		s.notifier.Notify(NoticeError, "Sync failed")
		return fmt.Errorf("sync to drive: %w", err)
	}

	s.logger.Info("backup uploaded", "notes", len(c.Notes), "trashed", len(c.Trashed))
	s.notifier.Notify(NoticeSuccess, "Notes synced to Drive")
	return nil
}

// ImportFromDrive downloads the remote backup, upserts it into the store and
// rebuilds memory from the merged result. It returns the number of records
// imported.
func (s *Service) ImportFromDrive(ctx context.Context) (int, error) {
	token, err := s.token(ctx)
	if err != nil {
		s.notifier.Notify(NoticeError, "Import failed: "+err.Error())
		return 0, err
	}

	c, ok, err := s.backup.GetBackup(ctx, token)
	if err != nil {
		s.logger.Error("failed to download backup", "error", err)
		s.notifier.Notify(NoticeError, "Import failed")
		return 0, fmt.Errorf("import from drive: %w", err)
	}
	if !ok {
		s.notifier.Notify(NoticeWarning, "No backup found on Drive")
		return 0, ErrNoBackup
	}

	all := c.All()
	if err := s.store.ImportNotes(ctx, all); err != nil {
		s.logger.Error("failed to store downloaded backup", "error", err)
		s.notifier.Notify(NoticeError, "Import failed")
		return 0, fmt.Errorf("import from drive: %w", err)
	}
	if err := s.Resync(ctx); err != nil {
		return len(all), err
	}

	s.logger.Info("backup imported", "count", len(all))
	s.notifier.Notify(NoticeSuccess, fmt.Sprintf("Imported %d notes from Drive", len(all)))
	return len(all), nil
}

func (s *Service) token(ctx context.Context) (string, error) {
	if s.backup == nil || s.tokens == nil {
		return "", ErrNotLoggedIn
	}
	token, err := s.tokens.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotLoggedIn, err)
	}
	if token == "" {
		return "", ErrNotLoggedIn
	}
	return token, nil
}

// rollback runs undo when no later mutation touched id since rev. Otherwise
// the note is reloaded from the store once earlier writes have settled.
func (s *Service) rollback(ctx context.Context, id string, rev uint64, undo func()) {
	s.mu.Lock()
	if s.revs[id] == rev {
		undo()
		s.publishLocked()
		s.mu.Unlock()
		s.logger.Warn("rolled back optimistic change", "id", id)
		return
	}
	s.mu.Unlock()
	s.reload(ctx, id)
}

// reload replaces the in-memory copy of id with the stored record.
func (s *Service) reload(ctx context.Context, id string) {
	s.mu.Lock()
	rev := s.revs[id]
	t := s.holdLocked(id)
	s.mu.Unlock()
	defer s.unhold(id)

	var (
		n     Note
		found bool
	)
	err := t.run(ctx, func(ctx context.Context) error {
		var err error
		n, found, err = s.store.GetNote(ctx, id)
		return err
	})
	if err != nil {
		s.logger.Error("failed to reload note", "id", id, "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.revs[id] != rev {
		return
	}
	s.notes = removeID(s.notes, id)
	s.trashed = removeID(s.trashed, id)
	if found {
		if n.IsTrashed {
			s.trashed = insertByUpdated(s.trashed, n)
		} else {
			s.notes = insertByUpdated(s.notes, n)
		}
	}
	s.publishLocked()
	s.logger.Warn("reloaded note after failed write", "id", id)
}

func (s *Service) now() int64 {
	return s.clock().UnixMilli()
}

// bump marks id as changed and returns its new revision. Revisions come
// from one service-wide counter, so they also order changes against fetches.
// Caller holds mu.
func (s *Service) bump(id string) uint64 {
	s.gen++
	s.revs[id] = s.gen
	return s.gen
}

// holdLocked reserves a write slot for id and keeps its revision until
// unhold. Caller holds mu.
func (s *Service) holdLocked(id string) *ticket {
	s.holds[id]++
	return s.queue.reserve(id)
}

func (s *Service) unhold(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.holds[id]--; s.holds[id] <= 0 {
		delete(s.holds, id)
	}
	s.pruneLocked(id)
}

// pruneLocked forgets the revision of id once no write and no running fetch
// can compare against it. Caller holds mu.
func (s *Service) pruneLocked(id string) {
	if s.holds[id] > 0 {
		return
	}
	if s.isLoading && s.revs[id] > s.loadSince {
		return
	}
	delete(s.revs, id)
}

// reconcileLocked overlays the in-memory copy of every note changed since
// gen onto a freshly loaded collection. A fetch that raced a local change
// would otherwise undo it. Caller holds mu.
func (s *Service) reconcileLocked(loaded []Note, since uint64, trashed bool) []Note {
	out := loaded
	for id, rev := range s.revs {
		if rev <= since {
			continue
		}
		out = removeID(out, id)
		if list, i := s.locate(id); list != nil && (list == &s.trashed) == trashed {
			out = insertByUpdated(out, (*list)[i])
		}
	}
	return out
}

// locate finds id in either collection. Caller holds mu.
func (s *Service) locate(id string) (*[]Note, int) {
	if i := indexOf(s.notes, id); i >= 0 {
		return &s.notes, i
	}
	if i := indexOf(s.trashed, id); i >= 0 {
		return &s.trashed, i
	}
	return nil, -1
}

func (s *Service) snapshotLocked() State {
	return State{
		Notes:        cloneNotes(s.notes),
		TrashedNotes: cloneNotes(s.trashed),
		IsLoading:    s.isLoading,
		HasFetched:   s.hasFetched,
	}
}

// publishLocked sends the current state to subscribers without blocking.
func (s *Service) publishLocked() {
	if len(s.subs) == 0 {
		return
	}
	st := s.snapshotLocked()
	for _, ch := range s.subs {
		select {
		case ch <- st:
		default:
		}
	}
}

// pinsActive reports whether n counts toward the pin ceiling.
func pinsActive(n Note) bool {
	return n.IsPinned && !n.IsTrashed
}

func indexOf(notes []Note, id string) int {
	return slices.IndexFunc(notes, func(n Note) bool { return n.ID == id })
}

func removeID(notes []Note, id string) []Note {
	return slices.DeleteFunc(slices.Clone(notes), func(n Note) bool { return n.ID == id })
}

func insertAt(notes []Note, i int, n Note) []Note {
	if i > len(notes) {
		i = len(notes)
	}
	return slices.Insert(slices.Clone(notes), i, n)
}

// insertByUpdated keeps a newest-first list ordered.
func insertByUpdated(notes []Note, n Note) []Note {
	i := slices.IndexFunc(notes, func(o Note) bool { return o.UpdatedAt < n.UpdatedAt })
	if i < 0 {
		i = len(notes)
	}
	return insertAt(notes, i, n)
}

func cloneNotes(notes []Note) []Note {
	out := make([]Note, len(notes))
	for i, n := range notes {
		out[i] = n.Clone()
	}
	return out
}
