package core

import "context"

// KV defines the contract of the raw embedded key-value engine.
// Adhering to this interface allows the note store to be independent of the
// underlying storage mechanism (Filesystem, Redis, SQLite, memory).
type KV interface {
	// Get returns the value stored under key. A missing key is (nil, false, nil).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set writes a single value. Each Set is atomic for its key.
	Set(ctx context.Context, key string, value []byte) error

	// SetMany writes a batch of values, atomically where the engine allows it.
	SetMany(ctx context.Context, entries map[string][]byte) error

	// Delete removes a key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Keys lists every key starting with prefix.
	Keys(ctx context.Context, prefix string) ([]string, error)

	// Close releases the engine resources.
	Close() error
}

// Watchable defines an interface for engines that can report changes made
// outside of this process.
type Watchable interface {
	// Watch emits an event per changed key matching prefix until ctx is done.
	Watch(ctx context.Context, prefix string) (<-chan Event, error)
}

// NoteStore is the durable Local Note Store. It is the only writer of
// history: every content change goes through Note.Apply.
type NoteStore interface {
	CreateNote(ctx context.Context) (Note, error)
	GetNote(ctx context.Context, id string) (Note, bool, error)
	GetNotes(ctx context.Context) ([]Note, error)
	GetTrashedNotes(ctx context.Context) ([]Note, error)

	// UpdateNote merges u into the stored note. Missing ids are a no-op.
	UpdateNote(ctx context.Context, id string, u Update) error
	TrashNote(ctx context.Context, id string) error
	RestoreNote(ctx context.Context, id string) error
	DeleteNotePermanently(ctx context.Context, id string) error
	ClearAllNotes(ctx context.Context) error

	// ImportNotes upserts every note keyed by its own id.
	ImportNotes(ctx context.Context, notes []Note) error
	ExportNotes(ctx context.Context) (Collection, error)
}

// BackupClient is the Remote Backup Client: one named backup document per
// account, replaced in full on every upload.
type BackupClient interface {
	UploadBackup(ctx context.Context, token string, c Collection) error

	// GetBackup returns (zero, false, nil) when there is no usable backup.
	GetBackup(ctx context.Context, token string) (Collection, bool, error)
}

// TokenSource yields the bearer token for the backup provider.
// An empty token means the user is not logged in.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a fixed bearer token.
type StaticToken string

// Token implements TokenSource.
func (t StaticToken) Token(context.Context) (string, error) {
	return string(t), nil
}
