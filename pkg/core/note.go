package core

import (
	"bytes"
	"encoding/json"
)

const (
	// KeyPrefix namespaces note records inside a key-value engine.
	KeyPrefix = "note_"
	// MaxHistory is the number of prior content snapshots kept per note.
	MaxHistory = 20
	// MaxPinned is the ceiling of simultaneously pinned active notes.
	MaxPinned = 3
	// DefaultTitle is used for notes without a header block.
	DefaultTitle = "Untitled note"
	// ContentVersion is the block format marker written into new content.
	ContentVersion = "2.29.1"
)

// Block is one typed, self-contained unit of rich-text content.
// Text-bearing blocks keep their payload (possibly with inline HTML) in Data["text"].
type Block struct {
	ID   string         `json:"id,omitempty"`
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

// Content is the canonical body of a note.
type Content struct {
	Time    int64   `json:"time"`
	Blocks  []Block `json:"blocks"`
	Version string  `json:"version"`
}

// HistoryEntry is a retained prior content snapshot.
type HistoryEntry struct {
	Content   Content `json:"content"`
	UpdatedAt int64   `json:"updatedAt"`
}

// Note is the central entity of the domain.
// Timestamps are milliseconds since the Unix epoch.
type Note struct {
	ID        string         `json:"id"`
	Title     string         `json:"title"`
	Content   Content        `json:"content"`
	CreatedAt int64          `json:"createdAt"`
	UpdatedAt int64          `json:"updatedAt"`
	CharCount int            `json:"charCount"`
	Tags      []string       `json:"tags"`
	IsTrashed bool           `json:"isTrashed"`
	IsPinned  bool           `json:"isPinned"`
	History   []HistoryEntry `json:"history"`
}

// Update is a partial modification of a note. Nil fields are left unchanged.
// History is never part of an update; it is derived from content changes.
type Update struct {
	Title     *string
	Content   *Content
	CharCount *int
	Tags      []string
	IsPinned  *bool
	IsTrashed *bool
}

// Ptr returns a pointer to v. Handy for building an Update.
func Ptr[T any](v T) *T {
	return &v
}

// IsZero reports whether the update carries no change.
func (u Update) IsZero() bool {
	return u.Title == nil && u.Content == nil && u.CharCount == nil &&
		u.Tags == nil && u.IsPinned == nil && u.IsTrashed == nil
}

// NewNote returns an empty note created at now.
func NewNote(id string, now int64) Note {
	return Note{
		ID:    id,
		Title: DefaultTitle,
		Content: Content{
			Time:    now,
			Blocks:  []Block{},
			Version: ContentVersion,
		},
		CreatedAt: now,
		UpdatedAt: now,
		Tags:      []string{},
		History:   []HistoryEntry{},
	}
}

// Key returns the storage key of the note.
func (n Note) Key() string {
	return KeyPrefix + n.ID
}

// Apply merges u into a copy of n and returns it.
// A content change pushes the previous content to the front of History
// (trimmed to MaxHistory). UpdatedAt always moves forward, even when the
// clock did not.
func (n Note) Apply(u Update, now int64) Note {
	next := n.Clone()

	if u.Content != nil {
		if !n.Content.Equal(*u.Content) {
			entry := HistoryEntry{Content: n.Content.Clone(), UpdatedAt: n.UpdatedAt}
			next.History = append([]HistoryEntry{entry}, next.History...)
			if len(next.History) > MaxHistory {
				next.History = next.History[:MaxHistory]
			}
		}
		next.Content = u.Content.Clone()
	}
	if u.Title != nil {
		next.Title = *u.Title
	}
	if u.CharCount != nil {
		next.CharCount = *u.CharCount
	}
	if u.Tags != nil {
		next.Tags = append([]string{}, u.Tags...)
	}
	if u.IsPinned != nil {
		next.IsPinned = *u.IsPinned
	}
	if u.IsTrashed != nil {
		next.IsTrashed = *u.IsTrashed
	}

	next.UpdatedAt = Touch(n.UpdatedAt, now)
	return next
}

// Touch returns now, or prev+1 when now does not advance past prev.
func Touch(prev, now int64) int64 {
	if now <= prev {
		return prev + 1
	}
	return now
}

// Normalize replaces nil collections with empty ones so records always
// serialize with arrays.
func (n *Note) Normalize() {
	if n.Tags == nil {
		n.Tags = []string{}
	}
	if n.History == nil {
		n.History = []HistoryEntry{}
	}
	if n.Content.Blocks == nil {
		n.Content.Blocks = []Block{}
	}
}

// Clone returns a deep copy of the note.
func (n Note) Clone() Note {
	c := n
	c.Content = n.Content.Clone()
	if n.Tags != nil {
		c.Tags = append([]string{}, n.Tags...)
	}
	if n.History != nil {
		c.History = make([]HistoryEntry, len(n.History))
		for i, h := range n.History {
			c.History[i] = HistoryEntry{Content: h.Content.Clone(), UpdatedAt: h.UpdatedAt}
		}
	}
	return c
}

// Clone returns a deep copy of the content.
func (c Content) Clone() Content {
	out := c
	if c.Blocks != nil {
		out.Blocks = make([]Block, len(c.Blocks))
		for i, b := range c.Blocks {
			out.Blocks[i] = Block{ID: b.ID, Type: b.Type, Data: cloneMap(b.Data)}
		}
	}
	return out
}

// Equal compares two contents by their JSON form, which is how they are stored.
func (c Content) Equal(other Content) bool {
	if c.Blocks == nil {
		c.Blocks = []Block{}
	}
	if other.Blocks == nil {
		other.Blocks = []Block{}
	}
	a, errA := json.Marshal(c)
	b, errB := json.Marshal(other)
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(a, b)
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	case []string:
		return append([]string{}, t...)
	default:
		return v
	}
}
