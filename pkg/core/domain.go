package core

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// EventType represents the type of change observed in a note store.
type EventType string

const (
	EventCreate EventType = "CREATE"
	EventModify EventType = "MODIFY"
	EventDelete EventType = "DELETE"
)

// Event represents a change made to the durable store, typically by another process.
type Event struct {
	Type      EventType
	ID        string
	Timestamp int64 // Unix milliseconds
}

// String implements lifecycle.Event.
func (e Event) String() string {
	return fmt.Sprintf("%s %s", e.Type, e.ID)
}

// Collection is the full set of notes split by coarse state.
// It is the payload of exports and remote backups.
type Collection struct {
	Notes   []Note `json:"notes"`
	Trashed []Note `json:"trashed"`
}

// All returns active and trashed notes in one slice.
func (c Collection) All() []Note {
	out := make([]Note, 0, len(c.Notes)+len(c.Trashed))
	out = append(out, c.Notes...)
	return append(out, c.Trashed...)
}

// Len returns the number of notes in the collection.
func (c Collection) Len() int {
	return len(c.Notes) + len(c.Trashed)
}

// Encode renders the collection as an indented backup document. Nil lists
// are written as empty arrays.
func (c Collection) Encode() ([]byte, error) {
	if c.Notes == nil {
		c.Notes = []Note{}
	}
	if c.Trashed == nil {
		c.Trashed = []Note{}
	}
	return json.MarshalIndent(c, "", "  ")
}

// ParseCollection decodes a backup document. ok is false when the document
// is not JSON or when notes or trashed is not an array.
func ParseCollection(data []byte) (c Collection, ok bool) {
	var raw struct {
		Notes   json.RawMessage `json:"notes"`
		Trashed json.RawMessage `json:"trashed"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Collection{}, false
	}
	if !isArray(raw.Notes) || !isArray(raw.Trashed) {
		return Collection{}, false
	}
	if json.Unmarshal(raw.Notes, &c.Notes) != nil || json.Unmarshal(raw.Trashed, &c.Trashed) != nil {
		return Collection{}, false
	}
	for i := range c.Notes {
		c.Notes[i].Normalize()
	}
	for i := range c.Trashed {
		c.Trashed[i].Normalize()
	}
	return c, true
}

func isArray(raw json.RawMessage) bool {
	return bytes.HasPrefix(bytes.TrimSpace(raw), []byte("["))
}

// NoticeLevel classifies user-visible notices.
type NoticeLevel string

const (
	NoticeSuccess NoticeLevel = "success"
	NoticeWarning NoticeLevel = "warning"
	NoticeError   NoticeLevel = "error"
)

// Notifier receives user-visible notices (the toast channel of a UI).
type Notifier interface {
	Notify(level NoticeLevel, message string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(level NoticeLevel, message string)

// Notify implements Notifier.
func (f NotifierFunc) Notify(level NoticeLevel, message string) {
	f(level, message)
}

type discardNotifier struct{}

func (discardNotifier) Notify(NoticeLevel, string) {}
