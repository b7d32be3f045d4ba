package exchange

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/aretw0/notekeep/pkg/core"
)

// record is one note as found in a document, before validation.
type record map[string]json.RawMessage

// rawDocument is a document of any version, kept loosely typed until it has
// been migrated.
type rawDocument struct {
	Notes   []record
	Trashed []record
}

// migrations[v] upgrades a v document to v+1.
var migrations = map[int]func(rawDocument) rawDocument{
	0: migrateV0,
	1: migrateV1,
}

// detect decodes the top-level shape and returns the schema version.
func detect(data []byte) (rawDocument, int, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return rawDocument{}, 0, fmt.Errorf("%w: empty document", core.ErrInvalidImport)
	}

	if data[0] == '[' {
		var notes []record
		if err := json.Unmarshal(data, &notes); err != nil {
			return rawDocument{}, 0, fmt.Errorf("%w: %v", core.ErrInvalidImport, err)
		}
		return rawDocument{Notes: notes}, 0, nil
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return rawDocument{}, 0, fmt.Errorf("%w: %v", core.ErrInvalidImport, err)
	}

	version := 1
	if raw, ok := top["version"]; ok {
		if err := json.Unmarshal(raw, &version); err != nil {
			return rawDocument{}, 0, fmt.Errorf("%w: version is not a number", core.ErrInvalidImport)
		}
		if version != Version {
			return rawDocument{}, 0, fmt.Errorf("%w: unsupported version %d", core.ErrInvalidImport, version)
		}
	}

	var doc rawDocument
	for _, field := range []struct {
		name string
		dst  *[]record
	}{{"notes", &doc.Notes}, {"trashed", &doc.Trashed}} {
		raw, ok := top[field.name]
		if !ok || string(raw) == "null" {
			continue
		}
		if err := json.Unmarshal(raw, field.dst); err != nil {
			return rawDocument{}, 0, fmt.Errorf("%w: %s is not an array of notes", core.ErrInvalidImport, field.name)
		}
	}
	return doc, version, nil
}

// migrateV0 is a no-op on the record level: a bare array is already the
// notes list of a v1 document.
func migrateV0(doc rawDocument) rawDocument {
	return doc
}

// migrateV1 converts legacy string content into a single paragraph block.
func migrateV1(doc rawDocument) rawDocument {
	for _, list := range [][]record{doc.Notes, doc.Trashed} {
		for _, rec := range list {
			raw := bytes.TrimSpace(rec["content"])
			var text string
			if !bytes.HasPrefix(raw, []byte(`"`)) || json.Unmarshal(raw, &text) != nil {
				continue
			}
			c := core.Content{
				Blocks:  []core.Block{{Type: "paragraph", Data: map[string]any{"text": text}}},
				Version: core.ContentVersion,
			}
			if data, err := json.Marshal(c); err == nil {
				rec["content"] = data
			}
		}
	}
	return doc
}

// note validates rec and fills defaults. ok is false when the record has no
// id, no content, or fields of the wrong type.
func (rec record) note(now int64) (core.Note, bool) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return core.Note{}, false
	}
	var n core.Note
	if err := json.Unmarshal(raw, &n); err != nil {
		return core.Note{}, false
	}
	content, ok := rec["content"]
	if n.ID == "" || !ok || string(content) == "null" {
		return core.Note{}, false
	}

	n.Normalize()
	if n.Content.Version == "" {
		n.Content.Version = core.ContentVersion
	}
	if n.CreatedAt == 0 {
		n.CreatedAt = now
	}
	if n.UpdatedAt == 0 {
		n.UpdatedAt = now
	}
	if n.Title == "" {
		n.Title = core.DeriveTitle(n.Content)
	}
	if cc, ok := rec["charCount"]; !ok || string(cc) == "null" {
		n.CharCount = core.CountChars(n.Content)
	}
	n.Tags = core.NormalizeTags(n.Tags)
	if len(n.History) > core.MaxHistory {
		n.History = n.History[:core.MaxHistory]
	}
	for i := range n.History {
		if n.History[i].Content.Blocks == nil {
			n.History[i].Content.Blocks = []core.Block{}
		}
	}
	return n, true
}
