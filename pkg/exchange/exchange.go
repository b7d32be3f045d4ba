// Package exchange reads and writes portable note documents: versioned JSON
// exports and markdown files.
//
// Export documents carry a schema version. Older documents are upgraded one
// version at a time on import, so a file written by any past release can be
// read back:
//
//	v0: a bare array of notes
//	v1: {"notes": [...], "trashed": [...]}
//	v2: {"version": 2, "exportedAt": ms, "notes": [...], "trashed": [...]}
package exchange

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/aretw0/notekeep/pkg/core"
)

// Version is the schema version written by Encode.
const Version = 2

// Document is the current export schema.
type Document struct {
	Version    int         `json:"version"`
	ExportedAt int64       `json:"exportedAt"`
	Notes      []core.Note `json:"notes"`
	Trashed    []core.Note `json:"trashed"`
}

// Encode writes c as an indented v2 document.
func Encode(w io.Writer, c core.Collection, now time.Time) error {
	doc := Document{
		Version:    Version,
		ExportedAt: now.UnixMilli(),
		Notes:      c.Notes,
		Trashed:    c.Trashed,
	}
	if doc.Notes == nil {
		doc.Notes = []core.Note{}
	}
	if doc.Trashed == nil {
		doc.Trashed = []core.Note{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode export: %w", err)
	}
	return nil
}

// Filename returns the conventional export file name for app at t,
// e.g. "notekeep-backup-2024-05-01.json".
func Filename(app string, t time.Time) string {
	return fmt.Sprintf("%s-backup-%s.json", app, t.Format(time.DateOnly))
}

// Result is the outcome of parsing an export document.
type Result struct {
	Collection core.Collection
	// Version is the schema version the document was written with.
	Version int
	// Skipped counts records dropped for missing an id or content.
	Skipped int
}

// Decode reads an export document of any known version.
func Decode(r io.Reader) (core.Collection, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return core.Collection{}, fmt.Errorf("failed to read import: %w", err)
	}
	res, err := Parse(data, time.Now().UnixMilli())
	if err != nil {
		return core.Collection{}, err
	}
	return res.Collection, nil
}

// Parse upgrades data to the current schema and validates every record.
// now fills missing timestamps. Invalid documents wrap core.ErrInvalidImport.
func Parse(data []byte, now int64) (Result, error) {
	doc, version, err := detect(data)
	if err != nil {
		return Result{}, err
	}
	for v := version; v < Version; v++ {
		doc = migrations[v](doc)
	}

	res := Result{Version: version}
	seen := make(map[string]struct{})
	add := func(records []record, trashed bool) {
		for _, rec := range records {
			n, ok := rec.note(now)
			if !ok {
				res.Skipped++
				continue
			}
			if _, dup := seen[n.ID]; dup {
				res.Skipped++
				continue
			}
			seen[n.ID] = struct{}{}
			n.IsTrashed = n.IsTrashed || trashed
			if n.IsTrashed {
				res.Collection.Trashed = append(res.Collection.Trashed, n)
			} else {
				res.Collection.Notes = append(res.Collection.Notes, n)
			}
		}
	}
	add(doc.Notes, false)
	add(doc.Trashed, true)

	if res.Collection.Notes == nil {
		res.Collection.Notes = []core.Note{}
	}
	if res.Collection.Trashed == nil {
		res.Collection.Trashed = []core.Note{}
	}
	return res, nil
}
