// Package notekeep is the Composition Root of the notekeep application.
//
// It connects the note lifecycle (Domain Layer, pkg/core) with the storage
// engines and backup providers (pkg/adapters) using the Hexagonal
// Architecture pattern.
//
// Philosophy:
//
// Notes live locally first. Every change is applied to the in-memory state
// before it is persisted. A failed write is rolled back, or the state is
// resynced, so the view never drifts from the store.
// A remote backup is a single document replaced in full on each sync.
//
// Features:
//
//   - **Optimistic Updates**: edits are visible before the write completes.
//   - **Pluggable Engines**: filesystem, SQLite, Redis or memory via `core.KV`.
//   - **Remote Backup**: Google Drive application folder or any S3 bucket.
//   - **Versioned Exports**: older export files are migrated on import.
//   - **Markdown Import**: headings, lists, quotes and code become note blocks.
//
// Usage:
//
//	svc, err := notekeep.New("./notes",
//		notekeep.WithLogger(logger),
//	)
//
//	if err := svc.FetchNotes(ctx); err != nil { ... }
//	id, err := svc.CreateNote(ctx)
//	err = svc.UpdateNote(ctx, id, core.Update{Title: core.Ptr("Groceries")})
package notekeep
