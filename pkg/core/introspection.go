package core

import (
	"github.com/aretw0/introspection"
)

// ServiceState exposes internal state for observability.
type ServiceState struct {
	EventBufferSize int    `json:"event_buffer_size"`
	StoreType       string `json:"store_type"`
	BackupEnabled   bool   `json:"backup_enabled"`
	Notes           int    `json:"notes"`
	Trashed         int    `json:"trashed"`
	IsLoading       bool   `json:"is_loading"`
	HasFetched      bool   `json:"has_fetched"`
	Subscribers     int    `json:"subscribers"`
	PendingWrites   int    `json:"pending_writes"`
	TrackedRevs     int    `json:"tracked_revisions"`
	Watching        bool   `json:"watching"`
}

// State implements introspection.Introspectable.
func (s *Service) State() any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	storeType := "unknown"
	if s.store != nil {
		storeType = "store"
		if comp, ok := s.store.(introspection.Component); ok {
			storeType = comp.ComponentType()
		}
	}

	return ServiceState{
		EventBufferSize: s.eventBufferSize,
		StoreType:       storeType,
		BackupEnabled:   s.backup != nil,
		Notes:           len(s.notes),
		Trashed:         len(s.trashed),
		IsLoading:       s.isLoading,
		HasFetched:      s.hasFetched,
		Subscribers:     len(s.subs),
		PendingWrites:   s.queue.pending(),
		TrackedRevs:     len(s.revs),
		Watching:        s.watching,
	}
}

// ComponentType implements introspection.Component.
func (s *Service) ComponentType() string {
	return "service"
}

var _ introspection.Introspectable = (*Service)(nil)
var _ introspection.Component = (*Service)(nil)
