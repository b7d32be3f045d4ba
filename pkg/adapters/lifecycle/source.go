// Package lifecycle exposes notekeep change feeds as aretw0/lifecycle sources,
// so a supervised application can react to external note edits.
package lifecycle

import (
	"context"
	"errors"
	"slices"
	"sync/atomic"

	"github.com/aretw0/lifecycle"

	"github.com/aretw0/notekeep/pkg/core"
)

// ErrStarted is returned when a source is started a second time.
var ErrStarted = errors.New("note source already started")

// SourceOption configures a note source.
type SourceOption func(*noteSource)

// OnlyTypes forwards only events of the given types. No types means all.
func OnlyTypes(types ...core.EventType) SourceOption {
	return func(s *noteSource) {
		s.types = types
	}
}

type noteSource struct {
	events  <-chan core.Event
	out     chan lifecycle.Event
	types   []core.EventType
	started atomic.Bool
}

// NewSource wraps a store or service watch channel. The source closes its
// output when the input closes or its context ends.
func NewSource(events <-chan core.Event, opts ...SourceOption) lifecycle.Source {
	s := &noteSource{
		events: events,
		out:    make(chan lifecycle.Event),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WatchService starts watching svc and returns the matching source.
func WatchService(ctx context.Context, svc *core.Service, opts ...SourceOption) (lifecycle.Source, error) {
	events, err := svc.Watch(ctx)
	if err != nil {
		return nil, err
	}
	return NewSource(events, opts...), nil
}

func (s *noteSource) Events() <-chan lifecycle.Event {
	return s.out
}

// Start runs the forwarding loop under lifecycle.Go. It may be called once.
func (s *noteSource) Start(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return ErrStarted
	}
	lifecycle.Go(ctx, func(ctx context.Context) error {
		defer close(s.out)
		for {
			var (
				e  core.Event
				ok bool
			)
			select {
			case <-ctx.Done():
				return nil
			case e, ok = <-s.events:
			}
			if !ok {
				return nil
			}
			if !s.wants(e) {
				continue
			}
			select {
			case s.out <- e:
			case <-ctx.Done():
				return nil
			}
		}
	})
	return nil
}

func (s *noteSource) wants(e core.Event) bool {
	return len(s.types) == 0 || slices.Contains(s.types, e.Type)
}
