package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/lifecycle"
)

// Watch observes changes made to the store by other processes (another
// window or CLI invocation) and refreshes the in-memory state once a burst
// of changes settles. The returned channel forwards the observed events and
// is closed when ctx is done.
func (s *Service) Watch(ctx context.Context) (<-chan Event, error) {
	w, ok := s.store.(Watchable)
	if !ok {
		return nil, errors.New("store does not support watching")
	}

	s.mu.Lock()
	if s.watching {
		s.mu.Unlock()
		return nil, errors.New("service is already watching")
	}
	s.watching = true
	s.mu.Unlock()

	events, err := w.Watch(ctx, KeyPrefix)
	if err != nil {
		s.setWatching(false)
		return nil, fmt.Errorf("watch store: %w", err)
	}

	out := make(chan Event, s.eventBufferSize)
	lifecycle.Go(ctx, func(ctx context.Context) error {
		defer close(out)
		defer s.setWatching(false)
		return s.watchLoop(ctx, events, out)
	}, lifecycle.WithErrorHandler(func(err error) {
		s.logger.Error("watch loop failed", "error", err)
	}))

	return out, nil
}

func (s *Service) watchLoop(ctx context.Context, events <-chan Event, out chan<- Event) error {
	var (
		timer   *time.Timer
		refresh <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case e, ok := <-events:
			if !ok {
				return nil
			}
			s.logger.Debug("external change", "type", e.Type, "id", e.ID)
			select {
			case out <- e:
			default:
				s.logger.Warn("watch buffer full, dropping event", "id", e.ID)
			}
			if timer == nil {
				timer = time.NewTimer(s.debounce)
			} else {
				timer.Reset(s.debounce)
			}
			refresh = timer.C

		case <-refresh:
			refresh = nil
			if err := s.Refresh(ctx); err != nil {
				s.logger.Error("refresh after external change failed", "error", err)
			}
		}
	}
}

func (s *Service) setWatching(active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watching = active
}
