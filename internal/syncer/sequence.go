package syncer

import (
	"context"
	"sync"
)

// sequencer orders remote calls that touch the same entity. A call takes
// the next slot on its key and starts only after the previous holder of
// that key released it.
type sequencer struct {
	mu    sync.Mutex
	tails map[string]chan struct{}
}

// next reserves the next slot on key. prev is closed once the previous
// call on key released its slot; it is nil when there is none. release
// must be called once the call finished and is safe to call twice.
func (s *sequencer) next(key string) (prev <-chan struct{}, release func()) {
	done := make(chan struct{})
	s.mu.Lock()
	if s.tails == nil {
		s.tails = make(map[string]chan struct{})
	}
	if tail, ok := s.tails[key]; ok {
		prev = tail
	}
	s.tails[key] = done
	s.mu.Unlock()

	var once sync.Once
	return prev, func() {
		once.Do(func() {
			close(done)
			s.mu.Lock()
			if s.tails[key] == done {
				delete(s.tails, key)
			}
			s.mu.Unlock()
		})
	}
}

// last returns the slot of the newest call on key, or nil.
func (s *sequencer) last(key string) <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tail, ok := s.tails[key]; ok {
		return tail
	}
	return nil
}

// waitFor blocks until ch is closed or ctx ends. A nil ch returns at once.
func waitFor(ctx context.Context, ch <-chan struct{}) {
	if ch == nil {
		return
	}
	select {
	case <-ch:
	case <-ctx.Done():
	}
}
