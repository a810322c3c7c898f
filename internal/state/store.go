package state

import (
	"sync"
	"time"

	"github.com/five82/lumen/internal/model"
)

// Listener receives the snapshot produced by a mutation.
type Listener func(model.Model)

// Store holds the single live copy of the model.
//
// Mutations are serialised and every subscriber is notified synchronously,
// in mutation order, before Mutate returns. Listeners may call Read but
// must not call Mutate or Replace.
type Store struct {
	mu    sync.RWMutex
	model model.Model
	now   func() time.Time

	// notifyMu serialises apply+notify so listeners observe mutations in order.
	notifyMu  sync.Mutex
	listeners map[uint64]Listener
	nextID    uint64
}

// NewStore returns a store seeded with m.
func NewStore(m model.Model) *Store {
	return &Store{
		model:     m.Clone(),
		now:       time.Now,
		listeners: make(map[uint64]Listener),
	}
}

// Read returns a copy of the current model.
func (s *Store) Read() model.Model {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.model.Clone()
}

// Mutate applies fn to the model, stamps LastModifiedAt and notifies
// subscribers. fn must not retain the pointer.
func (s *Store) Mutate(fn func(*model.Model)) model.Model {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	fn(&s.model)
	s.model.LastModifiedAt = s.now()
	snap := s.model.Clone()
	s.mu.Unlock()

	s.broadcast(snap)
	return snap
}

// Replace swaps the whole model, used on reset and load.
func (s *Store) Replace(m model.Model) model.Model {
	return s.Mutate(func(cur *model.Model) {
		*cur = m.Clone()
	})
}

// Subscribe registers l and returns a function that removes it.
func (s *Store) Subscribe(l Listener) func() {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	return func() {
		s.notifyMu.Lock()
		defer s.notifyMu.Unlock()
		delete(s.listeners, id)
	}
}

// broadcast runs with notifyMu held.
func (s *Store) broadcast(snap model.Model) {
	for _, l := range s.listeners {
		l(snap.Clone())
	}
}
