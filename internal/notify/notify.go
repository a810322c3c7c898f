// Package notify holds the user-facing queue of sync notifications.
//
// Nothing in the sync core reads the queue back; it is a side channel for
// the UI. Entries stay until dismissed.
package notify

import (
	"slices"
	"sync"
	"time"
)

// Severity grades a notification.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// SyncNotification describes one failed or noteworthy sync operation.
type SyncNotification struct {
	ID        uint64
	Severity  Severity
	Operation string
	Message   string
	Timestamp time.Time
}

// Sink is the write side of a notification queue.
type Sink interface {
	Notify(severity Severity, operation, message string) SyncNotification
}

var _ Sink = (*Queue)(nil)

// Queue is an unbounded, dismiss-to-remove notification list.
type Queue struct {
	mu      sync.Mutex
	items   []SyncNotification
	nextID  uint64
	now     func() time.Time
	watches map[uint64]func([]SyncNotification)
	watchID uint64
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	return &Queue{
		now:     time.Now,
		watches: make(map[uint64]func([]SyncNotification)),
	}
}

// Notify appends a notification and returns it.
func (q *Queue) Notify(severity Severity, operation, message string) SyncNotification {
	q.mu.Lock()
	q.nextID++
	n := SyncNotification{
		ID:        q.nextID,
		Severity:  severity,
		Operation: operation,
		Message:   message,
		Timestamp: q.now(),
	}
	q.items = append(q.items, n)
	q.mu.Unlock()

	q.broadcast()
	return n
}

// Dismiss removes the notification with id.
func (q *Queue) Dismiss(id uint64) bool {
	q.mu.Lock()
	i := slices.IndexFunc(q.items, func(n SyncNotification) bool { return n.ID == id })
	if i < 0 {
		q.mu.Unlock()
		return false
	}
	q.items = slices.Delete(q.items, i, i+1)
	q.mu.Unlock()

	q.broadcast()
	return true
}

// Clear removes every notification.
func (q *Queue) Clear() {
	q.mu.Lock()
	q.items = nil
	q.mu.Unlock()
	q.broadcast()
}

// List returns the notifications oldest first.
func (q *Queue) List() []SyncNotification {
	q.mu.Lock()
	defer q.mu.Unlock()
	return slices.Clone(q.items)
}

// Len returns the number of notifications.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Subscribe registers fn to receive the list after every change.
func (q *Queue) Subscribe(fn func([]SyncNotification)) func() {
	q.mu.Lock()
	defer q.mu.Unlock()
	id := q.watchID
	q.watchID++
	q.watches[id] = fn
	return func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		delete(q.watches, id)
	}
}

func (q *Queue) broadcast() {
	q.mu.Lock()
	items := slices.Clone(q.items)
	fns := make([]func([]SyncNotification), 0, len(q.watches))
	for _, fn := range q.watches {
		fns = append(fns, fn)
	}
	q.mu.Unlock()

	for _, fn := range fns {
		fn(items)
	}
}
