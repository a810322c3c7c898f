// Package coalesce collapses bursts of same-key work into one delayed call.
package coalesce

import (
	"sync"
	"time"
)

// Coalescer schedules at most one pending thunk per key. Scheduling again
// under the same key cancels the earlier thunk, so a burst of calls runs
// only the last one, once, after the delay.
type Coalescer struct {
	mu      sync.Mutex
	pending map[string]*entry
	seq     uint64
}

type entry struct {
	seq   uint64
	timer *time.Timer
	fn    func()
}

// New returns an empty Coalescer.
func New() *Coalescer {
	return &Coalescer{pending: make(map[string]*entry)}
}

// Coalesce replaces any thunk pending under key with fn, to run after delay.
// The entry is removed before fn runs, so fn may reschedule itself.
func (c *Coalescer) Coalesce(key string, fn func(), delay time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if prev, ok := c.pending[key]; ok {
		prev.timer.Stop()
	}
	c.seq++
	e := &entry{seq: c.seq, fn: fn}
	e.timer = time.AfterFunc(delay, func() { c.fire(key, e.seq) })
	c.pending[key] = e
}

// Cancel drops the thunk pending under key without running it.
func (c *Coalescer) Cancel(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.pending[key]
	if !ok {
		return false
	}
	e.timer.Stop()
	delete(c.pending, key)
	return true
}

// Pending reports whether a thunk is scheduled under key.
func (c *Coalescer) Pending(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.pending[key]
	return ok
}

// Flush runs every pending thunk now, on the calling goroutine.
func (c *Coalescer) Flush() {
	c.mu.Lock()
	fns := make([]func(), 0, len(c.pending))
	for key, e := range c.pending {
		e.timer.Stop()
		fns = append(fns, e.fn)
		delete(c.pending, key)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

func (c *Coalescer) fire(key string, seq uint64) {
	c.mu.Lock()
	e, ok := c.pending[key]
	// A Stop that raced with expiry leaves a stale timer firing; only the
	// current entry for key may run.
	if !ok || e.seq != seq {
		c.mu.Unlock()
		return
	}
	delete(c.pending, key)
	c.mu.Unlock()

	e.fn()
}
