// Package fingerprint tracks engine-computed state hashes and derives
// staleness signals from them.
//
// The client never hashes the model itself. The engine reports two hash
// families: calc_state covers calculation inputs, update_state covers
// bookkeeping that changes zone output shape without changing inputs.
// Comparing the live fingerprint against the one a computation used tells
// the UI what is stale without re-running anything.
package fingerprint

import (
	"maps"
	"sync"
)

// HashFamily is one family of hashes reported by the engine.
type HashFamily struct {
	LightSources string            `json:"lamps"`
	Reflectance  string            `json:"reflectance"`
	Zones        map[string]string `json:"zones"`
}

// StateFingerprint pairs the calculation and update hash families.
type StateFingerprint struct {
	CalcState   HashFamily `json:"calc_state"`
	UpdateState HashFamily `json:"update_state"`
}

// Clone returns a deep copy of f.
func (f StateFingerprint) Clone() StateFingerprint {
	f.CalcState.Zones = maps.Clone(f.CalcState.Zones)
	f.UpdateState.Zones = maps.Clone(f.UpdateState.Zones)
	return f
}

// Signals is the full set of derived staleness booleans.
type Signals struct {
	HasCurrent        bool
	HasComputed       bool
	NeedsComputation  bool
	LightSourcesStale bool
	RoomStale         bool
}

// Tracker holds the current and last-computed fingerprints.
type Tracker struct {
	mu           sync.Mutex
	current      *StateFingerprint
	lastComputed *StateFingerprint

	listeners map[uint64]func(Signals)
	nextID    uint64
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{listeners: make(map[uint64]func(Signals))}
}

// ApplyFromResponse replaces the current fingerprint. A nil fp is ignored.
func (t *Tracker) ApplyFromResponse(fp *StateFingerprint) {
	if fp == nil {
		return
	}
	dup := fp.Clone()
	t.update(func() { t.current = &dup })
}

// ApplyFromComputation records the fingerprint a computation used. A nil
// fp is ignored.
func (t *Tracker) ApplyFromComputation(fp *StateFingerprint) {
	if fp == nil {
		return
	}
	dup := fp.Clone()
	t.update(func() { t.lastComputed = &dup })
}

// Reset forgets both fingerprints.
func (t *Tracker) Reset() {
	t.update(func() {
		t.current = nil
		t.lastComputed = nil
	})
}

// Current returns a copy of the current fingerprint.
func (t *Tracker) Current() (StateFingerprint, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == nil {
		return StateFingerprint{}, false
	}
	return t.current.Clone(), true
}

// LastComputed returns a copy of the last-computed fingerprint.
func (t *Tracker) LastComputed() (StateFingerprint, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.lastComputed == nil {
		return StateFingerprint{}, false
	}
	return t.lastComputed.Clone(), true
}

// NeedsComputation reports whether the last computation no longer matches
// the live model.
func (t *Tracker) NeedsComputation() bool {
	return t.Signals().NeedsComputation
}

// LightSourcesStale reports whether light-source inputs changed since the
// last computation.
func (t *Tracker) LightSourcesStale() bool {
	return t.Signals().LightSourcesStale
}

// RoomStale reports whether reflectance inputs changed since the last
// computation.
func (t *Tracker) RoomStale() bool {
	return t.Signals().RoomStale
}

// ZoneStale is IsZoneStale against the tracked fingerprints.
func (t *Tracker) ZoneStale(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return IsZoneStale(id, t.current, t.lastComputed)
}

// Signals returns every derived signal at once.
func (t *Tracker) Signals() Signals {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.signalsLocked()
}

// Subscribe registers fn to receive Signals after every change and returns
// a function that removes it.
func (t *Tracker) Subscribe(fn func(Signals)) func() {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.nextID
	t.nextID++
	t.listeners[id] = fn
	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		delete(t.listeners, id)
	}
}

func (t *Tracker) update(fn func()) {
	t.mu.Lock()
	fn()
	sig := t.signalsLocked()
	listeners := make([]func(Signals), 0, len(t.listeners))
	for _, l := range t.listeners {
		listeners = append(listeners, l)
	}
	t.mu.Unlock()

	for _, l := range listeners {
		l(sig)
	}
}

func (t *Tracker) signalsLocked() Signals {
	sig := Signals{
		HasCurrent:  t.current != nil,
		HasComputed: t.lastComputed != nil,
	}
	if t.current == nil {
		return sig
	}
	if t.lastComputed == nil {
		sig.NeedsComputation = true
		return sig
	}
	cur, last := t.current.CalcState, t.lastComputed.CalcState
	sig.LightSourcesStale = cur.LightSources != last.LightSources
	sig.RoomStale = cur.Reflectance != last.Reflectance
	sig.NeedsComputation = sig.LightSourcesStale || sig.RoomStale || !maps.Equal(cur.Zones, last.Zones)
	return sig
}

// IsZoneStale reports whether the result for zone id was computed from
// inputs that no longer match current. Both the calc and update hashes of
// the zone are compared. Without a computation nothing is stale; a zone
// absent from lastComputed but present in current is stale.
func IsZoneStale(id string, current, lastComputed *StateFingerprint) bool {
	if current == nil || lastComputed == nil {
		return false
	}
	curCalc, inCurrent := current.CalcState.Zones[id]
	lastCalc, inLast := lastComputed.CalcState.Zones[id]
	if !inCurrent {
		return false
	}
	if !inLast {
		return true
	}
	return curCalc != lastCalc ||
		current.UpdateState.Zones[id] != lastComputed.UpdateState.Zones[id]
}
