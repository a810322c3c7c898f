// Package state holds the single live copy of the editable model.
//
// # Overview
//
// The Store is the optimistic half of the client: every user edit is
// applied here synchronously, before any network traffic, so the UI never
// waits on the engine. The sync engine later merges engine-computed fields
// back in through the same Mutate entry point.
//
// # Architecture
//
//	UI / sync engine                    Subscribers (UI, autosave)
//	┌──────────────────┐               ┌──────────────────┐
//	│ store.Mutate(fn) │──── clone ───→│ listener(model)  │
//	│        ↓         │  (in order)   │                  │
//	│ LastModifiedAt   │               │                  │
//	└──────────────────┘               └──────────────────┘
//	         ↑
//	  store.Read() returns a deep copy
//
// # Concurrency Model
//
// Two locks cooperate:
//
//   - mu (RWMutex) guards the model value itself; Read takes it shared.
//   - notifyMu serialises "apply then notify" so subscribers see
//     snapshots in exactly the order the mutations happened.
//
// Listeners run with notifyMu held. They may call Read, but calling Mutate,
// Replace, Subscribe or an unsubscribe func from inside a listener would
// deadlock. Listeners that need to react with a mutation hand the work to
// another goroutine.
//
// # Defensive Copying
//
// Read, Mutate's return value and every listener receive their own deep
// copy (model.Model.Clone). Slices, maps and result payload headers are
// never shared with the stored value.
package state
