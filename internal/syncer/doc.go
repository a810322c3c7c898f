// Package syncer keeps the local model and the remote calculation engine in
// step.
//
// Every user edit lands in the state.Store first and is pushed to the
// engine afterwards. Slider-style edits are coalesced per entity so a burst
// of changes produces one remote call carrying the last value; edits whose
// order matters (units, standard, reflectance enable, the standard-zone
// toggle) are sent immediately together with anything still pending.
//
// All remote traffic goes through a Guard. The guard skips calls while
// sync is suppressed or no session exists, reinitializes the session when
// the engine reports it expired, merges inline state hashes into the
// fingerprint tracker and turns every other failure into exactly one user
// notification. Engine operations never return errors to their callers;
// they report success with a bool where the caller needs the created
// entity.
//
// The engine owns the geometry of the three standard zones.
// RefreshStandardZones reads it back after room changes. Overlapping
// refresh passes are ordered by a sequence number and only the newest pass
// writes to the store. A Skin or Eye plane reported with the wrong
// orientation is deleted and re-created with the expected flags.
package syncer
