// Package model defines the editable simulation model shared by the sync
// engine, the local store and the terminal UI.
//
// # Entities
//
// A Model owns one Room, a list of LightSources and a list of Zones, plus
// the Results of the last accepted computation. Light-source and zone ids
// are assigned by the remote engine; this package never generates them.
//
// Three zone ids are reserved (WholeRoomFluence, EyeLimits, SkinLimits).
// Their geometry is derived by the engine from the room and the selected
// standard. PlaceholderStandardZones approximates that geometry so the UI
// has something to show before the first zone-state fetch.
//
// # Patches
//
// RoomPatch, LightSourcePatch and ZonePatch describe partial updates with
// pointer fields. A nil field is omitted from the wire request. Patches
// merge, which is how the sync engine accumulates every field touched
// inside one debounce window into a single request.
//
// # Validation
//
// Validate and the ValidateNew* helpers run go-playground/validator tags
// plus struct-level checks for the spacing/point-count duality.
package model
