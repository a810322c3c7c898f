// Package persist keeps per-workspace state in a local badger database.
//
// Each workspace owns two keys: "<workspace>/model" holds the last model
// snapshot with per-point result values stripped, and
// "<workspace>/credentials" holds the engine session credentials with a
// TTL matching the engine's idle timeout. The two have independent
// lifetimes: starting without resume drops the model but keeps the
// credentials.
package persist
