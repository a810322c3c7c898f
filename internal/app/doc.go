// Package app is the composition root for lumen.
//
// # Overview
//
// Run loads configuration and preferences, opens the badger state
// database, builds a Runtime for the selected workspace and hands it to the
// TUI. It blocks until the user quits or the context is cancelled, then
// flushes pending edits and writes the model one last time.
//
// # Startup
//
//  1. Load ~/.config/lumen/config.toml (engine endpoint, data dir, timings)
//  2. Load ~/.config/lumen/prefs.toml (theme, units, workspace)
//  3. Open <data_dir>/state and select the workspace
//  4. Restore the stored model when resuming, otherwise start from defaults
//  5. Wire store, tracker, notifications, session manager and sync engine
//  6. Open the remote session in the background and start the heartbeat
//  7. Run the TUI
//
// # Components
//
//   - app.go: Run, Build and the Runtime that owns one workspace
//   - poller.go: heartbeat that refreshes state fingerprints with backoff
//
// The engine being unreachable never blocks startup. Edits stay local and
// are replayed the next time a remote call brings the session up.
package app
