// Package config loads lumen's TOML configuration.
//
// # Configuration Discovery
//
// The Load function follows this resolution order:
//
//  1. If a path is explicitly provided, use it
//  2. Otherwise, use ~/.config/lumen/config.toml (default)
//  3. If the config file doesn't exist, fall back to hardcoded defaults
//  4. If the file exists but fields are missing, empty or non-positive, use defaults
//
// A file that exists but is not valid TOML is an error.
//
// # Default Values
//
//   - Config file: ~/.config/lumen/config.toml
//   - Engine endpoint: 127.0.0.1:8000
//   - Data directory: ~/.local/share/lumen
//   - State database: <data_dir>/state
//   - Log file: <data_dir>/lumen.log
//   - Edit debounce: 300ms, fingerprint debounce: 500ms
//   - Heartbeat: 60s, request timeout: 15s
//
// # TOML Format
//
//	engine_url = "http://127.0.0.1:8000"
//	data_dir = "~/.local/share/lumen"
//	debounce_ms = 300
//	fingerprint_debounce_ms = 500
//	heartbeat_seconds = 60
//	request_timeout_seconds = 15
//
// Every field is optional. Tilde expansion is performed on data_dir.
package config
