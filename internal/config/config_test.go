package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_MissingConfigFallsBackToDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, err := Load(filepath.Join(home, "does-not-exist.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.EngineURL != defaultEngineURL {
		t.Fatalf("EngineURL = %q, want %q", cfg.EngineURL, defaultEngineURL)
	}

	wantDataDir, err := expandPath(defaultDataDir)
	if err != nil {
		t.Fatalf("expandPath(defaultDataDir) returned error: %v", err)
	}
	if cfg.DataDir != wantDataDir {
		t.Fatalf("DataDir = %q, want %q", cfg.DataDir, wantDataDir)
	}
	if cfg.Debounce != 300*time.Millisecond {
		t.Fatalf("Debounce = %v, want 300ms", cfg.Debounce)
	}
	if cfg.Heartbeat != time.Minute {
		t.Fatalf("Heartbeat = %v, want 1m", cfg.Heartbeat)
	}
}

func TestLoad_ParsesAndTrimsConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(`
engine_url = "  http://10.0.0.5:9000  "
data_dir = "  ~/.lumen  "
debounce_ms = 150
fingerprint_debounce_ms = 800
heartbeat_seconds = 20
request_timeout_seconds = 5
`), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.EngineURL != "http://10.0.0.5:9000" {
		t.Fatalf("EngineURL = %q, want %q", cfg.EngineURL, "http://10.0.0.5:9000")
	}
	if !strings.HasPrefix(cfg.DataDir, home) {
		t.Fatalf("DataDir = %q, want it under HOME %q", cfg.DataDir, home)
	}
	if cfg.Debounce != 150*time.Millisecond || cfg.FingerprintDebounce != 800*time.Millisecond {
		t.Fatalf("debounce = %v/%v, want 150ms/800ms", cfg.Debounce, cfg.FingerprintDebounce)
	}
	if cfg.Heartbeat != 20*time.Second || cfg.RequestTimeout != 5*time.Second {
		t.Fatalf("heartbeat/timeout = %v/%v, want 20s/5s", cfg.Heartbeat, cfg.RequestTimeout)
	}
	if cfg.StateDir() != filepath.Join(cfg.DataDir, "state") {
		t.Fatalf("StateDir = %q", cfg.StateDir())
	}
}

func TestLoad_EmptyValuesUseDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(`
engine_url = "   "
data_dir = ""
debounce_ms = 0
heartbeat_seconds = -3
`), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	want := Default()
	if cfg != want {
		t.Fatalf("Load = %+v, want defaults %+v", cfg, want)
	}
}

func TestLoad_InvalidTOMLFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(`engine_url = [`), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	_, err := Load(path)
	if err == nil {
		t.Fatalf("Load returned nil error, want parse error")
	}
	if !strings.Contains(err.Error(), "parse config") {
		t.Fatalf("Load error = %q, want it to mention parse config", err.Error())
	}
}

func TestExpandPath_ExpandsTildeAndReturnsAbs(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	got, err := expandPath("~/a/b")
	if err != nil {
		t.Fatalf("expandPath returned error: %v", err)
	}
	want := filepath.Join(home, "a/b")
	if got != want {
		t.Fatalf("expandPath = %q, want %q", got, want)
	}
}

func TestExpandPath_EmptyErrors(t *testing.T) {
	if _, err := expandPath("   "); err == nil {
		t.Fatalf("expandPath returned nil error, want error")
	}
}

func TestLogPath_DefaultsWhenDataDirEmpty(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	var cfg Config
	got := cfg.LogPath()
	if !strings.HasPrefix(got, home) {
		t.Fatalf("LogPath = %q, want it under HOME %q", got, home)
	}
	if !strings.HasSuffix(got, filepath.FromSlash("/lumen.log")) {
		t.Fatalf("LogPath = %q, want it to end with /lumen.log", got)
	}
}
