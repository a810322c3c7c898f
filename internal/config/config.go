package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config captures the settings lumen needs to reach the engine and keep
// local state.
type Config struct {
	EngineURL           string
	DataDir             string
	Debounce            time.Duration
	FingerprintDebounce time.Duration
	Heartbeat           time.Duration
	RequestTimeout      time.Duration
}

const (
	defaultConfigPath          = "~/.config/lumen/config.toml"
	defaultDataDir             = "~/.local/share/lumen"
	defaultEngineURL           = "127.0.0.1:8000"
	defaultDebounceMS          = 300
	defaultFingerprintDebounce = 500
	defaultHeartbeatSeconds    = 60
	defaultRequestTimeout      = 15
)

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		EngineURL:           defaultEngineURL,
		DataDir:             mustExpand(defaultDataDir),
		Debounce:            defaultDebounceMS * time.Millisecond,
		FingerprintDebounce: defaultFingerprintDebounce * time.Millisecond,
		Heartbeat:           defaultHeartbeatSeconds * time.Second,
		RequestTimeout:      defaultRequestTimeout * time.Second,
	}
}

// Load locates and parses the lumen config, falling back to defaults when missing.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var raw struct {
		EngineURL             string `toml:"engine_url"`
		DataDir               string `toml:"data_dir"`
		DebounceMS            int    `toml:"debounce_ms"`
		FingerprintDebounceMS int    `toml:"fingerprint_debounce_ms"`
		HeartbeatSeconds      int    `toml:"heartbeat_seconds"`
		RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
	}
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if v := strings.TrimSpace(raw.EngineURL); v != "" {
		cfg.EngineURL = v
	}
	if v := strings.TrimSpace(raw.DataDir); v != "" {
		cfg.DataDir = mustExpand(v)
	}
	if raw.DebounceMS > 0 {
		cfg.Debounce = time.Duration(raw.DebounceMS) * time.Millisecond
	}
	if raw.FingerprintDebounceMS > 0 {
		cfg.FingerprintDebounce = time.Duration(raw.FingerprintDebounceMS) * time.Millisecond
	}
	if raw.HeartbeatSeconds > 0 {
		cfg.Heartbeat = time.Duration(raw.HeartbeatSeconds) * time.Second
	}
	if raw.RequestTimeoutSeconds > 0 {
		cfg.RequestTimeout = time.Duration(raw.RequestTimeoutSeconds) * time.Second
	}

	return cfg, nil
}

// StateDir returns the badger directory under the data dir.
func (c Config) StateDir() string {
	return filepath.Join(c.dataDir(), "state")
}

// LogPath returns the path of the lumen log file.
func (c Config) LogPath() string {
	return filepath.Join(c.dataDir(), "lumen.log")
}

func (c Config) dataDir() string {
	if strings.TrimSpace(c.DataDir) == "" {
		return mustExpand(defaultDataDir)
	}
	return c.DataDir
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
