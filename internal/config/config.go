package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/tidwall/jsonc"
)

// Config holds app-level options. Server configs live in storage, not here;
// this file only tunes the client itself.
type Config struct {
	// LogLevel is the minimum log level (DEBUG|INFO|WARN|ERROR).
	LogLevel string `json:"logLevel,omitempty"`
	// DefaultServerURL is connected to on first run when no server has been
	// added yet.
	DefaultServerURL string `json:"defaultServerUrl,omitempty"`
	// DefaultAgent overrides the built-in fallback agent name.
	DefaultAgent string `json:"defaultAgent,omitempty"`
}

// Load reads the app config, merging in priority order:
//  1. ~/.config/pocketcode/config.json or config.jsonc
//  2. POCKETCODE_CONFIG file override
//  3. environment variables (highest priority)
//
// Missing files are fine; Load never fails on absent config.
func Load() (*Config, error) {
	cfg := &Config{}

	dir := GetPaths().Config
	for _, name := range []string{"config.json", "config.jsonc"} {
		loadFile(filepath.Join(dir, name), cfg)
	}

	if path := os.Getenv("POCKETCODE_CONFIG"); path != "" {
		loadFile(path, cfg)
	}

	if v := os.Getenv("POCKETCODE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("POCKETCODE_SERVER_URL"); v != "" {
		cfg.DefaultServerURL = v
	}

	return cfg, nil
}

// loadFile merges one config file into cfg. JSONC comments are stripped
// before parsing. Unreadable or malformed files are skipped.
func loadFile(path string, cfg *Config) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	data = jsonc.ToJSON(data)

	var next Config
	if err := json.Unmarshal(data, &next); err != nil {
		return
	}
	if next.LogLevel != "" {
		cfg.LogLevel = next.LogLevel
	}
	if next.DefaultServerURL != "" {
		cfg.DefaultServerURL = next.DefaultServerURL
	}
	if next.DefaultAgent != "" {
		cfg.DefaultAgent = next.DefaultAgent
	}
}
