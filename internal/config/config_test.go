package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMergesJSONCFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.jsonc")
	content := `{
	// comments are allowed
	"logLevel": "DEBUG",
	"defaultServerUrl": "http://file:4096",
}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("POCKETCODE_CONFIG", path)
	t.Setenv("POCKETCODE_SERVER_URL", "http://env:4096")
	t.Setenv("POCKETCODE_LOG_LEVEL", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "DEBUG", cfg.LogLevel)
	// Environment overrides the file.
	assert.Equal(t, "http://env:4096", cfg.DefaultServerURL)
}

func TestLoadWithoutAnyConfigSucceeds(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("POCKETCODE_CONFIG", "")
	t.Setenv("POCKETCODE_SERVER_URL", "")
	t.Setenv("POCKETCODE_LOG_LEVEL", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Empty(t, cfg.LogLevel)
	assert.Empty(t, cfg.DefaultServerURL)
}

func TestLoadSkipsMalformedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("POCKETCODE_CONFIG", path)
	t.Setenv("POCKETCODE_SERVER_URL", "")
	t.Setenv("POCKETCODE_LOG_LEVEL", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Empty(t, cfg.DefaultServerURL)
}

func TestGetPathsHonorsXDGOverrides(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/custom/data")
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	t.Setenv("XDG_STATE_HOME", "/custom/state")

	p := GetPaths()
	assert.Equal(t, "/custom/data/pocketcode", p.Data)
	assert.Equal(t, "/custom/config/pocketcode", p.Config)
	assert.Equal(t, "/custom/state/pocketcode", p.State)
	assert.Equal(t, filepath.Join(p.Data, "storage"), p.StoragePath())
}
