package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFromFile(t *testing.T) {
	path := writeFile(t, `
endpoint: https://dav.example.com/
username: jane
password_env: TEST_CALDAV_PASSWORD
calendar: /calendars/jane/work/
dialect: local-filter
cache:
  enabled: true
  size: 128
  ttl: 15m
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "https://dav.example.com/", cfg.Endpoint)
	assert.Equal(t, "jane", cfg.Username)
	assert.Equal(t, "/calendars/jane/work/", cfg.Calendar)
	assert.Equal(t, "local-filter", cfg.Dialect)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, 128, cfg.Cache.Size)
	assert.Equal(t, 15*time.Minute, cfg.Cache.TTL)
	assert.NoError(t, cfg.Validate())

	t.Setenv("TEST_CALDAV_PASSWORD", "hunter2")
	assert.Equal(t, "hunter2", cfg.ResolvePassword())
}

func TestLoadFromFile_defaults(t *testing.T) {
	cfg, err := LoadFromFile(writeFile(t, "endpoint: https://dav.example.com/\n"))
	require.NoError(t, err)

	assert.Equal(t, "default", cfg.Dialect)
	assert.Equal(t, time.Hour, cfg.Cache.TTL)
	assert.False(t, cfg.Cache.Enabled)
}

func TestLoadFromFile_invalid(t *testing.T) {
	_, err := LoadFromFile(writeFile(t, "endpoint: [\n"))
	assert.Error(t, err)

	_, err = LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_missingDefault(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	assert.Error(t, cfg.Validate())

	cfg.Endpoint = "https://dav.example.com/"
	assert.NoError(t, cfg.Validate())

	cfg.Dialect = "exchange"
	assert.Error(t, cfg.Validate())
}

func TestLoadOrCreateIdentity(t *testing.T) {
	path := filepath.Join(t.TempDir(), "caldav", "identity.txt")

	id, err := LoadOrCreateIdentity(path)
	require.NoError(t, err)

	loaded, err := LoadOrCreateIdentity(path)
	require.NoError(t, err)
	assert.Equal(t, id.String(), loaded.String())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}
