package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(New(), filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080", cfg.ServerURL)
	assert.Equal(t, "stable", cfg.Channel)
	assert.Equal(t, 6*time.Hour, cfg.CheckInterval)
	assert.Equal(t, 5*time.Second, cfg.CompleteDisplayWindow)
	assert.Equal(t, uint64(5), cfg.DownloadRetries)
	assert.Equal(t, filepath.Join(DefaultDataDir(), "state.json"), cfg.StatePath)
	assert.NotEmpty(t, cfg.CurrentVersion)
	assert.False(t, cfg.AutoUpdate)
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "updater.yaml")
	content := `
server:
  url: https://updates.example.com
updates:
  channel: beta
  feature_tag: new-ui
  auto_update: true
  check_interval: 30m
  current_version: 1.4.2
paths:
  state: ` + filepath.Join(dir, "state.json") + `
installer:
  command: /usr/local/bin/apply-update
  args: ["--quiet"]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("NB_UPDATER_UPDATES_CHANNEL", "nightly")
	t.Setenv("NB_UPDATER_LOG_LEVEL", "debug")

	cfg, err := Load(New(), path)
	require.NoError(t, err)

	assert.Equal(t, "https://updates.example.com", cfg.ServerURL)
	assert.Equal(t, "nightly", cfg.Channel, "environment overrides the file")
	assert.Equal(t, "new-ui", cfg.FeatureTag)
	assert.True(t, cfg.AutoUpdate)
	assert.Equal(t, 30*time.Minute, cfg.CheckInterval)
	assert.Equal(t, "1.4.2", cfg.CurrentVersion)
	assert.Equal(t, filepath.Join(dir, "state.json"), cfg.StatePath)
	assert.Equal(t, "/usr/local/bin/apply-update", cfg.InstallerCommand)
	assert.Equal(t, []string{"--quiet"}, cfg.InstallerArgs)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  any
	}{
		{name: "relative server url", key: KeyServerURL, val: "updates.example.com"},
		{name: "unsupported scheme", key: KeyServerURL, val: "ftp://updates.example.com"},
		{name: "empty channel", key: KeyChannel, val: " "},
		{name: "interval too short", key: KeyCheckInterval, val: time.Second},
		{name: "negative display window", key: KeyCompleteDisplayWindow, val: -time.Second},
		{name: "empty state path", key: KeyStatePath, val: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := New()
			v.Set(tt.key, tt.val)
			_, err := Load(v, "")
			assert.Error(t, err)
		})
	}
}

func TestLoad_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "updater.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0o600))

	_, err := Load(New(), path)
	assert.Error(t, err)
}
