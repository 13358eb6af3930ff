package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "howlbot.yaml")

	cfg, resolved, err := Load(nil, path)
	require.NoError(t, err)
	assert.Equal(t, path, resolved)

	// A starter file is written for the user to fill in.
	_, statErr := os.Stat(path)
	require.NoError(t, statErr)

	def := Default()
	assert.Equal(t, def.Prefix, cfg.Prefix)
	assert.Equal(t, def.LogLevel, cfg.LogLevel)
	assert.Equal(t, def.DatabasePath, cfg.DatabasePath)
	assert.Equal(t, def.HeartbeatInterval, cfg.HeartbeatInterval)
	assert.Empty(t, cfg.AccessToken)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "howlbot.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
access_token: at-123
refresh_token: rt-456
prefix: ["?", "$"]
log_level: debug
heartbeat_interval: 3s
rooms_refresh_interval: 30s
room: r1
`), 0o600))

	cfg, _, err := Load(nil, path)
	require.NoError(t, err)

	assert.Equal(t, "at-123", cfg.AccessToken)
	assert.Equal(t, "rt-456", cfg.RefreshToken)
	assert.Equal(t, []string{"?", "$"}, cfg.Prefix)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 3*time.Second, cfg.HeartbeatInterval)
	assert.Equal(t, 30*time.Second, cfg.RoomsRefreshInterval)
	assert.Equal(t, "r1", cfg.Room)
	// Values the file does not mention keep their defaults.
	assert.True(t, cfg.Muted)
	assert.Equal(t, "howlbot.db", cfg.DatabasePath)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "howlbot.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: warn\n"), 0o600))

	t.Setenv("HOWLBOT_LOG_LEVEL", "trace")

	cfg, _, err := Load(nil, path)
	require.NoError(t, err)
	assert.Equal(t, "trace", cfg.LogLevel)
}
