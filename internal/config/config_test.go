package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir()) // keep the host's config out

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "local-0", cfg.DeviceSerial)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.NotEmpty(t, cfg.SocketDir)
	assert.NotEmpty(t, cfg.HistoryDB)
	assert.False(t, cfg.StrictVersion)
}

func TestConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "devlink.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"app_id: com.example.app\ntoken: \"0x00000000000000ff\"\nstrict_version: true\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "com.example.app", cfg.AppID)
	assert.Equal(t, "0x00000000000000ff", cfg.Token)
	assert.True(t, cfg.StrictVersion)
	assert.Equal(t, "local-0", cfg.DeviceSerial, "defaults still apply")
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "devlink.yaml")
	require.NoError(t, os.WriteFile(path, []byte("app_id: com.example.file\n"), 0o644))
	t.Setenv("DEVLINK_APP_ID", "com.example.env")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "com.example.env", cfg.AppID)
}

func TestExplicitMissingFileIsAnError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
