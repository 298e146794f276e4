package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CONFIG_ENV", "dev")
	t.Setenv("INTERCOM_TOKEN", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "release", cfg.Mode)
	assert.Equal(t, 8090, cfg.Port)
	assert.Equal(t, []string{"stun:stun.l.google.com:19302"}, cfg.StunServers)
	assert.Equal(t, 5*time.Second, cfg.ICETimeout)
	assert.Equal(t, "./data", cfg.DataDir)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "config"), 0o755))
	yaml := `
mode: debug
port: 9000
number: "1000"
gateway_url: ws://ha.local:8123/api/websocket
stun_servers:
  - stun:stun.example.org:3478
ice_timeout: 2s
data_dir: /var/lib/intercom
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config", "config.test.yaml"), []byte(yaml), 0o644))

	t.Chdir(dir)
	t.Setenv("CONFIG_ENV", "test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Mode)
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "1000", cfg.Number)
	assert.Equal(t, "ws://ha.local:8123/api/websocket", cfg.GatewayURL)
	assert.Equal(t, []string{"stun:stun.example.org:3478"}, cfg.StunServers)
	assert.Equal(t, 2*time.Second, cfg.ICETimeout)
	assert.Equal(t, "/var/lib/intercom", cfg.DataDir)
}

func TestAccessTokenFromEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CONFIG_ENV", "dev")
	t.Setenv("INTERCOM_TOKEN", "llat-abc123")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "llat-abc123", cfg.AccessToken)
}
