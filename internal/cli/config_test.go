package cli

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolateHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("GCCTL_SERVER_ENDPOINT", "")
	t.Setenv("GCCTL_AUTH_TOKEN", "")
	t.Setenv("GCCTL_AUTH_OPERATOR", "")
	return home
}

func TestLoadConfig_Defaults(t *testing.T) {
	isolateHome(t)

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, defaultEndpoint, cfg.Server.Endpoint)
	assert.Equal(t, defaultOperator, cfg.Auth.Operator)
	assert.Empty(t, cfg.Auth.Token)
	assert.True(t, cfg.Auth.ExpiresAt.IsZero())
}

func TestLoadConfig_File(t *testing.T) {
	isolateHome(t)

	file := filepath.Join(t.TempDir(), "gcctl.yaml")
	content := `
server:
  endpoint: "http://desk.local:5000"
auth:
  operator: "night-shift"
  token: "abc"
  expires_at: "2024-03-01T10:00:00Z"
`
	require.NoError(t, os.WriteFile(file, []byte(content), 0o600))

	cfg, err := LoadConfig(file)
	require.NoError(t, err)
	assert.Equal(t, "http://desk.local:5000", cfg.Server.Endpoint)
	assert.Equal(t, "night-shift", cfg.Auth.Operator)
	assert.Equal(t, "abc", cfg.Auth.Token)
	assert.True(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC).Equal(cfg.Auth.ExpiresAt))
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	isolateHome(t)
	t.Setenv("GCCTL_SERVER_ENDPOINT", "http://env.local:7000")
	t.Setenv("GCCTL_AUTH_TOKEN", "from-env")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "http://env.local:7000", cfg.Server.Endpoint)
	assert.Equal(t, "from-env", cfg.Auth.Token)
}

func TestLoadConfig_InvalidFile(t *testing.T) {
	isolateHome(t)

	file := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(file, []byte("server: [unclosed"), 0o600))

	_, err := LoadConfig(file)
	assert.Error(t, err)
}

func TestConfig_SaveRoundTrip(t *testing.T) {
	home := isolateHome(t)

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	expires := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)
	cfg.Server.Endpoint = "http://10.0.0.5:5000"
	cfg.Auth.Token = "saved-token"
	cfg.Auth.ExpiresAt = expires
	require.NoError(t, cfg.Save())

	path := filepath.Join(home, configDirName, "config.yaml")
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	reloaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "http://10.0.0.5:5000", reloaded.Server.Endpoint)
	assert.Equal(t, "saved-token", reloaded.Auth.Token)
	assert.True(t, expires.Equal(reloaded.Auth.ExpiresAt))
}

func TestConfig_SaveExplicitFile(t *testing.T) {
	isolateHome(t)

	file := filepath.Join(t.TempDir(), "nested", "gcctl.yaml")
	cfg, err := LoadConfig(file)
	require.NoError(t, err)

	path, err := cfg.Path()
	require.NoError(t, err)
	assert.Equal(t, file, path)

	cfg.Auth.Token = "t"
	require.NoError(t, cfg.Save())
	_, err = os.Stat(file)
	assert.NoError(t, err)
}
