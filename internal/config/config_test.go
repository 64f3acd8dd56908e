package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
auth:
  secret: topsecret
replication:
  local_addr: self:8080
  hosts: [self:8080]
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "logscand", cfg.App.Name)
	require.Equal(t, "info", cfg.App.LogLevel)
	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, 1, cfg.Replication.ReplicationFactor)
	require.Equal(t, "/var/lib/logscand/data", cfg.Storage.DataDir)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
app:
  log_level: debug
auth:
  secret: topsecret
`)

	t.Setenv("LOGSCAND_LOG_LEVEL", "warn")
	t.Setenv("LOGSCAND_SERVER_PORT", "9999")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "warn", cfg.App.LogLevel)
	require.Equal(t, 9999, cfg.Server.Port)
}

func TestLoad_MissingSecretFailsValidation(t *testing.T) {
	path := writeConfig(t, `
app:
  log_level: info
`)

	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "auth secret")
}

func TestLoad_InvalidLogLevelFailsValidation(t *testing.T) {
	path := writeConfig(t, `
app:
  log_level: shout
auth:
  secret: topsecret
`)

	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid log level")
}

func TestLoad_UnreadableFileIsError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
