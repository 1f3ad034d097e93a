package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schovi/interactive/internal/engine"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, time.Hour, cfg.IdleTimeout())
}

func TestLoadFileThenEnvironment(t *testing.T) {
	path := writeConfig(t, `
idle_timeout_seconds = 120
poll_interval = "50ms"
log_dir = "/tmp/sessions"
log_level = "debug"
`)
	t.Setenv("MCP_SESSION_TIMEOUT", "30")
	t.Setenv("INTERACTIVE_KILL_GRACE", "2s")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 30, cfg.IdleTimeoutSeconds, "environment overrides the file")
	assert.Equal(t, 50*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, 2*time.Second, cfg.KillGracePeriod)
	assert.Equal(t, "/tmp/sessions", cfg.LogDir)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, engine.DefaultReadChunkSize, cfg.ReadChunkSize, "unset keys keep defaults")
}

func TestLoadExplicitPathMustExist(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, "idle_timeout = 5\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "idle_timeout")
}

func TestLoadRejectsBadEnvironment(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("MCP_SESSION_TIMEOUT", "soon")

	_, err := Load("")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero idle timeout", func(c *Config) { c.IdleTimeoutSeconds = 0 }},
		{"negative poll interval", func(c *Config) { c.PollInterval = -time.Second }},
		{"zero chunk size", func(c *Config) { c.ReadChunkSize = 0 }},
		{"zero rows", func(c *Config) { c.Rows = 0 }},
		{"cols beyond winsize", func(c *Config) { c.Cols = 70000 }},
		{"rows beyond winsize", func(c *Config) { c.Rows = 65536 }},
		{"empty log dir", func(c *Config) { c.LogDir = "" }},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }},
	}

	require.NoError(t, Default().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestEngineConfig(t *testing.T) {
	cfg := Default()
	cfg.IdleTimeoutSeconds = 90
	cfg.LogDir = "/var/log/interactive"

	ec := cfg.EngineConfig()
	assert.Equal(t, 90*time.Second, ec.IdleTimeout)
	assert.Equal(t, "/var/log/interactive", ec.LogDir)
	assert.Equal(t, cfg.KillGracePeriod, ec.KillGracePeriod)
}
