package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"codeberg.org/mkrell/relayctl/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "relayctl.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
log_level = "debug"
monitor = false
data_dir = "/tmp/relaytest"
archive = true
archive_db = "/tmp/relaytest/runs.db"

[sweep]
start = 10
end = 200
step = 5

[timing]
acquire_interval = "1ms"
global_timeout = "30s"

[limits]
current_ceiling_ma = 50.0
contact_min_ohm = 25.0
`)
	t.Setenv("RELAYCTL_CONFIG", path)

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel, "Expected LogLevel debug")
	assert.False(t, cfg.Monitor, "Expected Monitor false")
	assert.Equal(t, "/tmp/relaytest", cfg.DataDir)
	assert.True(t, cfg.Archive, "Expected Archive true")
	assert.Equal(t, 10, cfg.Sweep.Start)
	assert.Equal(t, 200, cfg.Sweep.End)
	assert.Equal(t, 5, cfg.Sweep.Step)
	assert.Equal(t, time.Millisecond, cfg.Timing.AcquireInterval)
	assert.Equal(t, 30*time.Second, cfg.Timing.GlobalTimeout)
	assert.InDelta(t, 50.0, cfg.Limits.CurrentCeilingMA, 1e-9)
	assert.InDelta(t, 25.0, cfg.Limits.ContactMinOhm, 1e-9)
}

func TestLoadDefaults(t *testing.T) {
	// An empty forced config file leaves every default in place.
	path := writeConfig(t, "")
	t.Setenv("RELAYCTL_CONFIG", path)

	cfg, err := config.Load()
	require.NoError(t, err, "Failed to load config")

	assert.Equal(t, config.DefaultLogLevel, cfg.LogLevel)
	assert.Equal(t, 0, cfg.Sweep.Start)
	assert.Equal(t, 255, cfg.Sweep.End)
	assert.Equal(t, 1, cfg.Sweep.Step)
	assert.Equal(t, 5*time.Millisecond, cfg.Timing.AcquireInterval)
	assert.Equal(t, 10*time.Millisecond, cfg.Timing.DrainInterval)
	assert.Equal(t, 200*time.Millisecond, cfg.Timing.DisplayInterval)
	assert.Equal(t, 60*time.Second, cfg.Timing.GlobalTimeout)
	assert.InDelta(t, 70.0, cfg.Limits.CurrentCeilingMA, 1e-9)
	assert.Equal(t, 5, cfg.Limits.StabilizeSamples)
	assert.InDelta(t, 40.0, cfg.Limits.StabilizeMaxCV, 1e-9)
}

func TestLoadConfigFileInvalidFormat(t *testing.T) {
	path := writeConfig(t, "This is not a valid TOML file\n")
	t.Setenv("RELAYCTL_CONFIG", path)

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Failed to read config file")
}

func TestInvalidLogLevel(t *testing.T) {
	path := writeConfig(t, `log_level = "invalid"`)
	t.Setenv("RELAYCTL_CONFIG", path)

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid")
}

func TestValidateRejectsBadSweep(t *testing.T) {
	path := writeConfig(t, `
[sweep]
start = 100
end = 50
`)
	t.Setenv("RELAYCTL_CONFIG", path)

	_, err := config.Load()
	require.Error(t, err)
}

func TestValidateRejectsZeroInterval(t *testing.T) {
	path := writeConfig(t, `
[timing]
dwell = "0s"
`)
	t.Setenv("RELAYCTL_CONFIG", path)

	_, err := config.Load()
	require.Error(t, err)
}
