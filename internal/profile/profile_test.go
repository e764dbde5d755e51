package profile_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"codeberg.org/mkrell/relayctl/internal/config"
	"codeberg.org/mkrell/relayctl/internal/profile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleProfiles = `
profiles:
  - name: reed-fast
    sweepStart: 20
    sweepEnd: 180
    sweepStep: 4
    dwell: 50ms
    contactMinOhm: 5.0
  - name: mems-precision
    sweepStep: 1
    dwell: 200ms
    stabilizeMaxCV: 20.0
    globalTimeout: 90s
`

func writeProfiles(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func baseConfig(t *testing.T) *config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "relayctl.toml")
	require.NoError(t, os.WriteFile(path, nil, 0o600))
	t.Setenv("RELAYCTL_CONFIG", path)
	cfg, err := config.Load()
	require.NoError(t, err)
	return cfg
}

func TestLoadAndApply(t *testing.T) {
	f, err := profile.Load(writeProfiles(t, sampleProfiles))
	require.NoError(t, err)
	require.Len(t, f.Profiles, 2)

	p, err := f.Find("reed-fast")
	require.NoError(t, err)

	cfg := baseConfig(t)
	require.NoError(t, p.Apply(cfg))

	assert.Equal(t, 20, cfg.Sweep.Start)
	assert.Equal(t, 180, cfg.Sweep.End)
	assert.Equal(t, 4, cfg.Sweep.Step)
	assert.Equal(t, 50*time.Millisecond, cfg.Timing.Dwell)
	assert.InDelta(t, 5.0, cfg.Limits.ContactMinOhm, 1e-9)
	// Untouched fields keep their base values.
	assert.InDelta(t, 40.0, cfg.Limits.StabilizeMaxCV, 1e-9)
}

func TestApplyPartialOverlay(t *testing.T) {
	f, err := profile.Load(writeProfiles(t, sampleProfiles))
	require.NoError(t, err)

	p, err := f.Find("mems-precision")
	require.NoError(t, err)

	cfg := baseConfig(t)
	require.NoError(t, p.Apply(cfg))

	assert.Equal(t, 0, cfg.Sweep.Start, "unset fields stay at base")
	assert.Equal(t, 255, cfg.Sweep.End)
	assert.InDelta(t, 20.0, cfg.Limits.StabilizeMaxCV, 1e-9)
	assert.Equal(t, 90*time.Second, cfg.Timing.GlobalTimeout)
}

func TestFindUnknownProfile(t *testing.T) {
	f, err := profile.Load(writeProfiles(t, sampleProfiles))
	require.NoError(t, err)

	_, err = f.Find("missing")
	require.Error(t, err)
}

func TestInvalidDwellRejected(t *testing.T) {
	f, err := profile.Load(writeProfiles(t, `
profiles:
  - name: broken
    dwell: not-a-duration
`))
	require.NoError(t, err)

	p, err := f.Find("broken")
	require.NoError(t, err)
	require.Error(t, p.Apply(baseConfig(t)))
}

func TestApplyRevalidates(t *testing.T) {
	f, err := profile.Load(writeProfiles(t, `
profiles:
  - name: inverted
    sweepStart: 200
    sweepEnd: 100
`))
	require.NoError(t, err)

	p, err := f.Find("inverted")
	require.NoError(t, err)
	require.Error(t, p.Apply(baseConfig(t)), "inverted sweep must fail validation")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := profile.Load(filepath.Join(t.TempDir(), "none.yaml"))
	require.Error(t, err)
}
