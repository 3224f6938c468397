package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	require.Equal(t, 120*time.Second, cfg.Engine.CycleInterval)
	require.Equal(t, 60*time.Second, cfg.Engine.CycleTimeout)
	require.Equal(t, 5, cfg.Analysis.MinObservations)
	require.Equal(t, 0.3, cfg.Analysis.EMAAlpha)
	require.Equal(t, 1, cfg.Sizing.MinPool)
	require.Equal(t, 20, cfg.Sizing.MaxPool)
	require.Equal(t, 2.0, cfg.Sizing.ItemsPerAgent)
	require.Equal(t, 10*time.Minute, cfg.Sizing.PredictionHorizon)
	require.Equal(t, 50, cfg.Histories.CycleCap)
	require.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestLoadYAMLOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fleetmind.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
engine:
  cycle_interval: 30s
  window: 5m
sizing:
  max_pool: 8
logging:
  level: debug
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 30*time.Second, cfg.Engine.CycleInterval)
	require.Equal(t, 5*time.Minute, cfg.EffectiveWindow())
	require.Equal(t, 8, cfg.Sizing.MaxPool)
	require.Equal(t, "debug", cfg.Logging.Level)

	// Untouched sections keep their defaults.
	require.Equal(t, 60*time.Second, cfg.Engine.CycleTimeout)
	require.Equal(t, 0.3, cfg.Analysis.EMAAlpha)
}

func TestLoadMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("engine: ["), 0o644))
	_, err := Load(path)
	require.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("FLEETMIND_CYCLE_INTERVAL", "45s")
	t.Setenv("FLEETMIND_CYCLE_TIMEOUT", "20s")
	t.Setenv("FLEETMIND_MAX_POOL", "12")
	t.Setenv("FLEETMIND_DB_PATH", "/tmp/fm.db")
	t.Setenv("FLEETMIND_LOG_LEVEL", "warn")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 45*time.Second, cfg.Engine.CycleInterval)
	require.Equal(t, 20*time.Second, cfg.Engine.CycleTimeout)
	require.Equal(t, 12, cfg.Sizing.MaxPool)
	require.Equal(t, "/tmp/fm.db", cfg.Storage.DatabasePath)
	require.Equal(t, "warn", cfg.Logging.Level)
}

func TestEnvOverridesBeatFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fleetmind.yaml")
	require.NoError(t, os.WriteFile(path, []byte("engine:\n  cycle_interval: 30s\n"), 0o644))
	t.Setenv("FLEETMIND_CYCLE_INTERVAL", "90s")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 90*time.Second, cfg.Engine.CycleInterval)
}

func TestEnvIgnoresMalformedValues(t *testing.T) {
	t.Setenv("FLEETMIND_CYCLE_INTERVAL", "soon")
	t.Setenv("FLEETMIND_MAX_POOL", "many")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 120*time.Second, cfg.Engine.CycleInterval)
	require.Equal(t, 20, cfg.Sizing.MaxPool)
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero interval", func(c *Config) { c.Engine.CycleInterval = 0 }},
		{"zero timeout", func(c *Config) { c.Engine.CycleTimeout = 0 }},
		{"alpha above one", func(c *Config) { c.Analysis.EMAAlpha = 1.5 }},
		{"zero min observations", func(c *Config) { c.Analysis.MinObservations = 0 }},
		{"max below min pool", func(c *Config) { c.Sizing.MinPool = 5; c.Sizing.MaxPool = 3 }},
		{"zero items per agent", func(c *Config) { c.Sizing.ItemsPerAgent = 0 }},
		{"zero history cap", func(c *Config) { c.Histories.CycleCap = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestEffectiveWindowDefaultsToInterval(t *testing.T) {
	cfg := Default()
	require.Equal(t, cfg.Engine.CycleInterval, cfg.EffectiveWindow())
	cfg.Engine.Window = time.Minute
	require.Equal(t, time.Minute, cfg.EffectiveWindow())
}
