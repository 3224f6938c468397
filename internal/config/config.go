// Package config holds all fleetmind configuration: one struct per
// concern, YAML file loading, environment overrides, and validation.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all fleetmind configuration.
type Config struct {
	Engine    EngineConfig    `yaml:"engine"`
	Analysis  AnalysisConfig  `yaml:"analysis"`
	Sizing    SizingConfig    `yaml:"sizing"`
	Histories HistoriesConfig `yaml:"histories"`
	Storage   StorageConfig   `yaml:"storage"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// EngineConfig configures the cycle scheduler.
type EngineConfig struct {
	// CycleInterval is how often the scheduler fires runCycle.
	CycleInterval time.Duration `yaml:"cycle_interval"`
	// CycleTimeout bounds one cycle; expiry counts as cycle failure.
	CycleTimeout time.Duration `yaml:"cycle_timeout"`
	// Window is the event analysis window. Defaults to CycleInterval.
	Window time.Duration `yaml:"window"`
}

// AnalysisConfig configures situation analysis.
type AnalysisConfig struct {
	// MinObservations gates burst detection and Z-score anomalies.
	MinObservations int `yaml:"min_observations"`
	// EMAAlpha is the smoothing factor for the EMA series.
	EMAAlpha float64 `yaml:"ema_alpha"`
}

// SizingConfig configures formula-driven pool sizing.
type SizingConfig struct {
	MinPool int `yaml:"min_pool"`
	MaxPool int `yaml:"max_pool"`
	// ItemsPerAgent sets the target pool size:
	// ceil(backlogDepth / ItemsPerAgent), clamped to [MinPool, MaxPool].
	ItemsPerAgent float64 `yaml:"items_per_agent"`
	// PredictionHorizon is how long predictions stay open before the
	// Supervisor grades them.
	PredictionHorizon time.Duration `yaml:"prediction_horizon"`
}

// HistoriesConfig bounds the engine's rolling histories.
type HistoriesConfig struct {
	CycleCap      int `yaml:"cycle_cap"`      // situations, assessments, plans, reports
	DirectiveCap  int `yaml:"directive_cap"`  // directive log
	PredictionCap int `yaml:"prediction_cap"` // accumulated predictions
	SeriesCap     int `yaml:"series_cap"`     // EMA input series
}

// StorageConfig configures snapshot persistence.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// Default returns the baseline configuration.
func Default() Config {
	return Config{
		Engine: EngineConfig{
			CycleInterval: 120 * time.Second,
			CycleTimeout:  60 * time.Second,
		},
		Analysis: AnalysisConfig{
			MinObservations: 5,
			EMAAlpha:        0.3,
		},
		Sizing: SizingConfig{
			MinPool:           1,
			MaxPool:           20,
			ItemsPerAgent:     2,
			PredictionHorizon: 10 * time.Minute,
		},
		Histories: HistoriesConfig{
			CycleCap:      50,
			DirectiveCap:  250,
			PredictionCap: 500,
			SeriesCap:     50,
		},
		Storage: StorageConfig{
			DatabasePath: ".fleetmind/fleetmind.db",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads the YAML file at path over the defaults, then applies
// environment overrides. A missing file is not an error: defaults plus
// environment apply.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnv overlays FLEETMIND_* environment variables.
func (c *Config) applyEnv() {
	if v := os.Getenv("FLEETMIND_CYCLE_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Engine.CycleInterval = d
		}
	}
	if v := os.Getenv("FLEETMIND_CYCLE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Engine.CycleTimeout = d
		}
	}
	if v := os.Getenv("FLEETMIND_MAX_POOL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Sizing.MaxPool = n
		}
	}
	if v := os.Getenv("FLEETMIND_DB_PATH"); v != "" {
		c.Storage.DatabasePath = v
	}
	if v := os.Getenv("FLEETMIND_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	if c.Engine.CycleInterval <= 0 {
		return fmt.Errorf("engine.cycle_interval must be positive, got %s", c.Engine.CycleInterval)
	}
	if c.Engine.CycleTimeout <= 0 {
		return fmt.Errorf("engine.cycle_timeout must be positive, got %s", c.Engine.CycleTimeout)
	}
	if c.Analysis.EMAAlpha <= 0 || c.Analysis.EMAAlpha > 1 {
		return fmt.Errorf("analysis.ema_alpha must be in (0, 1], got %g", c.Analysis.EMAAlpha)
	}
	if c.Analysis.MinObservations < 1 {
		return fmt.Errorf("analysis.min_observations must be at least 1, got %d", c.Analysis.MinObservations)
	}
	if c.Sizing.MinPool < 1 || c.Sizing.MaxPool < c.Sizing.MinPool {
		return fmt.Errorf("sizing pool bounds invalid: min=%d max=%d", c.Sizing.MinPool, c.Sizing.MaxPool)
	}
	if c.Sizing.ItemsPerAgent <= 0 {
		return fmt.Errorf("sizing.items_per_agent must be positive, got %g", c.Sizing.ItemsPerAgent)
	}
	if c.Histories.CycleCap < 1 || c.Histories.DirectiveCap < 1 || c.Histories.PredictionCap < 1 || c.Histories.SeriesCap < 1 {
		return fmt.Errorf("history caps must all be at least 1")
	}
	return nil
}

// EffectiveWindow returns the analysis window, defaulting to the cycle
// interval.
func (c *Config) EffectiveWindow() time.Duration {
	if c.Engine.Window > 0 {
		return c.Engine.Window
	}
	return c.Engine.CycleInterval
}
