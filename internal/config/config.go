// Package config handles global configuration loading using viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"firestige.xyz/satlink/internal/ground"
	"firestige.xyz/satlink/internal/link"
	"firestige.xyz/satlink/internal/log"
	"firestige.xyz/satlink/internal/sat"
)

// Config is the top-level static configuration. Maps to the `satlink:` root
// key in YAML; env vars use the SATLINK_ prefix via the key replacer
// (e.g. SATLINK_LINK_LOSS_PROB).
type Config struct {
	// Duration is the session length.
	Duration time.Duration `mapstructure:"duration"`
	// Seed governs every RNG of the run: the link impairments, the
	// satellite's physics walk and the ground schedule randomness.
	Seed uint64 `mapstructure:"seed"`

	Link      link.Config   `mapstructure:"link"`
	ARQ       ARQConfig     `mapstructure:"arq"`
	Satellite sat.Config    `mapstructure:"satellite"`
	Ground    ground.Config `mapstructure:"ground"`
	Log       log.Config    `mapstructure:"log"`
	Metrics   MetricsConfig `mapstructure:"metrics"`
}

// ARQConfig contains the stop-and-wait parameters shared by both stations.
type ARQConfig struct {
	AckTimeoutMS int `mapstructure:"ack_timeout_ms"`
	MaxRetries   int `mapstructure:"max_retries"`
}

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
	Path    string `mapstructure:"path"`
}

// configRoot is the top-level wrapper matching the YAML structure `satlink: ...`.
type configRoot struct {
	Satlink Config `mapstructure:"satlink"`
}

// Load loads configuration from file. An empty path yields the defaults
// (env overrides still apply).
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// The `satlink.` key prefix maps to SATLINK_ env vars via the replacer
	// (key "satlink.link.loss_prob" → env "SATLINK_LINK_LOSS_PROB").
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	var root configRoot
	if err := v.Unmarshal(&root); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg := root.Satlink

	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default values for configuration.
// All keys use the "satlink." prefix to match the YAML root wrapper.
func setDefaults(v *viper.Viper) {
	v.SetDefault("satlink.duration", "20s")
	v.SetDefault("satlink.seed", 42)

	// Link defaults
	v.SetDefault("satlink.link.latency_ms", 100)
	v.SetDefault("satlink.link.jitter_ms", 30)
	v.SetDefault("satlink.link.loss_prob", 0.05)

	// ARQ defaults
	v.SetDefault("satlink.arq.ack_timeout_ms", 150)
	v.SetDefault("satlink.arq.max_retries", 3)

	// Station defaults
	v.SetDefault("satlink.satellite.telemetry_rate_hz", 5.0)
	v.SetDefault("satlink.ground.telemetry_csv", "telemetry.csv")

	// Log defaults
	v.SetDefault("satlink.log.level", "info")
	v.SetDefault("satlink.log.pattern", "%time [%level] %msg %field%n")
	v.SetDefault("satlink.log.time", "2006-01-02 15:04:05.000")
	v.SetDefault("satlink.log.file.enabled", false)
	v.SetDefault("satlink.log.file.path", "satlink.log")
	v.SetDefault("satlink.log.file.max_size_mb", 100)
	v.SetDefault("satlink.log.file.max_age_days", 30)
	v.SetDefault("satlink.log.file.max_backups", 5)
	v.SetDefault("satlink.log.file.compress", true)

	// Metrics defaults
	v.SetDefault("satlink.metrics.enabled", false)
	v.SetDefault("satlink.metrics.listen", ":9091")
	v.SetDefault("satlink.metrics.path", "/metrics")
}

// ValidateAndApplyDefaults validates configuration and propagates the
// session seed into the per-subsystem configs.
func (cfg *Config) ValidateAndApplyDefaults() error {
	if cfg.Duration <= 0 {
		return fmt.Errorf("duration must be > 0, got %s", cfg.Duration)
	}
	if cfg.Link.LatencyMS < 0 {
		return fmt.Errorf("link.latency_ms must be >= 0, got %d", cfg.Link.LatencyMS)
	}
	if cfg.Link.JitterMS < 0 {
		return fmt.Errorf("link.jitter_ms must be >= 0, got %d", cfg.Link.JitterMS)
	}
	if cfg.Link.LossProb < 0 || cfg.Link.LossProb > 1 {
		return fmt.Errorf("link.loss_prob must be in [0,1], got %g", cfg.Link.LossProb)
	}
	if cfg.ARQ.AckTimeoutMS <= 0 {
		return fmt.Errorf("arq.ack_timeout_ms must be > 0, got %d", cfg.ARQ.AckTimeoutMS)
	}
	if cfg.ARQ.MaxRetries < 0 {
		return fmt.Errorf("arq.max_retries must be >= 0, got %d", cfg.ARQ.MaxRetries)
	}
	if cfg.Satellite.TelemetryRateHz <= 0 {
		return fmt.Errorf("satellite.telemetry_rate_hz must be > 0, got %g", cfg.Satellite.TelemetryRateHz)
	}
	if cfg.Ground.TelemetryCSV == "" {
		return fmt.Errorf("ground.telemetry_csv must not be empty")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "warning": true, "error": true}
	if !validLevels[cfg.Log.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug/info/warn/error)", cfg.Log.Level)
	}

	if cfg.Metrics.Enabled && cfg.Metrics.Listen == "" {
		return fmt.Errorf("metrics.listen is required when metrics.enabled=true")
	}

	// One seed governs the whole run.
	cfg.Link.Seed = cfg.Seed
	cfg.Satellite.Seed = cfg.Seed
	cfg.Ground.Seed = cfg.Seed

	return nil
}
