// Package config provides configuration types for the actiongate CLI and
// embedding services. The engine itself is configuration-free; this covers
// the surrounding concerns: logging, state persistence, and observability.
package config

import "time"

// Config is the top-level actiongate configuration.
type Config struct {
	// Log configures structured logging.
	Log LogConfig `yaml:"log" mapstructure:"log"`

	// State configures where evaluation state lives.
	State StateConfig `yaml:"state" mapstructure:"state"`

	// RuleSet is the path to the YAML rule-set file.
	RuleSet string `yaml:"rule_set" mapstructure:"rule_set"`

	// Tracing enables span output for evaluations.
	Tracing TracingConfig `yaml:"tracing" mapstructure:"tracing"`

	// DevMode enables development features (verbose logging, etc).
	DevMode bool `yaml:"dev_mode" mapstructure:"dev_mode"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	// Level sets the minimum log level.
	// Valid values: "debug", "info", "warn", "error".
	// Defaults to "info" if empty. DevMode=true overrides to "debug".
	Level string `yaml:"level" mapstructure:"level" validate:"omitempty,oneof=debug info warn warning error"`

	// Format selects the handler: "text" or "json".
	// Defaults to "text".
	Format string `yaml:"format" mapstructure:"format" validate:"omitempty,oneof=text json"`
}

// StateConfig configures the evaluation state store.
type StateConfig struct {
	// Backend selects the store: "memory" (per-process, lost on exit) or
	// "sqlite" (durable file).
	Backend string `yaml:"backend" mapstructure:"backend" validate:"omitempty,oneof=memory sqlite"`

	// Path is the SQLite database file. Required when Backend is "sqlite".
	Path string `yaml:"path" mapstructure:"path"`

	// CleanupInterval is how often expired execution history is dropped
	// (e.g., "5m"). Defaults to "5m".
	CleanupInterval string `yaml:"cleanup_interval" mapstructure:"cleanup_interval" validate:"omitempty,duration"`

	// MaxWindow is the retention horizon for execution history (e.g., "24h").
	// Must cover the longest sliding window any rule uses. Defaults to "24h".
	MaxWindow string `yaml:"max_window" mapstructure:"max_window" validate:"omitempty,duration"`
}

// TracingConfig configures span output.
type TracingConfig struct {
	// Enabled turns stdout span export on.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
}

// SetDevDefaults applies permissive defaults for development mode.
// Applied BEFORE validation so required fields are satisfied.
func (c *Config) SetDevDefaults() {
	if !c.DevMode {
		return
	}
	if c.Log.Level == "" {
		c.Log.Level = "debug"
	}
}

// SetDefaults applies sensible default values to the configuration.
func (c *Config) SetDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.State.Backend == "" {
		c.State.Backend = "memory"
	}
	if c.State.CleanupInterval == "" {
		c.State.CleanupInterval = "5m"
	}
	if c.State.MaxWindow == "" {
		c.State.MaxWindow = "24h"
	}
}

// CleanupIntervalDuration returns the parsed cleanup interval. Call after
// Validate; malformed values fall back to 5 minutes.
func (c *Config) CleanupIntervalDuration() time.Duration {
	d, err := time.ParseDuration(c.State.CleanupInterval)
	if err != nil || d <= 0 {
		return 5 * time.Minute
	}
	return d
}

// MaxWindowDuration returns the parsed retention horizon. Call after
// Validate; malformed values fall back to 24 hours.
func (c *Config) MaxWindowDuration() time.Duration {
	d, err := time.ParseDuration(c.State.MaxWindow)
	if err != nil || d <= 0 {
		return 24 * time.Hour
	}
	return d
}
