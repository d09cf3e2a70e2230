package config

import (
	"testing"
	"time"
)

func TestSetDefaults(t *testing.T) {
	t.Parallel()

	var cfg Config
	cfg.SetDefaults()

	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "info")
	}
	if cfg.Log.Format != "text" {
		t.Errorf("Log.Format = %q, want %q", cfg.Log.Format, "text")
	}
	if cfg.State.Backend != "memory" {
		t.Errorf("State.Backend = %q, want %q", cfg.State.Backend, "memory")
	}
	if cfg.State.CleanupInterval != "5m" {
		t.Errorf("State.CleanupInterval = %q, want %q", cfg.State.CleanupInterval, "5m")
	}
	if cfg.State.MaxWindow != "24h" {
		t.Errorf("State.MaxWindow = %q, want %q", cfg.State.MaxWindow, "24h")
	}
}

func TestSetDefaultsKeepsExplicitValues(t *testing.T) {
	t.Parallel()

	cfg := Config{
		Log:   LogConfig{Level: "error", Format: "json"},
		State: StateConfig{Backend: "sqlite", Path: "/tmp/state.db"},
	}
	cfg.SetDefaults()

	if cfg.Log.Level != "error" || cfg.Log.Format != "json" {
		t.Errorf("log config overwritten: %+v", cfg.Log)
	}
	if cfg.State.Backend != "sqlite" {
		t.Errorf("State.Backend = %q, want %q", cfg.State.Backend, "sqlite")
	}
}

func TestSetDevDefaults(t *testing.T) {
	t.Parallel()

	cfg := Config{DevMode: true}
	cfg.SetDevDefaults()
	if cfg.Log.Level != "debug" {
		t.Errorf("DevMode Log.Level = %q, want %q", cfg.Log.Level, "debug")
	}

	// Explicit level wins over the dev default.
	cfg = Config{DevMode: true, Log: LogConfig{Level: "warn"}}
	cfg.SetDevDefaults()
	if cfg.Log.Level != "warn" {
		t.Errorf("explicit Log.Level overwritten: %q", cfg.Log.Level)
	}

	// No-op outside dev mode.
	cfg = Config{}
	cfg.SetDevDefaults()
	if cfg.Log.Level != "" {
		t.Errorf("non-dev Log.Level = %q, want empty", cfg.Log.Level)
	}
}

func TestDurationAccessors(t *testing.T) {
	t.Parallel()

	cfg := Config{State: StateConfig{CleanupInterval: "90s", MaxWindow: "48h"}}
	if got := cfg.CleanupIntervalDuration(); got != 90*time.Second {
		t.Errorf("CleanupIntervalDuration() = %v, want 90s", got)
	}
	if got := cfg.MaxWindowDuration(); got != 48*time.Hour {
		t.Errorf("MaxWindowDuration() = %v, want 48h", got)
	}

	// Unset or malformed values fall back.
	var zero Config
	if got := zero.CleanupIntervalDuration(); got != 5*time.Minute {
		t.Errorf("fallback CleanupIntervalDuration() = %v, want 5m", got)
	}
	if got := zero.MaxWindowDuration(); got != 24*time.Hour {
		t.Errorf("fallback MaxWindowDuration() = %v, want 24h", got)
	}
}
