// Package cmd provides the CLI commands for actiongate.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Action-Gate/actiongate/internal/config"
)

var cfgFile string
var devMode bool

var rootCmd = &cobra.Command{
	Use:   "actiongate",
	Short: "ActionGate - policy authorization engine",
	Long: `ActionGate evaluates authorization rules against action contexts.

A rule set (multi-sig quorums, cooldowns, rate limits, spend ceilings,
whitelists, CEL expressions) guards actions: an action is allowed only when
every rule passes. Evaluation state lives in memory or in a SQLite file.

Quick start:
  1. Create a rule set: rules.yaml
  2. Evaluate:  actiongate evaluate --rules rules.yaml --context ctx.json

Configuration:
  Config is loaded from actiongate.yaml in the current directory,
  $HOME/.actiongate/, or /etc/actiongate/.

  Environment variables can override config values with the ACTIONGATE_ prefix.
  Example: ACTIONGATE_STATE_BACKEND=sqlite

Commands:
  evaluate    Evaluate a rule set against an action context
  encode      Serialize rules to their on-chain byte form
  decode      Deserialize on-chain rule bytes back to rules
  cleanup     Drop expired execution history from a state file
  version     Print version information`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./actiongate.yaml)")
	rootCmd.PersistentFlags().BoolVar(&devMode, "dev", false, "development mode (debug logging)")
}

func initConfig() {
	config.InitViper(cfgFile)
}

// loadConfig loads and validates the configuration, applying the --dev flag
// before dev defaults and validation run.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfigRaw()
	if err != nil {
		return nil, err
	}
	if devMode {
		cfg.DevMode = true
	}
	cfg.SetDevDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// setupLogger builds the slog logger from config. Logs go to stderr so stdout
// stays clean for command output (verdicts, hex, JSON).
func setupLogger(cfg *config.Config) *slog.Logger {
	level := parseLogLevel(cfg.Log.Level)
	if cfg.DevMode {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Log.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

// parseLogLevel converts a string log level to slog.Level.
// Returns slog.LevelInfo for unrecognized values.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
