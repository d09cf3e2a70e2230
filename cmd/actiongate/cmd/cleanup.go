package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Action-Gate/actiongate/internal/adapter/outbound/sqlite"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Drop expired execution history from a state file",
	Long: `Delete execution history older than the configured retention horizon
(state.max_window) from the SQLite state file. Accumulated value and gas
totals are never touched: they only reset explicitly.`,
	RunE: runCleanup,
}

func init() {
	rootCmd.AddCommand(cleanupCmd)
}

func runCleanup(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := setupLogger(cfg)

	if cfg.State.Backend != "sqlite" {
		return fmt.Errorf("cleanup needs a durable state file: set state.backend to sqlite")
	}

	store, err := sqlite.Open(cfg.State.Path, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	before := store.Keys()
	store.Cleanup(cfg.MaxWindowDuration(), time.Now())
	after := store.Keys()

	logger.Info("state cleanup complete",
		"path", cfg.State.Path,
		"window", cfg.State.MaxWindow,
		"keys_before", before,
		"keys_after", after)
	return nil
}
