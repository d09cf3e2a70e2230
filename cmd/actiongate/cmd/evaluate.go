package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/Action-Gate/actiongate/internal/adapter/outbound/memory"
	"github.com/Action-Gate/actiongate/internal/adapter/outbound/sqlite"
	"github.com/Action-Gate/actiongate/internal/config"
	"github.com/Action-Gate/actiongate/internal/domain/verify"
	"github.com/Action-Gate/actiongate/internal/observe"
	"github.com/Action-Gate/actiongate/internal/service"
)

var (
	evaluateRulesFile   string
	evaluateContextFile string
	evaluateRecord      bool
	evaluateTrace       bool
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate a rule set against an action context",
	Long: `Evaluate every rule in a rule set against an action context and print
one verdict per rule plus the aggregate decision.

The context file is JSON:

  {
    "sender": "0x1234...",
    "timestamp": 1756100000000,
    "value": "500000000000000000",
    "data": {"action": "transfer", "balance": "2000000000000000000"}
  }

By default the evaluation is read-only. With --record, an allowed action is
committed into the state store so rate limits and cooldowns advance.`,
	RunE: runEvaluate,
}

func init() {
	evaluateCmd.Flags().StringVar(&evaluateRulesFile, "rules", "", "rule set YAML file (overrides config rule_set)")
	evaluateCmd.Flags().StringVar(&evaluateContextFile, "context", "", "action context JSON file (required)")
	evaluateCmd.Flags().BoolVar(&evaluateRecord, "record", false, "commit the action into state when allowed")
	evaluateCmd.Flags().BoolVar(&evaluateTrace, "trace", false, "print evaluation spans to stderr")
	_ = evaluateCmd.MarkFlagRequired("context")
	rootCmd.AddCommand(evaluateCmd)
}

// verdictOutput is the JSON shape printed per evaluation.
type verdictOutput struct {
	Allowed bool            `json:"allowed"`
	Reason  string          `json:"reason,omitempty"`
	Results []verify.Result `json:"results"`
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := setupLogger(cfg)

	if evaluateTrace {
		shutdown, err := observe.SetupTracing(os.Stderr, "actiongate")
		if err != nil {
			return err
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				logger.Warn("trace shutdown failed", "error", err)
			}
		}()
	}

	rulesPath := evaluateRulesFile
	if rulesPath == "" {
		rulesPath = cfg.RuleSet
	}
	if rulesPath == "" {
		return fmt.Errorf("no rule set: pass --rules or set rule_set in config")
	}
	rules, err := service.LoadRuleSet(rulesPath)
	if err != nil {
		return err
	}

	raw, err := os.ReadFile(evaluateContextFile)
	if err != nil {
		return fmt.Errorf("read context: %w", err)
	}
	var vctx verify.Context
	if err := json.Unmarshal(raw, &vctx); err != nil {
		return fmt.Errorf("parse context: %w", err)
	}
	if !vctx.Sender.Valid() {
		return fmt.Errorf("context sender %q is not a valid address", vctx.Sender)
	}

	state, closeState, err := openStateStore(cfg, logger)
	if err != nil {
		return err
	}
	defer closeState()

	metrics := observe.NewMetrics(prometheus.NewRegistry())
	svc, err := service.NewEvaluationService(state, logger, service.WithMetrics(metrics))
	if err != nil {
		return err
	}

	var out service.Outcome
	if evaluateRecord {
		out, err = svc.AuthorizeAndExecute(cmd.Context(), rules, vctx, nil)
		if err != nil {
			return err
		}
	} else {
		out = svc.Authorize(cmd.Context(), rules, vctx)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(verdictOutput{Allowed: out.Allowed, Reason: out.Reason, Results: out.Results}); err != nil {
		return err
	}
	if !out.Allowed {
		os.Exit(1)
	}
	return nil
}

// openStateStore opens the configured state backend. The returned close
// function is safe to call once.
func openStateStore(cfg *config.Config, logger *slog.Logger) (verify.StateStore, func(), error) {
	if cfg.State.Backend == "sqlite" {
		store, err := sqlite.Open(cfg.State.Path, logger)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {
			if err := store.Close(); err != nil {
				logger.Warn("state close failed", "error", err)
			}
		}, nil
	}
	store := memory.NewStateStore()
	return store, store.Stop, nil
}
