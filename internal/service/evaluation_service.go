// Package service contains application services.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	celeval "github.com/Action-Gate/actiongate/internal/adapter/outbound/cel"
	"github.com/Action-Gate/actiongate/internal/domain/acl"
	"github.com/Action-Gate/actiongate/internal/domain/authz"
	"github.com/Action-Gate/actiongate/internal/domain/limits"
	"github.com/Action-Gate/actiongate/internal/domain/rule"
	"github.com/Action-Gate/actiongate/internal/domain/timing"
	"github.com/Action-Gate/actiongate/internal/domain/verify"
	"github.com/Action-Gate/actiongate/internal/observe"
)

// lockStripes is the size of the per-sender lock table. Locks serialize
// check-then-record pairs for one sender; stripes bound the table.
const lockStripes = 64

// Outcome aggregates the verdicts for one rule set against one context.
type Outcome struct {
	// Allowed is true when every rule passed.
	Allowed bool
	// Results holds one verdict per rule, in rule order.
	Results []verify.Result
	// Reason is the first failing verdict's message, empty when allowed.
	Reason string
}

// EvaluationService owns the dispatcher, the state store, and the
// observability plumbing for rule evaluation.
//
// Evaluate is read-only; Record is the explicit post-execution commit. Two
// concurrent evaluations for one sender can both pass before either records
// (check-then-act), so callers that execute actions concurrently must use
// AuthorizeAndExecute, which holds the sender's lock across the whole
// check+act+record region.
type EvaluationService struct {
	dispatcher *verify.Dispatcher
	state      verify.StateStore
	logger     *slog.Logger
	metrics    *observe.Metrics
	tracer     trace.Tracer
	locks      [lockStripes]sync.Mutex
}

// Option configures an EvaluationService.
type Option func(*EvaluationService)

// WithMetrics attaches Prometheus metrics.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *EvaluationService) { s.metrics = m }
}

// WithDispatcher replaces the default checker registry.
func WithDispatcher(d *verify.Dispatcher) Option {
	return func(s *EvaluationService) { s.dispatcher = d }
}

// NewEvaluationService creates a service with every standard checker
// registered. The state store is the caller's: independent sessions pass
// independent stores and never interfere.
func NewEvaluationService(state verify.StateStore, logger *slog.Logger, opts ...Option) (*EvaluationService, error) {
	dispatcher, err := DefaultDispatcher()
	if err != nil {
		return nil, err
	}

	s := &EvaluationService{
		dispatcher: dispatcher,
		state:      state,
		logger:     logger,
		tracer:     otel.Tracer("github.com/Action-Gate/actiongate/internal/service"),
	}
	for _, opt := range opts {
		opt(s)
	}

	logger.Info("evaluation service initialized",
		"checkers", len(s.dispatcher.Kinds()))
	return s, nil
}

// DefaultDispatcher returns a dispatcher with the standard checker families
// registered: authorization, timing, limits, lists, and the CEL expression
// checker. Unregistered kinds (custom, unknown) fail closed.
func DefaultDispatcher() (*verify.Dispatcher, error) {
	evaluator, err := celeval.NewEvaluator()
	if err != nil {
		return nil, fmt.Errorf("failed to create expression evaluator: %w", err)
	}

	d := verify.NewDispatcher()
	d.Register(rule.KindMultiSig, authz.MultiSigChecker{})

	d.Register(rule.KindCooldown, timing.CooldownChecker{})
	d.Register(rule.KindTimeWindow, timing.TimeWindowChecker{})
	d.Register(rule.KindSchedule, timing.ScheduleChecker{})
	d.Register(rule.KindBlockDelay, timing.BlockDelayChecker{})
	d.Register(rule.KindEpoch, timing.EpochChecker{})
	d.Register(rule.KindEventTrigger, timing.EventTriggerChecker{})

	d.Register(rule.KindPerAddress, limits.PerAddressChecker{})
	d.Register(rule.KindPerFunction, limits.PerFunctionChecker{})
	d.Register(rule.KindGlobalRate, limits.GlobalRateChecker{})
	d.Register(rule.KindValueLimit, limits.ValueLimitChecker{})
	d.Register(rule.KindGasLimit, limits.GasLimitChecker{})
	d.Register(rule.KindDailyLimit, limits.DailyLimitChecker{})
	d.Register(rule.KindMaxSpend, limits.MaxSpendChecker{})
	d.Register(rule.KindMaxPerTx, limits.MaxPerTxChecker{})
	d.Register(rule.KindRequireBalance, limits.RequireBalanceChecker{})
	d.Register(rule.KindProgressive, limits.ProgressiveChecker{})
	d.Register(rule.KindReputation, limits.ReputationChecker{})

	d.Register(rule.KindActionWhitelist, acl.ActionWhitelistChecker{})
	d.Register(rule.KindActionBlacklist, acl.ActionBlacklistChecker{})
	d.Register(rule.KindTargetWhitelist, acl.TargetWhitelistChecker{})
	d.Register(rule.KindTargetBlacklist, acl.TargetBlacklistChecker{})

	d.Register(rule.KindRequirePayment, limits.RequirePaymentChecker{})
	d.Register(rule.KindExpression, evaluator)

	return d, nil
}

// Evaluate fans every rule out to its checker and returns one verdict per
// rule. Read-only: no state is consumed.
func (s *EvaluationService) Evaluate(ctx context.Context, rules []rule.Rule, vctx verify.Context) []verify.Result {
	_, span := s.tracer.Start(ctx, "policy.evaluate",
		trace.WithAttributes(
			attribute.Int("rules", len(rules)),
			attribute.String("sender", string(vctx.Sender.Lower())),
		))
	defer span.End()

	start := time.Now()
	results := s.dispatcher.EvaluateAll(rules, vctx, s.state)

	allowed := true
	for _, res := range results {
		if !res.Passed {
			allowed = false
		}
		if s.metrics != nil {
			outcome := "pass"
			if !res.Passed {
				outcome = "deny"
			}
			s.metrics.EvaluationsTotal.WithLabelValues(res.RuleKind, outcome).Inc()
		}
	}
	if s.metrics != nil {
		outcome := "allow"
		if !allowed {
			outcome = "deny"
		}
		s.metrics.EvaluationDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	}
	span.SetAttributes(attribute.Bool("allowed", allowed))

	return results
}

// Authorize evaluates the rule set and aggregates: allow iff every rule
// passed. The first failing verdict's message becomes the denial reason.
func (s *EvaluationService) Authorize(ctx context.Context, rules []rule.Rule, vctx verify.Context) Outcome {
	results := s.Evaluate(ctx, rules, vctx)
	allowed, failed := verify.AllPassed(results)
	out := Outcome{Allowed: allowed, Results: results}
	if failed != nil {
		out.Reason = failed.Message
		s.logger.Debug("action denied",
			"sender", string(vctx.Sender),
			"rule_kind", failed.RuleKind,
			"reason", failed.Message)
	}
	return out
}

// Record commits an executed action into the state store for every stateful
// rule. Call only after the guarded action actually ran.
func (s *EvaluationService) Record(rules []rule.Rule, vctx verify.Context) {
	s.dispatcher.RecordAll(rules, vctx, s.state)
	if s.metrics != nil {
		s.metrics.StateKeys.Set(float64(s.state.Keys()))
	}
}

// AuthorizeAndExecute holds the sender's lock across check, action, and
// record, closing the check-then-act race for concurrent callers. The action
// runs only when every rule passes; state is recorded only when the action
// returns nil.
func (s *EvaluationService) AuthorizeAndExecute(ctx context.Context, rules []rule.Rule, vctx verify.Context, action func() error) (Outcome, error) {
	lock := &s.locks[senderStripe(vctx.Sender)]
	lock.Lock()
	defer lock.Unlock()

	out := s.Authorize(ctx, rules, vctx)
	if !out.Allowed {
		return out, nil
	}
	if action != nil {
		if err := action(); err != nil {
			return out, fmt.Errorf("guarded action failed: %w", err)
		}
	}
	s.Record(rules, vctx)
	return out, nil
}

// Cleanup drops execution history older than the longest window the given
// rules use. Owners call it periodically to bound state growth.
func (s *EvaluationService) Cleanup(rules []rule.Rule, now time.Time) {
	window := LongestWindow(rules)
	if window <= 0 {
		return
	}
	s.state.Cleanup(window, now)
	if s.metrics != nil {
		s.metrics.StateKeys.Set(float64(s.state.Keys()))
	}
}

// senderStripe maps a sender to a lock stripe.
func senderStripe(sender rule.Address) uint64 {
	return xxhash.Sum64String(string(sender.Lower())) % lockStripes
}

// LongestWindow returns the longest sliding window any rule in the set uses.
// This is the safe cleanup horizon: anything older can no longer influence a
// verdict.
func LongestWindow(rules []rule.Rule) time.Duration {
	var longest time.Duration
	consider := func(seconds int64) {
		if d := time.Duration(seconds) * time.Second; d > longest {
			longest = d
		}
	}
	for _, r := range rules {
		switch cfg := r.Config.(type) {
		case *rule.PerAddressConfig:
			consider(cfg.WindowSeconds)
		case *rule.PerFunctionConfig:
			consider(cfg.WindowSeconds)
		case *rule.GlobalRateConfig:
			consider(cfg.WindowSeconds)
		case *rule.ProgressiveConfig:
			consider(cfg.WindowSeconds)
		case *rule.ReputationConfig:
			consider(cfg.WindowSeconds)
		case *rule.DailyLimitConfig:
			consider(int64(24 * 60 * 60))
		case *rule.CooldownConfig:
			consider(cfg.CooldownSeconds)
		}
	}
	return longest
}
