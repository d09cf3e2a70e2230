package limits

import (
	"sort"
	"time"

	"github.com/Action-Gate/actiongate/internal/domain/rule"
	"github.com/Action-Gate/actiongate/internal/domain/verify"
)

// ProgressiveChecker grows the allowed execution rate with the actor's level.
// Levels are incremented externally as actions succeed (the store owner calls
// IncrementLevel); this checker only reads them.
type ProgressiveChecker struct{}

func (ProgressiveChecker) Check(r rule.Rule, ctx verify.Context, state verify.StateStore) verify.Result {
	cfg, ok := r.Config.(*rule.ProgressiveConfig)
	if !ok {
		return misconfigured(r.Kind)
	}
	if state == nil {
		return noState(r.Kind)
	}
	key := ProgressiveKey(ctx.Sender)
	level := state.Level(key)
	ceiling := progressiveCeiling(cfg, level)
	if ceiling <= 0 {
		return verify.Fail(r.Kind, "no executions allowed at level %d", level).
			WithData(map[string]any{"level": level})
	}
	window := time.Duration(cfg.WindowSeconds) * time.Second
	count := state.ExecutionCount(key, window, ctx.Time())
	if count >= ceiling {
		return verify.Fail(r.Kind, "level %d allows %d executions in %ds, already used %d",
			level, ceiling, cfg.WindowSeconds, count).
			WithData(map[string]any{"level": level, "ceiling": ceiling, "count": count})
	}
	return verify.Pass(r.Kind)
}

func (ProgressiveChecker) Record(r rule.Rule, ctx verify.Context, state verify.StateStore) {
	if _, ok := r.Config.(*rule.ProgressiveConfig); !ok || state == nil {
		return
	}
	state.RecordExecution(ProgressiveKey(ctx.Sender), ctx.Time())
}

// progressiveCeiling computes the allowed execution count for a level.
// Step table: the first step whose requirement exceeds the level applies.
// Linear form: min(initial + level*rate, max), uncapped when max is zero.
func progressiveCeiling(cfg *rule.ProgressiveConfig, level int) int {
	if len(cfg.Steps) > 0 {
		for _, step := range cfg.Steps {
			if step.ExecutionsRequired > level {
				return step.Limit
			}
		}
		// Past every step: the last step's limit holds.
		return cfg.Steps[len(cfg.Steps)-1].Limit
	}
	ceiling := cfg.InitialLimit + level*cfg.IncreaseRate
	if cfg.MaxLimit > 0 && ceiling > cfg.MaxLimit {
		return cfg.MaxLimit
	}
	return ceiling
}

// ReputationChecker selects an execution ceiling by the actor's reputation
// tier, then applies the sliding-window count against it.
type ReputationChecker struct{}

func (ReputationChecker) Check(r rule.Rule, ctx verify.Context, state verify.StateStore) verify.Result {
	cfg, ok := r.Config.(*rule.ReputationConfig)
	if !ok {
		return misconfigured(r.Kind)
	}
	if state == nil {
		return noState(r.Kind)
	}
	reputation := ctx.Reputation()
	ceiling := reputationCeiling(cfg, reputation)
	if ceiling <= 0 {
		return verify.Fail(r.Kind, "reputation %d grants no executions", reputation).
			WithData(map[string]any{"reputation": reputation})
	}
	key := ReputationKey(ctx.Sender)
	window := time.Duration(cfg.WindowSeconds) * time.Second
	count := state.ExecutionCount(key, window, ctx.Time())
	if count >= ceiling {
		return verify.Fail(r.Kind, "reputation %d allows %d executions in %ds, already used %d",
			reputation, ceiling, cfg.WindowSeconds, count).
			WithData(map[string]any{"reputation": reputation, "ceiling": ceiling, "count": count})
	}
	return verify.Pass(r.Kind)
}

func (ReputationChecker) Record(r rule.Rule, ctx verify.Context, state verify.StateStore) {
	if _, ok := r.Config.(*rule.ReputationConfig); !ok || state == nil {
		return
	}
	state.RecordExecution(ReputationKey(ctx.Sender), ctx.Time())
}

// reputationCeiling scans tiers sorted descending by minReputation and picks
// the first tier the reputation meets, falling back to baseLimit and capping
// at maxLimit.
func reputationCeiling(cfg *rule.ReputationConfig, reputation int64) int {
	tiers := make([]rule.ReputationTier, len(cfg.Tiers))
	copy(tiers, cfg.Tiers)
	sort.Slice(tiers, func(i, j int) bool {
		return tiers[i].MinReputation > tiers[j].MinReputation
	})

	ceiling := cfg.BaseLimit
	for _, tier := range tiers {
		if reputation >= tier.MinReputation {
			ceiling = tier.Limit
			break
		}
	}
	if cfg.MaxLimit > 0 && ceiling > cfg.MaxLimit {
		ceiling = cfg.MaxLimit
	}
	return ceiling
}

// Compile-time interface verification.
var (
	_ verify.Checker  = ProgressiveChecker{}
	_ verify.Recorder = ProgressiveChecker{}
	_ verify.Checker  = ReputationChecker{}
	_ verify.Recorder = ReputationChecker{}
)
