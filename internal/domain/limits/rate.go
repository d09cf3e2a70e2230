package limits

import (
	"time"

	"github.com/Action-Gate/actiongate/internal/domain/rule"
	"github.com/Action-Gate/actiongate/internal/domain/verify"
)

// PerAddressChecker limits executions per address over a sliding window.
type PerAddressChecker struct{}

func (PerAddressChecker) Check(r rule.Rule, ctx verify.Context, state verify.StateStore) verify.Result {
	cfg, ok := r.Config.(*rule.PerAddressConfig)
	if !ok {
		return misconfigured(r.Kind)
	}
	if state == nil {
		return noState(r.Kind)
	}
	addr := scopeAddress(cfg.AddressType, ctx)
	if addr == "" {
		// An origin/recipient-scoped limit does not apply to an action with
		// no such participant; a missing sender cannot be attributed at all.
		if cfg.AddressType == rule.AddressOrigin || cfg.AddressType == rule.AddressRecipient {
			return verify.Pass(r.Kind)
		}
		return verify.Fail(r.Kind, "no sender address to scope the limit on")
	}
	key := PerAddressKey(cfg.AddressType, addr)
	window := time.Duration(cfg.WindowSeconds) * time.Second
	count := state.ExecutionCount(key, window, ctx.Time())
	if count >= cfg.MaxExecutions {
		return verify.Fail(r.Kind, "address %s exceeded %d executions in %ds",
			addr, cfg.MaxExecutions, cfg.WindowSeconds).
			WithData(map[string]any{"count": count, "max": cfg.MaxExecutions, "windowSeconds": cfg.WindowSeconds})
	}
	return verify.Pass(r.Kind)
}

func (PerAddressChecker) Record(r rule.Rule, ctx verify.Context, state verify.StateStore) {
	cfg, ok := r.Config.(*rule.PerAddressConfig)
	if !ok || state == nil {
		return
	}
	addr := scopeAddress(cfg.AddressType, ctx)
	if addr == "" {
		return
	}
	state.RecordExecution(PerAddressKey(cfg.AddressType, addr), ctx.Time())
}

// PerFunctionChecker limits executions of one named function. Actions calling
// a different function pass without consuming the budget.
type PerFunctionChecker struct{}

func (PerFunctionChecker) Check(r rule.Rule, ctx verify.Context, state verify.StateStore) verify.Result {
	cfg, ok := r.Config.(*rule.PerFunctionConfig)
	if !ok {
		return misconfigured(r.Kind)
	}
	if ctx.Function() != cfg.FunctionName {
		return verify.Pass(r.Kind)
	}
	if state == nil {
		return noState(r.Kind)
	}
	window := time.Duration(cfg.WindowSeconds) * time.Second
	count := state.ExecutionCount(PerFunctionKey(cfg.FunctionName), window, ctx.Time())
	if count >= cfg.MaxExecutions {
		return verify.Fail(r.Kind, "function %s exceeded %d executions in %ds",
			cfg.FunctionName, cfg.MaxExecutions, cfg.WindowSeconds).
			WithData(map[string]any{"count": count, "max": cfg.MaxExecutions, "function": cfg.FunctionName})
	}
	return verify.Pass(r.Kind)
}

func (PerFunctionChecker) Record(r rule.Rule, ctx verify.Context, state verify.StateStore) {
	cfg, ok := r.Config.(*rule.PerFunctionConfig)
	if !ok || state == nil || ctx.Function() != cfg.FunctionName {
		return
	}
	state.RecordExecution(PerFunctionKey(cfg.FunctionName), ctx.Time())
}

// GlobalRateChecker limits all executions regardless of sender.
type GlobalRateChecker struct{}

func (GlobalRateChecker) Check(r rule.Rule, ctx verify.Context, state verify.StateStore) verify.Result {
	cfg, ok := r.Config.(*rule.GlobalRateConfig)
	if !ok {
		return misconfigured(r.Kind)
	}
	if state == nil {
		return noState(r.Kind)
	}
	window := time.Duration(cfg.WindowSeconds) * time.Second
	count := state.ExecutionCount(GlobalKey, window, ctx.Time())
	if count >= cfg.MaxExecutions {
		return verify.Fail(r.Kind, "global limit of %d executions in %ds exceeded",
			cfg.MaxExecutions, cfg.WindowSeconds).
			WithData(map[string]any{"count": count, "max": cfg.MaxExecutions})
	}
	return verify.Pass(r.Kind)
}

func (GlobalRateChecker) Record(r rule.Rule, ctx verify.Context, state verify.StateStore) {
	if _, ok := r.Config.(*rule.GlobalRateConfig); !ok || state == nil {
		return
	}
	state.RecordExecution(GlobalKey, ctx.Time())
}

// DailyLimitChecker caps a sender's executions over a sliding 24-hour window.
type DailyLimitChecker struct{}

func (DailyLimitChecker) Check(r rule.Rule, ctx verify.Context, state verify.StateStore) verify.Result {
	cfg, ok := r.Config.(*rule.DailyLimitConfig)
	if !ok {
		return misconfigured(r.Kind)
	}
	if state == nil {
		return noState(r.Kind)
	}
	count := state.ExecutionCount(DailyKey(ctx.Sender), 24*time.Hour, ctx.Time())
	if uint64(count) >= cfg.Limit {
		return verify.Fail(r.Kind, "daily limit of %d executions exceeded", cfg.Limit).
			WithData(map[string]any{"count": count, "limit": cfg.Limit})
	}
	return verify.Pass(r.Kind)
}

func (DailyLimitChecker) Record(r rule.Rule, ctx verify.Context, state verify.StateStore) {
	if _, ok := r.Config.(*rule.DailyLimitConfig); !ok || state == nil {
		return
	}
	state.RecordExecution(DailyKey(ctx.Sender), ctx.Time())
}

// Compile-time interface verification.
var (
	_ verify.Checker  = PerAddressChecker{}
	_ verify.Recorder = PerAddressChecker{}
	_ verify.Checker  = PerFunctionChecker{}
	_ verify.Recorder = PerFunctionChecker{}
	_ verify.Checker  = GlobalRateChecker{}
	_ verify.Recorder = GlobalRateChecker{}
	_ verify.Checker  = DailyLimitChecker{}
	_ verify.Recorder = DailyLimitChecker{}
)
