package limits

import (
	"github.com/Action-Gate/actiongate/internal/domain/rule"
	"github.com/Action-Gate/actiongate/internal/domain/verify"
)

// ValueLimitChecker enforces an optional hard per-transaction value ceiling,
// then a cap on the accumulated total per token. The accumulator never decays;
// only an explicit store reset clears it.
type ValueLimitChecker struct{}

func (ValueLimitChecker) Check(r rule.Rule, ctx verify.Context, state verify.StateStore) verify.Result {
	cfg, ok := r.Config.(*rule.ValueLimitConfig)
	if !ok {
		return misconfigured(r.Kind)
	}
	value := ctx.ValueOrZero()

	// Per-transaction ceiling first, independent of history.
	if cfg.MaxPerTx != nil && cfg.MaxPerTx.Sign() > 0 && value.Cmp(cfg.MaxPerTx) > 0 {
		return verify.Fail(r.Kind, "value %s exceeds per-transaction ceiling %s",
			value.Text(10), cfg.MaxPerTx.Text(10)).
			WithData(map[string]any{"value": value.Text(10), "maxPerTx": cfg.MaxPerTx.Text(10)})
	}

	if state == nil {
		return noState(r.Kind)
	}
	total := state.AccumulatedValue(ValueKey(cfg.Token))
	projected := rule.AmountFromBig(&total.Int)
	projected.Add(&projected.Int, &value.Int)
	if projected.Cmp(cfg.MaxValue) > 0 {
		return verify.Fail(r.Kind, "accumulated value %s would exceed limit %s",
			projected.Text(10), cfg.MaxValue.Text(10)).
			WithData(map[string]any{
				"accumulated": total.Text(10),
				"value":       value.Text(10),
				"maxValue":    cfg.MaxValue.Text(10),
			})
	}
	return verify.Pass(r.Kind)
}

func (ValueLimitChecker) Record(r rule.Rule, ctx verify.Context, state verify.StateStore) {
	cfg, ok := r.Config.(*rule.ValueLimitConfig)
	if !ok || state == nil {
		return
	}
	state.AddValue(ValueKey(cfg.Token), ctx.ValueOrZero())
}

// GasLimitChecker enforces an optional per-transaction gas ceiling, then a cap
// on accumulated gas. Gas comes from the "estimatedGas" context fact.
type GasLimitChecker struct{}

func (GasLimitChecker) Check(r rule.Rule, ctx verify.Context, state verify.StateStore) verify.Result {
	cfg, ok := r.Config.(*rule.GasLimitConfig)
	if !ok {
		return misconfigured(r.Kind)
	}
	gas := ctx.EstimatedGas()

	if cfg.MaxGasPerTx > 0 && gas > cfg.MaxGasPerTx {
		return verify.Fail(r.Kind, "estimated gas %d exceeds per-transaction ceiling %d",
			gas, cfg.MaxGasPerTx).
			WithData(map[string]any{"estimatedGas": gas, "maxGasPerTx": cfg.MaxGasPerTx})
	}

	if state == nil {
		return noState(r.Kind)
	}
	total := state.AccumulatedGas(GasKey)
	// total+gas can wrap uint64; compare against the remaining headroom instead.
	if total > cfg.MaxGas || gas > cfg.MaxGas-total {
		return verify.Fail(r.Kind, "accumulated gas %d plus %d would exceed limit %d", total, gas, cfg.MaxGas).
			WithData(map[string]any{"accumulated": total, "estimatedGas": gas, "maxGas": cfg.MaxGas})
	}
	return verify.Pass(r.Kind)
}

func (GasLimitChecker) Record(r rule.Rule, ctx verify.Context, state verify.StateStore) {
	if _, ok := r.Config.(*rule.GasLimitConfig); !ok || state == nil {
		return
	}
	state.AddGas(GasKey, ctx.EstimatedGas())
}

// MaxSpendChecker caps a sender's accumulated spend.
type MaxSpendChecker struct{}

func (MaxSpendChecker) Check(r rule.Rule, ctx verify.Context, state verify.StateStore) verify.Result {
	cfg, ok := r.Config.(*rule.MaxSpendConfig)
	if !ok {
		return misconfigured(r.Kind)
	}
	if state == nil {
		return noState(r.Kind)
	}
	value := ctx.ValueOrZero()
	total := state.AccumulatedValue(SpendKey(ctx.Sender))
	projected := rule.AmountFromBig(&total.Int)
	projected.Add(&projected.Int, &value.Int)
	if projected.Cmp(cfg.Limit) > 0 {
		return verify.Fail(r.Kind, "spend %s would exceed limit %s",
			projected.Text(10), cfg.Limit.Text(10)).
			WithData(map[string]any{"accumulated": total.Text(10), "limit": cfg.Limit.Text(10)})
	}
	return verify.Pass(r.Kind)
}

func (MaxSpendChecker) Record(r rule.Rule, ctx verify.Context, state verify.StateStore) {
	if _, ok := r.Config.(*rule.MaxSpendConfig); !ok || state == nil {
		return
	}
	state.AddValue(SpendKey(ctx.Sender), ctx.ValueOrZero())
}

// MaxPerTxChecker caps the value of any single transaction. Stateless.
type MaxPerTxChecker struct{}

func (MaxPerTxChecker) Check(r rule.Rule, ctx verify.Context, _ verify.StateStore) verify.Result {
	cfg, ok := r.Config.(*rule.MaxPerTxConfig)
	if !ok {
		return misconfigured(r.Kind)
	}
	value := ctx.ValueOrZero()
	if value.Cmp(cfg.Limit) > 0 {
		return verify.Fail(r.Kind, "value %s exceeds per-transaction limit %s",
			value.Text(10), cfg.Limit.Text(10)).
			WithData(map[string]any{"value": value.Text(10), "limit": cfg.Limit.Text(10)})
	}
	return verify.Pass(r.Kind)
}

// RequireBalanceChecker requires the sender's reported balance to meet a
// floor. The balance is a context fact; absence reads as zero and denies.
type RequireBalanceChecker struct{}

func (RequireBalanceChecker) Check(r rule.Rule, ctx verify.Context, _ verify.StateStore) verify.Result {
	cfg, ok := r.Config.(*rule.RequireBalanceConfig)
	if !ok {
		return misconfigured(r.Kind)
	}
	balance := ctx.Balance()
	if balance.Cmp(cfg.Limit) < 0 {
		return verify.Fail(r.Kind, "balance %s below required minimum %s",
			balance.Text(10), cfg.Limit.Text(10)).
			WithData(map[string]any{"balance": balance.Text(10), "minimum": cfg.Limit.Text(10)})
	}
	return verify.Pass(r.Kind)
}

// RequirePaymentChecker requires a verified payment fact of at least the
// configured amount. Stateless; payment settlement is external.
type RequirePaymentChecker struct{}

func (RequirePaymentChecker) Check(r rule.Rule, ctx verify.Context, _ verify.StateStore) verify.Result {
	cfg, ok := r.Config.(*rule.RequirePaymentConfig)
	if !ok {
		return misconfigured(r.Kind)
	}
	paid := ctx.PaymentAmount()
	if paid.Cmp(cfg.Amount) < 0 {
		return verify.Fail(r.Kind, "payment %s below required %s",
			paid.Text(10), cfg.Amount.Text(10)).
			WithData(map[string]any{"paid": paid.Text(10), "required": cfg.Amount.Text(10)})
	}
	return verify.Pass(r.Kind)
}

// Compile-time interface verification.
var (
	_ verify.Checker  = ValueLimitChecker{}
	_ verify.Recorder = ValueLimitChecker{}
	_ verify.Checker  = GasLimitChecker{}
	_ verify.Recorder = GasLimitChecker{}
	_ verify.Checker  = MaxSpendChecker{}
	_ verify.Recorder = MaxSpendChecker{}
	_ verify.Checker  = MaxPerTxChecker{}
	_ verify.Checker  = RequireBalanceChecker{}
	_ verify.Checker  = RequirePaymentChecker{}
)
