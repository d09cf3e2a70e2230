package limits_test

import (
	"testing"
	"time"

	"github.com/Action-Gate/actiongate/internal/adapter/outbound/memory"
	"github.com/Action-Gate/actiongate/internal/domain/limits"
	"github.com/Action-Gate/actiongate/internal/domain/rule"
	"github.com/Action-Gate/actiongate/internal/domain/verify"
)

func amount(t *testing.T, s string) *rule.Amount {
	t.Helper()
	a, err := rule.ParseAmount(s)
	if err != nil {
		t.Fatalf("ParseAmount(%q): %v", s, err)
	}
	return a
}

func TestValueLimitAccumulates(t *testing.T) {
	t.Parallel()

	state := memory.NewStateStore()
	checker := limits.ValueLimitChecker{}
	r := rule.Rule{Kind: rule.KindValueLimit, Config: &rule.ValueLimitConfig{
		MaxValue: amount(t, "1000"),
	}}

	ctx := ctxAt(0)
	ctx.Value = amount(t, "600")
	if res := checker.Check(r, ctx, state); !res.Passed {
		t.Fatalf("first transfer denied: %s", res.Message)
	}
	checker.Record(r, ctx, state)

	// 600 accumulated; another 600 would breach 1000.
	if res := checker.Check(r, ctx, state); res.Passed {
		t.Fatal("transfer breaching the accumulated limit must be denied")
	}

	// 400 exactly reaches the limit: allowed (limit is inclusive).
	ctx.Value = amount(t, "400")
	if res := checker.Check(r, ctx, state); !res.Passed {
		t.Fatalf("transfer reaching the limit exactly denied: %s", res.Message)
	}
}

func TestValueLimitNeverDecays(t *testing.T) {
	t.Parallel()

	state := memory.NewStateStore()
	checker := limits.ValueLimitChecker{}
	r := rule.Rule{Kind: rule.KindValueLimit, Config: &rule.ValueLimitConfig{
		MaxValue: amount(t, "100"),
	}}

	ctx := ctxAt(0)
	ctx.Value = amount(t, "100")
	checker.Record(r, ctx, state)

	// Much later, the accumulator still holds: only an explicit reset clears it.
	later := ctxAt(1000 * 60 * time.Minute) // far future
	later.Value = amount(t, "1")
	if res := checker.Check(r, later, state); res.Passed {
		t.Fatal("value accumulator must not decay with time")
	}

	state.ResetValue(limits.ValueKey(""))
	if res := checker.Check(r, later, state); !res.Passed {
		t.Fatalf("after explicit reset the transfer must pass: %s", res.Message)
	}
}

func TestValueLimitPerTokenScopes(t *testing.T) {
	t.Parallel()

	state := memory.NewStateStore()
	checker := limits.ValueLimitChecker{}
	native := rule.Rule{Kind: rule.KindValueLimit, Config: &rule.ValueLimitConfig{MaxValue: amount(t, "100")}}
	usdc := rule.Rule{Kind: rule.KindValueLimit, Config: &rule.ValueLimitConfig{MaxValue: amount(t, "100"), Token: "usdc"}}

	ctx := ctxAt(0)
	ctx.Value = amount(t, "100")
	checker.Record(native, ctx, state)

	// The usdc accumulator is untouched by native transfers.
	if res := checker.Check(usdc, ctx, state); !res.Passed {
		t.Fatalf("token accumulators must be independent: %s", res.Message)
	}
}

func TestValueLimitPerTxCeiling(t *testing.T) {
	t.Parallel()

	checker := limits.ValueLimitChecker{}
	r := rule.Rule{Kind: rule.KindValueLimit, Config: &rule.ValueLimitConfig{
		MaxValue: amount(t, "1000000"),
		MaxPerTx: amount(t, "100"),
	}}

	ctx := ctxAt(0)
	ctx.Value = amount(t, "101")
	// Per-tx ceiling applies before any state lookup.
	if res := checker.Check(r, ctx, nil); res.Passed {
		t.Fatal("value above per-tx ceiling must be denied")
	}
}

func TestGasLimitAccumulates(t *testing.T) {
	t.Parallel()

	state := memory.NewStateStore()
	checker := limits.GasLimitChecker{}
	r := rule.Rule{Kind: rule.KindGasLimit, Config: &rule.GasLimitConfig{
		MaxGas:      100_000,
		MaxGasPerTx: 60_000,
	}}

	ctx := ctxAt(0)
	ctx.Data = map[string]any{"estimatedGas": uint64(50_000)}
	if res := checker.Check(r, ctx, state); !res.Passed {
		t.Fatalf("first call denied: %s", res.Message)
	}
	checker.Record(r, ctx, state)

	// 50k accumulated + 60k would breach 100k.
	ctx.Data = map[string]any{"estimatedGas": uint64(60_000)}
	if res := checker.Check(r, ctx, state); res.Passed {
		t.Fatal("accumulated gas breach must be denied")
	}

	// 70k in one call breaches the per-tx ceiling regardless of history.
	ctx.Data = map[string]any{"estimatedGas": uint64(70_000)}
	if res := checker.Check(r, ctx, state); res.Passed {
		t.Fatal("per-tx gas ceiling breach must be denied")
	}
}

func TestGasLimitHugeEstimateDoesNotWrap(t *testing.T) {
	t.Parallel()

	state := memory.NewStateStore()
	checker := limits.GasLimitChecker{}
	// No per-tx ceiling: the accumulator cap alone must hold.
	r := rule.Rule{Kind: rule.KindGasLimit, Config: &rule.GasLimitConfig{MaxGas: 2000}}

	ctx := ctxAt(0)
	ctx.Data = map[string]any{"estimatedGas": uint64(1000)}
	checker.Record(r, ctx, state)

	// An estimate near MaxUint64 would wrap total+gas back under the limit.
	ctx.Data = map[string]any{"estimatedGas": uint64(1<<64 - 501)}
	if res := checker.Check(r, ctx, state); res.Passed {
		t.Fatal("overflowing gas estimate must be denied")
	}

	// The accumulator above the limit denies any further gas outright.
	state.AddGas(limits.GasKey, 5000)
	ctx.Data = map[string]any{"estimatedGas": uint64(1)}
	if res := checker.Check(r, ctx, state); res.Passed {
		t.Fatal("gas on top of an exhausted accumulator must be denied")
	}
}

func TestMaxSpendPerSender(t *testing.T) {
	t.Parallel()

	state := memory.NewStateStore()
	checker := limits.MaxSpendChecker{}
	r := rule.Rule{Kind: rule.KindMaxSpend, Config: &rule.MaxSpendConfig{Limit: amount(t, "1000")}}

	ctx := ctxAt(0)
	ctx.Value = amount(t, "900")
	checker.Record(r, ctx, state)

	ctx.Value = amount(t, "200")
	if res := checker.Check(r, ctx, state); res.Passed {
		t.Fatal("spend above limit must be denied")
	}

	// A different sender has an independent spend accumulator.
	other := ctxAt(0)
	other.Sender = "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	other.Value = amount(t, "200")
	if res := checker.Check(r, other, state); !res.Passed {
		t.Fatalf("other sender's spend denied: %s", res.Message)
	}
}

func TestMaxPerTxIsStateless(t *testing.T) {
	t.Parallel()

	checker := limits.MaxPerTxChecker{}
	r := rule.Rule{Kind: rule.KindMaxPerTx, Config: &rule.MaxPerTxConfig{Limit: amount(t, "100")}}

	under := ctxAt(0)
	under.Value = amount(t, "100")
	if res := checker.Check(r, under, nil); !res.Passed {
		t.Fatalf("value at the limit denied: %s", res.Message)
	}

	over := ctxAt(0)
	over.Value = amount(t, "101")
	if res := checker.Check(r, over, nil); res.Passed {
		t.Fatal("value above the per-tx limit must be denied")
	}
}

func TestRequireBalanceFloor(t *testing.T) {
	t.Parallel()

	checker := limits.RequireBalanceChecker{}
	r := rule.Rule{Kind: rule.KindRequireBalance, Config: &rule.RequireBalanceConfig{Limit: amount(t, "1000")}}

	rich := verify.Context{Sender: sender, Data: map[string]any{"balance": "1000"}}
	if res := checker.Check(r, rich, nil); !res.Passed {
		t.Fatalf("balance at the floor denied: %s", res.Message)
	}

	poor := verify.Context{Sender: sender, Data: map[string]any{"balance": "999"}}
	if res := checker.Check(r, poor, nil); res.Passed {
		t.Fatal("balance below the floor must be denied")
	}

	// Missing balance fact reads as zero and denies.
	if res := checker.Check(r, verify.Context{Sender: sender}, nil); res.Passed {
		t.Fatal("unreported balance must be denied")
	}
}

func TestRequirePayment(t *testing.T) {
	t.Parallel()

	checker := limits.RequirePaymentChecker{}
	r := rule.Rule{Kind: rule.KindRequirePayment, Config: &rule.RequirePaymentConfig{Amount: amount(t, "50")}}

	paid := verify.Context{Sender: sender, Data: map[string]any{"paymentAmount": "50"}}
	if res := checker.Check(r, paid, nil); !res.Passed {
		t.Fatalf("exact payment denied: %s", res.Message)
	}

	unpaid := verify.Context{Sender: sender}
	if res := checker.Check(r, unpaid, nil); res.Passed {
		t.Fatal("missing payment must be denied")
	}
}
