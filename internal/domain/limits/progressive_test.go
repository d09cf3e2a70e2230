package limits_test

import (
	"testing"
	"time"

	"github.com/Action-Gate/actiongate/internal/adapter/outbound/memory"
	"github.com/Action-Gate/actiongate/internal/domain/limits"
	"github.com/Action-Gate/actiongate/internal/domain/rule"
)

func TestProgressiveStepTable(t *testing.T) {
	t.Parallel()

	state := memory.NewStateStore()
	checker := limits.ProgressiveChecker{}
	r := rule.Rule{Kind: rule.KindProgressive, Config: &rule.ProgressiveConfig{
		Steps: []rule.ProgressiveStep{
			{ExecutionsRequired: 10, Limit: 2},
			{ExecutionsRequired: 50, Limit: 5},
			{ExecutionsRequired: 100, Limit: 10},
		},
		WindowSeconds: 3600,
	}}
	key := limits.ProgressiveKey(sender)

	// Level 0: first step applies, ceiling 2.
	checker.Record(r, ctxAt(0), state)
	checker.Record(r, ctxAt(time.Second), state)
	if res := checker.Check(r, ctxAt(2*time.Second), state); res.Passed {
		t.Fatal("level 0 actor must be capped at the first step")
	}

	// Level 30: second step (requirement 50 > 30) applies, ceiling 5.
	state.SetLevel(key, 30)
	if res := checker.Check(r, ctxAt(3*time.Second), state); !res.Passed {
		t.Fatalf("level 30 actor denied under ceiling 5: %s", res.Message)
	}

	// Past every step: the last step's limit holds.
	state.SetLevel(key, 500)
	if res := checker.Check(r, ctxAt(4*time.Second), state); !res.Passed {
		t.Fatalf("max-level actor denied: %s", res.Message)
	}
}

func TestProgressiveLinear(t *testing.T) {
	t.Parallel()

	state := memory.NewStateStore()
	checker := limits.ProgressiveChecker{}
	r := rule.Rule{Kind: rule.KindProgressive, Config: &rule.ProgressiveConfig{
		InitialLimit:  1,
		IncreaseRate:  2,
		MaxLimit:      5,
		WindowSeconds: 3600,
	}}
	key := limits.ProgressiveKey(sender)

	// Level 0: ceiling 1.
	checker.Record(r, ctxAt(0), state)
	if res := checker.Check(r, ctxAt(time.Second), state); res.Passed {
		t.Fatal("level 0 ceiling of 1 must deny the second execution")
	}

	// Level 1: ceiling 1+2 = 3.
	state.IncrementLevel(key)
	if res := checker.Check(r, ctxAt(2*time.Second), state); !res.Passed {
		t.Fatalf("level 1 actor denied under ceiling 3: %s", res.Message)
	}

	// Level 10 would give 21, capped to maxLimit 5.
	state.SetLevel(key, 10)
	for i := 0; i < 4; i++ {
		checker.Record(r, ctxAt(time.Duration(3+i)*time.Second), state)
	}
	// Five recorded now; ceiling is 5, so the next is denied.
	if res := checker.Check(r, ctxAt(10*time.Second), state); res.Passed {
		t.Fatal("linear ceiling must be capped at maxLimit")
	}
}

func TestReputationTiers(t *testing.T) {
	t.Parallel()

	state := memory.NewStateStore()
	checker := limits.ReputationChecker{}
	r := rule.Rule{Kind: rule.KindReputation, Config: &rule.ReputationConfig{
		Tiers: []rule.ReputationTier{
			{MinReputation: 100, Limit: 2},
			{MinReputation: 500, Limit: 10},
		},
		BaseLimit:     0,
		WindowSeconds: 3600,
	}}

	// No reputation and a zero base limit: denied outright.
	if res := checker.Check(r, ctxAt(0), state); res.Passed {
		t.Fatal("untiered actor with zero base limit must be denied")
	}

	// Reputation 600 selects the highest qualifying tier (500 -> 10), not 100.
	ctx := ctxAt(0)
	ctx.Data = map[string]any{"reputation": int64(600)}
	for i := 0; i < 5; i++ {
		if res := checker.Check(r, ctx, state); !res.Passed {
			t.Fatalf("execution %d denied under ceiling 10: %s", i, res.Message)
		}
		checker.Record(r, ctx, state)
	}

	// Reputation 150 selects the 100 tier: two already-recorded executions
	// exhaust its ceiling of 2.
	mid := ctxAt(time.Second)
	mid.Data = map[string]any{"reputation": int64(150)}
	if res := checker.Check(r, mid, state); res.Passed {
		t.Fatal("mid-tier actor must be capped at its own ceiling")
	}
}
