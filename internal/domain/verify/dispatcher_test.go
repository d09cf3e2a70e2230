package verify

import (
	"testing"

	"github.com/Action-Gate/actiongate/internal/domain/rule"
)

func TestDispatcherFailsClosedOnUnknownKind(t *testing.T) {
	t.Parallel()

	d := NewDispatcher()
	res := d.Evaluate(rule.Rule{Kind: "never-registered"}, Context{}, nil)

	if res.Passed {
		t.Fatal("unknown rule kind must not pass")
	}
	if res.RuleKind != "unknown" {
		t.Errorf("RuleKind = %q, want %q", res.RuleKind, "unknown")
	}
	if res.Message == "" {
		t.Error("denial must carry a message")
	}
}

func TestDispatcherRoutesByKind(t *testing.T) {
	t.Parallel()

	d := NewDispatcher()
	d.Register("always-pass", CheckerFunc(func(r rule.Rule, _ Context, _ StateStore) Result {
		return Pass(r.Kind)
	}))
	d.Register("always-deny", CheckerFunc(func(r rule.Rule, _ Context, _ StateStore) Result {
		return Fail(r.Kind, "denied")
	}))

	results := d.EvaluateAll([]rule.Rule{
		{Kind: "always-pass"},
		{Kind: "always-deny"},
		{Kind: "unregistered"},
	}, Context{}, nil)

	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	if !results[0].Passed || results[1].Passed || results[2].Passed {
		t.Errorf("verdicts = %v %v %v, want pass/deny/deny",
			results[0].Passed, results[1].Passed, results[2].Passed)
	}

	allowed, failed := AllPassed(results)
	if allowed {
		t.Error("AllPassed must be false when any rule denies")
	}
	if failed == nil || failed.RuleKind != "always-deny" {
		t.Errorf("first failure = %+v, want always-deny", failed)
	}
}

func TestAllPassedOnEmptyAndPassing(t *testing.T) {
	t.Parallel()

	if ok, failed := AllPassed(nil); !ok || failed != nil {
		t.Error("empty result set should be allowed")
	}
	if ok, _ := AllPassed([]Result{Pass("a"), Pass("b")}); !ok {
		t.Error("all-pass set should be allowed")
	}
}

func TestContextFacts(t *testing.T) {
	t.Parallel()

	ctx := Context{
		Sender:    "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
		Timestamp: 1_700_000_000_000,
		Data: map[string]any{
			"estimatedGas":    float64(21000), // JSON numbers arrive as float64
			"recipient":       "0xBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBB",
			"reputation":      int64(750),
			"action":          "transfer",
			"balance":         "123456789012345678901",
			"blockHeight":     uint64(500),
			"triggeredEvents": []any{"audit-complete", "unlock"},
		},
	}

	if got := ctx.EstimatedGas(); got != 21000 {
		t.Errorf("EstimatedGas() = %d", got)
	}
	if got := ctx.Recipient(); got != "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb" {
		t.Errorf("Recipient() = %s, want lowercase", got)
	}
	if got := ctx.Reputation(); got != 750 {
		t.Errorf("Reputation() = %d", got)
	}
	if got := ctx.Balance().Text(10); got != "123456789012345678901" {
		t.Errorf("Balance() = %s", got)
	}
	if got := ctx.BlockHeight(); got != 500 {
		t.Errorf("BlockHeight() = %d", got)
	}
	events := ctx.TriggeredEvents()
	if len(events) != 2 || events[0] != "audit-complete" {
		t.Errorf("TriggeredEvents() = %v", events)
	}

	// Absent facts read as zero values.
	empty := Context{}
	if empty.EstimatedGas() != 0 || empty.Action() != "" || empty.Balance().Sign() != 0 {
		t.Error("absent facts must default to zero")
	}
}

func TestContextProofForms(t *testing.T) {
	t.Parallel()

	typed := &SignatureProof{Signatures: []SignatureEntry{{Signer: "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", Signature: "sig"}}}

	tests := []struct {
		name string
		fact any
		want int
	}{
		{"typed pointer", typed, 1},
		{"typed value", *typed, 1},
		{"decoded JSON tree", map[string]any{
			"signatures": []any{
				map[string]any{"signer": "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", "signature": "sig"},
				map[string]any{"signer": "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb", "signature": "sig"},
			},
		}, 2},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctx := Context{Data: map[string]any{"signatureProof": tt.fact}}
			proof, ok := ctx.Proof()
			if !ok {
				t.Fatal("Proof() not found")
			}
			if len(proof.Signatures) != tt.want {
				t.Errorf("got %d signatures, want %d", len(proof.Signatures), tt.want)
			}
		})
	}

	if _, ok := (Context{}).Proof(); ok {
		t.Error("missing proof must report not-found")
	}
}
