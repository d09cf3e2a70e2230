package cel

import (
	"strings"
	"testing"

	"github.com/Action-Gate/actiongate/internal/domain/rule"
	"github.com/Action-Gate/actiongate/internal/domain/verify"
)

func exprRule(expr string) rule.Rule {
	return rule.Rule{Kind: rule.KindExpression, Config: &rule.ExpressionConfig{Expression: expr}}
}

func TestCheckExpressions(t *testing.T) {
	t.Parallel()

	e, err := NewEvaluator()
	if err != nil {
		t.Fatalf("NewEvaluator() error: %v", err)
	}

	ctx := verify.Context{
		Sender:    "0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA",
		Timestamp: 1_700_000_000_000,
		Value:     rule.NewAmount(500),
		Data: map[string]any{
			"action":     "transfer",
			"reputation": int64(750),
		},
	}

	tests := []struct {
		name string
		expr string
		want bool
	}{
		{"sender is lowercased", `sender == "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"`, true},
		{"value as decimal string", `value == "500"`, true},
		{"timestamp comparison", `timestamp > 0`, true},
		{"data fact access", `data.action == "transfer"`, true},
		{"reputation threshold", `data.reputation >= 500`, true},
		{"false predicate denies", `data.action == "withdraw"`, false},
		{"compound expression", `data.action == "transfer" && data.reputation > 100`, true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res := e.Check(exprRule(tt.expr), ctx, nil)
			if res.Passed != tt.want {
				t.Errorf("passed = %v, want %v (%s)", res.Passed, tt.want, res.Message)
			}
		})
	}
}

func TestCheckFailsClosed(t *testing.T) {
	t.Parallel()

	e, err := NewEvaluator()
	if err != nil {
		t.Fatalf("NewEvaluator() error: %v", err)
	}
	ctx := verify.Context{Sender: "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"}

	if res := e.Check(exprRule(`sender ==`), ctx, nil); res.Passed {
		t.Error("uncompilable expression must be denied")
	}
	if res := e.Check(exprRule(`timestamp`), ctx, nil); res.Passed {
		t.Error("non-boolean expression must be denied")
	}
	// Map access on a missing fact is a runtime error, not a pass.
	if res := e.Check(exprRule(`data.nope == "x"`), ctx, nil); res.Passed {
		t.Error("reference to a missing fact must be denied")
	}
	// Wrong config type for the kind.
	r := rule.Rule{Kind: rule.KindExpression, Config: &rule.CooldownConfig{CooldownSeconds: 1}}
	if res := e.Check(r, ctx, nil); res.Passed {
		t.Error("mismatched config must be denied")
	}
}

func TestValidateExpression(t *testing.T) {
	t.Parallel()

	e, err := NewEvaluator()
	if err != nil {
		t.Fatalf("NewEvaluator() error: %v", err)
	}

	tests := []struct {
		name    string
		expr    string
		wantErr bool
	}{
		{"valid", `sender == "x" && timestamp > 0`, false},
		{"empty", ``, true},
		{"syntax error", `sender ==`, true},
		{"unknown variable", `no_such_var == 1`, true},
		{"too long", strings.Repeat("a", maxExpressionLength+1), true},
		{"nesting too deep", strings.Repeat("(", maxNestingDepth+1) + "true" + strings.Repeat(")", maxNestingDepth+1), true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := e.ValidateExpression(tt.expr)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateExpression error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestProgramCacheReuse(t *testing.T) {
	t.Parallel()

	e, err := NewEvaluator()
	if err != nil {
		t.Fatalf("NewEvaluator() error: %v", err)
	}
	ctx := verify.Context{Sender: "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"}
	r := exprRule(`timestamp >= 0`)

	for i := 0; i < 3; i++ {
		if res := e.Check(r, ctx, nil); !res.Passed {
			t.Fatalf("evaluation %d denied: %s", i, res.Message)
		}
	}
	e.mu.Lock()
	cached := len(e.programs)
	e.mu.Unlock()
	if cached != 1 {
		t.Errorf("program cache holds %d entries, want 1", cached)
	}
}
