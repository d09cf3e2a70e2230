package verify

import (
	"fmt"

	"github.com/Action-Gate/actiongate/internal/domain/rule"
)

// Result is the verdict for one rule against one context. Expected denials
// are Results with Passed=false, never errors; errors are reserved for
// malformed rule configuration and never reach this type.
type Result struct {
	// Passed is true when the rule is satisfied.
	Passed bool `json:"passed"`
	// RuleKind names the rule that produced this verdict. "unknown" for
	// unrecognized tags.
	RuleKind string `json:"ruleKind"`
	// Message explains a denial. Empty on pass.
	Message string `json:"message,omitempty"`
	// Data carries structured diagnostics (counts, limits, remaining headroom).
	Data map[string]any `json:"data,omitempty"`
}

// Pass returns a passing verdict for a rule kind.
func Pass(k rule.Kind) Result {
	return Result{Passed: true, RuleKind: string(k)}
}

// Fail returns a denial with a formatted message.
func Fail(k rule.Kind, format string, args ...any) Result {
	return Result{Passed: false, RuleKind: string(k), Message: fmt.Sprintf(format, args...)}
}

// WithData attaches structured diagnostics to the verdict.
func (r Result) WithData(data map[string]any) Result {
	r.Data = data
	return r
}

// AllPassed reports whether every verdict passed and, when not, returns the
// first failing verdict. Callers commonly surface its Message as the denial
// reason.
func AllPassed(results []Result) (bool, *Result) {
	for i := range results {
		if !results[i].Passed {
			return false, &results[i]
		}
	}
	return true, nil
}
