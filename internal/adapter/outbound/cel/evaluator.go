// Package cel provides the CEL-based checker for expression rules.
package cel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/cel-go/cel"

	"github.com/Action-Gate/actiongate/internal/domain/rule"
	"github.com/Action-Gate/actiongate/internal/domain/verify"
)

// maxExpressionLength is the maximum allowed length for CEL expressions.
const maxExpressionLength = 1024

// maxCostBudget is the CEL runtime cost limit to prevent cost-exhaustion.
const maxCostBudget = 100_000

// maxNestingDepth is the maximum allowed parenthesis/bracket nesting depth.
const maxNestingDepth = 50

// evalTimeout is the maximum time allowed for a single CEL evaluation.
const evalTimeout = 5 * time.Second

// interruptCheckFreq is how often (in comprehension iterations) context cancellation is checked.
const interruptCheckFreq = 100

// Evaluator compiles and evaluates CEL expressions for expression rules.
// Programs are compiled once per expression and cached; the evaluator is a
// verify.Checker for rule.KindExpression.
type Evaluator struct {
	env *cel.Env

	mu       sync.Mutex
	programs map[string]cel.Program
}

// NewEnvironment creates a CEL environment exposing the verification context:
// sender (string), timestamp (int, ms epoch), value (string, decimal smallest
// units), and data (map of named facts).
func NewEnvironment() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("sender", cel.StringType),
		cel.Variable("timestamp", cel.IntType),
		cel.Variable("value", cel.StringType),
		cel.Variable("data", cel.MapType(cel.StringType, cel.DynType)),
	)
}

// NewEvaluator creates a new CEL evaluator with the verification environment.
func NewEvaluator() (*Evaluator, error) {
	env, err := NewEnvironment()
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	return &Evaluator{env: env, programs: make(map[string]cel.Program)}, nil
}

// Compile parses and type-checks a CEL expression, returning a compiled program.
func (e *Evaluator) Compile(expression string) (cel.Program, error) {
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compilation failed: %w", issues.Err())
	}

	prg, err := e.env.Program(ast,
		cel.EvalOptions(cel.OptOptimize),
		cel.CostLimit(maxCostBudget),
		cel.InterruptCheckFrequency(interruptCheckFreq),
	)
	if err != nil {
		return nil, fmt.Errorf("program creation failed: %w", err)
	}

	return prg, nil
}

// validateNesting checks that the expression does not exceed the maximum
// allowed nesting depth for parentheses, brackets, and braces.
func validateNesting(expr string) error {
	var depth, maxDepth int
	for _, ch := range expr {
		switch ch {
		case '(', '[', '{':
			depth++
			if depth > maxDepth {
				maxDepth = depth
			}
		case ')', ']', '}':
			depth--
		}
	}
	if maxDepth > maxNestingDepth {
		return fmt.Errorf("expression nesting too deep: %d levels (max %d)", maxDepth, maxNestingDepth)
	}
	return nil
}

// ValidateExpression checks that a CEL expression is syntactically valid and
// within the safety limits (expression length, nesting depth). Called by the
// rule-set loader so invalid expressions fail at authoring time.
func (e *Evaluator) ValidateExpression(expr string) error {
	if len(expr) > maxExpressionLength {
		return fmt.Errorf("expression too long: %d characters (max %d)", len(expr), maxExpressionLength)
	}

	if expr == "" {
		return errors.New("expression is empty")
	}

	if err := validateNesting(expr); err != nil {
		return err
	}

	if _, err := e.Compile(expr); err != nil {
		return fmt.Errorf("invalid CEL expression: %w", err)
	}

	return nil
}

// program returns the cached compiled program for an expression, compiling on
// first use.
func (e *Evaluator) program(expr string) (cel.Program, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if prg, ok := e.programs[expr]; ok {
		return prg, nil
	}
	prg, err := e.Compile(expr)
	if err != nil {
		return nil, err
	}
	e.programs[expr] = prg
	return prg, nil
}

// Check evaluates an expression rule against the verification context.
// Compilation failures and non-boolean results fail closed.
func (e *Evaluator) Check(r rule.Rule, ctx verify.Context, _ verify.StateStore) verify.Result {
	cfg, ok := r.Config.(*rule.ExpressionConfig)
	if !ok {
		return verify.Fail(r.Kind, "rule config does not match kind %s", r.Kind)
	}

	prg, err := e.program(cfg.Expression)
	if err != nil {
		return verify.Fail(r.Kind, "expression does not compile: %v", err)
	}

	activation := map[string]any{
		"sender":    string(ctx.Sender.Lower()),
		"timestamp": ctx.Timestamp,
		"value":     ctx.ValueOrZero().Text(10),
		"data":      sanitizeData(ctx.Data),
	}

	evalCtx, cancel := context.WithTimeout(context.Background(), evalTimeout)
	defer cancel()

	result, _, err := prg.ContextEval(evalCtx, activation)
	if err != nil {
		return verify.Fail(r.Kind, "expression evaluation failed: %v", err)
	}

	passed, ok := result.Value().(bool)
	if !ok {
		return verify.Fail(r.Kind, "expression did not return a boolean, got %T", result.Value())
	}
	if !passed {
		return verify.Fail(r.Kind, "expression %q evaluated to false", cfg.Expression).
			WithData(map[string]any{"expression": cfg.Expression})
	}
	return verify.Pass(r.Kind)
}

// sanitizeData strips values CEL cannot represent (typed proofs and the like)
// so an expression over unrelated facts does not error out.
func sanitizeData(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		switch v.(type) {
		case string, bool, int, int64, uint64, float64, []string, []any, map[string]any, nil:
			out[k] = v
		}
	}
	return out
}

// Compile-time interface verification.
var _ verify.Checker = (*Evaluator)(nil)
