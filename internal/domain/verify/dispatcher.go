package verify

import (
	"github.com/Action-Gate/actiongate/internal/domain/rule"
)

// Checker evaluates one rule kind against a context. Check is pure with
// respect to the state store: it only reads.
type Checker interface {
	Check(r rule.Rule, ctx Context, state StateStore) Result
}

// Recorder is implemented by checkers whose rules consume state. Record
// commits an executed action into the store (timestamps, value, gas). The
// caller invokes it only after the guarded action actually ran.
type Recorder interface {
	Record(r rule.Rule, ctx Context, state StateStore)
}

// CheckerFunc adapts a function to the Checker interface.
type CheckerFunc func(r rule.Rule, ctx Context, state StateStore) Result

func (f CheckerFunc) Check(r rule.Rule, ctx Context, state StateStore) Result {
	return f(r, ctx, state)
}

// Dispatcher routes rules to checkers by kind. Unknown kinds fail closed:
// a rule this engine cannot interpret never silently passes.
type Dispatcher struct {
	checkers map[rule.Kind]Checker
}

// NewDispatcher returns an empty dispatcher. The service layer registers the
// standard checker families; tests register what they need.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{checkers: make(map[rule.Kind]Checker)}
}

// Register binds a checker to a rule kind, replacing any previous binding.
func (d *Dispatcher) Register(k rule.Kind, c Checker) {
	d.checkers[k] = c
}

// Kinds returns the kinds with a registered checker.
func (d *Dispatcher) Kinds() []rule.Kind {
	out := make([]rule.Kind, 0, len(d.checkers))
	for k := range d.checkers {
		out = append(out, k)
	}
	return out
}

// Evaluate routes one rule to its checker. Side-effect free.
func (d *Dispatcher) Evaluate(r rule.Rule, ctx Context, state StateStore) Result {
	c, ok := d.checkers[r.Kind]
	if !ok {
		return Result{
			Passed:   false,
			RuleKind: "unknown",
			Message:  "unrecognized rule kind " + string(r.Kind),
		}
	}
	return c.Check(r, ctx, state)
}

// EvaluateAll evaluates every rule and returns one verdict per rule, in order.
func (d *Dispatcher) EvaluateAll(rules []rule.Rule, ctx Context, state StateStore) []Result {
	results := make([]Result, 0, len(rules))
	for _, r := range rules {
		results = append(results, d.Evaluate(r, ctx, state))
	}
	return results
}

// RecordAll commits an executed action for every rule whose checker consumes
// state. Call only after the action ran.
func (d *Dispatcher) RecordAll(rules []rule.Rule, ctx Context, state StateStore) {
	for _, r := range rules {
		if rec, ok := d.checkers[r.Kind].(Recorder); ok {
			rec.Record(r, ctx, state)
		}
	}
}
