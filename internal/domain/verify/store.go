package verify

import (
	"time"

	"github.com/Action-Gate/actiongate/internal/domain/rule"
)

// StateStore is the execution-history store limit and timing checkers consult.
// Keys are checker-constructed scope strings (e.g. "per-address:0xabc...").
//
// The read methods never mutate; recording is a distinct call the owner makes
// only after a guarded action actually executed. Implementations must be safe
// for concurrent use, but atomicity of a check-then-record pair is the
// caller's responsibility (see service.EvaluationService).
//
// Value and gas accumulators are monotone: nothing decays them on a time
// window, only the explicit Reset calls. This mirrors the accumulator
// semantics the external verifier enforces.
type StateStore interface {
	// ExecutionCount returns how many recorded executions for key fall within
	// [now-window, now].
	ExecutionCount(key string, window time.Duration, now time.Time) int
	// LastExecution returns the most recent recorded execution for key.
	LastExecution(key string) (time.Time, bool)
	// RecordExecution appends an execution timestamp for key.
	RecordExecution(key string, at time.Time)

	// AccumulatedValue returns the running value total for key, never nil.
	AccumulatedValue(key string) *rule.Amount
	// AddValue adds amount to the running total for key.
	AddValue(key string, amount *rule.Amount)
	// ResetValue clears the running value total for key.
	ResetValue(key string)

	// AccumulatedGas returns the running gas total for key.
	AccumulatedGas(key string) uint64
	// AddGas adds gas to the running total for key.
	AddGas(key string, gas uint64)
	// ResetGas clears the running gas total for key.
	ResetGas(key string)

	// Level returns the progressive level for key, zero when unset.
	Level(key string) int
	// SetLevel sets the progressive level for key.
	SetLevel(key string, level int)
	// IncrementLevel bumps the progressive level for key by one.
	IncrementLevel(key string)

	// Cleanup drops execution timestamps older than now-window across all
	// keys. The owner must invoke it periodically with the longest configured
	// limit window, or the store grows without bound.
	Cleanup(window time.Duration, now time.Time)
	// Keys returns the number of tracked scope keys, for monitoring.
	Keys() int
}
