// Package memory provides the in-memory state store for a single evaluation
// session.
package memory

import (
	"context"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/Action-Gate/actiongate/internal/domain/rule"
	"github.com/Action-Gate/actiongate/internal/domain/verify"
)

// StateStore implements verify.StateStore with mutex-guarded maps.
// Thread-safe for concurrent access. Includes background cleanup to prevent
// unbounded growth of execution history; value and gas accumulators are
// monotone by contract and are never cleaned, only explicitly reset.
type StateStore struct {
	mu         sync.Mutex
	executions map[string][]time.Time
	values     map[string]*big.Int
	gas        map[string]uint64
	levels     map[string]int

	stopChan        chan struct{}
	wg              sync.WaitGroup
	once            sync.Once
	cleanupInterval time.Duration
	retention       time.Duration
}

// NewStateStore creates an in-memory state store with default cleanup
// settings: cleanup every 5 minutes, retaining 1 hour of execution history.
// The retention must be at least the longest limit window in use.
func NewStateStore() *StateStore {
	return NewStateStoreWithConfig(5*time.Minute, 1*time.Hour)
}

// NewStateStoreWithConfig creates an in-memory state store with custom
// cleanup settings.
func NewStateStoreWithConfig(cleanupInterval, retention time.Duration) *StateStore {
	return &StateStore{
		executions:      make(map[string][]time.Time),
		values:          make(map[string]*big.Int),
		gas:             make(map[string]uint64),
		levels:          make(map[string]int),
		stopChan:        make(chan struct{}),
		cleanupInterval: cleanupInterval,
		retention:       retention,
	}
}

// ExecutionCount returns how many recorded executions for key fall within
// [now-window, now]. Linear scan: history per key is bounded by cleanup.
func (s *StateStore) ExecutionCount(key string, window time.Duration, now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := now.Add(-window)
	count := 0
	for _, ts := range s.executions[key] {
		if ts.After(cutoff) && !ts.After(now) {
			count++
		}
	}
	return count
}

// LastExecution returns the most recent recorded execution for key.
func (s *StateStore) LastExecution(key string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := s.executions[key]
	if len(history) == 0 {
		return time.Time{}, false
	}
	last := history[0]
	for _, ts := range history[1:] {
		if ts.After(last) {
			last = ts
		}
	}
	return last, true
}

// RecordExecution appends an execution timestamp for key.
func (s *StateStore) RecordExecution(key string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.executions[key] = append(s.executions[key], at)
}

// AccumulatedValue returns a copy of the running value total for key.
func (s *StateStore) AccumulatedValue(key string) *rule.Amount {
	s.mu.Lock()
	defer s.mu.Unlock()

	total, ok := s.values[key]
	if !ok {
		return rule.NewAmount(0)
	}
	return rule.AmountFromBig(total)
}

// AddValue adds amount to the running total for key.
func (s *StateStore) AddValue(key string, amount *rule.Amount) {
	if amount == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	total, ok := s.values[key]
	if !ok {
		total = new(big.Int)
		s.values[key] = total
	}
	total.Add(total, &amount.Int)
}

// ResetValue clears the running value total for key.
func (s *StateStore) ResetValue(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
}

// AccumulatedGas returns the running gas total for key.
func (s *StateStore) AccumulatedGas(key string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gas[key]
}

// AddGas adds gas to the running total for key.
func (s *StateStore) AddGas(key string, gas uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gas[key] += gas
}

// ResetGas clears the running gas total for key.
func (s *StateStore) ResetGas(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.gas, key)
}

// Level returns the progressive level for key, zero when unset.
func (s *StateStore) Level(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.levels[key]
}

// SetLevel sets the progressive level for key.
func (s *StateStore) SetLevel(key string, level int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.levels[key] = level
}

// IncrementLevel bumps the progressive level for key by one.
func (s *StateStore) IncrementLevel(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.levels[key]++
}

// Cleanup drops execution timestamps older than now-window across all keys
// and removes keys whose history becomes empty.
func (s *StateStore) Cleanup(window time.Duration, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := now.Add(-window)
	cleaned := 0
	for key, history := range s.executions {
		kept := history[:0]
		for _, ts := range history {
			if ts.After(cutoff) {
				kept = append(kept, ts)
			}
		}
		cleaned += len(history) - len(kept)
		if len(kept) == 0 {
			delete(s.executions, key)
		} else {
			s.executions[key] = kept
		}
	}

	if cleaned > 0 {
		slog.Debug("state store cleanup completed",
			"cleaned_timestamps", cleaned,
			"remaining_keys", len(s.executions))
	}
}

// Keys returns the number of tracked scope keys across all four maps.
func (s *StateStore) Keys() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]struct{}, len(s.executions))
	for k := range s.executions {
		seen[k] = struct{}{}
	}
	for k := range s.values {
		seen[k] = struct{}{}
	}
	for k := range s.gas {
		seen[k] = struct{}{}
	}
	for k := range s.levels {
		seen[k] = struct{}{}
	}
	return len(seen)
}

// StartCleanup starts the background cleanup goroutine. It periodically drops
// execution history older than the retention window and stops when ctx is
// cancelled or Stop() is called.
func (s *StateStore) StartCleanup(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.cleanupInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.Cleanup(s.retention, time.Now())
			}
		}
	}()
}

// Stop gracefully stops the cleanup goroutine and waits for it to exit.
// Safe to call multiple times.
func (s *StateStore) Stop() {
	s.once.Do(func() {
		close(s.stopChan)
	})
	s.wg.Wait()
}

// Compile-time interface verification.
var _ verify.StateStore = (*StateStore)(nil)
