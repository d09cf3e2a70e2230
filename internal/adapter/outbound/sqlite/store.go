// Package sqlite provides a durable state store for callers whose evaluation
// sessions must survive process restarts. It is a write-through layer over
// the in-memory store: reads are served from memory (hydrated at open),
// writes land in both.
package sqlite

import (
	"database/sql"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Action-Gate/actiongate/internal/adapter/outbound/memory"
	"github.com/Action-Gate/actiongate/internal/domain/rule"
	"github.com/Action-Gate/actiongate/internal/domain/verify"
)

const schema = `
CREATE TABLE IF NOT EXISTS executions (
	key   TEXT    NOT NULL,
	at_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_executions_key ON executions(key, at_ms);

CREATE TABLE IF NOT EXISTS value_totals (
	key   TEXT PRIMARY KEY,
	total TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS gas_totals (
	key   TEXT    PRIMARY KEY,
	total INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS levels (
	key   TEXT    PRIMARY KEY,
	level INTEGER NOT NULL
);
`

// Store implements verify.StateStore backed by a SQLite file. Reads never
// touch the database; write failures are logged and the in-memory state stays
// authoritative for the running session.
type Store struct {
	db     *sql.DB
	mem    *memory.StateStore
	logger *slog.Logger
}

// Open opens (or creates) the state database at path and hydrates the
// in-memory layer from it.
func Open(path string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open state database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create state schema: %w", err)
	}

	s := &Store{db: db, mem: memory.NewStateStore(), logger: logger}
	if err := s.hydrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("hydrate state: %w", err)
	}
	return s, nil
}

// Close releases the database handle. The in-memory layer keeps serving reads
// until the store is discarded.
func (s *Store) Close() error {
	s.mem.Stop()
	return s.db.Close()
}

func (s *Store) hydrate() error {
	rows, err := s.db.Query(`SELECT key, at_ms FROM executions`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var key string
		var atMS int64
		if err := rows.Scan(&key, &atMS); err != nil {
			return err
		}
		s.mem.RecordExecution(key, time.UnixMilli(atMS))
	}
	if err := rows.Err(); err != nil {
		return err
	}

	valueRows, err := s.db.Query(`SELECT key, total FROM value_totals`)
	if err != nil {
		return err
	}
	defer valueRows.Close()
	for valueRows.Next() {
		var key, total string
		if err := valueRows.Scan(&key, &total); err != nil {
			return err
		}
		t, ok := new(big.Int).SetString(total, 10)
		if !ok {
			return fmt.Errorf("corrupt value total %q for key %q", total, key)
		}
		s.mem.AddValue(key, rule.AmountFromBig(t))
	}
	if err := valueRows.Err(); err != nil {
		return err
	}

	gasRows, err := s.db.Query(`SELECT key, total FROM gas_totals`)
	if err != nil {
		return err
	}
	defer gasRows.Close()
	for gasRows.Next() {
		var key string
		var total int64
		if err := gasRows.Scan(&key, &total); err != nil {
			return err
		}
		s.mem.AddGas(key, uint64(total))
	}
	if err := gasRows.Err(); err != nil {
		return err
	}

	levelRows, err := s.db.Query(`SELECT key, level FROM levels`)
	if err != nil {
		return err
	}
	defer levelRows.Close()
	for levelRows.Next() {
		var key string
		var level int
		if err := levelRows.Scan(&key, &level); err != nil {
			return err
		}
		s.mem.SetLevel(key, level)
	}
	return levelRows.Err()
}

func (s *Store) execLogged(op, query string, args ...any) {
	if _, err := s.db.Exec(query, args...); err != nil {
		s.logger.Error("state write failed", "op", op, "error", err)
	}
}

// ExecutionCount returns the windowed execution count for key.
func (s *Store) ExecutionCount(key string, window time.Duration, now time.Time) int {
	return s.mem.ExecutionCount(key, window, now)
}

// LastExecution returns the most recent recorded execution for key.
func (s *Store) LastExecution(key string) (time.Time, bool) {
	return s.mem.LastExecution(key)
}

// RecordExecution appends an execution timestamp for key.
func (s *Store) RecordExecution(key string, at time.Time) {
	s.mem.RecordExecution(key, at)
	s.execLogged("record-execution",
		`INSERT INTO executions (key, at_ms) VALUES (?, ?)`, key, at.UnixMilli())
}

// AccumulatedValue returns the running value total for key.
func (s *Store) AccumulatedValue(key string) *rule.Amount {
	return s.mem.AccumulatedValue(key)
}

// AddValue adds amount to the running total for key.
func (s *Store) AddValue(key string, amount *rule.Amount) {
	s.mem.AddValue(key, amount)
	total := s.mem.AccumulatedValue(key)
	s.execLogged("add-value",
		`INSERT INTO value_totals (key, total) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET total = excluded.total`,
		key, total.Text(10))
}

// ResetValue clears the running value total for key.
func (s *Store) ResetValue(key string) {
	s.mem.ResetValue(key)
	s.execLogged("reset-value", `DELETE FROM value_totals WHERE key = ?`, key)
}

// AccumulatedGas returns the running gas total for key.
func (s *Store) AccumulatedGas(key string) uint64 {
	return s.mem.AccumulatedGas(key)
}

// AddGas adds gas to the running total for key.
func (s *Store) AddGas(key string, gas uint64) {
	s.mem.AddGas(key, gas)
	total := s.mem.AccumulatedGas(key)
	s.execLogged("add-gas",
		`INSERT INTO gas_totals (key, total) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET total = excluded.total`,
		key, int64(total))
}

// ResetGas clears the running gas total for key.
func (s *Store) ResetGas(key string) {
	s.mem.ResetGas(key)
	s.execLogged("reset-gas", `DELETE FROM gas_totals WHERE key = ?`, key)
}

// Level returns the progressive level for key.
func (s *Store) Level(key string) int {
	return s.mem.Level(key)
}

// SetLevel sets the progressive level for key.
func (s *Store) SetLevel(key string, level int) {
	s.mem.SetLevel(key, level)
	s.execLogged("set-level",
		`INSERT INTO levels (key, level) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET level = excluded.level`,
		key, level)
}

// IncrementLevel bumps the progressive level for key by one.
func (s *Store) IncrementLevel(key string) {
	s.mem.IncrementLevel(key)
	level := s.mem.Level(key)
	s.execLogged("increment-level",
		`INSERT INTO levels (key, level) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET level = excluded.level`,
		key, level)
}

// Cleanup drops execution history older than now-window from both layers.
func (s *Store) Cleanup(window time.Duration, now time.Time) {
	s.mem.Cleanup(window, now)
	s.execLogged("cleanup",
		`DELETE FROM executions WHERE at_ms < ?`, now.Add(-window).UnixMilli())
}

// Keys returns the number of tracked scope keys.
func (s *Store) Keys() int {
	return s.mem.Keys()
}

// Compile-time interface verification.
var _ verify.StateStore = (*Store)(nil)
