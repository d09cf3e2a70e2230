// Package rule contains the policy rule model: a closed tagged union with one
// typed configuration payload per rule kind. Rules are immutable data; the
// checkers in sibling packages give them behavior.
package rule

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Kind discriminates which checker and which wire encoding apply to a rule.
type Kind string

const (
	// KindMultiSig requires a quorum of distinct authorized signers.
	KindMultiSig Kind = "multi-sig"

	// Timing family.
	KindCooldown     Kind = "cooldown"
	KindTimeWindow   Kind = "time-window"
	KindSchedule     Kind = "schedule"
	KindBlockDelay   Kind = "block-delay"
	KindEpoch        Kind = "epoch"
	KindEventTrigger Kind = "event-trigger"

	// Rate/resource limit family.
	KindPerAddress     Kind = "per-address"
	KindPerFunction    Kind = "per-function"
	KindGlobalRate     Kind = "global-rate"
	KindValueLimit     Kind = "value-limit"
	KindGasLimit       Kind = "gas-limit"
	KindDailyLimit     Kind = "daily-limit"
	KindMaxSpend       Kind = "max-spend"
	KindMaxPerTx       Kind = "max-per-tx"
	KindRequireBalance Kind = "require-balance"
	KindProgressive    Kind = "progressive"
	KindReputation     Kind = "reputation"

	// Action/target list family.
	KindActionWhitelist Kind = "action-whitelist"
	KindActionBlacklist Kind = "action-blacklist"
	KindTargetWhitelist Kind = "target-whitelist"
	KindTargetBlacklist Kind = "target-blacklist"

	// Virtual kinds: not native on-chain tags, wire-wrapped under the custom code.
	KindRequirePayment Kind = "require-payment"
	KindExpression     Kind = "expression"

	// KindCustom carries an opaque config for rules this engine does not interpret.
	KindCustom Kind = "custom"
)

// Kinds lists every kind this engine knows, in a stable order.
// Used by the wire codec round-trip tests and the CLI.
func Kinds() []Kind {
	return []Kind{
		KindMultiSig,
		KindCooldown, KindTimeWindow, KindSchedule, KindBlockDelay, KindEpoch, KindEventTrigger,
		KindPerAddress, KindPerFunction, KindGlobalRate, KindValueLimit, KindGasLimit,
		KindDailyLimit, KindMaxSpend, KindMaxPerTx, KindRequireBalance, KindProgressive, KindReputation,
		KindActionWhitelist, KindActionBlacklist, KindTargetWhitelist, KindTargetBlacklist,
		KindRequirePayment, KindExpression, KindCustom,
	}
}

// Rule is a single policy rule: a kind tag plus its typed configuration.
// Rules are immutable once constructed.
type Rule struct {
	// ID is the unique identifier for this rule. May be empty for ad-hoc rules;
	// the rule-set loader assigns UUIDs to rules loaded without one.
	ID string
	// Kind selects the checker and the wire encoding.
	Kind Kind
	// Config is the typed payload for Kind. Config.Kind() always equals Kind.
	Config Config
}

// Config is the typed configuration payload of a rule.
// Each rule kind has exactly one implementing struct.
type Config interface {
	// Kind returns the rule kind this config belongs to.
	Kind() Kind
	// Validate reports configuration faults (missing limits, deny-all footguns).
	// A nil error means the config is safe to evaluate and encode.
	Validate() error
}

// Address is a lowercase 0x-prefixed 20-byte hex address.
type Address string

var addressPattern = regexp.MustCompile(`^0x[0-9a-f]{40}$`)

// NormalizeAddress lowercases s and validates the 0x + 40 hex digit shape.
func NormalizeAddress(s string) (Address, error) {
	a := Address(strings.ToLower(strings.TrimSpace(s)))
	if !a.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	return a, nil
}

// Valid reports whether the address has the canonical lowercase hex shape.
func (a Address) Valid() bool {
	return addressPattern.MatchString(string(a))
}

// Lower returns the canonical lowercase form without validating.
// Checkers use it to normalize externally supplied addresses before comparing.
func (a Address) Lower() Address {
	return Address(strings.ToLower(string(a)))
}

// ActionID is the fixed-width identifier for an action name: the xxhash64 of
// the name. Action lists store IDs rather than names so the wire form and the
// in-memory form round-trip exactly.
type ActionID uint64

// HashAction returns the fixed-width identifier for an action name.
func HashAction(name string) ActionID {
	return ActionID(xxhash.Sum64String(name))
}

// String formats the ID as 0x-prefixed 16-digit hex.
func (id ActionID) String() string {
	return fmt.Sprintf("0x%016x", uint64(id))
}

// MarshalJSON encodes the ID as its hex string form.
func (id ActionID) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.String())
}

// UnmarshalJSON accepts either a 0x-prefixed 16-hex-digit identifier or a
// plain action name, which is hashed. Numbers are accepted as raw IDs.
func (id *ActionID) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case string:
		if len(v) == 18 && strings.HasPrefix(v, "0x") {
			var n uint64
			if _, err := fmt.Sscanf(v, "0x%016x", &n); err == nil {
				*id = ActionID(n)
				return nil
			}
		}
		*id = HashAction(v)
		return nil
	case float64:
		*id = ActionID(uint64(v))
		return nil
	default:
		return fmt.Errorf("action id must be a string or number, got %T", raw)
	}
}
