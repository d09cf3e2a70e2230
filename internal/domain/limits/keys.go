// Package limits implements the rate and resource limit checkers: sliding
// window execution counts, monotone value/gas accumulators, progressive and
// reputation-tiered ceilings.
package limits

import (
	"github.com/Action-Gate/actiongate/internal/domain/rule"
	"github.com/Action-Gate/actiongate/internal/domain/verify"
)

// Scope key constructors. Keys namespace state per address, function, token,
// or globally. Format: "<family>:<qualifier>".

// PerAddressKey returns the execution-history key for one address under a
// scope. The default sender scope keys bare; origin and recipient scopes
// carry their type so differently scoped rules never share history.
func PerAddressKey(t rule.AddressType, addr rule.Address) string {
	switch t {
	case rule.AddressOrigin, rule.AddressRecipient:
		return "per-address:" + string(t) + ":" + string(addr.Lower())
	default:
		return "per-address:" + string(addr.Lower())
	}
}

// PerFunctionKey returns the execution-history key for one function name.
func PerFunctionKey(fn string) string {
	return "per-function:" + fn
}

// GlobalKey is the execution-history key shared by all senders.
const GlobalKey = "global"

// ValueKey returns the value-accumulator key for a token. Empty token means
// the native token.
func ValueKey(token string) string {
	if token == "" {
		token = "native"
	}
	return "value:" + token
}

// GasKey is the gas-accumulator key.
const GasKey = "gas"

// DailyKey returns the 24-hour execution-history key for one sender.
func DailyKey(addr rule.Address) string {
	return "daily:" + string(addr.Lower())
}

// SpendKey returns the spend-accumulator key for one sender.
func SpendKey(addr rule.Address) string {
	return "spend:" + string(addr.Lower())
}

// ProgressiveKey returns the progressive-limit key for one sender.
func ProgressiveKey(addr rule.Address) string {
	return "progressive:" + string(addr.Lower())
}

// ReputationKey returns the reputation-limit key for one sender.
func ReputationKey(addr rule.Address) string {
	return "reputation:" + string(addr.Lower())
}

// scopeAddress resolves which context address a scoped limit keys on.
func scopeAddress(t rule.AddressType, ctx verify.Context) rule.Address {
	switch t {
	case rule.AddressOrigin:
		return ctx.Origin()
	case rule.AddressRecipient:
		return ctx.Recipient()
	default:
		return ctx.Sender.Lower()
	}
}

// misconfigured is the fail-closed verdict for a rule whose config payload
// does not match its kind. Parsing prevents this; it guards hand-built rules.
func misconfigured(k rule.Kind) verify.Result {
	return verify.Fail(k, "rule config does not match kind %s", k)
}

// noState is the fail-closed verdict for stateful rules evaluated without a store.
func noState(k rule.Kind) verify.Result {
	return verify.Fail(k, "no state store supplied for stateful rule %s", k)
}
