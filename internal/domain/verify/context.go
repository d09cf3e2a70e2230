// Package verify contains the evaluation contracts: the verification context,
// the check result shape, the checker interfaces, and the fail-closed
// dispatcher. Concrete checkers live in the family packages (limits, timing,
// authz, acl) and the CEL adapter.
package verify

import (
	"encoding/json"
	"math/big"
	"time"

	"github.com/Action-Gate/actiongate/internal/domain/rule"
)

// Context carries the facts about a proposed action. The fixed fields cover
// every rule family; Data carries family-specific facts read by convention.
// Absent facts default to zero/neutral values.
type Context struct {
	// Sender is the acting address.
	Sender rule.Address `json:"sender"`
	// Timestamp is the proposal time in milliseconds since the Unix epoch.
	Timestamp int64 `json:"timestamp"`
	// Value is the transferred amount in the token's smallest unit. Nil means zero.
	Value *rule.Amount `json:"value,omitempty"`
	// Data carries named facts: estimatedGas, origin, recipient, reputation,
	// action, function, balance, blockHeight, lastActionBlock, epoch,
	// triggeredEvents, paymentAmount, signatureProof.
	Data map[string]any `json:"data,omitempty"`
}

// Time returns the proposal time as a time.Time.
func (c Context) Time() time.Time {
	return time.UnixMilli(c.Timestamp)
}

// ValueOrZero returns the transferred amount, never nil.
func (c Context) ValueOrZero() *rule.Amount {
	if c.Value == nil {
		return rule.NewAmount(0)
	}
	return c.Value
}

// EstimatedGas returns the "estimatedGas" fact, zero when absent.
func (c Context) EstimatedGas() uint64 {
	return c.uintFact("estimatedGas")
}

// Origin returns the "origin" fact as a lowercase address.
func (c Context) Origin() rule.Address {
	return rule.Address(c.stringFact("origin")).Lower()
}

// Recipient returns the "recipient" fact as a lowercase address.
func (c Context) Recipient() rule.Address {
	return rule.Address(c.stringFact("recipient")).Lower()
}

// Reputation returns the "reputation" fact, zero when absent.
func (c Context) Reputation() int64 {
	return c.intFact("reputation")
}

// Action returns the "action" fact: the name of the proposed action.
func (c Context) Action() string {
	return c.stringFact("action")
}

// Function returns the "function" fact: the contract function being called.
func (c Context) Function() string {
	return c.stringFact("function")
}

// Balance returns the "balance" fact, zero when absent.
func (c Context) Balance() *rule.Amount {
	return c.amountFact("balance")
}

// PaymentAmount returns the "paymentAmount" fact, zero when absent.
func (c Context) PaymentAmount() *rule.Amount {
	return c.amountFact("paymentAmount")
}

// BlockHeight returns the "blockHeight" fact, zero when absent.
func (c Context) BlockHeight() uint64 {
	return c.uintFact("blockHeight")
}

// LastActionBlock returns the "lastActionBlock" fact, zero when absent.
func (c Context) LastActionBlock() uint64 {
	return c.uintFact("lastActionBlock")
}

// Epoch returns the "epoch" fact, zero when absent.
func (c Context) Epoch() uint64 {
	return c.uintFact("epoch")
}

// TriggeredEvents returns the "triggeredEvents" fact: the set of externally
// signaled event names. Empty when absent.
func (c Context) TriggeredEvents() []string {
	v, ok := c.Data["triggeredEvents"]
	if !ok {
		return nil
	}
	switch vv := v.(type) {
	case []string:
		return vv
	case []any:
		out := make([]string, 0, len(vv))
		for _, e := range vv {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// SignatureEntry is one supplied approval: a claimed signer plus the opaque
// signature material. This engine counts authorization claims; verifying the
// signature bytes belongs to an external collaborator.
type SignatureEntry struct {
	Signer    rule.Address `json:"signer"`
	Signature string       `json:"signature"`
}

// SignatureProof is the out-of-band quorum proof for multi-sig rules.
type SignatureProof struct {
	Signatures []SignatureEntry `json:"signatures"`
	// CollectionTimestamp is when the quorum was collected, ms epoch.
	CollectionTimestamp int64 `json:"collectionTimestamp,omitempty"`
}

// Proof returns the "signatureProof" fact. Accepts the typed struct, a
// pointer to it, or a decoded JSON tree.
func (c Context) Proof() (*SignatureProof, bool) {
	v, ok := c.Data["signatureProof"]
	if !ok || v == nil {
		return nil, false
	}
	switch p := v.(type) {
	case *SignatureProof:
		return p, true
	case SignatureProof:
		return &p, true
	case map[string]any:
		raw, err := json.Marshal(p)
		if err != nil {
			return nil, false
		}
		var proof SignatureProof
		if err := json.Unmarshal(raw, &proof); err != nil {
			return nil, false
		}
		return &proof, true
	default:
		return nil, false
	}
}

func (c Context) stringFact(key string) string {
	if s, ok := c.Data[key].(string); ok {
		return s
	}
	return ""
}

func (c Context) uintFact(key string) uint64 {
	switch v := c.Data[key].(type) {
	case uint64:
		return v
	case uint:
		return uint64(v)
	case int:
		if v < 0 {
			return 0
		}
		return uint64(v)
	case int64:
		if v < 0 {
			return 0
		}
		return uint64(v)
	case float64:
		if v < 0 {
			return 0
		}
		return uint64(v)
	case json.Number:
		n, err := v.Int64()
		if err != nil || n < 0 {
			return 0
		}
		return uint64(n)
	default:
		return 0
	}
}

func (c Context) intFact(key string) int64 {
	switch v := c.Data[key].(type) {
	case int:
		return int64(v)
	case int64:
		return v
	case uint64:
		return int64(v)
	case float64:
		return int64(v)
	case json.Number:
		n, _ := v.Int64()
		return n
	default:
		return 0
	}
}

func (c Context) amountFact(key string) *rule.Amount {
	switch v := c.Data[key].(type) {
	case *rule.Amount:
		if v == nil {
			return rule.NewAmount(0)
		}
		return v
	case *big.Int:
		return rule.AmountFromBig(v)
	case string:
		a, err := rule.ParseAmount(v)
		if err != nil {
			return rule.NewAmount(0)
		}
		return a
	case float64:
		if v < 0 {
			return rule.NewAmount(0)
		}
		return rule.NewAmount(uint64(v))
	case int:
		if v < 0 {
			return rule.NewAmount(0)
		}
		return rule.NewAmount(uint64(v))
	case int64:
		if v < 0 {
			return rule.NewAmount(0)
		}
		return rule.NewAmount(uint64(v))
	case uint64:
		return rule.NewAmount(v)
	default:
		return rule.NewAmount(0)
	}
}
