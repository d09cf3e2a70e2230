package rule

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
)

// Amount is an arbitrary-precision unsigned integer in a token's smallest
// unit. Chain amounts routinely exceed uint64, so configs and context values
// carry big integers end to end; the wire codec fixes them at 32 bytes.
type Amount struct {
	big.Int
}

// NewAmount returns an Amount holding v.
func NewAmount(v uint64) *Amount {
	a := &Amount{}
	a.SetUint64(v)
	return a
}

// AmountFromBig copies v into a new Amount. Returns nil for nil input.
func AmountFromBig(v *big.Int) *Amount {
	if v == nil {
		return nil
	}
	a := &Amount{}
	a.Set(v)
	return a
}

// ParseAmount parses a decimal string into an Amount.
func ParseAmount(s string) (*Amount, error) {
	a := &Amount{}
	if _, ok := a.SetString(strings.TrimSpace(s), 10); !ok {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	if a.Sign() < 0 {
		return nil, fmt.Errorf("amount %q must not be negative", s)
	}
	return a, nil
}

// Cmp compares a to another amount, treating nil as zero.
func (a *Amount) Cmp(b *Amount) int {
	var x, y big.Int
	if a != nil {
		x.Set(&a.Int)
	}
	if b != nil {
		y.Set(&b.Int)
	}
	return x.Cmp(&y)
}

// Equal reports whether two amounts hold the same value, treating nil as zero.
func (a *Amount) Equal(b *Amount) bool {
	return a.Cmp(b) == 0
}

// MarshalJSON encodes the amount as a decimal string so values above 2^53
// survive JSON processors that parse numbers as float64.
func (a *Amount) MarshalJSON() ([]byte, error) {
	if a == nil {
		return []byte(`"0"`), nil
	}
	return json.Marshal(a.Text(10))
}

// UnmarshalJSON accepts a decimal string or a JSON number. Number tokens are
// parsed directly from the raw bytes so precision is never lost to a float64
// stage; scientific notation (e.g. 1e21 emitted by a YAML-to-map conversion)
// is recovered when it denotes an exact non-negative integer.
func (a *Amount) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		parsed, err := ParseAmount(s)
		if err != nil {
			return err
		}
		a.Set(&parsed.Int)
		return nil
	}
	token := strings.TrimSpace(string(data))
	if _, ok := a.Int.SetString(token, 10); ok {
		if a.Sign() < 0 {
			return fmt.Errorf("amount %s must not be negative", token)
		}
		return nil
	}
	f, _, err := big.ParseFloat(token, 10, 256, big.ToNearestEven)
	if err != nil {
		return fmt.Errorf("amount must be a string or number: %w", err)
	}
	i, acc := f.Int(nil)
	if acc != big.Exact || i.Sign() < 0 {
		return fmt.Errorf("amount %s is not a non-negative integer", token)
	}
	a.Set(i)
	return nil
}
