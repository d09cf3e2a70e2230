package rule

import (
	"encoding/json"
	"testing"
)

func TestAmountJSONRoundTrip(t *testing.T) {
	t.Parallel()

	// Values above 2^53 must survive: float64 cannot hold them.
	for _, s := range []string{"0", "42", "9007199254740993", "1000000000000000000000000"} {
		a, err := ParseAmount(s)
		if err != nil {
			t.Fatalf("ParseAmount(%q) error: %v", s, err)
		}
		raw, err := json.Marshal(a)
		if err != nil {
			t.Fatalf("Marshal(%q) error: %v", s, err)
		}
		var back Amount
		if err := json.Unmarshal(raw, &back); err != nil {
			t.Fatalf("Unmarshal(%s) error: %v", raw, err)
		}
		if !back.Equal(a) {
			t.Errorf("round-trip %q: got %s", s, back.Text(10))
		}
	}
}

func TestAmountUnmarshalForms(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"decimal string", `"500000000000000000"`, "500000000000000000", false},
		{"bare integer", `12345`, "12345", false},
		{"big integer above float precision", `9007199254740993`, "9007199254740993", false},
		{"exact scientific notation", `1e21`, "1000000000000000000000", false},
		{"negative string", `"-5"`, "", true},
		{"negative number", `-5`, "", true},
		{"fractional", `1.5`, "", true},
		{"garbage", `"abc"`, "", true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var a Amount
			err := json.Unmarshal([]byte(tt.in), &a)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Unmarshal(%s) = %s, want error", tt.in, a.Text(10))
				}
				return
			}
			if err != nil {
				t.Fatalf("Unmarshal(%s) error: %v", tt.in, err)
			}
			if a.Text(10) != tt.want {
				t.Errorf("Unmarshal(%s) = %s, want %s", tt.in, a.Text(10), tt.want)
			}
		})
	}
}

func TestAmountNilSemantics(t *testing.T) {
	t.Parallel()

	var nilAmount *Amount
	if nilAmount.Cmp(NewAmount(0)) != 0 {
		t.Error("nil amount should compare equal to zero")
	}
	if nilAmount.Cmp(NewAmount(1)) >= 0 {
		t.Error("nil amount should compare below one")
	}

	raw, err := nilAmount.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON(nil) error: %v", err)
	}
	if string(raw) != `"0"` {
		t.Errorf("MarshalJSON(nil) = %s, want \"0\"", raw)
	}
}
