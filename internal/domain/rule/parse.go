package rule

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

// deprecated config field aliases, accepted with a warning.
// Maps kind -> old name -> canonical name.
var fieldAliases = map[Kind]map[string]string{
	KindMaxSpend:       {"amount": "limit"},
	KindRequireBalance: {"minBalance": "limit"},
}

// Parse builds a typed Rule from the weakly-typed API boundary form: a kind
// tag plus a JSON-like config tree. The returned rule is validated; shape
// errors and deny-all footguns surface here, not at evaluation time.
func Parse(id, kind string, cfg map[string]any) (Rule, error) {
	c, err := ParseConfig(Kind(kind), cfg)
	if err != nil {
		return Rule{}, err
	}
	return Rule{ID: id, Kind: Kind(kind), Config: c}, nil
}

// ParseConfig builds and validates the typed config for a kind from a weak map.
func ParseConfig(k Kind, cfg map[string]any) (Config, error) {
	target := EmptyConfig(k)
	if target == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, k)
	}
	if cfg == nil {
		cfg = map[string]any{}
	}

	cfg = applyAliases(k, cfg)

	if k == KindTimeWindow {
		var err error
		cfg, err = normalizeHours(cfg)
		if err != nil {
			return nil, err
		}
	}

	// Custom rules keep their tree as-is; everything else decodes strictly
	// into the kind's payload struct.
	if k == KindCustom {
		c := &CustomConfig{Fields: cfg}
		return c, nil
	}

	raw, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, k, err)
	}

	if err := target.Validate(); err != nil {
		return nil, err
	}

	// Canonicalize addresses so checkers and the wire codec compare and
	// encode a single case.
	normalizeConfigAddresses(target)

	return target, nil
}

// applyAliases rewrites deprecated field names to their canonical form.
func applyAliases(k Kind, cfg map[string]any) map[string]any {
	aliases := fieldAliases[k]
	if len(aliases) == 0 {
		return cfg
	}
	out := make(map[string]any, len(cfg))
	for key, v := range cfg {
		if canonical, ok := aliases[key]; ok {
			if _, exists := cfg[canonical]; !exists {
				slog.Warn("deprecated rule config field",
					"kind", string(k), "field", key, "use", canonical)
				out[canonical] = v
				continue
			}
		}
		out[key] = v
	}
	return out
}

// normalizeHours accepts time-window hours as integers or "HH:MM" strings.
// Minutes must be zero; the window has hour precision only.
func normalizeHours(cfg map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(cfg))
	for key, v := range cfg {
		out[key] = v
	}
	for _, key := range []string{"startHour", "endHour"} {
		v, ok := out[key]
		if !ok {
			continue
		}
		s, ok := v.(string)
		if !ok {
			continue
		}
		hour, err := parseHour(s)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, key, err)
		}
		out[key] = hour
	}
	return out, nil
}

// parseHour parses "HH:MM" (minutes must be 00) or a bare hour string.
func parseHour(s string) (int, error) {
	s = strings.TrimSpace(s)
	if h, m, found := strings.Cut(s, ":"); found {
		if m != "00" {
			return 0, fmt.Errorf("minutes must be 00 in %q (hour precision only)", s)
		}
		s = h
	}
	hour, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid hour %q", s)
	}
	if hour < 0 || hour > 23 {
		return 0, fmt.Errorf("hour %d out of range 0-23", hour)
	}
	return hour, nil
}

// normalizeConfigAddresses lowercases every address a config carries.
func normalizeConfigAddresses(c Config) {
	switch cfg := c.(type) {
	case *MultiSigConfig:
		for i, s := range cfg.Signers {
			cfg.Signers[i] = s.Lower()
		}
	case *TargetWhitelistConfig:
		for i, t := range cfg.Targets {
			cfg.Targets[i] = t.Lower()
		}
	case *TargetBlacklistConfig:
		for i, t := range cfg.Targets {
			cfg.Targets[i] = t.Lower()
		}
	}
}

// validateScheduleExpression checks the five-field cron shape. Each field must
// be "*", a number, "*/n", or a comma list of numbers. The engine does not yet
// evaluate recurrences (see ScheduleConfig), but malformed expressions still
// fail at authoring time.
func validateScheduleExpression(expr string) error {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return fmt.Errorf("schedule expression %q must have 5 fields, got %d", expr, len(fields))
	}
	for _, f := range fields {
		if f == "*" {
			continue
		}
		if rest, ok := strings.CutPrefix(f, "*/"); ok {
			if n, err := strconv.Atoi(rest); err != nil || n <= 0 {
				return fmt.Errorf("invalid step %q in schedule expression", f)
			}
			continue
		}
		for _, part := range strings.Split(f, ",") {
			if _, err := strconv.Atoi(part); err != nil {
				return fmt.Errorf("invalid field %q in schedule expression", f)
			}
		}
	}
	return nil
}
