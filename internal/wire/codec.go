package wire

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Action-Gate/actiongate/internal/domain/rule"
)

// OnChainRule is the serialized form an external verifier consumes: a small
// integer code plus an opaque config blob.
type OnChainRule struct {
	Code   uint8
	Config []byte
}

// singleIntWidth is the fixed width of single-integer payloads: a 256-bit
// big-endian unsigned integer, matching what the on-chain verifier reads.
const singleIntWidth = 32

// addressWidth is the fixed width of a target list entry.
const addressWidth = 20

// actionIDWidth is the fixed width of an action list entry (xxhash64).
const actionIDWidth = 8

// Encode serializes a rule to its on-chain form. Configuration faults
// (missing limits, empty whitelists, inverted time windows, unknown kinds)
// are errors: a rule that would misbehave must fail at authoring time.
func Encode(r rule.Rule) (OnChainRule, error) {
	if r.Config == nil {
		return OnChainRule{}, fmt.Errorf("%w: nil config for kind %s", rule.ErrInvalidConfig, r.Kind)
	}
	code, ok := CodeFor(r.Kind)
	if !ok {
		return OnChainRule{}, fmt.Errorf("%w: %q", rule.ErrUnknownKind, r.Kind)
	}
	if err := r.Config.Validate(); err != nil {
		return OnChainRule{}, fmt.Errorf("encode %s: %w", r.Kind, err)
	}

	var payload []byte
	var err error
	switch cfg := r.Config.(type) {
	case *rule.MaxSpendConfig:
		payload, err = encodeSingleInt(cfg.Limit)
	case *rule.MaxPerTxConfig:
		payload, err = encodeSingleInt(cfg.Limit)
	case *rule.DailyLimitConfig:
		payload, err = encodeSingleInt(rule.NewAmount(cfg.Limit))
	case *rule.RequireBalanceConfig:
		payload, err = encodeSingleInt(cfg.Limit)
	case *rule.ActionWhitelistConfig:
		payload = encodeActionList(cfg.Actions)
	case *rule.ActionBlacklistConfig:
		payload = encodeActionList(cfg.Actions)
	case *rule.TargetWhitelistConfig:
		payload, err = encodeTargetList(cfg.Targets)
	case *rule.TargetBlacklistConfig:
		payload, err = encodeTargetList(cfg.Targets)
	case *rule.TimeWindowConfig:
		payload = []byte{byte(cfg.StartHour), byte(cfg.EndHour)}
	case *rule.RequirePaymentConfig, *rule.ExpressionConfig:
		payload, err = encodeVirtual(r.Kind, r.Config)
	case *rule.CustomConfig:
		payload, err = encodeOpaque(cfg.Fields)
	default:
		payload, err = encodeOpaque(r.Config)
	}
	if err != nil {
		return OnChainRule{}, fmt.Errorf("encode %s: %w", r.Kind, err)
	}
	return OnChainRule{Code: code, Config: payload}, nil
}

// Marshal serializes a rule to a flat byte slice: [code][config].
func Marshal(r rule.Rule) ([]byte, error) {
	ocr, err := Encode(r)
	if err != nil {
		return nil, err
	}
	return append([]byte{ocr.Code}, ocr.Config...), nil
}

// Decode deserializes an on-chain rule. The read path is lenient: malformed
// config bytes degrade to the kind's empty config rather than erroring, so
// historical and foreign-origin encodings never crash a reader. Unknown codes
// decode as empty custom rules.
func Decode(ocr OnChainRule) rule.Rule {
	r, _ := DecodeVerbose(ocr)
	return r
}

// DecodeVerbose is Decode plus a flag reporting whether the payload was
// malformed and degraded to an empty config, so readers can count or warn on
// legacy data without giving up leniency.
func DecodeVerbose(ocr OnChainRule) (rule.Rule, bool) {
	kind, ok := KindFor(ocr.Code)
	if !ok {
		return rule.Rule{Kind: rule.KindCustom, Config: &rule.CustomConfig{}}, true
	}
	if ocr.Code == CodeCustom {
		return decodeCustom(ocr.Config)
	}
	cfg, fellBack := decodePayload(kind, ocr.Config)
	return rule.Rule{Kind: kind, Config: cfg}, fellBack
}

// Unmarshal deserializes the flat [code][config] form.
func Unmarshal(data []byte) (rule.Rule, error) {
	if len(data) == 0 {
		return rule.Rule{}, fmt.Errorf("%w: empty rule bytes", rule.ErrInvalidConfig)
	}
	return Decode(OnChainRule{Code: data[0], Config: data[1:]}), nil
}

func encodeSingleInt(limit *rule.Amount) ([]byte, error) {
	if limit == nil {
		return nil, rule.ErrMissingLimit
	}
	if limit.BitLen() > singleIntWidth*8 {
		return nil, fmt.Errorf("limit %s exceeds 256 bits", limit.Text(10))
	}
	return limit.FillBytes(make([]byte, singleIntWidth)), nil
}

func encodeActionList(ids []rule.ActionID) []byte {
	buf := binary.AppendUvarint(nil, uint64(len(ids)))
	for _, id := range ids {
		buf = binary.BigEndian.AppendUint64(buf, uint64(id))
	}
	return buf
}

func encodeTargetList(targets []rule.Address) ([]byte, error) {
	buf := binary.AppendUvarint(nil, uint64(len(targets)))
	for _, t := range targets {
		raw, err := hex.DecodeString(strings.TrimPrefix(string(t.Lower()), "0x"))
		if err != nil || len(raw) != addressWidth {
			return nil, fmt.Errorf("%w: %q", rule.ErrInvalidAddress, t)
		}
		buf = append(buf, raw...)
	}
	return buf, nil
}

// encodeOpaque wraps the JSON form of a config in a length prefix.
func encodeOpaque(cfg any) ([]byte, error) {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	buf := binary.AppendUvarint(nil, uint64(len(raw)))
	return append(buf, raw...), nil
}

// encodeVirtual wraps a virtual kind under the custom code: the discriminator
// byte, the kind name, then the opaque config.
func encodeVirtual(k rule.Kind, cfg rule.Config) ([]byte, error) {
	body, err := encodeOpaque(cfg)
	if err != nil {
		return nil, err
	}
	buf := []byte{virtualMagic}
	buf = binary.AppendUvarint(buf, uint64(len(k)))
	buf = append(buf, k...)
	return append(buf, body...), nil
}

// decodePayload decodes a native kind's payload, degrading to the empty
// config on any malformation. The second return reports the degradation.
func decodePayload(kind rule.Kind, payload []byte) (rule.Config, bool) {
	switch kind {
	case rule.KindMaxSpend:
		if a, ok := decodeSingleInt(payload); ok {
			return &rule.MaxSpendConfig{Limit: a}, false
		}
	case rule.KindMaxPerTx:
		if a, ok := decodeSingleInt(payload); ok {
			return &rule.MaxPerTxConfig{Limit: a}, false
		}
	case rule.KindDailyLimit:
		if a, ok := decodeSingleInt(payload); ok && a.IsUint64() {
			return &rule.DailyLimitConfig{Limit: a.Uint64()}, false
		}
	case rule.KindRequireBalance:
		if a, ok := decodeSingleInt(payload); ok {
			return &rule.RequireBalanceConfig{Limit: a}, false
		}
	case rule.KindActionWhitelist:
		if ids, ok := decodeActionList(payload); ok {
			return &rule.ActionWhitelistConfig{Actions: ids}, false
		}
	case rule.KindActionBlacklist:
		if ids, ok := decodeActionList(payload); ok {
			return &rule.ActionBlacklistConfig{Actions: ids}, false
		}
	case rule.KindTargetWhitelist:
		if targets, ok := decodeTargetList(payload); ok {
			return &rule.TargetWhitelistConfig{Targets: targets}, false
		}
	case rule.KindTargetBlacklist:
		if targets, ok := decodeTargetList(payload); ok {
			return &rule.TargetBlacklistConfig{Targets: targets}, false
		}
	case rule.KindTimeWindow:
		if len(payload) == 2 {
			cfg := &rule.TimeWindowConfig{StartHour: int(payload[0]), EndHour: int(payload[1])}
			if cfg.Validate() == nil {
				return cfg, false
			}
		}
	default:
		if cfg, ok := decodeOpaqueInto(payload, kind); ok {
			return cfg, false
		}
	}
	return rule.EmptyConfig(kind), true
}

func decodeSingleInt(payload []byte) (*rule.Amount, bool) {
	if len(payload) != singleIntWidth {
		return nil, false
	}
	a := &rule.Amount{}
	a.SetBytes(payload)
	return a, true
}

func decodeActionList(payload []byte) ([]rule.ActionID, bool) {
	count, n := binary.Uvarint(payload)
	if n <= 0 {
		return nil, false
	}
	rest := payload[n:]
	// Bound count before multiplying: a crafted huge count would wrap
	// count*width and slip past an equality check.
	if count > uint64(len(rest))/actionIDWidth || uint64(len(rest)) != count*actionIDWidth {
		return nil, false
	}
	ids := make([]rule.ActionID, 0, count)
	for i := uint64(0); i < count; i++ {
		ids = append(ids, rule.ActionID(binary.BigEndian.Uint64(rest[i*actionIDWidth:])))
	}
	return ids, true
}

func decodeTargetList(payload []byte) ([]rule.Address, bool) {
	count, n := binary.Uvarint(payload)
	if n <= 0 {
		return nil, false
	}
	rest := payload[n:]
	if count > uint64(len(rest))/addressWidth || uint64(len(rest)) != count*addressWidth {
		return nil, false
	}
	targets := make([]rule.Address, 0, count)
	for i := uint64(0); i < count; i++ {
		targets = append(targets, rule.Address("0x"+hex.EncodeToString(rest[i*addressWidth:(i+1)*addressWidth])))
	}
	return targets, true
}

// decodeOpaqueInto decodes a length-prefixed JSON payload into the kind's
// typed config.
func decodeOpaqueInto(payload []byte, kind rule.Kind) (rule.Config, bool) {
	raw, ok := decodeOpaque(payload)
	if !ok {
		return nil, false
	}
	cfg := rule.EmptyConfig(kind)
	if err := json.Unmarshal(raw, cfg); err != nil {
		return nil, false
	}
	return cfg, true
}

func decodeOpaque(payload []byte) ([]byte, bool) {
	length, n := binary.Uvarint(payload)
	if n <= 0 || uint64(len(payload[n:])) != length {
		return nil, false
	}
	return payload[n:], true
}

// decodeCustom handles the generic code: a virtual-kind wrapper when the
// discriminator is present, a plain opaque custom config otherwise.
func decodeCustom(payload []byte) (rule.Rule, bool) {
	if len(payload) > 0 && payload[0] == virtualMagic {
		if r, fellBack, ok := decodeVirtual(payload[1:]); ok {
			return r, fellBack
		}
		return rule.Rule{Kind: rule.KindCustom, Config: &rule.CustomConfig{}}, true
	}

	raw, ok := decodeOpaque(payload)
	if !ok {
		return rule.Rule{Kind: rule.KindCustom, Config: &rule.CustomConfig{}}, true
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return rule.Rule{Kind: rule.KindCustom, Config: &rule.CustomConfig{}}, true
	}
	return rule.Rule{Kind: rule.KindCustom, Config: &rule.CustomConfig{Fields: fields}}, false
}

// decodeVirtual unwraps a virtual-kind payload. The middle return reports a
// body that degraded to the kind's empty config; the last reports whether the
// wrapper itself was recognized.
func decodeVirtual(payload []byte) (rule.Rule, bool, bool) {
	nameLen, n := binary.Uvarint(payload)
	if n <= 0 || uint64(len(payload[n:])) < nameLen {
		return rule.Rule{}, false, false
	}
	kind := rule.Kind(payload[n : n+int(nameLen)])
	body := payload[n+int(nameLen):]

	switch kind {
	case rule.KindRequirePayment, rule.KindExpression:
		cfg, ok := decodeOpaqueInto(body, kind)
		if !ok {
			return rule.Rule{Kind: kind, Config: rule.EmptyConfig(kind)}, true, true
		}
		return rule.Rule{Kind: kind, Config: cfg}, false, true
	default:
		// A virtual kind this engine does not know: keep it opaque.
		return rule.Rule{}, false, false
	}
}
