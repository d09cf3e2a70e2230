package rule

import "errors"

// Configuration faults. These are signaled as errors (never as check denials)
// because they describe rules that would misbehave: deny everything, allow
// everything, or reference nothing.
var (
	// ErrUnknownKind means the rule tag is not one this engine knows.
	ErrUnknownKind = errors.New("unknown rule kind")
	// ErrMissingLimit means a single-integer rule has no limit value.
	ErrMissingLimit = errors.New("missing limit")
	// ErrEmptyWhitelist means a whitelist has no entries and would deny every action.
	ErrEmptyWhitelist = errors.New("empty whitelist would deny all actions")
	// ErrInvalidWindow means a time window has end <= start and would deny everything.
	ErrInvalidWindow = errors.New("time window end must be after start")
	// ErrInvalidAddress means an address is not 0x-prefixed 20-byte hex.
	ErrInvalidAddress = errors.New("invalid address")
	// ErrInvalidConfig wraps shape errors from the weakly-typed boundary.
	ErrInvalidConfig = errors.New("invalid rule config")
)
