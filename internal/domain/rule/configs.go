package rule

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// validate is the shared struct validator. Tags cover per-field shape; the
// cross-field deny-all footguns are checked explicitly in each Validate.
var validate = validator.New(validator.WithRequiredStructEnabled())

// AddressType selects which context address a scoped limit keys on.
type AddressType string

const (
	AddressSender    AddressType = "sender"
	AddressOrigin    AddressType = "origin"
	AddressRecipient AddressType = "recipient"
)

// MultiSigConfig requires a quorum of distinct authorized signers.
type MultiSigConfig struct {
	// Signers are the authorized signer addresses, canonical lowercase.
	Signers []Address `json:"signers" validate:"required,min=1"`
	// RequiredSignatures is the quorum size.
	RequiredSignatures int `json:"requiredSignatures" validate:"required,min=1"`
	// CollectionWindowSeconds bounds the age of a signature proof. Zero means
	// proofs never go stale.
	CollectionWindowSeconds int64 `json:"collectionWindow,omitempty" validate:"min=0"`
}

func (c *MultiSigConfig) Kind() Kind { return KindMultiSig }

func (c *MultiSigConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	for _, s := range c.Signers {
		if !s.Valid() {
			return fmt.Errorf("%w: signer %q", ErrInvalidAddress, s)
		}
	}
	if c.RequiredSignatures > len(c.Signers) {
		return fmt.Errorf("%w: quorum %d exceeds %d signers", ErrInvalidConfig, c.RequiredSignatures, len(c.Signers))
	}
	return nil
}

// CooldownConfig requires the last action for the sender to be older than the interval.
type CooldownConfig struct {
	CooldownSeconds int64 `json:"cooldownSeconds" validate:"required,min=1"`
}

func (c *CooldownConfig) Kind() Kind { return KindCooldown }

func (c *CooldownConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// TimeWindowConfig allows actions only within [StartHour, EndHour) UTC.
type TimeWindowConfig struct {
	StartHour int `json:"startHour" validate:"min=0,max=23"`
	EndHour   int `json:"endHour" validate:"min=0,max=23"`
}

func (c *TimeWindowConfig) Kind() Kind { return KindTimeWindow }

func (c *TimeWindowConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.EndHour <= c.StartHour {
		return fmt.Errorf("%w: start=%d end=%d", ErrInvalidWindow, c.StartHour, c.EndHour)
	}
	return nil
}

// ScheduleConfig matches timestamps against a recurrence expression with a
// tolerance window of ± ToleranceSeconds around each recurrence instant.
type ScheduleConfig struct {
	// Expression is a five-field cron-style recurrence expression.
	Expression string `json:"expression" validate:"required"`
	// ToleranceSeconds widens each recurrence instant into a window.
	ToleranceSeconds int64 `json:"toleranceSeconds,omitempty" validate:"min=0"`
}

func (c *ScheduleConfig) Kind() Kind { return KindSchedule }

func (c *ScheduleConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := validateScheduleExpression(c.Expression); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// BlockDelayConfig requires at least DelayBlocks between the sender's last
// recorded action block and the current block height.
type BlockDelayConfig struct {
	DelayBlocks uint64 `json:"delayBlocks" validate:"required,min=1"`
}

func (c *BlockDelayConfig) Kind() Kind { return KindBlockDelay }

func (c *BlockDelayConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// EpochConfig gates on an externally supplied epoch counter.
// MaxEpoch zero means no upper bound.
type EpochConfig struct {
	MinEpoch uint64 `json:"minEpoch"`
	MaxEpoch uint64 `json:"maxEpoch,omitempty"`
}

func (c *EpochConfig) Kind() Kind { return KindEpoch }

func (c *EpochConfig) Validate() error {
	if c.MaxEpoch != 0 && c.MaxEpoch < c.MinEpoch {
		return fmt.Errorf("%w: maxEpoch %d below minEpoch %d", ErrInvalidConfig, c.MaxEpoch, c.MinEpoch)
	}
	return nil
}

// EventTriggerConfig gates on an externally signaled event. The action is
// denied until the named event appears in the context's triggered events.
type EventTriggerConfig struct {
	EventName string `json:"eventName" validate:"required"`
}

func (c *EventTriggerConfig) Kind() Kind { return KindEventTrigger }

func (c *EventTriggerConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// PerAddressConfig limits executions per address over a sliding window.
type PerAddressConfig struct {
	MaxExecutions int   `json:"maxExecutions" validate:"required,min=1"`
	WindowSeconds int64 `json:"windowSeconds" validate:"required,min=1"`
	// AddressType selects sender (default), origin, or recipient.
	AddressType AddressType `json:"addressType,omitempty" validate:"omitempty,oneof=sender origin recipient"`
}

func (c *PerAddressConfig) Kind() Kind { return KindPerAddress }

func (c *PerAddressConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// PerFunctionConfig limits executions of one named function over a sliding window.
type PerFunctionConfig struct {
	FunctionName  string `json:"functionName" validate:"required"`
	MaxExecutions int    `json:"maxExecutions" validate:"required,min=1"`
	WindowSeconds int64  `json:"windowSeconds" validate:"required,min=1"`
}

func (c *PerFunctionConfig) Kind() Kind { return KindPerFunction }

func (c *PerFunctionConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// GlobalRateConfig limits all executions, regardless of sender, over a sliding window.
type GlobalRateConfig struct {
	MaxExecutions int   `json:"maxExecutions" validate:"required,min=1"`
	WindowSeconds int64 `json:"windowSeconds" validate:"required,min=1"`
}

func (c *GlobalRateConfig) Kind() Kind { return KindGlobalRate }

func (c *GlobalRateConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// ValueLimitConfig caps accumulated transferred value per token, with an
// optional hard per-transaction ceiling. The accumulator never decays; only
// an explicit state reset clears it.
type ValueLimitConfig struct {
	MaxValue *Amount `json:"maxValue"`
	MaxPerTx *Amount `json:"maxPerTx,omitempty"`
	// Token scopes the accumulator. Empty means the native token.
	Token string `json:"token,omitempty"`
}

func (c *ValueLimitConfig) Kind() Kind { return KindValueLimit }

func (c *ValueLimitConfig) Validate() error {
	if c.MaxValue == nil || c.MaxValue.Sign() <= 0 {
		return fmt.Errorf("%w: maxValue", ErrMissingLimit)
	}
	return nil
}

// GasLimitConfig caps accumulated gas, with an optional per-transaction ceiling.
type GasLimitConfig struct {
	MaxGas      uint64 `json:"maxGas" validate:"required,min=1"`
	MaxGasPerTx uint64 `json:"maxGasPerTx,omitempty"`
}

func (c *GasLimitConfig) Kind() Kind { return KindGasLimit }

func (c *GasLimitConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// DailyLimitConfig caps executions per sender over a sliding 24-hour window.
type DailyLimitConfig struct {
	Limit uint64 `json:"limit" validate:"required,min=1"`
}

func (c *DailyLimitConfig) Kind() Kind { return KindDailyLimit }

func (c *DailyLimitConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// MaxSpendConfig caps the sender's accumulated spend (no decay).
type MaxSpendConfig struct {
	Limit *Amount `json:"limit"`
}

func (c *MaxSpendConfig) Kind() Kind { return KindMaxSpend }

func (c *MaxSpendConfig) Validate() error {
	if c.Limit == nil || c.Limit.Sign() <= 0 {
		return ErrMissingLimit
	}
	return nil
}

// MaxPerTxConfig caps the value of any single transaction.
type MaxPerTxConfig struct {
	Limit *Amount `json:"limit"`
}

func (c *MaxPerTxConfig) Kind() Kind { return KindMaxPerTx }

func (c *MaxPerTxConfig) Validate() error {
	if c.Limit == nil || c.Limit.Sign() <= 0 {
		return ErrMissingLimit
	}
	return nil
}

// RequireBalanceConfig requires the sender's reported balance to meet a floor.
type RequireBalanceConfig struct {
	Limit *Amount `json:"limit"`
}

func (c *RequireBalanceConfig) Kind() Kind { return KindRequireBalance }

func (c *RequireBalanceConfig) Validate() error {
	if c.Limit == nil || c.Limit.Sign() <= 0 {
		return ErrMissingLimit
	}
	return nil
}

// ProgressiveStep maps an experience level to an execution ceiling.
type ProgressiveStep struct {
	// ExecutionsRequired is the level at which this step stops applying; the
	// first step whose requirement exceeds the current level is selected.
	ExecutionsRequired int `json:"executionsRequired" validate:"min=0"`
	Limit              int `json:"limit" validate:"required,min=1"`
}

// ProgressiveConfig grows the allowed execution rate with the actor's level.
// Either Steps or the linear (InitialLimit, IncreaseRate, MaxLimit) form must
// be set; Steps wins when both are present.
type ProgressiveConfig struct {
	Steps         []ProgressiveStep `json:"steps,omitempty" validate:"omitempty,dive"`
	InitialLimit  int               `json:"initialLimit,omitempty" validate:"min=0"`
	IncreaseRate  int               `json:"increaseRate,omitempty" validate:"min=0"`
	MaxLimit      int               `json:"maxLimit,omitempty" validate:"min=0"`
	WindowSeconds int64             `json:"windowSeconds" validate:"required,min=1"`
}

func (c *ProgressiveConfig) Kind() Kind { return KindProgressive }

func (c *ProgressiveConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if len(c.Steps) == 0 && c.InitialLimit <= 0 {
		return fmt.Errorf("%w: progressive rule needs steps or initialLimit", ErrInvalidConfig)
	}
	if len(c.Steps) == 0 && c.MaxLimit > 0 && c.MaxLimit < c.InitialLimit {
		return fmt.Errorf("%w: maxLimit %d below initialLimit %d", ErrInvalidConfig, c.MaxLimit, c.InitialLimit)
	}
	return nil
}

// ReputationTier maps a reputation floor to an execution ceiling.
type ReputationTier struct {
	MinReputation int64 `json:"minReputation"`
	Limit         int   `json:"limit" validate:"required,min=1"`
}

// ReputationConfig selects an execution ceiling by the actor's reputation.
type ReputationConfig struct {
	Tiers []ReputationTier `json:"tiers" validate:"required,min=1,dive"`
	// BaseLimit applies when no tier is met. Zero denies untiered actors.
	BaseLimit int `json:"baseLimit,omitempty" validate:"min=0"`
	// MaxLimit caps the selected ceiling. Zero means no cap.
	MaxLimit      int   `json:"maxLimit,omitempty" validate:"min=0"`
	WindowSeconds int64 `json:"windowSeconds" validate:"required,min=1"`
}

func (c *ReputationConfig) Kind() Kind { return KindReputation }

func (c *ReputationConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// ActionWhitelistConfig allows only the listed actions.
type ActionWhitelistConfig struct {
	Actions []ActionID `json:"actions"`
}

func (c *ActionWhitelistConfig) Kind() Kind { return KindActionWhitelist }

// Validate rejects the empty whitelist: it would deny every action.
func (c *ActionWhitelistConfig) Validate() error {
	if len(c.Actions) == 0 {
		return ErrEmptyWhitelist
	}
	return nil
}

// ActionBlacklistConfig denies the listed actions. May legitimately be empty.
type ActionBlacklistConfig struct {
	Actions []ActionID `json:"actions"`
}

func (c *ActionBlacklistConfig) Kind() Kind { return KindActionBlacklist }

func (c *ActionBlacklistConfig) Validate() error { return nil }

// TargetWhitelistConfig allows only the listed recipient addresses.
type TargetWhitelistConfig struct {
	Targets []Address `json:"targets"`
}

func (c *TargetWhitelistConfig) Kind() Kind { return KindTargetWhitelist }

func (c *TargetWhitelistConfig) Validate() error {
	if len(c.Targets) == 0 {
		return ErrEmptyWhitelist
	}
	return validateAddresses(c.Targets)
}

// TargetBlacklistConfig denies the listed recipient addresses.
type TargetBlacklistConfig struct {
	Targets []Address `json:"targets"`
}

func (c *TargetBlacklistConfig) Kind() Kind { return KindTargetBlacklist }

func (c *TargetBlacklistConfig) Validate() error {
	return validateAddresses(c.Targets)
}

func validateAddresses(addrs []Address) error {
	for _, a := range addrs {
		if !a.Valid() {
			return fmt.Errorf("%w: %q", ErrInvalidAddress, a)
		}
	}
	return nil
}

// RequirePaymentConfig is a virtual kind: the action must carry a verified
// payment of at least Amount. Not a native on-chain tag; wire-wrapped under
// the custom code.
type RequirePaymentConfig struct {
	Amount *Amount `json:"amount"`
	Token  string  `json:"token,omitempty"`
}

func (c *RequirePaymentConfig) Kind() Kind { return KindRequirePayment }

func (c *RequirePaymentConfig) Validate() error {
	if c.Amount == nil || c.Amount.Sign() <= 0 {
		return fmt.Errorf("%w: amount", ErrMissingLimit)
	}
	return nil
}

// ExpressionConfig is a virtual kind: a CEL expression over the verification
// context that must evaluate to true.
type ExpressionConfig struct {
	Expression string `json:"expression" validate:"required"`
}

func (c *ExpressionConfig) Kind() Kind { return KindExpression }

func (c *ExpressionConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// CustomConfig carries an opaque config this engine stores and transports but
// never evaluates. The dispatcher fails closed on it.
type CustomConfig struct {
	Fields map[string]any `json:"fields,omitempty"`
}

func (c *CustomConfig) Kind() Kind { return KindCustom }

func (c *CustomConfig) Validate() error { return nil }

// EmptyConfig returns the zero config for a kind. The wire codec degrades to
// this when it meets malformed bytes from older or foreign encoders.
func EmptyConfig(k Kind) Config {
	switch k {
	case KindMultiSig:
		return &MultiSigConfig{}
	case KindCooldown:
		return &CooldownConfig{}
	case KindTimeWindow:
		return &TimeWindowConfig{}
	case KindSchedule:
		return &ScheduleConfig{}
	case KindBlockDelay:
		return &BlockDelayConfig{}
	case KindEpoch:
		return &EpochConfig{}
	case KindEventTrigger:
		return &EventTriggerConfig{}
	case KindPerAddress:
		return &PerAddressConfig{}
	case KindPerFunction:
		return &PerFunctionConfig{}
	case KindGlobalRate:
		return &GlobalRateConfig{}
	case KindValueLimit:
		return &ValueLimitConfig{}
	case KindGasLimit:
		return &GasLimitConfig{}
	case KindDailyLimit:
		return &DailyLimitConfig{}
	case KindMaxSpend:
		return &MaxSpendConfig{}
	case KindMaxPerTx:
		return &MaxPerTxConfig{}
	case KindRequireBalance:
		return &RequireBalanceConfig{}
	case KindProgressive:
		return &ProgressiveConfig{}
	case KindReputation:
		return &ReputationConfig{}
	case KindActionWhitelist:
		return &ActionWhitelistConfig{}
	case KindActionBlacklist:
		return &ActionBlacklistConfig{}
	case KindTargetWhitelist:
		return &TargetWhitelistConfig{}
	case KindTargetBlacklist:
		return &TargetBlacklistConfig{}
	case KindRequirePayment:
		return &RequirePaymentConfig{}
	case KindExpression:
		return &ExpressionConfig{}
	case KindCustom:
		return &CustomConfig{}
	default:
		return nil
	}
}
