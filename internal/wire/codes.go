// Package wire implements the compact binary encoding between in-memory
// rules and the form an external verifier consumes. The byte layout per rule
// code is a stable contract: changing a code's encoding is a breaking change
// that requires a new code.
package wire

import "github.com/Action-Gate/actiongate/internal/domain/rule"

// Rule codes. Codes 1-9 have dedicated fixed layouts; codes 10-22 carry a
// length-prefixed JSON payload; CodeCustom wraps virtual kinds and opaque
// custom configs.
const (
	CodeMaxSpend       uint8 = 1
	CodeMaxPerTx       uint8 = 2
	CodeDailyLimit     uint8 = 3
	CodeRequireBalance uint8 = 4

	CodeActionWhitelist uint8 = 5
	CodeActionBlacklist uint8 = 6
	CodeTargetWhitelist uint8 = 7
	CodeTargetBlacklist uint8 = 8

	CodeTimeWindow uint8 = 9

	CodeMultiSig     uint8 = 10
	CodeCooldown     uint8 = 11
	CodeSchedule     uint8 = 12
	CodeBlockDelay   uint8 = 13
	CodeEpoch        uint8 = 14
	CodeEventTrigger uint8 = 15
	CodePerAddress   uint8 = 16
	CodePerFunction  uint8 = 17
	CodeGlobalRate   uint8 = 18
	CodeValueLimit   uint8 = 19
	CodeGasLimit     uint8 = 20
	CodeProgressive  uint8 = 21
	CodeReputation   uint8 = 22

	// CodeCustom is the generic on-chain tag. Virtual kinds (require-payment,
	// expression) are wrapped under it with the virtualMagic discriminator.
	CodeCustom uint8 = 255
)

// virtualMagic is the first payload byte marking a virtual kind wrapped under
// CodeCustom. Payloads not starting with it decode as plain custom configs.
const virtualMagic = 0xA5

var kindToCode = map[rule.Kind]uint8{
	rule.KindMaxSpend:        CodeMaxSpend,
	rule.KindMaxPerTx:        CodeMaxPerTx,
	rule.KindDailyLimit:      CodeDailyLimit,
	rule.KindRequireBalance:  CodeRequireBalance,
	rule.KindActionWhitelist: CodeActionWhitelist,
	rule.KindActionBlacklist: CodeActionBlacklist,
	rule.KindTargetWhitelist: CodeTargetWhitelist,
	rule.KindTargetBlacklist: CodeTargetBlacklist,
	rule.KindTimeWindow:      CodeTimeWindow,
	rule.KindMultiSig:        CodeMultiSig,
	rule.KindCooldown:        CodeCooldown,
	rule.KindSchedule:        CodeSchedule,
	rule.KindBlockDelay:      CodeBlockDelay,
	rule.KindEpoch:           CodeEpoch,
	rule.KindEventTrigger:    CodeEventTrigger,
	rule.KindPerAddress:      CodePerAddress,
	rule.KindPerFunction:     CodePerFunction,
	rule.KindGlobalRate:      CodeGlobalRate,
	rule.KindValueLimit:      CodeValueLimit,
	rule.KindGasLimit:        CodeGasLimit,
	rule.KindProgressive:     CodeProgressive,
	rule.KindReputation:      CodeReputation,
	rule.KindRequirePayment:  CodeCustom,
	rule.KindExpression:      CodeCustom,
	rule.KindCustom:          CodeCustom,
}

var codeToKind = map[uint8]rule.Kind{
	CodeMaxSpend:        rule.KindMaxSpend,
	CodeMaxPerTx:        rule.KindMaxPerTx,
	CodeDailyLimit:      rule.KindDailyLimit,
	CodeRequireBalance:  rule.KindRequireBalance,
	CodeActionWhitelist: rule.KindActionWhitelist,
	CodeActionBlacklist: rule.KindActionBlacklist,
	CodeTargetWhitelist: rule.KindTargetWhitelist,
	CodeTargetBlacklist: rule.KindTargetBlacklist,
	CodeTimeWindow:      rule.KindTimeWindow,
	CodeMultiSig:        rule.KindMultiSig,
	CodeCooldown:        rule.KindCooldown,
	CodeSchedule:        rule.KindSchedule,
	CodeBlockDelay:      rule.KindBlockDelay,
	CodeEpoch:           rule.KindEpoch,
	CodeEventTrigger:    rule.KindEventTrigger,
	CodePerAddress:      rule.KindPerAddress,
	CodePerFunction:     rule.KindPerFunction,
	CodeGlobalRate:      rule.KindGlobalRate,
	CodeValueLimit:      rule.KindValueLimit,
	CodeGasLimit:        rule.KindGasLimit,
	CodeProgressive:     rule.KindProgressive,
	CodeReputation:      rule.KindReputation,
	CodeCustom:          rule.KindCustom,
}

// CodeFor returns the on-chain code for a rule kind.
func CodeFor(k rule.Kind) (uint8, bool) {
	c, ok := kindToCode[k]
	return c, ok
}

// KindFor returns the rule kind for an on-chain code. Virtual kinds all map
// to CodeCustom, so CodeCustom resolves to KindCustom until the payload
// discriminator says otherwise.
func KindFor(code uint8) (rule.Kind, bool) {
	k, ok := codeToKind[code]
	return k, ok
}
