// Package acl implements the action and target list checkers. Action lists
// hold fixed-width hashed identifiers (rule.HashAction), target lists hold
// canonical lowercase addresses.
package acl

import (
	"slices"

	"github.com/Action-Gate/actiongate/internal/domain/rule"
	"github.com/Action-Gate/actiongate/internal/domain/verify"
)

// ActionWhitelistChecker allows only listed actions. The action name comes
// from the "action" context fact; an empty name never matches a whitelist.
type ActionWhitelistChecker struct{}

func (ActionWhitelistChecker) Check(r rule.Rule, ctx verify.Context, _ verify.StateStore) verify.Result {
	cfg, ok := r.Config.(*rule.ActionWhitelistConfig)
	if !ok {
		return verify.Fail(r.Kind, "rule config does not match kind %s", r.Kind)
	}
	action := ctx.Action()
	if action == "" || !slices.Contains(cfg.Actions, rule.HashAction(action)) {
		return verify.Fail(r.Kind, "action %q is not whitelisted", action).
			WithData(map[string]any{"action": action})
	}
	return verify.Pass(r.Kind)
}

// ActionBlacklistChecker denies listed actions.
type ActionBlacklistChecker struct{}

func (ActionBlacklistChecker) Check(r rule.Rule, ctx verify.Context, _ verify.StateStore) verify.Result {
	cfg, ok := r.Config.(*rule.ActionBlacklistConfig)
	if !ok {
		return verify.Fail(r.Kind, "rule config does not match kind %s", r.Kind)
	}
	action := ctx.Action()
	if action != "" && slices.Contains(cfg.Actions, rule.HashAction(action)) {
		return verify.Fail(r.Kind, "action %q is blacklisted", action).
			WithData(map[string]any{"action": action})
	}
	return verify.Pass(r.Kind)
}

// TargetWhitelistChecker allows only listed recipient addresses.
type TargetWhitelistChecker struct{}

func (TargetWhitelistChecker) Check(r rule.Rule, ctx verify.Context, _ verify.StateStore) verify.Result {
	cfg, ok := r.Config.(*rule.TargetWhitelistConfig)
	if !ok {
		return verify.Fail(r.Kind, "rule config does not match kind %s", r.Kind)
	}
	recipient := ctx.Recipient()
	if recipient == "" || !slices.Contains(cfg.Targets, recipient) {
		return verify.Fail(r.Kind, "target %q is not whitelisted", recipient).
			WithData(map[string]any{"recipient": string(recipient)})
	}
	return verify.Pass(r.Kind)
}

// TargetBlacklistChecker denies listed recipient addresses.
type TargetBlacklistChecker struct{}

func (TargetBlacklistChecker) Check(r rule.Rule, ctx verify.Context, _ verify.StateStore) verify.Result {
	cfg, ok := r.Config.(*rule.TargetBlacklistConfig)
	if !ok {
		return verify.Fail(r.Kind, "rule config does not match kind %s", r.Kind)
	}
	recipient := ctx.Recipient()
	if recipient != "" && slices.Contains(cfg.Targets, recipient) {
		return verify.Fail(r.Kind, "target %q is blacklisted", recipient).
			WithData(map[string]any{"recipient": string(recipient)})
	}
	return verify.Pass(r.Kind)
}

// Compile-time interface verification.
var (
	_ verify.Checker = ActionWhitelistChecker{}
	_ verify.Checker = ActionBlacklistChecker{}
	_ verify.Checker = TargetWhitelistChecker{}
	_ verify.Checker = TargetBlacklistChecker{}
)
