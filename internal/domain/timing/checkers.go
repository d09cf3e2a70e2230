// Package timing implements the timing checkers: cooldowns, hour-of-day
// windows, schedules, and block/epoch/event gates.
package timing

import (
	"slices"
	"time"

	"github.com/Action-Gate/actiongate/internal/domain/rule"
	"github.com/Action-Gate/actiongate/internal/domain/verify"
)

// CooldownKey returns the last-action key for one sender.
func CooldownKey(addr rule.Address) string {
	return "cooldown:" + string(addr.Lower())
}

// CooldownChecker requires the sender's last recorded action to be older than
// the configured interval.
type CooldownChecker struct{}

func (CooldownChecker) Check(r rule.Rule, ctx verify.Context, state verify.StateStore) verify.Result {
	cfg, ok := r.Config.(*rule.CooldownConfig)
	if !ok {
		return verify.Fail(r.Kind, "rule config does not match kind %s", r.Kind)
	}
	if state == nil {
		return verify.Fail(r.Kind, "no state store supplied for stateful rule %s", r.Kind)
	}
	last, found := state.LastExecution(CooldownKey(ctx.Sender))
	if !found {
		return verify.Pass(r.Kind)
	}
	cooldown := time.Duration(cfg.CooldownSeconds) * time.Second
	elapsed := ctx.Time().Sub(last)
	if elapsed < cooldown {
		return verify.Fail(r.Kind, "cooldown active: %s remaining", (cooldown - elapsed).Truncate(time.Second)).
			WithData(map[string]any{
				"cooldownSeconds":  cfg.CooldownSeconds,
				"remainingSeconds": int64((cooldown - elapsed) / time.Second),
			})
	}
	return verify.Pass(r.Kind)
}

func (CooldownChecker) Record(r rule.Rule, ctx verify.Context, state verify.StateStore) {
	if _, ok := r.Config.(*rule.CooldownConfig); !ok || state == nil {
		return
	}
	state.RecordExecution(CooldownKey(ctx.Sender), ctx.Time())
}

// TimeWindowChecker allows actions only within [startHour, endHour) UTC.
type TimeWindowChecker struct{}

func (TimeWindowChecker) Check(r rule.Rule, ctx verify.Context, _ verify.StateStore) verify.Result {
	cfg, ok := r.Config.(*rule.TimeWindowConfig)
	if !ok {
		return verify.Fail(r.Kind, "rule config does not match kind %s", r.Kind)
	}
	hour := ctx.Time().UTC().Hour()
	if hour < cfg.StartHour || hour >= cfg.EndHour {
		return verify.Fail(r.Kind, "hour %02d UTC outside allowed window %02d:00-%02d:00",
			hour, cfg.StartHour, cfg.EndHour).
			WithData(map[string]any{"hour": hour, "startHour": cfg.StartHour, "endHour": cfg.EndHour})
	}
	return verify.Pass(r.Kind)
}

// ScheduleChecker matches the context time against a recurrence expression
// within ± tolerance seconds.
//
// Recurrence evaluation is deliberately the always-match fallback: the
// expression shape is validated at authoring time, but any instant currently
// matches. Computing real calendar recurrences is pending confirmed product
// intent; callers must not rely on schedule rules to deny.
type ScheduleChecker struct{}

func (ScheduleChecker) Check(r rule.Rule, _ verify.Context, _ verify.StateStore) verify.Result {
	if _, ok := r.Config.(*rule.ScheduleConfig); !ok {
		return verify.Fail(r.Kind, "rule config does not match kind %s", r.Kind)
	}
	return verify.Pass(r.Kind)
}

// BlockDelayChecker requires at least delayBlocks between the last action
// block and the current block height, both supplied as context facts. A
// missing lastActionBlock reads as zero, so fresh actors pass once the chain
// height itself clears the delay.
type BlockDelayChecker struct{}

func (BlockDelayChecker) Check(r rule.Rule, ctx verify.Context, _ verify.StateStore) verify.Result {
	cfg, ok := r.Config.(*rule.BlockDelayConfig)
	if !ok {
		return verify.Fail(r.Kind, "rule config does not match kind %s", r.Kind)
	}
	height := ctx.BlockHeight()
	last := ctx.LastActionBlock()
	if height < last+cfg.DelayBlocks {
		return verify.Fail(r.Kind, "need %d blocks since block %d, height is %d",
			cfg.DelayBlocks, last, height).
			WithData(map[string]any{"delayBlocks": cfg.DelayBlocks, "lastActionBlock": last, "blockHeight": height})
	}
	return verify.Pass(r.Kind)
}

// EpochChecker allows actions only within [minEpoch, maxEpoch]. A zero
// maxEpoch means no upper bound. The epoch counter is a context fact.
type EpochChecker struct{}

func (EpochChecker) Check(r rule.Rule, ctx verify.Context, _ verify.StateStore) verify.Result {
	cfg, ok := r.Config.(*rule.EpochConfig)
	if !ok {
		return verify.Fail(r.Kind, "rule config does not match kind %s", r.Kind)
	}
	epoch := ctx.Epoch()
	if epoch < cfg.MinEpoch {
		return verify.Fail(r.Kind, "epoch %d before activation epoch %d", epoch, cfg.MinEpoch).
			WithData(map[string]any{"epoch": epoch, "minEpoch": cfg.MinEpoch})
	}
	if cfg.MaxEpoch != 0 && epoch > cfg.MaxEpoch {
		return verify.Fail(r.Kind, "epoch %d past expiry epoch %d", epoch, cfg.MaxEpoch).
			WithData(map[string]any{"epoch": epoch, "maxEpoch": cfg.MaxEpoch})
	}
	return verify.Pass(r.Kind)
}

// EventTriggerChecker denies until the named event appears among the
// context's triggered events. An unsignaled event is a denial, not a neutral
// default: a trigger that has not fired cannot pass.
type EventTriggerChecker struct{}

func (EventTriggerChecker) Check(r rule.Rule, ctx verify.Context, _ verify.StateStore) verify.Result {
	cfg, ok := r.Config.(*rule.EventTriggerConfig)
	if !ok {
		return verify.Fail(r.Kind, "rule config does not match kind %s", r.Kind)
	}
	if !slices.Contains(ctx.TriggeredEvents(), cfg.EventName) {
		return verify.Fail(r.Kind, "event %q has not been signaled", cfg.EventName).
			WithData(map[string]any{"eventName": cfg.EventName})
	}
	return verify.Pass(r.Kind)
}

// Compile-time interface verification.
var (
	_ verify.Checker  = CooldownChecker{}
	_ verify.Recorder = CooldownChecker{}
	_ verify.Checker  = TimeWindowChecker{}
	_ verify.Checker  = ScheduleChecker{}
	_ verify.Checker  = BlockDelayChecker{}
	_ verify.Checker  = EpochChecker{}
	_ verify.Checker  = EventTriggerChecker{}
)
