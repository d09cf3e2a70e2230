package service_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/Action-Gate/actiongate/internal/adapter/outbound/memory"
	"github.com/Action-Gate/actiongate/internal/domain/rule"
	"github.com/Action-Gate/actiongate/internal/domain/verify"
	"github.com/Action-Gate/actiongate/internal/service"
)

const sender = rule.Address("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newService(t *testing.T) (*service.EvaluationService, *memory.StateStore) {
	t.Helper()
	store := memory.NewStateStore()
	t.Cleanup(store.Stop)
	svc, err := service.NewEvaluationService(store, testLogger())
	if err != nil {
		t.Fatalf("NewEvaluationService() error: %v", err)
	}
	return svc, store
}

func ctxAt(now time.Time) verify.Context {
	return verify.Context{
		Sender:    sender,
		Timestamp: now.UnixMilli(),
		Data:      map[string]any{"action": "transfer"},
	}
}

func perAddressRule(max int, windowSeconds int64) rule.Rule {
	return rule.Rule{Kind: rule.KindPerAddress, Config: &rule.PerAddressConfig{
		MaxExecutions: max,
		WindowSeconds: windowSeconds,
	}}
}

func TestDefaultDispatcherRegistersStandardKinds(t *testing.T) {
	t.Parallel()

	d, err := service.DefaultDispatcher()
	if err != nil {
		t.Fatalf("DefaultDispatcher() error: %v", err)
	}

	registered := make(map[rule.Kind]bool)
	for _, k := range d.Kinds() {
		registered[k] = true
	}
	for _, k := range rule.Kinds() {
		if k == rule.KindCustom {
			if registered[k] {
				t.Error("custom kind must stay unregistered so it fails closed")
			}
			continue
		}
		if !registered[k] {
			t.Errorf("kind %s has no registered checker", k)
		}
	}
}

func TestAuthorizeEndToEnd(t *testing.T) {
	t.Parallel()

	svc, _ := newService(t)
	ctx := context.Background()
	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	rules := []rule.Rule{perAddressRule(2, 60)}

	out := svc.Authorize(ctx, rules, ctxAt(now))
	if !out.Allowed {
		t.Fatalf("fresh sender denied: %s", out.Reason)
	}
	if len(out.Results) != 1 {
		t.Fatalf("Results len = %d, want 1", len(out.Results))
	}

	svc.Record(rules, ctxAt(now))
	svc.Record(rules, ctxAt(now.Add(10*time.Second)))

	out = svc.Authorize(ctx, rules, ctxAt(now.Add(20*time.Second)))
	if out.Allowed {
		t.Fatal("sender at the limit must be denied")
	}
	if out.Reason == "" {
		t.Error("denial must carry a reason")
	}

	// Outside the window the budget is back.
	out = svc.Authorize(ctx, rules, ctxAt(now.Add(90*time.Second)))
	if !out.Allowed {
		t.Errorf("sender outside the window denied: %s", out.Reason)
	}
}

func TestAuthorizeFailsClosedOnUnevaluatedKind(t *testing.T) {
	t.Parallel()

	svc, _ := newService(t)
	rules := []rule.Rule{{Kind: rule.KindCustom, Config: &rule.CustomConfig{
		Fields: map[string]any{"vendor": "acme"},
	}}}

	out := svc.Authorize(context.Background(), rules, ctxAt(time.Now()))
	if out.Allowed {
		t.Fatal("custom rules must fail closed")
	}
}

func TestAuthorizeAndExecuteRecordsOnAllow(t *testing.T) {
	t.Parallel()

	svc, _ := newService(t)
	ctx := context.Background()
	now := time.Now()
	rules := []rule.Rule{perAddressRule(1, 3600)}

	executed := false
	out, err := svc.AuthorizeAndExecute(ctx, rules, ctxAt(now), func() error {
		executed = true
		return nil
	})
	if err != nil {
		t.Fatalf("AuthorizeAndExecute() error: %v", err)
	}
	if !out.Allowed || !executed {
		t.Fatalf("allowed = %v executed = %v, want both true", out.Allowed, executed)
	}

	// The execution was recorded, so the one-per-hour budget is spent.
	out, err = svc.AuthorizeAndExecute(ctx, rules, ctxAt(now.Add(time.Second)), func() error {
		t.Error("denied action must not run")
		return nil
	})
	if err != nil {
		t.Fatalf("second AuthorizeAndExecute() error: %v", err)
	}
	if out.Allowed {
		t.Fatal("second execution inside the window must be denied")
	}
}

func TestAuthorizeAndExecuteActionErrorSkipsRecord(t *testing.T) {
	t.Parallel()

	svc, _ := newService(t)
	ctx := context.Background()
	now := time.Now()
	rules := []rule.Rule{perAddressRule(1, 3600)}

	boom := errors.New("boom")
	out, err := svc.AuthorizeAndExecute(ctx, rules, ctxAt(now), func() error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("error = %v, want wrapped boom", err)
	}
	if !out.Allowed {
		t.Fatal("authorization itself should have passed")
	}

	// The failed action consumed nothing.
	out = svc.Authorize(ctx, rules, ctxAt(now.Add(time.Second)))
	if !out.Allowed {
		t.Errorf("budget consumed by a failed action: %s", out.Reason)
	}
}

func TestAuthorizeAndExecuteNilAction(t *testing.T) {
	t.Parallel()

	svc, _ := newService(t)
	now := time.Now()
	rules := []rule.Rule{perAddressRule(1, 3600)}

	out, err := svc.AuthorizeAndExecute(context.Background(), rules, ctxAt(now), nil)
	if err != nil || !out.Allowed {
		t.Fatalf("nil action: allowed = %v err = %v", out.Allowed, err)
	}
	// A nil action still records: the caller executes out of band.
	out = svc.Authorize(context.Background(), rules, ctxAt(now.Add(time.Second)))
	if out.Allowed {
		t.Fatal("nil-action execution must still consume the budget")
	}
}

func TestCleanupDropsExpiredHistory(t *testing.T) {
	t.Parallel()

	svc, store := newService(t)
	now := time.Now()
	rules := []rule.Rule{perAddressRule(5, 60)}

	svc.Record(rules, ctxAt(now.Add(-2*time.Hour)))
	svc.Record(rules, ctxAt(now.Add(-10*time.Second)))

	before := store.Keys()
	svc.Cleanup(rules, now)
	if store.Keys() > before {
		t.Errorf("cleanup grew the store: %d -> %d", before, store.Keys())
	}

	out := svc.Authorize(context.Background(), rules, ctxAt(now))
	if !out.Allowed {
		t.Errorf("recent history should survive cleanup: %s", out.Reason)
	}
}

func TestLongestWindow(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		rules []rule.Rule
		want  time.Duration
	}{
		{"empty", nil, 0},
		{"stateless only", []rule.Rule{{Kind: rule.KindMaxPerTx, Config: &rule.MaxPerTxConfig{Limit: rule.NewAmount(1)}}}, 0},
		{"per-address", []rule.Rule{perAddressRule(1, 60)}, time.Minute},
		{"daily beats per-address", []rule.Rule{
			perAddressRule(1, 60),
			{Kind: rule.KindDailyLimit, Config: &rule.DailyLimitConfig{Limit: 1}},
		}, 24 * time.Hour},
		{"cooldown counts", []rule.Rule{
			{Kind: rule.KindCooldown, Config: &rule.CooldownConfig{CooldownSeconds: 7200}},
		}, 2 * time.Hour},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := service.LongestWindow(tt.rules); got != tt.want {
				t.Errorf("LongestWindow() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWithDispatcherOverride(t *testing.T) {
	t.Parallel()

	store := memory.NewStateStore()
	t.Cleanup(store.Stop)

	d := verify.NewDispatcher()
	d.Register(rule.KindPerAddress, verify.CheckerFunc(func(r rule.Rule, _ verify.Context, _ verify.StateStore) verify.Result {
		return verify.Fail(r.Kind, "always deny")
	}))
	svc, err := service.NewEvaluationService(store, testLogger(), service.WithDispatcher(d))
	if err != nil {
		t.Fatalf("NewEvaluationService() error: %v", err)
	}

	out := svc.Authorize(context.Background(), []rule.Rule{perAddressRule(100, 60)}, ctxAt(time.Now()))
	if out.Allowed {
		t.Fatal("override dispatcher was not used")
	}
	if out.Reason != "always deny" {
		t.Errorf("Reason = %q, want %q", out.Reason, "always deny")
	}
}
