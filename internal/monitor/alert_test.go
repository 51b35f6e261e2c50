package monitor

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/hyp3rd/dbplane/internal/config"
	"github.com/hyp3rd/dbplane/internal/endpoint"
	"github.com/hyp3rd/dbplane/internal/logger"
	"github.com/hyp3rd/dbplane/internal/logger/adapter"
)

func testLogger(t *testing.T) logger.Logger {
	t.Helper()

	cfg := logger.DefaultConfig()
	cfg.Output = io.Discard

	log, err := adapter.NewAdapter(cfg)
	if err != nil {
		t.Fatalf("constructing test logger: %v", err)
	}

	return log
}

type fakeNotifier struct {
	calls []Alert
}

func (f *fakeNotifier) Name() string { return "fake" }

func (f *fakeNotifier) Notify(_ context.Context, alert Alert) error {
	f.calls = append(f.calls, alert)

	return nil
}

type fakeRecorder struct {
	saved []Alert
}

func (f *fakeRecorder) SaveAlert(_ context.Context, alert Alert) error {
	f.saved = append(f.saved, alert)

	return nil
}

// constantRule builds an endpoint-scoped rule whose value comes from a
// slice of samples consumed one per call, for deterministic scenarios.
func constantRule(name string, cond Condition, threshold float64, cooldown time.Duration, samples []float64) *Rule {
	i := 0

	r := Rule{
		Name:      name,
		Metric:    name,
		Condition: cond,
		Threshold: threshold,
		Cooldown:  cooldown,
		Scope:     ScopeEndpoint,
	}
	r.Value = func(_ *endpoint.Endpoint, _ float64) float64 {
		if i >= len(samples) {
			return samples[len(samples)-1]
		}

		v := samples[i]
		i++

		return v
	}

	return &r
}

func TestDefaultRulesEvaluate(t *testing.T) {
	rules := DefaultRules(time.Minute)
	if len(rules) != 3 {
		t.Fatalf("expected 3 default rules, got %d", len(rules))
	}

	ep := endpoint.New("ep0", "dsn", endpoint.RolePrimary, 1, "", "")

	for i := 0; i < 3; i++ {
		ep.Metrics.RecordResult(time.Millisecond, false)
	}

	value := rules[0].Value(ep, Score(ep))
	if !rules[0].violated(value) {
		t.Fatal("expected high_error_rate to fire with a 100% error rate")
	}

	healthy := endpoint.New("ep1", "dsn", endpoint.RolePrimary, 1, "", "")
	if rules[0].violated(rules[0].Value(healthy, Score(healthy))) {
		t.Fatal("expected high_error_rate not to fire on a healthy endpoint")
	}
}

func TestSeverityFromDeviation(t *testing.T) {
	cases := []struct {
		deviation float64
		want      Severity
	}{
		{0.1, SeverityInfo},
		{0.25, SeverityWarning},
		{0.5, SeverityCritical},
		{1.0, SeverityEmergency},
	}

	for _, tt := range cases {
		if got := severityFromDeviation(tt.deviation); got != tt.want {
			t.Errorf("severityFromDeviation(%v) = %v, want %v", tt.deviation, got, tt.want)
		}
	}
}

func TestAlertManagerFiresOnceThenUpdates(t *testing.T) {
	reg := endpoint.NewRegistry()
	ep := endpoint.New("ep0", "dsn", endpoint.RolePrimary, 1, "", "")
	reg.Register(ep)

	notifier := &fakeNotifier{}
	rules := []Rule{*constantRule("always", ConditionAbove, 0, time.Hour, []float64{1, 1})}

	cfg := &config.MonitorConfig{AlertTick: time.Hour, MaxAlertsPerHour: 100, DefaultCooldown: time.Hour}
	am := NewAlertManager(cfg, reg, rules, []Notifier{notifier}, nil, testLogger(t))

	am.evaluate(context.Background())
	am.evaluate(context.Background())

	if len(notifier.calls) != 1 {
		t.Fatalf("expected exactly 1 dispatched alert since the second sample updates rather than re-fires, got %d", len(notifier.calls))
	}

	if len(am.ActiveAlerts()) != 1 {
		t.Fatalf("expected exactly 1 unresolved alert, got %d", len(am.ActiveAlerts()))
	}
}

func TestAlertManagerRateCap(t *testing.T) {
	reg := endpoint.NewRegistry()
	ep0 := endpoint.New("ep0", "dsn", endpoint.RolePrimary, 1, "", "")
	ep1 := endpoint.New("ep1", "dsn", endpoint.RolePrimary, 1, "", "")
	reg.Register(ep0)
	reg.Register(ep1)

	notifier := &fakeNotifier{}
	rules := []Rule{*constantRule("always", ConditionAbove, 0, time.Hour, []float64{1, 1})}

	cfg := &config.MonitorConfig{AlertTick: time.Hour, MaxAlertsPerHour: 1, DefaultCooldown: time.Hour}
	am := NewAlertManager(cfg, reg, rules, []Notifier{notifier}, nil, testLogger(t))

	am.evaluate(context.Background())

	if len(notifier.calls) != 1 {
		t.Fatalf("expected the rate cap to allow exactly 1 alert across both endpoints, got %d", len(notifier.calls))
	}
}

// TestAlertLifecycleCreateUpdateResolve mirrors the cache_hit_rate
// scenario: samples 90, 70, 70, 85 against a below-80 rule create an
// alert on the second sample, update it in place on the third, and
// auto-resolve it on the fourth.
func TestAlertLifecycleCreateUpdateResolve(t *testing.T) {
	reg := endpoint.NewRegistry()
	ep := endpoint.New("ep0", "dsn", endpoint.RolePrimary, 1, "", "")
	reg.Register(ep)

	recorder := &fakeRecorder{}
	notifier := &fakeNotifier{}

	samples := []float64{90, 70, 70, 85}
	rule := constantRule("cache_hit_rate", ConditionBelow, 80, time.Minute, samples)

	cfg := &config.MonitorConfig{AlertTick: time.Hour, MaxAlertsPerHour: 100, DefaultCooldown: time.Minute}
	am := NewAlertManager(cfg, reg, []Rule{*rule}, []Notifier{notifier}, recorder, testLogger(t))

	am.evaluate(context.Background()) // sample 90: no violation
	if len(am.ActiveAlerts()) != 0 {
		t.Fatalf("expected no alert after sample 1, got %d", len(am.ActiveAlerts()))
	}

	am.evaluate(context.Background()) // sample 70: creates
	active := am.ActiveAlerts()
	if len(active) != 1 {
		t.Fatalf("expected exactly 1 unresolved alert after sample 2, got %d", len(active))
	}

	firstID := active[0].ID

	am.evaluate(context.Background()) // sample 70: updates, not duplicates
	active = am.ActiveAlerts()

	if len(active) != 1 || active[0].ID != firstID {
		t.Fatalf("expected the same alert to persist after sample 3, got %+v", active)
	}

	if len(notifier.calls) != 1 {
		t.Fatalf("expected notification only on creation, got %d dispatches", len(notifier.calls))
	}

	am.evaluate(context.Background()) // sample 85: resolves
	if len(am.ActiveAlerts()) != 0 {
		t.Fatalf("expected the alert to auto-resolve after sample 4, got %+v", am.ActiveAlerts())
	}

	var sawResolved bool

	for _, a := range recorder.saved {
		if a.ID == firstID && a.ResolvedAt != nil {
			sawResolved = true
		}
	}

	if !sawResolved {
		t.Fatal("expected the recorder to observe a resolution with a timestamp")
	}
}

func TestCacheHitRateRuleScope(t *testing.T) {
	rule := CacheHitRateRule(80, time.Minute, func() (float64, bool) { return 70, true })
	if rule.Scope != ScopeGlobal {
		t.Fatalf("expected a global-scope rule, got %v", rule.Scope)
	}

	if !rule.violated(70) {
		t.Fatal("expected a 70%% hit rate to violate an 80%% threshold")
	}
}

func TestLogNotifier(t *testing.T) {
	n := NewLogNotifier(testLogger(t))
	if n.Name() != "log" {
		t.Fatalf("expected notifier name 'log', got %s", n.Name())
	}

	if err := n.Notify(context.Background(), Alert{RuleName: "r", EndpointID: "ep0", Severity: SeverityWarning, Message: "m", FiredAt: time.Now()}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
