package balancer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hyp3rd/dbplane/internal/config"
	"github.com/hyp3rd/dbplane/internal/endpoint"
)

func testConfig(strategy config.BalancerStrategy) *config.BalancerConfig {
	return &config.BalancerConfig{
		Strategy:                strategy,
		BreakerFailureThreshold: 2,
		BreakerSuccessThreshold: 1,
		BreakerTimeout:          time.Minute,
		AffinityWindow:          time.Minute,
		WeightTick:              time.Minute,
	}
}

func TestExecuteRoundRobinCyclesCandidates(t *testing.T) {
	ep0 := endpoint.New("ep0", "dsn", endpoint.RoleAnalytics, 1, "", "")
	ep1 := endpoint.New("ep1", "dsn", endpoint.RoleAnalytics, 1, "", "")

	b := New(testConfig(config.BalancerRoundRobin), []*endpoint.Endpoint{ep0, ep1})

	seen := make(map[string]int)

	for i := 0; i < 4; i++ {
		err := b.Execute(context.Background(), "", func(_ context.Context, ep *endpoint.Endpoint) error {
			seen[ep.ID]++

			return nil
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if seen["ep0"] == 0 || seen["ep1"] == 0 {
		t.Fatalf("expected round robin to visit both endpoints, got %v", seen)
	}
}

func TestExecuteAffinitySticksToSameEndpoint(t *testing.T) {
	ep0 := endpoint.New("ep0", "dsn", endpoint.RoleAnalytics, 1, "", "")
	ep1 := endpoint.New("ep1", "dsn", endpoint.RoleAnalytics, 1, "", "")

	b := New(testConfig(config.BalancerRoundRobin), []*endpoint.Endpoint{ep0, ep1})

	var first string

	for i := 0; i < 5; i++ {
		err := b.Execute(context.Background(), "session-abc", func(_ context.Context, ep *endpoint.Endpoint) error {
			if first == "" {
				first = ep.ID
			} else if ep.ID != first {
				t.Fatalf("expected affinity to stick to %s, got %s", first, ep.ID)
			}

			return nil
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
}

func TestExecuteCircuitBreakerOpensAfterFailures(t *testing.T) {
	ep0 := endpoint.New("ep0", "dsn", endpoint.RoleAnalytics, 1, "", "")

	b := New(testConfig(config.BalancerRoundRobin), []*endpoint.Endpoint{ep0})

	boom := errors.New("boom")

	for i := 0; i < 2; i++ {
		_ = b.Execute(context.Background(), "", func(_ context.Context, _ *endpoint.Endpoint) error {
			return boom
		})
	}

	err := b.Execute(context.Background(), "", func(_ context.Context, _ *endpoint.Endpoint) error {
		return nil
	})
	if err == nil {
		t.Fatal("expected the circuit breaker to refuse requests after consecutive failures opened it")
	}
}

func TestExecuteNoAvailableCandidates(t *testing.T) {
	ep0 := endpoint.New("ep0", "dsn", endpoint.RoleAnalytics, 1, "", "")
	ep0.SetState(endpoint.StateFailed)

	b := New(testConfig(config.BalancerRoundRobin), []*endpoint.Endpoint{ep0})

	err := b.Execute(context.Background(), "", func(_ context.Context, _ *endpoint.Endpoint) error {
		return nil
	})
	if err == nil {
		t.Fatal("expected an error when every candidate is unavailable")
	}
}

func TestPickWeightedPrefersHigherWeight(t *testing.T) {
	heavy := endpoint.New("heavy", "dsn", endpoint.RoleAnalytics, 100, "", "")
	light := endpoint.New("light", "dsn", endpoint.RoleAnalytics, 1, "", "")

	counts := make(map[string]int)

	for i := 0; i < 200; i++ {
		ep := pickWeighted([]*endpoint.Endpoint{heavy, light})
		counts[ep.ID]++
	}

	if counts["heavy"] <= counts["light"] {
		t.Fatalf("expected the heavily-weighted endpoint to be picked more often, got %v", counts)
	}
}

func TestPickLeastConnections(t *testing.T) {
	busy := endpoint.New("busy", "dsn", endpoint.RoleAnalytics, 1, "", "")
	idle := endpoint.New("idle", "dsn", endpoint.RoleAnalytics, 1, "", "")
	busy.Metrics.SetConnectionCount(10)
	idle.Metrics.SetConnectionCount(0)

	got := pickLeastConnections([]*endpoint.Endpoint{busy, idle})
	if got.ID != "idle" {
		t.Fatalf("expected idle to be picked, got %s", got.ID)
	}
}

func TestAdjustWeightsPenalizesHighErrorRate(t *testing.T) {
	ep := endpoint.New("ep0", "dsn", endpoint.RoleAnalytics, 5, "", "")
	for i := 0; i < 10; i++ {
		ep.Metrics.RecordResult(time.Millisecond, false)
	}

	b := New(testConfig(config.BalancerRoundRobin), []*endpoint.Endpoint{ep})
	b.adjustWeights()

	if ep.Weight != 4 {
		t.Fatalf("expected weight to decrease by 1 under a high error rate, got %d", ep.Weight)
	}
}
