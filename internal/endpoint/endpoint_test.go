package endpoint

import (
	"testing"
	"time"
)

func TestMetricsRecordResultEMA(t *testing.T) {
	m := newMetrics()

	m.RecordResult(100*time.Millisecond, true)
	if m.EMAResponseTime() != 100*time.Millisecond {
		t.Fatalf("expected first sample to seed EMA, got %v", m.EMAResponseTime())
	}

	m.RecordResult(200*time.Millisecond, true)
	if ema := m.EMAResponseTime(); ema <= 100*time.Millisecond || ema >= 200*time.Millisecond {
		t.Fatalf("expected EMA between samples, got %v", ema)
	}

	if m.SuccessCount() != 2 {
		t.Fatalf("expected 2 successes, got %d", m.SuccessCount())
	}
}

func TestMetricsErrorRate(t *testing.T) {
	m := newMetrics()

	if rate := m.ErrorRate(); rate != 0 {
		t.Fatalf("expected 0 error rate with no samples, got %v", rate)
	}

	m.RecordResult(time.Millisecond, true)
	m.RecordResult(time.Millisecond, false)
	m.RecordResult(time.Millisecond, false)

	if rate := m.ErrorRate(); rate != 2.0/3.0 {
		t.Fatalf("expected error rate 2/3, got %v", rate)
	}
}

func TestEndpointIsAvailableForRole(t *testing.T) {
	ep := New("ep-1", "dsn", RolePrimary, 1, "us-east-1", "az1")

	if !ep.IsAvailableForRole(RolePrimary) {
		t.Fatal("expected healthy primary to be available")
	}

	ep.SetState(StateReadonly)
	if ep.IsAvailableForRole(RolePrimary) {
		t.Fatal("expected readonly endpoint to be unavailable for primary role")
	}

	if !ep.IsAvailableForRole(RoleReplica) {
		t.Fatal("expected readonly endpoint to still serve replica reads")
	}

	ep.SetState(StateFailed)
	if ep.IsAvailableForRole(RoleReplica) {
		t.Fatal("expected failed endpoint to be unavailable for any role")
	}
}

func TestDefaultLagProber(t *testing.T) {
	primary := New("primary", "dsn", RolePrimary, 1, "", "")
	replica := New("replica", "dsn", RoleReplica, 1, "", "")
	replica.Metrics.SetLag(250 * time.Millisecond)

	lag, err := DefaultLagProber(primary, replica)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if lag != 250*time.Millisecond {
		t.Fatalf("expected 250ms, got %v", lag)
	}
}

func TestRegistryRegisterGetDeregister(t *testing.T) {
	reg := NewRegistry()

	primary := New("primary", "dsn", RolePrimary, 1, "", "")
	replica := New("replica", "dsn", RoleReplica, 1, "", "")

	reg.Register(primary)
	reg.Register(replica)

	if got := reg.Get("primary"); got != primary {
		t.Fatal("expected to retrieve the registered primary")
	}

	if len(reg.All()) != 2 {
		t.Fatalf("expected 2 registered endpoints, got %d", len(reg.All()))
	}

	replicas := reg.ByRole(RoleReplica)
	if len(replicas) != 1 || replicas[0].ID != "replica" {
		t.Fatalf("unexpected replicas: %v", replicas)
	}

	removed := reg.Deregister("primary")
	if removed != primary {
		t.Fatal("expected Deregister to return the removed endpoint")
	}

	if reg.Get("primary") != nil {
		t.Fatal("expected primary to be gone after deregistration")
	}

	if reg.Deregister("unknown") != nil {
		t.Fatal("expected deregistering an unknown id to return nil")
	}
}
