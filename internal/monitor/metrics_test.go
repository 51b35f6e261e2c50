package monitor

import (
	"testing"

	"github.com/hyp3rd/dbplane/internal/endpoint"
	"github.com/prometheus/client_golang/prometheus"
)

func TestCollectorCollectsRegisteredEndpoints(t *testing.T) {
	reg := endpoint.NewRegistry()
	ep := endpoint.New("ep0", "dsn", endpoint.RolePrimary, 1, "us-east-1", "az1")
	reg.Register(ep)

	c := NewCollector(reg)

	registry := prometheus.NewRegistry()
	if err := registry.Register(c); err != nil {
		t.Fatalf("registering collector: %v", err)
	}

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("gathering metrics: %v", err)
	}

	found := false

	for _, f := range families {
		if f.GetName() == "dbplane_endpoint_health_score" {
			found = true

			for _, m := range f.GetMetric() {
				if m.GetGauge().GetValue() != 100 {
					t.Errorf("expected a fresh endpoint to report a health score of 100, got %v", m.GetGauge().GetValue())
				}
			}
		}
	}

	if !found {
		t.Fatal("expected dbplane_endpoint_health_score to be among the gathered metric families")
	}
}
