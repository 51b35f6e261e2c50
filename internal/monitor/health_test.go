package monitor

import (
	"testing"
	"time"

	"github.com/hyp3rd/dbplane/internal/endpoint"
)

func TestScoreHealthyEndpointIsPerfect(t *testing.T) {
	ep := endpoint.New("ep0", "dsn", endpoint.RolePrimary, 1, "", "")

	if score := Score(ep); score != 100 {
		t.Fatalf("expected a fresh endpoint to score 100, got %v", score)
	}
}

func TestScoreFailedEndpointIsZero(t *testing.T) {
	ep := endpoint.New("ep0", "dsn", endpoint.RolePrimary, 1, "", "")
	ep.SetState(endpoint.StateFailed)

	if score := Score(ep); score != 0 {
		t.Fatalf("expected a failed endpoint to score 0, got %v", score)
	}
}

func TestScorePenalizesErrorsLatencyAndLag(t *testing.T) {
	ep := endpoint.New("ep0", "dsn", endpoint.RolePrimary, 1, "", "")
	ep.Metrics.RecordResult(500*time.Millisecond, false)
	ep.Metrics.SetLag(2 * time.Second)

	score := Score(ep)
	if score >= 100 || score < 0 {
		t.Fatalf("expected a degraded score strictly between 0 and 100, got %v", score)
	}
}

func TestStatusBuckets(t *testing.T) {
	tests := []struct {
		score float64
		want  string
	}{
		{100, "healthy"},
		{90, "healthy"},
		{75, "degraded"},
		{60, "degraded"},
		{10, "unhealthy"},
	}

	for _, tt := range tests {
		if got := Status(tt.score); got != tt.want {
			t.Errorf("Status(%v) = %s, want %s", tt.score, got, tt.want)
		}
	}
}
