package monitor

import (
	"time"

	"github.com/hyp3rd/dbplane/internal/endpoint"
)

// Score computes a composite health score in [0, 100] for ep, weighting
// error rate most heavily, then latency, then replication lag. 100 is
// perfectly healthy.
func Score(ep *endpoint.Endpoint) float64 {
	if ep.State() == endpoint.StateFailed {
		return 0
	}

	errorPenalty := ep.Metrics.ErrorRate() * 60

	latencyMS := float64(ep.Metrics.EMAResponseTime()) / float64(time.Millisecond)
	latencyPenalty := clampF(latencyMS/10, 0, 25) // 250ms+ maxes this term out

	lagMS := float64(ep.Metrics.Lag()) / float64(time.Millisecond)
	lagPenalty := clampF(lagMS/100, 0, 15) // 1.5s+ lag maxes this term out

	score := 100 - errorPenalty - latencyPenalty - lagPenalty

	return clampF(score, 0, 100)
}

// Status buckets a score into a coarse health label.
func Status(score float64) string {
	switch {
	case score >= 90:
		return "healthy"
	case score >= 60:
		return "degraded"
	default:
		return "unhealthy"
	}
}

func clampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}

	if v > hi {
		return hi
	}

	return v
}
