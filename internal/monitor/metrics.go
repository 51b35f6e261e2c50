// Package monitor collects performance metrics across the data plane,
// exports them via prometheus/client_golang, computes a health score per
// endpoint, and evaluates alert rules with cooldown/rate limiting before
// fanning notifications out to configured channels.
package monitor

import (
	"time"

	"github.com/hyp3rd/dbplane/internal/endpoint"
	"github.com/prometheus/client_golang/prometheus"
)

// Collector exports endpoint.Registry metrics as prometheus gauges.
type Collector struct {
	registry *endpoint.Registry

	responseTime *prometheus.GaugeVec
	errorRate    *prometheus.GaugeVec
	connections  *prometheus.GaugeVec
	lag          *prometheus.GaugeVec
	healthScore  *prometheus.GaugeVec
}

// NewCollector constructs a Collector over reg. Register it with a
// prometheus.Registerer to expose it.
func NewCollector(reg *endpoint.Registry) *Collector {
	labels := []string{"endpoint_id", "role"}

	return &Collector{
		registry: reg,
		responseTime: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "dbplane",
			Subsystem: "endpoint",
			Name:      "response_time_ms",
			Help:      "EMA response time in milliseconds per endpoint.",
		}, labels),
		errorRate: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "dbplane",
			Subsystem: "endpoint",
			Name:      "error_rate",
			Help:      "Error rate (0-1) per endpoint.",
		}, labels),
		connections: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "dbplane",
			Subsystem: "endpoint",
			Name:      "connections",
			Help:      "Current live connection count per endpoint.",
		}, labels),
		lag: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "dbplane",
			Subsystem: "endpoint",
			Name:      "replication_lag_ms",
			Help:      "Observed replication lag in milliseconds per endpoint.",
		}, labels),
		healthScore: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "dbplane",
			Subsystem: "endpoint",
			Name:      "health_score",
			Help:      "Composite health score (0-100) per endpoint.",
		}, labels),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.responseTime.Describe(ch)
	c.errorRate.Describe(ch)
	c.connections.Describe(ch)
	c.lag.Describe(ch)
	c.healthScore.Describe(ch)
}

// Collect implements prometheus.Collector, sampling every registered
// endpoint on each scrape.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, ep := range c.registry.All() {
		labels := prometheus.Labels{"endpoint_id": ep.ID, "role": string(ep.Role)}

		c.responseTime.With(labels).Set(float64(ep.Metrics.EMAResponseTime()) / float64(time.Millisecond))
		c.errorRate.With(labels).Set(ep.Metrics.ErrorRate())
		c.connections.With(labels).Set(float64(ep.Metrics.ConnectionCount()))
		c.lag.With(labels).Set(float64(ep.Metrics.Lag()) / float64(time.Millisecond))
		c.healthScore.With(labels).Set(Score(ep))
	}

	c.responseTime.Collect(ch)
	c.errorRate.Collect(ch)
	c.connections.Collect(ch)
	c.lag.Collect(ch)
	c.healthScore.Collect(ch)
}
