package config

import (
	"time"

	"github.com/hyp3rd/ewrap/pkg/ewrap"
)

// implement the validatable interface.
var _ validatable = (*BalancerConfig)(nil)

// BalancerStrategy selects how the load balancer picks an endpoint among
// a candidate set.
type BalancerStrategy string

const (
	// BalancerRoundRobin cycles through candidates in order.
	BalancerRoundRobin BalancerStrategy = "round_robin"
	// BalancerWeighted picks proportionally to endpoint weight.
	BalancerWeighted BalancerStrategy = "weighted"
	// BalancerLeastConnections picks the candidate with the fewest
	// in-flight connections.
	BalancerLeastConnections BalancerStrategy = "least_connections"
	// BalancerLeastResponseTime picks the candidate with the lowest EMA
	// response time.
	BalancerLeastResponseTime BalancerStrategy = "least_response_time"
	// BalancerConsistentHashing picks by hashing an affinity key onto a
	// ring of candidates.
	BalancerConsistentHashing BalancerStrategy = "consistent_hashing"
	// BalancerAdaptive blends load and latency signals and re-weights
	// periodically.
	BalancerAdaptive BalancerStrategy = "adaptive"
)

// BalancerConfig holds the load balancer and circuit breaker configuration.
type BalancerConfig struct {
	Strategy                BalancerStrategy `mapstructure:"strategy"`
	BreakerFailureThreshold uint32           `mapstructure:"breaker_failure_threshold"`
	BreakerSuccessThreshold uint32           `mapstructure:"breaker_success_threshold"`
	BreakerTimeout          time.Duration    `mapstructure:"breaker_timeout"`
	AffinityWindow          time.Duration    `mapstructure:"affinity_window"`
	WeightTick              time.Duration    `mapstructure:"weight_tick"`
}

// Validate checks the validity of the BalancerConfig struct.
func (c *BalancerConfig) Validate(eg *ewrap.ErrorGroup) {
	switch c.Strategy {
	case BalancerRoundRobin, BalancerWeighted, BalancerLeastConnections,
		BalancerLeastResponseTime, BalancerConsistentHashing, BalancerAdaptive:
	default:
		eg.Add(ewrap.New("invalid balancer strategy").WithMetadata("strategy", c.Strategy))
	}

	if c.BreakerFailureThreshold == 0 {
		eg.Add(ewrap.New("invalid balancer breaker_failure_threshold"))
	}

	if c.BreakerTimeout <= 0 {
		eg.Add(ewrap.New("invalid balancer breaker_timeout").WithMetadata("breaker_timeout", c.BreakerTimeout))
	}
}
