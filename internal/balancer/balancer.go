// Package balancer distributes requests across a set of candidate
// endpoints using a selectable strategy, with a per-endpoint circuit
// breaker (sony/gobreaker) and session/client affinity.
package balancer

import (
	"context"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/hyp3rd/dbplane/internal/config"
	"github.com/hyp3rd/dbplane/internal/endpoint"
	"github.com/hyp3rd/dbplane/internal/errs"
	"github.com/sony/gobreaker"
)

// Balancer picks among a fixed candidate set of endpoints, tracking a
// circuit breaker per endpoint so a failing one is taken out of
// rotation automatically.
type Balancer struct {
	cfg *config.BalancerConfig

	mu         sync.Mutex
	candidates []*endpoint.Endpoint
	breakers   map[string]*gobreaker.CircuitBreaker
	rrIndex    int
	affinity   map[string]string // affinity key -> endpoint id
	affinitySet map[string]time.Time

	stopChan chan struct{}
}

// New constructs a Balancer over the given candidates.
func New(cfg *config.BalancerConfig, candidates []*endpoint.Endpoint) *Balancer {
	b := &Balancer{
		cfg:         cfg,
		candidates:  candidates,
		breakers:    make(map[string]*gobreaker.CircuitBreaker),
		affinity:    make(map[string]string),
		affinitySet: make(map[string]time.Time),
		stopChan:    make(chan struct{}),
	}

	for _, ep := range candidates {
		b.breakers[ep.ID] = newBreaker(ep.ID, cfg)
	}

	return b
}

func newBreaker(name string, cfg *config.BalancerConfig) *gobreaker.CircuitBreaker {
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.BreakerSuccessThreshold,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailureThreshold
		},
	}

	return gobreaker.NewCircuitBreaker(settings)
}

// Execute runs fn against the endpoint chosen for affinityKey (which may
// be a session or client id; pass "" for none) under the given strategy,
// recording the outcome into both the endpoint's rolling metrics and its
// circuit breaker.
func (b *Balancer) Execute(ctx context.Context, affinityKey string, fn func(context.Context, *endpoint.Endpoint) error) error {
	ep, err := b.pick(affinityKey)
	if err != nil {
		return err
	}

	breaker := b.breakerFor(ep.ID)

	start := time.Now()

	_, execErr := breaker.Execute(func() (any, error) {
		return nil, fn(ctx, ep)
	})

	success := execErr == nil
	ep.Metrics.RecordResult(time.Since(start), success)

	if affinityKey != "" && success {
		b.setAffinity(affinityKey, ep.ID)
	}

	if execErr != nil {
		return errs.Wrap(errs.EndpointUnavailable, execErr, "balanced request failed").WithAttempted([]string{ep.ID})
	}

	return nil
}

func (b *Balancer) breakerFor(id string) *gobreaker.CircuitBreaker {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.breakers[id]
}

// pick selects a candidate endpoint per the configured strategy, honoring
// sticky affinity first when an affinity key is supplied and still bound.
func (b *Balancer) pick(affinityKey string) (*endpoint.Endpoint, error) {
	if affinityKey != "" {
		if ep, ok := b.pickAffine(affinityKey); ok {
			return ep, nil
		}
	}

	available := b.availableCandidates()
	if len(available) == 0 {
		return nil, errs.New(errs.EndpointUnavailable, "no available balancer candidates")
	}

	switch b.cfg.Strategy {
	case config.BalancerRoundRobin:
		return b.pickRoundRobin(available), nil
	case config.BalancerWeighted:
		return pickWeighted(available), nil
	case config.BalancerLeastConnections:
		return pickLeastConnections(available), nil
	case config.BalancerLeastResponseTime:
		return pickLeastResponseTime(available), nil
	case config.BalancerConsistentHashing:
		return pickConsistentHash(available, affinityKey), nil
	case config.BalancerAdaptive:
		return pickAdaptive(available), nil
	default:
		return available[0], nil
	}
}

func (b *Balancer) availableCandidates() []*endpoint.Endpoint {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]*endpoint.Endpoint, 0, len(b.candidates))

	for _, ep := range b.candidates {
		if !ep.IsAvailableForRole(ep.Role) {
			continue
		}

		if state := b.breakers[ep.ID].State(); state == gobreaker.StateOpen {
			continue
		}

		out = append(out, ep)
	}

	return out
}

func (b *Balancer) pickRoundRobin(available []*endpoint.Endpoint) *endpoint.Endpoint {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.rrIndex = (b.rrIndex + 1) % len(available)

	return available[b.rrIndex]
}

func (b *Balancer) pickAffine(key string) (*endpoint.Endpoint, bool) {
	b.mu.Lock()
	id, ok := b.affinity[key]
	expires, hasExpiry := b.affinitySet[key]
	b.mu.Unlock()

	if !ok {
		return nil, false
	}

	if hasExpiry && time.Now().After(expires) {
		return nil, false
	}

	for _, ep := range b.availableCandidates() {
		if ep.ID == id {
			return ep, true
		}
	}

	return nil, false
}

func (b *Balancer) setAffinity(key, id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.affinity[key] = id
	b.affinitySet[key] = time.Now().Add(b.cfg.AffinityWindow)
}

func pickWeighted(candidates []*endpoint.Endpoint) *endpoint.Endpoint {
	total := 0
	for _, ep := range candidates {
		total += ep.Weight
	}

	if total <= 0 {
		return candidates[0]
	}

	target := int(xxhash.Sum64String(time.Now().String()) % uint64(total))

	cum := 0
	for _, ep := range candidates {
		cum += ep.Weight
		if target < cum {
			return ep
		}
	}

	return candidates[len(candidates)-1]
}

func pickLeastConnections(candidates []*endpoint.Endpoint) *endpoint.Endpoint {
	best := candidates[0]
	for _, ep := range candidates[1:] {
		if ep.Metrics.ConnectionCount() < best.Metrics.ConnectionCount() {
			best = ep
		}
	}

	return best
}

func pickLeastResponseTime(candidates []*endpoint.Endpoint) *endpoint.Endpoint {
	best := candidates[0]
	for _, ep := range candidates[1:] {
		if ep.Metrics.EMAResponseTime() < best.Metrics.EMAResponseTime() {
			best = ep
		}
	}

	return best
}

func pickConsistentHash(candidates []*endpoint.Endpoint, key string) *endpoint.Endpoint {
	if key == "" {
		return candidates[0]
	}

	h := xxhash.Sum64String(key)
	idx := int(h % uint64(len(candidates)))

	return candidates[idx]
}

// pickAdaptive blends connection load and latency into one score and
// picks the minimum — a lightweight stand-in for a full EWMA-based
// adaptive load balancer, reusing the same rolling metrics the other
// strategies already maintain.
func pickAdaptive(candidates []*endpoint.Endpoint) *endpoint.Endpoint {
	best := candidates[0]
	bestScore := adaptiveScore(best)

	for _, ep := range candidates[1:] {
		score := adaptiveScore(ep)
		if score < bestScore {
			bestScore = score
			best = ep
		}
	}

	return best
}

func adaptiveScore(ep *endpoint.Endpoint) float64 {
	latency := float64(ep.Metrics.EMAResponseTime()) / float64(time.Millisecond)
	load := float64(ep.Metrics.ConnectionCount())
	errRate := ep.Metrics.ErrorRate() * 1000

	return latency + load*10 + errRate
}

// StartWeightAdjust runs a background loop that periodically recomputes
// relative weights from recent error rates, lowering the weight of
// endpoints trending towards failure. Stop with StopWeightAdjust.
func (b *Balancer) StartWeightAdjust(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(b.cfg.WeightTick)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				b.adjustWeights()
			case <-b.stopChan:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// StopWeightAdjust stops the weight adjustment loop.
func (b *Balancer) StopWeightAdjust() { close(b.stopChan) }

func (b *Balancer) adjustWeights() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ep := range b.candidates {
		errRate := ep.Metrics.ErrorRate()

		switch {
		case errRate > 0.1 && ep.Weight > 1:
			ep.Weight--
		case errRate < 0.01 && ep.Weight < 10:
			ep.Weight++
		}
	}
}
