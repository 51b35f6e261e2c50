// Package endpoint models a physical database server instance the data
// plane can connect to: its identity, role, health state and rolling
// metrics, grounded on the Shard/ConnectionMetrics shapes of
// original_source/backend/database/sharding_manager.py and
// original_source/backend/services/connection_pool_manager.py.
package endpoint

import (
	"sync"
	"sync/atomic"
	"time"
)

// Role identifies what an endpoint is used for.
type Role string

const (
	// RolePrimary accepts writes.
	RolePrimary Role = "primary"
	// RoleReplica accepts reads with a possible lag.
	RoleReplica Role = "replica"
	// RoleAnalytics accepts reporting/analytical reads.
	RoleAnalytics Role = "analytics"
)

// State is the lifecycle/health state of an endpoint.
type State string

const (
	// StateHealthy is fully available.
	StateHealthy State = "healthy"
	// StateDegraded is available but underperforming.
	StateDegraded State = "degraded"
	// StateFailed is unavailable.
	StateFailed State = "failed"
	// StateReadonly rejects writes but serves reads.
	StateReadonly State = "readonly"
	// StateMaintenance is intentionally drained, e.g. during migration.
	StateMaintenance State = "maintenance"
)

// LagProber measures replication lag between a primary and a replica.
// The real measurement is driver-specific; the default implementation
// below reports the replica's own last self-reported value verbatim
// rather than inventing a heuristic.
type LagProber func(primary, replica *Endpoint) (time.Duration, error)

// DefaultLagProber returns the replica's last observed lag unchanged.
func DefaultLagProber(_ *Endpoint, replica *Endpoint) (time.Duration, error) {
	return replica.Lag(), nil
}

// Metrics holds rolling, concurrency-safe metrics for one endpoint.
type Metrics struct {
	connectionCount  int64
	errorCount       int64
	successCount     int64
	emaResponseMicros int64 // EMA of response time, stored as microseconds
	lagMicros        int64
	lastHealthCheck  atomic.Value // time.Time
}

const emaAlpha = 0.2

func newMetrics() *Metrics {
	m := &Metrics{}
	m.lastHealthCheck.Store(time.Time{})
	return m
}

// RecordResult folds a request outcome into the rolling metrics.
func (m *Metrics) RecordResult(latency time.Duration, success bool) {
	if success {
		atomic.AddInt64(&m.successCount, 1)
	} else {
		atomic.AddInt64(&m.errorCount, 1)
	}

	for {
		old := atomic.LoadInt64(&m.emaResponseMicros)
		sample := latency.Microseconds()

		var next int64
		if old == 0 {
			next = sample
		} else {
			next = int64(emaAlpha*float64(sample) + (1-emaAlpha)*float64(old))
		}

		if atomic.CompareAndSwapInt64(&m.emaResponseMicros, old, next) {
			break
		}
	}
}

// EMAResponseTime returns the exponential moving average response latency.
func (m *Metrics) EMAResponseTime() time.Duration {
	return time.Duration(atomic.LoadInt64(&m.emaResponseMicros)) * time.Microsecond
}

// ErrorCount returns the lifetime error count.
func (m *Metrics) ErrorCount() int64 { return atomic.LoadInt64(&m.errorCount) }

// SuccessCount returns the lifetime success count.
func (m *Metrics) SuccessCount() int64 { return atomic.LoadInt64(&m.successCount) }

// SetConnectionCount records the current live connection count.
func (m *Metrics) SetConnectionCount(n int64) { atomic.StoreInt64(&m.connectionCount, n) }

// ConnectionCount returns the current live connection count.
func (m *Metrics) ConnectionCount() int64 { return atomic.LoadInt64(&m.connectionCount) }

// SetLag records the observed replication lag.
func (m *Metrics) SetLag(d time.Duration) { atomic.StoreInt64(&m.lagMicros, d.Microseconds()) }

// Lag returns the last observed replication lag.
func (m *Metrics) Lag() time.Duration {
	return time.Duration(atomic.LoadInt64(&m.lagMicros)) * time.Microsecond
}

// TouchHealthCheck records the time of the most recent health probe.
func (m *Metrics) TouchHealthCheck(t time.Time) { m.lastHealthCheck.Store(t) }

// LastHealthCheck returns the time of the most recent health probe.
func (m *Metrics) LastHealthCheck() time.Time { return m.lastHealthCheck.Load().(time.Time) }

// ErrorRate returns errors / (errors+successes), or 0 with no samples.
func (m *Metrics) ErrorRate() float64 {
	errs := float64(m.ErrorCount())
	ok := float64(m.SuccessCount())

	total := errs + ok
	if total == 0 {
		return 0
	}

	return errs / total
}

// Endpoint is a physical database server instance.
type Endpoint struct {
	ID       string
	DSN      string
	Role     Role
	Weight   int
	Region   string
	AZ       string
	Metrics  *Metrics

	mu    sync.RWMutex
	state State
}

// New constructs a healthy Endpoint with the given identity.
func New(id, dsn string, role Role, weight int, region, az string) *Endpoint {
	return &Endpoint{
		ID:      id,
		DSN:     dsn,
		Role:    role,
		Weight:  weight,
		Region:  region,
		AZ:      az,
		Metrics: newMetrics(),
		state:   StateHealthy,
	}
}

// State returns the current lifecycle state.
func (e *Endpoint) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.state
}

// SetState transitions the endpoint to a new state.
func (e *Endpoint) SetState(s State) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = s
}

// IsAvailableForRole reports whether the endpoint can currently serve
// requests in the given role: healthy or degraded, and not in
// maintenance/failed/readonly-for-writes.
func (e *Endpoint) IsAvailableForRole(role Role) bool {
	st := e.State()
	if st == StateFailed || st == StateMaintenance {
		return false
	}

	if role == RolePrimary && st == StateReadonly {
		return false
	}

	return true
}

// Lag is a convenience accessor over Metrics.Lag.
func (e *Endpoint) Lag() time.Duration { return e.Metrics.Lag() }

// Registry owns the set of known endpoints. It holds exclusive ownership
// for creation/deregistration; other components (splitter, balancer,
// monitor) hold non-owning references by id.
type Registry struct {
	mu        sync.RWMutex
	endpoints map[string]*Endpoint
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{endpoints: make(map[string]*Endpoint)}
}

// Register adds (or replaces) an endpoint.
func (r *Registry) Register(ep *Endpoint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.endpoints[ep.ID] = ep
}

// Deregister removes an endpoint and returns it, or nil if unknown. The
// caller is responsible for draining the endpoint's pool first.
func (r *Registry) Deregister(id string) *Endpoint {
	r.mu.Lock()
	defer r.mu.Unlock()

	ep, ok := r.endpoints[id]
	if !ok {
		return nil
	}

	delete(r.endpoints, id)

	return ep
}

// Get returns the endpoint with the given id, or nil.
func (r *Registry) Get(id string) *Endpoint {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.endpoints[id]
}

// All returns a snapshot slice of all registered endpoints.
func (r *Registry) All() []*Endpoint {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Endpoint, 0, len(r.endpoints))
	for _, ep := range r.endpoints {
		out = append(out, ep)
	}

	return out
}

// ByRole returns a snapshot slice of endpoints with the given role.
func (r *Registry) ByRole(role Role) []*Endpoint {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Endpoint, 0)

	for _, ep := range r.endpoints {
		if ep.Role == role {
			out = append(out, ep)
		}
	}

	return out
}
