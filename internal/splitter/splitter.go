// Package splitter routes a classified query to the primary or to a
// replica, honoring session consistency (a client that just wrote sticks
// to the primary for a window so it never reads its own write as stale)
// and promoting a replica to primary on failover.
package splitter

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/hyp3rd/dbplane/internal/classifier"
	"github.com/hyp3rd/dbplane/internal/config"
	"github.com/hyp3rd/dbplane/internal/endpoint"
	"github.com/hyp3rd/dbplane/internal/errs"
	"github.com/hyp3rd/dbplane/internal/logger"
	"github.com/hyp3rd/dbplane/internal/pool"
)

// Splitter is the read/write routing layer sitting on top of a
// pool.Manager and endpoint.Registry.
type Splitter struct {
	cfg       *config.SplitterConfig
	registry  *endpoint.Registry
	pools     *pool.Manager
	lagProber endpoint.LagProber
	logger    logger.Logger

	mu      sync.Mutex
	primary string
	sticky  map[string]time.Time // sessionID -> sticky-until
}

// New constructs a Splitter bound to the given registry and pool manager.
// primaryID identifies the endpoint currently acting as primary.
func New(cfg *config.SplitterConfig, registry *endpoint.Registry, pools *pool.Manager, log logger.Logger, primaryID string) *Splitter {
	return &Splitter{
		cfg:       cfg,
		registry:  registry,
		pools:     pools,
		lagProber: endpoint.DefaultLagProber,
		logger:    log,
		primary:   primaryID,
		sticky:    make(map[string]time.Time),
	}
}

// SetLagProber overrides the replication lag measurement hook, e.g. with
// a driver-specific implementation that reads pg_stat_replication.
func (s *Splitter) SetLagProber(p endpoint.LagProber) { s.lagProber = p }

// Route picks the pool that should serve the given query for sessionID.
// Writes, DDL and transaction-control statements, and anything
// RequiresPrimary, always go to the primary. Reads go to the primary
// only if the session is within its post-write sticky window, or if no
// replica is currently eligible and FailoverEnabled is set; with failover
// disabled that case returns the replica error.
func (s *Splitter) Route(ctx context.Context, sessionID, query string) (*pool.Pool, error) {
	qt := classifier.Classify(query)

	if qt != classifier.Read || classifier.RequiresPrimary(query) {
		if qt == classifier.Write {
			s.markSticky(sessionID)
		}

		return s.primaryPool()
	}

	if s.isSticky(sessionID) {
		return s.primaryPool()
	}

	p, err := s.bestReplica()
	if err != nil {
		if !s.cfg.FailoverEnabled {
			return nil, err
		}

		return s.primaryPool()
	}

	return p, nil
}

// markSticky records that sessionID must read the primary for the
// configured session window, so it observes its own just-committed
// write.
func (s *Splitter) markSticky(sessionID string) {
	if sessionID == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sticky[sessionID] = time.Now().Add(s.cfg.SessionWindow)
}

func (s *Splitter) isSticky(sessionID string) bool {
	if sessionID == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	until, ok := s.sticky[sessionID]
	if !ok {
		return false
	}

	if time.Now().After(until) {
		delete(s.sticky, sessionID)

		return false
	}

	return true
}

func (s *Splitter) primaryPool() (*pool.Pool, error) {
	s.mu.Lock()
	id := s.primary
	s.mu.Unlock()

	ep := s.registry.Get(id)
	if ep == nil || !ep.IsAvailableForRole(endpoint.RolePrimary) {
		return nil, errs.New(errs.EndpointUnavailable, "primary endpoint unavailable").WithAttempted([]string{id})
	}

	p := s.pools.Get(id)
	if p == nil {
		return nil, errs.New(errs.EndpointUnavailable, "primary pool not open").WithAttempted([]string{id})
	}

	return p, nil
}

// bestReplica scores every eligible replica by a composite of
// replication lag and current load, and returns the pool of the
// highest-scoring one. A replica whose lag exceeds MaxReplicaLag is
// excluded entirely.
func (s *Splitter) bestReplica() (*pool.Pool, error) {
	primary := s.registry.Get(s.primary)

	var (
		best      *endpoint.Endpoint
		bestScore = math.Inf(-1)
		tried     []string
	)

	for _, ep := range s.registry.ByRole(endpoint.RoleReplica) {
		if !ep.IsAvailableForRole(endpoint.RoleReplica) {
			continue
		}

		tried = append(tried, ep.ID)

		lag, err := s.lagProber(primary, ep)
		if err == nil {
			ep.Metrics.SetLag(lag)
		}

		if ep.Metrics.Lag() > s.cfg.MaxReplicaLag {
			continue
		}

		score := compositeScore(ep)
		if score > bestScore {
			bestScore = score
			best = ep
		}
	}

	if best == nil {
		return nil, errs.New(errs.EndpointUnavailable, "no eligible replica within lag bound").WithAttempted(tried)
	}

	p := s.pools.Get(best.ID)
	if p == nil {
		return nil, errs.New(errs.EndpointUnavailable, "replica pool not open").WithAttempted([]string{best.ID})
	}

	return p, nil
}

// compositeScore blends inverse lag, inverse response time, inverse
// error rate and inverse endpoint weight into a single ranking value;
// higher is better. A lower-weighted replica (e.g. a smaller instance
// kept mostly for failover) is penalized so traffic favors its peers.
func compositeScore(ep *endpoint.Endpoint) float64 {
	lagPenalty := float64(ep.Metrics.Lag()) / float64(time.Second)
	latencyPenalty := float64(ep.Metrics.EMAResponseTime()) / float64(time.Millisecond)
	errorPenalty := ep.Metrics.ErrorRate() * 100
	weightPenalty := (100 - float64(ep.Weight)) / 100

	return -(lagPenalty + latencyPenalty*0.1 + errorPenalty + weightPenalty)
}

// PromotePrimary fails over to a replica: the old primary is demoted to
// readonly (it may still be reachable but should stop accepting writes)
// and newPrimaryID takes over as primary.
func (s *Splitter) PromotePrimary(newPrimaryID string) error {
	newPrimary := s.registry.Get(newPrimaryID)
	if newPrimary == nil {
		return errs.New(errs.EndpointUnavailable, "promotion target unknown").WithAttempted([]string{newPrimaryID})
	}

	s.mu.Lock()
	oldID := s.primary
	s.primary = newPrimaryID
	s.mu.Unlock()

	if old := s.registry.Get(oldID); old != nil {
		old.SetState(endpoint.StateReadonly)
		old.Role = endpoint.RoleReplica
	}

	newPrimary.Role = endpoint.RolePrimary
	newPrimary.SetState(endpoint.StateHealthy)

	s.logger.Warnf("splitter: promoted %s to primary (was %s)", newPrimaryID, oldID)

	return nil
}

// PrimaryID returns the id of the current primary endpoint.
func (s *Splitter) PrimaryID() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.primary
}
