// Package shard routes requests to one of several independent database
// clusters by a shard key, using a hash, range, consistent-hash,
// directory or geographic strategy, and tracks online topology changes
// with a persisted migration progress record.
package shard

import (
	"context"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/hyp3rd/dbplane/internal/config"
	"github.com/hyp3rd/dbplane/internal/errs"
	"github.com/hyp3rd/dbplane/internal/splitter"
	"github.com/hyp3rd/dbplane/internal/value"
)

// Shard is one independently-shardable database cluster: its own
// primary/replica set behind a splitter.Splitter.
type Shard struct {
	ID       string
	Splitter *splitter.Splitter
}

// RangeBoundary is one upper bound of a range-sharding bucket; keys less
// than or equal to Upper (compared as strings) route to ShardID.
type RangeBoundary struct {
	Upper   string
	ShardID string
}

// Router maps a shard key to a Shard using the configured strategy.
type Router struct {
	cfg           *config.ShardConfig
	shardKeyField string

	mu        sync.RWMutex
	shards    map[string]*Shard
	order     []string // insertion order, used by hash strategy
	ring      *ring
	ranges    []RangeBoundary
	directory map[string]string // key -> shard id

	migrations map[string]*Migration
}

// New constructs an empty Router for the configured strategy.
func New(cfg *config.ShardConfig) *Router {
	return &Router{
		cfg:        cfg,
		shardKeyField: cfg.ShardKeyField,
		shards:     make(map[string]*Shard),
		ring:       newRing(cfg.VirtualNodes),
		directory:  make(map[string]string),
		migrations: make(map[string]*Migration),
	}
}

// AddShard registers a new shard and places it on the ring (if the
// strategy uses one). It does not migrate any existing data; see
// BeginMigration for moving keys onto a newly-added shard.
func (r *Router) AddShard(s *Shard) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.shards[s.ID] = s
	r.order = append(r.order, s.ID)
	r.ring.add(s.ID)
}

// RemoveShard drains a shard from routing. Callers must ensure no data
// still lives exclusively on it, or run a migration first.
func (r *Router) RemoveShard(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.shards, id)
	r.ring.remove(id)

	for i, sid := range r.order {
		if sid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)

			break
		}
	}

	for k, v := range r.directory {
		if v == id {
			delete(r.directory, k)
		}
	}
}

// SetRanges configures the boundaries used by the range strategy. The
// slice must be sorted ascending by Upper.
func (r *Router) SetRanges(ranges []RangeBoundary) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ranges = ranges
}

// AssignDirectory binds a shard key to an explicit shard id, for the
// directory strategy.
func (r *Router) AssignDirectory(key, shardID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.directory[key] = shardID
}

// ExtractKey returns the value of the first column in params as the
// shard key; the Router's configured shard key field is not consulted.
func ExtractKey(params value.Row) (string, bool) {
	return extractKey(params, "")
}

func extractKey(params value.Row, field string) (string, bool) {
	if field == "" {
		if len(params) == 0 {
			return "", false
		}

		return params[0].Value.String(), true
	}

	v, ok := params.Get(field)
	if !ok {
		return "", false
	}

	return v.String(), true
}

// Route resolves a shard key to its owning Shard under the configured
// strategy.
func (r *Router) Route(key string) (*Shard, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.shards) == 0 {
		return nil, errs.New(errs.EndpointUnavailable, "no shards registered")
	}

	var id string

	switch r.cfg.Strategy {
	case config.ShardStrategyHash:
		id = r.order[hashIndex(key, len(r.order))]
	case config.ShardStrategyConsistentHash:
		owner, ok := r.ring.owner(key)
		if !ok {
			return nil, errs.New(errs.RoutingInconsistent, "consistent hash ring empty")
		}

		id = owner
	case config.ShardStrategyRange:
		owner, ok := routeRange(r.ranges, key)
		if !ok {
			return nil, errs.New(errs.NoShardKey, "key outside configured ranges")
		}

		id = owner
	case config.ShardStrategyDirectory:
		owner, ok := r.directory[key]
		if !ok {
			return nil, errs.New(errs.NoShardKey, "key not present in shard directory")
		}

		id = owner
	case config.ShardStrategyGeographic:
		owner, ok := r.directory[geoTag(key)]
		if !ok {
			return nil, errs.New(errs.NoShardKey, "no shard mapped for region")
		}

		id = owner
	default:
		return nil, errs.New(errs.ConfigInvalid, "unknown shard strategy")
	}

	s, ok := r.shards[id]
	if !ok {
		return nil, errs.New(errs.EndpointUnavailable, "shard key resolved to unknown shard").WithAttempted([]string{id})
	}

	return s, nil
}

// All returns every registered shard, for cross-shard fan-out queries.
func (r *Router) All() []*Shard {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Shard, 0, len(r.shards))
	for _, s := range r.shards {
		out = append(out, s)
	}

	return out
}

// FanOut runs fn concurrently against every registered shard and
// collects the results in a map keyed by shard id. Duplicate rows
// returned by overlapping shards (e.g. during migration) are not
// reconciled; each shard's rows are returned as-is. If a shard fails,
// the first error is returned wrapped as RoutingInconsistent and the
// first failing shard is left out of the map.
func (r *Router) FanOut(ctx context.Context, fn func(context.Context, *Shard) ([]value.Row, error)) (map[string][]value.Row, error) {
	shards := r.All()

	type result struct {
		id   string
		rows []value.Row
		err  error
	}

	results := make(chan result, len(shards))

	for _, s := range shards {
		go func(s *Shard) {
			rows, err := fn(ctx, s)
			results <- result{id: s.ID, rows: rows, err: err}
		}(s)
	}

	out := make(map[string][]value.Row, len(shards))

	var firstErr error

	for range shards {
		res := <-results
		if res.err != nil && firstErr == nil {
			firstErr = res.err

			continue
		}

		out[res.id] = res.rows
	}

	if firstErr != nil {
		return out, errs.Wrap(errs.RoutingInconsistent, firstErr, "cross-shard fan-out encountered an error")
	}

	return out, nil
}

func hashIndex(key string, n int) int {
	if n == 0 {
		return 0
	}

	return int(xxhash.Sum64String(key) % uint64(n))
}

func routeRange(ranges []RangeBoundary, key string) (string, bool) {
	for _, b := range ranges {
		if key <= b.Upper {
			return b.ShardID, true
		}
	}

	return "", false
}

// geoTag is a placeholder extraction of a region tag from a
// geographically-prefixed key, e.g. "eu-west-1:12345" -> "eu-west-1".
func geoTag(key string) string {
	for i, c := range key {
		if c == ':' {
			return key[:i]
		}
	}

	return key
}
