// Package dataplane is the composition root: it wires config, secrets,
// logging, endpoints, pools, the splitter, shard router, balancer,
// cache and monitor together behind the single Caller-facing DB type.
package dataplane

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hyp3rd/dbplane/internal/balancer"
	"github.com/hyp3rd/dbplane/internal/cache"
	"github.com/hyp3rd/dbplane/internal/classifier"
	"github.com/hyp3rd/dbplane/internal/config"
	"github.com/hyp3rd/dbplane/internal/endpoint"
	"github.com/hyp3rd/dbplane/internal/errs"
	"github.com/hyp3rd/dbplane/internal/logger"
	"github.com/hyp3rd/dbplane/internal/metadata"
	"github.com/hyp3rd/dbplane/internal/monitor"
	"github.com/hyp3rd/dbplane/internal/pool"
	"github.com/hyp3rd/dbplane/internal/shard"
	"github.com/hyp3rd/dbplane/internal/splitter"
	"github.com/hyp3rd/dbplane/internal/value"
	"github.com/jackc/pgx/v5"
)

// Options configures the composition root.
type Options struct {
	Config   *config.Config
	Logger   logger.Logger
	Metadata *metadata.Store // optional: nil disables persistence of operational state
}

// DB is the single entry point callers use to execute queries and
// transactions against the distributed data plane.
type DB struct {
	cfg      *config.Config
	logger   logger.Logger
	registry *endpoint.Registry
	pools    *pool.Manager
	splitter *splitter.Splitter
	shards   *shard.Router
	cache    *cache.Cache
	balancer *balancer.Balancer
	metadata *metadata.Store

	alertManager *monitor.AlertManager

	mu             sync.Mutex
	sessionCounter int64
	recentQueries  map[string]recentQuery // cache key -> last query that populated it, for WarmPool
}

type recentQuery struct {
	sessionID string
	query     string
	params    value.ParamList
}

// New builds every component named in Options.Config and connects all
// configured endpoints. Call Shutdown when done.
func New(ctx context.Context, opts Options) (*DB, error) {
	registry := endpoint.NewRegistry()

	var primaryID string

	for _, ec := range opts.Config.Endpoints.Endpoints {
		role := endpoint.Role(ec.Role)

		ep := endpoint.New(ec.ID, ec.DSN, role, ec.Weight, ec.Region, ec.AZ)
		registry.Register(ep)

		if role == endpoint.RolePrimary {
			primaryID = ec.ID
		}
	}

	if primaryID == "" {
		return nil, errs.New(errs.ConfigInvalid, "no primary endpoint configured")
	}

	poolMgr := pool.NewManager(&opts.Config.Pool, opts.Logger, registry)

	for _, ep := range registry.All() {
		if err := poolMgr.Open(ctx, ep); err != nil {
			return nil, err
		}
	}

	split := splitter.New(&opts.Config.Splitter, registry, poolMgr, opts.Logger, primaryID)

	shardRouter := shard.New(&opts.Config.Shard)
	shardRouter.AddShard(&shard.Shard{ID: "default", Splitter: split})

	var cacheInst *cache.Cache

	if opts.Config.Cache.Enabled {
		c, err := cache.New(&opts.Config.Cache, opts.Logger)
		if err != nil {
			return nil, err
		}

		cacheInst = c
	}

	analytics := registry.ByRole(endpoint.RoleAnalytics)

	var bal *balancer.Balancer
	if len(analytics) > 0 {
		bal = balancer.New(&opts.Config.Balancer, analytics)
		bal.StartWeightAdjust(ctx)
	}

	db := &DB{
		cfg:      opts.Config,
		logger:   opts.Logger,
		registry: registry,
		pools:    poolMgr,
		splitter: split,
		shards:   shardRouter,
		cache:    cacheInst,
		balancer: bal,
		metadata: opts.Metadata,
		recentQueries: make(map[string]recentQuery),
	}

	db.startMonitor(ctx, opts)
	db.persistShard(shardRouter.All()[0])

	return db, nil
}

func (d *DB) startMonitor(ctx context.Context, opts Options) {
	var notifiers []monitor.Notifier

	notifiers = append(notifiers, monitor.NewLogNotifier(opts.Logger))

	mcfg := opts.Config.Monitor
	if mcfg.SlackWebhookURL != "" {
		notifiers = append(notifiers, monitor.NewSlackNotifier(mcfg.SlackWebhookURL))
	}

	if mcfg.PagerDutyRoutingKey != "" {
		notifiers = append(notifiers, monitor.NewPagerDutyNotifier(mcfg.PagerDutyRoutingKey))
	}

	if mcfg.WebhookURL != "" {
		notifiers = append(notifiers, monitor.NewWebhookNotifier(mcfg.WebhookURL))
	}

	if mcfg.EmailSMTPAddr != "" && len(mcfg.EmailTo) > 0 {
		notifiers = append(notifiers, monitor.NewEmailNotifier(mcfg.EmailSMTPAddr, mcfg.EmailFrom, mcfg.EmailTo, nil))
	}

	rules := monitor.DefaultRules(mcfg.DefaultCooldown)

	if d.cache != nil {
		rules = append(rules, monitor.CacheHitRateRule(mcfg.CacheHitRateThreshold, mcfg.DefaultCooldown, func() (float64, bool) {
			return d.cache.Stats().HitRate()
		}))
	}

	var recorder monitor.Recorder
	if d.metadata != nil {
		recorder = d.metadata
	}

	d.alertManager = monitor.NewAlertManager(&opts.Config.Monitor, d.registry, rules, notifiers, recorder, opts.Logger)
	d.alertManager.Start(ctx)
}

// Execute runs a read or write query, routing it first to a shard by
// the leading query parameter, then through that shard's splitter, and
// serving/populating the cache for cacheable reads.
func (d *DB) Execute(ctx context.Context, sessionID, query string, params value.ParamList) ([]value.Row, error) {
	qt := classifier.Classify(query)

	if d.cache != nil && classifier.IsCacheable(qt, query) {
		key := cache.Fingerprint(query, params)
		if rows, ok := d.cache.Get(key); ok {
			return rows, nil
		}
	}

	sh, err := d.routeShard(params)
	if err != nil {
		return nil, err
	}

	p, err := sh.Splitter.Route(ctx, sessionID, query)
	if err != nil {
		return nil, err
	}

	lease, err := p.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	rows, execErr := runQuery(ctx, lease.Conn(), query, params)
	lease.Release(execErr == nil)

	if execErr != nil {
		return nil, errs.Wrap(errs.ConnectionInvalid, execErr, "executing query").WithAttempted([]string{p.Endpoint().ID})
	}

	if qt == classifier.Write {
		d.invalidateForWrite(query)
	} else if d.cache != nil && classifier.IsCacheable(qt, query) {
		key := cache.Fingerprint(query, params)
		_ = d.cache.Set(key, rows, tablesIn(query), nil, 0)

		d.mu.Lock()
		d.recentQueries[key] = recentQuery{sessionID: sessionID, query: query, params: params}
		d.mu.Unlock()
	}

	return rows, nil
}

// ExecuteAnalytics runs a read-only query against the analytics endpoint
// pool, load balanced and circuit-broken by the configured balancer
// strategy, rather than through the primary/replica splitter.
func (d *DB) ExecuteAnalytics(ctx context.Context, affinityKey, query string, params value.ParamList) ([]value.Row, error) {
	if d.balancer == nil {
		return nil, errs.New(errs.EndpointUnavailable, "no analytics endpoints configured")
	}

	var rows []value.Row

	err := d.balancer.Execute(ctx, affinityKey, func(ctx context.Context, ep *endpoint.Endpoint) error {
		p := d.pools.Get(ep.ID)
		if p == nil {
			return errs.New(errs.EndpointUnavailable, "analytics endpoint has no open pool").WithAttempted([]string{ep.ID})
		}

		lease, err := p.Acquire(ctx)
		if err != nil {
			return err
		}

		result, execErr := runQuery(ctx, lease.Conn(), query, params)
		lease.Release(execErr == nil)
		rows = result

		return execErr
	})

	return rows, err
}

// invalidateForWrite evicts cache entries derived from the table a write
// touched. The table name is extracted by tablesIn — a FROM/INTO/UPDATE
// clause regex, not a parser.
func (d *DB) invalidateForWrite(query string) {
	if d.cache == nil {
		return
	}

	for _, table := range tablesIn(query) {
		d.cache.InvalidateByTable(table)
	}
}

// routeShard resolves the shard owning the leading query parameter.
// With a single registered shard (the common, unsharded deployment) the
// hash strategy always resolves to it regardless of key, so this is
// also the correct path when no sharding is configured.
func (d *DB) routeShard(params value.ParamList) (*shard.Shard, error) {
	key := ""

	if len(params) > 0 {
		key = params[0].String()
	}

	return d.shards.Route(key)
}

func runQuery(ctx context.Context, conn *pgx.Conn, query string, params value.ParamList) ([]value.Row, error) {
	pgRows, err := conn.Query(ctx, query, params.Native()...)
	if err != nil {
		return nil, err
	}
	defer pgRows.Close()

	var rows []value.Row

	fields := pgRows.FieldDescriptions()

	for pgRows.Next() {
		vals, err := pgRows.Values()
		if err != nil {
			return nil, err
		}

		row := make(value.Row, len(vals))
		for i, v := range vals {
			name := ""
			if i < len(fields) {
				name = string(fields[i].Name)
			}

			row[i] = value.Column{Name: name, Value: value.FromNative(v)}
		}

		rows = append(rows, row)
	}

	return rows, pgRows.Err()
}

// TxnHandle represents an open, caller-driven transaction leased from a
// single endpoint.
type TxnHandle struct {
	tx    pgx.Tx
	lease *pool.Lease
}

// BeginTransaction leases a connection from the routed endpoint for
// query and opens a transaction on it. The same sessionID/routing
// decision holds for the transaction's whole lifetime.
func (d *DB) BeginTransaction(ctx context.Context, sessionID, query string, params value.ParamList) (*TxnHandle, error) {
	sh, err := d.routeShard(params)
	if err != nil {
		return nil, err
	}

	p, err := sh.Splitter.Route(ctx, sessionID, query)
	if err != nil {
		return nil, err
	}

	lease, err := p.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	tx, err := lease.Conn().Begin(ctx)
	if err != nil {
		lease.Release(false)

		return nil, errs.Wrap(errs.ConnectionInvalid, err, "beginning transaction").WithAttempted([]string{p.Endpoint().ID})
	}

	return &TxnHandle{tx: tx, lease: lease}, nil
}

// Execute runs a statement within the open transaction.
func (h *TxnHandle) Execute(ctx context.Context, query string, params value.ParamList) ([]value.Row, error) {
	pgRows, err := h.tx.Query(ctx, query, params.Native()...)
	if err != nil {
		return nil, errs.Wrap(errs.ConnectionInvalid, err, "executing transactional query")
	}
	defer pgRows.Close()

	var rows []value.Row

	fields := pgRows.FieldDescriptions()

	for pgRows.Next() {
		vals, err := pgRows.Values()
		if err != nil {
			return nil, err
		}

		row := make(value.Row, len(vals))
		for i, v := range vals {
			name := ""
			if i < len(fields) {
				name = string(fields[i].Name)
			}

			row[i] = value.Column{Name: name, Value: value.FromNative(v)}
		}

		rows = append(rows, row)
	}

	return rows, pgRows.Err()
}

// Commit commits the transaction and releases the underlying lease.
func (h *TxnHandle) Commit(ctx context.Context) error {
	err := h.tx.Commit(ctx)
	h.lease.Release(err == nil)

	if err != nil {
		return errs.Wrap(errs.ConnectionInvalid, err, "committing transaction")
	}

	return nil
}

// Rollback rolls the transaction back and releases the underlying lease.
func (h *TxnHandle) Rollback(ctx context.Context) error {
	err := h.tx.Rollback(ctx)
	h.lease.Release(false)

	if err != nil {
		return errs.Wrap(errs.ConnectionInvalid, err, "rolling back transaction")
	}

	return nil
}

// AddShard registers a new shard cluster behind its own splitter.
func (d *DB) AddShard(id string, split *splitter.Splitter) {
	sh := &shard.Shard{ID: id, Splitter: split}
	d.shards.AddShard(sh)
	d.persistShard(sh)
}

// persistShard upserts sh's current topology snapshot into the
// control-plane schema, if a metadata store is configured.
func (d *DB) persistShard(sh *shard.Shard) {
	if d.metadata == nil || sh == nil {
		return
	}

	rec := metadata.ShardRecord{ID: sh.ID}

	if sh.Splitter != nil {
		if ep := d.registry.Get(sh.Splitter.PrimaryID()); ep != nil {
			rec.ConnectionString = ep.DSN
			rec.State = string(ep.State())
			rec.Weight = ep.Weight
			rec.Region = ep.Region
			rec.AZ = ep.AZ
		}
	}

	rec.ReplicaCount = len(d.registry.ByRole(endpoint.RoleReplica))

	if err := d.metadata.SaveShard(context.Background(), rec); err != nil {
		d.logger.Warnf("dataplane: persisting shard %s failed: %v", sh.ID, err)
	}
}

// RemoveShard drains and deregisters a shard cluster.
func (d *DB) RemoveShard(id string) {
	d.shards.RemoveShard(id)
}

// GetStatistics returns the current health score of every registered
// endpoint, keyed by endpoint id.
func (d *DB) GetStatistics() map[string]float64 {
	out := make(map[string]float64)

	for _, ep := range d.registry.All() {
		out[ep.ID] = monitor.Score(ep)
	}

	return out
}

// Health reports the health status label of each endpoint, keyed by
// endpoint id.
func (d *DB) Health() map[string]string {
	out := make(map[string]string)

	for _, ep := range d.registry.All() {
		out[ep.ID] = monitor.Status(monitor.Score(ep))
	}

	return out
}

// ForceHealthCheck immediately probes every endpoint's pool rather than
// waiting for the next maintenance tick, returning the set of endpoint
// IDs whose probe failed.
func (d *DB) ForceHealthCheck(ctx context.Context) []string {
	var failed []string

	for _, p := range d.pools.All() {
		if err := p.Probe(ctx); err != nil {
			failed = append(failed, p.Endpoint().ID)
		}
	}

	return failed
}

// InvalidateCacheByTable evicts every cache entry derived from table.
func (d *DB) InvalidateCacheByTable(table string) int {
	if d.cache == nil {
		return 0
	}

	return d.cache.InvalidateByTable(table)
}

// InvalidateCacheByTags evicts every cache entry carrying any of tags.
func (d *DB) InvalidateCacheByTags(tags []string) int {
	if d.cache == nil {
		return 0
	}

	return d.cache.InvalidateByTags(tags)
}

// ClearCache evicts the entire query cache.
func (d *DB) ClearCache() {
	if d.cache != nil {
		d.cache.Clear()
	}
}

// WarmPool re-executes the cache's current warm candidates, refreshing
// entries for the hottest recently-seen queries ahead of an expected
// traffic shift. Candidates this process never ran (e.g. after a
// restart) are skipped, since only Execute records the query text and
// params behind a cache key.
func (d *DB) WarmPool(ctx context.Context) error {
	if d.cache == nil {
		return nil
	}

	for _, key := range d.cache.WarmCandidates() {
		d.mu.Lock()
		rq, ok := d.recentQueries[key]
		d.mu.Unlock()

		if !ok {
			continue
		}

		if _, err := d.Execute(ctx, rq.sessionID, rq.query, rq.params); err != nil {
			return err
		}
	}

	return nil
}

// Shutdown stops background loops and closes every pool.
func (d *DB) Shutdown(ctx context.Context) {
	if d.alertManager != nil {
		d.alertManager.Stop()
	}

	if d.balancer != nil {
		d.balancer.StopWeightAdjust()
	}

	d.pools.CloseAll(ctx)
}

// NextSessionID returns a process-local monotonically increasing id
// suitable for binding a caller's logical session to splitter stickiness
// when the caller has no natural session identifier of its own.
func (d *DB) NextSessionID() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sessionCounter++

	return time.Now().Format("20060102T150405.000000000") + "-" + strconv.FormatInt(d.sessionCounter, 10)
}

var (
	fromTableRe   = regexp.MustCompile(`(?i)\bFROM\s+(\w+)`)
	intoTableRe   = regexp.MustCompile(`(?i)\bINTO\s+(\w+)`)
	updateTableRe = regexp.MustCompile(`(?i)\bUPDATE\s+(\w+)`)
)

// tablesIn extracts the table names a query touches, by the same
// leading-keyword regex approach internal/classifier and
// internal/advisor use rather than a SQL parser, for cache invalidation
// and tagging purposes.
func tablesIn(query string) []string {
	seen := make(map[string]bool)

	var tables []string

	for _, re := range []*regexp.Regexp{fromTableRe, intoTableRe, updateTableRe} {
		for _, m := range re.FindAllStringSubmatch(query, -1) {
			name := strings.ToLower(m[1])
			if !seen[name] {
				seen[name] = true

				tables = append(tables, name)
			}
		}
	}

	return tables
}
