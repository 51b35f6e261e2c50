// Package cache is the intelligent query cache: zstd-compressed result
// payloads, a selectable eviction policy (LRU via hashicorp/golang-lru,
// or a hand-rolled LFU/TTL/Hybrid), table/tag invalidation, and warming
// of frequently-hit queries.
package cache

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hyp3rd/dbplane/internal/config"
	"github.com/hyp3rd/dbplane/internal/errs"
	"github.com/hyp3rd/dbplane/internal/logger"
	"github.com/hyp3rd/dbplane/internal/value"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/klauspost/compress/zstd"
)

// Stats summarizes cache activity for FlushStats to persist via
// internal/metadata.
type Stats struct {
	Hits       int64
	Misses     int64
	Evictions  int64
	Entries    int
	MemoryUsed int64
}

// Cache is the query result cache.
type Cache struct {
	cfg    *config.CacheConfig
	logger logger.Logger

	encoder *zstd.Encoder
	decoder *zstd.Decoder

	mu          sync.Mutex
	lruStore    *lru.Cache[string, *Entry]
	plainStore  map[string]*Entry
	memoryUsed  int64

	hits, misses, evictions int64

	tableIndex map[string]map[string]struct{} // table -> set of keys
	tagIndex   map[string]map[string]struct{} // tag -> set of keys
}

// New constructs a Cache for the configured eviction policy.
func New(cfg *config.CacheConfig, log logger.Logger) (*Cache, error) {
	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, errs.Wrap(errs.CacheRefused, err, "constructing zstd encoder")
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, errs.Wrap(errs.CacheRefused, err, "constructing zstd decoder")
	}

	c := &Cache{
		cfg:        cfg,
		logger:     log,
		encoder:    encoder,
		decoder:    decoder,
		tableIndex: make(map[string]map[string]struct{}),
		tagIndex:   make(map[string]map[string]struct{}),
	}

	if cfg.EvictionPolicy == config.CacheEvictionLRU {
		l, err := lru.NewWithEvict[string, *Entry](cfg.MaxEntries, c.onLRUEvict)
		if err != nil {
			return nil, errs.Wrap(errs.CacheRefused, err, "constructing lru store")
		}

		c.lruStore = l
	} else {
		c.plainStore = make(map[string]*Entry)
	}

	return c, nil
}

func (c *Cache) onLRUEvict(key string, entry *Entry) {
	c.evictions++
	c.memoryUsed -= entry.Size
	c.unindex(entry)
}

// Get returns the decompressed rows for key, if present and unexpired.
func (c *Cache) Get(key string) ([]value.Row, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.lookup(key)
	if !ok {
		c.misses++

		return nil, false
	}

	if entry.Expired(time.Now()) {
		c.removeLocked(key)
		c.misses++

		return nil, false
	}

	entry.HitCount++
	entry.LastAccess = time.Now()
	c.hits++

	rows, err := decodeRows(c.decoder, entry.Payload)
	if err != nil {
		c.logger.Warnf("cache: corrupted entry %s, evicting: %v", key, err)
		c.removeLocked(key)

		return nil, false
	}

	return rows, true
}

func (c *Cache) lookup(key string) (*Entry, bool) {
	if c.lruStore != nil {
		return c.lruStore.Get(key)
	}

	e, ok := c.plainStore[key]

	return e, ok
}

// Set compresses and stores rows under key with the given table/tag
// provenance (for later invalidation) and a TTL. ttl zero uses the
// configured default.
func (c *Cache) Set(key string, rows []value.Row, tables, tags []string, ttl time.Duration) error {
	if !c.cfg.Enabled {
		return nil
	}

	if ttl <= 0 {
		ttl = c.cfg.DefaultTTL
	}

	payload, err := encodeRows(c.encoder, rows)
	if err != nil {
		return errs.Wrap(errs.CacheRefused, err, "serializing cache entry")
	}

	if int64(len(payload)) > c.cfg.MaxMemoryBytes {
		return errs.New(errs.CacheRefused, "entry exceeds max_memory_bytes")
	}

	now := time.Now()
	entry := &Entry{
		Key:        key,
		Payload:    payload,
		Tables:     tables,
		Tags:       tags,
		CreatedAt:  now,
		ExpiresAt:  now.Add(ttl),
		LastAccess: now,
		Size:       int64(len(payload)),
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.evictForSpace(entry.Size)

	if c.lruStore != nil {
		c.lruStore.Add(key, entry)
	} else {
		if old, ok := c.plainStore[key]; ok {
			c.memoryUsed -= old.Size
			c.unindex(old)
		}

		c.plainStore[key] = entry
	}

	c.memoryUsed += entry.Size
	c.index(entry)

	return nil
}

// evictForSpace evicts entries (for non-LRU policies, via the
// configured scoring function) until there is room for an additional
// incoming entry of the given size, or the store is empty.
func (c *Cache) evictForSpace(incoming int64) {
	if c.lruStore != nil {
		// golang-lru enforces MaxEntries on Add; the byte cap is ours to
		// enforce by evicting its oldest entries until there's room.
		for c.memoryUsed+incoming > c.cfg.MaxMemoryBytes && c.lruStore.Len() > 0 {
			c.lruStore.RemoveOldest()
		}

		return
	}

	for (len(c.plainStore) >= c.cfg.MaxEntries || c.memoryUsed+incoming > c.cfg.MaxMemoryBytes) && len(c.plainStore) > 0 {
		victim, ok := c.selectVictim()
		if !ok {
			return
		}

		c.removeLocked(victim)
		c.evictions++
	}
}

// selectVictim picks the next entry to evict under LFU/TTL/Hybrid.
func (c *Cache) selectVictim() (string, bool) {
	if len(c.plainStore) == 0 {
		return "", false
	}

	now := time.Now()

	type scored struct {
		key   string
		score float64
	}

	candidates := make([]scored, 0, len(c.plainStore))

	for k, e := range c.plainStore {
		candidates = append(candidates, scored{key: k, score: c.score(e, now)})
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].score < candidates[j].score })

	return candidates[0].key, true
}

// score returns an eviction priority for e: lower is evicted first.
func (c *Cache) score(e *Entry, now time.Time) float64 {
	switch c.cfg.EvictionPolicy {
	case config.CacheEvictionLFU:
		return float64(e.HitCount)
	case config.CacheEvictionTTL:
		return float64(e.ExpiresAt.Sub(now))
	case config.CacheEvictionHybrid:
		recency := float64(now.Sub(e.LastAccess))
		freq := float64(e.HitCount)

		return c.cfg.HybridRecenWeight*(-recency) + c.cfg.HybridFreqWeight*freq
	default:
		return float64(e.HitCount)
	}
}

func (c *Cache) removeLocked(key string) {
	if c.lruStore != nil {
		c.lruStore.Remove(key)

		return
	}

	if e, ok := c.plainStore[key]; ok {
		c.memoryUsed -= e.Size
		c.unindex(e)
		delete(c.plainStore, key)
	}
}

func (c *Cache) index(e *Entry) {
	for _, t := range e.Tables {
		if c.tableIndex[t] == nil {
			c.tableIndex[t] = make(map[string]struct{})
		}

		c.tableIndex[t][e.Key] = struct{}{}
	}

	for _, tg := range e.Tags {
		if c.tagIndex[tg] == nil {
			c.tagIndex[tg] = make(map[string]struct{})
		}

		c.tagIndex[tg][e.Key] = struct{}{}
	}
}

func (c *Cache) unindex(e *Entry) {
	for _, t := range e.Tables {
		delete(c.tableIndex[t], e.Key)
	}

	for _, tg := range e.Tags {
		delete(c.tagIndex[tg], e.Key)
	}
}

// InvalidateByTable evicts every entry derived from the given table,
// e.g. after a write to it.
func (c *Cache) InvalidateByTable(table string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := c.tableIndex[table]
	count := 0

	for k := range keys {
		c.removeLocked(k)
		count++
	}

	delete(c.tableIndex, table)

	return count
}

// InvalidateByTags evicts every entry carrying any of the given tags.
func (c *Cache) InvalidateByTags(tags []string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	seen := make(map[string]struct{})

	for _, tag := range tags {
		for k := range c.tagIndex[tag] {
			seen[k] = struct{}{}
		}
	}

	for k := range seen {
		c.removeLocked(k)
	}

	for _, tag := range tags {
		delete(c.tagIndex, tag)
	}

	return len(seen)
}

// Clear evicts every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.lruStore != nil {
		c.lruStore.Purge()
	} else {
		c.plainStore = make(map[string]*Entry)
	}

	c.tableIndex = make(map[string]map[string]struct{})
	c.tagIndex = make(map[string]map[string]struct{})
	c.memoryUsed = 0
}

// Stats returns a snapshot of cache activity counters, suitable for
// periodic export via FlushStats.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries := 0
	if c.lruStore != nil {
		entries = c.lruStore.Len()
	} else {
		entries = len(c.plainStore)
	}

	return Stats{
		Hits:       c.hits,
		Misses:     c.misses,
		Evictions:  c.evictions,
		Entries:    entries,
		MemoryUsed: c.memoryUsed,
	}
}

// HitRate returns the cache hit rate as a percentage in [0, 100]. ok is
// false when no Get has been recorded yet.
func (s Stats) HitRate() (rate float64, ok bool) {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0, false
	}

	return float64(s.Hits) / float64(total) * 100, true
}

// StatsSink persists periodic cache statistics; internal/metadata.Store
// implements this against the query_cache_stats table.
type StatsSink interface {
	SaveCacheStats(ctx context.Context, s Stats) error
}

// FlushStats reports the current Stats snapshot to sink.
func (c *Cache) FlushStats(ctx context.Context, sink StatsSink) error {
	return sink.SaveCacheStats(ctx, c.Stats())
}

// WarmCandidates returns the keys of the cfg.WarmingTopN most-hit
// entries with at least cfg.WarmingThreshold hits, for the caller to
// re-issue ahead of an expected traffic shift (e.g. before a planned
// failover).
func (c *Cache) WarmCandidates() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	type scored struct {
		key string
		hit int64
	}

	var all []scored

	if c.lruStore != nil {
		for _, k := range c.lruStore.Keys() {
			if e, ok := c.lruStore.Peek(k); ok {
				all = append(all, scored{key: k, hit: e.HitCount})
			}
		}
	} else {
		for k, e := range c.plainStore {
			all = append(all, scored{key: k, hit: e.HitCount})
		}
	}

	sort.Slice(all, func(i, j int) bool { return all[i].hit > all[j].hit })

	out := make([]string, 0, c.cfg.WarmingTopN)

	for _, s := range all {
		if s.hit < int64(c.cfg.WarmingThreshold) {
			break
		}

		out = append(out, s.key)

		if len(out) >= c.cfg.WarmingTopN {
			break
		}
	}

	return out
}
