package cache

import (
	"io"
	"testing"
	"time"

	"github.com/hyp3rd/dbplane/internal/config"
	"github.com/hyp3rd/dbplane/internal/logger"
	"github.com/hyp3rd/dbplane/internal/logger/adapter"
	"github.com/hyp3rd/dbplane/internal/value"
)

func testLogger(t *testing.T) logger.Logger {
	t.Helper()

	cfg := logger.DefaultConfig()
	cfg.Output = io.Discard

	log, err := adapter.NewAdapter(cfg)
	if err != nil {
		t.Fatalf("constructing test logger: %v", err)
	}

	return log
}

func lruConfig() *config.CacheConfig {
	return &config.CacheConfig{
		Enabled:          true,
		EvictionPolicy:   config.CacheEvictionLRU,
		MaxEntries:       2,
		MaxMemoryBytes:   1 << 20,
		DefaultTTL:       time.Minute,
		WarmingThreshold: 1,
		WarmingTopN:      5,
	}
}

func lfuConfig() *config.CacheConfig {
	return &config.CacheConfig{
		Enabled:          true,
		EvictionPolicy:   config.CacheEvictionLFU,
		MaxEntries:       2,
		MaxMemoryBytes:   1 << 20,
		DefaultTTL:       time.Minute,
		WarmingThreshold: 1,
		WarmingTopN:      5,
	}
}

func sampleRows() []value.Row {
	return []value.Row{
		{{Name: "id", Value: value.IntValue(1)}, {Name: "name", Value: value.TextValue("alice")}},
	}
}

func TestCacheSetGetRoundTrip(t *testing.T) {
	c, err := New(lruConfig(), testLogger(t))
	if err != nil {
		t.Fatalf("constructing cache: %v", err)
	}

	if err := c.Set("k1", sampleRows(), []string{"users"}, nil, 0); err != nil {
		t.Fatalf("Set: %v", err)
	}

	rows, ok := c.Get("k1")
	if !ok {
		t.Fatal("expected cache hit")
	}

	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}

	name, _ := rows[0].Get("name")
	if s, _ := name.AsText(); s != "alice" {
		t.Fatalf("expected alice, got %s", s)
	}

	if _, ok := c.Get("missing"); ok {
		t.Fatal("expected miss on unknown key")
	}

	stats := c.Stats()
	if stats.Hits != 1 || stats.Misses != 1 || stats.Entries != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestCacheExpiry(t *testing.T) {
	c, err := New(lruConfig(), testLogger(t))
	if err != nil {
		t.Fatalf("constructing cache: %v", err)
	}

	if err := c.Set("k1", sampleRows(), nil, nil, time.Nanosecond); err != nil {
		t.Fatalf("Set: %v", err)
	}

	time.Sleep(time.Millisecond)

	if _, ok := c.Get("k1"); ok {
		t.Fatal("expected expired entry to miss")
	}
}

func TestCacheInvalidateByTable(t *testing.T) {
	c, err := New(lruConfig(), testLogger(t))
	if err != nil {
		t.Fatalf("constructing cache: %v", err)
	}

	_ = c.Set("k1", sampleRows(), []string{"users"}, nil, 0)
	_ = c.Set("k2", sampleRows(), []string{"accounts"}, nil, 0)

	n := c.InvalidateCacheByTableHelper()
	if n != 1 {
		t.Fatalf("expected 1 invalidated entry, got %d", n)
	}

	if _, ok := c.Get("k1"); ok {
		t.Fatal("expected k1 to be invalidated")
	}

	if _, ok := c.Get("k2"); !ok {
		t.Fatal("expected k2 to survive invalidation of a different table")
	}
}

// InvalidateCacheByTableHelper wraps InvalidateByTable("users") so the
// test above reads as a single assertion; kept unexported-package-local.
func (c *Cache) InvalidateCacheByTableHelper() int {
	return c.InvalidateByTable("users")
}

func TestCacheInvalidateByTags(t *testing.T) {
	c, err := New(lruConfig(), testLogger(t))
	if err != nil {
		t.Fatalf("constructing cache: %v", err)
	}

	_ = c.Set("k1", sampleRows(), nil, []string{"hot"}, 0)
	_ = c.Set("k2", sampleRows(), nil, []string{"cold"}, 0)

	n := c.InvalidateByTags([]string{"hot"})
	if n != 1 {
		t.Fatalf("expected 1 invalidated entry, got %d", n)
	}

	if _, ok := c.Get("k1"); ok {
		t.Fatal("expected k1 to be invalidated")
	}
}

func TestCacheLRUEviction(t *testing.T) {
	c, err := New(lruConfig(), testLogger(t))
	if err != nil {
		t.Fatalf("constructing cache: %v", err)
	}

	_ = c.Set("k1", sampleRows(), nil, nil, 0)
	_ = c.Set("k2", sampleRows(), nil, nil, 0)
	_ = c.Set("k3", sampleRows(), nil, nil, 0) // evicts k1 under MaxEntries=2

	if _, ok := c.Get("k1"); ok {
		t.Fatal("expected k1 to be evicted")
	}

	if _, ok := c.Get("k3"); !ok {
		t.Fatal("expected k3 to be present")
	}

	stats := c.Stats()
	if stats.Evictions != 1 {
		t.Fatalf("expected 1 eviction, got %d", stats.Evictions)
	}
}

func TestCacheLRUEnforcesMemoryCap(t *testing.T) {
	probe, err := New(lruConfig(), testLogger(t))
	if err != nil {
		t.Fatalf("constructing cache: %v", err)
	}

	_ = probe.Set("probe", sampleRows(), nil, nil, 0)
	entrySize := probe.Stats().MemoryUsed

	cfg := lruConfig()
	cfg.MaxEntries = 100 // high enough that only the byte cap can force eviction
	cfg.MaxMemoryBytes = entrySize + entrySize/2

	c, err := New(cfg, testLogger(t))
	if err != nil {
		t.Fatalf("constructing cache: %v", err)
	}

	_ = c.Set("k1", sampleRows(), nil, nil, 0)
	_ = c.Set("k2", sampleRows(), nil, nil, 0)

	stats := c.Stats()
	if stats.MemoryUsed > cfg.MaxMemoryBytes {
		t.Fatalf("expected memoryUsed (%d) to respect MaxMemoryBytes (%d) under LRU", stats.MemoryUsed, cfg.MaxMemoryBytes)
	}

	if _, ok := c.Get("k1"); ok {
		t.Fatal("expected k1 to be evicted to stay under the memory cap")
	}

	if _, ok := c.Get("k2"); !ok {
		t.Fatal("expected k2 to be present")
	}
}

func TestCacheLFUEviction(t *testing.T) {
	c, err := New(lfuConfig(), testLogger(t))
	if err != nil {
		t.Fatalf("constructing cache: %v", err)
	}

	_ = c.Set("k1", sampleRows(), nil, nil, 0)
	_ = c.Set("k2", sampleRows(), nil, nil, 0)

	// hit k2 so k1 has the lowest score when k3 forces an eviction.
	c.Get("k2")

	_ = c.Set("k3", sampleRows(), nil, nil, 0)

	if _, ok := c.Get("k1"); ok {
		t.Fatal("expected the unhit entry k1 to be evicted under LFU")
	}

	if _, ok := c.Get("k2"); !ok {
		t.Fatal("expected the hit entry k2 to survive")
	}
}

func TestCacheClear(t *testing.T) {
	c, err := New(lruConfig(), testLogger(t))
	if err != nil {
		t.Fatalf("constructing cache: %v", err)
	}

	_ = c.Set("k1", sampleRows(), []string{"users"}, []string{"hot"}, 0)
	c.Clear()

	if _, ok := c.Get("k1"); ok {
		t.Fatal("expected cache to be empty after Clear")
	}

	stats := c.Stats()
	if stats.Entries != 0 {
		t.Fatalf("expected 0 entries after Clear, got %d", stats.Entries)
	}
}

func TestCacheWarmCandidates(t *testing.T) {
	c, err := New(lfuConfig(), testLogger(t))
	if err != nil {
		t.Fatalf("constructing cache: %v", err)
	}

	_ = c.Set("k1", sampleRows(), nil, nil, 0)
	_ = c.Set("k2", sampleRows(), nil, nil, 0)

	c.Get("k1")
	c.Get("k1")
	c.Get("k2")

	candidates := c.WarmCandidates()
	if len(candidates) == 0 {
		t.Fatal("expected at least one warm candidate")
	}

	if candidates[0] != "k1" {
		t.Fatalf("expected k1 (2 hits) to rank before k2 (1 hit), got %v", candidates)
	}
}

func TestEntryExpired(t *testing.T) {
	e := &Entry{ExpiresAt: time.Now().Add(-time.Second)}
	if !e.Expired(time.Now()) {
		t.Fatal("expected entry with past ExpiresAt to be expired")
	}

	zero := &Entry{}
	if zero.Expired(time.Now()) {
		t.Fatal("expected zero-value ExpiresAt to mean no expiry")
	}
}

func TestFingerprintStableAndDistinguishesParams(t *testing.T) {
	query := "SELECT * FROM users WHERE id = ?"

	fp1 := Fingerprint(query, value.ParamList{value.IntValue(1)})
	fp2 := Fingerprint(query, value.ParamList{value.IntValue(1)})
	fp3 := Fingerprint(query, value.ParamList{value.IntValue(2)})

	if fp1 != fp2 {
		t.Fatal("expected identical query+params to fingerprint the same")
	}

	if fp1 == fp3 {
		t.Fatal("expected different params to fingerprint differently")
	}
}
