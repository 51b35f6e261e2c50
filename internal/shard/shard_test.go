package shard

import (
	"context"
	"errors"
	"testing"

	"github.com/hyp3rd/dbplane/internal/config"
	"github.com/hyp3rd/dbplane/internal/errs"
	"github.com/hyp3rd/dbplane/internal/value"
)

func TestRouteNoShardsRegistered(t *testing.T) {
	r := New(&config.ShardConfig{Strategy: config.ShardStrategyHash})

	if _, err := r.Route("any"); err == nil {
		t.Fatal("expected an error when no shards are registered")
	}
}

func TestRouteHashStrategySingleShardAlwaysResolves(t *testing.T) {
	r := New(&config.ShardConfig{Strategy: config.ShardStrategyHash})
	r.AddShard(&Shard{ID: "default"})

	for _, key := range []string{"a", "b", "12345", ""} {
		s, err := r.Route(key)
		if err != nil {
			t.Fatalf("Route(%q): unexpected error: %v", key, err)
		}

		if s.ID != "default" {
			t.Fatalf("Route(%q) = %s, want default", key, s.ID)
		}
	}
}

func TestRouteHashStrategyDistributesAcrossShards(t *testing.T) {
	r := New(&config.ShardConfig{Strategy: config.ShardStrategyHash})
	r.AddShard(&Shard{ID: "s0"})
	r.AddShard(&Shard{ID: "s1"})
	r.AddShard(&Shard{ID: "s2"})

	seen := make(map[string]bool)

	for i := 0; i < 50; i++ {
		s, err := r.Route(string(rune('a' + i%26)))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		seen[s.ID] = true
	}

	if len(seen) < 2 {
		t.Fatalf("expected keys to distribute across more than one shard, got %v", seen)
	}
}

func TestRouteConsistentHashStrategy(t *testing.T) {
	r := New(&config.ShardConfig{Strategy: config.ShardStrategyConsistentHash, VirtualNodes: 16})
	r.AddShard(&Shard{ID: "s0"})
	r.AddShard(&Shard{ID: "s1"})

	first, err := r.Route("user-42")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	second, err := r.Route("user-42")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if first.ID != second.ID {
		t.Fatal("expected the same key to route to the same shard consistently")
	}
}

func TestRouteRangeStrategy(t *testing.T) {
	r := New(&config.ShardConfig{Strategy: config.ShardStrategyRange})
	r.AddShard(&Shard{ID: "low"})
	r.AddShard(&Shard{ID: "high"})
	r.SetRanges([]RangeBoundary{
		{Upper: "m", ShardID: "low"},
		{Upper: "z", ShardID: "high"},
	})

	s, err := r.Route("a")
	if err != nil || s.ID != "low" {
		t.Fatalf("expected key 'a' to route to low, got %v, err %v", s, err)
	}

	s, err = r.Route("x")
	if err != nil || s.ID != "high" {
		t.Fatalf("expected key 'x' to route to high, got %v, err %v", s, err)
	}

	if _, err := r.Route("zz"); !errs.Is(err, errs.NoShardKey) {
		t.Fatalf("expected NoShardKey for a key outside all ranges, got %v", err)
	}
}

func TestRouteDirectoryStrategy(t *testing.T) {
	r := New(&config.ShardConfig{Strategy: config.ShardStrategyDirectory})
	r.AddShard(&Shard{ID: "s0"})
	r.AssignDirectory("tenant-1", "s0")

	s, err := r.Route("tenant-1")
	if err != nil || s.ID != "s0" {
		t.Fatalf("expected tenant-1 to route to s0, got %v, err %v", s, err)
	}

	if _, err := r.Route("tenant-unknown"); !errs.Is(err, errs.NoShardKey) {
		t.Fatalf("expected NoShardKey for an unassigned key, got %v", err)
	}
}

func TestRemoveShard(t *testing.T) {
	r := New(&config.ShardConfig{Strategy: config.ShardStrategyDirectory})
	r.AddShard(&Shard{ID: "s0"})
	r.AddShard(&Shard{ID: "s1"})
	r.AssignDirectory("tenant-1", "s0")
	r.RemoveShard("s0")

	if _, err := r.Route("tenant-1"); !errs.Is(err, errs.NoShardKey) {
		t.Fatalf("expected the directory entry to be cleared when its shard is removed, got %v", err)
	}

	if len(r.All()) != 1 || r.All()[0].ID != "s1" {
		t.Fatalf("expected only s1 left after removal, got %v", r.All())
	}
}

func TestFanOutAggregatesAndWrapsError(t *testing.T) {
	r := New(&config.ShardConfig{Strategy: config.ShardStrategyHash})
	r.AddShard(&Shard{ID: "s0"})
	r.AddShard(&Shard{ID: "s1"})

	results, err := r.FanOut(context.Background(), func(_ context.Context, s *Shard) ([]value.Row, error) {
		return nil, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}

	boom := errors.New("boom")

	_, err = r.FanOut(context.Background(), func(_ context.Context, s *Shard) ([]value.Row, error) {
		if s.ID == "s1" {
			return nil, boom
		}

		return nil, nil
	})
	if !errs.Is(err, errs.RoutingInconsistent) {
		t.Fatalf("expected RoutingInconsistent wrapping the fan-out error, got %v", err)
	}
}

func TestMigrationLifecycle(t *testing.T) {
	r := New(&config.ShardConfig{Strategy: config.ShardStrategyHash})

	m, err := r.BeginMigration(context.Background(), nil, "mig-1", "s0", "s1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if m.State != MigrationPending {
		t.Fatalf("expected a new migration to start pending, got %v", m.State)
	}

	if err := r.UpdateMigrationProgress(context.Background(), nil, "mig-1", 0.5, MigrationRunning, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	snap := r.Migration("mig-1")
	if snap.Progress != 0.5 || snap.State != MigrationRunning {
		t.Fatalf("unexpected migration snapshot: %+v", snap)
	}

	if r.Migration("unknown") != nil {
		t.Fatal("expected nil for an unknown migration id")
	}
}
