package config

import (
	"time"

	"github.com/hyp3rd/ewrap/pkg/ewrap"
)

// implement the validatable interface.
var _ validatable = (*CacheConfig)(nil)

// CacheEvictionPolicy selects the eviction policy of the query cache.
type CacheEvictionPolicy string

const (
	// CacheEvictionLRU evicts the least recently used entry.
	CacheEvictionLRU CacheEvictionPolicy = "lru"
	// CacheEvictionLFU evicts the least frequently used entry.
	CacheEvictionLFU CacheEvictionPolicy = "lfu"
	// CacheEvictionTTL evicts the entry closest to expiry.
	CacheEvictionTTL CacheEvictionPolicy = "ttl"
	// CacheEvictionHybrid blends recency and frequency scores.
	CacheEvictionHybrid CacheEvictionPolicy = "hybrid"
)

// CacheConfig holds the query cache configuration.
type CacheConfig struct {
	Enabled           bool                `mapstructure:"enabled"`
	EvictionPolicy    CacheEvictionPolicy `mapstructure:"eviction_policy"`
	MaxEntries        int                 `mapstructure:"max_entries"`
	MaxMemoryBytes    int64               `mapstructure:"max_memory_bytes"`
	DefaultTTL        time.Duration       `mapstructure:"default_ttl"`
	CompressionLevel  int                 `mapstructure:"compression_level"`
	WarmingThreshold  int                 `mapstructure:"warming_threshold"`
	WarmingTopN       int                 `mapstructure:"warming_top_n"`
	CleanupTick       time.Duration       `mapstructure:"cleanup_tick"`
	HybridFreqWeight  float64             `mapstructure:"hybrid_freq_weight"`
	HybridRecenWeight float64             `mapstructure:"hybrid_recency_weight"`
}

// Validate checks the validity of the CacheConfig struct.
func (c *CacheConfig) Validate(eg *ewrap.ErrorGroup) {
	if !c.Enabled {
		return
	}

	switch c.EvictionPolicy {
	case CacheEvictionLRU, CacheEvictionLFU, CacheEvictionTTL, CacheEvictionHybrid:
	default:
		eg.Add(ewrap.New("invalid cache eviction_policy").WithMetadata("eviction_policy", c.EvictionPolicy))
	}

	if c.MaxEntries <= 0 {
		eg.Add(ewrap.New("invalid cache max_entries").WithMetadata("max_entries", c.MaxEntries))
	}

	if c.MaxMemoryBytes <= 0 {
		eg.Add(ewrap.New("invalid cache max_memory_bytes").WithMetadata("max_memory_bytes", c.MaxMemoryBytes))
	}

	if c.DefaultTTL <= 0 {
		eg.Add(ewrap.New("invalid cache default_ttl").WithMetadata("default_ttl", c.DefaultTTL))
	}

	if c.EvictionPolicy == CacheEvictionHybrid {
		if c.HybridFreqWeight+c.HybridRecenWeight <= 0 {
			eg.Add(ewrap.New("invalid cache hybrid weights"))
		}
	}
}
