package config

import "github.com/hyp3rd/ewrap/pkg/ewrap"

// implement the validatable interface.
var _ validatable = (*ShardConfig)(nil)

// ShardStrategy selects how a key maps to a shard.
type ShardStrategy string

const (
	// ShardStrategyHash applies a hash function over the shard key modulo
	// the shard count.
	ShardStrategyHash ShardStrategy = "hash"
	// ShardStrategyRange maps key ranges to shards via sorted boundaries.
	ShardStrategyRange ShardStrategy = "range"
	// ShardStrategyConsistentHash places shards on a hash ring with
	// virtual nodes to minimize data movement on topology changes.
	ShardStrategyConsistentHash ShardStrategy = "consistent_hash"
	// ShardStrategyDirectory looks up the target shard in an explicit
	// key-to-shard directory table.
	ShardStrategyDirectory ShardStrategy = "directory"
	// ShardStrategyGeographic routes by a region/geo tag on the key.
	ShardStrategyGeographic ShardStrategy = "geographic"
)

// ShardConfig holds the shard router configuration.
type ShardConfig struct {
	Strategy           ShardStrategy `mapstructure:"strategy"`
	VirtualNodes       int           `mapstructure:"virtual_nodes"`
	ReplicationFactor  int           `mapstructure:"replication_factor"`
	CrossShardAllowed  bool          `mapstructure:"cross_shard_allowed"`
	ShardKeyField      string        `mapstructure:"shard_key_field"`
}

// Validate checks the validity of the ShardConfig struct.
func (c *ShardConfig) Validate(eg *ewrap.ErrorGroup) {
	switch c.Strategy {
	case ShardStrategyHash, ShardStrategyRange, ShardStrategyConsistentHash,
		ShardStrategyDirectory, ShardStrategyGeographic:
	default:
		eg.Add(ewrap.New("invalid shard strategy").WithMetadata("strategy", c.Strategy))
	}

	if c.Strategy == ShardStrategyConsistentHash && c.VirtualNodes <= 0 {
		eg.Add(ewrap.New("invalid shard virtual_nodes").WithMetadata("virtual_nodes", c.VirtualNodes))
	}

	if c.ReplicationFactor <= 0 {
		eg.Add(ewrap.New("invalid shard replication_factor").WithMetadata("replication_factor", c.ReplicationFactor))
	}
}
