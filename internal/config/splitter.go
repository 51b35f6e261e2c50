package config

import (
	"time"

	"github.com/hyp3rd/ewrap/pkg/ewrap"
)

// implement the validatable interface.
var _ validatable = (*SplitterConfig)(nil)

// SplitterConfig holds the read/write splitting configuration.
type SplitterConfig struct {
	MaxReplicaLag    time.Duration `mapstructure:"max_replica_lag"`
	SessionWindow    time.Duration `mapstructure:"session_window"`
	FailoverEnabled  bool          `mapstructure:"failover_enabled"`
	StickyOnWrite    bool          `mapstructure:"sticky_on_write"`
}

// Validate checks the validity of the SplitterConfig struct.
func (c *SplitterConfig) Validate(eg *ewrap.ErrorGroup) {
	if c.MaxReplicaLag <= 0 {
		eg.Add(ewrap.New("invalid splitter max_replica_lag").WithMetadata("max_replica_lag", c.MaxReplicaLag))
	}

	if c.SessionWindow <= 0 {
		eg.Add(ewrap.New("invalid splitter session_window").WithMetadata("session_window", c.SessionWindow))
	}
}
