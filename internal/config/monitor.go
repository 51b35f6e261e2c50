package config

import (
	"time"

	"github.com/hyp3rd/ewrap/pkg/ewrap"
)

// implement the validatable interface.
var _ validatable = (*MonitorConfig)(nil)

// MonitorConfig holds the performance monitoring and alerting configuration.
type MonitorConfig struct {
	CollectInterval  time.Duration `mapstructure:"collect_interval"`
	AlertTick        time.Duration `mapstructure:"alert_tick"`
	AlertRetention   time.Duration `mapstructure:"alert_retention"`
	MaxAlertsPerHour int           `mapstructure:"max_alerts_per_hour"`
	DefaultCooldown  time.Duration `mapstructure:"default_cooldown"`
	SlackWebhookURL  string        `mapstructure:"slack_webhook_url"`
	PagerDutyRoutingKey string     `mapstructure:"pagerduty_routing_key"`
	WebhookURL       string        `mapstructure:"webhook_url"`
	EmailSMTPAddr    string        `mapstructure:"email_smtp_addr"`
	EmailFrom        string        `mapstructure:"email_from"`
	EmailTo          []string      `mapstructure:"email_to"`
	CacheHitRateThreshold float64  `mapstructure:"cache_hit_rate_threshold"`
}

// Validate checks the validity of the MonitorConfig struct.
func (c *MonitorConfig) Validate(eg *ewrap.ErrorGroup) {
	if c.CollectInterval <= 0 {
		eg.Add(ewrap.New("invalid monitor collect_interval").WithMetadata("collect_interval", c.CollectInterval))
	}

	if c.AlertTick <= 0 {
		eg.Add(ewrap.New("invalid monitor alert_tick").WithMetadata("alert_tick", c.AlertTick))
	}

	if c.MaxAlertsPerHour <= 0 {
		eg.Add(ewrap.New("invalid monitor max_alerts_per_hour").WithMetadata("max_alerts_per_hour", c.MaxAlertsPerHour))
	}

	if c.DefaultCooldown <= 0 {
		eg.Add(ewrap.New("invalid monitor default_cooldown").WithMetadata("default_cooldown", c.DefaultCooldown))
	}
}
