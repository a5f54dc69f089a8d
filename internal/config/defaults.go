package config

import (
	"time"

	"github.com/google/uuid"
)

// Default values for optional configuration fields.
const (
	DefaultDBPort              = 5432
	DefaultDBSSLMode           = "prefer"
	DefaultMaxConns            = 10
	DefaultMinConns            = 2
	DefaultTimestampCount      = 3
	DefaultFreshnessMinutes    = 3
	DefaultWindowOffsetMinutes = 9 * 60
	DefaultMetricsInterval     = 30 * time.Second
	DefaultPurgeInterval       = time.Hour
	DefaultMetricsPort         = 9090
	DefaultMetricsPath         = "/metrics"
)

// DefaultRetentionTiers returns the built-in purge tiers, outermost first.
func DefaultRetentionTiers() []RetentionTier {
	return []RetentionTier{
		// Older than 5+ years: delete all.
		{Days: 1984},
		// Older than 1+ month: keep top-of-hour.
		{Days: 42, KeepMinutes: []int{0}},
		// Older than 1 week: 30 minute interval.
		{Days: 7, KeepMinutes: []int{0, 30}},
		// Older than 2 days: 15 minute interval.
		{Days: 2, KeepMinutes: []int{0, 15, 30, 45}},
		// Older than 1 day: 5 minute interval.
		{Days: 1, KeepMinutes: []int{0, 5, 10, 15, 20, 25, 30, 35, 40, 45, 50, 55}},
	}
}

func (c *Config) applyDefaults() {
	// Instance defaults
	if c.Instance.ID == "" {
		c.Instance.ID = uuid.NewString()
	}

	// Database defaults
	if c.Database.Port == 0 {
		c.Database.Port = DefaultDBPort
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = DefaultDBSSLMode
	}
	if c.Database.MaxConns == 0 {
		c.Database.MaxConns = DefaultMaxConns
	}
	if c.Database.MinConns == 0 {
		c.Database.MinConns = DefaultMinConns
	}

	// Engine defaults
	if c.Engine.TimestampCount == 0 {
		c.Engine.TimestampCount = DefaultTimestampCount
	}
	if c.Engine.FreshnessMinutes == 0 {
		c.Engine.FreshnessMinutes = DefaultFreshnessMinutes
	}
	if c.Engine.WindowOffsetMinutes == nil {
		offset := DefaultWindowOffsetMinutes
		c.Engine.WindowOffsetMinutes = &offset
	}

	// Scheduler defaults
	if c.Scheduler.MetricsInterval == 0 {
		c.Scheduler.MetricsInterval = Duration(DefaultMetricsInterval)
	}
	if c.Scheduler.PurgeInterval == 0 {
		c.Scheduler.PurgeInterval = Duration(DefaultPurgeInterval)
	}

	// Retention defaults
	if len(c.Retention.Tiers) == 0 {
		c.Retention.Tiers = DefaultRetentionTiers()
	}

	// Metrics defaults
	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
}
