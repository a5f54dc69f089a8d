package config

import (
	"errors"
	"fmt"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if err := c.Database.validate("database"); err != nil {
		return err
	}

	if c.Engine.TimestampCount < 1 {
		return errors.New("engine.timestamp_count must be >= 1")
	}
	if c.Engine.FreshnessMinutes < 1 {
		return errors.New("engine.freshness_minutes must be >= 1")
	}

	if c.Scheduler.MetricsInterval < 0 {
		return errors.New("scheduler.metrics_interval must be positive")
	}
	if c.Scheduler.PurgeInterval < 0 {
		return errors.New("scheduler.purge_interval must be positive")
	}

	for i, tier := range c.Retention.Tiers {
		if tier.Disabled {
			continue
		}
		if tier.Days < 1 {
			return fmt.Errorf("retention.tiers[%d].days must be >= 1", i)
		}
		for _, m := range tier.KeepMinutes {
			if m < 0 || m > 59 {
				return fmt.Errorf("retention.tiers[%d].keep_minutes has out-of-range minute %d", i, m)
			}
		}
	}

	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return errors.New("metrics.port must be between 1 and 65535")
	}

	for i, p := range c.Reference.Products {
		if p.Site == "" || p.Code == "" {
			return fmt.Errorf("reference.products[%d] is missing site or code", i)
		}
	}
	for i, e := range c.Reference.Evaluations {
		if e.Site == "" || e.Unit == "" {
			return fmt.Errorf("reference.evaluations[%d] is missing site or unit", i)
		}
	}
	for i, a := range c.Reference.Accounts {
		if a.Site == "" || a.Acct == "" || a.Unit == "" {
			return fmt.Errorf("reference.accounts[%d] is missing site, acct or unit", i)
		}
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Port < 1 || db.Port > 65535 {
		return fmt.Errorf("%s.port must be between 1 and 65535", prefix)
	}
	return nil
}
