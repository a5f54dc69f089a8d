package engine

import (
	"context"
	"time"
)

// Tier thins metric rows older than Days to one sample per KeepMinutes
// entry per hour. An empty keep set deletes everything past the
// threshold.
type Tier struct {
	Days        int
	KeepMinutes []int
}

// PurgeMetrics applies the retention schedule outermost tier first. Days
// are clamped to at least one so a misconfigured tier can never reach
// into live data. Tier failures are logged and the remaining tiers still
// run.
func (e *Engine) PurgeMetrics(ctx context.Context) error {
	now := e.now()

	for i, tier := range e.cfg.Tiers {
		days := tier.Days
		if days < 1 {
			days = 1
		}
		cutoff := now.Add(-time.Duration(days) * 24 * time.Hour)

		count, err := e.store.DeleteMetrics(ctx, cutoff, tier.KeepMinutes)
		if err != nil {
			e.logger.Warn("purge tier failed", "tier", i, "cutoff", cutoff, "error", err)
			continue
		}
		e.logger.Debug("purged metrics", "tier", i, "cutoff", cutoff, "count", count)
	}
	return nil
}
