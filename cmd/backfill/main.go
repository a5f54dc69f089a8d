package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/rickgao/portfolio-data/internal/config"
	"github.com/rickgao/portfolio-data/internal/database"
	"github.com/rickgao/portfolio-data/internal/engine"
	"github.com/rickgao/portfolio-data/internal/store"
	"github.com/rickgao/portfolio-data/internal/version"
)

// backfill recomputes metric rows for a historical time range, one
// timestamp per step. Gauges are not republished; only the metric table
// is rewritten.
func main() {
	configPath := flag.String("config", "configs/metricd.local.yaml", "path to config file")
	from := flag.String("from", "", "start of range (RFC3339, inclusive)")
	to := flag.String("to", "", "end of range (RFC3339, inclusive)")
	step := flag.Duration("step", time.Minute, "distance between recomputed timestamps")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	start, err := time.Parse(time.RFC3339, *from)
	if err != nil {
		logger.Error("invalid -from", "error", err)
		os.Exit(1)
	}
	end, err := time.Parse(time.RFC3339, *to)
	if err != nil {
		logger.Error("invalid -to", "error", err)
		os.Exit(1)
	}
	if *step < time.Minute {
		logger.Error("step must be at least one minute", "step", *step)
		os.Exit(1)
	}

	logger.Info("starting backfill",
		"version", version.Version,
		"from", start,
		"to", end,
		"step", *step,
	)

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Gauges stay nil: historical values must not overwrite the live
	// exporter state.
	st := store.New(store.Config{ReadOnly: cfg.Store.ReadOnly}, pool, nil, logger)
	eng := engine.New(st, engineConfig(cfg), logger)

	count := 0
	for ts := start; !ts.After(end); ts = ts.Add(*step) {
		if err := eng.ProcessMetrics(ctx, ts, 1); err != nil {
			logger.Error("backfill step failed", "time", ts, "error", err)
			os.Exit(1)
		}
		count++
	}

	logger.Info("backfill complete", "timestamps", count)
}

func engineConfig(cfg *config.Config) engine.Config {
	offset := 0
	if cfg.Engine.WindowOffsetMinutes != nil {
		offset = *cfg.Engine.WindowOffsetMinutes
	}
	return engine.Config{
		TimestampCount: cfg.Engine.TimestampCount,
		Freshness:      time.Duration(cfg.Engine.FreshnessMinutes) * time.Minute,
		WindowOffset:   time.Duration(offset) * time.Minute,
	}
}
