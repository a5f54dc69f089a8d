package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rickgao/portfolio-data/internal/config"
	"github.com/rickgao/portfolio-data/internal/database"
	"github.com/rickgao/portfolio-data/internal/engine"
	"github.com/rickgao/portfolio-data/internal/gauges"
	"github.com/rickgao/portfolio-data/internal/scheduler"
	"github.com/rickgao/portfolio-data/internal/store"
	"github.com/rickgao/portfolio-data/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/metricd.local.yaml", "path to config file")
	flag.Parse()

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting metricd",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"instance_id", cfg.Instance.ID,
		"read_only", cfg.Store.ReadOnly,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Connect to database
	logger.Info("connecting to database",
		"host", cfg.Database.Host,
		"port", cfg.Database.Port,
		"database", cfg.Database.Name,
	)

	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Error("failed to apply schema", "error", err)
		os.Exit(1)
	}

	logger.Info("database connected")

	// Gauge exporter with its own registry
	exporter := gauges.NewExporter()

	st := store.New(store.Config{ReadOnly: cfg.Store.ReadOnly}, pool, exporter, logger)

	// Seed reference data from config. Insert-if-absent, so restarting
	// with the same config is a no-op.
	if err := seedReference(ctx, st, cfg, logger); err != nil {
		logger.Error("failed to seed reference data", "error", err)
		os.Exit(1)
	}

	eng := engine.New(st, engineConfig(cfg), logger)

	// Serve the gauge endpoint
	mux := http.NewServeMux()
	mux.Handle(cfg.Metrics.Path, exporter.Handler())
	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler: mux,
	}
	go func() {
		logger.Info("starting metrics server", "port", cfg.Metrics.Port, "path", cfg.Metrics.Path)
		if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()

	sched := scheduler.New([]scheduler.Task{
		{
			Name:     "metrics",
			Interval: cfg.Scheduler.MetricsInterval.Std(),
			Run: func(ctx context.Context) error {
				return eng.ProcessMetrics(ctx, time.Now(), 0)
			},
		},
		{
			Name:     "purge",
			Interval: cfg.Scheduler.PurgeInterval.Std(),
			Run:      eng.PurgeMetrics,
		},
	}, logger)

	if err := sched.Start(ctx); err != nil {
		logger.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}

	logger.Info("metricd running",
		"instance_id", cfg.Instance.ID,
		"metrics_url", fmt.Sprintf("http://localhost:%d%s", cfg.Metrics.Port, cfg.Metrics.Path),
	)

	// Wait for shutdown
	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := sched.Stop(shutdownCtx); err != nil {
		logger.Error("scheduler shutdown error", "error", err)
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown error", "error", err)
	}

	logger.Info("metricd stopped")
}

func seedReference(ctx context.Context, st *store.Store, cfg *config.Config, logger *slog.Logger) error {
	products, err := st.SaveProducts(ctx, cfg.Reference.ProductRows())
	if err != nil {
		return err
	}
	evaluations, err := st.SaveEvaluations(ctx, cfg.Reference.EvaluationRows())
	if err != nil {
		return err
	}
	accounts, err := st.SaveAccounts(ctx, cfg.Reference.AccountRows())
	if err != nil {
		return err
	}

	logger.Info("reference data seeded",
		"products", len(products),
		"evaluations", len(evaluations),
		"accounts", len(accounts),
	)
	return nil
}

func engineConfig(cfg *config.Config) engine.Config {
	offset := 0
	if cfg.Engine.WindowOffsetMinutes != nil {
		offset = *cfg.Engine.WindowOffsetMinutes
	}

	tiers := make([]engine.Tier, 0, len(cfg.Retention.Tiers))
	for _, t := range cfg.Retention.Tiers {
		if t.Disabled {
			continue
		}
		tiers = append(tiers, engine.Tier{Days: t.Days, KeepMinutes: t.KeepMinutes})
	}

	return engine.Config{
		TimestampCount: cfg.Engine.TimestampCount,
		Freshness:      time.Duration(cfg.Engine.FreshnessMinutes) * time.Minute,
		WindowOffset:   time.Duration(offset) * time.Minute,
		Tiers:          tiers,
	}
}
