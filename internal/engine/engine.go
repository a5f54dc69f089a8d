package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/portfolio-data/internal/evaluate"
	"github.com/rickgao/portfolio-data/internal/model"
)

// Store is the persistence surface the engine reads snapshots from and
// writes metric rows to.
type Store interface {
	FetchTickers(ctx context.Context, at time.Time, includeExpired bool) ([]model.TickerSnapshot, error)
	FetchBalances(ctx context.Context, at time.Time) ([]model.BalanceSnapshot, error)
	FetchPositions(ctx context.Context, at time.Time) ([]model.PositionSnapshot, error)
	FetchTransactions(ctx context.Context, start, end time.Time) ([]model.TransactionSummary, error)
	SaveMetrics(ctx context.Context, metrics []model.Metric) ([]model.Metric, error)
	DeleteMetrics(ctx context.Context, cutoff time.Time, keepMinutes []int) (int64, error)
}

// Config holds the engine's computation settings.
type Config struct {
	// TimestampCount is how many consecutive minute timestamps each
	// scheduled run covers, ending at the current minute.
	TimestampCount int

	// Freshness is how stale a ticker snapshot may be before it is
	// skipped.
	Freshness time.Duration

	// WindowOffset shifts the DAY/MTD/YTD boundaries to approximate a
	// local trading day without real timezone arithmetic.
	WindowOffset time.Duration

	// Tiers is the ordered retention schedule applied by PurgeMetrics,
	// outermost first.
	Tiers []Tier
}

// Engine derives metric rows from stored snapshots. It keeps no state
// between calls beyond its configuration.
type Engine struct {
	store  Store
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

func New(store Store, cfg Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{store: store, cfg: cfg, logger: logger, now: time.Now}
}

// ProcessMetrics runs the full metric pass for count minute-aligned
// timestamps ending at base. For each timestamp the ticker pass runs
// first, its price map then feeds the four sibling computations, which
// run concurrently and are joined before return. Per-computation
// failures are logged and never abort the pass.
func (e *Engine) ProcessMetrics(ctx context.Context, base time.Time, count int) error {
	if count <= 0 {
		count = e.cfg.TimestampCount
	}
	if count <= 0 {
		count = 1
	}
	base = base.UTC().Truncate(time.Minute)

	var g errgroup.Group
	for i := 0; i < count; i++ {
		ts := base.Add(-time.Duration(i) * time.Minute)

		prices, err := e.ProcessTicker(ctx, ts)
		if err != nil {
			e.logger.Warn("ticker metrics failed", "time", ts, "error", err)
		}

		// Siblings still run on a failed ticker pass: a nil price map
		// resolves nothing and every row is skipped.
		g.Go(e.sibling(ctx, "balance", ts, prices, e.ProcessBalance))
		g.Go(e.sibling(ctx, "position", ts, prices, e.ProcessPosition))
		g.Go(e.sibling(ctx, "trade", ts, prices, e.ProcessTransactionTrade))
		g.Go(e.sibling(ctx, "volume", ts, prices, e.ProcessTransactionVolume))
	}
	return g.Wait()
}

func (e *Engine) sibling(ctx context.Context, name string, ts time.Time, prices evaluate.PriceMap, fn func(context.Context, time.Time, evaluate.PriceMap) error) func() error {
	return func() error {
		if err := fn(ctx, ts, prices); err != nil {
			e.logger.Warn(name+" metrics failed", "time", ts, "error", err)
		}
		return nil
	}
}

// ProcessTicker builds the price map for the timestamp and emits one
// "ticker" metric per live product, valued at its own price times the
// funding-unit multiplier. Expired products and stale snapshots feed the
// price map but emit nothing. The price map is returned for reuse by the
// sibling computations.
func (e *Engine) ProcessTicker(ctx context.Context, ts time.Time) (evaluate.PriceMap, error) {
	rows, err := e.store.FetchTickers(ctx, ts, true)
	if err != nil {
		return nil, fmt.Errorf("ticker metrics: %w", err)
	}

	prices := evaluate.BuildPriceMap(rows)
	cutoff := ts.Add(-e.cfg.Freshness)

	var metrics []model.Metric
	for _, row := range rows {
		if row.Ticker.Time.Before(cutoff) {
			continue
		}
		price, ok := prices.Lookup(row.Ticker.Site, row.Ticker.Code)
		if !ok {
			continue
		}
		if expired(row.Product.Expiry, ts) {
			continue
		}
		rate, ok := fundRate(row.FundEval, prices)
		if !ok {
			continue
		}
		metrics = append(metrics, metric("ticker", ts, row.Product.Disp, price.Mul(rate)))
	}

	if _, err := e.store.SaveMetrics(ctx, metrics); err != nil {
		return prices, fmt.Errorf("ticker metrics: %w", err)
	}
	return prices, nil
}

// ProcessBalance emits one "balance" metric per account with a resolvable
// unit evaluation, valued at amount times the multiplier.
func (e *Engine) ProcessBalance(ctx context.Context, ts time.Time, prices evaluate.PriceMap) error {
	rows, err := e.store.FetchBalances(ctx, ts)
	if err != nil {
		return fmt.Errorf("balance metrics: %w", err)
	}

	var metrics []model.Metric
	for _, row := range rows {
		if !row.Balance.Amount.Valid {
			continue
		}
		rate, ok := evaluate.Resolve(row.Evaluation, prices)
		if !ok {
			continue
		}
		metrics = append(metrics, metric("balance", ts, row.Account.Disp, row.Balance.Amount.Decimal.Mul(rate)))
	}

	if _, err := e.store.SaveMetrics(ctx, metrics); err != nil {
		return fmt.Errorf("balance metrics: %w", err)
	}
	return nil
}

// ProcessPosition emits "position@upl" (funding P&L via the funding-unit
// evaluation) and "position@qty" (instrument quantity via the
// instrument-unit evaluation) per resolvable position.
func (e *Engine) ProcessPosition(ctx context.Context, ts time.Time, prices evaluate.PriceMap) error {
	rows, err := e.store.FetchPositions(ctx, ts)
	if err != nil {
		return fmt.Errorf("position metrics: %w", err)
	}

	var metrics []model.Metric
	for _, row := range rows {
		if row.Position.Fund.Valid {
			if rate, ok := evaluate.Resolve(row.FundEval, prices); ok {
				metrics = append(metrics, metric("position@upl", ts, row.Product.Disp, row.Position.Fund.Decimal.Mul(rate)))
			}
		}
		if row.Position.Inst.Valid {
			if rate, ok := evaluate.Resolve(row.InstEval, prices); ok {
				metrics = append(metrics, metric("position@qty", ts, row.Product.Disp, row.Position.Inst.Decimal.Mul(rate)))
			}
		}
	}

	if _, err := e.store.SaveMetrics(ctx, metrics); err != nil {
		return fmt.Errorf("position metrics: %w", err)
	}
	return nil
}

// ProcessTransactionTrade aggregates transactions over the DAY, MTD and
// YTD windows and emits "trade@<WINDOW>" valued at net_inst times the
// instrument multiplier plus net_fund times the funding multiplier. A
// product whose either leg is unresolved emits nothing for that window.
func (e *Engine) ProcessTransactionTrade(ctx context.Context, ts time.Time, prices evaluate.PriceMap) error {
	var metrics []model.Metric
	for _, w := range tradeWindows(ts, e.cfg.WindowOffset) {
		rows, err := e.store.FetchTransactions(ctx, w.start, ts)
		if err != nil {
			return fmt.Errorf("trade metrics %s: %w", w.name, err)
		}
		for _, row := range rows {
			instRate, ok := evaluate.Resolve(row.InstEval, prices)
			if !ok {
				continue
			}
			fundRate, ok := evaluate.Resolve(row.FundEval, prices)
			if !ok {
				continue
			}
			amount := row.NetInst.Mul(instRate).Add(row.NetFund.Mul(fundRate))
			metrics = append(metrics, metric("trade@"+w.name, ts, row.Product.Disp, amount))
		}
	}

	if _, err := e.store.SaveMetrics(ctx, metrics); err != nil {
		return fmt.Errorf("trade metrics: %w", err)
	}
	return nil
}

// ProcessTransactionVolume aggregates transactions over the fixed 12H,
// 01D and 30D windows and emits "volume@<WINDOW>" valued at the gross
// funding turnover times the funding multiplier.
func (e *Engine) ProcessTransactionVolume(ctx context.Context, ts time.Time, prices evaluate.PriceMap) error {
	var metrics []model.Metric
	for _, w := range volumeWindows(ts) {
		rows, err := e.store.FetchTransactions(ctx, w.start, ts)
		if err != nil {
			return fmt.Errorf("volume metrics %s: %w", w.name, err)
		}
		for _, row := range rows {
			rate, ok := evaluate.Resolve(row.FundEval, prices)
			if !ok {
				continue
			}
			metrics = append(metrics, metric("volume@"+w.name, ts, row.Product.Disp, row.GrossFund.Mul(rate)))
		}
	}

	if _, err := e.store.SaveMetrics(ctx, metrics); err != nil {
		return fmt.Errorf("volume metrics: %w", err)
	}
	return nil
}

type window struct {
	name  string
	start time.Time
}

// tradeWindows computes the DAY/MTD/YTD starts by shifting the timestamp
// into the offset-local day, flooring to the calendar boundary, and
// shifting back. Fixed offset only; this intentionally ignores DST.
func tradeWindows(ts time.Time, offset time.Duration) []window {
	local := ts.UTC().Add(offset)
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
	month := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, time.UTC)
	year := time.Date(local.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	return []window{
		{"DAY", day.Add(-offset)},
		{"MTD", month.Add(-offset)},
		{"YTD", year.Add(-offset)},
	}
}

func volumeWindows(ts time.Time) []window {
	return []window{
		{"12H", ts.Add(-12 * time.Hour)},
		{"01D", ts.Add(-24 * time.Hour)},
		{"30D", ts.Add(-30 * 24 * time.Hour)},
	}
}

// fundRate resolves the funding-unit multiplier for the ticker pass. A
// product with no funding evaluation row is quoted directly in the
// reference currency and keeps its raw price.
func fundRate(eval *model.Evaluation, prices evaluate.PriceMap) (decimal.Decimal, bool) {
	if eval == nil {
		return decimal.New(1, 0), true
	}
	return evaluate.Resolve(eval, prices)
}

func expired(expiry *time.Time, ts time.Time) bool {
	return expiry != nil && expiry.Before(ts)
}

func metric(metricType string, ts time.Time, name string, amount decimal.Decimal) model.Metric {
	return model.Metric{
		Type:   metricType,
		Time:   ts,
		Name:   name,
		Amount: decimal.NewNullDecimal(amount),
	}
}
