package store

import (
	"context"
	"fmt"
	"math"

	"github.com/jackc/pgx/v5"

	"github.com/rickgao/portfolio-data/internal/model"
)

// SaveTickers truncates each ticker to its minute bucket and upserts it.
// Returns the subset actually written, or an empty set in read-only mode.
func (s *Store) SaveTickers(ctx context.Context, tickers []model.Ticker) ([]model.Ticker, error) {
	if s.cfg.ReadOnly || len(tickers) == 0 {
		s.skipWrite("tickers", len(tickers))
		return nil, nil
	}

	batch := &pgx.Batch{}
	accepted := make([]model.Ticker, 0, len(tickers))
	for _, t := range tickers {
		if t.Site == "" || t.Code == "" {
			return nil, fmt.Errorf("ticker missing key field: site=%q code=%q", t.Site, t.Code)
		}
		batch.Queue(`
			INSERT INTO tickers (site, code, time, ask, bid, ltp)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (site, code, time)
			DO UPDATE SET ask = EXCLUDED.ask, bid = EXCLUDED.bid, ltp = EXCLUDED.ltp
		`, t.Site, t.Code, model.BucketMinute(t.Time), t.Ask, t.Bid, t.Last)
		accepted = append(accepted, t)
	}

	if _, err := s.execBatch(ctx, batch); err != nil {
		s.logger.Error("save tickers failed", "count", len(tickers), "error", err)
		return nil, fmt.Errorf("save tickers: %w", err)
	}
	return accepted, nil
}

// SaveBalances truncates each balance to its minute bucket and upserts it.
func (s *Store) SaveBalances(ctx context.Context, balances []model.Balance) ([]model.Balance, error) {
	if s.cfg.ReadOnly || len(balances) == 0 {
		s.skipWrite("balances", len(balances))
		return nil, nil
	}

	batch := &pgx.Batch{}
	accepted := make([]model.Balance, 0, len(balances))
	for _, b := range balances {
		if b.Site == "" || b.Acct == "" || b.Unit == "" {
			return nil, fmt.Errorf("balance missing key field: site=%q acct=%q unit=%q", b.Site, b.Acct, b.Unit)
		}
		batch.Queue(`
			INSERT INTO balances (site, acct, unit, time, amount)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (site, acct, unit, time)
			DO UPDATE SET amount = EXCLUDED.amount
		`, b.Site, string(b.Acct), b.Unit, model.BucketMinute(b.Time), b.Amount)
		accepted = append(accepted, b)
	}

	if _, err := s.execBatch(ctx, batch); err != nil {
		s.logger.Error("save balances failed", "count", len(balances), "error", err)
		return nil, fmt.Errorf("save balances: %w", err)
	}
	return accepted, nil
}

// SavePositions truncates each position to its minute bucket and upserts it.
func (s *Store) SavePositions(ctx context.Context, positions []model.Position) ([]model.Position, error) {
	if s.cfg.ReadOnly || len(positions) == 0 {
		s.skipWrite("positions", len(positions))
		return nil, nil
	}

	batch := &pgx.Batch{}
	accepted := make([]model.Position, 0, len(positions))
	for _, p := range positions {
		if p.Site == "" || p.Code == "" {
			return nil, fmt.Errorf("position missing key field: site=%q code=%q", p.Site, p.Code)
		}
		batch.Queue(`
			INSERT INTO positions (site, code, time, inst, fund)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (site, code, time)
			DO UPDATE SET inst = EXCLUDED.inst, fund = EXCLUDED.fund
		`, p.Site, p.Code, model.BucketMinute(p.Time), p.Inst, p.Fund)
		accepted = append(accepted, p)
	}

	if _, err := s.execBatch(ctx, batch); err != nil {
		s.logger.Error("save positions failed", "count", len(positions), "error", err)
		return nil, fmt.Errorf("save positions: %w", err)
	}
	return accepted, nil
}

// SaveTransactions inserts executions that are not already present. A
// transaction key is an immutable fact: existing rows are never merged or
// overwritten, and resent executions drop out of the accepted set. An
// empty accepted set tells connectors to stop paginating further back.
func (s *Store) SaveTransactions(ctx context.Context, transactions []model.Transaction) ([]model.Transaction, error) {
	if s.cfg.ReadOnly || len(transactions) == 0 {
		s.skipWrite("transactions", len(transactions))
		return nil, nil
	}

	batch := &pgx.Batch{}
	candidates := make([]model.Transaction, 0, len(transactions))
	for _, t := range transactions {
		if t.Site == "" || t.Code == "" || t.Type == "" || t.Acct == "" || t.OrderID == "" || t.ExecID == "" {
			return nil, fmt.Errorf("transaction missing key field: site=%q code=%q type=%q acct=%q oid=%q eid=%q",
				t.Site, t.Code, t.Type, t.Acct, t.OrderID, t.ExecID)
		}
		batch.Queue(`
			INSERT INTO transactions (site, code, type, acct, oid, eid, time, inst, fund)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (site, code, type, acct, oid, eid) DO NOTHING
		`, t.Site, t.Code, string(t.Type), string(t.Acct), t.OrderID, t.ExecID, utc(t.Time), t.Inst, t.Fund)
		candidates = append(candidates, t)
	}

	affected, err := s.execBatch(ctx, batch)
	if err != nil {
		s.logger.Error("save transactions failed", "count", len(transactions), "error", err)
		return nil, fmt.Errorf("save transactions: %w", err)
	}

	accepted := make([]model.Transaction, 0, len(candidates))
	for i, t := range candidates {
		if affected[i] > 0 {
			accepted = append(accepted, t)
		}
	}
	return accepted, nil
}

// SaveProducts inserts products that are not already present. Products are
// immutable after creation; duplicates are no-ops.
func (s *Store) SaveProducts(ctx context.Context, products []model.Product) ([]model.Product, error) {
	if s.cfg.ReadOnly || len(products) == 0 {
		s.skipWrite("products", len(products))
		return nil, nil
	}

	batch := &pgx.Batch{}
	candidates := make([]model.Product, 0, len(products))
	for _, p := range products {
		if p.Site == "" || p.Code == "" {
			return nil, fmt.Errorf("product missing key field: site=%q code=%q", p.Site, p.Code)
		}
		batch.Queue(`
			INSERT INTO products (site, code, inst, fund, disp, expr)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (site, code) DO NOTHING
		`, p.Site, p.Code, p.Inst, p.Fund, p.Disp, utcPtr(p.Expiry))
		candidates = append(candidates, p)
	}

	affected, err := s.execBatch(ctx, batch)
	if err != nil {
		s.logger.Error("save products failed", "count", len(products), "error", err)
		return nil, fmt.Errorf("save products: %w", err)
	}

	accepted := make([]model.Product, 0, len(candidates))
	for i, p := range candidates {
		if affected[i] > 0 {
			accepted = append(accepted, p)
		}
	}
	return accepted, nil
}

// SaveEvaluations inserts evaluations that are not already present.
func (s *Store) SaveEvaluations(ctx context.Context, evaluations []model.Evaluation) ([]model.Evaluation, error) {
	if s.cfg.ReadOnly || len(evaluations) == 0 {
		s.skipWrite("evaluations", len(evaluations))
		return nil, nil
	}

	batch := &pgx.Batch{}
	candidates := make([]model.Evaluation, 0, len(evaluations))
	for _, e := range evaluations {
		if e.Site == "" || e.Unit == "" {
			return nil, fmt.Errorf("evaluation missing key field: site=%q unit=%q", e.Site, e.Unit)
		}
		batch.Queue(`
			INSERT INTO evaluations (site, unit, ticker_site, ticker_code, convert_site, convert_code)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (site, unit) DO NOTHING
		`, e.Site, e.Unit, e.TickerSite, e.TickerCode, e.ConvertSite, e.ConvertCode)
		candidates = append(candidates, e)
	}

	affected, err := s.execBatch(ctx, batch)
	if err != nil {
		s.logger.Error("save evaluations failed", "count", len(evaluations), "error", err)
		return nil, fmt.Errorf("save evaluations: %w", err)
	}

	accepted := make([]model.Evaluation, 0, len(candidates))
	for i, e := range candidates {
		if affected[i] > 0 {
			accepted = append(accepted, e)
		}
	}
	return accepted, nil
}

// SaveAccounts inserts accounts that are not already present.
func (s *Store) SaveAccounts(ctx context.Context, accounts []model.Account) ([]model.Account, error) {
	if s.cfg.ReadOnly || len(accounts) == 0 {
		s.skipWrite("accounts", len(accounts))
		return nil, nil
	}

	batch := &pgx.Batch{}
	candidates := make([]model.Account, 0, len(accounts))
	for _, a := range accounts {
		if a.Site == "" || a.Acct == "" || a.Unit == "" {
			return nil, fmt.Errorf("account missing key field: site=%q acct=%q unit=%q", a.Site, a.Acct, a.Unit)
		}
		batch.Queue(`
			INSERT INTO accounts (site, acct, unit, disp)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (site, acct, unit) DO NOTHING
		`, a.Site, string(a.Acct), a.Unit, a.Disp)
		candidates = append(candidates, a)
	}

	affected, err := s.execBatch(ctx, batch)
	if err != nil {
		s.logger.Error("save accounts failed", "count", len(accounts), "error", err)
		return nil, fmt.Errorf("save accounts: %w", err)
	}

	accepted := make([]model.Account, 0, len(candidates))
	for i, a := range candidates {
		if affected[i] > 0 {
			accepted = append(accepted, a)
		}
	}
	return accepted, nil
}

// SaveMetrics upserts metric rows and, after commit, publishes each
// accepted value to the live gauge. Absent amounts publish as NaN.
func (s *Store) SaveMetrics(ctx context.Context, metrics []model.Metric) ([]model.Metric, error) {
	if s.cfg.ReadOnly || len(metrics) == 0 {
		s.skipWrite("metrics", len(metrics))
		return nil, nil
	}

	batch := &pgx.Batch{}
	accepted := make([]model.Metric, 0, len(metrics))
	for _, m := range metrics {
		if m.Type == "" || m.Name == "" {
			return nil, fmt.Errorf("metric missing key field: type=%q name=%q", m.Type, m.Name)
		}
		batch.Queue(`
			INSERT INTO metrics (type, time, name, amount)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (type, time, name)
			DO UPDATE SET amount = EXCLUDED.amount
		`, m.Type, utc(m.Time), m.Name, m.Amount)
		accepted = append(accepted, m)
	}

	if _, err := s.execBatch(ctx, batch); err != nil {
		s.logger.Error("save metrics failed", "count", len(metrics), "error", err)
		return nil, fmt.Errorf("save metrics: %w", err)
	}

	if s.gauge != nil {
		for _, m := range accepted {
			value := math.NaN()
			if m.Amount.Valid {
				value, _ = m.Amount.Decimal.Float64()
			}
			s.gauge.Set(m.Type, m.Name, value)
		}
	}
	return accepted, nil
}

func (s *Store) skipWrite(table string, count int) {
	if s.cfg.ReadOnly && count > 0 {
		s.logger.Debug("read-only mode, skipping write", "table", table, "count", count)
	}
}
