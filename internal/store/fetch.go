package store

import (
	"context"
	"fmt"
	"time"

	"github.com/rickgao/portfolio-data/internal/model"
)

// evalColumns selects one aliased evaluations row; the leading site column
// doubles as the presence marker for the outer join.
const evalColumns = `%[1]s.site, %[1]s.unit, %[1]s.ticker_site, %[1]s.ticker_code, %[1]s.convert_site, %[1]s.convert_code`

var tickerEvalCols = fmt.Sprintf(evalColumns, "ei") + ", " + fmt.Sprintf(evalColumns, "ef")

// FetchTickers returns, for each (site, code), the latest ticker at or
// before the given time whose quotes are not all null or zero, joined to
// its product and the evaluations for the product's units. Expired
// products are excluded unless includeExpired is set.
func (s *Store) FetchTickers(ctx context.Context, at time.Time, includeExpired bool) ([]model.TickerSnapshot, error) {
	query := `
		SELECT DISTINCT ON (t.site, t.code)
		       t.site, t.code, t.time, t.ask::text, t.bid::text, t.ltp::text,
		       p.inst, p.fund, p.disp, p.expr,
		       ` + tickerEvalCols + `
		FROM tickers t
		JOIN products p
		  ON p.site = t.site AND p.code = t.code
		 AND (p.expr IS NULL OR p.expr >= $1 OR $2)
		LEFT JOIN evaluations ei ON ei.site = p.site AND ei.unit = p.inst
		LEFT JOIN evaluations ef ON ef.site = p.site AND ef.unit = p.fund
		WHERE t.time <= $1
		  AND (COALESCE(t.ask, 0) <> 0 OR COALESCE(t.bid, 0) <> 0 OR COALESCE(t.ltp, 0) <> 0)
		ORDER BY t.site, t.code, t.time DESC
	`

	rows, err := s.db.Query(ctx, query, utc(at), includeExpired)
	if err != nil {
		return nil, fmt.Errorf("fetch tickers: %w", err)
	}
	defer rows.Close()

	var out []model.TickerSnapshot
	for rows.Next() {
		var (
			snap           model.TickerSnapshot
			ask, bid, ltp  *string
			inst, fund, dp *string
		)
		instEval := evalScanner{}
		fundEval := evalScanner{}

		dest := []any{
			&snap.Ticker.Site, &snap.Ticker.Code, &snap.Ticker.Time, &ask, &bid, &ltp,
			&inst, &fund, &dp, &snap.Product.Expiry,
		}
		dest = append(dest, instEval.dest()...)
		dest = append(dest, fundEval.dest()...)

		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan ticker row: %w", err)
		}

		if snap.Ticker.Ask, err = nullDecimal(ask); err != nil {
			return nil, err
		}
		if snap.Ticker.Bid, err = nullDecimal(bid); err != nil {
			return nil, err
		}
		if snap.Ticker.Last, err = nullDecimal(ltp); err != nil {
			return nil, err
		}

		snap.Product.Site = snap.Ticker.Site
		snap.Product.Code = snap.Ticker.Code
		snap.Product.Inst = str(inst)
		snap.Product.Fund = str(fund)
		snap.Product.Disp = str(dp)
		snap.InstEval = instEval.row()
		snap.FundEval = fundEval.row()

		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fetch tickers: %w", err)
	}
	return out, nil
}

// FetchBalances returns the latest balance per (site, acct, unit) at or
// before the given time, joined to its account and evaluation.
func (s *Store) FetchBalances(ctx context.Context, at time.Time) ([]model.BalanceSnapshot, error) {
	query := `
		SELECT DISTINCT ON (b.site, b.acct, b.unit)
		       b.site, b.acct, b.unit, b.time, b.amount::text,
		       a.disp,
		       ` + fmt.Sprintf(evalColumns, "e") + `
		FROM balances b
		JOIN accounts a
		  ON a.site = b.site AND a.acct = b.acct AND a.unit = b.unit
		JOIN evaluations e
		  ON e.site = b.site AND e.unit = b.unit
		WHERE b.time <= $1
		ORDER BY b.site, b.acct, b.unit, b.time DESC
	`

	rows, err := s.db.Query(ctx, query, utc(at))
	if err != nil {
		return nil, fmt.Errorf("fetch balances: %w", err)
	}
	defer rows.Close()

	var out []model.BalanceSnapshot
	for rows.Next() {
		var (
			snap   model.BalanceSnapshot
			acct   string
			amount *string
			disp   *string
		)
		eval := evalScanner{}

		dest := []any{&snap.Balance.Site, &acct, &snap.Balance.Unit, &snap.Balance.Time, &amount, &disp}
		dest = append(dest, eval.dest()...)

		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan balance row: %w", err)
		}

		if snap.Balance.Amount, err = nullDecimal(amount); err != nil {
			return nil, err
		}

		snap.Balance.Acct = model.AccountType(acct)
		snap.Account = model.Account{
			Site: snap.Balance.Site,
			Acct: snap.Balance.Acct,
			Unit: snap.Balance.Unit,
			Disp: str(disp),
		}
		snap.Evaluation = eval.row()

		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fetch balances: %w", err)
	}
	return out, nil
}

// FetchPositions returns the latest position per (site, code) at or before
// the given time, joined as in FetchTickers. Expired products are always
// excluded.
func (s *Store) FetchPositions(ctx context.Context, at time.Time) ([]model.PositionSnapshot, error) {
	query := `
		SELECT DISTINCT ON (ps.site, ps.code)
		       ps.site, ps.code, ps.time, ps.inst::text, ps.fund::text,
		       p.inst, p.fund, p.disp, p.expr,
		       ` + tickerEvalCols + `
		FROM positions ps
		JOIN products p
		  ON p.site = ps.site AND p.code = ps.code
		 AND (p.expr IS NULL OR p.expr >= $1)
		LEFT JOIN evaluations ei ON ei.site = p.site AND ei.unit = p.inst
		LEFT JOIN evaluations ef ON ef.site = p.site AND ef.unit = p.fund
		WHERE ps.time <= $1
		ORDER BY ps.site, ps.code, ps.time DESC
	`

	rows, err := s.db.Query(ctx, query, utc(at))
	if err != nil {
		return nil, fmt.Errorf("fetch positions: %w", err)
	}
	defer rows.Close()

	var out []model.PositionSnapshot
	for rows.Next() {
		var (
			snap           model.PositionSnapshot
			instQ, fundQ   *string
			inst, fund, dp *string
		)
		instEval := evalScanner{}
		fundEval := evalScanner{}

		dest := []any{
			&snap.Position.Site, &snap.Position.Code, &snap.Position.Time, &instQ, &fundQ,
			&inst, &fund, &dp, &snap.Product.Expiry,
		}
		dest = append(dest, instEval.dest()...)
		dest = append(dest, fundEval.dest()...)

		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan position row: %w", err)
		}

		if snap.Position.Inst, err = nullDecimal(instQ); err != nil {
			return nil, err
		}
		if snap.Position.Fund, err = nullDecimal(fundQ); err != nil {
			return nil, err
		}

		snap.Product.Site = snap.Position.Site
		snap.Product.Code = snap.Position.Code
		snap.Product.Inst = str(inst)
		snap.Product.Fund = str(fund)
		snap.Product.Disp = str(dp)
		snap.InstEval = instEval.row()
		snap.FundEval = fundEval.row()

		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fetch positions: %w", err)
	}
	return out, nil
}

// FetchTransactions aggregates transactions in [start, end) grouped by
// (site, code): execution count, time bounds, signed sums and
// absolute-value sums, joined to product and evaluations.
func (s *Store) FetchTransactions(ctx context.Context, start, end time.Time) ([]model.TransactionSummary, error) {
	query := `
		SELECT x.site, x.code, x.cnt, x.tmin, x.tmax,
		       x.net_inst::text, x.net_fund::text, x.grs_inst::text, x.grs_fund::text,
		       p.inst, p.fund, p.disp, p.expr,
		       ` + tickerEvalCols + `
		FROM (
			SELECT site, code,
			       COUNT(*) AS cnt,
			       MIN(time) AS tmin,
			       MAX(time) AS tmax,
			       COALESCE(SUM(inst), 0) AS net_inst,
			       COALESCE(SUM(fund), 0) AS net_fund,
			       COALESCE(SUM(ABS(inst)), 0) AS grs_inst,
			       COALESCE(SUM(ABS(fund)), 0) AS grs_fund
			FROM transactions
			WHERE time >= $1 AND time < $2
			GROUP BY site, code
		) x
		JOIN products p ON p.site = x.site AND p.code = x.code
		LEFT JOIN evaluations ei ON ei.site = p.site AND ei.unit = p.inst
		LEFT JOIN evaluations ef ON ef.site = p.site AND ef.unit = p.fund
	`

	rows, err := s.db.Query(ctx, query, utc(start), utc(end))
	if err != nil {
		return nil, fmt.Errorf("fetch transactions: %w", err)
	}
	defer rows.Close()

	var out []model.TransactionSummary
	for rows.Next() {
		var (
			sum                    model.TransactionSummary
			netI, netF, grsI, grsF string
			inst, fund, dp         *string
		)
		instEval := evalScanner{}
		fundEval := evalScanner{}

		dest := []any{
			&sum.Site, &sum.Code, &sum.Count, &sum.TimeMin, &sum.TimeMax,
			&netI, &netF, &grsI, &grsF,
			&inst, &fund, &dp, &sum.Product.Expiry,
		}
		dest = append(dest, instEval.dest()...)
		dest = append(dest, fundEval.dest()...)

		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan transaction summary: %w", err)
		}

		if sum.NetInst, err = reqDecimal(netI); err != nil {
			return nil, err
		}
		if sum.NetFund, err = reqDecimal(netF); err != nil {
			return nil, err
		}
		if sum.GrossInst, err = reqDecimal(grsI); err != nil {
			return nil, err
		}
		if sum.GrossFund, err = reqDecimal(grsF); err != nil {
			return nil, err
		}

		sum.Product.Site = sum.Site
		sum.Product.Code = sum.Code
		sum.Product.Inst = str(inst)
		sum.Product.Fund = str(fund)
		sum.Product.Disp = str(dp)
		sum.InstEval = instEval.row()
		sum.FundEval = fundEval.row()

		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fetch transactions: %w", err)
	}
	return out, nil
}

// DeleteMetrics removes metric rows strictly older than the cutoff, except
// rows whose minute-of-hour is in the keep set. Returns the number of rows
// deleted; a no-op in read-only mode.
func (s *Store) DeleteMetrics(ctx context.Context, cutoff time.Time, keepMinutes []int) (int64, error) {
	if s.cfg.ReadOnly {
		s.logger.Debug("read-only mode, skipping delete", "cutoff", cutoff, "keep_minutes", keepMinutes)
		return 0, nil
	}

	query, args := deleteMetricsSQL(utc(cutoff), keepMinutes)

	ct, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		s.logger.Error("delete metrics failed", "cutoff", cutoff, "error", err)
		return 0, fmt.Errorf("delete metrics: %w", err)
	}
	return ct.RowsAffected(), nil
}

func deleteMetricsSQL(cutoff time.Time, keepMinutes []int) (string, []any) {
	query := `DELETE FROM metrics WHERE time < $1`
	args := []any{cutoff}

	if len(keepMinutes) > 0 {
		minutes := make([]int32, 0, len(keepMinutes))
		for _, m := range keepMinutes {
			minutes = append(minutes, int32(m))
		}
		query += ` AND EXTRACT(MINUTE FROM time)::int <> ALL($2)`
		args = append(args, minutes)
	}

	return query, args
}

// evalScanner collects one aliased evaluations row from an outer join.
type evalScanner struct {
	site, unit               *string
	tickerSite, tickerCode   *string
	convertSite, convertCode *string
}

func (e *evalScanner) dest() []any {
	return []any{&e.site, &e.unit, &e.tickerSite, &e.tickerCode, &e.convertSite, &e.convertCode}
}

// row materializes the scanned evaluation, or nil when the join found
// nothing.
func (e *evalScanner) row() *model.Evaluation {
	if e.site == nil || e.unit == nil {
		return nil
	}
	return &model.Evaluation{
		Site:        *e.site,
		Unit:        *e.unit,
		TickerSite:  e.tickerSite,
		TickerCode:  e.tickerCode,
		ConvertSite: e.convertSite,
		ConvertCode: e.convertCode,
	}
}

func str(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
