package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/portfolio-data/internal/evaluate"
	"github.com/rickgao/portfolio-data/internal/model"
)

type purgeCall struct {
	cutoff      time.Time
	keepMinutes []int
}

// fakeStore serves canned snapshots and records everything written back.
// SaveMetrics is guarded because sibling computations run concurrently.
type fakeStore struct {
	mu       sync.Mutex
	tickers  []model.TickerSnapshot
	balances []model.BalanceSnapshot
	position []model.PositionSnapshot
	txns     []model.TransactionSummary

	balanceErr error

	saved      []model.Metric
	tickerAt   []time.Time
	txnWindows []time.Time
	purged     []purgeCall
}

func (f *fakeStore) FetchTickers(_ context.Context, at time.Time, _ bool) ([]model.TickerSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tickerAt = append(f.tickerAt, at)
	return f.tickers, nil
}

func (f *fakeStore) FetchBalances(context.Context, time.Time) ([]model.BalanceSnapshot, error) {
	return f.balances, f.balanceErr
}

func (f *fakeStore) FetchPositions(context.Context, time.Time) ([]model.PositionSnapshot, error) {
	return f.position, nil
}

func (f *fakeStore) FetchTransactions(_ context.Context, start, _ time.Time) ([]model.TransactionSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.txnWindows = append(f.txnWindows, start)
	return f.txns, nil
}

func (f *fakeStore) SaveMetrics(_ context.Context, metrics []model.Metric) ([]model.Metric, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, metrics...)
	return metrics, nil
}

func (f *fakeStore) DeleteMetrics(_ context.Context, cutoff time.Time, keepMinutes []int) (int64, error) {
	f.purged = append(f.purged, purgeCall{cutoff: cutoff, keepMinutes: keepMinutes})
	return 0, nil
}

func (f *fakeStore) find(metricType, name string) (model.Metric, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.saved {
		if m.Type == metricType && m.Name == name {
			return m, true
		}
	}
	return model.Metric{}, false
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func nd(s string) decimal.NullDecimal { return decimal.NewNullDecimal(dec(s)) }

func btcEval() *model.Evaluation {
	tickerSite, tickerCode := "x", "BTC_JPY"
	return &model.Evaluation{Site: "x", Unit: "BTC", TickerSite: &tickerSite, TickerCode: &tickerCode}
}

func jpyEval() *model.Evaluation {
	return &model.Evaluation{Site: "x", Unit: "JPY"}
}

func btcTicker(ts time.Time) model.TickerSnapshot {
	return model.TickerSnapshot{
		Ticker:   model.Ticker{Site: "x", Code: "BTC_JPY", Time: ts, Ask: nd("100"), Bid: nd("98")},
		Product:  model.Product{Site: "x", Code: "BTC_JPY", Inst: "BTC", Fund: "JPY", Disp: "BTC_JPY"},
		InstEval: btcEval(),
	}
}

func TestProcessTickerAndBalance(t *testing.T) {
	ts := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	store := &fakeStore{
		tickers: []model.TickerSnapshot{btcTicker(ts)},
		balances: []model.BalanceSnapshot{{
			Balance:    model.Balance{Site: "x", Acct: model.AccountCash, Unit: "BTC", Time: ts, Amount: nd("2")},
			Account:    model.Account{Site: "x", Acct: model.AccountCash, Unit: "BTC", Disp: "x cash BTC"},
			Evaluation: btcEval(),
		}},
	}
	e := New(store, Config{Freshness: 3 * time.Minute}, nil)

	prices, err := e.ProcessTicker(context.Background(), ts)
	require.NoError(t, err)

	price, ok := prices.Lookup("x", "BTC_JPY")
	require.True(t, ok)
	assert.True(t, price.Equal(dec("99")), "mid price = %s", price)

	m, ok := store.find("ticker", "BTC_JPY")
	require.True(t, ok, "ticker metric not emitted")
	assert.True(t, m.Amount.Decimal.Equal(dec("99")), "ticker amount = %s", m.Amount.Decimal)
	assert.Equal(t, ts, m.Time)

	require.NoError(t, e.ProcessBalance(context.Background(), ts, prices))

	m, ok = store.find("balance", "x cash BTC")
	require.True(t, ok, "balance metric not emitted")
	assert.True(t, m.Amount.Decimal.Equal(dec("198")), "balance amount = %s", m.Amount.Decimal)
}

func TestProcessTickerSkipsStale(t *testing.T) {
	ts := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	store := &fakeStore{
		tickers: []model.TickerSnapshot{btcTicker(ts.Add(-10 * time.Minute))},
	}
	e := New(store, Config{Freshness: 3 * time.Minute}, nil)

	prices, err := e.ProcessTicker(context.Background(), ts)
	require.NoError(t, err)

	// Stale quotes still feed the price map for sibling valuations.
	_, ok := prices.Lookup("x", "BTC_JPY")
	assert.True(t, ok)

	_, ok = store.find("ticker", "BTC_JPY")
	assert.False(t, ok, "stale ticker should not emit")
}

func TestProcessTickerSkipsExpired(t *testing.T) {
	ts := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	expiry := ts.Add(-time.Hour)

	snap := btcTicker(ts)
	snap.Product.Expiry = &expiry
	store := &fakeStore{tickers: []model.TickerSnapshot{snap}}
	e := New(store, Config{Freshness: 3 * time.Minute}, nil)

	prices, err := e.ProcessTicker(context.Background(), ts)
	require.NoError(t, err)

	_, ok := prices.Lookup("x", "BTC_JPY")
	assert.True(t, ok, "expired products still price the map")

	_, ok = store.find("ticker", "BTC_JPY")
	assert.False(t, ok, "expired product should not emit")
}

func TestProcessTickerUnresolvedFundSkips(t *testing.T) {
	ts := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

	// Funding evaluation points at a ticker nobody published.
	usdSite, usdCode := "y", "USD_JPY"
	snap := btcTicker(ts)
	snap.FundEval = &model.Evaluation{Site: "x", Unit: "JPY", TickerSite: &usdSite, TickerCode: &usdCode}

	store := &fakeStore{tickers: []model.TickerSnapshot{snap}}
	e := New(store, Config{Freshness: 3 * time.Minute}, nil)

	_, err := e.ProcessTicker(context.Background(), ts)
	require.NoError(t, err)

	_, ok := store.find("ticker", "BTC_JPY")
	assert.False(t, ok, "unresolved funding leg must skip, never emit zero")
}

func TestProcessBalanceUnresolvedSkips(t *testing.T) {
	ts := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	store := &fakeStore{
		balances: []model.BalanceSnapshot{{
			Balance:    model.Balance{Site: "x", Acct: model.AccountCash, Unit: "BTC", Time: ts, Amount: nd("2")},
			Account:    model.Account{Site: "x", Acct: model.AccountCash, Unit: "BTC", Disp: "x cash BTC"},
			Evaluation: btcEval(),
		}},
	}
	e := New(store, Config{}, nil)

	require.NoError(t, e.ProcessBalance(context.Background(), ts, evaluate.PriceMap{}))
	assert.Empty(t, store.saved)
}

func TestProcessPosition(t *testing.T) {
	ts := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	store := &fakeStore{
		position: []model.PositionSnapshot{{
			Position: model.Position{Site: "x", Code: "BTC_JPY", Time: ts, Inst: nd("0.5"), Fund: nd("-1000")},
			Product:  model.Product{Site: "x", Code: "BTC_JPY", Disp: "BTC_JPY"},
			InstEval: btcEval(),
			FundEval: jpyEval(),
		}},
	}
	e := New(store, Config{}, nil)

	prices := evaluate.PriceMap{"x": {"BTC_JPY": dec("99")}}
	require.NoError(t, e.ProcessPosition(context.Background(), ts, prices))

	upl, ok := store.find("position@upl", "BTC_JPY")
	require.True(t, ok)
	assert.True(t, upl.Amount.Decimal.Equal(dec("-1000")), "upl = %s", upl.Amount.Decimal)

	qty, ok := store.find("position@qty", "BTC_JPY")
	require.True(t, ok)
	assert.True(t, qty.Amount.Decimal.Equal(dec("49.5")), "qty = %s", qty.Amount.Decimal)
}

func TestProcessTransactionTrade(t *testing.T) {
	// Two fills, +1/-0.5 BTC against -100/+60 JPY, already aggregated.
	ts := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	store := &fakeStore{
		txns: []model.TransactionSummary{{
			Site: "x", Code: "BTC_JPY", Count: 2,
			NetInst: dec("0.5"), NetFund: dec("-40"),
			GrossInst: dec("1.5"), GrossFund: dec("160"),
			Product:  model.Product{Site: "x", Code: "BTC_JPY", Disp: "BTC_JPY"},
			InstEval: btcEval(),
			FundEval: jpyEval(),
		}},
	}
	e := New(store, Config{WindowOffset: 9 * time.Hour}, nil)

	prices := evaluate.PriceMap{"x": {"BTC_JPY": dec("99")}}
	require.NoError(t, e.ProcessTransactionTrade(context.Background(), ts, prices))

	m, ok := store.find("trade@DAY", "BTC_JPY")
	require.True(t, ok)
	want := dec("0.5").Mul(dec("99")).Add(dec("-40")) // 9.5
	assert.True(t, m.Amount.Decimal.Equal(want), "trade@DAY = %s", m.Amount.Decimal)

	for _, key := range []string{"trade@MTD", "trade@YTD"} {
		_, ok := store.find(key, "BTC_JPY")
		assert.True(t, ok, "%s missing", key)
	}

	// 2024-03-15 12:00 UTC is 21:00 at +09:00, so the local day started
	// at 2024-03-15 00:00 +09:00 = 2024-03-14 15:00 UTC.
	require.Len(t, store.txnWindows, 3)
	assert.Equal(t, time.Date(2024, 3, 14, 15, 0, 0, 0, time.UTC), store.txnWindows[0])
	assert.Equal(t, time.Date(2024, 2, 29, 15, 0, 0, 0, time.UTC), store.txnWindows[1])
	assert.Equal(t, time.Date(2023, 12, 31, 15, 0, 0, 0, time.UTC), store.txnWindows[2])
}

func TestProcessTransactionTradeUnresolvedLeg(t *testing.T) {
	ts := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	store := &fakeStore{
		txns: []model.TransactionSummary{{
			Site: "x", Code: "BTC_JPY",
			NetInst: dec("0.5"), NetFund: dec("-40"),
			Product:  model.Product{Site: "x", Code: "BTC_JPY", Disp: "BTC_JPY"},
			InstEval: btcEval(),
			FundEval: jpyEval(),
		}},
	}
	e := New(store, Config{}, nil)

	// No BTC_JPY price: the instrument leg cannot resolve.
	require.NoError(t, e.ProcessTransactionTrade(context.Background(), ts, evaluate.PriceMap{}))
	assert.Empty(t, store.saved)
}

func TestProcessTransactionVolume(t *testing.T) {
	ts := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	store := &fakeStore{
		txns: []model.TransactionSummary{{
			Site: "x", Code: "BTC_JPY",
			NetInst: dec("0"), NetFund: dec("0"),
			GrossInst: dec("3"), GrossFund: dec("1200"),
			Product:  model.Product{Site: "x", Code: "BTC_JPY", Disp: "BTC_JPY"},
			InstEval: btcEval(),
			FundEval: jpyEval(),
		}},
	}
	e := New(store, Config{}, nil)

	require.NoError(t, e.ProcessTransactionVolume(context.Background(), ts, evaluate.PriceMap{}))

	for _, key := range []string{"volume@12H", "volume@01D", "volume@30D"} {
		m, ok := store.find(key, "BTC_JPY")
		require.True(t, ok, "%s missing", key)
		assert.True(t, m.Amount.Decimal.Equal(dec("1200")), "%s = %s", key, m.Amount.Decimal)
	}

	require.Len(t, store.txnWindows, 3)
	assert.Equal(t, ts.Add(-12*time.Hour), store.txnWindows[0])
	assert.Equal(t, ts.Add(-24*time.Hour), store.txnWindows[1])
	assert.Equal(t, ts.Add(-30*24*time.Hour), store.txnWindows[2])
}

func TestProcessMetricsFanOut(t *testing.T) {
	base := time.Date(2024, 3, 15, 12, 0, 30, 0, time.UTC)
	store := &fakeStore{
		tickers:    []model.TickerSnapshot{btcTicker(base)},
		balanceErr: errors.New("boom"),
	}
	e := New(store, Config{TimestampCount: 3, Freshness: 3 * time.Minute}, nil)

	// A failing sibling is logged, never fatal.
	require.NoError(t, e.ProcessMetrics(context.Background(), base, 2))

	want := []time.Time{
		time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 15, 11, 59, 0, 0, time.UTC),
	}
	assert.Equal(t, want, store.tickerAt)
}

func TestPurgeMetrics(t *testing.T) {
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	store := &fakeStore{}
	e := New(store, Config{Tiers: []Tier{
		{Days: 1984},
		{Days: 42, KeepMinutes: []int{0}},
		{Days: 7, KeepMinutes: []int{0, 30}},
	}}, nil)
	e.now = func() time.Time { return now }

	require.NoError(t, e.PurgeMetrics(context.Background()))

	require.Len(t, store.purged, 3)
	assert.Equal(t, now.Add(-1984*24*time.Hour), store.purged[0].cutoff)
	assert.Empty(t, store.purged[0].keepMinutes)
	assert.Equal(t, []int{0}, store.purged[1].keepMinutes)
	assert.Equal(t, now.Add(-7*24*time.Hour), store.purged[2].cutoff)
}

func TestPurgeMetricsClampsDays(t *testing.T) {
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	store := &fakeStore{}
	e := New(store, Config{Tiers: []Tier{{Days: 0, KeepMinutes: []int{0}}}}, nil)
	e.now = func() time.Time { return now }

	require.NoError(t, e.PurgeMetrics(context.Background()))

	require.Len(t, store.purged, 1)
	assert.Equal(t, now.Add(-24*time.Hour), store.purged[0].cutoff)
}
