package evaluate

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rickgao/portfolio-data/internal/model"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func ndec(s string) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: dec(s), Valid: true}
}

func strptr(s string) *string { return &s }

func snapshot(site, code string, ask, bid, ltp decimal.NullDecimal) model.TickerSnapshot {
	return model.TickerSnapshot{
		Ticker: model.Ticker{
			Site: site,
			Code: code,
			Time: time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC),
			Ask:  ask,
			Bid:  bid,
			Last: ltp,
		},
	}
}

func TestBuildPriceMap_MidPrice(t *testing.T) {
	rows := []model.TickerSnapshot{
		snapshot("x", "BTC_JPY", ndec("30000"), ndec("30010"), decimal.NullDecimal{}),
	}

	prices := BuildPriceMap(rows)

	p, ok := prices.Lookup("x", "BTC_JPY")
	if !ok {
		t.Fatal("price not found")
	}
	if !p.Equal(dec("30005")) {
		t.Errorf("price = %s, want 30005", p)
	}
}

func TestBuildPriceMap_LastOnly(t *testing.T) {
	rows := []model.TickerSnapshot{
		snapshot("x", "ETH_JPY", decimal.NullDecimal{}, decimal.NullDecimal{}, ndec("100")),
	}

	prices := BuildPriceMap(rows)

	p, ok := prices.Lookup("x", "ETH_JPY")
	if !ok {
		t.Fatal("price not found")
	}
	if !p.Equal(dec("100")) {
		t.Errorf("price = %s, want 100", p)
	}
}

func TestBuildPriceMap_ZeroTreatedAsAbsent(t *testing.T) {
	rows := []model.TickerSnapshot{
		// Zero ask: fall back to bid alone, not mid.
		snapshot("x", "A", ndec("0"), ndec("98"), ndec("50")),
		// Everything zero or absent: no entry at all.
		snapshot("x", "B", ndec("0"), decimal.NullDecimal{}, ndec("0")),
	}

	prices := BuildPriceMap(rows)

	p, ok := prices.Lookup("x", "A")
	if !ok || !p.Equal(dec("98")) {
		t.Errorf("price A = %s ok=%v, want 98", p, ok)
	}
	if _, ok := prices.Lookup("x", "B"); ok {
		t.Error("all-zero ticker must not produce a price")
	}
}

func TestBuildPriceMap_AskOnly(t *testing.T) {
	rows := []model.TickerSnapshot{
		snapshot("x", "A", ndec("105"), decimal.NullDecimal{}, decimal.NullDecimal{}),
	}

	prices := BuildPriceMap(rows)

	p, ok := prices.Lookup("x", "A")
	if !ok || !p.Equal(dec("105")) {
		t.Errorf("price = %s ok=%v, want 105", p, ok)
	}
}

func TestResolve_NilEvaluation(t *testing.T) {
	if _, ok := Resolve(nil, make(PriceMap)); ok {
		t.Error("nil evaluation must be unresolved")
	}
}

func TestResolve_NoLegs(t *testing.T) {
	// No hops configured: the unit is already in the reference currency.
	eval := &model.Evaluation{Site: "x", Unit: "JPY"}

	rate, ok := Resolve(eval, make(PriceMap))
	if !ok {
		t.Fatal("legless evaluation must resolve")
	}
	if !rate.Equal(dec("1")) {
		t.Errorf("rate = %s, want 1", rate)
	}
}

func TestResolve_SingleHop(t *testing.T) {
	eval := &model.Evaluation{
		Site:       "x",
		Unit:       "BTC",
		TickerSite: strptr("x"),
		TickerCode: strptr("BTC_JPY"),
	}
	prices := make(PriceMap)
	prices.set("x", "BTC_JPY", dec("99"))

	rate, ok := Resolve(eval, prices)
	if !ok {
		t.Fatal("expected resolution")
	}
	if !rate.Equal(dec("99")) {
		t.Errorf("rate = %s, want 99", rate)
	}
}

func TestResolve_TwoHops(t *testing.T) {
	eval := &model.Evaluation{
		Site:        "y",
		Unit:        "BTC",
		TickerSite:  strptr("y"),
		TickerCode:  strptr("BTC_USD"),
		ConvertSite: strptr("z"),
		ConvertCode: strptr("USD_JPY"),
	}
	prices := make(PriceMap)
	prices.set("y", "BTC_USD", dec("60000"))
	prices.set("z", "USD_JPY", dec("150"))

	rate, ok := Resolve(eval, prices)
	if !ok {
		t.Fatal("expected resolution")
	}
	if !rate.Equal(dec("9000000")) {
		t.Errorf("rate = %s, want 9000000", rate)
	}
}

func TestResolve_MissingHopUnresolved(t *testing.T) {
	eval := &model.Evaluation{
		Site:        "y",
		Unit:        "BTC",
		TickerSite:  strptr("y"),
		TickerCode:  strptr("BTC_USD"),
		ConvertSite: strptr("z"),
		ConvertCode: strptr("USD_JPY"),
	}
	prices := make(PriceMap)
	prices.set("y", "BTC_USD", dec("60000"))
	// Convert hop is missing.

	if _, ok := Resolve(eval, prices); ok {
		t.Error("missing convert hop must be unresolved")
	}
}

func TestResolve_ZeroPriceUnresolved(t *testing.T) {
	eval := &model.Evaluation{
		Site:       "x",
		Unit:       "BTC",
		TickerSite: strptr("x"),
		TickerCode: strptr("BTC_JPY"),
	}
	prices := make(PriceMap)
	prices.set("x", "BTC_JPY", decimal.Zero)

	if _, ok := Resolve(eval, prices); ok {
		t.Error("zero price must be unresolved, never treated as a rate")
	}
}
