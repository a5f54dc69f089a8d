package evaluate

import (
	"github.com/shopspring/decimal"

	"github.com/rickgao/portfolio-data/internal/model"
)

var (
	one  = decimal.NewFromInt(1)
	half = decimal.NewFromFloat(0.5)
)

// PriceMap holds resolved point-in-time prices keyed by (site, code).
// It must not be mutated after construction.
type PriceMap map[string]map[string]decimal.Decimal

// Lookup returns the price for a (site, code) pair.
func (m PriceMap) Lookup(site, code string) (decimal.Decimal, bool) {
	codes, ok := m[site]
	if !ok {
		return decimal.Decimal{}, false
	}
	p, ok := codes[code]
	return p, ok
}

func (m PriceMap) set(site, code string, price decimal.Decimal) {
	codes, ok := m[site]
	if !ok {
		codes = make(map[string]decimal.Decimal)
		m[site] = codes
	}
	codes[code] = price
}

// BuildPriceMap derives one representative price per fetched ticker:
// the mid price when both ask and bid are present, else whichever of
// ask/bid/last is first available. Zero quotes are treated as absent.
func BuildPriceMap(rows []model.TickerSnapshot) PriceMap {
	prices := make(PriceMap)

	for _, row := range rows {
		if p, ok := tickerPrice(row.Ticker); ok {
			prices.set(row.Ticker.Site, row.Ticker.Code, p)
		}
	}

	return prices
}

func tickerPrice(t model.Ticker) (decimal.Decimal, bool) {
	ask, askOK := nonZero(t.Ask)
	bid, bidOK := nonZero(t.Bid)

	switch {
	case askOK && bidOK:
		return ask.Add(bid).Mul(half), true
	case askOK:
		return ask, true
	case bidOK:
		return bid, true
	}

	return nonZero(t.Last)
}

func nonZero(d decimal.NullDecimal) (decimal.Decimal, bool) {
	if !d.Valid || d.Decimal.IsZero() {
		return decimal.Decimal{}, false
	}
	return d.Decimal, true
}

// Resolve converts an evaluation into a reference-currency multiplier using
// the given price map. The multiplier starts at 1; each configured hop
// multiplies in the looked-up price. A nil evaluation, or a missing or zero
// price on any required hop, leaves the result unresolved (ok=false).
func Resolve(eval *model.Evaluation, prices PriceMap) (decimal.Decimal, bool) {
	if eval == nil {
		return decimal.Decimal{}, false
	}

	rate := one

	if eval.TickerSite != nil && eval.TickerCode != nil {
		p, ok := prices.Lookup(*eval.TickerSite, *eval.TickerCode)
		if !ok || p.IsZero() {
			return decimal.Decimal{}, false
		}
		rate = rate.Mul(p)
	}

	if eval.ConvertSite != nil && eval.ConvertCode != nil {
		p, ok := prices.Lookup(*eval.ConvertSite, *eval.ConvertCode)
		if !ok || p.IsZero() {
			return decimal.Decimal{}, false
		}
		rate = rate.Mul(p)
	}

	return rate, true
}
