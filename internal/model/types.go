package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountType classifies the venue account a balance or execution belongs to.
type AccountType string

const (
	AccountCash   AccountType = "CASH"
	AccountMargin AccountType = "MARGIN"
	AccountFund   AccountType = "FUND"
)

// TransactionType classifies how an execution changed the account.
type TransactionType string

const (
	TransactionTrade TransactionType = "TRADE"
	TransactionSwap  TransactionType = "SWAP"
)

// -----------------------------------------------------------------------------
// Reference Types
// -----------------------------------------------------------------------------

// Product describes a tradable instrument discovered on a venue.
// Immutable after creation: duplicate inserts are no-ops.
type Product struct {
	Site   string     // Venue identifier
	Code   string     // Venue-native instrument code
	Inst   string     // Instrument unit symbol (e.g. "BTC")
	Fund   string     // Funding/quote unit symbol (e.g. "JPY")
	Disp   string     // Display name used for metric rows
	Expiry *time.Time // Optional expiry; past-expiry products drop out of current valuations
}

// Evaluation describes how to convert one unit's quote into the reference
// currency via up to two price hops. A nil leg means "already in the
// reference currency" for that hop.
type Evaluation struct {
	Site        string
	Unit        string
	TickerSite  *string // First hop: venue of the product to read a raw price from
	TickerCode  *string
	ConvertSite *string // Second hop: product whose price converts the quote further
	ConvertCode *string
}

// Account is static reference data naming a (site, acct, unit) balance bucket.
type Account struct {
	Site string
	Acct AccountType
	Unit string
	Disp string
}

// -----------------------------------------------------------------------------
// Snapshot Types
// -----------------------------------------------------------------------------

// Ticker is a minute-bucketed market quote snapshot. Any of ask/bid/ltp may
// be absent; absent is distinct from zero.
type Ticker struct {
	Site string
	Code string
	Time time.Time
	Ask  decimal.NullDecimal
	Bid  decimal.NullDecimal
	Last decimal.NullDecimal
}

// Balance is a minute-bucketed account balance snapshot.
type Balance struct {
	Site   string
	Acct   AccountType
	Unit   string
	Time   time.Time
	Amount decimal.NullDecimal
}

// Position is a minute-bucketed net position snapshot.
type Position struct {
	Site string
	Code string
	Time time.Time
	Inst decimal.NullDecimal // Net instrument quantity
	Fund decimal.NullDecimal // Net funding P&L
}

// Transaction is a single trade execution. Keyed by the venue's order and
// execution IDs; venues may resend the same execution, so inserts are
// strictly if-absent and an existing key is never overwritten.
type Transaction struct {
	Site    string
	Code    string
	Type    TransactionType
	Acct    AccountType
	OrderID string
	ExecID  string
	Time    time.Time
	Inst    decimal.NullDecimal // Signed quantity delta
	Fund    decimal.NullDecimal // Signed funding delta
}

// Metric is a derived time-series value. A nil amount records "no resolvable
// valuation" and is exported as NaN, which dashboards can tell apart from a
// real zero.
type Metric struct {
	Type   string // Metric class, e.g. "ticker", "balance", "trade@DAY"
	Time   time.Time
	Name   string
	Amount decimal.NullDecimal
}

// BucketMinute rounds a timestamp up to the next whole minute in UTC.
// Timestamps already on a minute boundary are unchanged, so repeated raw
// snapshots within the same minute collapse into the same row.
func BucketMinute(t time.Time) time.Time {
	return t.UTC().Add(time.Minute - time.Nanosecond).Truncate(time.Minute)
}
