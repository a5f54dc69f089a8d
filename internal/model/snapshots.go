package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TickerSnapshot is the latest ticker at-or-before a requested time, joined
// to its product and the evaluations for the product's units. Either
// evaluation may be absent when no conversion rule is configured.
type TickerSnapshot struct {
	Ticker   Ticker
	Product  Product
	InstEval *Evaluation
	FundEval *Evaluation
}

// BalanceSnapshot is the latest balance at-or-before a requested time.
type BalanceSnapshot struct {
	Balance    Balance
	Account    Account
	Evaluation *Evaluation
}

// PositionSnapshot is the latest position at-or-before a requested time.
type PositionSnapshot struct {
	Position Position
	Product  Product
	InstEval *Evaluation
	FundEval *Evaluation
}

// TransactionSummary aggregates the transactions of one (site, code) over a
// half-open time window [start, end).
type TransactionSummary struct {
	Site      string
	Code      string
	Count     int64
	TimeMin   time.Time
	TimeMax   time.Time
	NetInst   decimal.Decimal // Signed sum of instrument deltas
	NetFund   decimal.Decimal // Signed sum of funding deltas
	GrossInst decimal.Decimal // Sum of absolute instrument deltas
	GrossFund decimal.Decimal // Sum of absolute funding deltas
	Product   Product
	InstEval  *Evaluation
	FundEval  *Evaluation
}
