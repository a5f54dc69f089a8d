// Package model defines the shared entity types persisted by the store.
//
// All rows are identified by natural composite keys (business fields, no
// surrogate IDs). Conventions:
//   - Monetary and quantity fields: shopspring decimals (never float64)
//   - Timestamps: time.Time, stored and compared in UTC
//   - Snapshot rows (Ticker, Balance, Position): minute-bucketed, mergeable
//   - Transaction rows: append-only immutable facts, never merged
package model
