// Package store implements durable persistence for the telemetry entities.
//
// Write operations share a common shape: each call is one database
// transaction, batched with pgx.Batch, returning the subset of rows
// actually written. Snapshot rows (tickers, balances, positions) upsert by
// their minute bucket; transactions and reference rows insert-if-absent
// with ON CONFLICT DO NOTHING, so a resent execution is silently dropped
// and the caller sees an empty accepted set.
//
// In read-only mode every write path is a no-op returning an empty
// accepted set; reads are unaffected.
package store
