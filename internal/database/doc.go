// Package database provides connection pool management and schema bootstrap
// for the telemetry store.
//
// A single PostgreSQL pool serves both the raw snapshot tables and the
// derived metric time-series. The pool is safely shared across concurrent
// callers; each logical store operation acquires its own transaction.
package database
