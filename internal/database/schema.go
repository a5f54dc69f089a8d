package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema holds the idempotent DDL for the eight telemetry tables. All
// monetary columns are NUMERIC (arbitrary precision), all timestamps are
// TIMESTAMPTZ stored in UTC. Composite primary keys mirror the natural keys
// of the entity model; no surrogate IDs.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS products (
		site TEXT NOT NULL,
		code TEXT NOT NULL,
		inst TEXT,
		fund TEXT,
		disp TEXT,
		expr TIMESTAMPTZ,
		PRIMARY KEY (site, code)
	)`,
	`CREATE TABLE IF NOT EXISTS evaluations (
		site TEXT NOT NULL,
		unit TEXT NOT NULL,
		ticker_site TEXT,
		ticker_code TEXT,
		convert_site TEXT,
		convert_code TEXT,
		PRIMARY KEY (site, unit)
	)`,
	`CREATE TABLE IF NOT EXISTS accounts (
		site TEXT NOT NULL,
		acct TEXT NOT NULL,
		unit TEXT NOT NULL,
		disp TEXT,
		PRIMARY KEY (site, acct, unit)
	)`,
	`CREATE TABLE IF NOT EXISTS tickers (
		site TEXT NOT NULL,
		code TEXT NOT NULL,
		time TIMESTAMPTZ NOT NULL,
		ask NUMERIC,
		bid NUMERIC,
		ltp NUMERIC,
		PRIMARY KEY (site, code, time)
	)`,
	`CREATE TABLE IF NOT EXISTS balances (
		site TEXT NOT NULL,
		acct TEXT NOT NULL,
		unit TEXT NOT NULL,
		time TIMESTAMPTZ NOT NULL,
		amount NUMERIC,
		PRIMARY KEY (site, acct, unit, time)
	)`,
	`CREATE TABLE IF NOT EXISTS positions (
		site TEXT NOT NULL,
		code TEXT NOT NULL,
		time TIMESTAMPTZ NOT NULL,
		inst NUMERIC,
		fund NUMERIC,
		PRIMARY KEY (site, code, time)
	)`,
	`CREATE TABLE IF NOT EXISTS transactions (
		site TEXT NOT NULL,
		code TEXT NOT NULL,
		type TEXT NOT NULL,
		acct TEXT NOT NULL,
		oid TEXT NOT NULL,
		eid TEXT NOT NULL,
		time TIMESTAMPTZ NOT NULL,
		inst NUMERIC,
		fund NUMERIC,
		PRIMARY KEY (site, code, type, acct, oid, eid)
	)`,
	`CREATE INDEX IF NOT EXISTS transactions_time_idx ON transactions (time)`,
	`CREATE TABLE IF NOT EXISTS metrics (
		type TEXT NOT NULL,
		time TIMESTAMPTZ NOT NULL,
		name TEXT NOT NULL,
		amount NUMERIC,
		PRIMARY KEY (type, time, name)
	)`,
	`CREATE INDEX IF NOT EXISTS metrics_time_idx ON metrics (time)`,
}

// Migrate creates any missing tables and indexes. Safe to run on every
// start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, ddl := range schema {
		if _, err := pool.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
