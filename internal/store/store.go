package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// GaugePublisher receives accepted metric values for live export.
type GaugePublisher interface {
	Set(metricType, name string, value float64)
}

// Config holds store settings.
type Config struct {
	// ReadOnly turns every write operation into a no-op returning an
	// empty accepted set.
	ReadOnly bool
}

// Store persists and queries the telemetry entities.
type Store struct {
	cfg    Config
	db     *pgxpool.Pool
	gauge  GaugePublisher
	logger *slog.Logger
}

// New creates a Store. The gauge may be nil when no live export is wanted.
func New(cfg Config, db *pgxpool.Pool, gauge GaugePublisher, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		cfg:    cfg,
		db:     db,
		gauge:  gauge,
		logger: logger,
	}
}

// execBatch runs a batch inside a single transaction and returns the
// rows-affected count of each queued statement, in order. Any failure
// rolls the whole transaction back.
func (s *Store) execBatch(ctx context.Context, batch *pgx.Batch) ([]int64, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	results := tx.SendBatch(ctx, batch)

	affected := make([]int64, 0, batch.Len())
	for i := 0; i < batch.Len(); i++ {
		ct, err := results.Exec()
		if err != nil {
			results.Close()
			return nil, fmt.Errorf("exec statement %d: %w", i, err)
		}
		affected = append(affected, ct.RowsAffected())
	}

	if err := results.Close(); err != nil {
		return nil, fmt.Errorf("close batch: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	return affected, nil
}

// nullDecimal parses an optional NUMERIC column fetched as text.
func nullDecimal(s *string) (decimal.NullDecimal, error) {
	if s == nil {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("parse numeric %q: %w", *s, err)
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}, nil
}

// reqDecimal parses a required NUMERIC column fetched as text.
func reqDecimal(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse numeric %q: %w", s, err)
	}
	return d, nil
}

func utc(t time.Time) time.Time { return t.UTC() }

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
