// Package engine derives the normalized metric stream from stored
// snapshots: point-in-time ticker, balance and position valuations,
// windowed trade P&L and gross volume, plus the tiered retention purge.
// All arithmetic is exact decimal; an unresolvable valuation is skipped,
// never emitted as zero.
package engine
