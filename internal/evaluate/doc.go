// Package evaluate resolves abstract units into reference-currency
// multipliers using a two-hop price lookup.
//
// A price map is built once per timestamp from the fetched tickers and is
// read-only afterwards; the concurrent per-timestamp computations share it
// by reference. A hop whose price is missing or zero makes the whole
// resolution unresolved - zero is economically meaningful and is never
// substituted for "unknown".
package evaluate
