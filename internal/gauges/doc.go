// Package gauges exposes computed metric values to Prometheus.
//
// Every accepted metric row is published as the "metric" gauge labelled by
// (type, name). Absent amounts are published as NaN so dashboards can
// distinguish "no resolvable valuation" from a real zero.
package gauges
