// Package compute derives per-region latency summaries from the telemetry
// dataset.
//
// percentile.go provides the pure Percentile(values, p) function using linear
// interpolation between closest ranks, the convention most statistics
// packages default to:
//
//	rank   = (n-1) * p/100
//	lower  = floor(rank), upper = min(lower+1, n-1)
//	result = sorted[lower]*(1-(rank-lower)) + sorted[upper]*(rank-lower)
//
// aggregator.go provides Summarize (one region's records → RegionMetrics) and
// the Aggregator, which reads records from a RecordSource and answers single
// and batch queries. Latency and uptime figures are rounded to 2 decimal
// places. Regions without records summarise to all zeros.
package compute
