// Package dataset holds the immutable telemetry dataset the latency API
// answers queries from.
//
// A Store is built once at startup from a file or URL (Load) and never
// mutated afterwards, so every read method is safe for concurrent use without
// locking. Supported formats:
//
//   - json    array of objects; latency_ms|latencyms and
//     uptime_pct|uptimepct|uptime are normalised to one schema
//   - parquet columns region, latency_ms, uptime_pct
//   - prom    Prometheus text exposition with telemetry_latency_ms and
//     telemetry_uptime_pct gauges joined on the (region, sample) labels
//
// Remote (http/https) sources are fetched with exponential backoff.
package dataset
