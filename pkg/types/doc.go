// Package types defines the Go types shared by the aggregation engine and its
// transports (REST API and WebSocket stream). These are the canonical wire
// representations of a latency query and its per-region results.
package types
