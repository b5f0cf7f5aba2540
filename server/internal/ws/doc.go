// Package ws implements the WebSocket latency query stream of
// regionpulse-server.
//
// New(querier) creates a Hub. Hub.ServeHTTP upgrades a connection; every text
// frame the client sends is a latency request with the same schema as
// POST /api/v1/latency, and the hub replies with one message per frame, in
// order:
//
//	{"event": "result", "data": {"regions": [ ... ]}}
//	{"event": "error",  "error": "malformed input: regions is required"}
//
// Hub.Run(ctx) blocks until ctx is cancelled, then closes all connections.
// The server mounts the hub at /ws/latency.
package ws
