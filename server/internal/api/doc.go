// Package api implements the HTTP surface of regionpulse-server.
//
// New(opts) returns a Handler that serves:
//
//	GET  /                                     service banner
//	GET  /healthz                              liveness, always 200
//	GET  /readyz                               200 once a non-empty dataset is loaded
//	POST /api/v1/latency                       per-region latency/uptime summary
//	GET  /api/v1/regions                       regions present in the dataset
//	GET  /api/v1/regions/{region}/distribution sketch quantiles; 404 if unknown
//
// Extra GET endpoints (/metrics, /ws/latency) are attached with Handle.
//
// The dataset is published with SetDataset after the server starts. Until then
// queries fail with ErrNotReady (503); an empty dataset yields
// compute.ErrDatasetUnavailable (503). Request validation failures wrap
// ErrMalformedInput (400). Unknown paths answer 404 and wrong methods 405,
// both with a JSON {"error": "..."} body.
//
// Middleware: CORS (gorilla/handlers), real IP, X-Request-ID, request
// logging and metrics, panic recovery, and an optional token-bucket rate
// limit on /api and /ws routes.
package api
