// Package config loads the regionpulse server configuration from config.yaml.
//
// Config fields:
//   - Server.HTTPPort            port for the API, stream and /metrics (default 8080)
//   - Server.*Timeout            read/write/shutdown timeouts (5s/10s/10s)
//   - Server.CORS.AllowedOrigins CORS origins (default ["*"])
//   - Server.RateLimit           global token bucket; 0 rps disables it
//   - Server.Stream.Enabled      serve /ws/latency (default true)
//   - Dataset.Path               telemetry file path or http(s) URL (required)
//   - Dataset.Format             json | parquet | prom (inferred when empty)
//   - Dataset.FetchAttempts/Timeout remote download bounds (3, 10s)
//   - Aggregator.DefaultThresholdMs breach threshold when a request omits it (180)
//   - Log.Level                  debug | info | warn | error (default info)
//
// Load(path) applies defaults before unmarshalling, then validates.
// Watch(ctx, path, onChange) reloads the file on change via fsnotify.
package config
