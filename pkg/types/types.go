package types

// LatencyRequest is the body of POST /api/v1/latency and of every frame sent
// on the WebSocket query stream.
type LatencyRequest struct {
	// Regions lists the regions to summarise. Output order follows this list,
	// duplicates included.
	Regions []string `json:"regions"`

	// ThresholdMs is the breach threshold in milliseconds. A nil value means
	// the server's configured default applies.
	ThresholdMs *float64 `json:"threshold_ms,omitempty"`
}

// RegionMetrics is the summary of one region's telemetry.
// Regions without records are reported with every field zero.
type RegionMetrics struct {
	Region     string  `json:"region"`
	AvgLatency float64 `json:"avg_latency"` // ms, 2dp
	P95Latency float64 `json:"p95_latency"` // ms, 2dp, linear interpolation
	AvgUptime  float64 `json:"avg_uptime"`  // percent, 2dp
	Breaches   int     `json:"breaches"`    // records with latency > threshold
}

// LatencyResponse is the list-form result of a latency query.
type LatencyResponse struct {
	Regions []RegionMetrics `json:"regions"`
}
