package dataset

// Record is one telemetry observation in canonical form.
type Record struct {
	Region    string
	LatencyMs float64
	UptimePct float64
}

// RegionSummary is a region name together with its record count.
type RegionSummary struct {
	Region  string `json:"region"`
	Records int    `json:"records"`
}
