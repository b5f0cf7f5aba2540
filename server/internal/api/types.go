package api

import "github.com/regionpulse/regionpulse/server/internal/dataset"

// RegionsResponse is the payload for GET /api/v1/regions.
type RegionsResponse struct {
	Regions  []dataset.RegionSummary `json:"regions"`
	Records  int                     `json:"records"`
	Source   string                  `json:"source"`
	LoadedAt string                  `json:"loaded_at"` // RFC3339
}

// DistributionResponse is the payload for GET /api/v1/regions/{region}/distribution.
type DistributionResponse struct {
	Region string `json:"region"`
	dataset.Distribution
	// Approximate marks the quantiles as sketch estimates (1% relative error).
	Approximate bool `json:"approximate"`
}

// StatusResponse is the payload for GET /healthz and GET /readyz.
type StatusResponse struct {
	Status  string `json:"status"`
	Records int    `json:"records,omitempty"`
}

// bannerResponse is the payload for GET /.
type bannerResponse struct {
	Message string `json:"message"`
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}
