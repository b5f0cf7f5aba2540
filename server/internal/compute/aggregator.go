package compute

import (
	"errors"

	"github.com/regionpulse/regionpulse/pkg/types"
	"github.com/regionpulse/regionpulse/server/internal/dataset"
)

// Reporting constants.
const (
	// LatencyPercentile is the percentile reported as p95_latency.
	LatencyPercentile = 95

	// LatencyPrecision and UptimePrecision are the decimal places of the
	// reported averages and percentile.
	LatencyPrecision = 2
	UptimePrecision  = 2
)

// ErrDatasetUnavailable is returned when the dataset failed to load or holds
// no records. It is a service-level failure, not a per-region condition.
var ErrDatasetUnavailable = errors.New("dataset unavailable")

// RecordSource is the read side of the dataset the Aggregator needs.
// *dataset.Store implements it.
type RecordSource interface {
	RecordsForRegion(region string) []dataset.Record
	Empty() bool
}

// Summarize computes the metrics for one region's records.
//
// breaches counts records whose latency strictly exceeds thresholdMs.
// An empty recs yields a zero-filled RegionMetrics for region.
func Summarize(region string, recs []dataset.Record, thresholdMs float64) types.RegionMetrics {
	out := types.RegionMetrics{Region: region}
	if len(recs) == 0 {
		return out
	}

	latencies := make([]float64, len(recs))
	var latencySum, uptimeSum float64
	for i, r := range recs {
		latencies[i] = r.LatencyMs
		latencySum += r.LatencyMs
		uptimeSum += r.UptimePct
		if r.LatencyMs > thresholdMs {
			out.Breaches++
		}
	}

	n := float64(len(recs))
	out.AvgLatency = Round(latencySum/n, LatencyPrecision)
	out.AvgUptime = Round(uptimeSum/n, UptimePrecision)
	out.P95Latency = Round(Percentile(latencies, LatencyPercentile), LatencyPrecision)
	return out
}

// Aggregator answers latency queries against a RecordSource.
// It holds no mutable state and is safe for concurrent use as long as the
// source is.
type Aggregator struct {
	src RecordSource
}

// NewAggregator returns an Aggregator reading from src.
func NewAggregator(src RecordSource) *Aggregator {
	return &Aggregator{src: src}
}

// ComputeMetrics summarises a single region. Unknown regions are zero-filled.
func (a *Aggregator) ComputeMetrics(region string, thresholdMs float64) types.RegionMetrics {
	return Summarize(region, a.src.RecordsForRegion(region), thresholdMs)
}

// ComputeBatch summarises every region in input order, one entry per input
// element (duplicates included, unknown regions zero-filled).
// It returns ErrDatasetUnavailable when the source holds no records.
func (a *Aggregator) ComputeBatch(regions []string, thresholdMs float64) ([]types.RegionMetrics, error) {
	if a.src == nil || a.src.Empty() {
		return nil, ErrDatasetUnavailable
	}
	out := make([]types.RegionMetrics, 0, len(regions))
	for _, region := range regions {
		out = append(out, a.ComputeMetrics(region, thresholdMs))
	}
	return out, nil
}
