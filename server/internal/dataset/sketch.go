package dataset

import (
	"log/slog"

	"github.com/DataDog/sketches-go/ddsketch"
)

// sketchAccuracy is the relative accuracy of the per-region DDSketch.
const sketchAccuracy = 0.01

// Distribution is an approximate summary of one region's latencies.
// Quantiles come from a DDSketch and are within 1% relative error of the true
// value; Count, Min and Max are exact. The exact p95 used in query results is
// computed separately by the compute package.
type Distribution struct {
	Count int     `json:"count"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	P50   float64 `json:"p50"`
	P90   float64 `json:"p90"`
	P95   float64 `json:"p95"`
	P99   float64 `json:"p99"`
}

// buildDistribution feeds recs into a fresh sketch and freezes its quantiles.
// The sketch itself is discarded so the Store holds only immutable values.
func buildDistribution(recs []Record) Distribution {
	d := Distribution{Count: len(recs)}
	if len(recs) == 0 {
		return d
	}

	d.Min, d.Max = recs[0].LatencyMs, recs[0].LatencyMs
	for _, r := range recs[1:] {
		if r.LatencyMs < d.Min {
			d.Min = r.LatencyMs
		}
		if r.LatencyMs > d.Max {
			d.Max = r.LatencyMs
		}
	}

	sketch, err := ddsketch.NewDefaultDDSketch(sketchAccuracy)
	if err != nil {
		slog.Warn("dataset: sketch unavailable", "region", recs[0].Region, "err", err)
		return d
	}
	for _, r := range recs {
		if err := sketch.Add(r.LatencyMs); err != nil {
			slog.Debug("dataset: sketch rejected value", "region", r.Region, "value", r.LatencyMs, "err", err)
		}
	}

	d.P50 = quantile(sketch, 0.50, d)
	d.P90 = quantile(sketch, 0.90, d)
	d.P95 = quantile(sketch, 0.95, d)
	d.P99 = quantile(sketch, 0.99, d)
	return d
}

// quantile reads q from sketch and clamps it to the exact [Min, Max] range,
// which the sketch's relative error can otherwise overshoot.
func quantile(sketch *ddsketch.DDSketch, q float64, d Distribution) float64 {
	v, err := sketch.GetValueAtQuantile(q)
	if err != nil {
		return 0
	}
	if v < d.Min {
		return d.Min
	}
	if v > d.Max {
		return d.Max
	}
	return v
}
