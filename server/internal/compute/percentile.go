package compute

import (
	"math"
	"sort"
)

// Percentile returns the p-th percentile (0–100) of values using linear
// interpolation between the two closest ranks. p outside [0, 100] is clamped.
// values is not modified. An empty input returns 0.
func Percentile(values []float64, p float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	p = math.Max(0, math.Min(100, p))
	rank := float64(n-1) * p / 100
	lower := int(math.Floor(rank))
	upper := lower + 1
	if upper > n-1 {
		upper = n - 1
	}
	weight := rank - float64(lower)

	return sorted[lower]*(1-weight) + sorted[upper]*weight
}

// Round rounds v to the given number of decimal places, halves away from zero.
func Round(v float64, places int) float64 {
	pow := math.Pow(10, float64(places))
	return math.Round(v*pow) / pow
}
