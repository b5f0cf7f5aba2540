package dataset

import (
	"fmt"
	"io"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

// Metric and label names of the exposition format.
const (
	promLatency = "telemetry_latency_ms"
	promUptime  = "telemetry_uptime_pct"
	labelRegion = "region"
	labelSample = "sample"
)

type sampleKey struct {
	region, sample string
}

// decodeProm parses a Prometheus text exposition. Each (region, sample) label
// pair is one record; a sample present in only one of the two families gets
// 0 for the other field. Records follow the latency family's line order, then
// uptime-only samples in their own order.
func decodeProm(r io.Reader) ([]Record, error) {
	var parser expfmt.TextParser
	mfs, err := parser.TextToMetricFamilies(r)
	if err != nil {
		return nil, fmt.Errorf("dataset: parse prometheus text: %w", err)
	}

	var (
		out   []Record
		index = make(map[sampleKey]int)
	)
	for _, m := range mfs[promLatency].GetMetric() {
		k := keyOf(m)
		if i, ok := index[k]; ok {
			out[i].LatencyMs = valueOf(m)
			continue
		}
		index[k] = len(out)
		out = append(out, Record{Region: k.region, LatencyMs: valueOf(m)})
	}
	for _, m := range mfs[promUptime].GetMetric() {
		k := keyOf(m)
		if i, ok := index[k]; ok {
			out[i].UptimePct = valueOf(m)
			continue
		}
		index[k] = len(out)
		out = append(out, Record{Region: k.region, UptimePct: valueOf(m)})
	}
	return out, nil
}

func keyOf(m *dto.Metric) sampleKey {
	var k sampleKey
	for _, lp := range m.GetLabel() {
		switch lp.GetName() {
		case labelRegion:
			k.region = lp.GetValue()
		case labelSample:
			k.sample = lp.GetValue()
		}
	}
	return k
}

// valueOf returns the gauge, untyped, or counter value of m.
func valueOf(m *dto.Metric) float64 {
	switch {
	case m.Gauge != nil:
		return m.Gauge.GetValue()
	case m.Untyped != nil:
		return m.Untyped.GetValue()
	case m.Counter != nil:
		return m.Counter.GetValue()
	default:
		return 0
	}
}
