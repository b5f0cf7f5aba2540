package dataset

import (
	"encoding/json"
	"fmt"
	"io"
)

// jsonRecord accepts every field spelling seen in telemetry exports.
// Pointers distinguish "absent" from an explicit zero.
type jsonRecord struct {
	Region    string   `json:"region"`
	LatencyMs *float64 `json:"latency_ms"`
	Latencyms *float64 `json:"latencyms"`
	UptimePct *float64 `json:"uptime_pct"`
	Uptimepct *float64 `json:"uptimepct"`
	Uptime    *float64 `json:"uptime"`
}

// canonical normalises a jsonRecord. The first present spelling wins;
// absent fields are 0.
func (j jsonRecord) canonical() Record {
	return Record{
		Region:    j.Region,
		LatencyMs: firstOf(j.LatencyMs, j.Latencyms),
		UptimePct: firstOf(j.UptimePct, j.Uptimepct, j.Uptime),
	}
}

func firstOf(vals ...*float64) float64 {
	for _, v := range vals {
		if v != nil {
			return *v
		}
	}
	return 0
}

// decodeJSON parses a JSON array of telemetry objects.
func decodeJSON(r io.Reader) ([]Record, error) {
	var raw []jsonRecord
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("dataset: parse json: %w", err)
	}
	out := make([]Record, 0, len(raw))
	for _, j := range raw {
		out = append(out, j.canonical())
	}
	return out, nil
}
