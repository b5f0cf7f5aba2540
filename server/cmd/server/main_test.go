package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/regionpulse/regionpulse/pkg/types"
	"github.com/regionpulse/regionpulse/server/internal/api"
	"github.com/regionpulse/regionpulse/server/internal/config"
	"github.com/regionpulse/regionpulse/server/internal/dataset"
)

func TestLoadDataset_MissingFileYieldsEmptyStore(t *testing.T) {
	st := loadDataset(context.Background(), config.DatasetConfig{
		Path:          filepath.Join(t.TempDir(), "missing.json"),
		FetchAttempts: 1,
	})
	if st == nil || !st.Empty() {
		t.Fatalf("got %v, want an empty store", st)
	}
}

func TestLoadDataset_File(t *testing.T) {
	p := filepath.Join(t.TempDir(), "telemetry.json")
	body := `[{"region":"us-east","latency_ms":100,"uptime_pct":99.9},{"region":"us-east","latencyms":300,"uptime":99.5}]`
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatalf("write dataset: %v", err)
	}

	st := loadDataset(context.Background(), config.DatasetConfig{Path: p, FetchAttempts: 1})
	if st.Len() != 2 || len(st.Regions()) != 1 {
		t.Fatalf("got %d records in %d regions, want 2 in 1", st.Len(), len(st.Regions()))
	}
}

func TestApplyReload(t *testing.T) {
	level := new(slog.LevelVar)
	h := api.New(api.Options{DefaultThresholdMs: 180})

	cur := &config.Config{Log: config.LogConfig{Level: "info"}}
	cur.Aggregator.DefaultThresholdMs = 180
	next := &config.Config{Log: config.LogConfig{Level: "debug"}}
	next.Aggregator.DefaultThresholdMs = 120

	applyReload(cur, next, level, h)

	if level.Level() != slog.LevelDebug {
		t.Errorf("level: got %v, want DEBUG", level.Level())
	}
	if got := h.DefaultThreshold(); got != 120 {
		t.Errorf("DefaultThreshold: got %v, want 120", got)
	}

	// The new default threshold reaches queries that omit threshold_ms.
	h.SetDataset(dataset.New([]dataset.Record{
		{Region: "us-east", LatencyMs: 100, UptimePct: 99.9},
		{Region: "us-east", LatencyMs: 300, UptimePct: 99.5},
	}, "test"))
	resp, err := h.Query(types.LatencyRequest{Regions: []string{"us-east"}})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if resp.Regions[0].Breaches != 1 {
		t.Errorf("breaches at 120ms: got %d, want 1", resp.Regions[0].Breaches)
	}
}

func TestRestartRequired(t *testing.T) {
	base := func() *config.Config {
		c := &config.Config{}
		c.Server.HTTPPort = 8080
		c.Server.ReadTimeout = 5 * time.Second
		c.Server.CORS.AllowedOrigins = []string{"*"}
		c.Dataset.Path = "telemetry.json"
		c.Log.Level = "info"
		return c
	}
	disabled := false

	tests := []struct {
		name   string
		mutate func(c *config.Config)
		want   []string
	}{
		{"runtime-only change", func(c *config.Config) {
			c.Log.Level = "debug"
			c.Aggregator.DefaultThresholdMs = 90
		}, nil},
		{"port", func(c *config.Config) { c.Server.HTTPPort = 9090 }, []string{"server.http_port"}},
		{"timeouts", func(c *config.Config) {
			c.Server.ReadTimeout = time.Second
			c.Server.ShutdownTimeout = time.Minute
		}, []string{"server.read_timeout", "server.shutdown_timeout"}},
		{"cors", func(c *config.Config) {
			c.Server.CORS.AllowedOrigins = []string{"https://dash.example.com"}
		}, []string{"server.cors.allowed_origins"}},
		{"rate limit", func(c *config.Config) { c.Server.RateLimit.RequestsPerSecond = 10 }, []string{"server.rate_limit"}},
		{"stream", func(c *config.Config) { c.Server.Stream.Enabled = &disabled }, []string{"server.stream.enabled"}},
		{"dataset", func(c *config.Config) { c.Dataset.Path = "other.parquet" }, []string{"dataset"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			next := base()
			tc.mutate(next)
			if got := restartRequired(base(), next); !slices.Equal(got, tc.want) {
				t.Errorf("restartRequired: got %v, want %v", got, tc.want)
			}
		})
	}
}
