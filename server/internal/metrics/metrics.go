package metrics

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Lookup results for RegionLookups.
const (
	LookupHit  = "hit"
	LookupMiss = "miss"
)

// Metrics groups the collectors recorded by the HTTP layer and the loader.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RegionLookups   *prometheus.CounterVec
	DatasetRecords  prometheus.Gauge
	DatasetRegions  prometheus.Gauge
	DatasetReady    prometheus.Gauge
}

// New registers all collectors on reg. A nil reg gets a private registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)

	return &Metrics{
		RequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "regionpulse_http_requests_total",
			Help: "Total HTTP requests by route pattern, method and status code.",
		}, []string{"route", "method", "code"}),

		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "regionpulse_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern and method.",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"route", "method"}),

		RegionLookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "regionpulse_region_lookups_total",
			Help: "Region lookups performed by latency queries, by result.",
		}, []string{"result"}),

		DatasetRecords: f.NewGauge(prometheus.GaugeOpts{
			Name: "regionpulse_dataset_records",
			Help: "Number of telemetry records in the loaded dataset.",
		}),

		DatasetRegions: f.NewGauge(prometheus.GaugeOpts{
			Name: "regionpulse_dataset_regions",
			Help: "Number of distinct regions in the loaded dataset.",
		}),

		DatasetReady: f.NewGauge(prometheus.GaugeOpts{
			Name: "regionpulse_dataset_ready",
			Help: "1 once a non-empty dataset is loaded, else 0.",
		}),
	}
}

// ObserveRequest records one completed HTTP request.
func (m *Metrics) ObserveRequest(route, method string, code int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	m.RequestDuration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

// ObserveLookup records one region lookup.
func (m *Metrics) ObserveLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.RegionLookups.WithLabelValues(LookupHit).Inc()
		return
	}
	m.RegionLookups.WithLabelValues(LookupMiss).Inc()
}

// SetDataset publishes the size of the loaded dataset.
func (m *Metrics) SetDataset(records, regions int) {
	if m == nil {
		return
	}
	m.DatasetRecords.Set(float64(records))
	m.DatasetRegions.Set(float64(regions))
	if records > 0 {
		m.DatasetReady.Set(1)
	} else {
		m.DatasetReady.Set(0)
	}
}

// Handler serves the families gathered from g. Collection errors are logged
// and the families that were gathered are still served.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{
		ErrorLog:      slog.NewLogLogger(slog.Default().Handler(), slog.LevelError),
		ErrorHandling: promhttp.ContinueOnError,
	})
}
