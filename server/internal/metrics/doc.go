// Package metrics holds the Prometheus collectors of regionpulse-server and
// the /metrics exposition handler.
//
// Collectors:
//
//	regionpulse_http_requests_total{route,method,code}     counter
//	regionpulse_http_request_duration_seconds{route,method} histogram
//	regionpulse_region_lookups_total{result}               counter, hit | miss
//	regionpulse_dataset_records                            gauge
//	regionpulse_dataset_regions                            gauge
//	regionpulse_dataset_ready                              gauge, 0 | 1
//
// A nil *Metrics is valid and records nothing, so packages can be exercised
// without a registry.
package metrics
