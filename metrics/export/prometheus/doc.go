// Package prometheus exposes goMormot client metrics through
// github.com/prometheus/client_golang.
//
// [PrometheusExporter] is a prometheus.Collector that reads
// [goMormot.Client.MetricsSnapshot] on each scrape; [PrometheusExporter.Handler]
// serves it from a private registry.
//
// # What this package must NOT do
//
//   - Register into the global default registry.
//   - Mutate client state.
package prometheus
