// Package otel binds goMormot client metrics to an OpenTelemetry meter.
//
// [NewOTelExporter] registers an Int64ObservableCounter per client counter.
// Each latency histogram becomes a "_bucket" gauge with one cumulative data
// point per "le" attribute plus a "_count" gauge. A client source also gets
// the mormot_client_session_active gauge. One callback reads
// [goMormot.Client.MetricsSnapshot] per collection cycle.
//
// # What this package must NOT do
//
//   - Own the MeterProvider. Callers supply the Meter.
//   - Mutate client state.
package otel
