// Package otel provides OpenTelemetry metric exporter bindings for authtokens
// counters.
//
// [NewOTelExporter] registers an Int64ObservableCounter instrument for each
// authtokens metric. A single callback reads
// [authtokens.Engine.MetricsSnapshot] on each collection cycle.
//
// # What this package must NOT do
//
//   - Own the OTel MeterProvider — callers supply the Meter.
//   - Mutate engine state.
package otel
