// Package prometheus provides Prometheus collectors for authtokens metrics.
//
// [NewPrometheusExporter] accepts an [authtokens.Engine] and exposes an
// [http.Handler] that renders all authtokens counters in Prometheus text
// exposition format. Counter names are prefixed authtokens_*_total.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry — callers mount the Handler.
//   - Mutate engine state.
package prometheus
