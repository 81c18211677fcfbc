// Package metrics exposes Prometheus collectors for sessions and the
// iteration harness.
//
// Metric types are nil-safe: methods on a nil receiver do nothing, so
// instrumented code never has to check whether metrics are enabled.
package metrics
