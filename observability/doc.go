// Package observability provides the OpenTelemetry metrics extension.
// MetricsExtension implements lifecycle hooks to record system-wide
// counters for enqueue, completion, failure, retry, dead-letter,
// cancellation, and schedule fires.
//
// For per-execution latency and tracing, see the middleware package:
// middleware.Metrics() and middleware.Tracing().
package observability
