// Package telemetry turns the hooks event stream into Prometheus metrics and
// OpenTelemetry spans.
//
// Both exporters are plain hooks.Observer values, so they attach to a Host
// with hooks.WithHostObserver:
//
//	reg := prometheus.NewRegistry()
//	host := hooks.NewHost(
//	    hooks.WithHostObserver(telemetry.NewMetrics(telemetry.WithRegistry(reg))),
//	    hooks.WithHostObserver(telemetry.NewTracer()),
//	)
//
// # Metrics
//
// NewMetrics registers counters for render passes, effect and cleanup runs,
// state writes and stale writes, a histogram of commit pass durations and a
// gauge of live instances. Failures are labelled with their error code, never
// with the error message, to keep label cardinality bounded.
//
// # Tracing
//
// NewTracer opens one span per commit pass. Effect and cleanup invocations
// are recorded as span events, and failures set the span status. The tracer
// comes from the global OpenTelemetry provider unless WithTracer is used.
package telemetry
