// Package otel publishes certauth engine metrics through an OpenTelemetry Meter.
//
// Each counter becomes an Int64ObservableCounter. The latency histogram is an
// Int64ObservableGauge of cumulative counts labelled by "le", plus a _count
// gauge. One callback reads the engine snapshot per collection. The caller
// owns the MeterProvider.
package otel
