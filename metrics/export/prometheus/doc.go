// Package prometheus exposes certauth engine metrics as a Prometheus collector.
//
// Counter names are certauth_*_total and the only histogram is
// certauth_validate_latency_seconds. [Collector.Handler] serves a private
// registry; callers who already run a registry can register the collector
// themselves. Nothing is added to the global default registry.
package prometheus
