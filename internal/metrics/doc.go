// Package metrics exposes relay counters to Prometheus.
//
// Recorder implements relay.MetricsRecorder. Every series carries a constant
// node label so several bridges can share one Prometheus job. Collectors are
// registered on a private registry, never the global default, which keeps
// tests independent and lets the status server serve exactly this set.
package metrics
