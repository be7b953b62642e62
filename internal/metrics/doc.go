// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - Routing resolutions by outcome (match, fallback, miss, uninitialized)
//   - Connection acquisitions through a router and their latency
//
// A nil *Collector is valid and records nothing, so components can take
// one unconditionally.
package metrics
