/*
Package metrics exposes Prometheus metrics for Burrow.

Collectors are package-level and registered once at init, so any
component can record without plumbing a registry through constructors.
Serve Handler() on an HTTP mux to scrape:

	http.Handle("/metrics", metrics.Handler())

Key series:

  - burrow_pool_in_use / burrow_pool_idle / burrow_pool_max_size
  - burrow_acquires_total{resource,outcome} and acquire latency histogram
  - burrow_health_checks_total{resource,state}
  - burrow_quarantine_entries, burrow_recovery_attempts_total
  - burrow_scale_events_total{resource,direction}
*/
package metrics
