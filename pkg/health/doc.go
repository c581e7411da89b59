/*
Package health monitors pooled instances in the background.

Each watched instance gets its own goroutine with an independently
derived child context: cancelling one caller's request or unwatching
one instance never tears down unrelated monitoring.

	┌────────────────── CHECK PIPELINE ──────────────────┐
	│                                                     │
	│  connectivity ──► performance ──► dependency-health │
	│       │                │                 │          │
	│       └── Unhealthy/Unknown short-circuits ──►      │
	│           later (more expensive) stages skipped     │
	│                                                     │
	└─────────────────────────────────────────────────────┘

Verdict handling:

  - Healthy: counters reset, nothing else
  - Degraded: stays in rotation; impact score forwarded so the pool
    prefers lower-impact idle instances
  - Unhealthy{recoverable}: consecutive-failure counter; at the
    threshold the watch stops (no further check is issued) and the
    quarantine callback fires
  - Unhealthy{unrecoverable}: watch stops and the replace callback
    fires immediately
  - a check that exceeds its timeout is Unknown, never Healthy

Precedence: when a resource has both a registered pipeline and its own
HealthCheck, the pipeline wins and the legacy check is ignored.
*/
package health
