/*
Package manager is the facade over the whole core: registration,
dependency ordering, scoped acquisition, health monitoring, quarantine,
scaling, and three-phase shutdown.

	           ┌───────────────── MANAGER ─────────────────┐
	  caller   │                                            │
	    │      │  Acquire(ctx, key, reqCtx)                 │
	    ├──────┼──► scope check ──► Before hooks ──► Pool   │
	    │      │       │ denied        │ veto        │      │
	    │      │       ▼               ▼             ▼      │
	    │      │     error           error        Handle ───┼──► caller
	    │      │                                            │
	    │      │  DependencyGraph: init order / shutdown    │
	    │      │  order / degraded-signal cascade           │
	    │      │                                            │
	    │      │  per resource: Pool + Monitor + Keeper +   │
	    │      │  Scaler, all publishing into one Broker    │
	    └──────┴────────────────────────────────────────────┘

Acquisition order matters: the scope check and Before hooks run before
any pool capacity is consumed, so a denial or veto is free.

When a resource's instance goes unhealthy, the manager walks the
dependency graph transpose and marks each direct dependent degraded
with a reason naming the failed dependency. Dependents stay in service
with reduced trust; they are never quarantined transitively.

Shutdown runs three phases: drain pools in reverse dependency order,
bounded by the caller's context; force-reclaim and clean up what
remains, on a fresh deadline of its own; then stop and join every
background loop. A drain timeout never skips cleanup.
*/
package manager
