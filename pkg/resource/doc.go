/*
Package resource defines the contracts between Burrow's core and the
concrete drivers it pools.

A Resource is a factory for one kind of external connection (a database,
a cache, a queue, an HTTP endpoint). The core never sees a wire
protocol; it only calls the contract:

	┌────────────────── RESOURCE CONTRACT ──────────────────┐
	│                                                        │
	│  ID()            stable id, unique per manager         │
	│  Create(ctx,cfg) produce a live instance               │
	│  IsValid(inst)   cheap per-acquire validation          │
	│  Recycle(inst)   reset between uses                    │
	│  Cleanup(inst)   permanent release                     │
	│  Dependencies()  ids this resource depends on          │
	│                                                        │
	│  optional:                                             │
	│  HealthCheckable          background health checks     │
	│  DetailedHealthCheckable  context-rich variant         │
	│  HealthCheckConfigurable  interval/timeout overrides   │
	│                                                        │
	└────────────────────────────────────────────────────────┘

Embed resource.Base to pick up the defaults (always valid, no-op
recycle, drop on cleanup, no dependencies) and override selectively.

Context carries scope, workflow identity, metadata, and a pull-based
credential capability into every operation; its embedded context.Context
is the cancellation signal. Credentials are fetched on demand inside
Create/Recycle and never cached by the core.
*/
package resource
