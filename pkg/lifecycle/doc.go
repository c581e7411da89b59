/*
Package lifecycle implements the per-instance state machine.

	┌─────────────────── LIFECYCLE STATES ───────────────────┐
	│                                                         │
	│  Created ──► Initializing ──► Ready                     │
	│                                 │ ▲                     │
	│                  ┌──────────────┼─┼────────────┐        │
	│                  ▼              ▼ │            ▼        │
	│                InUse ◄──────► Idle ◄──► Maintenance     │
	│                  │              │              │        │
	│                  └──────┬───────┴──────┬───────┘        │
	│                         ▼              ▼                │
	│                     Draining ──►    Cleanup             │
	│                                        │                │
	│        Failed ─────────────────────────┤                │
	│          ▲                             ▼                │
	│     (any state)                   Terminated            │
	│                                                         │
	└─────────────────────────────────────────────────────────┘

Ready and Idle are the only states eligible for acquisition. Terminated
is strictly terminal. Failed is terminal for acquisition purposes but
still permits Cleanup/Terminated so a failed instance can be reclaimed.

Every transition not in the table fails with InvalidTransitionError;
nothing in the core moves an instance between states without going
through the machine.
*/
package lifecycle
