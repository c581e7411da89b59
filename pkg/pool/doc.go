/*
Package pool implements the bounded instance pool, the heart of
Burrow's resource brokering.

	┌───────────────────── POOL ANATOMY ─────────────────────┐
	│                                                         │
	│  Acquire(ctx) ──► weighted semaphore (FIFO fairness,    │
	│                   races caller cancellation vs timeout) │
	│                          │ permit                       │
	│                          ▼                              │
	│          ┌─── idle set (FIFO/LIFO, impact-aware) ───┐   │
	│          │ pop + IsValid        or      Create ×2   │   │
	│          └──────────────┬───────────────────────────┘   │
	│                         ▼                               │
	│                    Guard[*Instance]                     │
	│                         │ Release (exactly once)        │
	│                         ▼                               │
	│          Recycle ok ──► back to idle                    │
	│          Recycle err ─► Cleanup, capacity refilled      │
	│                         lazily on next acquire          │
	│                                                         │
	│  maintain loop: evict idle_timeout / max_lifetime       │
	│                 expirees, warm back up to min_size      │
	│                                                         │
	└─────────────────────────────────────────────────────────┘

Capacity model: the semaphore bounds in-use plus in-creation instances.
Idle instances hold no permits, and instances are only ever created
under a permit (acquire path) or under the pending counter against
MinSize (warming), so idle + in_use ≤ max_size holds at every
observable point.

The semaphore is sized to the hard ceiling; the headroom between the
current maximum and the ceiling is held back as reserved permits.
Resize releases or re-acquires reserved permits, which is how the
auto-scaler grows and shrinks the pool without ever touching an in-use
instance.

Shutdown is two calls with separate deadlines: Drain (stop accepting,
wait for returns) and Shutdown (force-reclaim stragglers, clean up
everything, stop the maintenance loop).
*/
package pool
