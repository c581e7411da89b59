/*
Package quarantine isolates persistently failing instances and retries
recovery on an exponential schedule.

	health monitor          Keeper                    pool
	     │                     │                        │
	     │  threshold breach   │                        │
	     ├────────────────────►│ Enter(instance,reason) │
	     │                     │                        │
	     │                     │  backoff: 1s ×2 … 60s  │
	     │                     ├──► recover() ──────────┤ AddInstance
	     │                     │        │ ok: entry gone│
	     │                     │        │ fail: retry   │
	     │                     │  attempts == max       │
	     │                     │  → permanent, visible  │

Recovery never reuses the failed instance: each attempt creates a
fresh one. Permanently failed entries stay listed until an operator
calls ForceRelease, which also works mid-backoff to cut quarantine
short.
*/
package quarantine
