/*
Package events provides the broadcast channel every state-changing
operation in the core publishes to.

	┌──────────────────── EVENT FLOW ────────────────────┐
	│                                                     │
	│  manager / pool / health / quarantine / scaler      │
	│                      │                              │
	│                      ▼ Publish (never blocks)       │
	│                 ┌─────────┐                         │
	│                 │ Broker  │                         │
	│                 └────┬────┘                         │
	│          ┌───────────┼───────────┐                  │
	│          ▼           ▼           ▼                  │
	│     Subscription Subscription Subscription          │
	│     (bounded)    (bounded)    (bounded)             │
	│                                                     │
	└─────────────────────────────────────────────────────┘

Each subscription owns an independent bounded buffer. A slow subscriber
sheds its own oldest events; it never blocks the producer and never
affects other subscribers. Dropped() exposes the loss count so
consumers can detect gaps.
*/
package events
