/*
Package storage provides BoltDB-backed persistence for operator-visible
core state.

The only state worth keeping across restarts is the quarantine ledger:
which instances were pulled from rotation, why, how many recovery
attempts were made, and which entries failed permanently. Everything
else (pools, monitors, scalers) is rebuilt from configuration at
startup.

	┌──────────────── BOLTDB STORAGE ────────────────┐
	│                                                 │
	│  BoltStore                                      │
	│  - File: <dataDir>/burrow.db                    │
	│  - Read: db.View()   - concurrent snapshots     │
	│  - Write: db.Update() - serialized, fsync       │
	│                                                 │
	│  Bucket: quarantine                             │
	│  - Key: <resource id>/<instance id>             │
	│  - Value: JSON quarantine.Entry                 │
	│                                                 │
	└─────────────────────────────────────────────────┘

Writes are upserts and deletes are idempotent, so the quarantine keeper
can call Save on every attempt without caring whether the entry exists.
*/
package storage
