/*
Package log provides structured logging for Burrow using zerolog.

The log package wraps the zerolog library to provide JSON-structured logging
with component-specific loggers, configurable log levels, and helper functions
for common logging patterns. All logs include timestamps and support filtering
by severity level for production debugging.

# Core Components

Global Logger:
  - Package-level zerolog.Logger instance
  - Initialized once via log.Init()
  - Accessible from all Burrow packages
  - Thread-safe concurrent writes

Context Loggers:
  - WithComponent: Add component name (manager, config, hooks, ...)
  - WithResource: Add component name plus resource ID, for the
    per-resource workers (pool, health, quarantine, autoscale)

# Usage

Initialize once at startup:

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
	})

Then create child loggers wherever long-lived components are built:

	logger := log.WithResource("pool", "postgres-main")
	logger.Info().Msg("pool created")

# Log Levels

  - Debug: per-acquire and per-check detail, development only
  - Info: lifecycle milestones (registration, scaling, recovery)
  - Warn: degraded health, dropped events, forced reclaims
  - Error: failed creates, failed cleanups, permanent quarantine
*/
package log
