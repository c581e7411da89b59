package resource

import (
	"context"
	"fmt"
	"time"
)

// HealthState classifies the result of a health check
type HealthState string

const (
	HealthHealthy   HealthState = "healthy"
	HealthDegraded  HealthState = "degraded"
	HealthUnhealthy HealthState = "unhealthy"
	HealthUnknown   HealthState = "unknown"
)

// HealthStatus is the outcome of one health check against one instance
type HealthStatus struct {
	State HealthState

	// Reason explains Degraded and Unhealthy states
	Reason string

	// Impact is the performance-impact score for Degraded instances,
	// always in [0,1]. 0 means no measurable impact.
	Impact float64

	// Recoverable distinguishes Unhealthy instances worth quarantining
	// and retrying from ones that must be replaced immediately
	Recoverable bool

	// Latency is how long the check took
	Latency time.Duration

	Metadata map[string]string
}

// Healthy returns a passing status
func Healthy() HealthStatus {
	return HealthStatus{State: HealthHealthy}
}

// Degraded returns a degraded status with a bounded impact score
func Degraded(reason string, impact float64) HealthStatus {
	if impact < 0 {
		impact = 0
	}
	if impact > 1 {
		impact = 1
	}
	return HealthStatus{State: HealthDegraded, Reason: reason, Impact: impact}
}

// Unhealthy returns a failing status
func Unhealthy(reason string, recoverable bool) HealthStatus {
	return HealthStatus{State: HealthUnhealthy, Reason: reason, Recoverable: recoverable}
}

// Unknown returns an indeterminate status (timeouts map here, never to
// Healthy)
func Unknown(reason string) HealthStatus {
	return HealthStatus{State: HealthUnknown, Reason: reason}
}

func (s HealthStatus) String() string {
	if s.Reason == "" {
		return string(s.State)
	}
	return fmt.Sprintf("%s (%s)", s.State, s.Reason)
}

// HealthCheckable is the optional per-instance health contract. A
// Resource that implements it gets a background monitor loop per
// instance.
type HealthCheckable interface {
	HealthCheck(ctx context.Context, instance any) (HealthStatus, error)
}

// DetailedHealthCheckable adds a context-rich variant. When a Resource
// implements both, the monitor prefers the detailed check.
type DetailedHealthCheckable interface {
	DetailedHealthCheck(ctx Context, instance any) (HealthStatus, error)
}

// HealthCheckConfig tunes the monitor loop for one resource
type HealthCheckConfig struct {
	Interval time.Duration
	Timeout  time.Duration
}

// DefaultHealthCheckConfig returns the contract defaults: 30s interval,
// 5s timeout
func DefaultHealthCheckConfig() HealthCheckConfig {
	return HealthCheckConfig{
		Interval: 30 * time.Second,
		Timeout:  5 * time.Second,
	}
}

// HealthCheckConfigurable lets a Resource override the monitor timing
type HealthCheckConfigurable interface {
	HealthCheckConfig() HealthCheckConfig
}
