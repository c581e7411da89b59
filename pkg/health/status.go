package health

import (
	"time"

	"github.com/cuemby/burrow/pkg/resource"
)

// Status tracks the rolling health of a single monitored instance
type Status struct {
	// ConsecutiveFailures counts Unhealthy results in a row
	ConsecutiveFailures int

	// ConsecutiveSuccesses counts Healthy results in a row
	ConsecutiveSuccesses int

	// LastCheck is when the last check completed
	LastCheck time.Time

	// Last is the most recent check outcome
	Last resource.HealthStatus

	// StartedAt is when monitoring began for this instance
	StartedAt time.Time
}

// NewStatus creates a Status assuming health until proven otherwise
func NewStatus() *Status {
	return &Status{
		StartedAt: time.Now(),
		Last:      resource.Healthy(),
	}
}

// Update folds one check result into the rolling counters and reports
// whether the overall state changed
func (s *Status) Update(result resource.HealthStatus) (transitioned bool) {
	prev := s.Last.State
	s.LastCheck = time.Now()
	s.Last = result

	switch result.State {
	case resource.HealthUnhealthy:
		s.ConsecutiveFailures++
		s.ConsecutiveSuccesses = 0
	case resource.HealthHealthy:
		s.ConsecutiveSuccesses++
		s.ConsecutiveFailures = 0
	default:
		// Degraded and Unknown reset the failure streak but do not
		// count as successes
		s.ConsecutiveFailures = 0
		s.ConsecutiveSuccesses = 0
	}

	return prev != result.State
}
