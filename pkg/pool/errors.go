package pool

import (
	"errors"
	"fmt"
)

var (
	// ErrPoolClosed is returned for acquisitions against a draining or
	// shut-down pool
	ErrPoolClosed = errors.New("pool closed")

	// ErrAcquireTimeout is returned when no permit became available
	// within the configured acquire timeout
	ErrAcquireTimeout = errors.New("acquire timed out waiting for capacity")

	// ErrPoolFull is returned when an externally created instance
	// cannot be inserted without breaking the size bound
	ErrPoolFull = errors.New("pool at capacity")
)

// AcquireError carries enough context for the caller to decide whether
// to retry, fail the workflow step, or escalate
type AcquireError struct {
	ResourceID string
	Phase      string // "wait", "validate", "create"
	Retryable  bool
	Err        error
}

func (e *AcquireError) Error() string {
	return fmt.Sprintf("acquire %s failed in %s phase: %v", e.ResourceID, e.Phase, e.Err)
}

func (e *AcquireError) Unwrap() error { return e.Err }
