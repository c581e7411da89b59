package pool

import (
	"sync"
	"time"

	"github.com/cuemby/burrow/pkg/lifecycle"
	"github.com/google/uuid"
)

// Instance is one pooled connection with its lifecycle machine and
// bookkeeping. The wrapped driver value stays opaque to the pool.
type Instance struct {
	// ID is the pool-assigned instance identifier
	ID string

	// Value is the driver-produced connection
	Value any

	machine   *lifecycle.Machine
	createdAt time.Time

	mu         sync.Mutex
	lastUsedAt time.Time
	impact     float64
	discard    bool
}

func newInstance(value any) *Instance {
	now := time.Now()
	return &Instance{
		ID:         uuid.New().String(),
		Value:      value,
		machine:    lifecycle.NewMachine(),
		createdAt:  now,
		lastUsedAt: now,
	}
}

// State returns the current lifecycle state
func (i *Instance) State() lifecycle.State {
	return i.machine.State()
}

// CreatedAt returns when the instance was created
func (i *Instance) CreatedAt() time.Time {
	return i.createdAt
}

// LastUsedAt returns when the instance was last released
func (i *Instance) LastUsedAt() time.Time {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.lastUsedAt
}

func (i *Instance) touch() {
	i.mu.Lock()
	i.lastUsedAt = time.Now()
	i.mu.Unlock()
}

// Impact returns the degradation impact score reported by the health
// monitor, in [0,1]. Lower-impact idle instances are preferred at
// acquire time.
func (i *Instance) Impact() float64 {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.impact
}

// SetImpact records a degradation impact score, clamped to [0,1]
func (i *Instance) SetImpact(impact float64) {
	if impact < 0 {
		impact = 0
	}
	if impact > 1 {
		impact = 1
	}
	i.mu.Lock()
	i.impact = impact
	i.mu.Unlock()
}

func (i *Instance) markDiscard() {
	i.mu.Lock()
	i.discard = true
	i.mu.Unlock()
}

func (i *Instance) discarded() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.discard
}
