package manager

import (
	"fmt"

	"github.com/cuemby/burrow/pkg/guard"
	"github.com/cuemby/burrow/pkg/pool"
)

// Handle is the caller-facing wrapper around an acquired instance. It
// must be released (or detached) exactly once; both are idempotent.
type Handle struct {
	resourceID string
	guard      *guard.Guard[*pool.Instance]
}

// ResourceID returns the key the handle was acquired under
func (h *Handle) ResourceID() string {
	return h.resourceID
}

// InstanceID returns the pool instance id behind the handle
func (h *Handle) InstanceID() string {
	return h.guard.Value().ID
}

// Value returns the raw instance value. Use As for a typed view.
func (h *Handle) Value() any {
	return h.guard.Value().Value
}

// Release returns the instance to its pool. Safe to call more than
// once; only the first call has any effect.
func (h *Handle) Release() {
	h.guard.Release()
}

// Detach removes the instance from pool management entirely and hands
// ownership to the caller, who becomes responsible for cleanup. Returns
// false if the handle was already consumed.
func (h *Handle) Detach() (any, bool) {
	inst, ok := h.guard.IntoInner()
	if !ok {
		return nil, false
	}
	return inst.Value, true
}

// Released reports whether the handle has been consumed
func (h *Handle) Released() bool {
	return h.guard.Released()
}

// As downcasts a handle's value to a concrete type. The handle stays
// valid either way; a type mismatch is an error, not a panic.
func As[T any](h *Handle) (T, error) {
	v, ok := h.Value().(T)
	if !ok {
		var zero T
		return zero, &WrongTypeError{
			Key:  h.resourceID,
			Want: fmt.Sprintf("%T", zero),
			Got:  fmt.Sprintf("%T", h.Value()),
		}
	}
	return v, nil
}
