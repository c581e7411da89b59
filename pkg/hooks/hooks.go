package hooks

import (
	"fmt"
	"sort"
	"sync"

	"github.com/cuemby/burrow/pkg/events"
	"github.com/cuemby/burrow/pkg/log"
)

// Filter restricts a hook to specific resource ids
type Filter struct {
	// All matches every resource when true
	All bool

	// IDs matches listed resources when All is false
	IDs []string
}

// FilterAll matches every resource
func FilterAll() Filter {
	return Filter{All: true}
}

// FilterByID matches a single resource
func FilterByID(id string) Filter {
	return Filter{IDs: []string{id}}
}

// FilterByIDs matches a set of resources
func FilterByIDs(ids ...string) Filter {
	return Filter{IDs: ids}
}

// Matches reports whether the filter applies to a resource id
func (f Filter) Matches(resourceID string) bool {
	if f.All {
		return true
	}
	for _, id := range f.IDs {
		if id == resourceID {
			return true
		}
	}
	return false
}

// Hook is the synchronous extension point. Before runs in-line ahead of
// an operation and may veto it by returning an error; After runs
// in-line behind it and can only observe.
type Hook interface {
	Before(event *events.Event) error
	After(event *events.Event, result error)
	Priority() uint32
	Filter() Filter
}

// VetoError wraps a Before-hook rejection so callers can tell a veto
// from an operational failure
type VetoError struct {
	Hook string
	Err  error
}

func (e *VetoError) Error() string {
	return fmt.Sprintf("operation vetoed by hook %s: %v", e.Hook, e.Err)
}

func (e *VetoError) Unwrap() error { return e.Err }

// Registry holds hooks sorted by ascending priority
type Registry struct {
	mu    sync.RWMutex
	hooks []Hook
}

// NewRegistry returns an empty hook registry
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a hook, keeping the set sorted by ascending priority.
// Registration order breaks ties.
func (r *Registry) Register(h Hook) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.hooks = append(r.hooks, h)
	sort.SliceStable(r.hooks, func(i, j int) bool {
		return r.hooks[i].Priority() < r.hooks[j].Priority()
	})
}

// Len returns the number of registered hooks
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.hooks)
}

// RunBefore invokes matching Before hooks in priority order. The first
// veto aborts the run and is returned wrapped in VetoError.
func (r *Registry) RunBefore(event *events.Event) error {
	r.mu.RLock()
	hooks := append([]Hook(nil), r.hooks...)
	r.mu.RUnlock()

	for _, h := range hooks {
		if !h.Filter().Matches(event.ResourceID) {
			continue
		}
		if err := h.Before(event); err != nil {
			return &VetoError{Hook: fmt.Sprintf("%T", h), Err: err}
		}
	}
	return nil
}

// RunAfter invokes matching After hooks in priority order. After hooks
// cannot veto; a panic in one is logged and the rest still run.
func (r *Registry) RunAfter(event *events.Event, result error) {
	r.mu.RLock()
	hooks := append([]Hook(nil), r.hooks...)
	r.mu.RUnlock()

	for _, h := range hooks {
		if !h.Filter().Matches(event.ResourceID) {
			continue
		}
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					logger := log.WithComponent("hooks")
					logger.Error().
						Str("hook", fmt.Sprintf("%T", h)).
						Str("event", string(event.Type)).
						Interface("panic", rec).
						Msg("after hook panicked")
				}
			}()
			h.After(event, result)
		}()
	}
}
