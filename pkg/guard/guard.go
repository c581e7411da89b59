package guard

import "sync"

// Guard wraps a value with a one-shot release callback. It is the RAII
// handle of the pool: acquiring returns a Guard, and releasing it (or
// detaching via IntoInner) fires the callback exactly once no matter
// how many times either is called.
type Guard[T any] struct {
	value   T
	release func(value T, detached bool)
	once    sync.Once
	done    bool
	mu      sync.Mutex
}

// New wraps value with a release callback. The callback receives the
// value and whether the guard was detached (IntoInner) rather than
// released normally.
func New[T any](value T, release func(value T, detached bool)) *Guard[T] {
	return &Guard[T]{value: value, release: release}
}

// Value returns the wrapped value without consuming the guard
func (g *Guard[T]) Value() T {
	return g.value
}

// Release fires the callback with detached=false. Safe to call more
// than once; only the first call has any effect.
func (g *Guard[T]) Release() {
	g.fire(false)
}

// IntoInner detaches the value from the guard: the callback fires once
// with detached=true and ownership passes to the caller. Returns false
// if the guard was already consumed.
func (g *Guard[T]) IntoInner() (T, bool) {
	fired := g.fire(true)
	if !fired {
		var zero T
		return zero, false
	}
	return g.value, true
}

// Released reports whether the callback has already fired
func (g *Guard[T]) Released() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.done
}

func (g *Guard[T]) fire(detached bool) bool {
	fired := false
	g.once.Do(func() {
		fired = true
		g.mu.Lock()
		g.done = true
		g.mu.Unlock()
		if g.release != nil {
			g.release(g.value, detached)
		}
	})
	return fired
}
