package main

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/cuemby/burrow/pkg/resource"
)

// loopbackResource is the built-in smoke-test driver the daemon runs
// when no real driver is linked in: instances are cheap in-memory
// tokens that are always valid and always healthy. It exercises the
// full pool/health/scaling machinery without external dependencies.
type loopbackResource struct {
	resource.Base
	id      string
	deps    []string
	counter atomic.Int64
}

func newLoopback(id string, deps []string) *loopbackResource {
	return &loopbackResource{id: id, deps: deps}
}

func (r *loopbackResource) ID() string { return r.id }

func (r *loopbackResource) Dependencies() []string { return r.deps }

func (r *loopbackResource) Create(ctx resource.Context, cfg resource.Config) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n := r.counter.Add(1)
	return fmt.Sprintf("%s#%d", r.id, n), nil
}

func (r *loopbackResource) HealthCheck(ctx context.Context, instance any) (resource.HealthStatus, error) {
	return resource.Healthy(), nil
}
