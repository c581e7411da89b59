package manager

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cuemby/burrow/pkg/autoscale"
	"github.com/cuemby/burrow/pkg/credentials"
	"github.com/cuemby/burrow/pkg/events"
	"github.com/cuemby/burrow/pkg/graph"
	"github.com/cuemby/burrow/pkg/hooks"
	"github.com/cuemby/burrow/pkg/pool"
	"github.com/cuemby/burrow/pkg/quarantine"
	"github.com/cuemby/burrow/pkg/resource"
	"github.com/cuemby/burrow/pkg/scope"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResource struct {
	resource.Base
	id   string
	deps []string

	mu       sync.Mutex
	created  int
	cleaned  int
	createFn func(n int) (any, error)
}

func (r *fakeResource) ID() string { return r.id }

func (r *fakeResource) Dependencies() []string { return r.deps }

func (r *fakeResource) Create(ctx resource.Context, cfg resource.Config) (any, error) {
	r.mu.Lock()
	r.created++
	n := r.created
	fn := r.createFn
	r.mu.Unlock()
	if fn != nil {
		return fn(n)
	}
	return fmt.Sprintf("%s-conn-%d", r.id, n), nil
}

func (r *fakeResource) Cleanup(ctx context.Context, instance any) error {
	r.mu.Lock()
	r.cleaned++
	r.mu.Unlock()
	return nil
}

func (r *fakeResource) counts() (created, cleaned int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.created, r.cleaned
}

// checkedResource adds a scriptable per-instance health check
type checkedResource struct {
	fakeResource
	healthFn func(instance any) resource.HealthStatus
}

func (r *checkedResource) HealthCheck(ctx context.Context, instance any) (resource.HealthStatus, error) {
	return r.healthFn(instance), nil
}

type testHook struct {
	priority uint32
	filter   hooks.Filter
	before   func(*events.Event) error
	after    func(*events.Event, error)
}

func (h *testHook) Before(ev *events.Event) error {
	if h.before != nil {
		return h.before(ev)
	}
	return nil
}

func (h *testHook) After(ev *events.Event, result error) {
	if h.after != nil {
		h.after(ev, result)
	}
}

func (h *testHook) Priority() uint32 { return h.priority }

func (h *testHook) Filter() hooks.Filter {
	if h.filter.All || len(h.filter.IDs) > 0 {
		return h.filter
	}
	return hooks.FilterAll()
}

func smallPool() pool.Config {
	return pool.Config{MaxSize: 4, AcquireTimeout: 200 * time.Millisecond}
}

func newTestManager(t *testing.T, opts ...Option) *Manager {
	t.Helper()
	m := New(opts...)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = m.Shutdown(ctx)
	})
	return m
}

func TestRegisterAndAcquire(t *testing.T) {
	m := newTestManager(t)
	res := &fakeResource{id: "db"}
	require.NoError(t, m.Register(Registration{Resource: res, Pool: smallPool()}))

	h, err := m.Acquire(context.Background(), "db", resource.Context{})
	require.NoError(t, err)
	assert.Equal(t, "db", h.ResourceID())

	conn, err := As[string](h)
	require.NoError(t, err)
	assert.Equal(t, "db-conn-1", conn)

	h.Release()
	assert.True(t, h.Released())

	// released instance is reused, not recreated
	h2, err := m.Acquire(context.Background(), "db", resource.Context{})
	require.NoError(t, err)
	defer h2.Release()
	created, _ := res.counts()
	assert.Equal(t, 1, created)
}

func TestAcquireUnknownKey(t *testing.T) {
	m := newTestManager(t)

	_, err := m.Acquire(context.Background(), "ghost", resource.Context{})
	var nre *NotRegisteredError
	require.ErrorAs(t, err, &nre)
	assert.Equal(t, "ghost", nre.Key)
}

func TestDuplicateRegistrationRejected(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, m.Register(Registration{Resource: &fakeResource{id: "db"}, Pool: smallPool()}))

	err := m.Register(Registration{Resource: &fakeResource{id: "db"}, Pool: smallPool()})
	var are *AlreadyRegisteredError
	require.ErrorAs(t, err, &are)
}

// Registering a dependency cycle fails with the cycle named and leaves
// the manager usable; the same resource registered without the cycle
// succeeds
func TestCycleRejectedAtRegistration(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, m.Register(Registration{
		Resource: &fakeResource{id: "a", deps: []string{"b"}},
		Pool:     smallPool(),
	}))

	err := m.Register(Registration{
		Resource: &fakeResource{id: "b", deps: []string{"a"}},
		Pool:     smallPool(),
	})
	var cde *graph.CircularDependencyError
	require.ErrorAs(t, err, &cde)

	require.NoError(t, m.Register(Registration{
		Resource: &fakeResource{id: "b"},
		Pool:     smallPool(),
	}))
	assert.Equal(t, []string{"b", "a"}, m.Keys(), "dependencies come first")
}

func TestInitializeWarmsInOrder(t *testing.T) {
	m := newTestManager(t)
	db := &fakeResource{id: "db"}
	api := &fakeResource{id: "api", deps: []string{"db"}}

	cfg := smallPool()
	cfg.MinSize = 2
	require.NoError(t, m.Register(Registration{Resource: api, Pool: cfg}))
	require.NoError(t, m.Register(Registration{Resource: db, Pool: cfg}))

	require.NoError(t, m.Initialize(context.Background()))

	for _, key := range []string{"db", "api"} {
		status, err := m.Status(key)
		require.NoError(t, err)
		assert.Equal(t, 2, status.Stats.Idle, key)
	}
}

func TestScopeDenied(t *testing.T) {
	m := newTestManager(t)
	sub := m.Subscribe()
	defer sub.Close()

	require.NoError(t, m.Register(Registration{
		Resource: &fakeResource{id: "db"},
		Pool:     smallPool(),
		Scope:    scope.Tenant("acme"),
	}))

	// a different tenant is outside the registered scope
	_, err := m.Acquire(context.Background(), "db", resource.Context{Scope: scope.Tenant("rival")})
	var de *scope.DeniedError
	require.ErrorAs(t, err, &de)

	found := false
	deadline := time.After(time.Second)
	for !found {
		select {
		case ev := <-sub.C():
			found = ev.Type == events.EventAcquireDenied
		case <-deadline:
			t.Fatal("denied event never published")
		}
	}

	// a workflow nested under the tenant is contained
	h, err := m.Acquire(context.Background(), "db", resource.Context{
		Scope: scope.Workflow("wf-1", "acme"),
	})
	require.NoError(t, err)
	h.Release()
}

// A Before-hook veto aborts the acquire before any pool capacity is
// consumed
func TestHookVetoConsumesNothing(t *testing.T) {
	m := newTestManager(t)
	res := &fakeResource{id: "db"}
	require.NoError(t, m.Register(Registration{Resource: res, Pool: smallPool()}))

	m.RegisterHook(&testHook{
		before: func(ev *events.Event) error {
			return errors.New("budget exhausted")
		},
	})

	_, err := m.Acquire(context.Background(), "db", resource.Context{})
	var veto *hooks.VetoError
	require.ErrorAs(t, err, &veto)

	created, _ := res.counts()
	assert.Equal(t, 0, created, "vetoed acquire must not create instances")
	status, err := m.Status("db")
	require.NoError(t, err)
	assert.Equal(t, 0, status.Stats.Total())
}

func TestAfterHookObservesResult(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, m.Register(Registration{Resource: &fakeResource{id: "db"}, Pool: smallPool()}))

	var mu sync.Mutex
	var results []error
	m.RegisterHook(&testHook{
		after: func(ev *events.Event, result error) {
			mu.Lock()
			results = append(results, result)
			mu.Unlock()
		},
	})

	h, err := m.Acquire(context.Background(), "db", resource.Context{})
	require.NoError(t, err)
	h.Release()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, results, 1)
	assert.NoError(t, results[0])
}

func TestHookFilterByResource(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, m.Register(Registration{Resource: &fakeResource{id: "db"}, Pool: smallPool()}))
	require.NoError(t, m.Register(Registration{Resource: &fakeResource{id: "cache"}, Pool: smallPool()}))

	m.RegisterHook(&testHook{
		filter: hooks.FilterByID("db"),
		before: func(ev *events.Event) error { return errors.New("no db for you") },
	})

	_, err := m.Acquire(context.Background(), "db", resource.Context{})
	assert.Error(t, err)

	h, err := m.Acquire(context.Background(), "cache", resource.Context{})
	require.NoError(t, err)
	h.Release()
}

func TestAsWrongType(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, m.Register(Registration{Resource: &fakeResource{id: "db"}, Pool: smallPool()}))

	h, err := m.Acquire(context.Background(), "db", resource.Context{})
	require.NoError(t, err)
	defer h.Release()

	_, err = As[int](h)
	var wte *WrongTypeError
	require.ErrorAs(t, err, &wte)

	// the handle survives a failed downcast
	s, err := As[string](h)
	require.NoError(t, err)
	assert.NotEmpty(t, s)
}

func TestDetachHandsOverOwnership(t *testing.T) {
	m := newTestManager(t)
	res := &fakeResource{id: "db"}
	require.NoError(t, m.Register(Registration{Resource: res, Pool: smallPool()}))

	h, err := m.Acquire(context.Background(), "db", resource.Context{})
	require.NoError(t, err)

	v, ok := h.Detach()
	require.True(t, ok)
	assert.Equal(t, "db-conn-1", v)

	// detaching released the capacity without cleaning the instance
	status, err := m.Status("db")
	require.NoError(t, err)
	assert.Equal(t, 0, status.Stats.Total())
	_, cleaned := res.counts()
	assert.Equal(t, 0, cleaned)
}

// An unhealthy dependency quarantines its own instance and marks direct
// dependents degraded; recovery lifts the mark. Recovery is held failing
// while the degraded state is asserted, then released.
func TestDependencyFailureCascade(t *testing.T) {
	m := newTestManager(t)

	var dbUp atomic.Bool
	db := &checkedResource{fakeResource: fakeResource{id: "db"}}
	db.createFn = func(n int) (any, error) {
		if n > 1 && !dbUp.Load() {
			return nil, errors.New("db still down")
		}
		return fmt.Sprintf("db-conn-%d", n), nil
	}
	db.healthFn = func(instance any) resource.HealthStatus {
		if instance == "db-conn-1" {
			return resource.Unhealthy("connection refused", true)
		}
		return resource.Healthy()
	}

	api := &fakeResource{id: "api", deps: []string{"db"}}

	dbPool := smallPool()
	dbPool.MinSize = 1
	require.NoError(t, m.Register(Registration{
		Resource:        db,
		Pool:            dbPool,
		Health:          resource.HealthCheckConfig{Interval: 10 * time.Millisecond, Timeout: 50 * time.Millisecond},
		HealthThreshold: 1,
		Quarantine:      quarantine.Config{MaxAttempts: 1000, InitialDelay: 2 * time.Millisecond, Multiplier: 2, MaxDelay: 10 * time.Millisecond},
	}))
	require.NoError(t, m.Register(Registration{Resource: api, Pool: smallPool()}))
	require.NoError(t, m.Initialize(context.Background()))

	// the bad first instance breaches the threshold and cascades; the
	// mark holds because every recovery attempt still fails
	require.Eventually(t, func() bool {
		status, err := m.Status("api")
		return err == nil && status.Degraded
	}, 3*time.Second, 5*time.Millisecond)

	status, err := m.Status("api")
	require.NoError(t, err)
	require.Len(t, status.DegradedReasons, 1)
	assert.Contains(t, status.DegradedReasons[0], "db")

	// let the dependency come back: recovery replaces the instance and
	// lifts the mark
	dbUp.Store(true)
	require.Eventually(t, func() bool {
		apiStatus, err := m.Status("api")
		if err != nil || apiStatus.Degraded {
			return false
		}
		dbStatus, err := m.Status("db")
		return err == nil && len(dbStatus.Quarantine) == 0 && dbStatus.Stats.Idle >= 1
	}, 3*time.Second, 5*time.Millisecond)
}

func TestForceReleaseQuarantine(t *testing.T) {
	m := newTestManager(t)

	db := &checkedResource{fakeResource: fakeResource{id: "db"}}
	db.healthFn = func(instance any) resource.HealthStatus {
		return resource.Unhealthy("always down", true)
	}
	// creation always succeeds but the health check never passes, so
	// recovery attempts fail and the entry sticks around
	dbPool := smallPool()
	dbPool.MinSize = 1
	require.NoError(t, m.Register(Registration{
		Resource:        db,
		Pool:            dbPool,
		Health:          resource.HealthCheckConfig{Interval: 10 * time.Millisecond, Timeout: 50 * time.Millisecond},
		HealthThreshold: 1,
		Quarantine:      quarantine.Config{MaxAttempts: 1000, InitialDelay: 5 * time.Millisecond, Multiplier: 2, MaxDelay: 20 * time.Millisecond},
	}))
	require.NoError(t, m.Initialize(context.Background()))

	var quarantined string
	require.Eventually(t, func() bool {
		status, err := m.Status("db")
		if err != nil || len(status.Quarantine) == 0 {
			return false
		}
		quarantined = status.Quarantine[0].InstanceID
		return true
	}, 3*time.Second, 5*time.Millisecond)

	assert.True(t, m.ForceRelease("db", quarantined))
	status, err := m.Status("db")
	require.NoError(t, err)
	assert.Empty(t, status.Quarantine)

	assert.False(t, m.ForceRelease("db", "unknown"))
	assert.False(t, m.ForceRelease("ghost", quarantined))
}

func TestReloadPoolSwapsAndDrains(t *testing.T) {
	m := newTestManager(t)
	sub := m.Subscribe()
	defer sub.Close()

	res := &fakeResource{id: "db"}
	require.NoError(t, m.Register(Registration{Resource: res, Pool: smallPool()}))

	// in-flight handle from the old pool
	h, err := m.Acquire(context.Background(), "db", resource.Context{})
	require.NoError(t, err)

	newCfg := smallPool()
	newCfg.MaxSize = 8
	require.NoError(t, m.ReloadPool("db", newCfg))

	status, err := m.Status("db")
	require.NoError(t, err)
	assert.Equal(t, 8, status.Stats.MaxSize)
	assert.Equal(t, 0, status.Stats.InUse, "replacement pool starts empty")

	// acquires go to the replacement immediately
	h2, err := m.Acquire(context.Background(), "db", resource.Context{})
	require.NoError(t, err)
	h2.Release()

	// the straggler handle releases into the draining pool harmlessly
	h.Release()

	found := false
	deadline := time.After(time.Second)
	for !found {
		select {
		case ev := <-sub.C():
			found = ev.Type == events.EventPoolReloaded
		case <-deadline:
			t.Fatal("reload event never published")
		}
	}

	require.NoError(t, m.ReloadPool("db", smallPool()))
	err = m.ReloadPool("ghost", smallPool())
	var nre *NotRegisteredError
	assert.ErrorAs(t, err, &nre)
}

// Shutdown with instances still held: drain times out, the instances
// are forcibly reclaimed and cleaned up anyway, and a straggler release
// is harmless
func TestShutdownForcesReclaim(t *testing.T) {
	m := New()
	res := &fakeResource{id: "db"}
	require.NoError(t, m.Register(Registration{Resource: res, Pool: smallPool()}))

	h, err := m.Acquire(context.Background(), "db", resource.Context{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err = m.Shutdown(ctx)
	assert.Error(t, err, "drain timeout surfaces")

	_, cleaned := res.counts()
	assert.Equal(t, 1, cleaned, "held instance cleaned up despite drain timeout")

	_, err = m.Acquire(context.Background(), "db", resource.Context{})
	assert.ErrorIs(t, err, ErrShutdown)

	h.Release() // must not panic or double-clean
	_, cleaned = res.counts()
	assert.Equal(t, 1, cleaned)

	// second shutdown is a no-op
	assert.NoError(t, m.Shutdown(context.Background()))
}

// ctxRecordingResource records the state of each cleanup context and
// fails the cleanup if it was already dead on arrival
type ctxRecordingResource struct {
	fakeResource
	mu      sync.Mutex
	ctxErrs []error
}

func (r *ctxRecordingResource) Cleanup(ctx context.Context, instance any) error {
	r.mu.Lock()
	r.ctxErrs = append(r.ctxErrs, ctx.Err())
	r.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.fakeResource.Cleanup(ctx, instance)
}

// A drain that exhausts the caller's context must not hand the cleanup
// phase an already-expired one
func TestShutdownCleanupRunsOnFreshDeadline(t *testing.T) {
	m := New()
	res := &ctxRecordingResource{fakeResource: fakeResource{id: "db"}}
	require.NoError(t, m.Register(Registration{Resource: res, Pool: smallPool()}))

	_, err := m.Acquire(context.Background(), "db", resource.Context{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err = m.Shutdown(ctx)
	assert.Error(t, err, "drain timeout surfaces")

	res.mu.Lock()
	ctxErrs := append([]error(nil), res.ctxErrs...)
	res.mu.Unlock()
	require.NotEmpty(t, ctxErrs)
	for _, cerr := range ctxErrs {
		assert.NoError(t, cerr, "cleanup ran on a live context")
	}

	_, cleaned := res.counts()
	assert.Equal(t, 1, cleaned, "held instance cleaned up despite drain timeout")
}

func TestShutdownDrainsDependentsFirst(t *testing.T) {
	m := New()
	var mu sync.Mutex
	var drained []string

	mk := func(id string, deps ...string) *fakeResource {
		r := &fakeResource{id: id, deps: deps}
		return r
	}
	db := mk("db")
	api := mk("api", "db")
	require.NoError(t, m.Register(Registration{Resource: db, Pool: smallPool()}))
	require.NoError(t, m.Register(Registration{Resource: api, Pool: smallPool()}))

	sub := m.Subscribe()
	consumed := make(chan struct{})
	go func() {
		defer close(consumed)
		// Shutdown closes the broker, ending the range
		for ev := range sub.C() {
			if ev.Type == events.EventInstanceCleaned {
				mu.Lock()
				drained = append(drained, ev.ResourceID)
				mu.Unlock()
			}
		}
	}()

	for _, key := range []string{"db", "api"} {
		h, err := m.Acquire(context.Background(), key, resource.Context{})
		require.NoError(t, err)
		h.Release()
	}

	require.NoError(t, m.Shutdown(context.Background()))
	<-consumed

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"api", "db"}, drained, "dependents clean up before dependencies")
}

func TestRegisterAfterShutdown(t *testing.T) {
	m := New()
	require.NoError(t, m.Shutdown(context.Background()))

	err := m.Register(Registration{Resource: &fakeResource{id: "db"}, Pool: smallPool()})
	assert.ErrorIs(t, err, ErrShutdown)
}

func TestInvalidAutoscalePolicyRejectsRegistration(t *testing.T) {
	m := newTestManager(t)

	broken := autoscale.DefaultPolicy()
	broken.LowWatermark = broken.HighWatermark
	err := m.Register(Registration{
		Resource:  &fakeResource{id: "db"},
		Pool:      smallPool(),
		Autoscale: &broken,
	})
	require.Error(t, err)

	_, statusErr := m.Status("db")
	assert.Error(t, statusErr, "failed registration leaves nothing behind")
}

func TestAutoscaledRegistrationStartsScaler(t *testing.T) {
	m := newTestManager(t)

	policy := autoscale.DefaultPolicy()
	policy.MinSize = 1
	policy.MaxSize = 8

	cfg := smallPool()
	cfg.HardMaxSize = 8
	require.NoError(t, m.Register(Registration{
		Resource:  &fakeResource{id: "db"},
		Pool:      cfg,
		Autoscale: &policy,
	}))
	require.NoError(t, m.Initialize(context.Background()))

	status, err := m.Status("db")
	require.NoError(t, err)
	assert.Equal(t, 4, status.Stats.MaxSize)
}

// credentialedResource pulls a secret from the acquisition context
type credentialedResource struct {
	fakeResource
}

func (r *credentialedResource) Create(ctx resource.Context, cfg resource.Config) (any, error) {
	if ctx.Credentials == nil {
		return nil, errors.New("no credential provider")
	}
	secret, err := ctx.Credentials.Credential(ctx, r.id+"-password")
	if err != nil {
		return nil, err
	}
	return r.id + ":" + secret, nil
}

func TestDefaultCredentialProviderInjected(t *testing.T) {
	m := newTestManager(t, WithCredentials(credentials.Static{"db-password": "hunter2"}))
	require.NoError(t, m.Register(Registration{
		Resource: &credentialedResource{fakeResource: fakeResource{id: "db"}},
		Pool:     smallPool(),
	}))

	h, err := m.Acquire(context.Background(), "db", resource.Context{})
	require.NoError(t, err)
	defer h.Release()

	v, err := As[string](h)
	require.NoError(t, err)
	assert.Equal(t, "db:hunter2", v)
}

func TestRequestCredentialsTakePrecedence(t *testing.T) {
	m := newTestManager(t, WithCredentials(credentials.Static{"db-password": "default"}))
	require.NoError(t, m.Register(Registration{
		Resource: &credentialedResource{fakeResource: fakeResource{id: "db"}},
		Pool:     smallPool(),
	}))

	req := resource.Context{}.WithCredentials(credentials.Static{"db-password": "override"})
	h, err := m.Acquire(context.Background(), "db", req)
	require.NoError(t, err)
	defer h.Release()

	v, err := As[string](h)
	require.NoError(t, err)
	assert.Equal(t, "db:override", v)
}

func TestAcquireWithoutProviderFails(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, m.Register(Registration{
		Resource: &credentialedResource{fakeResource: fakeResource{id: "db"}},
		Pool:     smallPool(),
	}))

	_, err := m.Acquire(context.Background(), "db", resource.Context{})
	assert.Error(t, err)
}
