package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cuemby/burrow/pkg/guard"
	"github.com/cuemby/burrow/pkg/resource"
	"github.com/cuemby/burrow/pkg/scope"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeResource is a scriptable driver for pool tests
type fakeResource struct {
	resource.Base
	id string

	mu          sync.Mutex
	created     int
	cleaned     int
	failCreates int
	createDelay time.Duration
	recycleErr  error
	invalid     map[any]bool
}

func newFakeResource(id string) *fakeResource {
	return &fakeResource{id: id, invalid: make(map[any]bool)}
}

func (f *fakeResource) ID() string { return f.id }

func (f *fakeResource) Create(ctx resource.Context, cfg resource.Config) (any, error) {
	f.mu.Lock()
	delay := f.createDelay
	if f.failCreates > 0 {
		f.failCreates--
		f.mu.Unlock()
		return nil, errors.New("simulated create failure")
	}
	f.created++
	n := f.created
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return fmt.Sprintf("conn-%d", n), nil
}

func (f *fakeResource) IsValid(ctx context.Context, instance any) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.invalid[instance], nil
}

func (f *fakeResource) Recycle(ctx context.Context, instance any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.recycleErr
}

func (f *fakeResource) Cleanup(ctx context.Context, instance any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleaned++
	return nil
}

func (f *fakeResource) counts() (created, cleaned int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.created, f.cleaned
}

func (f *fakeResource) markInvalid(instance any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalid[instance] = true
}

func testCtx() resource.Context {
	return resource.NewContext(context.Background(), scope.Global())
}

func testConfig() Config {
	return Config{
		MinSize:            0,
		MaxSize:            3,
		AcquireTimeout:     500 * time.Millisecond,
		IdleTimeout:        time.Minute,
		MaxLifetime:        time.Hour,
		ValidationInterval: time.Hour, // keep maintenance out of the way
	}
}

func mustPool(t *testing.T, res resource.Resource, cfg Config, opts ...Option) *Pool {
	t.Helper()
	p, err := New(res, resource.NopConfig{}, cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = p.Shutdown(ctx)
	})
	return p
}

func TestAcquireReleaseReuse(t *testing.T) {
	res := newFakeResource("db")
	p := mustPool(t, res, testConfig())

	g, err := p.Acquire(testCtx())
	require.NoError(t, err)
	first := g.Value().ID
	assert.Equal(t, "conn-1", g.Value().Value)
	g.Release()

	g2, err := p.Acquire(testCtx())
	require.NoError(t, err)
	assert.Equal(t, first, g2.Value().ID, "released instance should be reused")
	g2.Release()

	created, _ := res.counts()
	assert.Equal(t, 1, created)
}

func TestPoolBoundInvariant(t *testing.T) {
	res := newFakeResource("db")
	p := mustPool(t, res, testConfig())

	check := func() {
		s := p.Stats()
		assert.LessOrEqual(t, s.Total(), s.MaxSize, "idle+in_use+pending must never exceed max_size")
	}

	var guards []*guard.Guard[*Instance]
	for i := 0; i < 3; i++ {
		g, err := p.Acquire(testCtx())
		require.NoError(t, err)
		guards = append(guards, g)
		check()
	}
	for _, g := range guards {
		g.Release()
		check()
	}
}

// Scenario: min=1,max=3; three concurrent acquires succeed and a fourth
// blocks until one of the three is released
func TestFourthAcquireBlocksUntilRelease(t *testing.T) {
	res := newFakeResource("db")
	cfg := testConfig()
	cfg.MinSize = 1
	cfg.AcquireTimeout = 5 * time.Second
	p := mustPool(t, res, cfg)

	var guards []*guard.Guard[*Instance]
	for i := 0; i < 3; i++ {
		g, err := p.Acquire(testCtx())
		require.NoError(t, err)
		guards = append(guards, g)
	}

	fourth := make(chan *guard.Guard[*Instance], 1)
	go func() {
		g, err := p.Acquire(testCtx())
		if err == nil {
			fourth <- g
		}
	}()

	select {
	case <-fourth:
		t.Fatal("fourth acquire should block while pool is exhausted")
	case <-time.After(100 * time.Millisecond):
	}

	guards[0].Release()

	select {
	case g := <-fourth:
		g.Release()
	case <-time.After(2 * time.Second):
		t.Fatal("fourth acquire should proceed after a release")
	}

	guards[1].Release()
	guards[2].Release()
}

func TestAcquireTimeout(t *testing.T) {
	res := newFakeResource("db")
	cfg := testConfig()
	cfg.MaxSize = 1
	cfg.HardMaxSize = 1
	cfg.AcquireTimeout = 50 * time.Millisecond
	p := mustPool(t, res, cfg)

	g, err := p.Acquire(testCtx())
	require.NoError(t, err)
	defer g.Release()

	_, err = p.Acquire(testCtx())
	require.Error(t, err)

	var ae *AcquireError
	require.True(t, errors.As(err, &ae))
	assert.True(t, ae.Retryable)
	assert.True(t, errors.Is(err, ErrAcquireTimeout))
	assert.Equal(t, "wait", ae.Phase)
}

func TestAcquireCancelledCallerConsumesNoPermit(t *testing.T) {
	res := newFakeResource("db")
	cfg := testConfig()
	cfg.MaxSize = 1
	cfg.HardMaxSize = 1
	cfg.AcquireTimeout = 5 * time.Second
	p := mustPool(t, res, cfg)

	g, err := p.Acquire(testCtx())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err = p.Acquire(resource.NewContext(ctx, scope.Global()))
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))

	// the cancelled waiter must not have leaked a permit
	g.Release()
	g2, err := p.Acquire(testCtx())
	require.NoError(t, err)
	g2.Release()
}

func TestInvalidIdleInstanceDiscarded(t *testing.T) {
	res := newFakeResource("db")
	p := mustPool(t, res, testConfig())

	g, err := p.Acquire(testCtx())
	require.NoError(t, err)
	conn := g.Value().Value
	g.Release()

	res.markInvalid(conn)

	g2, err := p.Acquire(testCtx())
	require.NoError(t, err)
	assert.NotEqual(t, conn, g2.Value().Value, "invalid instance must be replaced")
	g2.Release()

	created, cleaned := res.counts()
	assert.Equal(t, 2, created)
	assert.Equal(t, 1, cleaned)
}

func TestCreateRetriedOnce(t *testing.T) {
	res := newFakeResource("db")
	res.failCreates = 1
	p := mustPool(t, res, testConfig())

	g, err := p.Acquire(testCtx())
	require.NoError(t, err, "one create failure should be retried")
	g.Release()
}

func TestCreateFailureSurfacedAfterRetry(t *testing.T) {
	res := newFakeResource("db")
	res.failCreates = 2
	p := mustPool(t, res, testConfig())

	_, err := p.Acquire(testCtx())
	require.Error(t, err)

	var ae *AcquireError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, "create", ae.Phase)

	// the failed acquire must not leak its permit
	g, err := p.Acquire(testCtx())
	require.NoError(t, err)
	g.Release()
}

func TestRecycleFailureDiscardsInstance(t *testing.T) {
	res := newFakeResource("db")
	p := mustPool(t, res, testConfig())

	g, err := p.Acquire(testCtx())
	require.NoError(t, err)
	res.recycleErr = errors.New("dirty connection")
	g.Release()

	assert.Equal(t, 0, p.Stats().Idle)
	_, cleaned := res.counts()
	assert.Equal(t, 1, cleaned)

	// capacity refilled lazily on the next acquire
	res.recycleErr = nil
	g2, err := p.Acquire(testCtx())
	require.NoError(t, err)
	g2.Release()
}

func TestDetachLeavesPoolAccounting(t *testing.T) {
	res := newFakeResource("db")
	cfg := testConfig()
	cfg.MaxSize = 1
	cfg.HardMaxSize = 1
	p := mustPool(t, res, cfg)

	g, err := p.Acquire(testCtx())
	require.NoError(t, err)

	inst, ok := g.IntoInner()
	require.True(t, ok)
	assert.Equal(t, "conn-1", inst.Value)

	s := p.Stats()
	assert.Equal(t, 0, s.InUse)
	assert.Equal(t, 0, s.Idle)

	// detached instance freed its permit
	g2, err := p.Acquire(testCtx())
	require.NoError(t, err)
	g2.Release()

	// the pool never cleaned up the detached value
	_, cleaned := res.counts()
	assert.Equal(t, 0, cleaned)
}

func TestWarmUp(t *testing.T) {
	res := newFakeResource("db")
	cfg := testConfig()
	cfg.MinSize = 2
	p := mustPool(t, res, cfg)

	require.NoError(t, p.WarmUp(testCtx()))
	s := p.Stats()
	assert.Equal(t, 2, s.Idle)
	created, _ := res.counts()
	assert.Equal(t, 2, created)

	// warmup is idempotent
	require.NoError(t, p.WarmUp(testCtx()))
	created, _ = res.counts()
	assert.Equal(t, 2, created)
}

func TestMaintainEvictsExpiredAndRewarns(t *testing.T) {
	res := newFakeResource("db")
	cfg := testConfig()
	cfg.MinSize = 1
	cfg.IdleTimeout = 20 * time.Millisecond
	cfg.ValidationInterval = 10 * time.Millisecond
	p := mustPool(t, res, cfg)

	require.NoError(t, p.WarmUp(testCtx()))

	require.Eventually(t, func() bool {
		_, cleaned := res.counts()
		return cleaned >= 1
	}, 2*time.Second, 10*time.Millisecond, "expired idle instance should be evicted")

	require.Eventually(t, func() bool {
		return p.Stats().Idle >= 1
	}, 2*time.Second, 10*time.Millisecond, "pool should be warmed back to min_size")
}

func TestEvictIdleNeverTouchesInUse(t *testing.T) {
	res := newFakeResource("db")
	p := mustPool(t, res, testConfig())

	g, err := p.Acquire(testCtx())
	require.NoError(t, err)

	g2, err := p.Acquire(testCtx())
	require.NoError(t, err)
	g2.Release() // one idle, one in use

	evicted := p.EvictIdle(5)
	assert.Equal(t, 1, evicted)

	s := p.Stats()
	assert.Equal(t, 1, s.InUse)
	assert.Equal(t, 0, s.Idle)
	g.Release()
}

func TestResize(t *testing.T) {
	res := newFakeResource("db")
	cfg := testConfig()
	cfg.MaxSize = 1
	cfg.HardMaxSize = 3
	cfg.AcquireTimeout = 100 * time.Millisecond
	p := mustPool(t, res, cfg)

	g1, err := p.Acquire(testCtx())
	require.NoError(t, err)

	_, err = p.Acquire(testCtx())
	require.Error(t, err, "second acquire should fail at max_size=1")

	assert.Equal(t, 2, p.Resize(2))

	g2, err := p.Acquire(testCtx())
	require.NoError(t, err, "resize should open capacity")

	// shrinking below in-use count is best effort and stops early
	assert.Equal(t, 2, p.Resize(1))

	g1.Release()
	g2.Release()
}

func TestResizeClampedToHardMax(t *testing.T) {
	res := newFakeResource("db")
	cfg := testConfig()
	cfg.MaxSize = 2
	cfg.HardMaxSize = 4
	p := mustPool(t, res, cfg)

	assert.Equal(t, 4, p.Resize(100))
	assert.Equal(t, 1, p.Resize(0))
}

func TestResizeNeverShrinksBelowMinSize(t *testing.T) {
	res := newFakeResource("db")
	cfg := testConfig()
	cfg.MinSize = 3
	cfg.MaxSize = 5
	p := mustPool(t, res, cfg)

	// shrinking stops at min_size, so warming can never push the pool
	// past its own maximum
	assert.Equal(t, 3, p.Resize(1))

	require.NoError(t, p.WarmUp(testCtx()))
	stats := p.Stats()
	assert.Equal(t, 3, stats.MaxSize)
	assert.LessOrEqual(t, stats.Idle+stats.InUse, stats.MaxSize,
		"idle+in_use must stay within the current maximum")
}

func TestDiscardIdleImmediate(t *testing.T) {
	res := newFakeResource("db")
	p := mustPool(t, res, testConfig())

	g, err := p.Acquire(testCtx())
	require.NoError(t, err)
	id := g.Value().ID
	g.Release()

	require.True(t, p.Discard(id))
	assert.Equal(t, 0, p.Stats().Idle)
	_, cleaned := res.counts()
	assert.Equal(t, 1, cleaned)

	assert.False(t, p.Discard("no-such-instance"))
}

func TestDiscardInUseDeferredToRelease(t *testing.T) {
	res := newFakeResource("db")
	p := mustPool(t, res, testConfig())

	g, err := p.Acquire(testCtx())
	require.NoError(t, err)

	require.True(t, p.Discard(g.Value().ID))
	_, cleaned := res.counts()
	assert.Equal(t, 0, cleaned, "in-use instance must not be cleaned while held")

	g.Release()
	_, cleaned = res.counts()
	assert.Equal(t, 1, cleaned)
	assert.Equal(t, 0, p.Stats().Idle)
}

func TestAddInstanceRespectsBound(t *testing.T) {
	res := newFakeResource("db")
	cfg := testConfig()
	cfg.MaxSize = 1
	cfg.HardMaxSize = 1
	p := mustPool(t, res, cfg)

	id, err := p.AddInstance("recovered-conn")
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	_, err = p.AddInstance("one-too-many")
	assert.ErrorIs(t, err, ErrPoolFull)
}

func TestImpactPreference(t *testing.T) {
	res := newFakeResource("db")
	p := mustPool(t, res, testConfig())

	g1, err := p.Acquire(testCtx())
	require.NoError(t, err)
	g2, err := p.Acquire(testCtx())
	require.NoError(t, err)
	healthy := g1.Value().ID
	degraded := g2.Value().ID
	g1.Release()
	g2.Release()

	p.SetImpact(degraded, 0.8)

	g3, err := p.Acquire(testCtx())
	require.NoError(t, err)
	assert.Equal(t, healthy, g3.Value().ID, "lower-impact instance preferred")
	g3.Release()
}

func TestLIFOSelection(t *testing.T) {
	res := newFakeResource("db")
	cfg := testConfig()
	cfg.Strategy = SelectLIFO
	p := mustPool(t, res, cfg)

	g1, _ := p.Acquire(testCtx())
	g2, _ := p.Acquire(testCtx())
	first := g1.Value().ID
	second := g2.Value().ID
	g1.Release()
	g2.Release() // idle order: [first, second]

	g3, err := p.Acquire(testCtx())
	require.NoError(t, err)
	assert.Equal(t, second, g3.Value().ID, "LIFO hands out the most recently released")
	g3.Release()
	_ = first
}

func TestDrainWaitsForReturns(t *testing.T) {
	res := newFakeResource("db")
	p := mustPool(t, res, testConfig())

	g, err := p.Acquire(testCtx())
	require.NoError(t, err)

	go func() {
		time.Sleep(50 * time.Millisecond)
		g.Release()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, p.Drain(ctx))

	_, err = p.Acquire(testCtx())
	assert.ErrorIs(t, err, ErrPoolClosed)
}

// Scenario: shutdown with one in-use instance and a short drain timeout
// returns control promptly, force-reclaims, and skips no cleanup
func TestShutdownForcedReclaim(t *testing.T) {
	res := newFakeResource("db")
	p := mustPool(t, res, testConfig())

	g, err := p.Acquire(testCtx())
	require.NoError(t, err)

	drainCtx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	err = p.Drain(drainCtx)
	require.Error(t, err, "drain should time out with an instance still held")
	assert.Less(t, time.Since(start), time.Second)

	ctx, cancel2 := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel2()
	require.NoError(t, p.Shutdown(ctx))

	_, cleaned := res.counts()
	assert.Equal(t, 1, cleaned, "forced reclaim must not skip cleanup")

	// the straggling guard release is harmless afterwards
	g.Release()
	_, cleaned = res.counts()
	assert.Equal(t, 1, cleaned)
}

func TestConcurrentAcquireReleaseStress(t *testing.T) {
	res := newFakeResource("db")
	cfg := testConfig()
	cfg.MaxSize = 4
	cfg.HardMaxSize = 4
	cfg.AcquireTimeout = 5 * time.Second
	p := mustPool(t, res, cfg)

	var violations int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				g, err := p.Acquire(testCtx())
				if err != nil {
					continue
				}
				s := p.Stats()
				if s.Total() > s.MaxSize {
					atomic.AddInt32(&violations, 1)
				}
				g.Release()
			}
		}()
	}
	wg.Wait()
	assert.Zero(t, atomic.LoadInt32(&violations), "size bound violated under concurrency")
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults valid", func(c *Config) {}, false},
		{"zero max", func(c *Config) { c.MaxSize = 0 }, true},
		{"negative min", func(c *Config) { c.MinSize = -1 }, true},
		{"min above max", func(c *Config) { c.MinSize = 10; c.MaxSize = 2 }, true},
		{"hard max below max", func(c *Config) { c.HardMaxSize = 1; c.MaxSize = 5 }, true},
		{"bad strategy", func(c *Config) { c.Strategy = "random" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
