package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cuemby/burrow/pkg/events"
	"github.com/cuemby/burrow/pkg/guard"
	"github.com/cuemby/burrow/pkg/lifecycle"
	"github.com/cuemby/burrow/pkg/log"
	"github.com/cuemby/burrow/pkg/metrics"
	"github.com/cuemby/burrow/pkg/resource"
	"github.com/cuemby/burrow/pkg/scope"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
)

// cleanupTimeout bounds recycle/cleanup calls made on the release path,
// which has no caller context to inherit
const cleanupTimeout = 10 * time.Second

// Notifier receives pool events; the manager wires it to the broker
type Notifier func(*events.Event)

// Pool is a bounded set of reusable instances for one resource. A
// weighted semaphore sized to the hard capacity bounds in-use plus
// in-creation instances; idle instances hold no permits, so
// idle + in_use never exceeds the current maximum.
type Pool struct {
	resourceID string
	res        resource.Resource
	rcfg       resource.Config
	cfg        Config

	sem     *semaphore.Weighted
	hardMax int

	mu      sync.Mutex
	curMax  int
	idle    []*Instance
	inUse   map[string]*Instance
	pending int
	closed  bool

	maintainCancel context.CancelFunc
	maintainDone   chan struct{}

	notify    Notifier
	onCreated func(*Instance)
	logger    zerolog.Logger
}

// Option customizes pool construction
type Option func(*Pool)

// WithNotifier routes pool events to a publisher
func WithNotifier(n Notifier) Option {
	return func(p *Pool) { p.notify = n }
}

// WithOnCreated registers a synchronous callback fired once a new
// instance is tracked by the pool. The manager uses it to attach health
// monitoring.
func WithOnCreated(fn func(*Instance)) Option {
	return func(p *Pool) { p.onCreated = fn }
}

// New builds a pool for one resource. The pool starts empty; call
// WarmUp or let the maintenance loop fill it to MinSize.
func New(res resource.Resource, rcfg resource.Config, cfg Config, opts ...Option) (*Pool, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := &Pool{
		resourceID: res.ID(),
		res:        res,
		rcfg:       rcfg,
		cfg:        cfg,
		sem:        semaphore.NewWeighted(int64(cfg.HardMaxSize)),
		hardMax:    cfg.HardMaxSize,
		curMax:     cfg.MaxSize,
		inUse:      make(map[string]*Instance),
		logger:     log.WithResource("pool", res.ID()),
	}
	for _, opt := range opts {
		opt(p)
	}

	// Reserve the headroom between MaxSize and HardMaxSize; Resize
	// hands it back when the scaler grows the pool.
	if reserved := int64(p.hardMax - p.curMax); reserved > 0 {
		if !p.sem.TryAcquire(reserved) {
			return nil, fmt.Errorf("pool %s: failed to reserve scaling headroom", p.resourceID)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.maintainCancel = cancel
	p.maintainDone = make(chan struct{})
	go p.maintainLoop(ctx)

	p.logger.Info().
		Int("min_size", cfg.MinSize).
		Int("max_size", cfg.MaxSize).
		Str("strategy", string(cfg.Strategy)).
		Msg("pool created")
	return p, nil
}

// ResourceID returns the id of the pooled resource
func (p *Pool) ResourceID() string {
	return p.resourceID
}

// Stats is a point-in-time snapshot of pool occupancy
type Stats struct {
	ResourceID string
	Idle       int
	InUse      int
	Pending    int
	MinSize    int
	MaxSize    int
	Closed     bool
}

// Total returns all live or in-creation instances
func (s Stats) Total() int {
	return s.Idle + s.InUse + s.Pending
}

// Utilization returns in_use / max_size
func (s Stats) Utilization() float64 {
	if s.MaxSize == 0 {
		return 0
	}
	return float64(s.InUse) / float64(s.MaxSize)
}

// Stats returns current occupancy
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		ResourceID: p.resourceID,
		Idle:       len(p.idle),
		InUse:      len(p.inUse),
		Pending:    p.pending,
		MinSize:    p.cfg.MinSize,
		MaxSize:    p.curMax,
		Closed:     p.closed,
	}
}

// Acquire returns a guarded instance, creating one if no valid idle
// instance exists. The wait for capacity races the caller's
// cancellation signal against the configured acquire timeout; a
// cancelled caller consumes no permit.
func (p *Pool) Acquire(rctx resource.Context) (*guard.Guard[*Instance], error) {
	start := time.Now()

	if p.isClosed() {
		metrics.AcquiresTotal.WithLabelValues(p.resourceID, "closed").Inc()
		return nil, &AcquireError{ResourceID: p.resourceID, Phase: "wait", Err: ErrPoolClosed}
	}

	waitCtx, cancel := context.WithTimeout(rctx, p.cfg.AcquireTimeout)
	defer cancel()

	if err := p.sem.Acquire(waitCtx, 1); err != nil {
		if rctx.Err() != nil {
			metrics.AcquiresTotal.WithLabelValues(p.resourceID, "cancelled").Inc()
			return nil, &AcquireError{ResourceID: p.resourceID, Phase: "wait", Err: rctx.Err()}
		}
		metrics.AcquiresTotal.WithLabelValues(p.resourceID, "timeout").Inc()
		p.publish(events.New(events.EventPoolExhausted, p.resourceID).
			WithMessage(fmt.Sprintf("no capacity within %s", p.cfg.AcquireTimeout)))
		return nil, &AcquireError{ResourceID: p.resourceID, Phase: "wait", Retryable: true, Err: ErrAcquireTimeout}
	}

	// Permit held from here; every failure path must give it back.
	if p.isClosed() {
		p.sem.Release(1)
		metrics.AcquiresTotal.WithLabelValues(p.resourceID, "closed").Inc()
		return nil, &AcquireError{ResourceID: p.resourceID, Phase: "wait", Err: ErrPoolClosed}
	}

	inst, err := p.checkout(rctx)
	if err != nil {
		p.sem.Release(1)
		metrics.AcquiresTotal.WithLabelValues(p.resourceID, "error").Inc()
		p.publish(events.New(events.EventAcquireFailed, p.resourceID).WithError(err))
		return nil, err
	}

	metrics.AcquiresTotal.WithLabelValues(p.resourceID, "ok").Inc()
	metrics.AcquireDuration.WithLabelValues(p.resourceID).Observe(time.Since(start).Seconds())
	p.publish(events.New(events.EventInstanceAcquired, p.resourceID).WithInstance(inst.ID))

	return guard.New(inst, p.release), nil
}

// checkout pops a valid idle instance or creates a fresh one. Caller
// holds a permit.
func (p *Pool) checkout(rctx resource.Context) (*Instance, error) {
	// Idle instances first; invalid ones are discarded and the next
	// tried.
	for {
		inst := p.popIdle()
		if inst == nil {
			break
		}
		if err := inst.machine.TryTransition(lifecycle.StateIdle, lifecycle.StateInUse); err != nil {
			// lost a race with maintenance or quarantine
			p.logger.Debug().Str("instance_id", inst.ID).Err(err).Msg("idle instance no longer acquirable")
			p.trackInUse(inst)
			p.discard(inst, "unexpected state in idle set")
			continue
		}
		valid, err := p.res.IsValid(rctx, inst.Value)
		if err != nil || !valid {
			p.trackInUse(inst)
			p.discard(inst, "failed validation")
			continue
		}
		p.trackInUse(inst)
		return inst, nil
	}

	// Nothing idle: create, retrying once with a fresh instance before
	// surfacing the failure.
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		inst, err := p.create(rctx)
		if err != nil {
			lastErr = err
			continue
		}
		valid, err := p.res.IsValid(rctx, inst.Value)
		if err != nil || !valid {
			p.trackInUse(inst)
			p.discard(inst, "failed validation after create")
			if err == nil {
				err = fmt.Errorf("instance invalid immediately after create")
			}
			lastErr = err
			continue
		}
		if terr := inst.machine.TryTransition(lifecycle.StateReady, lifecycle.StateInUse); terr != nil {
			p.trackInUse(inst)
			p.discard(inst, "unexpected state after create")
			lastErr = terr
			continue
		}
		p.trackInUse(inst)
		p.notifyCreated(inst)
		return inst, nil
	}

	return nil, &AcquireError{ResourceID: p.resourceID, Phase: "create", Err: lastErr}
}

// create builds a new instance and walks it to Ready. Caller holds a
// permit, so the size bound cannot be exceeded.
func (p *Pool) create(rctx resource.Context) (*Instance, error) {
	p.mu.Lock()
	p.pending++
	p.updateMetricsLocked()
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.pending--
		p.updateMetricsLocked()
		p.mu.Unlock()
	}()

	inst := newInstance(nil)
	if err := inst.machine.TransitionTo(lifecycle.StateInitializing); err != nil {
		return nil, err
	}

	value, err := p.res.Create(rctx, p.rcfg)
	if err != nil {
		_ = inst.machine.TransitionTo(lifecycle.StateFailed)
		p.publish(events.New(events.EventInstanceFailed, p.resourceID).WithError(err))
		return nil, fmt.Errorf("create %s instance: %w", p.resourceID, err)
	}
	inst.Value = value

	if err := inst.machine.TransitionTo(lifecycle.StateReady); err != nil {
		return nil, err
	}

	metrics.InstancesCreated.WithLabelValues(p.resourceID).Inc()
	p.publish(events.New(events.EventInstanceCreated, p.resourceID).WithInstance(inst.ID))
	p.logger.Debug().Str("instance_id", inst.ID).Msg("instance created")
	return inst, nil
}

// release is the guard callback: exactly once per acquired instance
func (p *Pool) release(inst *Instance, detached bool) {
	defer p.sem.Release(1)

	p.mu.Lock()
	tracked := p.inUse[inst.ID] == inst
	if tracked {
		delete(p.inUse, inst.ID)
	}
	closed := p.closed
	p.updateMetricsLocked()
	p.mu.Unlock()

	if !tracked {
		// already force-reclaimed during shutdown
		return
	}

	if detached {
		p.publish(events.New(events.EventInstanceDetached, p.resourceID).WithInstance(inst.ID))
		p.logger.Debug().Str("instance_id", inst.ID).Msg("instance detached from pool")
		return
	}

	if closed || inst.discarded() {
		p.discard(inst, "released into closed pool or flagged for discard")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()

	if err := p.res.Recycle(ctx, inst.Value); err != nil {
		p.logger.Warn().Str("instance_id", inst.ID).Err(err).Msg("recycle failed, discarding instance")
		p.discard(inst, "recycle failed")
		return
	}

	if err := inst.machine.TryTransition(lifecycle.StateInUse, lifecycle.StateIdle); err != nil {
		p.discard(inst, "not reusable after release")
		return
	}
	inst.touch()

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.discard(inst, "pool closed during release")
		return
	}
	p.idle = append(p.idle, inst)
	p.updateMetricsLocked()
	p.mu.Unlock()

	p.publish(events.New(events.EventInstanceReleased, p.resourceID).WithInstance(inst.ID))
}

// popIdle removes the preferred idle instance: lowest degradation
// impact first, then FIFO or LIFO order among equals
func (p *Pool) popIdle() *Instance {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.idle) == 0 {
		return nil
	}

	best := 0
	if p.cfg.Strategy == SelectLIFO {
		best = len(p.idle) - 1
	}
	bestImpact := p.idle[best].Impact()
	for idx, inst := range p.idle {
		impact := inst.Impact()
		switch p.cfg.Strategy {
		case SelectLIFO:
			if impact < bestImpact || (impact == bestImpact && idx > best) {
				best, bestImpact = idx, impact
			}
		default: // FIFO
			if impact < bestImpact {
				best, bestImpact = idx, impact
			}
		}
	}

	inst := p.idle[best]
	p.idle = append(p.idle[:best], p.idle[best+1:]...)
	p.updateMetricsLocked()
	return inst
}

func (p *Pool) trackInUse(inst *Instance) {
	p.mu.Lock()
	p.inUse[inst.ID] = inst
	p.updateMetricsLocked()
	p.mu.Unlock()
}

// discard cleans up an instance that is out of every tracking set
func (p *Pool) discard(inst *Instance, reason string) {
	p.mu.Lock()
	if p.inUse[inst.ID] == inst {
		delete(p.inUse, inst.ID)
	}
	p.updateMetricsLocked()
	p.mu.Unlock()

	_ = inst.machine.TransitionTo(lifecycle.StateCleanup)

	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()
	if err := p.res.Cleanup(ctx, inst.Value); err != nil {
		p.logger.Error().Str("instance_id", inst.ID).Err(err).Msg("cleanup failed")
		_ = inst.machine.TransitionTo(lifecycle.StateFailed)
		_ = inst.machine.TransitionTo(lifecycle.StateTerminated)
	} else {
		_ = inst.machine.TransitionTo(lifecycle.StateTerminated)
	}

	metrics.InstancesCleaned.WithLabelValues(p.resourceID).Inc()
	p.publish(events.New(events.EventInstanceCleaned, p.resourceID).
		WithInstance(inst.ID).WithMessage(reason))
}

// Discard flags an instance for removal. Idle instances are cleaned up
// immediately; in-use instances are cleaned up on release. Returns
// false if the instance is unknown.
func (p *Pool) Discard(instanceID string) bool {
	p.mu.Lock()
	for idx, inst := range p.idle {
		if inst.ID == instanceID {
			p.idle = append(p.idle[:idx], p.idle[idx+1:]...)
			p.updateMetricsLocked()
			p.mu.Unlock()
			if err := inst.machine.TryTransition(lifecycle.StateIdle, lifecycle.StateMaintenance); err == nil {
				p.discard(inst, "discarded by operator or health monitor")
				return true
			}
			p.discard(inst, "discarded by operator or health monitor")
			return true
		}
	}
	if inst, ok := p.inUse[instanceID]; ok {
		inst.markDiscard()
		p.mu.Unlock()
		return true
	}
	p.mu.Unlock()
	return false
}

// SetImpact records a degradation impact score for an instance
func (p *Pool) SetImpact(instanceID string, impact float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, inst := range p.idle {
		if inst.ID == instanceID {
			inst.SetImpact(impact)
			return
		}
	}
	if inst, ok := p.inUse[instanceID]; ok {
		inst.SetImpact(impact)
	}
}

// Instances returns a snapshot of every live instance, idle and in use
func (p *Pool) Instances() []*Instance {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Instance, 0, len(p.idle)+len(p.inUse))
	out = append(out, p.idle...)
	for _, inst := range p.inUse {
		out = append(out, inst)
	}
	return out
}

// AddInstance inserts an externally created, already-validated instance
// as idle. Used by quarantine recovery. Fails with ErrPoolFull when the
// size bound would be broken.
func (p *Pool) AddInstance(value any) (string, error) {
	inst := newInstance(value)
	if err := inst.machine.TransitionTo(lifecycle.StateInitializing); err != nil {
		return "", err
	}
	if err := inst.machine.TransitionTo(lifecycle.StateReady); err != nil {
		return "", err
	}
	if err := inst.machine.TransitionTo(lifecycle.StateIdle); err != nil {
		return "", err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return "", ErrPoolClosed
	}
	if len(p.idle)+len(p.inUse)+p.pending >= p.curMax {
		return "", ErrPoolFull
	}
	p.idle = append(p.idle, inst)
	p.updateMetricsLocked()
	return inst.ID, nil
}

// WarmUp creates idle instances until the pool holds MinSize
func (p *Pool) WarmUp(rctx resource.Context) error {
	for {
		p.mu.Lock()
		if p.closed || len(p.idle)+len(p.inUse)+p.pending >= p.cfg.MinSize {
			p.mu.Unlock()
			return nil
		}
		p.pending++
		p.mu.Unlock()

		inst, err := p.createWarm(rctx)
		p.mu.Lock()
		p.pending--
		if err != nil {
			p.updateMetricsLocked()
			p.mu.Unlock()
			return err
		}
		if p.closed {
			p.mu.Unlock()
			p.discard(inst, "pool closed during warmup")
			return nil
		}
		p.idle = append(p.idle, inst)
		p.updateMetricsLocked()
		p.mu.Unlock()
		p.notifyCreated(inst)
	}
}

// createWarm builds an instance destined for the idle set. Unlike
// create it does not require a permit; the caller guards the size bound
// with the pending counter.
func (p *Pool) createWarm(rctx resource.Context) (*Instance, error) {
	inst := newInstance(nil)
	if err := inst.machine.TransitionTo(lifecycle.StateInitializing); err != nil {
		return nil, err
	}
	value, err := p.res.Create(rctx, p.rcfg)
	if err != nil {
		_ = inst.machine.TransitionTo(lifecycle.StateFailed)
		return nil, fmt.Errorf("warm %s instance: %w", p.resourceID, err)
	}
	inst.Value = value
	if err := inst.machine.TransitionTo(lifecycle.StateReady); err != nil {
		return nil, err
	}
	if err := inst.machine.TransitionTo(lifecycle.StateIdle); err != nil {
		return nil, err
	}
	metrics.InstancesCreated.WithLabelValues(p.resourceID).Inc()
	p.publish(events.New(events.EventInstanceCreated, p.resourceID).WithInstance(inst.ID))
	return inst, nil
}

// Resize adjusts the current maximum toward newMax, clamped to
// [max(1, MinSize), HardMaxSize]. The floor at MinSize keeps the size
// bound above what warming sustains, so idle+in_use never exceeds the
// current maximum. Shrinking is best effort: capacity occupied by
// in-flight instances is reclaimed only as far as free permits allow.
// Returns the effective maximum.
func (p *Pool) Resize(newMax int) int {
	floor := p.cfg.MinSize
	if floor < 1 {
		floor = 1
	}
	if newMax < floor {
		newMax = floor
	}
	if newMax > p.hardMax {
		newMax = p.hardMax
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	for p.curMax < newMax {
		p.sem.Release(1)
		p.curMax++
	}
	for p.curMax > newMax {
		if !p.sem.TryAcquire(1) {
			break
		}
		p.curMax--
	}
	p.updateMetricsLocked()
	return p.curMax
}

// EvictIdle removes up to n idle instances (oldest first) and cleans
// them up. In-use instances are never touched. Returns the number
// evicted.
func (p *Pool) EvictIdle(n int) int {
	var victims []*Instance
	p.mu.Lock()
	for len(victims) < n && len(p.idle) > 0 {
		inst := p.idle[0]
		p.idle = p.idle[1:]
		victims = append(victims, inst)
	}
	p.updateMetricsLocked()
	p.mu.Unlock()

	for _, inst := range victims {
		_ = inst.machine.TryTransition(lifecycle.StateIdle, lifecycle.StateMaintenance)
		p.discard(inst, "evicted")
	}
	return len(victims)
}

// maintainLoop periodically evicts expired idle instances and warms the
// pool back to MinSize
func (p *Pool) maintainLoop(ctx context.Context) {
	defer close(p.maintainDone)

	ticker := time.NewTicker(p.cfg.ValidationInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.maintain(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// maintain runs one maintenance pass
func (p *Pool) maintain(ctx context.Context) {
	now := time.Now()

	var expired []*Instance
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	kept := p.idle[:0]
	for _, inst := range p.idle {
		tooIdle := p.cfg.IdleTimeout > 0 && now.Sub(inst.LastUsedAt()) > p.cfg.IdleTimeout
		tooOld := p.cfg.MaxLifetime > 0 && now.Sub(inst.createdAt) > p.cfg.MaxLifetime
		if tooIdle || tooOld {
			expired = append(expired, inst)
		} else {
			kept = append(kept, inst)
		}
	}
	p.idle = kept
	p.updateMetricsLocked()
	p.mu.Unlock()

	for _, inst := range expired {
		_ = inst.machine.TryTransition(lifecycle.StateIdle, lifecycle.StateMaintenance)
		p.discard(inst, "expired")
	}

	if len(expired) > 0 {
		p.logger.Debug().Int("evicted", len(expired)).Msg("maintenance evicted expired instances")
	}

	rctx := resource.NewContext(ctx, scope.Global())
	if err := p.WarmUp(rctx); err != nil {
		p.logger.Warn().Err(err).Msg("maintenance warmup failed")
	}
}

// Drain stops new acquisitions and waits until every in-use instance
// has been returned, or ctx expires
func (p *Pool) Drain(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.updateMetricsLocked()
	p.mu.Unlock()

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		p.mu.Lock()
		busy := len(p.inUse) + p.pending
		p.mu.Unlock()
		if busy == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("drain %s: %d instances still in use: %w", p.resourceID, busy, ctx.Err())
		case <-ticker.C:
		}
	}
}

// Shutdown force-reclaims whatever Drain left behind, cleans up all
// idle instances, and stops the maintenance loop. Safe to call after a
// failed Drain; correctness over patience.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	reclaimed := make([]*Instance, 0, len(p.inUse))
	for id, inst := range p.inUse {
		reclaimed = append(reclaimed, inst)
		delete(p.inUse, id)
	}
	remaining := p.idle
	p.idle = nil
	p.updateMetricsLocked()
	p.mu.Unlock()

	var errs []error
	for _, inst := range reclaimed {
		p.logger.Warn().Str("instance_id", inst.ID).Msg("forcibly reclaiming in-use instance")
		_ = inst.machine.TryTransition(lifecycle.StateInUse, lifecycle.StateCleanup)
		if err := p.cleanupValue(ctx, inst); err != nil {
			errs = append(errs, err)
		}
	}
	for _, inst := range remaining {
		_ = inst.machine.TryTransition(lifecycle.StateIdle, lifecycle.StateCleanup)
		if err := p.cleanupValue(ctx, inst); err != nil {
			errs = append(errs, err)
		}
	}

	p.maintainCancel()
	select {
	case <-p.maintainDone:
	case <-ctx.Done():
		return ctx.Err()
	}

	return errors.Join(errs...)
}

func (p *Pool) cleanupValue(ctx context.Context, inst *Instance) error {
	cctx, cancel := context.WithTimeout(ctx, cleanupTimeout)
	defer cancel()
	err := p.res.Cleanup(cctx, inst.Value)
	if err != nil {
		_ = inst.machine.TransitionTo(lifecycle.StateFailed)
		_ = inst.machine.TransitionTo(lifecycle.StateTerminated)
		p.logger.Error().Str("instance_id", inst.ID).Err(err).Msg("cleanup failed during shutdown")
	} else {
		_ = inst.machine.TransitionTo(lifecycle.StateTerminated)
	}
	metrics.InstancesCleaned.WithLabelValues(p.resourceID).Inc()
	p.publish(events.New(events.EventInstanceCleaned, p.resourceID).WithInstance(inst.ID))
	return err
}

func (p *Pool) notifyCreated(inst *Instance) {
	if p.onCreated != nil {
		p.onCreated(inst)
	}
}

func (p *Pool) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *Pool) publish(ev *events.Event) {
	if p.notify != nil {
		p.notify(ev)
	}
}

// updateMetricsLocked refreshes the occupancy gauges; caller holds mu
func (p *Pool) updateMetricsLocked() {
	metrics.PoolInUse.WithLabelValues(p.resourceID).Set(float64(len(p.inUse)))
	metrics.PoolIdle.WithLabelValues(p.resourceID).Set(float64(len(p.idle)))
	metrics.PoolMaxSize.WithLabelValues(p.resourceID).Set(float64(p.curMax))
}
