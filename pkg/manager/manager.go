package manager

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cuemby/burrow/pkg/autoscale"
	"github.com/cuemby/burrow/pkg/events"
	"github.com/cuemby/burrow/pkg/graph"
	"github.com/cuemby/burrow/pkg/health"
	"github.com/cuemby/burrow/pkg/hooks"
	"github.com/cuemby/burrow/pkg/log"
	"github.com/cuemby/burrow/pkg/metrics"
	"github.com/cuemby/burrow/pkg/pool"
	"github.com/cuemby/burrow/pkg/quarantine"
	"github.com/cuemby/burrow/pkg/resource"
	"github.com/cuemby/burrow/pkg/scope"
	"github.com/rs/zerolog"
)

// reloadDrainTimeout bounds how long a replaced pool waits for
// in-flight handles before forcing reclamation
const reloadDrainTimeout = 30 * time.Second

// shutdownCleanupTimeout bounds the cleanup phase of Shutdown. It is a
// fresh deadline, not the caller's: a drain that exhausted the caller's
// context must not leave cleanup running on an already-expired one.
const shutdownCleanupTimeout = 30 * time.Second

// Registration describes one resource and its companions
type Registration struct {
	// Resource is the driver. Required.
	Resource resource.Resource

	// Config is passed to every Create; nil means NopConfig
	Config resource.Config

	// Pool tunes the instance pool
	Pool pool.Config

	// Scope restricts who may acquire; the zero value means Global
	Scope scope.Scope

	// Health tunes the monitor loop; zero fields use the defaults
	Health resource.HealthCheckConfig

	// HealthThreshold is the consecutive-failure quarantine threshold;
	// zero means the default
	HealthThreshold int

	// Pipeline, when set, replaces the resource's own health check
	Pipeline *health.Pipeline

	// Quarantine tunes the recovery schedule
	Quarantine quarantine.Config

	// Autoscale, when set, runs a watermark scaler against the pool
	Autoscale *autoscale.Policy
}

// entry bundles one registered resource with its pool and companions.
// The pool pointer is swappable (hot reload); everything else is fixed
// at registration.
type entry struct {
	key     string
	res     resource.Resource
	rcfg    resource.Config
	rscope  scope.Scope
	check   health.CheckFunc
	monitor *health.Monitor
	keeper  *quarantine.Keeper
	scaler  *autoscale.Scaler

	mu         sync.RWMutex
	pool       *pool.Pool
	degradedBy map[string]string // failed dependency id -> reason
}

func (e *entry) currentPool() *pool.Pool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.pool
}

func (e *entry) swapPool(p *pool.Pool) *pool.Pool {
	e.mu.Lock()
	defer e.mu.Unlock()
	old := e.pool
	e.pool = p
	return old
}

func (e *entry) markDegraded(dep, reason string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.degradedBy[dep] = reason
}

func (e *entry) clearDegraded(dep string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.degradedBy, dep)
}

func (e *entry) degradedReasons() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]string, 0, len(e.degradedBy))
	for _, reason := range e.degradedBy {
		out = append(out, reason)
	}
	return out
}

// entry implements autoscale.Target against whatever pool is current,
// so a hot reload does not strand the scaler on a drained pool.

func (e *entry) Stats() pool.Stats   { return e.currentPool().Stats() }
func (e *entry) Resize(n int) int    { return e.currentPool().Resize(n) }
func (e *entry) EvictIdle(n int) int { return e.currentPool().EvictIdle(n) }

// Manager is the facade over pools, the dependency graph, health
// monitoring, quarantine, and scaling. One manager per process is the
// expected shape.
type Manager struct {
	strategy scope.Strategy
	broker   *events.Broker
	hooks    *hooks.Registry
	store    quarantine.Store
	creds    resource.CredentialProvider
	logger   zerolog.Logger

	mu       sync.RWMutex
	graph    *graph.Graph
	entries  map[string]*entry
	shutdown bool
}

// Option customizes manager construction
type Option func(*Manager)

// WithStrategy sets the scope matching strategy (default hierarchical)
func WithStrategy(st scope.Strategy) Option {
	return func(m *Manager) {
		if st.Valid() {
			m.strategy = st
		}
	}
}

// WithStore persists quarantine state across restarts
func WithStore(s quarantine.Store) Option {
	return func(m *Manager) { m.store = s }
}

// WithCredentials sets the default credential provider. Acquisition
// contexts that carry their own provider keep it.
func WithCredentials(p resource.CredentialProvider) Option {
	return func(m *Manager) { m.creds = p }
}

// New builds an empty manager
func New(opts ...Option) *Manager {
	m := &Manager{
		strategy: scope.StrategyHierarchical,
		broker:   events.NewBroker(),
		hooks:    hooks.NewRegistry(),
		logger:   log.WithComponent("manager"),
		graph:    graph.New(),
		entries:  make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Register adds a resource, builds its pool, and wires health
// monitoring, quarantine, and scaling. Rejected registrations leave the
// manager unchanged.
func (m *Manager) Register(reg Registration) error {
	if reg.Resource == nil {
		return fmt.Errorf("registration without a resource")
	}
	key := reg.Resource.ID()
	if key == "" {
		return fmt.Errorf("resource with empty id")
	}

	rcfg := reg.Config
	if rcfg == nil {
		rcfg = resource.NopConfig{}
	}
	if err := rcfg.Validate(); err != nil {
		return fmt.Errorf("resource %s config: %w", key, err)
	}

	rscope := reg.Scope
	if rscope.Kind == "" {
		rscope = scope.Global()
	}

	if reg.Autoscale != nil {
		if err := reg.Autoscale.Validate(); err != nil {
			return fmt.Errorf("resource %s autoscale: %w", key, err)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.shutdown {
		return ErrShutdown
	}
	if _, exists := m.entries[key]; exists {
		return &AlreadyRegisteredError{Key: key}
	}

	// cycle rejection happens here, before anything is built
	if err := m.graph.Register(key, reg.Resource.Dependencies()); err != nil {
		return err
	}

	e := &entry{
		key:        key,
		res:        reg.Resource,
		rcfg:       rcfg,
		rscope:     rscope,
		degradedBy: make(map[string]string),
	}

	notify := func(ev *events.Event) {
		m.broker.Publish(ev)
		m.route(e, ev)
	}

	p, err := pool.New(reg.Resource, rcfg, reg.Pool,
		pool.WithNotifier(notify),
		pool.WithOnCreated(func(inst *pool.Instance) {
			if e.monitor != nil {
				e.monitor.Watch(inst.ID, inst.Value)
			}
		}),
	)
	if err != nil {
		m.graph.Remove(key)
		return err
	}
	e.pool = p

	if check, ok := health.ResolveChecker(reg.Resource, reg.Pipeline); ok {
		e.check = check
		var mopts []health.MonitorOption
		if reg.HealthThreshold > 0 {
			mopts = append(mopts, health.WithThreshold(reg.HealthThreshold))
		}
		mopts = append(mopts, health.WithNotifier(notify))
		hcfg := reg.Health
		if hc, ok := reg.Resource.(resource.HealthCheckConfigurable); ok {
			own := hc.HealthCheckConfig()
			if hcfg.Interval <= 0 {
				hcfg.Interval = own.Interval
			}
			if hcfg.Timeout <= 0 {
				hcfg.Timeout = own.Timeout
			}
		}
		e.monitor = health.NewMonitor(key, check, hcfg, health.Callbacks{
			OnDegraded: func(instanceID string, status resource.HealthStatus) {
				e.currentPool().SetImpact(instanceID, status.Impact)
			},
			OnQuarantine: func(instanceID string, status resource.HealthStatus) {
				e.currentPool().Discard(instanceID)
				e.keeper.Enter(instanceID, status.Reason)
				m.cascadeDegraded(key, status.Reason)
			},
			OnReplace: func(instanceID string, status resource.HealthStatus) {
				e.currentPool().Discard(instanceID)
				m.cascadeDegraded(key, status.Reason)
				go m.replaceInstance(e)
			},
		}, mopts...)
	}

	kopts := []quarantine.Option{quarantine.WithNotifier(notify)}
	if m.store != nil {
		kopts = append(kopts, quarantine.WithStore(m.store))
	}
	e.keeper = quarantine.NewKeeper(key, reg.Quarantine, m.recoverFunc(e), kopts...)

	if reg.Autoscale != nil {
		// policy already validated above; New cannot fail here
		scaler, err := autoscale.New(key, *reg.Autoscale, e, autoscale.WithNotifier(notify))
		if err != nil {
			_ = p.Shutdown(context.Background())
			e.keeper.Stop()
			m.graph.Remove(key)
			return fmt.Errorf("resource %s: %w", key, err)
		}
		e.scaler = scaler
	}

	m.entries[key] = e
	m.broker.Publish(events.New(events.EventResourceRegistered, key))
	m.logger.Info().
		Str("resource_id", key).
		Strs("dependencies", reg.Resource.Dependencies()).
		Msg("resource registered")
	return nil
}

// recoverFunc builds the quarantine recovery attempt for one resource:
// create a fresh instance, verify its health, hand it to the pool
func (m *Manager) recoverFunc(e *entry) quarantine.RecoverFunc {
	return func(ctx context.Context) error {
		rctx := resource.NewContext(ctx, e.rscope).WithCredentials(m.creds)
		value, err := e.res.Create(rctx, e.rcfg)
		if err != nil {
			return err
		}

		if e.check != nil {
			if status := e.check(ctx, value); status.State == resource.HealthUnhealthy || status.State == resource.HealthUnknown {
				_ = e.res.Cleanup(ctx, value)
				return fmt.Errorf("fresh instance failed health check: %s", status.Reason)
			}
		}

		id, err := e.currentPool().AddInstance(value)
		if err != nil {
			_ = e.res.Cleanup(ctx, value)
			if errors.Is(err, pool.ErrPoolFull) || errors.Is(err, pool.ErrPoolClosed) {
				// capacity already restored without us; quarantine is over
				return nil
			}
			return err
		}
		if e.monitor != nil {
			e.monitor.Watch(id, value)
		}
		return nil
	}
}

// replaceInstance creates an immediate replacement for an
// unrecoverable instance, outside the quarantine schedule
func (m *Manager) replaceInstance(e *entry) {
	rctx := resource.NewContext(context.Background(), e.rscope).WithCredentials(m.creds)
	value, err := e.res.Create(rctx, e.rcfg)
	if err != nil {
		m.logger.Warn().Str("resource_id", e.key).Err(err).Msg("replacement create failed")
		return
	}
	id, err := e.currentPool().AddInstance(value)
	if err != nil {
		_ = e.res.Cleanup(context.Background(), value)
		return
	}
	if e.monitor != nil {
		e.monitor.Watch(id, value)
	}
	m.clearCascade(e.key)
}

// route reacts to events emitted by one entry's companions
func (m *Manager) route(e *entry, ev *events.Event) {
	switch ev.Type {
	case events.EventInstanceCleaned, events.EventInstanceDetached:
		if e.monitor != nil && ev.InstanceID != "" {
			e.monitor.Unwatch(ev.InstanceID)
		}
	case events.EventQuarantineRecovered:
		m.clearCascade(e.key)
	}
}

// cascadeDegraded marks every direct dependent of a failed resource as
// degraded. Dependents see reduced trust without being quarantined
// themselves.
func (m *Manager) cascadeDegraded(failed, reason string) {
	for _, dep := range m.graph.Dependents(failed) {
		de := m.entry(dep)
		if de == nil {
			continue
		}
		msg := fmt.Sprintf("dependency %s unhealthy: %s", failed, reason)
		de.markDegraded(failed, msg)
		m.broker.Publish(events.New(events.EventHealthTransition, dep).
			WithMessage(msg).
			WithMeta("dependency", failed))
		m.logger.Warn().
			Str("resource_id", dep).
			Str("dependency", failed).
			Msg("resource degraded by dependency failure")
	}
}

// clearCascade lifts the degraded mark from every dependent after a
// dependency recovers
func (m *Manager) clearCascade(recovered string) {
	for _, dep := range m.graph.Dependents(recovered) {
		if de := m.entry(dep); de != nil {
			de.clearDegraded(recovered)
		}
	}
}

// Initialize warms every pool in dependency order and starts the
// scalers. Dependencies come up before their dependents.
func (m *Manager) Initialize(ctx context.Context) error {
	order, err := m.initOrder()
	if err != nil {
		return err
	}

	for _, key := range order {
		e := m.entry(key)
		if e == nil {
			// edge to a resource registered elsewhere; nothing to warm
			continue
		}
		rctx := resource.NewContext(ctx, e.rscope).WithCredentials(m.creds)
		if err := e.currentPool().WarmUp(rctx); err != nil {
			return fmt.Errorf("warm up %s: %w", key, err)
		}
		if e.scaler != nil {
			e.scaler.Start()
		}
	}

	m.logger.Info().Strs("order", order).Msg("manager initialized")
	return nil
}

// Acquire hands out an instance of the keyed resource. The request
// scope is checked against the registered scope first, then Before
// hooks may veto; only then is pool capacity consumed.
func (m *Manager) Acquire(ctx context.Context, key string, req resource.Context) (*Handle, error) {
	m.mu.RLock()
	if m.shutdown {
		m.mu.RUnlock()
		return nil, ErrShutdown
	}
	e, ok := m.entries[key]
	strategy := m.strategy
	m.mu.RUnlock()

	if !ok {
		return nil, &NotRegisteredError{Key: key}
	}

	requested := req.Scope
	if requested.Kind == "" {
		requested = scope.Global()
	}
	if !strategy.Allows(e.rscope, requested) {
		err := &scope.DeniedError{Registered: e.rscope, Requested: requested, Strategy: strategy}
		metrics.AcquiresTotal.WithLabelValues(key, "denied").Inc()
		m.broker.Publish(events.New(events.EventAcquireDenied, key).WithError(err))
		return nil, err
	}

	ev := events.New(events.EventInstanceAcquired, key).
		WithMeta("scope", requested.String())
	if err := m.hooks.RunBefore(ev); err != nil {
		metrics.AcquiresTotal.WithLabelValues(key, "vetoed").Inc()
		m.broker.Publish(events.New(events.EventAcquireDenied, key).WithError(err))
		return nil, err
	}

	rctx := req
	rctx.Context = ctx
	rctx.Scope = requested
	if rctx.Credentials == nil {
		rctx.Credentials = m.creds
	}

	g, err := e.currentPool().Acquire(rctx)
	if err != nil {
		m.hooks.RunAfter(ev, err)
		return nil, err
	}

	ev.WithInstance(g.Value().ID)
	m.hooks.RunAfter(ev, nil)
	return &Handle{resourceID: key, guard: g}, nil
}

// ReloadPool hot-swaps the keyed resource's pool with one built from a
// new configuration. New acquisitions go to the replacement
// immediately; the old pool drains in the background and in-flight
// handles release into it harmlessly.
func (m *Manager) ReloadPool(key string, cfg pool.Config) error {
	m.mu.RLock()
	if m.shutdown {
		m.mu.RUnlock()
		return ErrShutdown
	}
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return &NotRegisteredError{Key: key}
	}

	notify := func(ev *events.Event) {
		m.broker.Publish(ev)
		m.route(e, ev)
	}
	replacement, err := pool.New(e.res, e.rcfg, cfg,
		pool.WithNotifier(notify),
		pool.WithOnCreated(func(inst *pool.Instance) {
			if e.monitor != nil {
				e.monitor.Watch(inst.ID, inst.Value)
			}
		}),
	)
	if err != nil {
		return err
	}

	old := e.swapPool(replacement)
	m.broker.Publish(events.New(events.EventPoolReloaded, key))
	m.logger.Info().Str("resource_id", key).Msg("pool reloaded")

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), reloadDrainTimeout)
		defer cancel()
		if err := old.Drain(ctx); err != nil {
			m.logger.Warn().Str("resource_id", key).Err(err).Msg("old pool drain timed out, forcing shutdown")
		}
		if err := old.Shutdown(context.Background()); err != nil {
			m.logger.Error().Str("resource_id", key).Err(err).Msg("old pool shutdown failed")
		}
	}()
	return nil
}

// ForceRelease lifts a quarantine entry by hand
func (m *Manager) ForceRelease(key, instanceID string) bool {
	e := m.entry(key)
	if e == nil {
		return false
	}
	return e.keeper.ForceRelease(instanceID)
}

// Subscribe returns an independent event stream
func (m *Manager) Subscribe() *events.Subscription {
	return m.broker.Subscribe()
}

// RegisterHook adds a synchronous extension hook
func (m *Manager) RegisterHook(h hooks.Hook) {
	m.hooks.Register(h)
}

// Keys returns every registered resource id, in dependency order when
// possible
func (m *Manager) Keys() []string {
	order, err := m.initOrder()
	if err != nil {
		m.mu.RLock()
		defer m.mu.RUnlock()
		keys := make([]string, 0, len(m.entries))
		for key := range m.entries {
			keys = append(keys, key)
		}
		return keys
	}
	var keys []string
	for _, key := range order {
		if m.entry(key) != nil {
			keys = append(keys, key)
		}
	}
	return keys
}

// ResourceStatus is the operator-facing view of one resource
type ResourceStatus struct {
	Key             string
	Stats           pool.Stats
	Degraded        bool
	DegradedReasons []string
	Quarantine      []quarantine.Entry
	Watching        []string
}

// Status reports the live state of one resource
func (m *Manager) Status(key string) (*ResourceStatus, error) {
	e := m.entry(key)
	if e == nil {
		return nil, &NotRegisteredError{Key: key}
	}

	reasons := e.degradedReasons()
	status := &ResourceStatus{
		Key:             key,
		Stats:           e.currentPool().Stats(),
		Degraded:        len(reasons) > 0,
		DegradedReasons: reasons,
		Quarantine:      e.keeper.Entries(),
	}
	if e.monitor != nil {
		status.Watching = e.monitor.Watching()
	}
	return status, nil
}

// Shutdown runs the three-phase stop: drain pools in reverse dependency
// order, force-reclaim and clean up whatever remains, then terminate
// every background loop. Correctness over patience: a drain timeout
// never skips cleanup.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.shutdown {
		m.mu.Unlock()
		return nil
	}
	m.shutdown = true
	order, orderErr := m.graph.ShutdownOrder()
	snapshot := make([]*entry, 0, len(m.entries))
	byKey := make(map[string]*entry, len(m.entries))
	for key, e := range m.entries {
		snapshot = append(snapshot, e)
		byKey[key] = e
	}
	m.mu.Unlock()

	if orderErr != nil {
		// cannot happen while registration rejects cycles; fall back to
		// arbitrary order rather than refusing to shut down
		order = nil
		for _, e := range snapshot {
			order = append(order, e.key)
		}
	}

	m.broker.Publish(events.New(events.EventManagerShutdown, ""))
	m.logger.Info().Strs("order", order).Msg("shutting down")

	var errs []error

	// Phase 1: drain, dependents before their dependencies
	for _, key := range order {
		e, ok := byKey[key]
		if !ok {
			continue
		}
		if err := e.currentPool().Drain(ctx); err != nil {
			m.logger.Warn().Str("resource_id", key).Err(err).Msg("drain incomplete, instances will be reclaimed")
			errs = append(errs, err)
		}
	}

	// Phase 2: cleanup, forcibly reclaiming what drain left behind. Runs
	// on its own deadline so an exhausted drain context never skips
	// cleanup.
	cleanupCtx, cancelCleanup := context.WithTimeout(context.Background(), shutdownCleanupTimeout)
	defer cancelCleanup()
	for _, key := range order {
		e, ok := byKey[key]
		if !ok {
			continue
		}
		if err := e.currentPool().Shutdown(cleanupCtx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown %s: %w", key, err))
		}
	}

	// Phase 3: terminate background loops and join them
	for _, e := range snapshot {
		if e.scaler != nil {
			e.scaler.Stop()
		}
		if e.monitor != nil {
			e.monitor.Stop()
		}
		e.keeper.Stop()
	}
	m.broker.Close()

	return errors.Join(errs...)
}

// entry looks up one registration
func (m *Manager) entry(key string) *entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.entries[key]
}

func (m *Manager) initOrder() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.graph.InitOrder()
}
