package health

import (
	"context"
	"sync"
	"time"

	"github.com/cuemby/burrow/pkg/events"
	"github.com/cuemby/burrow/pkg/log"
	"github.com/cuemby/burrow/pkg/metrics"
	"github.com/cuemby/burrow/pkg/resource"
	"github.com/rs/zerolog"
)

// DefaultQuarantineThreshold is how many consecutive Unhealthy results
// pull an instance out of rotation
const DefaultQuarantineThreshold = 3

// CheckFunc is the unified check signature the monitor drives
type CheckFunc func(ctx context.Context, instance any) resource.HealthStatus

// Callbacks route monitor verdicts to the manager. All fields are
// optional; nil callbacks are skipped.
type Callbacks struct {
	// OnTransition fires whenever an instance's health state changes
	OnTransition func(instanceID string, from, to resource.HealthState, status resource.HealthStatus)

	// OnDegraded fires on every Degraded result so the pool can update
	// impact scores
	OnDegraded func(instanceID string, status resource.HealthStatus)

	// OnQuarantine fires once when the consecutive-failure threshold is
	// reached for a recoverable failure. Monitoring for the instance
	// stops first: no further check is ever issued against it.
	OnQuarantine func(instanceID string, status resource.HealthStatus)

	// OnReplace fires once for an unrecoverable failure; the instance
	// should be cleaned up and replaced immediately
	OnReplace func(instanceID string, status resource.HealthStatus)
}

// Monitor runs one background check loop per watched instance. Each
// loop holds an independently derived child context, so stopping one
// instance's monitoring never affects the others.
//
// Check precedence: a configured pipeline always wins; the resource's
// own HealthCheck is only used when no pipeline is registered.
type Monitor struct {
	resourceID string
	check      CheckFunc
	cfg        resource.HealthCheckConfig
	threshold  int
	callbacks  Callbacks
	notify     func(*events.Event)
	logger     zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	watches map[string]*watch
	wg      sync.WaitGroup
	closed  bool
}

type watch struct {
	cancel context.CancelFunc
	status *Status
}

// MonitorOption customizes monitor construction
type MonitorOption func(*Monitor)

// WithThreshold overrides the consecutive-failure quarantine threshold
func WithThreshold(n int) MonitorOption {
	return func(m *Monitor) {
		if n > 0 {
			m.threshold = n
		}
	}
}

// WithNotifier routes health events to a publisher
func WithNotifier(n func(*events.Event)) MonitorOption {
	return func(m *Monitor) { m.notify = n }
}

// NewMonitor builds a monitor for one resource's instances
func NewMonitor(resourceID string, check CheckFunc, cfg resource.HealthCheckConfig, cb Callbacks, opts ...MonitorOption) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = resource.DefaultHealthCheckConfig().Interval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = resource.DefaultHealthCheckConfig().Timeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Monitor{
		resourceID: resourceID,
		check:      check,
		cfg:        cfg,
		threshold:  DefaultQuarantineThreshold,
		callbacks:  cb,
		logger:     log.WithResource("health", resourceID),
		ctx:        ctx,
		cancel:     cancel,
		watches:    make(map[string]*watch),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ResolveChecker picks the check function for a resource: pipeline
// first, then DetailedHealthCheckable, then HealthCheckable. Returns
// false when the resource is not health-checkable at all.
func ResolveChecker(res resource.Resource, pipeline *Pipeline) (CheckFunc, bool) {
	if pipeline != nil && pipeline.Len() > 0 {
		return pipeline.Run, true
	}
	if d, ok := res.(resource.DetailedHealthCheckable); ok {
		return func(ctx context.Context, instance any) resource.HealthStatus {
			status, err := d.DetailedHealthCheck(resource.Context{Context: ctx}, instance)
			if err != nil {
				return resource.Unhealthy(err.Error(), true)
			}
			return status
		}, true
	}
	if h, ok := res.(resource.HealthCheckable); ok {
		return func(ctx context.Context, instance any) resource.HealthStatus {
			status, err := h.HealthCheck(ctx, instance)
			if err != nil {
				return resource.Unhealthy(err.Error(), true)
			}
			return status
		}, true
	}
	return nil, false
}

// Watch starts a background check loop for one instance
func (m *Monitor) Watch(instanceID string, instance any) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	if _, exists := m.watches[instanceID]; exists {
		return
	}

	ctx, cancel := context.WithCancel(m.ctx)
	w := &watch{cancel: cancel, status: NewStatus()}
	m.watches[instanceID] = w

	m.wg.Add(1)
	go m.loop(ctx, instanceID, instance, w)
}

// Unwatch stops monitoring one instance without affecting the others
func (m *Monitor) Unwatch(instanceID string) {
	m.mu.Lock()
	w, ok := m.watches[instanceID]
	if ok {
		delete(m.watches, instanceID)
	}
	m.mu.Unlock()
	if ok {
		w.cancel()
	}
}

// Watching returns the ids currently under watch
func (m *Monitor) Watching() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.watches))
	for id := range m.watches {
		ids = append(ids, id)
	}
	return ids
}

// Status returns the rolling status for an instance, or nil if not
// watched
func (m *Monitor) Status(instanceID string) *Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	if w, ok := m.watches[instanceID]; ok {
		return w.status
	}
	return nil
}

// Stop cancels every watch and waits for the loops to exit
func (m *Monitor) Stop() {
	m.mu.Lock()
	m.closed = true
	for id, w := range m.watches {
		w.cancel()
		delete(m.watches, id)
	}
	m.mu.Unlock()

	m.cancel()
	m.wg.Wait()
}

func (m *Monitor) loop(ctx context.Context, instanceID string, instance any, w *watch) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	// initial check without waiting a full interval
	if done := m.runCheck(ctx, instanceID, instance, w); done {
		return
	}

	for {
		select {
		case <-ticker.C:
			if done := m.runCheck(ctx, instanceID, instance, w); done {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// runCheck performs a single check. Returns true when the watch should
// stop (quarantined, replaced, or cancelled).
func (m *Monitor) runCheck(ctx context.Context, instanceID string, instance any, w *watch) bool {
	if ctx.Err() != nil {
		return true
	}

	checkCtx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	start := time.Now()
	status := m.check(checkCtx, instance)
	cancel()

	// a timed-out check is Unknown, never Healthy
	if checkCtx.Err() != nil && ctx.Err() == nil && status.State == resource.HealthHealthy {
		status = resource.Unknown("health check timed out")
	}
	status.Latency = time.Since(start)

	metrics.HealthChecksTotal.WithLabelValues(m.resourceID, string(status.State)).Inc()

	prev := w.status.Last.State
	transitioned := w.status.Update(status)

	if transitioned {
		m.logger.Info().
			Str("instance_id", instanceID).
			Str("from", string(prev)).
			Str("to", string(status.State)).
			Str("reason", status.Reason).
			Msg("health transition")
		m.publish(events.New(events.EventHealthTransition, m.resourceID).
			WithInstance(instanceID).
			WithMessage(status.String()).
			WithMeta("from", string(prev)).
			WithMeta("to", string(status.State)))
		if m.callbacks.OnTransition != nil {
			m.callbacks.OnTransition(instanceID, prev, status.State, status)
		}
	}

	switch status.State {
	case resource.HealthDegraded:
		if m.callbacks.OnDegraded != nil {
			m.callbacks.OnDegraded(instanceID, status)
		}
	case resource.HealthUnhealthy:
		if !status.Recoverable {
			m.stopWatch(instanceID)
			if m.callbacks.OnReplace != nil {
				m.callbacks.OnReplace(instanceID, status)
			}
			return true
		}
		if w.status.ConsecutiveFailures >= m.threshold {
			// stop first so no further check is issued against the
			// quarantined instance
			m.stopWatch(instanceID)
			if m.callbacks.OnQuarantine != nil {
				m.callbacks.OnQuarantine(instanceID, status)
			}
			return true
		}
	}
	return false
}

func (m *Monitor) stopWatch(instanceID string) {
	m.mu.Lock()
	if w, ok := m.watches[instanceID]; ok {
		w.cancel()
		delete(m.watches, instanceID)
	}
	m.mu.Unlock()
}

func (m *Monitor) publish(ev *events.Event) {
	if m.notify != nil {
		m.notify(ev)
	}
}
