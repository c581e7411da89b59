package quarantine

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cuemby/burrow/pkg/events"
	"github.com/cuemby/burrow/pkg/log"
	"github.com/cuemby/burrow/pkg/metrics"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Config tunes the recovery schedule for one resource's keeper
type Config struct {
	// MaxAttempts bounds recovery attempts before an entry is marked
	// permanently failed
	MaxAttempts int `yaml:"max_attempts"`

	// InitialDelay is the first backoff interval
	InitialDelay time.Duration `yaml:"initial_delay"`

	// Multiplier grows the interval between attempts
	Multiplier float64 `yaml:"multiplier"`

	// MaxDelay caps the interval
	MaxDelay time.Duration `yaml:"max_delay"`
}

// DefaultConfig returns the contract defaults: 1s initial, x2, 60s cap
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  5,
		InitialDelay: time.Second,
		Multiplier:   2.0,
		MaxDelay:     60 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = d.InitialDelay
	}
	if c.Multiplier < 1 {
		c.Multiplier = d.Multiplier
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = d.MaxDelay
	}
	return c
}

// schedule builds the deterministic backoff for one entry. Delays are
// non-decreasing until they hit the cap.
func (c Config) schedule() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.InitialDelay
	b.Multiplier = c.Multiplier
	b.MaxInterval = c.MaxDelay
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// Entry records one quarantined instance and its recovery progress
type Entry struct {
	ID           string    `json:"id"`
	ResourceID   string    `json:"resource_id"`
	InstanceID   string    `json:"instance_id"`
	Reason       string    `json:"reason"`
	Quarantined  time.Time `json:"quarantined"`
	Attempts     int       `json:"attempts"`
	MaxAttempts  int       `json:"max_attempts"`
	NextAttempt  time.Time `json:"next_attempt"`
	Permanent    bool      `json:"permanent"`
	LastError    string    `json:"last_error,omitempty"`
	ForceRelease bool      `json:"force_release,omitempty"`
}

// RecoverFunc attempts one recovery: create a fresh instance (never the
// failed one), verify it, and hand it back to the pool. A nil error
// ends quarantine.
type RecoverFunc func(ctx context.Context) error

// Store is the persistence hook for quarantine state. Entries survive
// restarts so an operator can inspect failures after the fact.
type Store interface {
	SaveQuarantine(e Entry) error
	DeleteQuarantine(resourceID, instanceID string) error
}

// Keeper manages quarantine entries for one resource. Each entry runs
// its own recovery goroutine on an exponential schedule.
type Keeper struct {
	resourceID string
	cfg        Config
	recover    RecoverFunc
	notify     func(*events.Event)
	store      Store
	logger     zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	entries map[string]*entryState
	wg      sync.WaitGroup
	closed  bool
}

type entryState struct {
	entry  *Entry
	cancel context.CancelFunc
}

// Option customizes keeper construction
type Option func(*Keeper)

// WithNotifier routes quarantine events to a publisher
func WithNotifier(n func(*events.Event)) Option {
	return func(k *Keeper) { k.notify = n }
}

// WithStore persists entries across restarts
func WithStore(s Store) Option {
	return func(k *Keeper) { k.store = s }
}

// NewKeeper builds a keeper for one resource
func NewKeeper(resourceID string, cfg Config, recover RecoverFunc, opts ...Option) *Keeper {
	ctx, cancel := context.WithCancel(context.Background())
	k := &Keeper{
		resourceID: resourceID,
		cfg:        cfg.withDefaults(),
		recover:    recover,
		logger:     log.WithResource("quarantine", resourceID),
		ctx:        ctx,
		cancel:     cancel,
		entries:    make(map[string]*entryState),
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// Enter quarantines an instance and starts its recovery loop. Returns
// nil when the instance is already quarantined or the keeper is closed.
func (k *Keeper) Enter(instanceID, reason string) *Entry {
	k.mu.Lock()
	if k.closed {
		k.mu.Unlock()
		return nil
	}
	if _, exists := k.entries[instanceID]; exists {
		k.mu.Unlock()
		return nil
	}

	e := &Entry{
		ID:          uuid.New().String(),
		ResourceID:  k.resourceID,
		InstanceID:  instanceID,
		Reason:      reason,
		Quarantined: time.Now(),
		MaxAttempts: k.cfg.MaxAttempts,
	}
	ctx, cancel := context.WithCancel(k.ctx)
	k.entries[instanceID] = &entryState{entry: e, cancel: cancel}
	k.mu.Unlock()

	metrics.QuarantineEntries.Inc()
	k.persist(e)
	k.publish(events.New(events.EventQuarantineEntered, k.resourceID).
		WithInstance(instanceID).WithMessage(reason))
	k.logger.Warn().Str("instance_id", instanceID).Str("reason", reason).Msg("instance quarantined")

	k.wg.Add(1)
	go k.recoveryLoop(ctx, e)
	return k.snapshot(e)
}

// recoveryLoop retries recovery on the backoff schedule until it
// succeeds, exhausts MaxAttempts, or is cancelled
func (k *Keeper) recoveryLoop(ctx context.Context, e *Entry) {
	defer k.wg.Done()

	sched := k.cfg.schedule()
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		delay := sched.NextBackOff()

		k.mu.Lock()
		e.NextAttempt = time.Now().Add(delay)
		k.mu.Unlock()
		k.persist(e)

		timer.Reset(delay)
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		k.mu.Lock()
		e.Attempts++
		attempts := e.Attempts
		k.mu.Unlock()

		err := k.recover(ctx)
		if err == nil {
			metrics.RecoveryAttemptsTotal.WithLabelValues(k.resourceID, "ok").Inc()
			k.remove(e.InstanceID)
			k.publish(events.New(events.EventQuarantineRecovered, k.resourceID).
				WithInstance(e.InstanceID).
				WithMessage("recovered with a fresh instance"))
			k.logger.Info().Str("instance_id", e.InstanceID).Int("attempts", attempts).Msg("quarantine recovered")
			return
		}
		if ctx.Err() != nil {
			return
		}

		metrics.RecoveryAttemptsTotal.WithLabelValues(k.resourceID, "error").Inc()
		k.mu.Lock()
		e.LastError = err.Error()
		k.mu.Unlock()
		k.logger.Warn().
			Str("instance_id", e.InstanceID).
			Int("attempt", attempts).
			Int("max_attempts", e.MaxAttempts).
			Err(err).
			Msg("recovery attempt failed")

		if attempts >= e.MaxAttempts {
			k.mu.Lock()
			e.Permanent = true
			k.mu.Unlock()
			metrics.QuarantineEntries.Dec()
			k.persist(e)
			k.publish(events.New(events.EventQuarantinePermanent, k.resourceID).
				WithInstance(e.InstanceID).WithError(err))
			k.logger.Error().Str("instance_id", e.InstanceID).Msg("quarantine permanently failed")
			return
		}
	}
}

// ForceRelease is the manual override: it cancels recovery and removes
// the entry, permanent or not. Returns false for an unknown instance.
func (k *Keeper) ForceRelease(instanceID string) bool {
	k.mu.Lock()
	st, ok := k.entries[instanceID]
	if !ok {
		k.mu.Unlock()
		return false
	}
	permanent := st.entry.Permanent
	delete(k.entries, instanceID)
	k.mu.Unlock()

	st.cancel()
	if !permanent {
		metrics.QuarantineEntries.Dec()
	}
	if k.store != nil {
		if err := k.store.DeleteQuarantine(k.resourceID, instanceID); err != nil {
			k.logger.Warn().Err(err).Msg("failed to delete persisted quarantine entry")
		}
	}
	k.publish(events.New(events.EventQuarantineReleased, k.resourceID).
		WithInstance(instanceID).WithMessage("force released by operator"))
	k.logger.Info().Str("instance_id", instanceID).Msg("quarantine force released")
	return true
}

// Entries returns a snapshot of every entry, including permanently
// failed ones, which stay operator-visible until force released
func (k *Keeper) Entries() []Entry {
	k.mu.Lock()
	defer k.mu.Unlock()
	out := make([]Entry, 0, len(k.entries))
	for _, st := range k.entries {
		out = append(out, *st.entry)
	}
	return out
}

// Quarantined reports whether an instance currently has an entry
func (k *Keeper) Quarantined(instanceID string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	_, ok := k.entries[instanceID]
	return ok
}

// Stop cancels every recovery loop and waits for them to exit
func (k *Keeper) Stop() {
	k.mu.Lock()
	k.closed = true
	k.mu.Unlock()

	k.cancel()
	k.wg.Wait()
}

// remove drops a recovered entry from memory and disk
func (k *Keeper) remove(instanceID string) {
	k.mu.Lock()
	_, ok := k.entries[instanceID]
	if ok {
		delete(k.entries, instanceID)
	}
	k.mu.Unlock()

	if !ok {
		return
	}
	metrics.QuarantineEntries.Dec()
	if k.store != nil {
		if err := k.store.DeleteQuarantine(k.resourceID, instanceID); err != nil {
			k.logger.Warn().Err(err).Msg("failed to delete persisted quarantine entry")
		}
	}
}

func (k *Keeper) snapshot(e *Entry) *Entry {
	k.mu.Lock()
	defer k.mu.Unlock()
	cp := *e
	return &cp
}

func (k *Keeper) persist(e *Entry) {
	if k.store == nil {
		return
	}
	k.mu.Lock()
	cp := *e
	k.mu.Unlock()
	if err := k.store.SaveQuarantine(cp); err != nil {
		k.logger.Warn().Err(err).Msg("failed to persist quarantine entry")
	}
}

func (k *Keeper) publish(ev *events.Event) {
	if k.notify != nil {
		k.notify(ev)
	}
}
