package autoscale

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cuemby/burrow/pkg/events"
	"github.com/cuemby/burrow/pkg/log"
	"github.com/cuemby/burrow/pkg/metrics"
	"github.com/cuemby/burrow/pkg/pool"
	"github.com/rs/zerolog"
)

// DefaultEvalInterval is how often the scaler samples pool utilization
const DefaultEvalInterval = 10 * time.Second

// Policy describes when and how much to scale one pool
type Policy struct {
	// HighWatermark is the utilization above which the pool grows
	HighWatermark float64 `yaml:"high_watermark"`

	// LowWatermark is the utilization below which the pool shrinks
	LowWatermark float64 `yaml:"low_watermark"`

	// ScaleUpStep is how many instances of capacity one grow adds
	ScaleUpStep int `yaml:"scale_up_step"`

	// ScaleDownStep is how many idle instances one shrink removes
	ScaleDownStep int `yaml:"scale_down_step"`

	// ScaleUpWindow is how long utilization must stay above the high
	// watermark before the pool grows. Sustained duration, not
	// instantaneous crossing, so transient spikes do not oscillate the
	// pool.
	ScaleUpWindow time.Duration `yaml:"scale_up_window"`

	// ScaleDownWindow is how long utilization must stay below the low
	// watermark before the pool shrinks
	ScaleDownWindow time.Duration `yaml:"scale_down_window"`

	// MinSize and MaxSize are the absolute bounds the scaler never
	// crosses
	MinSize int `yaml:"min_size"`
	MaxSize int `yaml:"max_size"`
}

// DefaultPolicy returns a conservative starting point
func DefaultPolicy() Policy {
	return Policy{
		HighWatermark:   0.8,
		LowWatermark:    0.2,
		ScaleUpStep:     2,
		ScaleDownStep:   1,
		ScaleUpWindow:   30 * time.Second,
		ScaleDownWindow: 2 * time.Minute,
		MinSize:         1,
		MaxSize:         10,
	}
}

// Validate checks the policy invariants
func (p Policy) Validate() error {
	if p.HighWatermark <= 0 || p.HighWatermark > 1 {
		return fmt.Errorf("high_watermark must be in (0,1], got %v", p.HighWatermark)
	}
	if p.LowWatermark < 0 || p.LowWatermark > 1 {
		return fmt.Errorf("low_watermark must be in [0,1], got %v", p.LowWatermark)
	}
	if p.LowWatermark >= p.HighWatermark {
		return fmt.Errorf("low_watermark %v must be below high_watermark %v", p.LowWatermark, p.HighWatermark)
	}
	if p.ScaleUpStep <= 0 || p.ScaleDownStep <= 0 {
		return fmt.Errorf("scale steps must be positive")
	}
	if p.MinSize < 1 {
		return fmt.Errorf("min_size must be at least 1, got %d", p.MinSize)
	}
	if p.MinSize > p.MaxSize {
		return fmt.Errorf("min_size %d exceeds max_size %d", p.MinSize, p.MaxSize)
	}
	return nil
}

// Target is the slice of the pool the scaler drives
type Target interface {
	Stats() pool.Stats
	Resize(newMax int) int
	EvictIdle(n int) int
}

// Scaler evaluates one pool's utilization on a timer and adjusts its
// capacity between the policy's absolute bounds. Shrinking removes idle
// instances only; in-use instances are never touched.
type Scaler struct {
	resourceID string
	policy     Policy
	target     Target
	interval   time.Duration
	notify     func(*events.Event)
	logger     zerolog.Logger

	cancel context.CancelFunc
	done   chan struct{}

	mu         sync.Mutex
	aboveSince time.Time
	belowSince time.Time
	started    bool
}

// Option customizes scaler construction
type Option func(*Scaler)

// WithInterval overrides the evaluation tick
func WithInterval(d time.Duration) Option {
	return func(s *Scaler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithNotifier routes scale events to a publisher
func WithNotifier(n func(*events.Event)) Option {
	return func(s *Scaler) { s.notify = n }
}

// New builds a scaler for one pool
func New(resourceID string, policy Policy, target Target, opts ...Option) (*Scaler, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	s := &Scaler{
		resourceID: resourceID,
		policy:     policy,
		target:     target,
		interval:   DefaultEvalInterval,
		logger:     log.WithResource("autoscale", resourceID),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Start launches the evaluation loop
func (s *Scaler) Start() {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.loop(ctx)
}

// Stop cancels the loop and waits for it to exit
func (s *Scaler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()
	<-done
}

func (s *Scaler) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.evaluate(time.Now())
		case <-ctx.Done():
			return
		}
	}
}

// evaluate runs one scaling decision against the current stats
func (s *Scaler) evaluate(now time.Time) {
	stats := s.target.Stats()
	if stats.Closed {
		return
	}
	u := stats.Utilization()

	s.mu.Lock()
	defer s.mu.Unlock()

	if u > s.policy.HighWatermark {
		s.belowSince = time.Time{}
		if s.aboveSince.IsZero() {
			s.aboveSince = now
		}
		if now.Sub(s.aboveSince) >= s.policy.ScaleUpWindow {
			s.scaleUp(stats)
			s.aboveSince = time.Time{}
		}
		return
	}

	if u < s.policy.LowWatermark {
		s.aboveSince = time.Time{}
		if s.belowSince.IsZero() {
			s.belowSince = now
		}
		if now.Sub(s.belowSince) >= s.policy.ScaleDownWindow {
			s.scaleDown(stats)
			s.belowSince = time.Time{}
		}
		return
	}

	// inside the band: both streaks reset
	s.aboveSince = time.Time{}
	s.belowSince = time.Time{}
}

func (s *Scaler) scaleUp(stats pool.Stats) {
	if stats.MaxSize >= s.policy.MaxSize {
		return
	}
	want := stats.MaxSize + s.policy.ScaleUpStep
	if want > s.policy.MaxSize {
		want = s.policy.MaxSize
	}
	got := s.target.Resize(want)

	metrics.ScaleEventsTotal.WithLabelValues(s.resourceID, "up").Inc()
	s.publish(events.New(events.EventScaleUp, s.resourceID).
		WithMessage(fmt.Sprintf("capacity %d -> %d (utilization %.2f)", stats.MaxSize, got, stats.Utilization())))
	s.logger.Info().
		Int("from", stats.MaxSize).
		Int("to", got).
		Float64("utilization", stats.Utilization()).
		Msg("scaled up")
}

func (s *Scaler) scaleDown(stats pool.Stats) {
	if stats.MaxSize <= s.policy.MinSize {
		return
	}
	want := stats.MaxSize - s.policy.ScaleDownStep
	if want < s.policy.MinSize {
		want = s.policy.MinSize
	}
	got := s.target.Resize(want)

	// only idle instances are removed; capacity above the new maximum
	// that is in use drains naturally
	evicted := 0
	if excess := stats.MaxSize - got; excess > 0 {
		evicted = s.target.EvictIdle(excess)
	}

	metrics.ScaleEventsTotal.WithLabelValues(s.resourceID, "down").Inc()
	s.publish(events.New(events.EventScaleDown, s.resourceID).
		WithMessage(fmt.Sprintf("capacity %d -> %d, %d idle evicted (utilization %.2f)", stats.MaxSize, got, evicted, stats.Utilization())))
	s.logger.Info().
		Int("from", stats.MaxSize).
		Int("to", got).
		Int("evicted", evicted).
		Msg("scaled down")
}

func (s *Scaler) publish(ev *events.Event) {
	if s.notify != nil {
		s.notify(ev)
	}
}
