package events

import (
	"sync"
	"time"

	"github.com/cuemby/burrow/pkg/metrics"
	"github.com/google/uuid"
)

// Type represents the type of event
type Type string

const (
	EventResourceRegistered  Type = "resource.registered"
	EventInstanceCreated     Type = "instance.created"
	EventInstanceAcquired    Type = "instance.acquired"
	EventInstanceReleased    Type = "instance.released"
	EventInstanceDetached    Type = "instance.detached"
	EventInstanceCleaned     Type = "instance.cleaned"
	EventInstanceFailed      Type = "instance.failed"
	EventPoolExhausted       Type = "pool.exhausted"
	EventPoolReloaded        Type = "pool.reloaded"
	EventHealthTransition    Type = "health.transition"
	EventQuarantineEntered   Type = "quarantine.entered"
	EventQuarantineRecovered Type = "quarantine.recovered"
	EventQuarantinePermanent Type = "quarantine.permanent"
	EventQuarantineReleased  Type = "quarantine.released"
	EventScaleUp             Type = "scale.up"
	EventScaleDown           Type = "scale.down"
	EventAcquireDenied       Type = "acquire.denied"
	EventAcquireFailed       Type = "acquire.failed"
	EventManagerShutdown     Type = "manager.shutdown"
)

// Event represents one observable state change in the core
type Event struct {
	ID         string
	Type       Type
	ResourceID string
	InstanceID string
	Timestamp  time.Time
	Message    string
	Error      string
	Metadata   map[string]string
}

// New builds an event with a fresh id and timestamp
func New(t Type, resourceID string) *Event {
	return &Event{
		ID:         uuid.New().String(),
		Type:       t,
		ResourceID: resourceID,
		Timestamp:  time.Now(),
	}
}

// WithInstance attaches an instance id
func (e *Event) WithInstance(instanceID string) *Event {
	e.InstanceID = instanceID
	return e
}

// WithMessage attaches a human-readable message
func (e *Event) WithMessage(msg string) *Event {
	e.Message = msg
	return e
}

// WithError attaches an error string
func (e *Event) WithError(err error) *Event {
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

// WithMeta attaches a metadata entry
func (e *Event) WithMeta(key, value string) *Event {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	e.Metadata[key] = value
	return e
}

// Subscription is one independent event stream. Each subscription has
// its own bounded buffer; when a slow subscriber overflows it, the
// oldest buffered events are dropped rather than blocking producers.
type Subscription struct {
	ch     chan *Event
	broker *Broker

	mu      sync.Mutex
	dropped int64
	closed  bool
}

// C returns the receive channel
func (s *Subscription) C() <-chan *Event {
	return s.ch
}

// Dropped returns how many events this subscriber has lost to overflow
func (s *Subscription) Dropped() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Close detaches the subscription from the broker
func (s *Subscription) Close() {
	s.broker.unsubscribe(s)
}

// Broker manages event subscriptions and fan-out distribution
type Broker struct {
	mu          sync.RWMutex
	subscribers map[*Subscription]bool
	bufferSize  int
	closed      bool
}

// DefaultBufferSize is the per-subscriber buffer used by NewBroker
const DefaultBufferSize = 256

// NewBroker creates a broker with the default per-subscriber buffer
func NewBroker() *Broker {
	return NewBrokerSize(DefaultBufferSize)
}

// NewBrokerSize creates a broker with an explicit per-subscriber buffer
func NewBrokerSize(bufferSize int) *Broker {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Broker{
		subscribers: make(map[*Subscription]bool),
		bufferSize:  bufferSize,
	}
}

// Subscribe creates a new independent subscription
func (b *Broker) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &Subscription{
		ch:     make(chan *Event, b.bufferSize),
		broker: b,
	}
	if b.closed {
		close(sub.ch)
		sub.closed = true
		return sub
	}
	b.subscribers[sub] = true
	return sub
}

func (b *Broker) unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.subscribers[sub] {
		return
	}
	delete(b.subscribers, sub)

	sub.mu.Lock()
	defer sub.mu.Unlock()
	if !sub.closed {
		sub.closed = true
		close(sub.ch)
	}
}

// Publish fans the event out to every subscriber without blocking. A
// full subscriber buffer sheds its oldest event to make room.
func (b *Broker) Publish(event *Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}
	for sub := range b.subscribers {
		sub.mu.Lock()
		if sub.closed {
			sub.mu.Unlock()
			continue
		}
		select {
		case sub.ch <- event:
		default:
			// drop the oldest, then retry once
			select {
			case <-sub.ch:
				sub.dropped++
				metrics.EventsDroppedTotal.Inc()
			default:
			}
			select {
			case sub.ch <- event:
			default:
				sub.dropped++
				metrics.EventsDroppedTotal.Inc()
			}
		}
		sub.mu.Unlock()
	}
}

// SubscriberCount returns the number of active subscribers
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Close shuts the broker down and closes every subscription channel
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for sub := range b.subscribers {
		sub.mu.Lock()
		if !sub.closed {
			sub.closed = true
			close(sub.ch)
		}
		sub.mu.Unlock()
		delete(b.subscribers, sub)
	}
}
