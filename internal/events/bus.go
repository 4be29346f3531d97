package events

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

const defaultBufferSize = 256

// BusConfig holds bus configuration
type BusConfig struct {
	Logger     *slog.Logger
	Origin     string
	BufferSize int
	// Relay receives every event published locally, e.g. a RabbitMQ exchange
	Relay Publisher
}

// Bus is an in-process publish/subscribe channel
type Bus struct {
	logger     *slog.Logger
	origin     string
	bufferSize int
	relay      Publisher

	mu     sync.RWMutex
	nextID int
	subs   map[int]*Subscription
}

// NewBus creates a new Bus instance
func NewBus(cfg BusConfig) *Bus {
	origin := cfg.Origin
	if origin == "" {
		origin = uuid.NewString()
	}
	size := cfg.BufferSize
	if size <= 0 {
		size = defaultBufferSize
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		logger:     logger,
		origin:     origin,
		bufferSize: size,
		relay:      cfg.Relay,
		subs:       make(map[int]*Subscription),
	}
}

// Origin identifies the process that owns the bus
func (b *Bus) Origin() string {
	return b.origin
}

// Subscription receives the events matching its types. Delivery never
// waits: events arriving while C is full are dropped for this subscriber.
type Subscription struct {
	C <-chan Event

	bus     *Bus
	id      int
	ch      chan Event
	types   map[Type]struct{}
	once    sync.Once
	mu      sync.Mutex
	closed  bool
	dropped int
}

// Subscribe registers a subscriber; no types means every event
func (b *Bus) Subscribe(types ...Type) *Subscription {
	ch := make(chan Event, b.bufferSize)
	s := &Subscription{
		C:     ch,
		bus:   b,
		ch:    ch,
		types: make(map[Type]struct{}, len(types)),
	}
	for _, t := range types {
		s.types[t] = struct{}{}
	}

	b.mu.Lock()
	b.nextID++
	s.id = b.nextID
	b.subs[s.id] = s
	b.mu.Unlock()

	return s
}

// Close detaches the subscription and closes C
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.bus.mu.Lock()
		delete(s.bus.subs, s.id)
		s.bus.mu.Unlock()

		s.mu.Lock()
		s.closed = true
		close(s.ch)
		s.mu.Unlock()
	})
}

func (s *Subscription) matches(t Type) bool {
	if len(s.types) == 0 {
		return true
	}
	_, ok := s.types[t]
	return ok
}

// Dropped reports how many events were discarded because C was full
func (s *Subscription) Dropped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// send reports false when the buffer was full and e was dropped
func (s *Subscription) send(e Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return true
	}
	select {
	case s.ch <- e:
		return true
	default:
		s.dropped++
		return false
	}
}

// Publish delivers e to local subscribers and forwards it to the relay.
// Relay failures are logged, not returned: local delivery already happened.
func (b *Bus) Publish(ctx context.Context, e Event) error {
	if e.Origin == "" {
		e.Origin = b.origin
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}

	if err := b.Inject(ctx, e); err != nil {
		return err
	}

	if b.relay != nil && e.Origin == b.origin {
		if err := b.relay.Publish(ctx, e); err != nil {
			b.logger.Warn("Failed to relay event",
				slog.String("event_id", e.ID),
				slog.String("type", string(e.Type)),
				slog.String("error", err.Error()),
			)
		}
	}
	return nil
}

// Inject delivers e to local subscribers only. It never blocks on a slow
// subscriber, so it is safe to call while holding locks.
func (b *Bus) Inject(_ context.Context, e Event) error {
	b.mu.RLock()
	targets := make([]*Subscription, 0, len(b.subs))
	for _, s := range b.subs {
		if s.matches(e.Type) {
			targets = append(targets, s)
		}
	}
	b.mu.RUnlock()

	for _, s := range targets {
		if !s.send(e) {
			b.logger.Warn("Subscriber too slow, event dropped",
				slog.Int("subscription", s.id),
				slog.String("event_id", e.ID),
				slog.String("type", string(e.Type)),
				slog.Int("dropped", s.Dropped()),
			)
		}
	}

	b.logger.Debug("Event published",
		slog.String("event_id", e.ID),
		slog.String("type", string(e.Type)),
		slog.Int("subscribers", len(targets)),
	)
	return nil
}
