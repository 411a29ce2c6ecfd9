package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Subscription is one streaming consumer's view of a portfolio's events.
// Events arrive on a bounded channel; when the consumer falls behind the
// oldest buffered event is dropped and the stale flag raised, so the
// publisher never blocks on a slow stream.
type Subscription struct {
	id          uint64
	portfolioID string
	types       map[EventType]bool // nil means all types
	ch          chan Event
	stale       atomic.Bool
	closeOnce   sync.Once
	bus         *Bus
}

// Events returns the subscriber's event channel. It is closed on Close.
func (s *Subscription) Events() <-chan Event {
	return s.ch
}

// ConsumeStale reports whether events were dropped since the last call and
// clears the flag. The stream writer emits a resync signal when true.
func (s *Subscription) ConsumeStale() bool {
	return s.stale.Swap(false)
}

// Close deregisters the subscription and frees its buffer. Safe to call
// multiple times and concurrently with Publish.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		s.bus.unsubscribe(s)
	})
}

func (s *Subscription) wants(t EventType) bool {
	if s.types == nil {
		return true
	}
	return s.types[t]
}

// Bus is the per-portfolio subscriber registry. Publish happens after commit,
// outside the per-portfolio mutation lock.
type Bus struct {
	mu         sync.RWMutex
	subs       map[string]map[uint64]*Subscription // portfolio id -> subscriptions
	nextID     uint64
	bufferSize int
	log        zerolog.Logger
}

// NewBus creates a new event bus with the given per-subscriber buffer size.
func NewBus(bufferSize int, log zerolog.Logger) *Bus {
	if bufferSize < 1 {
		bufferSize = 1
	}
	return &Bus{
		subs:       make(map[string]map[uint64]*Subscription),
		bufferSize: bufferSize,
		log:        log.With().Str("component", "event_bus").Logger(),
	}
}

// AllPortfolios subscribes across every portfolio. Used by the global
// price stream.
const AllPortfolios = ""

// Subscribe registers a consumer for one portfolio's events, optionally
// filtered to the given types. The caller must Close the subscription when
// its stream context ends.
func (b *Bus) Subscribe(portfolioID string, types ...EventType) *Subscription {
	sub := &Subscription{
		id:          atomic.AddUint64(&b.nextID, 1),
		portfolioID: portfolioID,
		ch:          make(chan Event, b.bufferSize),
		bus:         b,
	}
	if len(types) > 0 {
		sub.types = make(map[EventType]bool, len(types))
		for _, t := range types {
			sub.types[t] = true
		}
	}

	b.mu.Lock()
	if b.subs[portfolioID] == nil {
		b.subs[portfolioID] = make(map[uint64]*Subscription)
	}
	b.subs[portfolioID][sub.id] = sub
	b.mu.Unlock()

	b.log.Debug().
		Str("portfolio_id", portfolioID).
		Uint64("subscription_id", sub.id).
		Msg("Subscriber registered")

	return sub
}

func (b *Bus) unsubscribe(sub *Subscription) {
	b.mu.Lock()
	if m := b.subs[sub.portfolioID]; m != nil {
		delete(m, sub.id)
		if len(m) == 0 {
			delete(b.subs, sub.portfolioID)
		}
	}
	b.mu.Unlock()
	close(sub.ch)

	b.log.Debug().
		Str("portfolio_id", sub.portfolioID).
		Uint64("subscription_id", sub.id).
		Msg("Subscriber deregistered")
}

// Publish fans an event out to every subscriber of its portfolio.
// Never blocks: a full subscriber buffer loses its oldest event instead.
func (b *Bus) Publish(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	b.mu.RLock()
	targets := make([]*Subscription, 0, len(b.subs[ev.PortfolioID]))
	for _, sub := range b.subs[ev.PortfolioID] {
		if sub.wants(ev.Type) {
			targets = append(targets, sub)
		}
	}
	if ev.PortfolioID != AllPortfolios {
		for _, sub := range b.subs[AllPortfolios] {
			if sub.wants(ev.Type) {
				targets = append(targets, sub)
			}
		}
	}
	b.mu.RUnlock()

	for _, sub := range targets {
		b.deliver(sub, ev)
	}
}

func (b *Bus) deliver(sub *Subscription, ev Event) {
	// Raced Close can leave a send on a closed channel; the registry removal
	// under b.mu happens before close, so re-check membership under the lock.
	b.mu.RLock()
	defer b.mu.RUnlock()
	if m := b.subs[sub.portfolioID]; m == nil || m[sub.id] == nil {
		return
	}

	select {
	case sub.ch <- ev:
		return
	default:
	}

	// Buffer full: drop the oldest buffered event, mark the stream stale.
	select {
	case <-sub.ch:
	default:
	}
	sub.stale.Store(true)

	select {
	case sub.ch <- ev:
	default:
		// Still full after dropping one; the stale flag covers the loss.
	}

	b.log.Warn().
		Str("portfolio_id", sub.portfolioID).
		Uint64("subscription_id", sub.id).
		Str("event_type", string(ev.Type)).
		Msg("Subscriber buffer full, dropped oldest event")
}

// SubscriberCount returns the number of active subscriptions for a portfolio.
func (b *Bus) SubscriberCount(portfolioID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[portfolioID])
}
