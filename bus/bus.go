// Package bus fans block events out to stream subscribers. Delivery is
// lossy: when a subscriber's buffer is full its oldest pending event is
// dropped, so slow dashboard clients see fresh data instead of an
// ever-growing backlog, and the publisher never blocks.
package bus

import (
	"sync"

	"github.com/NethermindEth/rollup-telemetry/metrics"
)

// DefaultBuffer is the per-subscriber event buffer size.
const DefaultBuffer = 100

// BlockEvent is published once for every processed block.
type BlockEvent struct {
	Block *metrics.BlockMetrics `json:"block"`
}

// Bus is a multi-producer, multi-consumer broadcast channel.
type Bus struct {
	mu     sync.Mutex
	buffer int
	subs   map[*Subscription]struct{}
}

// Subscription is one attached consumer. It owns a buffered channel that
// remains open until Unsubscribe.
type Subscription struct {
	bus  *Bus
	ch   chan BlockEvent
	once sync.Once
}

// New creates a bus with the given per-subscriber buffer size; zero or
// negative selects DefaultBuffer.
func New(buffer int) *Bus {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Bus{buffer: buffer, subs: make(map[*Subscription]struct{})}
}

// Subscribe attaches a new consumer.
func (b *Bus) Subscribe() *Subscription {
	sub := &Subscription{bus: b, ch: make(chan BlockEvent, b.buffer)}
	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()
	return sub
}

// Publish delivers the event to every subscriber, dropping the oldest
// pending event of any subscriber whose buffer is full.
func (b *Bus) Publish(ev BlockEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs {
		select {
		case sub.ch <- ev:
		default:
			select {
			case <-sub.ch:
			default:
			}
			select {
			case sub.ch <- ev:
			default:
			}
		}
	}
}

// SubscriberCount returns the number of attached subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// CloseAll disconnects every subscriber. Used on shutdown.
func (b *Bus) CloseAll() {
	b.mu.Lock()
	subs := make([]*Subscription, 0, len(b.subs))
	for sub := range b.subs {
		subs = append(subs, sub)
	}
	b.mu.Unlock()
	for _, sub := range subs {
		sub.Unsubscribe()
	}
}

// Events returns the subscription's receive channel. It is closed by
// Unsubscribe.
func (s *Subscription) Events() <-chan BlockEvent {
	return s.ch
}

// Unsubscribe detaches the subscription and closes its channel. Safe to
// call more than once.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.bus.mu.Lock()
		delete(s.bus.subs, s)
		close(s.ch)
		s.bus.mu.Unlock()
	})
}
