// ABOUTME: Subscription bus delivering typed change events to consumers
// ABOUTME: Publish never blocks; slow subscribers drop, they don't stall
package events

import (
	"log"
	"sync"

	"github.com/google/uuid"
)

// DefaultBuffer is the per-subscriber channel depth used by Subscribe
// callers that have no opinion.
const DefaultBuffer = 64

// Subscription is one consumer's view of the event stream
type Subscription struct {
	ID string
	C  <-chan Event

	bus *Bus
	ch  chan Event
}

// Cancel detaches the subscription and closes its channel
func (s *Subscription) Cancel() {
	s.bus.unsubscribe(s.ID)
}

// Bus fans events out to subscribers. Publishing happens on the receive
// path, so a full subscriber channel drops the event rather than block
// correlation of in-flight requests.
type Bus struct {
	mu   sync.Mutex
	subs map[string]*Subscription
}

// NewBus creates an empty bus
func NewBus() *Bus {
	return &Bus{subs: make(map[string]*Subscription)}
}

// Subscribe registers a consumer with the given channel depth
func (b *Bus) Subscribe(buffer int) *Subscription {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}

	ch := make(chan Event, buffer)
	sub := &Subscription{
		ID:  uuid.NewString(),
		C:   ch,
		bus: b,
		ch:  ch,
	}

	b.mu.Lock()
	b.subs[sub.ID] = sub
	b.mu.Unlock()

	return sub
}

// Publish delivers one event to every subscriber without blocking
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subs {
		select {
		case sub.ch <- ev:
		default:
			log.Printf("Subscriber %s full, dropping %s event", sub.ID, ev.Kind())
		}
	}
}

// PublishAll delivers a batch of events in order
func (b *Bus) PublishAll(evs []Event) {
	for _, ev := range evs {
		b.Publish(ev)
	}
}

// Close cancels every subscription
func (b *Bus) Close() {
	b.mu.Lock()
	subs := b.subs
	b.subs = make(map[string]*Subscription)
	b.mu.Unlock()

	for _, sub := range subs {
		close(sub.ch)
	}
}

func (b *Bus) unsubscribe(id string) {
	b.mu.Lock()
	sub, ok := b.subs[id]
	delete(b.subs, id)
	b.mu.Unlock()

	if ok {
		close(sub.ch)
	}
}
