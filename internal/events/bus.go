package events

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// subscriberBuffer is the per-subscriber channel depth. Slow consumers
// drop events once the buffer fills; publishers never block.
const subscriberBuffer = 16

// Bus fans events out to subscribers. Subscriptions can filter on a single
// event type; an empty filter receives everything.
type Bus struct {
	subscribers map[chan Event]EventType
	mu          sync.RWMutex
	log         zerolog.Logger
}

// NewBus creates an event bus.
func NewBus(log zerolog.Logger) *Bus {
	return &Bus{
		subscribers: make(map[chan Event]EventType),
		log:         log.With().Str("component", "event_bus").Logger(),
	}
}

// Subscribe registers a subscriber for the given event type. An empty
// filter subscribes to all events. The returned channel is closed by
// Unsubscribe.
func (b *Bus) Subscribe(filter EventType) chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, subscriberBuffer)
	b.subscribers[ch] = filter

	b.log.Debug().
		Str("filter", string(filter)).
		Int("total_subscribers", len(b.subscribers)).
		Msg("New subscriber added")

	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Bus) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subscribers[ch]; !ok {
		return
	}
	delete(b.subscribers, ch)
	close(ch)

	b.log.Debug().
		Int("total_subscribers", len(b.subscribers)).
		Msg("Subscriber removed")
}

// Publish broadcasts an event to all matching subscribers. A zero
// timestamp is stamped with the current time.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	for ch, filter := range b.subscribers {
		if filter != "" && filter != event.Type {
			continue
		}
		select {
		case ch <- event:
		default:
			// Channel buffer full, skip this subscriber
			b.log.Warn().
				Str("event_type", string(event.Type)).
				Msg("Subscriber channel full, event dropped")
		}
	}
}

// SubscriberCount returns the number of active subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
