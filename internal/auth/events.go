package auth

import (
	"sync"
	"time"

	"callcenter-backend/internal/shared/telemetry"
)

// EventType names an auth state change.
type EventType string

const (
	EventSignedUp  EventType = "signed_up"
	EventSignedIn  EventType = "signed_in"
	EventSignedOut EventType = "signed_out"
)

// Event is delivered to subscribers when auth state changes.
type Event struct {
	Type      EventType
	AccountID string
	SessionID string
	At        time.Time
}

const defaultSubscriberBuffer = 16

// Subscription receives auth events until Close is called.
type Subscription struct {
	Events <-chan Event
	cancel func()
}

// Close stops delivery and closes Events.
func (s Subscription) Close() {
	if s.cancel != nil {
		s.cancel()
	}
}

type eventBus struct {
	mu   sync.RWMutex
	next int
	subs map[int]chan Event
}

func newEventBus() *eventBus {
	return &eventBus{subs: make(map[int]chan Event)}
}

func (b *eventBus) subscribe(buffer int) Subscription {
	if buffer <= 0 {
		buffer = defaultSubscriberBuffer
	}
	ch := make(chan Event, buffer)
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return Subscription{
		Events: ch,
		cancel: func() {
			once.Do(func() {
				b.mu.Lock()
				delete(b.subs, id)
				b.mu.Unlock()
				close(ch)
			})
		},
	}
}

// publish never blocks; a subscriber with a full buffer misses the event.
func (b *eventBus) publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			telemetry.Warn("auth.event.dropped", map[string]any{
				"type":       string(ev.Type),
				"account_id": ev.AccountID,
			})
		}
	}
}
