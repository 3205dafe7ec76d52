// Package bus is the in-process publish/subscribe channel the orchestration
// core uses to announce job results, proposal queue changes, stage moves and
// notifications. Delivery is fire-and-forget.
package bus

import (
	"sync"
	"time"
)

// Kind identifies what an Event announces.
type Kind string

const (
	KindJobResult        Kind = "job_result"
	KindProposalsChanged Kind = "proposals_changed"
	KindStageMoved       Kind = "stage_moved"
	KindNotification     Kind = "notification"
)

// Severity tags notifications for display.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// DefaultSubscriberBuffer is the channel buffer used when Subscribe is given 0.
const DefaultSubscriberBuffer = 100

// Event is a single announcement. Data must be safe to share between
// subscribers; publishers never mutate it after Publish.
type Event struct {
	Kind      Kind      `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
	Severity  Severity  `json:"severity,omitempty"`
	Title     string    `json:"title,omitempty"`
	Message   string    `json:"message,omitempty"`
	Data      any       `json:"data,omitempty"`
}

// Bus fans events out to subscriber channels. A nil *Bus discards everything.
type Bus struct {
	mu          sync.RWMutex
	subscribers []chan Event
	now         func() time.Time
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{now: time.Now}
}

// Subscribe returns a buffered channel receiving every subsequent event.
func (b *Bus) Subscribe(buffer int) chan Event {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = append(b.subscribers, ch)
	return ch
}

// Unsubscribe removes ch. The channel is NOT closed; the caller owns it.
func (b *Bus) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, sub := range b.subscribers {
		if sub == ch {
			b.subscribers = append(b.subscribers[:i], b.subscribers[i+1:]...)
			return
		}
	}
}

// Publish delivers ev to every subscriber without blocking.
// Subscribers whose buffer is full miss the event.
func (b *Bus) Publish(ev Event) {
	if b == nil {
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = b.now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subscribers {
		select {
		case ch <- ev:
		default:
			// Channel full, skip (non-blocking)
		}
	}
}

// Notify publishes a human-readable, severity-tagged notification.
func (b *Bus) Notify(severity Severity, title, message string, data map[string]any) {
	b.Publish(Event{
		Kind:     KindNotification,
		Severity: severity,
		Title:    title,
		Message:  message,
		Data:     data,
	})
}

// SubscriberCount returns the number of active subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
