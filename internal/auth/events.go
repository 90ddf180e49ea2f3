// AngelaMos | 2026
// events.go

package auth

import (
	"sync"
	"sync/atomic"
	"time"
)

type SessionEventType string

const (
	EventRegistered   SessionEventType = "registered"
	EventSignedIn     SessionEventType = "signed_in"
	EventRefreshed    SessionEventType = "refreshed"
	EventSignedOut    SessionEventType = "signed_out"
	EventSignedOutAll SessionEventType = "signed_out_all"
)

type SessionEvent struct {
	Type   SessionEventType
	UserID string
	Role   string
	At     time.Time
}

// EventBus is a single-consumer stream of session changes. Publish never
// blocks; when the buffer is full the event is dropped and counted.
type EventBus struct {
	ch      chan SessionEvent
	dropped atomic.Int64
	mu      sync.RWMutex
	closed  bool
}

func NewEventBus(buffer int) *EventBus {
	if buffer < 1 {
		buffer = 1
	}
	return &EventBus{ch: make(chan SessionEvent, buffer)}
}

func (b *EventBus) Publish(ev SessionEvent) {
	if b == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		b.dropped.Add(1)
		return
	}

	select {
	case b.ch <- ev:
	default:
		b.dropped.Add(1)
	}
}

func (b *EventBus) Events() <-chan SessionEvent {
	return b.ch
}

func (b *EventBus) Dropped() int64 {
	return b.dropped.Load()
}

// Close ends the stream; the consumer sees the channel close after draining.
func (b *EventBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.closed {
		b.closed = true
		close(b.ch)
	}
}
