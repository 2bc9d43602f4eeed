package router

import (
	"sync"
	"time"
)

// DefaultEventCapacity is the number of fallback events retained.
const DefaultEventCapacity = 100

// FallbackEvent records one descent through the analyzer chain.
type FallbackEvent struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Reason    string    `json:"reason"`
}

// EventLog is a fixed-capacity ring of fallback events. The oldest event is
// evicted when full.
type EventLog struct {
	mu   sync.Mutex
	buf  []FallbackEvent
	next int
	full bool
}

// NewEventLog creates a log holding up to capacity events.
func NewEventLog(capacity int) *EventLog {
	if capacity <= 0 {
		capacity = DefaultEventCapacity
	}
	return &EventLog{buf: make([]FallbackEvent, capacity)}
}

// Add appends e, evicting the oldest event when full.
func (l *EventLog) Add(e FallbackEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buf[l.next] = e
	l.next = (l.next + 1) % len(l.buf)
	if l.next == 0 {
		l.full = true
	}
}

// Events returns a copy of the retained events, oldest first.
func (l *EventLog) Events() []FallbackEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.full {
		return append([]FallbackEvent(nil), l.buf[:l.next]...)
	}
	out := make([]FallbackEvent, 0, len(l.buf))
	out = append(out, l.buf[l.next:]...)
	return append(out, l.buf[:l.next]...)
}

// Len returns the number of retained events.
func (l *EventLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.full {
		return len(l.buf)
	}
	return l.next
}

// CountSince counts retained events at or after t.
func (l *EventLog) CountSince(t time.Time) int {
	n := 0
	for _, e := range l.Events() {
		if !e.Timestamp.Before(t) {
			n++
		}
	}
	return n
}
