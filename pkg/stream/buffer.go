package stream

import "sync"

// DefaultBufferSize is how many events a job log keeps.
const DefaultBufferSize = 200

// Buffer is the capped, append-only log of one job. The oldest events are
// evicted first. Once a terminal event is appended nothing else is accepted.
type Buffer struct {
	mu       sync.RWMutex
	events   []Event
	capacity int
	terminal bool
}

// NewBuffer creates a buffer holding at most capacity events.
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultBufferSize
	}
	return &Buffer{
		events:   make([]Event, 0, capacity),
		capacity: capacity,
	}
}

// Append adds ev and reports whether it was kept.
func (b *Buffer) Append(ev Event) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.terminal {
		return false
	}
	if len(b.events) == b.capacity {
		copy(b.events, b.events[1:])
		b.events[len(b.events)-1] = ev
	} else {
		b.events = append(b.events, ev)
	}
	if ev.Terminal() {
		b.terminal = true
	}
	return true
}

// Events returns a copy of the retained events, oldest first.
func (b *Buffer) Events() []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Event, len(b.events))
	copy(out, b.events)
	return out
}

// Last returns the newest event.
func (b *Buffer) Last() (Event, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.events) == 0 {
		return Event{}, false
	}
	return b.events[len(b.events)-1], true
}

func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.events)
}

func (b *Buffer) Cap() int {
	return b.capacity
}

// Terminal reports whether a completed or failed event has been seen.
func (b *Buffer) Terminal() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.terminal
}
