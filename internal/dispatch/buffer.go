// Package dispatch orders queued events for the audio callback.
package dispatch

import (
	"github.com/cbegin/audial-go/internal/event"
	"github.com/cbegin/audial-go/internal/spsc"
)

// DefaultCapacity absorbs a video frame's worth of script events.
const DefaultCapacity = 1024

// Buffer holds pending events sorted by TimeInTicks. Storage is allocated
// once; it is only touched by the audio thread.
type Buffer struct {
	events []event.Event
	start  int
	n      int
}

func NewBuffer(capacity int) *Buffer {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &Buffer{events: make([]event.Event, capacity)}
}

func (b *Buffer) Cap() int { return len(b.events) }
func (b *Buffer) Len() int { return b.n }

// Pending returns the sorted events still buffered. The slice aliases
// internal storage and is valid until the next Drain or Retire.
func (b *Buffer) Pending() []event.Event {
	return b.events[b.start : b.start+b.n]
}

// Drain moves every queued event into the buffer and re-sorts it. Events
// that do not fit are discarded; the count is returned.
func (b *Buffer) Drain(q *spsc.Queue[event.Event]) (dropped int) {
	if b.start+b.n == len(b.events) && b.start > 0 {
		b.compact()
	}
	added := 0
	for e := q.Front(); e != nil; e = q.Front() {
		if b.n == len(b.events) {
			dropped++
			q.Pop()
			continue
		}
		if b.start+b.n == len(b.events) {
			b.compact()
		}
		b.events[b.start+b.n] = *e
		b.n++
		added++
		q.Pop()
	}
	if added > 0 {
		b.sort(b.n - added)
	}
	return dropped
}

// Push adds one event directly, for offline rendering and tests.
func (b *Buffer) Push(e event.Event) bool {
	if b.n == len(b.events) {
		return false
	}
	if b.start+b.n == len(b.events) {
		b.compact()
	}
	b.events[b.start+b.n] = e
	b.n++
	b.sort(b.n - 1)
	return true
}

// Due returns the leading events whose time is before end.
func (b *Buffer) Due(end int64) []event.Event {
	pending := b.Pending()
	i := 0
	for i < len(pending) && pending[i].TimeInTicks < end {
		i++
	}
	return pending[:i]
}

// Retire removes every event scheduled before end.
func (b *Buffer) Retire(end int64) {
	for b.n > 0 && b.events[b.start].TimeInTicks < end {
		b.events[b.start] = event.Event{}
		b.start++
		b.n--
	}
	if b.n == 0 {
		b.start = 0
	}
}

func (b *Buffer) compact() {
	copy(b.events, b.events[b.start:b.start+b.n])
	for i := b.n; i < b.start+b.n && i < len(b.events); i++ {
		b.events[i] = event.Event{}
	}
	b.start = 0
}

// sort is a stable insertion sort of the tail starting at from into the
// already ordered prefix. Equal times keep producer order.
func (b *Buffer) sort(from int) {
	s := b.Pending()
	for i := max(from, 1); i < len(s); i++ {
		e := s[i]
		j := i
		for j > 0 && s[j-1].TimeInTicks > e.TimeInTicks {
			s[j] = s[j-1]
			j--
		}
		s[j] = e
	}
}
