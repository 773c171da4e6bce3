package dispatch

import (
	"testing"

	"github.com/cbegin/audial-go/internal/event"
	"github.com/cbegin/audial-go/internal/spsc"
)

func TestDrainSortsStably(t *testing.T) {
	q := spsc.New[event.Event](event.QueueCapacity)
	// Pushed out of tick order; the two at tick 100 must keep their order.
	q.Push(event.NewNoteOff(0, 300, 60, 0))
	q.Push(event.NewNoteOn(0, 100, 60, 1, 1))
	q.Push(event.NewNoteOff(0, 100, 60, 1))
	q.Push(event.NewNoteOn(0, 0, 64, 1, 0))

	b := NewBuffer(16)
	if dropped := b.Drain(q); dropped != 0 {
		t.Fatalf("dropped = %d", dropped)
	}
	got := b.Pending()
	wantTicks := []int64{0, 100, 100, 300}
	for i, w := range wantTicks {
		if got[i].TimeInTicks != w {
			t.Fatalf("event %d tick = %d, want %d", i, got[i].TimeInTicks, w)
		}
	}
	if got[1].Type != event.NoteOn || got[2].Type != event.NoteOff {
		t.Fatalf("equal-time events reordered: %v %v", got[1].Type, got[2].Type)
	}
}

func TestDueAndRetireKeepFutureEvents(t *testing.T) {
	b := NewBuffer(8)
	for _, tick := range []int64{10, 600, 20, 1500} {
		b.Push(event.NewSetGain(tick, 1))
	}
	due := b.Due(512)
	if len(due) != 2 || due[0].TimeInTicks != 10 || due[1].TimeInTicks != 20 {
		t.Fatalf("due = %+v", due)
	}
	b.Retire(512)
	if b.Len() != 2 {
		t.Fatalf("len after retire = %d, want 2", b.Len())
	}
	if due := b.Due(1024); len(due) != 1 || due[0].TimeInTicks != 600 {
		t.Fatalf("second window due = %+v", due)
	}
	b.Retire(1024)
	b.Retire(1536)
	if b.Len() != 0 {
		t.Fatalf("buffer should be empty, len = %d", b.Len())
	}
}

func TestPastEventsAreDue(t *testing.T) {
	b := NewBuffer(4)
	b.Push(event.NewSetGain(-50, 1))
	if len(b.Due(0)) != 0 {
		t.Fatalf("window end is exclusive")
	}
	if len(b.Due(1)) != 1 {
		t.Fatalf("late event should be due")
	}
}

func TestDrainDropsOverflow(t *testing.T) {
	const capacity = 10
	q := spsc.New[event.Event](event.QueueCapacity)
	for i := 0; i < 25; i++ {
		q.Push(event.NewNoteOn(0, int64(25-i), 60, 1, 0))
	}
	b := NewBuffer(capacity)
	if dropped := b.Drain(q); dropped != 15 {
		t.Fatalf("dropped = %d, want 15", dropped)
	}
	if q.Len() != 0 {
		t.Fatalf("queue should be drained")
	}
	if b.Len() != capacity {
		t.Fatalf("len = %d", b.Len())
	}
	// First ten pushed had ticks 25..16.
	p := b.Pending()
	for i := range p {
		if p[i].TimeInTicks != int64(16+i) {
			t.Fatalf("pending[%d] tick = %d", i, p[i].TimeInTicks)
		}
	}
}

func TestBufferReusesStorageAcrossCallbacks(t *testing.T) {
	b := NewBuffer(4)
	q := spsc.New[event.Event](event.QueueCapacity)
	tick := int64(0)
	for round := 0; round < 20; round++ {
		q.Push(event.NewSetGain(tick+1, 1))
		q.Push(event.NewSetGain(tick+2, 1))
		q.Push(event.NewSetGain(tick+700, 1))
		if d := b.Drain(q); d != 0 {
			t.Fatalf("round %d dropped %d", round, d)
		}
		tick += 512
		b.Retire(tick)
	}
	if b.Len() > b.Cap() {
		t.Fatalf("len %d exceeds cap", b.Len())
	}
}
