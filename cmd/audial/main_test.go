package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/cbegin/audial-go"
	"github.com/cbegin/audial-go/internal/beatclock"
	"github.com/cbegin/audial-go/internal/beatevent"
	"github.com/cbegin/audial-go/internal/event"
)

type fakeStream struct{ t float64 }

func (f *fakeStream) StreamTime() float64 { return f.t }

type recorder struct {
	events []audial.Event
	limit  int
}

func (r *recorder) AddEvent(e audial.Event) error {
	if r.limit > 0 && len(r.events) >= r.limit {
		return errors.New("full")
	}
	r.events = append(r.events, e)
	return nil
}

func arpeggio(t *testing.T) []beatevent.BeatEvent {
	t.Helper()
	events, err := beatevent.ParseString(defaultScript, nil)
	if err != nil {
		t.Fatal(err)
	}
	return events
}

func TestSequenceFeedsAhead(t *testing.T) {
	src := &fakeStream{}
	clock := beatclock.New(120, 48000, src)
	seq := newSequence(arpeggio(t), false)
	if seq.length != 4 {
		t.Fatalf("length = %v", seq.length)
	}
	rec := &recorder{}
	clock.Update()
	seq.feed(clock, rec)
	// Beat 0 plus one beat of lookahead: the first note on and off.
	if len(rec.events) != 2 {
		t.Fatalf("queued %d events at beat 0", len(rec.events))
	}
	src.t = 10
	clock.Update()
	seq.feed(clock, rec)
	if len(rec.events) != 8 || !seq.done(clock.BeatTime()) {
		t.Fatalf("queued %d, done %v", len(rec.events), seq.done(clock.BeatTime()))
	}
}

func TestSequenceLoops(t *testing.T) {
	src := &fakeStream{}
	clock := beatclock.New(120, 48000, src)
	seq := newSequence(arpeggio(t), true)
	rec := &recorder{}
	src.t = 2.25 // beat 4.5
	clock.Update()
	seq.feed(clock, rec)
	// First pass, then on/off at beat 4 and the on at beat 5.
	if len(rec.events) != 11 {
		t.Fatalf("queued %d events", len(rec.events))
	}
	if got := rec.events[8].TimeInTicks; got != 4*24000 {
		t.Fatalf("loop restart tick = %d", got)
	}
	if seq.done(100) {
		t.Fatalf("looping sequence never finishes")
	}
}

func TestSequenceRetriesRefused(t *testing.T) {
	clock := beatclock.New(120, 48000, &fakeStream{t: 10})
	clock.Update()
	seq := newSequence(arpeggio(t), false)
	rec := &recorder{limit: 3}
	seq.feed(clock, rec)
	if seq.next != 3 {
		t.Fatalf("next = %d", seq.next)
	}
	rec.limit = 0
	seq.feed(clock, rec)
	if len(rec.events) != 8 {
		t.Fatalf("refused events not retried: %d", len(rec.events))
	}
}

func TestKeyNote(t *testing.T) {
	tests := []struct {
		r      rune
		octave int
		want   int
		ok     bool
	}{
		{'a', 4, 60, true},
		{'w', 4, 61, true},
		{'k', 4, 72, true},
		{'j', 3, 59, true},
		{'q', 4, 0, false},
	}
	for _, tt := range tests {
		got, ok := keyNote(tt.r, tt.octave)
		if got != tt.want || ok != tt.ok {
			t.Fatalf("keyNote(%q, %d) = %d %v", tt.r, tt.octave, got, ok)
		}
	}
}

func TestMeter(t *testing.T) {
	peak, rms := meter([]float32{0.5, -1, 0.5, 0})
	if peak != 1 || math.Abs(rms-math.Sqrt(0.375)) > 1e-12 {
		t.Fatalf("peak %v rms %v", peak, rms)
	}
	if meterBar(2, 4) != "[====]" || meterBar(0, 2) != "[  ]" {
		t.Fatalf("bars %q %q", meterBar(2, 4), meterBar(0, 2))
	}
}

func TestLogTailKeepsLastLines(t *testing.T) {
	tail := &logTail{}
	for i := 0; i < 10; i++ {
		fmt.Fprintf(tail, "line %d\n", i)
	}
	lines := tail.Lines()
	if len(lines) != logTailLines || lines[len(lines)-1] != "line 9" {
		t.Fatalf("lines = %q", lines)
	}
}

func TestMonitorKeysPlayNotes(t *testing.T) {
	ac, err := audial.NewContext(audial.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	if err != nil {
		t.Fatal(err)
	}
	screen := tcell.NewSimulationScreen("UTF-8")
	if err := screen.Init(); err != nil {
		t.Fatal(err)
	}
	m := startMonitor(screen, ac, &logTail{})
	defer m.Close()

	screen.InjectKey(tcell.KeyRune, 'x', tcell.ModNone)
	screen.InjectKey(tcell.KeyRune, 'a', tcell.ModNone)
	rec := &recorder{}
	for i := 0; i < 2; i++ {
		select {
		case k := <-m.Keys():
			m.Play(k, rec)
		case <-time.After(2 * time.Second):
			t.Fatalf("key %d not delivered", i)
		}
	}
	if len(rec.events) != 2 {
		t.Fatalf("events = %+v", rec.events)
	}
	on, off := rec.events[0], rec.events[1]
	if on.Type != event.NoteOn || on.Note.Note != 72 || off.Type != event.NoteOff || off.Note.NoteOnID != on.Note.NoteOnID {
		t.Fatalf("on %+v off %+v", on, off)
	}
	if off.TimeInTicks-on.TimeInTicks != int64(keyNoteSeconds*48000) {
		t.Fatalf("note length %d", off.TimeInTicks-on.TimeInTicks)
	}
	m.Draw(beatclock.New(120, 48000, ac))
	if m.lastNote != "C5" {
		t.Fatalf("last note %q", m.lastNote)
	}
}
