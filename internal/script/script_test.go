package script

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	lua "github.com/yuin/gopher-lua"

	"github.com/cbegin/audial-go/internal/beatclock"
	"github.com/cbegin/audial-go/internal/event"
	"github.com/cbegin/audial-go/internal/patch"
	"github.com/cbegin/audial-go/internal/pcm"
)

type fakeStream struct{ t float64 }

func (f *fakeStream) StreamTime() float64 { return f.t }

type recorder struct {
	events []event.Event
	limit  int
}

var errFull = errors.New("full")

func (r *recorder) AddEvent(e event.Event) error {
	if r.limit > 0 && len(r.events) >= r.limit {
		return errFull
	}
	r.events = append(r.events, e)
	return nil
}

func newRunner(t *testing.T, sink Sink) (*Runner, *fakeStream, *beatclock.Clock) {
	t.Helper()
	src := &fakeStream{}
	clock := beatclock.New(120, 48000, src)
	bank := pcm.NewBank()
	bank.Add("kick", []float32{1}, pcm.NoGroup)
	r, err := New(clock, sink, WithSounds(bank), WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(r.Close)
	return r, src, clock
}

func TestScheduleCalls(t *testing.T) {
	rec := &recorder{}
	r, _, _ := newRunner(t, rec)
	err := r.LoadString(`
		note_on(0, "c4", 0.5, 1, 9)
		note_off(0, 60, 2, 9)
		all_off(1, 3)
		play("kick", 1, 0.5, true)
		stop(0, 4)
		param(0, "cutoff", 800, 1, 0.25)
		gain(0.5, 8)
	`)
	if err != nil {
		t.Fatalf("LoadString: %v", err)
	}
	if len(rec.events) != 7 || r.Sent() != 7 {
		t.Fatalf("got %d events", len(rec.events))
	}
	on := rec.events[0]
	if on.Type != event.NoteOn || on.Note.Note != 60 || on.Note.Velocity != 0.5 || on.Note.NoteOnID != 9 || on.TimeInTicks != 24000 {
		t.Fatalf("note_on: %+v", on)
	}
	if off := rec.events[1]; off.Type != event.NoteOff || off.TimeInTicks != 48000 || off.Note.NoteOnID != 9 {
		t.Fatalf("note_off: %+v", off)
	}
	if play := rec.events[3]; play.Type != event.PlayPcm || play.Pcm.Sound != 0 || !play.Pcm.Loop || play.TimeInTicks != 12000 {
		t.Fatalf("play: %+v", play)
	}
	p := rec.events[5]
	if p.Type != event.SynthParam || p.Param.ID != patch.Cutoff || p.Param.Value != 800 || p.Param.RampTicks != 6000 {
		t.Fatalf("param: %+v", p)
	}
	if g := rec.events[6]; g.Type != event.SetGain || g.Gain != 0.5 || g.TimeInTicks != 192000 {
		t.Fatalf("gain: %+v", g)
	}
}

func TestOnBeatAndQuantize(t *testing.T) {
	rec := &recorder{}
	r, src, _ := newRunner(t, rec)
	err := r.LoadString(`
		beats = {}
		frames = 0
		function on_update(b) frames = frames + 1 end
		function on_beat(b)
			table.insert(beats, b)
			note_on(0, "a4", 1, quantize(1) + 0.5)
		end
	`)
	if err != nil {
		t.Fatal(err)
	}
	for _, st := range []float64{0.1, 0.2, 0.6, 0.7} {
		src.t = st
		r.clock.Update()
		if err := r.Update(); err != nil {
			t.Fatalf("Update: %v", err)
		}
	}
	if n := r.L.GetGlobal("frames"); n != lua.LNumber(4) {
		t.Fatalf("on_update calls = %v", n)
	}
	if len(rec.events) != 1 {
		t.Fatalf("on_beat should fire once, got %d events", len(rec.events))
	}
	// beat 1.2: next whole beat is 2, plus half a beat.
	if rec.events[0].TimeInTicks != 60000 || rec.events[0].Note.Note != 69 {
		t.Fatalf("quantized event: %+v", rec.events[0])
	}
}

func TestRefusedEventsReturnFalse(t *testing.T) {
	rec := &recorder{limit: 1}
	r, _, _ := newRunner(t, rec)
	if err := r.LoadString(`a = note_on(0, 60) b = note_on(0, 61)`); err != nil {
		t.Fatal(err)
	}
	if r.L.GetGlobal("a") != lua.LTrue || r.L.GetGlobal("b") != lua.LFalse {
		t.Fatalf("a=%v b=%v", r.L.GetGlobal("a"), r.L.GetGlobal("b"))
	}
	if r.Sent() != 1 || r.Refused() != 1 {
		t.Fatalf("sent %d refused %d", r.Sent(), r.Refused())
	}
}

func TestSequence(t *testing.T) {
	rec := &recorder{}
	r, _, _ := newRunner(t, rec)
	err := r.LoadString(`n = sequence("e:on c:0 t:0 m:60\ne:off c:0 t:1 m:60\ne:play t:0 s:kick", 4)`)
	if err != nil {
		t.Fatal(err)
	}
	if len(rec.events) != 3 || rec.events[0].TimeInTicks != 96000 || rec.events[1].TimeInTicks != 120000 {
		t.Fatalf("events: %+v", rec.events)
	}
	if r.L.GetGlobal("n") != lua.LNumber(3) {
		t.Fatalf("n = %v", r.L.GetGlobal("n"))
	}
}

func TestScriptErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"syntax", `note_on(`},
		{"bad note", `note_on(0, "h9")`},
		{"unknown sound", `play("snare")`},
		{"unknown param", `param(0, "wobble", 1)`},
		{"bad sequence", `sequence("e:on t:0")`},
		{"no os library", `os.exit(1)`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			r, _, _ := newRunner(t, rec)
			if err := r.LoadString(tt.src); err == nil {
				t.Fatalf("expected error")
			}
			if len(rec.events) != 0 {
				t.Fatalf("no events should be sent")
			}
		})
	}
}

func TestCallbackErrorSurfacesFromUpdate(t *testing.T) {
	r, src, _ := newRunner(t, &recorder{})
	if err := r.LoadString(`function on_beat(b) error("boom") end`); err != nil {
		t.Fatal(err)
	}
	src.t = 0.6
	r.clock.Update()
	if err := r.Update(); err == nil {
		t.Fatalf("expected callback error")
	}
}
