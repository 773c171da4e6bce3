// Package script drives the engine from a Lua program. The program defines
// callbacks that the host invokes once per frame and schedules events in
// beats through a small set of globals:
//
//	function on_beat(b)
//	  note_on(0, "c4", 0.8, quantize(1) + 0.5)
//	end
package script

import (
	"errors"
	"fmt"
	"log/slog"

	lua "github.com/yuin/gopher-lua"

	"github.com/cbegin/audial-go/internal/beatclock"
	"github.com/cbegin/audial-go/internal/beatevent"
	"github.com/cbegin/audial-go/internal/event"
	"github.com/cbegin/audial-go/internal/patch"
)

// Sink receives the events a script produces. audial.Context implements it.
type Sink interface {
	AddEvent(e event.Event) error
}

// Runner owns one Lua state. It is not safe for concurrent use; call it from
// the producer goroutine only.
type Runner struct {
	L      *lua.LState
	clock  *beatclock.Clock
	sink   Sink
	sounds beatevent.Sounds
	log    *slog.Logger

	sent    int
	refused int
}

// Option configures a Runner.
type Option func(*Runner)

// WithSounds lets scripts address PCM sounds by name.
func WithSounds(s beatevent.Sounds) Option { return func(r *Runner) { r.sounds = s } }

func WithLogger(l *slog.Logger) Option { return func(r *Runner) { r.log = l } }

// New creates a runner with the base, table, string and math libraries.
func New(clock *beatclock.Clock, sink Sink, opts ...Option) (*Runner, error) {
	r := &Runner{
		L:     lua.NewState(lua.Options{SkipOpenLibs: true}),
		clock: clock,
		sink:  sink,
		log:   slog.Default(),
	}
	for _, o := range opts {
		o(r)
	}
	for _, lib := range []struct {
		name string
		open lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		if err := r.L.CallByParam(lua.P{Fn: r.L.NewFunction(lib.open), NRet: 0, Protect: true}, lua.LString(lib.name)); err != nil {
			r.L.Close()
			return nil, fmt.Errorf("open lua %s: %w", lib.name, err)
		}
	}
	r.register()
	return r, nil
}

func (r *Runner) Close() { r.L.Close() }

// LoadString runs src, which normally just defines callbacks.
func (r *Runner) LoadString(src string) error {
	if err := r.L.DoString(src); err != nil {
		return fmt.Errorf("lua: %w", err)
	}
	return nil
}

func (r *Runner) LoadFile(path string) error {
	if err := r.L.DoFile(path); err != nil {
		return fmt.Errorf("lua %s: %w", path, err)
	}
	return nil
}

// Update calls on_update(beat) every frame and on_beat(n) when the clock
// crossed into beat n. Call it right after the clock's Update.
func (r *Runner) Update() error {
	var errs []error
	beat := r.clock.BeatTime()
	if err := r.call("on_update", lua.LNumber(beat)); err != nil {
		errs = append(errs, err)
	}
	if r.clock.IsNewBeat() {
		if err := r.call("on_beat", lua.LNumber(int64(beat))); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Sent and Refused count events accepted and rejected by the sink.
func (r *Runner) Sent() int    { return r.sent }
func (r *Runner) Refused() int { return r.refused }

func (r *Runner) call(name string, args ...lua.LValue) error {
	fn, ok := r.L.GetGlobal(name).(*lua.LFunction)
	if !ok {
		return nil
	}
	if err := r.L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}, args...); err != nil {
		return fmt.Errorf("lua %s: %w", name, err)
	}
	return nil
}

func (r *Runner) register() {
	fns := map[string]lua.LGFunction{
		"note_on":  r.luaNoteOn,
		"note_off": r.luaNoteOff,
		"all_off":  r.luaAllOff,
		"play":     r.luaPlay,
		"stop":     r.luaStop,
		"param":    r.luaParam,
		"gain":     r.luaGain,
		"quantize": r.luaQuantize,
		"sequence": r.luaSequence,
		"beat":     func(L *lua.LState) int { L.Push(lua.LNumber(r.clock.BeatTime())); return 1 },
		"bpm":      func(L *lua.LState) int { L.Push(lua.LNumber(r.clock.Bpm())); return 1 },
		"set_bpm":  func(L *lua.LState) int { r.clock.SetBpm(float64(L.CheckNumber(1))); return 0 },
		"note":     func(L *lua.LState) int { L.Push(lua.LNumber(r.checkNote(L, 1))); return 1 },
	}
	for name, fn := range fns {
		r.L.SetGlobal(name, r.L.NewFunction(fn))
	}
}

// emit schedules be and pushes whether the sink took it.
func (r *Runner) emit(L *lua.LState, be beatevent.BeatEvent) int {
	if err := r.sink.AddEvent(be.ToTickEvent(r.clock)); err != nil {
		r.refused++
		r.log.Warn("script event refused", "type", be.Event.Type, "beat", be.BeatTime, "err", err)
		L.Push(lua.LFalse)
		return 1
	}
	r.sent++
	L.Push(lua.LTrue)
	return 1
}

// beatArg reads an optional beat time, defaulting to now.
func (r *Runner) beatArg(L *lua.LState, n int) float64 {
	return float64(L.OptNumber(n, lua.LNumber(r.clock.BeatTime())))
}

// checkNote accepts a MIDI number or a note name.
func (r *Runner) checkNote(L *lua.LState, n int) int {
	switch v := L.Get(n).(type) {
	case lua.LNumber:
		return int(v)
	case lua.LString:
		note, err := beatevent.ParseNoteName(string(v))
		if err != nil {
			L.ArgError(n, err.Error())
		}
		return note
	}
	L.TypeError(n, lua.LTNumber)
	return 0
}

func (r *Runner) checkSound(L *lua.LState, n int) int {
	if v, ok := L.Get(n).(lua.LNumber); ok {
		return int(v)
	}
	name := L.CheckString(n)
	if r.sounds != nil {
		if i, ok := r.sounds.Index(name); ok {
			return i
		}
	}
	L.ArgError(n, "unknown sound "+name)
	return 0
}

// note_on(channel, note, velocity, beat, id)
func (r *Runner) luaNoteOn(L *lua.LState) int {
	ch := L.CheckInt(1)
	note := r.checkNote(L, 2)
	vel := float32(L.OptNumber(3, 1))
	beat := r.beatArg(L, 4)
	id := int32(L.OptInt(5, 0))
	return r.emit(L, beatevent.BeatEvent{Event: event.NewNoteOn(ch, 0, note, vel, id), BeatTime: beat})
}

// note_off(channel, note, beat, id)
func (r *Runner) luaNoteOff(L *lua.LState) int {
	ch := L.CheckInt(1)
	note := r.checkNote(L, 2)
	beat := r.beatArg(L, 3)
	id := int32(L.OptInt(4, 0))
	return r.emit(L, beatevent.BeatEvent{Event: event.NewNoteOff(ch, 0, note, id), BeatTime: beat})
}

// all_off(channel, beat)
func (r *Runner) luaAllOff(L *lua.LState) int {
	ch := L.CheckInt(1)
	return r.emit(L, beatevent.BeatEvent{Event: event.NewAllNotesOff(ch, 0), BeatTime: r.beatArg(L, 2)})
}

// play(sound, velocity, beat, loop)
func (r *Runner) luaPlay(L *lua.LState) int {
	sound := r.checkSound(L, 1)
	vel := float32(L.OptNumber(2, 1))
	beat := r.beatArg(L, 3)
	loop := L.OptBool(4, false)
	return r.emit(L, beatevent.BeatEvent{Event: event.NewPlayPcm(0, sound, vel, loop), BeatTime: beat})
}

// stop(sound, beat)
func (r *Runner) luaStop(L *lua.LState) int {
	sound := r.checkSound(L, 1)
	return r.emit(L, beatevent.BeatEvent{Event: event.NewStopPcm(0, sound), BeatTime: r.beatArg(L, 2)})
}

// param(channel, name, value, beat, ramp_beats)
func (r *Runner) luaParam(L *lua.LState) int {
	ch := L.CheckInt(1)
	name := L.CheckString(2)
	id, ok := patch.ParseParamID(name)
	if !ok {
		L.ArgError(2, "unknown param "+name)
	}
	val := float32(L.CheckNumber(3))
	beat := r.beatArg(L, 4)
	ramp := float64(L.OptNumber(5, 0))
	return r.emit(L, beatevent.BeatEvent{Event: event.NewSynthParam(ch, 0, id, val, 0), BeatTime: beat, RampBeats: ramp})
}

// gain(value, beat)
func (r *Runner) luaGain(L *lua.LState) int {
	g := float32(L.CheckNumber(1))
	return r.emit(L, beatevent.BeatEvent{Event: event.NewSetGain(0, g), BeatTime: r.beatArg(L, 2)})
}

// quantize(denom, slack) returns the beat of the next multiple of denom, or
// the previous one if it passed less than slack beats ago.
func (r *Runner) luaQuantize(L *lua.LState) int {
	denom := float64(L.CheckNumber(1))
	slack := float64(L.OptNumber(2, 0))
	L.Push(lua.LNumber(beatevent.NextDenomStart(r.clock.BeatTime(), denom, slack)))
	return 1
}

// sequence(text, offset) schedules a beat script shifted by offset beats
// and returns how many events were accepted.
func (r *Runner) luaSequence(L *lua.LState) int {
	text := L.CheckString(1)
	offset := float64(L.OptNumber(2, 0))
	events, err := beatevent.ParseString(text, r.sounds)
	if err != nil {
		L.RaiseError("sequence: %v", err)
		return 0
	}
	accepted := 0
	for _, be := range events {
		if err := r.sink.AddEvent(be.Offset(offset).ToTickEvent(r.clock)); err != nil {
			r.refused++
			continue
		}
		r.sent++
		accepted++
	}
	if accepted < len(events) {
		r.log.Warn("sequence truncated", "accepted", accepted, "events", len(events))
	}
	L.Push(lua.LNumber(accepted))
	return 1
}
