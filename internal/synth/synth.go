// Package synth implements one subtractive synthesizer channel: a fixed voice
// pool, per-voice oscillators, ladder and high-pass filters, three envelopes,
// parameter automation and a feedback delay. A Synth is owned by the audio
// thread; nothing here allocates after New.
package synth

import (
	"math"
	"sync/atomic"

	"github.com/cbegin/audial-go/internal/effects"
	"github.com/cbegin/audial-go/internal/event"
	"github.com/cbegin/audial-go/internal/lfo"
	"github.com/cbegin/audial-go/internal/patch"
	"github.com/cbegin/audial-go/internal/rtlog"
)

type Synth struct {
	channel    int
	sampleRate float64

	patch  patch.Patch
	voices [NumVoices]Voice

	automations     [AutomationPoolSize]automation
	automationDrops atomic.Uint64

	ampCoefs    adsrCoefs
	cutoffCoefs adsrCoefs
	pitchSpec   pitchSpec
	hpfCoefs    svfCoefs
	unison      unisonTable
	detuneRatio float64
	gain        float64

	pitchLFO     lfo.LFO
	cutoffLFO    lfo.LFO
	cutoffLFOMod float64
	delay        *effects.Line

	filterCountdown int
	filterDirty     bool

	log *rtlog.Ring
}

// New creates a channel with the given patch. log may be nil.
func New(channel, sampleRate int, p patch.Patch, log *rtlog.Ring) *Synth {
	s := &Synth{
		channel:    channel,
		sampleRate: float64(sampleRate),
		delay:      effects.NewLine(sampleRate, patch.MaxDelaySeconds),
		log:        log,
	}
	s.cutoffLFOMod = 1
	for i := range s.voices {
		s.voices[i].init(i)
	}
	s.SetPatch(p)
	return s
}

func (s *Synth) Channel() int { return s.channel }

// Patch returns the current parameter values.
func (s *Synth) Patch() patch.Patch { return s.patch }

// SetPatch replaces every parameter, cancelling running ramps. Audio thread
// only, or before the stream starts.
func (s *Synth) SetPatch(p patch.Patch) {
	for i := range s.automations {
		s.automations[i].active = false
	}
	s.patch = p
	for id := patch.ParamID(0); id < patch.NumParams; id++ {
		s.paramChanged(id)
	}
}

// setParam writes one parameter and refreshes derived state.
func (s *Synth) setParam(id patch.ParamID, v float32) {
	s.patch[id] = v
	s.paramChanged(id)
}

func (s *Synth) paramChanged(id patch.ParamID) {
	p := &s.patch
	switch id {
	case patch.Gain:
		s.gain = GainToAmplitude(p.Get(patch.Gain))
	case patch.Detune:
		s.detuneRatio = math.Exp2(float64(p.Get(patch.Detune)))
	case patch.Unison, patch.UnisonDetune:
		s.unison.set(p.UnisonCount(), float64(p.Get(patch.UnisonDetune)))
	case patch.Cutoff, patch.Peak, patch.CutoffEnvGain, patch.CutoffLFOGain, patch.CutoffLFOFreq:
		s.cutoffLFO.Set(float64(p.Get(patch.CutoffLFOGain)), float64(p.Get(patch.CutoffLFOFreq)), lfo.Sine)
		s.filterDirty = true
	case patch.HpfCutoff, patch.HpfPeak:
		s.hpfCoefs.set(float64(p.Get(patch.HpfCutoff)), float64(p.Get(patch.HpfPeak)), s.sampleRate)
	case patch.PitchLFOGain, patch.PitchLFOFreq:
		s.pitchLFO.Set(float64(p.Get(patch.PitchLFOGain)), float64(p.Get(patch.PitchLFOFreq)), lfo.Sine)
	case patch.DelayGain, patch.DelayTime, patch.DelayFeedback:
		s.delay.SetParams(int(s.sampleRate), float64(p.Get(patch.DelayTime)), p.Get(patch.DelayFeedback), p.Get(patch.DelayGain))
	default:
		if env, ok := patch.EnvelopeOf(id); ok {
			spec := p.ADSR(env)
			switch env {
			case patch.AmpEnv:
				s.ampCoefs.set(spec, s.sampleRate)
			case patch.CutoffEnv:
				s.cutoffCoefs.set(spec, s.sampleRate/FilterUpdateInterval)
			case patch.PitchEnv:
				s.pitchSpec.set(spec, s.sampleRate)
			}
		}
	}
}

// Process consumes the channel's due events and adds its output to the
// interleaved stereo buffer out. start is the tick of out's first frame.
// due must be sorted by time; events for other channels are skipped.
func (s *Synth) Process(due []event.Event, out []float32, start int64) {
	frames := len(out) / 2
	if frames == 0 {
		return
	}
	s.runAutomations(start)

	pitchGain := float64(s.patch.Get(patch.PitchEnvGain))
	for i := range s.voices {
		v := &s.voices[i]
		if !v.Active() {
			v.amp.age += int64(frames)
			continue
		}
		env := v.pitchEnv.tick(&s.pitchSpec, int64(frames))
		v.pitchMod = math.Exp2(pitchGain * env)
	}

	next := 0
	for i := 0; i < frames; i++ {
		tick := start + int64(i)
		for next < len(due) && due[next].TimeInTicks <= tick {
			s.handle(&due[next], tick)
			next++
		}
		if s.filterCountdown <= 0 {
			s.updateFilters(true)
		} else if s.filterDirty {
			s.updateFilters(false)
		}
		s.filterCountdown--

		pitch := 1.0
		if s.pitchLFO.Active() {
			pitch = math.Exp2(s.pitchLFO.Sample(s.sampleRate))
		}
		x := 0.0
		for k := range s.voices {
			v := &s.voices[k]
			if v.Active() {
				x += s.render(v, pitch)
			}
		}
		y := float32(x * s.gain)
		if s.delay.Active() {
			y = s.delay.Tick(y)
		}
		out[2*i] += y
		out[2*i+1] += y
	}
}

func (s *Synth) handle(e *event.Event, tick int64) {
	if e.Channel != s.channel {
		return
	}
	switch e.Type {
	case event.NoteOn:
		s.noteOn(&e.Note)
	case event.NoteOff:
		s.noteOff(&e.Note)
	case event.AllNotesOff:
		s.allNotesOff()
	case event.SynthParam:
		id := e.Param.ID
		if !id.Valid() {
			s.log.Log(rtlog.Record{Code: rtlog.InvalidParam, Channel: int32(s.channel), Tick: tick, A: int64(id)})
			return
		}
		if e.Param.RampTicks <= 0 {
			s.cancelAutomation(id)
			s.setParam(id, e.Param.Value)
			return
		}
		s.startAutomation(id, e.Param.Value, tick, e.Param.RampTicks)
	case event.PlayPcm, event.StopPcm, event.SetGain, event.None:
	default:
		s.log.Log(rtlog.Record{Code: rtlog.UnknownEvent, Channel: int32(s.channel), Tick: tick, A: int64(e.Type)})
	}
}

// updateFilters recomputes every active voice's ladder coefficients. On the
// regular interval it also advances the cutoff LFO and envelopes; a dirty
// update between intervals only applies changed parameters.
func (s *Synth) updateFilters(advance bool) {
	s.filterDirty = false
	if advance {
		s.filterCountdown = FilterUpdateInterval
		s.cutoffLFOMod = math.Exp2(s.cutoffLFO.Step(s.sampleRate, FilterUpdateInterval))
	}
	p := &s.patch
	cutoff := float64(p.Get(patch.Cutoff))
	envGain := float64(p.Get(patch.CutoffEnvGain))
	peak := float64(p.Get(patch.Peak))
	for i := range s.voices {
		v := &s.voices[i]
		if !v.Active() {
			continue
		}
		env := v.cutoffEnv.value
		if advance {
			env = v.cutoffEnv.tick(&s.cutoffCoefs)
		}
		v.lpf.setCoefs((cutoff+envGain*env)*s.cutoffLFOMod, peak, s.sampleRate)
	}
}

// ActiveVoices counts voices whose amplitude envelope is not Closed.
func (s *Synth) ActiveVoices() int {
	n := 0
	for i := range s.voices {
		if s.voices[i].Active() {
			n++
		}
	}
	return n
}

// AutomationDrops counts ramps rejected because the pool was full.
func (s *Synth) AutomationDrops() uint64 { return s.automationDrops.Load() }

// VoiceState is a read-only view of a voice for diagnostics and tests.
type VoiceState struct {
	Note      int
	NoteOnID  int32
	AmpPhase  Phase
	AmpAge    int64
	AmpValue  float64
	Frequency float64
}

func (s *Synth) Voice(i int) VoiceState {
	v := &s.voices[i]
	return VoiceState{
		Note:      v.note,
		NoteOnID:  v.noteOnID,
		AmpPhase:  v.amp.phase,
		AmpAge:    v.amp.age,
		AmpValue:  v.amp.value,
		Frequency: v.freq,
	}
}

// GainToAmplitude maps a linear 0..1 control onto -80..0 dB.
func GainToAmplitude(g float32) float64 {
	if g <= 0 {
		return 0
	}
	if g > 1 {
		g = 1
	}
	db := -80 + 80*float64(g)
	return math.Pow(10, db/20)
}
