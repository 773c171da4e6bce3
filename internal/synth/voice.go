package synth

import (
	"math"

	"github.com/cbegin/audial-go/internal/event"
	"github.com/cbegin/audial-go/internal/patch"
)

// NumVoices is the polyphony of one synth channel.
const NumVoices = 8

// NumOscillators is the number of analog oscillator slots per voice.
const NumOscillators = 2

// Voice is one polyphonic slot. note is -1 while the voice is silent.
type Voice struct {
	note     int
	noteOnID int32
	velocity float64

	osc [NumOscillators]oscillator

	freq        float64
	targetFreq  float64
	glideRatio  float64
	glideRemain int64

	lpf ladder
	hpf svf

	amp       adsr
	cutoffEnv adsr
	pitchEnv  pitchEnv
	// pitchMod is 2^(PitchEnvGain*pitchEnv), refreshed once per buffer and
	// on note on.
	pitchMod float64
}

func (v *Voice) init(index int) {
	v.note = -1
	v.pitchMod = 1
	for i := range v.osc {
		v.osc[i].reset(uint32(0xACE1 + index*97 + i*7919))
	}
}

// Active reports whether the voice produces sound.
func (v *Voice) Active() bool { return v.amp.phase != Closed }

// findVoice returns the voice that should play note, following the legato
// and stealing rules. In mono mode only voice 0 is considered.
func (s *Synth) findVoice(note int) int {
	n := NumVoices
	if s.patch.Bool(patch.Mono) {
		n = 1
	}
	for i := 0; i < n; i++ {
		if s.voices[i].note == note {
			return i
		}
	}
	best := 0
	for i := 1; i < n; i++ {
		v, b := &s.voices[i].amp, &s.voices[best].amp
		if v.phase < b.phase || (v.phase == b.phase && v.age > b.age) {
			best = i
		}
	}
	return best
}

func (s *Synth) noteOn(n *event.Note) {
	i := s.findVoice(n.Note)
	v := &s.voices[i]
	fresh := !v.Active()
	if fresh {
		for k := range v.osc {
			v.osc[k].reset(v.osc[k].rng)
		}
		v.lpf.reset()
		v.hpf.reset()
		v.amp.value = 0
		v.cutoffEnv.value = 0
		v.pitchEnv.value = 0
	}

	target := MidiToFreq(float64(n.Note))
	start := v.freq
	if n.Prime {
		start = MidiToFreq(float64(n.PrimeNote))
	}
	glide := int64(float64(s.patch.Get(patch.Portamento)) * s.sampleRate)
	if glide > 0 && start > 0 && start != target {
		v.freq = start
		v.glideRemain = glide
		v.glideRatio = math.Pow(target/start, 1/float64(glide))
	} else {
		v.freq = target
		v.glideRemain = 0
	}
	v.targetFreq = target

	v.note = n.Note
	v.noteOnID = n.NoteOnID
	v.velocity = clamp64(float64(n.Velocity), 0, 1)
	v.amp.noteOn()
	v.cutoffEnv.noteOn()
	v.pitchEnv.noteOn()
	v.pitchMod = math.Exp2(float64(s.patch.Get(patch.PitchEnvGain)) * v.pitchEnv.value)
	s.filterDirty = true
}

// noteOff releases every voice on the note whose id is compatible. A zero id
// on either side matches anything.
func (s *Synth) noteOff(n *event.Note) {
	for i := range s.voices {
		v := &s.voices[i]
		if v.note != n.Note {
			continue
		}
		if n.NoteOnID != 0 && v.noteOnID != 0 && n.NoteOnID != v.noteOnID {
			continue
		}
		v.release()
	}
}

func (s *Synth) allNotesOff() {
	for i := range s.voices {
		if s.voices[i].Active() {
			s.voices[i].release()
		}
	}
}

func (v *Voice) release() {
	v.amp.noteOff()
	v.cutoffEnv.noteOff()
	v.pitchEnv.noteOff()
}

// render produces one sample of the voice before channel gain.
func (s *Synth) render(v *Voice, pitchLFO float64) float64 {
	if v.glideRemain > 0 {
		v.freq *= v.glideRatio
		if v.glideRemain--; v.glideRemain == 0 {
			v.freq = v.targetFreq
		}
	}
	f := v.freq * pitchLFO * v.pitchMod
	p := &s.patch
	w1 := p.Waveform(patch.Osc1Waveform)
	w2 := p.Waveform(patch.Osc2Waveform)

	var x float64
	if p.Bool(patch.FM) {
		mod := v.osc[1].next(w2, f*float64(p.Get(patch.FMOsc2Ratio)), s.sampleRate, &s.unison, 0)
		x = v.osc[0].next(w1, f, s.sampleRate, &s.unison, float64(p.Get(patch.FMOsc2Level))*mod)
	} else {
		fader := float64(p.Get(patch.OscFader))
		o1 := v.osc[0].next(w1, f, s.sampleRate, &s.unison, 0)
		x = o1 * (1 - fader)
		if fader > 0 {
			o2 := v.osc[1].next(w2, f*s.detuneRatio, s.sampleRate, &s.unison, 0)
			x += o2 * fader
		}
	}

	x = v.lpf.process(x)
	x = v.hpf.highPass(x, &s.hpfCoefs)
	amp := v.amp.tick(&s.ampCoefs)
	if v.amp.phase == Closed {
		v.note = -1
	}
	return x * amp * v.velocity
}
