package synth

import (
	"math"
	"testing"

	"github.com/cbegin/audial-go/internal/event"
	"github.com/cbegin/audial-go/internal/patch"
)

const testRate = 48000

// runBlocks renders [start, end) in blocks, handing each block the events
// due inside it. events must be sorted.
func runBlocks(s *Synth, events []event.Event, start, end int64, block int) []float32 {
	out := make([]float32, 0, (end-start)*2)
	buf := make([]float32, block*2)
	next := 0
	for t := start; t < end; t += int64(block) {
		first := next
		for next < len(events) && events[next].TimeInTicks < t+int64(block) {
			next++
		}
		clear(buf)
		s.Process(events[first:next], buf, t)
		out = append(out, buf...)
	}
	return out
}

func newTestSynth(mutate func(*patch.Patch)) *Synth {
	p := patch.Default()
	if mutate != nil {
		mutate(&p)
	}
	return New(0, testRate, p, nil)
}

func TestEngineGeneratesSignal(t *testing.T) {
	for _, w := range []patch.Waveform{patch.Square, patch.Saw, patch.Noise} {
		s := newTestSynth(func(p *patch.Patch) {
			p[patch.Osc1Waveform] = float32(w)
			p[patch.Gain] = 1
		})
		out := runBlocks(s, []event.Event{event.NewNoteOn(0, 0, 69, 1, 0)}, 0, 4800, 512)
		var energy float64
		for _, v := range out {
			if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
				t.Fatalf("%v: non-finite sample", w)
			}
			energy += float64(v * v)
		}
		if energy < 1 {
			t.Fatalf("%v: expected audible signal, energy %f", w, energy)
		}
	}
}

func TestIgnoresOtherChannels(t *testing.T) {
	s := newTestSynth(nil)
	runBlocks(s, []event.Event{event.NewNoteOn(1, 0, 60, 1, 0)}, 0, 512, 512)
	if s.ActiveVoices() != 0 {
		t.Fatalf("channel 0 synth played a channel 1 note")
	}
}

func TestNoteOffIDMatching(t *testing.T) {
	tests := []struct {
		name    string
		onID    int32
		offID   int32
		release bool
	}{
		{"same id", 7, 7, true},
		{"different ids", 7, 8, false},
		{"wildcard off", 7, 0, true},
		{"wildcard on", 0, 8, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestSynth(nil)
			evs := []event.Event{
				event.NewNoteOn(0, 0, 60, 1, tt.onID),
				event.NewNoteOff(0, 100, 60, tt.offID),
			}
			runBlocks(s, evs, 0, 512, 512)
			got := s.Voice(0).AmpPhase == Release
			if got != tt.release {
				t.Fatalf("released = %v, want %v (phase %v)", got, tt.release, s.Voice(0).AmpPhase)
			}
		})
	}
}

func TestStaleNoteOffDoesNotCutRetrigger(t *testing.T) {
	s := newTestSynth(nil)
	evs := []event.Event{
		event.NewNoteOn(0, 0, 60, 1, 1),
		event.NewNoteOn(0, 50, 60, 1, 2),
		event.NewNoteOff(0, 100, 60, 1),
	}
	runBlocks(s, evs, 0, 512, 512)
	if s.ActiveVoices() != 1 {
		t.Fatalf("retrigger of the same note should reuse the voice, active = %d", s.ActiveVoices())
	}
	v := s.Voice(0)
	if v.NoteOnID != 2 || v.AmpPhase == Release {
		t.Fatalf("stale NoteOff released the newer note: id=%d phase=%v", v.NoteOnID, v.AmpPhase)
	}
	runBlocks(s, []event.Event{event.NewNoteOff(0, 600, 60, 2)}, 512, 1024, 512)
	if s.Voice(0).AmpPhase != Release {
		t.Fatalf("matching NoteOff should release, phase %v", s.Voice(0).AmpPhase)
	}
}

func TestVoiceStealingPicksFirstVoice(t *testing.T) {
	tests := []struct {
		name    string
		spacing int64
	}{
		{"simultaneous", 0},
		{"staggered", 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestSynth(nil)
			var evs []event.Event
			for i := 0; i < NumVoices; i++ {
				evs = append(evs, event.NewNoteOn(0, int64(i)*tt.spacing, 60+i, 1, 0))
			}
			stealAt := int64(NumVoices)*tt.spacing + 1
			evs = append(evs, event.NewNoteOn(0, stealAt, 90, 1, 0))
			runBlocks(s, evs, 0, 2048, 256)
			if got := s.ActiveVoices(); got != NumVoices {
				t.Fatalf("active voices = %d, want %d", got, NumVoices)
			}
			if got := s.Voice(0).Note; got != 90 {
				t.Fatalf("voice 0 note = %d, want the stealing note 90", got)
			}
			for i := 1; i < NumVoices; i++ {
				if s.Voice(i).Note != 60+i {
					t.Fatalf("voice %d note = %d, want %d", i, s.Voice(i).Note, 60+i)
				}
			}
		})
	}
}

func TestStealingPrefersReleasedVoice(t *testing.T) {
	s := newTestSynth(func(p *patch.Patch) { p[patch.AmpEnvRelease] = 2 })
	var evs []event.Event
	for i := 0; i < NumVoices; i++ {
		evs = append(evs, event.NewNoteOn(0, 0, 60+i, 1, 0))
	}
	evs = append(evs, event.NewNoteOff(0, 10, 65, 0))
	evs = append(evs, event.NewNoteOn(0, 20, 90, 1, 0))
	runBlocks(s, evs, 0, 512, 512)
	if s.Voice(5).Note != 90 {
		t.Fatalf("released voice should be stolen first, voice 5 note = %d", s.Voice(5).Note)
	}
}

func TestMonoUsesVoiceZero(t *testing.T) {
	s := newTestSynth(func(p *patch.Patch) { p[patch.Mono] = 1 })
	evs := []event.Event{
		event.NewNoteOn(0, 0, 60, 1, 0),
		event.NewNoteOn(0, 10, 64, 1, 0),
		event.NewNoteOn(0, 20, 67, 1, 0),
	}
	runBlocks(s, evs, 0, 512, 512)
	if s.ActiveVoices() != 1 || s.Voice(0).Note != 67 {
		t.Fatalf("mono: active=%d voice0=%d", s.ActiveVoices(), s.Voice(0).Note)
	}
}

func TestAllNotesOffReleasesEverything(t *testing.T) {
	s := newTestSynth(nil)
	evs := []event.Event{
		event.NewNoteOn(0, 0, 60, 1, 0),
		event.NewNoteOn(0, 0, 64, 1, 0),
		event.NewAllNotesOff(0, 100),
	}
	runBlocks(s, evs, 0, 512, 512)
	for i := 0; i < 2; i++ {
		if s.Voice(i).AmpPhase != Release {
			t.Fatalf("voice %d phase %v", i, s.Voice(i).AmpPhase)
		}
	}
}

func TestAmpEnvelopeLifecycle(t *testing.T) {
	const release = 0.05
	s := newTestSynth(func(p *patch.Patch) {
		p.SetADSR(patch.AmpEnv, patch.ADSR{Attack: 0.01, Decay: 0.05, Sustain: 0.5, Release: release})
	})
	const noteOff = 4800
	evs := []event.Event{
		event.NewNoteOn(0, 0, 69, 1, 0),
		event.NewNoteOff(0, noteOff, 69, 0),
	}
	block := int64(64)
	next := 0
	releaseTicks := int64(release * testRate)
	var closedAt int64 = -1
	for tick := int64(0); tick < noteOff+releaseTicks+4*block; tick += block {
		first := next
		for next < len(evs) && evs[next].TimeInTicks < tick+block {
			next++
		}
		s.Process(evs[first:next], make([]float32, block*2), tick)
		phase := s.Voice(0).AmpPhase
		end := tick + block
		switch {
		case end <= noteOff:
			if phase == Release || phase == Closed {
				t.Fatalf("tick %d: phase %v before note off", end, phase)
			}
		case end-noteOff < releaseTicks/2:
			if phase != Release {
				t.Fatalf("tick %d: phase %v, want Release", end, phase)
			}
		}
		if phase == Closed && closedAt < 0 {
			closedAt = end
		}
	}
	if closedAt < 0 {
		t.Fatalf("voice never closed")
	}
	if closedAt > noteOff+releaseTicks+block {
		t.Fatalf("closed at %d, release should finish by %d", closedAt, noteOff+releaseTicks+block)
	}
	v := s.Voice(0)
	if v.AmpValue != 0 || v.Note != -1 {
		t.Fatalf("closed voice value=%v note=%d", v.AmpValue, v.Note)
	}
}

func TestADSRZeroTimesJump(t *testing.T) {
	var c adsrCoefs
	c.set(patch.ADSR{Attack: 0, Decay: 0, Sustain: 0.3, Release: 0}, testRate)
	var e adsr
	e.noteOn()
	if v := e.tick(&c); v != 1 || e.phase != Decay {
		t.Fatalf("zero attack: v=%v phase=%v", v, e.phase)
	}
	if v := e.tick(&c); v != 0.3 || e.phase != Sustain {
		t.Fatalf("zero decay: v=%v phase=%v", v, e.phase)
	}
	e.noteOff()
	if v := e.tick(&c); v != 0 || e.phase != Closed {
		t.Fatalf("zero release: v=%v phase=%v", v, e.phase)
	}
}

func TestPitchEnvelopePerBuffer(t *testing.T) {
	var spec pitchSpec
	spec.set(patch.ADSR{Attack: 0.01, Decay: 0.01, Sustain: 0.25, Release: 0.01}, testRate)
	var e pitchEnv
	e.noteOn()
	if v := e.tick(&spec, 240); math.Abs(v-0.5) > 1e-9 {
		t.Fatalf("half-way through linear attack = %v", v)
	}
	if v := e.tick(&spec, 240); e.phase != Decay || v != 1 {
		t.Fatalf("end of attack: phase=%v v=%v", e.phase, v)
	}
	if v := e.tick(&spec, 240); math.Abs(v-0.5) > 1e-9 {
		t.Fatalf("decay mid-point should be sqrt(sustain) = 0.5, got %v", v)
	}
	e.tick(&spec, 240)
	if e.phase != Sustain || e.value != 0.25 {
		t.Fatalf("sustain: phase=%v v=%v", e.phase, e.value)
	}
	e.noteOff()
	e.tick(&spec, 480)
	if e.phase != Closed || e.value != 0 {
		t.Fatalf("release: phase=%v v=%v", e.phase, e.value)
	}
}

func TestFreshVoiceDropsStalePitchOffset(t *testing.T) {
	// Mono keeps both notes on voice 0.
	s := newTestSynth(func(p *patch.Patch) {
		p[patch.Mono] = 1
		p.SetADSR(patch.AmpEnv, patch.ADSR{Attack: 0.001, Decay: 0.01, Sustain: 1, Release: 0.01})
		p[patch.PitchEnvGain] = 1
		p[patch.PitchEnvSustain] = 1
		p[patch.PitchEnvRelease] = 5
	})
	runBlocks(s, []event.Event{
		event.NewNoteOn(0, 0, 69, 1, 0),
		event.NewNoteOff(0, 4800, 69, 0),
	}, 0, 9728, 512)
	if s.Voice(0).AmpPhase != Closed {
		t.Fatalf("first note phase %v, want Closed", s.Voice(0).AmpPhase)
	}
	if s.voices[0].pitchMod < 1.5 {
		t.Fatalf("pitch envelope never raised the first note: %v", s.voices[0].pitchMod)
	}
	// The new note starts mid-buffer, after the per-buffer refresh.
	runBlocks(s, []event.Event{event.NewNoteOn(0, 9828, 60, 1, 0)}, 9728, 10240, 512)
	v := &s.voices[0]
	if v.note != 60 {
		t.Fatalf("voice 0 plays %d, want 60", v.note)
	}
	if v.pitchMod != 1 {
		t.Fatalf("fresh voice starts with pitchMod %v, want 1", v.pitchMod)
	}
}

func TestInterpolateEndpointsExact(t *testing.T) {
	for id := patch.ParamID(0); id < patch.NumParams; id++ {
		start, end := float32(0.123), float32(9876.5)
		if got := Interpolate(id, start, end, 0); got != start {
			t.Fatalf("%s: factor 0 = %v, want %v", id, got, start)
		}
		if got := Interpolate(id, start, end, 1); got != end {
			t.Fatalf("%s: factor 1 = %v, want %v", id, got, end)
		}
		if got := Interpolate(id, start, end, -3); got != start {
			t.Fatalf("%s: negative factor not clamped", id)
		}
		if got := Interpolate(id, start, end, 7); got != end {
			t.Fatalf("%s: factor > 1 not clamped", id)
		}
	}
}

func TestInterpolateCutoffIsExponential(t *testing.T) {
	lin := Interpolate(patch.Gain, 0, 1000, 0.5)
	exp := Interpolate(patch.Cutoff, 0, 1000, 0.5)
	if lin != 500 {
		t.Fatalf("linear midpoint = %v", lin)
	}
	if exp >= 100 {
		t.Fatalf("cutoff midpoint should be low on the exponential curve, got %v", exp)
	}
	prev := float32(-1)
	for f := 0.0; f <= 1; f += 0.05 {
		v := Interpolate(patch.HpfCutoff, 0, 1000, f)
		if v < prev {
			t.Fatalf("curve not monotonic at %v", f)
		}
		prev = v
	}
}

func TestAutomationSnapsToEnd(t *testing.T) {
	s := newTestSynth(nil)
	evs := []event.Event{event.NewSynthParam(0, 0, patch.Cutoff, 1000, 4800)}
	runBlocks(s, evs, 0, 2560, 512)
	mid := s.Patch()[patch.Cutoff]
	if mid >= 12000 || mid <= 1000 {
		t.Fatalf("mid-ramp cutoff = %v", mid)
	}
	if s.ActiveAutomations() != 1 {
		t.Fatalf("automation should be running")
	}
	runBlocks(s, nil, 2560, 6144, 512)
	if got := s.Patch()[patch.Cutoff]; got != 1000 {
		t.Fatalf("cutoff after ramp = %v, want exactly 1000", got)
	}
	if s.ActiveAutomations() != 0 {
		t.Fatalf("automation should be finished")
	}
}

func TestAutomationReplacesRampOnSameParam(t *testing.T) {
	s := newTestSynth(nil)
	evs := []event.Event{
		event.NewSynthParam(0, 0, patch.Gain, 0, 100000),
		event.NewSynthParam(0, 10, patch.Gain, 1, 1000),
	}
	runBlocks(s, evs, 0, 512, 512)
	if s.ActiveAutomations() != 1 {
		t.Fatalf("active automations = %d, want 1", s.ActiveAutomations())
	}
	runBlocks(s, nil, 512, 2048, 512)
	if got := s.Patch()[patch.Gain]; got != 1 {
		t.Fatalf("gain = %v, want the second ramp's target", got)
	}
}

func TestImmediateParamCancelsRamp(t *testing.T) {
	s := newTestSynth(nil)
	evs := []event.Event{
		event.NewSynthParam(0, 0, patch.Peak, 8, 100000),
		event.NewSynthParam(0, 10, patch.Peak, 2, 0),
	}
	runBlocks(s, evs, 0, 2048, 512)
	if s.ActiveAutomations() != 0 || s.Patch()[patch.Peak] != 2 {
		t.Fatalf("peak=%v automations=%d", s.Patch()[patch.Peak], s.ActiveAutomations())
	}
}

func TestAutomationPoolFullDrops(t *testing.T) {
	s := newTestSynth(nil)
	var evs []event.Event
	for id := patch.ParamID(0); id < AutomationPoolSize+1; id++ {
		evs = append(evs, event.NewSynthParam(0, 0, id, 0.5, 100000))
	}
	runBlocks(s, evs, 0, 512, 512)
	if s.ActiveAutomations() != AutomationPoolSize {
		t.Fatalf("active = %d", s.ActiveAutomations())
	}
	if s.AutomationDrops() != 1 {
		t.Fatalf("drops = %d, want 1", s.AutomationDrops())
	}
}

func TestPortamentoGlidesToTarget(t *testing.T) {
	s := newTestSynth(func(p *patch.Patch) {
		p[patch.Mono] = 1
		p[patch.Portamento] = 0.01
	})
	evs := []event.Event{
		event.NewNoteOn(0, 0, 60, 1, 0),
		event.NewNoteOn(0, 100, 72, 1, 0),
	}
	runBlocks(s, evs, 0, 256, 256)
	f := s.Voice(0).Frequency
	if f <= MidiToFreq(60) || f >= MidiToFreq(72) {
		t.Fatalf("mid-glide frequency %v outside (%v, %v)", f, MidiToFreq(60), MidiToFreq(72))
	}
	runBlocks(s, nil, 256, 1024, 256)
	if got := s.Voice(0).Frequency; got != MidiToFreq(72) {
		t.Fatalf("glide end = %v, want %v", got, MidiToFreq(72))
	}
}

func TestPortamentoPriming(t *testing.T) {
	s := newTestSynth(func(p *patch.Patch) { p[patch.Portamento] = 0.1 })
	runBlocks(s, []event.Event{event.NewPrimedNoteOn(0, 0, 72, 1, 0, 48)}, 0, 64, 64)
	f := s.Voice(0).Frequency
	if f < MidiToFreq(48) || f > MidiToFreq(50) {
		t.Fatalf("primed glide should start near note 48, got %v", f)
	}
}

func TestGainToAmplitude(t *testing.T) {
	tests := []struct {
		in   float32
		want float64
	}{{0, 0}, {1, 1}, {0.5, 0.01}, {0.75, 0.1}, {2, 1}}
	for _, tt := range tests {
		if got := GainToAmplitude(tt.in); math.Abs(got-tt.want) > 1e-12 {
			t.Fatalf("GainToAmplitude(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestUnisonTableSymmetric(t *testing.T) {
	var u unisonTable
	u.set(5, 20)
	if math.Abs(u.gain-math.Sqrt(0.2)) > 1e-12 {
		t.Fatalf("gain = %v", u.gain)
	}
	if u.ratios[2] != 1 {
		t.Fatalf("centre copy ratio = %v", u.ratios[2])
	}
	for k := 0; k < 2; k++ {
		if math.Abs(u.ratios[k]*u.ratios[4-k]-1) > 1e-12 {
			t.Fatalf("copies %d and %d not symmetric", k, 4-k)
		}
	}
	if math.Abs(u.ratios[4]-math.Exp2(20.0/1200)) > 1e-12 {
		t.Fatalf("outer copy ratio = %v", u.ratios[4])
	}
}

func TestBLEPWaveformsBounded(t *testing.T) {
	var u unisonTable
	u.set(1, 0)
	for _, w := range []patch.Waveform{patch.Square, patch.Saw} {
		var o oscillator
		o.reset(1)
		var sum float64
		for i := 0; i < testRate; i++ {
			v := o.next(w, 441, testRate, &u, 0)
			if math.Abs(v) > 1.01 {
				t.Fatalf("%v sample %d = %v", w, i, v)
			}
			sum += v
		}
		if mean := sum / testRate; math.Abs(mean) > 0.01 {
			t.Fatalf("%v has DC offset %v", w, mean)
		}
	}
}

func TestLadderUnityDCGain(t *testing.T) {
	for _, peak := range []float64{1, 5} {
		var l ladder
		l.setCoefs(1000, peak, testRate)
		var y float64
		for i := 0; i < 20000; i++ {
			y = l.process(1)
		}
		if math.Abs(y-1) > 0.01 {
			t.Fatalf("peak %v: DC gain %v", peak, y)
		}
	}
}

func TestLadderAttenuatesAboveCutoff(t *testing.T) {
	rms := func(freq float64) float64 {
		var l ladder
		l.setCoefs(500, 1, testRate)
		var sum float64
		for i := 0; i < testRate/4; i++ {
			y := l.process(math.Sin(2 * math.Pi * freq * float64(i) / testRate))
			if i > testRate/8 {
				sum += y * y
			}
		}
		return math.Sqrt(sum / (testRate / 8))
	}
	low, high := rms(100), rms(8000)
	if high > low/100 {
		t.Fatalf("8kHz rms %v not well below 100Hz rms %v", high, low)
	}
}

func TestHighPassRemovesDC(t *testing.T) {
	var c svfCoefs
	c.set(200, 0.5, testRate)
	var f svf
	var y float64
	for i := 0; i < 20000; i++ {
		y = f.highPass(1, &c)
	}
	if math.Abs(y) > 1e-3 {
		t.Fatalf("DC leaked through high-pass: %v", y)
	}
	c.set(0, 0, testRate)
	if got := f.highPass(0.7, &c); got != 0.7 {
		t.Fatalf("zero cutoff should bypass, got %v", got)
	}
}

func TestDelayLineEchoes(t *testing.T) {
	s := newTestSynth(func(p *patch.Patch) {
		p[patch.DelayGain] = 1
		p[patch.DelayTime] = 0.01
		p[patch.DelayFeedback] = 0
		p.SetADSR(patch.AmpEnv, patch.ADSR{Attack: 0, Decay: 0, Sustain: 1, Release: 0})
	})
	evs := []event.Event{
		event.NewNoteOn(0, 0, 69, 1, 0),
		event.NewNoteOff(0, 100, 69, 0),
	}
	out := runBlocks(s, evs, 0, 2048, 512)
	var tail float64
	for i := 500; i < 570; i++ {
		tail += math.Abs(float64(out[2*i]))
	}
	if tail == 0 {
		t.Fatalf("expected echo after the note ended")
	}
}

func BenchmarkSynthProcess(b *testing.B) {
	s := newTestSynth(func(p *patch.Patch) {
		p[patch.Unison] = 3
		p[patch.OscFader] = 0.5
	})
	var evs []event.Event
	for i := 0; i < NumVoices; i++ {
		evs = append(evs, event.NewNoteOn(0, 0, 48+i*3, 1, 0))
	}
	buf := make([]float32, 512*2)
	s.Process(evs, buf, 0)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		clear(buf)
		s.Process(nil, buf, int64(i+1)*512)
	}
}
