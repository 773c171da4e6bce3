package synth

import (
	"math"

	"github.com/cbegin/audial-go/internal/patch"
)

// Phase is an envelope state. The order is the voice-stealing preference:
// lower phases are stolen first.
type Phase uint8

const (
	Closed Phase = iota
	Release
	Sustain
	Decay
	Attack
)

var phaseNames = [...]string{"Closed", "Release", "Sustain", "Decay", "Attack"}

func (p Phase) String() string {
	if int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return "Unknown"
}

// SmallAmplitude is where exponential curves are considered silent.
const SmallAmplitude = 0.0001

// Time-constant ratios shape the analog-style curves: a small ratio gives a
// strongly exponential segment, a large one is nearly linear.
const (
	attackRatio       = 0.3
	decayReleaseRatio = 0.0001
)

// adsrCoefs are the per-segment one-pole coefficients for a given ADSR and
// tick rate. They are shared by every voice of a channel.
type adsrCoefs struct {
	attackCoef, attackBase   float64
	decayCoef, decayBase     float64
	releaseCoef, releaseBase float64
	sustain                  float64
}

func segmentCoef(ticks, ratio float64) float64 {
	if ticks <= 0 {
		return 0
	}
	return math.Exp(-math.Log((1+ratio)/ratio) / ticks)
}

// set derives coefficients for spec ticked ticksPerSecond times a second.
func (c *adsrCoefs) set(spec patch.ADSR, ticksPerSecond float64) {
	c.sustain = clamp64(float64(spec.Sustain), 0, 1)
	c.attackCoef = segmentCoef(float64(spec.Attack)*ticksPerSecond, attackRatio)
	c.attackBase = (1 + attackRatio) * (1 - c.attackCoef)
	c.decayCoef = segmentCoef(float64(spec.Decay)*ticksPerSecond, decayReleaseRatio)
	c.decayBase = (c.sustain - decayReleaseRatio) * (1 - c.decayCoef)
	c.releaseCoef = segmentCoef(float64(spec.Release)*ticksPerSecond, decayReleaseRatio)
	c.releaseBase = -decayReleaseRatio * (1 - c.releaseCoef)
}

// adsr is the exponential envelope used for amplitude (per sample) and
// cutoff (per filter update).
type adsr struct {
	phase Phase
	age   int64
	value float64
}

func (e *adsr) noteOn() {
	e.phase = Attack
	e.age = 0
}

func (e *adsr) noteOff() {
	if e.phase == Closed || e.phase == Release {
		return
	}
	e.phase = Release
	e.age = 0
}

func (e *adsr) enter(p Phase) {
	e.phase = p
	e.age = 0
}

func (e *adsr) tick(c *adsrCoefs) float64 {
	switch e.phase {
	case Attack:
		e.value = c.attackBase + e.value*c.attackCoef
		if e.value >= 1 {
			e.value = 1
			e.enter(Decay)
			return e.value
		}
	case Decay:
		e.value = c.decayBase + e.value*c.decayCoef
		if e.value <= c.sustain {
			e.value = c.sustain
			e.enter(Sustain)
			return e.value
		}
	case Sustain:
		e.value = c.sustain
	case Release:
		e.value = c.releaseBase + e.value*c.releaseCoef
		if e.value <= 0 {
			e.value = 0
			e.enter(Closed)
			return 0
		}
	case Closed:
		e.value = 0
	}
	e.age++
	return e.value
}

// pitchSpec is an ADSR in ticks for the per-buffer envelope.
type pitchSpec struct {
	attack, decay, release int64
	sustain                float64
}

func (s *pitchSpec) set(spec patch.ADSR, sampleRate float64) {
	s.attack = int64(float64(spec.Attack) * sampleRate)
	s.decay = int64(float64(spec.Decay) * sampleRate)
	s.release = int64(float64(spec.Release) * sampleRate)
	s.sustain = clamp64(float64(spec.Sustain), 0, 1)
}

// pitchEnv is ticked once per output buffer: linear attack from the current
// value, exponential decay and release.
type pitchEnv struct {
	phase        Phase
	age          int64
	value        float64
	attackStart  float64
	releaseStart float64
}

func (e *pitchEnv) noteOn() {
	e.phase = Attack
	e.age = 0
	e.attackStart = e.value
}

func (e *pitchEnv) noteOff() {
	if e.phase == Closed || e.phase == Release {
		return
	}
	e.phase = Release
	e.age = 0
	e.releaseStart = math.Max(e.value, SmallAmplitude)
}

func (e *pitchEnv) tick(s *pitchSpec, ticks int64) float64 {
	e.age += ticks
	switch e.phase {
	case Attack:
		if e.age >= s.attack {
			e.age -= s.attack
			e.phase = Decay
			e.value = 1
			return e.tick(s, 0)
		}
		t := float64(e.age) / float64(s.attack)
		e.value = e.attackStart + (1-e.attackStart)*t
	case Decay:
		if e.age >= s.decay {
			e.age -= s.decay
			e.phase = Sustain
			e.value = s.sustain
			return e.value
		}
		t := float64(e.age) / float64(s.decay)
		e.value = math.Pow(math.Max(s.sustain, SmallAmplitude), t)
	case Sustain:
		e.value = s.sustain
	case Release:
		if e.age >= s.release {
			e.phase = Closed
			e.age = 0
			e.value = 0
			return 0
		}
		t := float64(e.age) / float64(s.release)
		e.value = e.releaseStart * math.Pow(SmallAmplitude/e.releaseStart, t)
	case Closed:
		e.value = 0
	}
	return e.value
}

func clamp64(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
