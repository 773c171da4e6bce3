package synth

import (
	"math"

	"github.com/cbegin/audial-go/internal/patch"
)

// unisonTable holds per-copy frequency ratios for the current patch.
type unisonTable struct {
	count  int
	ratios [patch.MaxUnison]float64
	gain   float64
}

func (u *unisonTable) set(count int, spreadCents float64) {
	u.count = count
	u.gain = math.Sqrt(1 / float64(count))
	if count == 1 {
		u.ratios[0] = 1
		return
	}
	half := float64(count-1) / 2
	for k := 0; k < count; k++ {
		cents := spreadCents * (float64(k) - half) / half
		u.ratios[k] = math.Exp2(cents / 1200)
	}
}

// oscillator is one analog oscillator slot of a voice.
type oscillator struct {
	phases [patch.MaxUnison]float64
	rng    uint32
}

func (o *oscillator) reset(seed uint32) {
	for k := range o.phases {
		o.phases[k] = float64(k) / patch.MaxUnison
	}
	if seed == 0 {
		seed = 0xACE1
	}
	o.rng = seed
}

func (o *oscillator) noise() float64 {
	o.rng ^= o.rng << 13
	o.rng ^= o.rng >> 17
	o.rng ^= o.rng << 5
	return float64(o.rng)/float64(math.MaxUint32)*2 - 1
}

// next renders one sample of all unison copies. phaseOffset is in cycles and
// is how FM injects the modulator.
func (o *oscillator) next(w patch.Waveform, freq, sampleRate float64, u *unisonTable, phaseOffset float64) float64 {
	if w == patch.Noise {
		return o.noise()
	}
	sum := 0.0
	for k := 0; k < u.count; k++ {
		dt := freq * u.ratios[k] / sampleRate
		if dt > 0.5 {
			dt = 0.5
		}
		t := o.phases[k] + phaseOffset
		t -= math.Floor(t)
		if w == patch.Square {
			sum += squareBLEP(t, dt)
		} else {
			sum += sawBLEP(t, dt)
		}
		o.phases[k] += dt
		if o.phases[k] >= 1 {
			o.phases[k] -= 1
		}
	}
	return sum * u.gain
}

// polyBLEP is the two-sample polynomial correction for a unit step at t=0.
func polyBLEP(t, dt float64) float64 {
	if dt <= 0 {
		return 0
	}
	if t < dt {
		t /= dt
		return t + t - t*t - 1
	}
	if t > 1-dt {
		t = (t - 1) / dt
		return t*t + t + t + 1
	}
	return 0
}

func sawBLEP(t, dt float64) float64 {
	return 2*t - 1 - polyBLEP(t, dt)
}

func squareBLEP(t, dt float64) float64 {
	v := -1.0
	if t < 0.5 {
		v = 1
	}
	t2 := t + 0.5
	t2 -= math.Floor(t2)
	return v + polyBLEP(t, dt) - polyBLEP(t2, dt)
}

// MidiToFreq converts a midi note to Hz with A4 = 440.
func MidiToFreq(note float64) float64 {
	return 440 * math.Exp2((note-69)/12)
}
