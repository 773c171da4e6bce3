// Package lfo provides the per-channel low-frequency modulators.
package lfo

import "math"

// Waveform selects the LFO shape.
type Waveform int

const (
	Sine Waveform = iota
	Saw
	Square
	Triangle
	Random
)

// LFO is shared by all voices of a synth channel. Output is in
// [-depth, +depth]; the caller decides the unit (octaves for pitch and cutoff).
type LFO struct {
	depth    float64
	rateHz   float64
	waveform Waveform
	phase    float64
	held     float64
	seed     uint32
}

// Set configures the LFO. Unknown waveforms fall back to Sine.
func (l *LFO) Set(depth, rateHz float64, waveform Waveform) {
	l.depth = depth
	l.rateHz = rateHz
	if waveform < Sine || waveform > Random {
		waveform = Sine
	}
	l.waveform = waveform
}

// Active reports whether the LFO produces a non-zero signal.
func (l *LFO) Active() bool { return l.depth != 0 && l.rateHz != 0 }

// Sample returns the current value and advances one sample.
func (l *LFO) Sample(sampleRate float64) float64 {
	return l.Step(sampleRate, 1)
}

// Step returns the current value and advances n samples. Block-rate
// consumers such as the filter update call this once per block.
func (l *LFO) Step(sampleRate float64, n int) float64 {
	if !l.Active() || sampleRate <= 0 {
		return 0
	}
	v := l.value()
	prev := l.phase
	l.phase += l.rateHz * float64(n) / sampleRate
	l.phase -= math.Floor(l.phase)
	if l.waveform == Random && l.phase < prev {
		l.held = l.nextRandom()
	}
	return v * l.depth
}

func (l *LFO) value() float64 {
	switch l.waveform {
	case Saw:
		return 1 - 2*l.phase
	case Square:
		if l.phase < 0.5 {
			return 1
		}
		return -1
	case Triangle:
		if l.phase < 0.5 {
			return 4*l.phase - 1
		}
		return 3 - 4*l.phase
	case Random:
		return l.held
	default:
		return math.Sin(2 * math.Pi * l.phase)
	}
}

func (l *LFO) nextRandom() float64 {
	if l.seed == 0 {
		l.seed = 0x9E3779B9
	}
	l.seed ^= l.seed << 13
	l.seed ^= l.seed >> 17
	l.seed ^= l.seed << 5
	return float64(l.seed)/float64(math.MaxUint32)*2 - 1
}

// Reset restarts the LFO at phase 0.
func (l *LFO) Reset() {
	l.phase = 0
	l.held = 0
}
