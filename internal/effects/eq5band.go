package effects

import (
	"math"
	"sync/atomic"
)

// EQBands is the number of bands of the master equalizer.
const EQBands = 5

// Crossover frequencies between adjacent bands.
var eqCrossovers = [EQBands - 1]float64{200, 800, 2500, 8000}

// EQ5Band splits the signal with cascaded one-pole low-passes and sums the
// bands with individual gains. Gains are linear and may be changed from any
// goroutine while the audio thread runs.
type EQ5Band struct {
	gains [EQBands]atomic.Uint32
	alpha [EQBands - 1]float32
	l, r  bandSplitter
}

type bandSplitter struct {
	lp [EQBands - 1]float32
}

// NewEQ5Band creates an equalizer with every band at unity.
func NewEQ5Band(sampleRate int) *EQ5Band {
	eq := &EQ5Band{}
	for i, fc := range eqCrossovers {
		eq.alpha[i] = float32(1 - math.Exp(-2*math.Pi*fc/float64(sampleRate)))
	}
	for i := range eq.gains {
		eq.gains[i].Store(math.Float32bits(1))
	}
	return eq
}

// SetGain sets band's linear gain; out-of-range bands are ignored.
func (eq *EQ5Band) SetGain(band int, gain float32) {
	if band < 0 || band >= EQBands {
		return
	}
	eq.gains[band].Store(math.Float32bits(max(gain, 0)))
}

func (eq *EQ5Band) Gain(band int) float32 {
	if band < 0 || band >= EQBands {
		return 1
	}
	return math.Float32frombits(eq.gains[band].Load())
}

// split peels each band off the remainder, lowest first, and returns the
// gain-weighted sum.
func (s *bandSplitter) split(x float32, alpha *[EQBands - 1]float32, gains *[EQBands]float32) float32 {
	var out float32
	rest := x
	for i := range s.lp {
		s.lp[i] += alpha[i] * (rest - s.lp[i])
		out += s.lp[i] * gains[i]
		rest -= s.lp[i]
	}
	return out + rest*gains[EQBands-1]
}

func (eq *EQ5Band) Process(l, r float32) (float32, float32) {
	var g [EQBands]float32
	flat := true
	for i := range g {
		g[i] = math.Float32frombits(eq.gains[i].Load())
		flat = flat && g[i] == 1
	}
	ol, or := eq.l.split(l, &eq.alpha, &g), eq.r.split(r, &eq.alpha, &g)
	if flat {
		// Keep the band state moving but pass the input bit-exact.
		return l, r
	}
	return ol, or
}

func (eq *EQ5Band) Reset() {
	eq.l = bandSplitter{}
	eq.r = bandSplitter{}
}
