// Package patch holds synthesizer parameter sets and their persistence.
package patch

import (
	"fmt"
	"math"
	"strings"
)

// Waveform selects an oscillator shape.
type Waveform int

const (
	Square Waveform = iota
	Saw
	Noise

	NumWaveforms
)

var waveformNames = [NumWaveforms]string{"Square", "Saw", "Noise"}

func (w Waveform) String() string {
	if w < 0 || w >= NumWaveforms {
		return "Unknown"
	}
	return waveformNames[w]
}

// ParseWaveform accepts the names written by Save, ignoring case.
func ParseWaveform(s string) (Waveform, error) {
	for i, name := range waveformNames {
		if strings.EqualFold(name, s) {
			return Waveform(i), nil
		}
	}
	return 0, fmt.Errorf("unknown waveform %q", s)
}

// WaveformFromFloat decodes a waveform stored in a Patch slot.
func WaveformFromFloat(v float32) Waveform {
	switch {
	case v < 0.5:
		return Square
	case v < 1.5:
		return Saw
	default:
		return Noise
	}
}

// Patch is a flat parameter array, one slot per ParamID.
type Patch [NumParams]float32

// Default returns a patch with every parameter at its default value.
func Default() Patch {
	var p Patch
	for i := ParamID(0); i < NumParams; i++ {
		p[i] = paramInfo[i].Default
	}
	return p
}

// Get returns the value of id, or 0 for an invalid id.
func (p *Patch) Get(id ParamID) float32 {
	if !id.Valid() {
		return 0
	}
	return p[id]
}

// Set stores v into id. Invalid ids are ignored.
func (p *Patch) Set(id ParamID, v float32) {
	if !id.Valid() {
		return
	}
	p[id] = v
}

func (p *Patch) Bool(id ParamID) bool { return p.Get(id) >= 0.5 }

func (p *Patch) Waveform(id ParamID) Waveform { return WaveformFromFloat(p.Get(id)) }

// UnisonCount rounds the Unison slot to an odd count in [1, MaxUnison].
func (p *Patch) UnisonCount() int {
	n := int(math.Round(float64(p.Get(Unison))))
	if n < 1 {
		n = 1
	}
	if n > MaxUnison {
		n = MaxUnison
	}
	if n%2 == 0 {
		n--
	}
	return n
}

// ADSR is an envelope specification in seconds, sustain as a level.
type ADSR struct {
	Attack  float32
	Decay   float32
	Sustain float32
	Release float32
}

// Envelope identifies one of the three per-voice envelopes.
type Envelope int

const (
	AmpEnv Envelope = iota
	CutoffEnv
	PitchEnv
)

var envelopeBase = [...]ParamID{AmpEnv: AmpEnvAttack, CutoffEnv: CutoffEnvAttack, PitchEnv: PitchEnvAttack}

// ADSR reads the four consecutive envelope parameters for e.
func (p *Patch) ADSR(e Envelope) ADSR {
	base := envelopeBase[e]
	return ADSR{
		Attack:  p[base],
		Decay:   p[base+1],
		Sustain: p[base+2],
		Release: p[base+3],
	}
}

// SetADSR writes spec into the four parameters of e.
func (p *Patch) SetADSR(e Envelope, spec ADSR) {
	base := envelopeBase[e]
	p[base] = spec.Attack
	p[base+1] = spec.Decay
	p[base+2] = spec.Sustain
	p[base+3] = spec.Release
}

// EnvelopeOf reports which envelope id belongs to, if any.
func EnvelopeOf(id ParamID) (Envelope, bool) {
	for e, base := range envelopeBase {
		if id >= base && id < base+4 {
			return Envelope(e), true
		}
	}
	return 0, false
}
