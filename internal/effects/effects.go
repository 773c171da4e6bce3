// Package effects holds the per-channel delay line and the stereo effects
// that make up the optional master chain.
package effects

import (
	"fmt"
	"strings"
)

// Effector processes one stereo frame.
type Effector interface {
	Process(l, r float32) (float32, float32)
	Reset()
}

// Chain applies a sequence of effects in order.
type Chain struct {
	effects []Effector
}

func NewChain(effects ...Effector) *Chain {
	return &Chain{effects: effects}
}

func (c *Chain) Process(l, r float32) (float32, float32) {
	for _, e := range c.effects {
		l, r = e.Process(l, r)
	}
	return l, r
}

func (c *Chain) Reset() {
	for _, e := range c.effects {
		e.Reset()
	}
}

func (c *Chain) Add(e Effector) {
	c.effects = append(c.effects, e)
}

func (c *Chain) Len() int { return len(c.effects) }

// Spec describes one effect of a configured chain. Missing params take the
// effect's defaults.
type Spec struct {
	Type   string    `toml:"type"`
	Params []float64 `toml:"params"`
}

// Build creates a chain from specs. It returns nil for an empty list.
func Build(specs []Spec, sampleRate int) (*Chain, error) {
	if len(specs) == 0 {
		return nil, nil
	}
	chain := NewChain()
	for i, s := range specs {
		e, err := create(s, sampleRate)
		if err != nil {
			return nil, fmt.Errorf("effect %d: %w", i, err)
		}
		chain.Add(e)
	}
	return chain, nil
}

func create(s Spec, sampleRate int) (Effector, error) {
	param := func(i int, def float64) float64 {
		if i < len(s.Params) {
			return s.Params[i]
		}
		return def
	}
	f32 := func(i int, def float64) float32 { return float32(param(i, def)) }
	switch strings.ToLower(strings.TrimSpace(s.Type)) {
	case "delay":
		return NewDelay(sampleRate,
			param(0, 250), // ms
			f32(1, 0.4),   // feedback
			f32(2, 0.2),   // cross
			f32(3, 0.3),   // wet
		), nil
	case "reverb":
		return NewReverb(sampleRate,
			f32(0, 0.5),  // room size
			f32(1, 0.5),  // damping
			f32(2, 0.25), // wet
		), nil
	case "chorus":
		return NewChorus(sampleRate,
			f32(0, 15),  // delay ms
			f32(1, 3),   // depth ms
			f32(2, 0.8), // rate Hz
			f32(3, 0.4), // wet
		), nil
	case "dist", "distortion":
		return NewDistortion(sampleRate,
			f32(0, 4),    // drive
			f32(1, 0.5),  // level
			f32(2, 8000), // tone Hz
		), nil
	case "comp", "compressor":
		return NewCompressor(sampleRate,
			f32(0, -18), // threshold dB
			f32(1, 4),   // ratio
			f32(2, 5),   // attack ms
			f32(3, 100), // release ms
			f32(4, 3),   // makeup dB
		), nil
	case "limiter":
		return NewLimiter(sampleRate, f32(0, -1)), nil
	case "eq":
		eq := NewEQ5Band(sampleRate)
		for band := 0; band < EQBands; band++ {
			eq.SetGain(band, f32(band, 1))
		}
		return eq, nil
	}
	return nil, fmt.Errorf("unknown effect type %q", s.Type)
}
