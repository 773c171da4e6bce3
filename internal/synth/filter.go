package synth

import "math"

// FilterUpdateInterval is how many samples pass between ladder coefficient
// and cutoff envelope updates.
const FilterUpdateInterval = 64

const (
	peakMin = 1.0
	peakMax = 10.0
	// Maps Peak 1..10 onto ladder feedback 0..4 (self-oscillation at 4).
	peakToK = 4.0 / (peakMax - peakMin)
	// Restores passband level lost to resonance feedback.
	bassCompensation = 1.0
)

func clampCutoff(fc, sampleRate float64) float64 {
	return clamp64(fc, 20, 0.45*sampleRate)
}

// ladder is a four-pole virtual analog Moog low-pass: four zero-delay
// one-pole stages with global resonance feedback.
type ladder struct {
	s      [4]float64
	alpha  float64
	alpha0 float64
	k      float64
	beta   [4]float64
}

func (l *ladder) reset() {
	l.s = [4]float64{}
}

func (l *ladder) setCoefs(fc, peak, sampleRate float64) {
	fc = clampCutoff(fc, sampleRate)
	g := math.Tan(math.Pi * fc / sampleRate)
	l.alpha = g / (1 + g)
	l.k = math.Max(0, peakToK*(peak-peakMin))
	a2 := l.alpha * l.alpha
	l.alpha0 = 1 / (1 + l.k*a2*a2)
	l.beta[3] = 1 / (1 + g)
	l.beta[2] = l.alpha * l.beta[3]
	l.beta[1] = l.alpha * l.beta[2]
	l.beta[0] = l.alpha * l.beta[1]
}

func (l *ladder) process(x float64) float64 {
	sigma := 0.0
	for i := range l.s {
		sigma += l.beta[i] * l.s[i]
	}
	x *= 1 + bassCompensation*l.k
	u := l.alpha0 * (x - l.k*sigma)
	for i := range l.s {
		vn := (u - l.s[i]) * l.alpha
		lp := vn + l.s[i]
		l.s[i] = vn + lp
		u = lp
	}
	return u
}

// svfCoefs are shared by every voice's high-pass. They change only when
// HpfCutoff or HpfPeak change.
type svfCoefs struct {
	bypass     bool
	k          float64
	a1, a2, a3 float64
}

func (c *svfCoefs) set(fc, peak, sampleRate float64) {
	if fc <= 0 {
		c.bypass = true
		return
	}
	c.bypass = false
	fc = clampCutoff(fc, sampleRate)
	g := math.Tan(math.Pi * fc / sampleRate)
	// Peak 0..4 maps damping 2..0.
	c.k = 2 - clamp64(peak, 0, 3.99)/2
	c.a1 = 1 / (1 + g*(g+c.k))
	c.a2 = g * c.a1
	c.a3 = g * c.a2
}

// svf is a two-pole trapezoidal state-variable filter used as a high-pass.
type svf struct {
	ic1, ic2 float64
}

func (f *svf) reset() { f.ic1, f.ic2 = 0, 0 }

func (f *svf) highPass(x float64, c *svfCoefs) float64 {
	if c.bypass {
		return x
	}
	v3 := x - f.ic2
	v1 := c.a1*f.ic1 + c.a2*v3
	v2 := f.ic2 + c.a2*f.ic1 + c.a3*v3
	f.ic1 = 2*v1 - f.ic1
	f.ic2 = 2*v2 - f.ic2
	return x - c.k*v1 - v2
}
