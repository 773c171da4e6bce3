package effects

import "math"

// Chorus is a stereo chorus: one delay line per side read through a
// fractional tap swept by sine LFOs a quarter cycle apart.
type Chorus struct {
	left, right modLine
	base        float64
	depth       float64
	step        float64
	phase       float64
	wet         float32
}

type modLine struct {
	buf []float32
	pos int
}

// NewChorus creates a chorus with a base delay and sweep depth in
// milliseconds, an LFO rate in Hz and a wet mix.
func NewChorus(sampleRate int, delayMs, depthMs, rateHz, wet float32) *Chorus {
	sr := float64(sampleRate)
	base := float64(delayMs) * sr / 1000
	depth := float64(depthMs) * sr / 1000
	if depth > base {
		depth = base
	}
	n := int(base+depth) + 3
	return &Chorus{
		left:  modLine{buf: make([]float32, n)},
		right: modLine{buf: make([]float32, n)},
		base:  base,
		depth: depth,
		step:  float64(rateHz) / sr,
		wet:   clamp(wet, 0, 1),
	}
}

func (m *modLine) write(x float32) {
	m.buf[m.pos] = x
	if m.pos++; m.pos == len(m.buf) {
		m.pos = 0
	}
}

// tap reads delay samples behind the newest write with linear
// interpolation.
func (m *modLine) tap(delay float64) float32 {
	read := float64(m.pos-1) - delay
	n := float64(len(m.buf))
	for read < 0 {
		read += n
	}
	i := int(read)
	frac := float32(read - float64(i))
	j := i + 1
	if j == len(m.buf) {
		j = 0
	}
	return m.buf[i]*(1-frac) + m.buf[j]*frac
}

func (c *Chorus) Process(l, r float32) (float32, float32) {
	c.left.write(l)
	c.right.write(r)
	sl := math.Sin(2 * math.Pi * c.phase)
	sr := math.Cos(2 * math.Pi * c.phase)
	if c.phase += c.step; c.phase >= 1 {
		c.phase--
	}
	dl := c.left.tap(c.base + c.depth*sl)
	dr := c.right.tap(c.base + c.depth*sr)
	dry := 1 - c.wet
	return l*dry + dl*c.wet, r*dry + dr*c.wet
}

func (c *Chorus) Reset() {
	clear(c.left.buf)
	clear(c.right.buf)
	c.left.pos, c.right.pos = 0, 0
	c.phase = 0
}
