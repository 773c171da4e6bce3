package effects

// Line is a mono feedback delay with a fixed maximum length allocated up
// front, so its time can change on the audio thread without allocating.
type Line struct {
	buf      []float32
	pos      int
	length   int
	feedback float32
	wet      float32
}

// NewLine allocates room for maxSeconds of delay.
func NewLine(sampleRate int, maxSeconds float64) *Line {
	n := int(maxSeconds*float64(sampleRate)) + 1
	if n < 2 {
		n = 2
	}
	return &Line{buf: make([]float32, n), length: n - 1, feedback: 0, wet: 0}
}

// SetParams updates delay time in seconds, feedback (clamped to 0.95) and
// wet level.
func (d *Line) SetParams(sampleRate int, seconds float64, feedback, wet float32) {
	n := int(seconds * float64(sampleRate))
	if n < 1 {
		n = 1
	}
	if n > len(d.buf)-1 {
		n = len(d.buf) - 1
	}
	d.length = n
	d.feedback = clamp(feedback, 0, 0.95)
	d.wet = clamp(wet, 0, 1)
}

// Active reports whether the line contributes to the output.
func (d *Line) Active() bool { return d.wet > 0 }

// Tick writes x into the line and returns x plus the wet delayed signal.
func (d *Line) Tick(x float32) float32 {
	read := d.pos - d.length
	if read < 0 {
		read += len(d.buf)
	}
	delayed := d.buf[read]
	d.buf[d.pos] = x + delayed*d.feedback
	d.pos++
	if d.pos == len(d.buf) {
		d.pos = 0
	}
	return x + delayed*d.wet
}

func (d *Line) Reset() {
	for i := range d.buf {
		d.buf[i] = 0
	}
	d.pos = 0
}

// Delay is a stereo echo with cross-channel feedback for the master chain.
type Delay struct {
	bufL, bufR []float32
	pos        int
	feedback   float32
	cross      float32
	wet        float32
}

// NewDelay creates a stereo delay. feedback is clamped to 0.95.
func NewDelay(sampleRate int, delayMs float64, feedback, cross, wet float32) *Delay {
	n := int(delayMs * float64(sampleRate) / 1000)
	if n < 1 {
		n = 1
	}
	return &Delay{
		bufL:     make([]float32, n),
		bufR:     make([]float32, n),
		feedback: clamp(feedback, 0, 0.95),
		cross:    clamp(cross, 0, 1),
		wet:      clamp(wet, 0, 1),
	}
}

func (d *Delay) Process(l, r float32) (float32, float32) {
	dl, dr := d.bufL[d.pos], d.bufR[d.pos]
	straight := d.feedback * (1 - d.cross)
	crossed := d.feedback * d.cross
	d.bufL[d.pos] = l + dl*straight + dr*crossed
	d.bufR[d.pos] = r + dr*straight + dl*crossed
	if d.pos++; d.pos == len(d.bufL) {
		d.pos = 0
	}
	return l*(1-d.wet) + dl*d.wet, r*(1-d.wet) + dr*d.wet
}

func (d *Delay) Reset() {
	clear(d.bufL)
	clear(d.bufR)
	d.pos = 0
}

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
