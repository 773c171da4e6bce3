package effects

// Reverb is a small stereo Schroeder/Moorer reverb: damped feedback combs in
// parallel per side, then two series allpasses. The right side's delays are
// offset by a fixed spread to decorrelate the channels.
type Reverb struct {
	left, right reverbSide
	wet         float32
}

type reverbSide struct {
	combs   [4]dampedComb
	allpass [2]allpass
}

// Comb tunings in samples at 44.1kHz, scaled to the actual rate.
var (
	combTunings    = [4]int{1116, 1188, 1277, 1356}
	allpassTunings = [2]int{556, 441}
)

const stereoSpread = 23

type dampedComb struct {
	buf      []float32
	pos      int
	feedback float32
	damp     float32
	store    float32
}

type allpass struct {
	buf []float32
	pos int
}

// NewReverb creates a reverb. roomSize and damping are 0..1; wet is the
// mix of the reverberated signal.
func NewReverb(sampleRate int, roomSize, damping, wet float32) *Reverb {
	scale := float64(sampleRate) / 44100
	feedback := 0.7 + 0.28*clamp(roomSize, 0, 1)
	damp := clamp(damping, 0, 1) * 0.4
	r := &Reverb{wet: clamp(wet, 0, 1)}
	r.left.init(scale, 0, feedback, damp)
	r.right.init(scale, stereoSpread, feedback, damp)
	return r
}

func (s *reverbSide) init(scale float64, spread int, feedback, damp float32) {
	for i := range s.combs {
		n := max(int(float64(combTunings[i]+spread)*scale), 1)
		s.combs[i] = dampedComb{buf: make([]float32, n), feedback: feedback, damp: damp}
	}
	for i := range s.allpass {
		n := max(int(float64(allpassTunings[i]+spread)*scale), 1)
		s.allpass[i] = allpass{buf: make([]float32, n)}
	}
}

func (s *reverbSide) process(in float32) float32 {
	var out float32
	for i := range s.combs {
		out += s.combs[i].process(in)
	}
	for i := range s.allpass {
		out = s.allpass[i].process(out)
	}
	return out
}

func (s *reverbSide) reset() {
	for i := range s.combs {
		clear(s.combs[i].buf)
		s.combs[i].pos = 0
		s.combs[i].store = 0
	}
	for i := range s.allpass {
		clear(s.allpass[i].buf)
		s.allpass[i].pos = 0
	}
}

func (r *Reverb) Process(l, rt float32) (float32, float32) {
	in := (l + rt) * 0.015
	outL := r.left.process(in)
	outR := r.right.process(in)
	dry := 1 - r.wet
	return l*dry + outL*r.wet, rt*dry + outR*r.wet
}

func (r *Reverb) Reset() {
	r.left.reset()
	r.right.reset()
}

func (c *dampedComb) process(in float32) float32 {
	out := c.buf[c.pos]
	c.store = out*(1-c.damp) + c.store*c.damp
	c.buf[c.pos] = in + c.store*c.feedback
	if c.pos++; c.pos == len(c.buf) {
		c.pos = 0
	}
	return out
}

func (a *allpass) process(in float32) float32 {
	delayed := a.buf[a.pos]
	a.buf[a.pos] = in + delayed*0.5
	if a.pos++; a.pos == len(a.buf) {
		a.pos = 0
	}
	return delayed - in
}
