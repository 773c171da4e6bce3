package effects

import "math"

// Distortion is a tanh waveshaper with input drive, output level and an
// optional one-pole tone filter.
type Distortion struct {
	drive float32
	level float32
	tone  float32 // lowpass coefficient; 0 bypasses
	state [2]float32
}

// NewDistortion creates a distortion. toneHz of 0, or at or above Nyquist,
// disables the tone filter.
func NewDistortion(sampleRate int, drive, level, toneHz float32) *Distortion {
	d := &Distortion{drive: drive, level: level}
	if toneHz > 0 && toneHz < float32(sampleRate)/2 {
		d.tone = float32(1 - math.Exp(-2*math.Pi*float64(toneHz)/float64(sampleRate)))
	}
	return d
}

func (d *Distortion) shape(ch int, x float32) float32 {
	y := float32(math.Tanh(float64(x*d.drive))) * d.level
	if d.tone == 0 {
		return y
	}
	d.state[ch] += d.tone * (y - d.state[ch])
	return d.state[ch]
}

func (d *Distortion) Process(l, r float32) (float32, float32) {
	return d.shape(0, l), d.shape(1, r)
}

func (d *Distortion) Reset() { d.state = [2]float32{} }
