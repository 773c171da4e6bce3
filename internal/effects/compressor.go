package effects

import "math"

// Compressor is a stereo-linked feed-forward compressor working in dB with
// a soft knee. With a high ratio and fast attack it serves as the master
// limiter.
type Compressor struct {
	thresholdDB float64
	ratio       float64
	kneeDB      float64
	attack      float64
	release     float64
	makeup      float32
	envDB       float64
}

const silenceDB = -120.0

// NewCompressor creates a compressor. Times are in milliseconds.
func NewCompressor(sampleRate int, thresholdDB, ratio, attackMs, releaseMs, makeupDB float32) *Compressor {
	if ratio < 1 {
		ratio = 1
	}
	return &Compressor{
		thresholdDB: float64(thresholdDB),
		ratio:       float64(ratio),
		kneeDB:      6,
		attack:      smoothingCoef(float64(attackMs), sampleRate),
		release:     smoothingCoef(float64(releaseMs), sampleRate),
		makeup:      float32(dbToGain(float64(makeupDB))),
		envDB:       silenceDB,
	}
}

// NewLimiter is a compressor tuned to hold peaks under ceilingDB.
func NewLimiter(sampleRate int, ceilingDB float32) *Compressor {
	c := NewCompressor(sampleRate, ceilingDB, 50, 0.5, 80, 0)
	c.kneeDB = 1
	return c
}

func smoothingCoef(ms float64, sampleRate int) float64 {
	if ms <= 0 {
		return 0
	}
	return math.Exp(-1 / (ms * float64(sampleRate) / 1000))
}

func dbToGain(db float64) float64 { return math.Pow(10, db/20) }

func gainToDB(g float64) float64 {
	if g <= 1e-6 {
		return silenceDB
	}
	return 20 * math.Log10(g)
}

// gainReductionDB is the static curve: how many dB to remove at level.
func (c *Compressor) gainReductionDB(level float64) float64 {
	over := level - c.thresholdDB
	slope := 1 - 1/c.ratio
	switch {
	case 2*over < -c.kneeDB:
		return 0
	case 2*math.Abs(over) <= c.kneeDB:
		x := over + c.kneeDB/2
		return slope * x * x / (2 * c.kneeDB)
	default:
		return slope * over
	}
}

func (c *Compressor) Process(l, r float32) (float32, float32) {
	peak := math.Max(math.Abs(float64(l)), math.Abs(float64(r)))
	level := gainToDB(peak)
	coef := c.release
	if level > c.envDB {
		coef = c.attack
	}
	c.envDB = level + coef*(c.envDB-level)
	g := float32(dbToGain(-c.gainReductionDB(c.envDB))) * c.makeup
	return l * g, r * g
}

func (c *Compressor) Reset() { c.envDB = silenceDB }
