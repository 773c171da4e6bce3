// Package beatclock converts between stream seconds, sample ticks and beats.
package beatclock

import "math"

// StreamClock reports the audio driver's running stream time in seconds.
type StreamClock interface {
	StreamTime() float64
}

// Clock caches one sample of the stream clock per game frame so that every
// consumer in that frame agrees on "now".
type Clock struct {
	bpm        float64
	sampleRate float64
	source     StreamClock

	// epoch is the stream beat that maps to beat time 0.
	epoch float64

	audioTime    float64
	beatTime     float64
	prevBeatTime float64
	tickTime     int64
	newBeat      bool
}

// New creates a clock. source may be nil for pure conversions.
func New(bpm float64, sampleRate int, source StreamClock) *Clock {
	if bpm <= 0 {
		bpm = 120
	}
	return &Clock{bpm: bpm, sampleRate: float64(sampleRate), source: source}
}

// Update samples the stream clock. Call exactly once per game frame.
func (c *Clock) Update() {
	if c.source == nil {
		return
	}
	c.audioTime = c.source.StreamTime()
	c.prevBeatTime = c.beatTime
	c.beatTime = c.audioTime*c.bpm/60 - c.epoch
	c.tickTime = int64(math.Round(c.audioTime * c.sampleRate))
	c.newBeat = math.Floor(c.beatTime) != math.Floor(c.prevBeatTime)
}

func (c *Clock) BeatTime() float64  { return c.beatTime }
func (c *Clock) AudioTime() float64 { return c.audioTime }
func (c *Clock) TickTime() int64    { return c.tickTime }
func (c *Clock) Bpm() float64       { return c.bpm }
func (c *Clock) SampleRate() int    { return int(c.sampleRate) }

// IsNewBeat reports whether the last Update crossed a whole beat.
func (c *Clock) IsNewBeat() bool { return c.newBeat }

// SetBpm changes tempo without moving the current beat position.
func (c *Clock) SetBpm(bpm float64) {
	if bpm <= 0 {
		return
	}
	c.bpm = bpm
	c.epoch = c.audioTime*c.bpm/60 - c.beatTime
}

// ResetEpoch makes the current position beat 0.
func (c *Clock) ResetEpoch() {
	c.epoch = c.audioTime * c.bpm / 60
	c.beatTime = 0
	c.prevBeatTime = 0
	c.newBeat = false
}

// BeatTimeToTickTime returns the sample index at which beatTime occurs.
func (c *Clock) BeatTimeToTickTime(beatTime float64) int64 {
	return int64(math.Round((beatTime + c.epoch) * (60 / c.bpm) * c.sampleRate))
}

// TickTimeToBeatTime is the inverse of BeatTimeToTickTime.
func (c *Clock) TickTimeToBeatTime(tick int64) float64 {
	return float64(tick)*c.bpm/(60*c.sampleRate) - c.epoch
}

// BeatDurationToTicks converts a beat length (not a position) into ticks.
func (c *Clock) BeatDurationToTicks(beats float64) int64 {
	return int64(math.Round(beats * (60 / c.bpm) * c.sampleRate))
}

// GetNextBeatDenomTime returns the first multiple of denom strictly after
// beatTime. A non-positive denom returns beatTime unchanged.
func GetNextBeatDenomTime(beatTime, denom float64) float64 {
	if denom <= 0 {
		return beatTime
	}
	next := math.Floor(beatTime/denom)*denom + denom
	// b/d can round up to the next integer.
	for next <= beatTime && next+denom > next {
		next += denom
	}
	return next
}
