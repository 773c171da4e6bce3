package beatclock

import (
	"math"
	"testing"
)

type fakeStream struct{ t float64 }

func (f *fakeStream) StreamTime() float64 { return f.t }

func TestBeatTickRoundTrip(t *testing.T) {
	for _, bpm := range []float64{60, 97, 120, 174} {
		c := New(bpm, 48000, nil)
		halfTick := bpm / (60 * 48000) / 2
		for _, b := range []float64{0, 0.25, 1, 3.333, 17.125, 1000.01, 123456.5} {
			got := c.TickTimeToBeatTime(c.BeatTimeToTickTime(b))
			if math.Abs(got-b) > halfTick+1e-9 {
				t.Fatalf("bpm %v: round trip of %v = %v", bpm, b, got)
			}
		}
	}
}

func TestBeatTimeToTickTimeFormula(t *testing.T) {
	c := New(120, 48000, nil)
	if got := c.BeatTimeToTickTime(1); got != 24000 {
		t.Fatalf("one beat at 120bpm = %d ticks, want 24000", got)
	}
	if got := c.TickTimeToBeatTime(96000); got != 4 {
		t.Fatalf("96000 ticks = %v beats, want 4", got)
	}
}

func TestGetNextBeatDenomTime(t *testing.T) {
	denoms := []float64{0.25, 0.1, 1.0 / 3, 1, 4}
	for _, d := range denoms {
		for i := 0; i < 400; i++ {
			b := float64(i) * 0.0737
			next := GetNextBeatDenomTime(b, d)
			if next <= b {
				t.Fatalf("next(%v, %v) = %v not after b", b, d, next)
			}
			if next-b > d+1e-9 {
				t.Fatalf("next(%v, %v) = %v skipped a subdivision", b, d, next)
			}
			k := math.Round(next / d)
			if math.Abs(k*d-next) > 1e-9 {
				t.Fatalf("next(%v, %v) = %v not a multiple of d", b, d, next)
			}
		}
	}
	if got := GetNextBeatDenomTime(2.5, 0); got != 2.5 {
		t.Fatalf("denom 0 should return input, got %v", got)
	}
	if got := GetNextBeatDenomTime(2, 0.5); got != 2.5 {
		t.Fatalf("exact multiple should advance, got %v", got)
	}
}

func TestUpdateCachesAndDetectsNewBeat(t *testing.T) {
	s := &fakeStream{}
	c := New(120, 48000, s)
	s.t = 0.2
	c.Update()
	if c.IsNewBeat() {
		t.Fatalf("0.4 beats should not be a new beat")
	}
	if c.TickTime() != 9600 {
		t.Fatalf("tick = %d, want 9600", c.TickTime())
	}
	s.t = 0.6 // 1.2 beats
	if c.BeatTime() != 0.4 {
		t.Fatalf("beat time changed before Update: %v", c.BeatTime())
	}
	c.Update()
	if !c.IsNewBeat() {
		t.Fatalf("crossing beat 1 should report a new beat")
	}
	c.Update()
	if c.IsNewBeat() {
		t.Fatalf("new beat must only fire once")
	}
}

func TestSetBpmKeepsBeatContinuous(t *testing.T) {
	s := &fakeStream{t: 2}
	c := New(120, 48000, s)
	c.Update()
	before := c.BeatTime()
	c.SetBpm(90)
	c.Update()
	if math.Abs(c.BeatTime()-before) > 1e-9 {
		t.Fatalf("beat jumped from %v to %v", before, c.BeatTime())
	}
	tick := c.BeatTimeToTickTime(before)
	if tick != 96000 {
		t.Fatalf("current beat should map to current tick, got %d", tick)
	}
	s.t = 3
	c.Update()
	if want := before + 1.5; math.Abs(c.BeatTime()-want) > 1e-9 {
		t.Fatalf("beat after 1s at 90bpm = %v, want %v", c.BeatTime(), want)
	}
}

func TestResetEpoch(t *testing.T) {
	s := &fakeStream{t: 5}
	c := New(120, 48000, s)
	c.Update()
	c.ResetEpoch()
	if c.BeatTime() != 0 {
		t.Fatalf("beat after reset = %v", c.BeatTime())
	}
	if got := c.BeatTimeToTickTime(0); got != 240000 {
		t.Fatalf("beat 0 should be at current tick, got %d", got)
	}
}
