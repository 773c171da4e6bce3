// Package beatevent schedules events in beats and converts them to sample
// ticks against a beat clock.
package beatevent

import (
	"github.com/cbegin/audial-go/internal/beatclock"
	"github.com/cbegin/audial-go/internal/event"
)

// BeatEvent is an event whose time is given in beats. Event.TimeInTicks is
// ignored until the event is converted.
type BeatEvent struct {
	Event    event.Event
	BeatTime float64
	// RampBeats is the SynthParam ramp length in beats.
	RampBeats float64
}

// ToTickEvent stamps the event with the tick at which BeatTime occurs.
func (b BeatEvent) ToTickEvent(c *beatclock.Clock) event.Event {
	e := b.Event
	e.TimeInTicks = c.BeatTimeToTickTime(b.BeatTime)
	if e.Type == event.SynthParam && b.RampBeats > 0 {
		e.Param.RampTicks = c.BeatDurationToTicks(b.RampBeats)
	}
	return e
}

// Offset returns a copy of b moved by beats.
func (b BeatEvent) Offset(beats float64) BeatEvent {
	b.BeatTime += beats
	return b
}

// AtOffsetFromNextDenom schedules b relative to the next multiple of denom
// after the clock's current beat, treating BeatTime as an offset. When the
// previous multiple was passed less than slack beats ago it is used instead,
// so a slightly late call still lands on the beat it was meant for.
func AtOffsetFromNextDenom(denom float64, b BeatEvent, c *beatclock.Clock, slack float64) event.Event {
	start := NextDenomStart(c.BeatTime(), denom, slack)
	e := b.Event
	e.TimeInTicks = c.BeatTimeToTickTime(start) + c.BeatDurationToTicks(b.BeatTime)
	if e.Type == event.SynthParam && b.RampBeats > 0 {
		e.Param.RampTicks = c.BeatDurationToTicks(b.RampBeats)
	}
	return e
}

// NextDenomStart returns the multiple of denom that AtOffsetFromNextDenom
// measures from when the current beat is now.
func NextDenomStart(now, denom, slack float64) float64 {
	start := beatclock.GetNextBeatDenomTime(now, denom)
	if late := now - (start - denom); denom > 0 && late >= 0 && late <= slack {
		start -= denom
	}
	return start
}

// ToTickEvents converts a whole sequence, shifted by offset beats.
func ToTickEvents(c *beatclock.Clock, events []BeatEvent, offset float64) []event.Event {
	out := make([]event.Event, len(events))
	for i, b := range events {
		out[i] = b.Offset(offset).ToTickEvent(c)
	}
	return out
}
