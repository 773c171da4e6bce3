package main

import (
	"context"
	"log/slog"
	"sort"
	"time"

	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"github.com/cbegin/audial-go"
	"github.com/cbegin/audial-go/internal/beatclock"
	"github.com/cbegin/audial-go/internal/beatevent"
	"github.com/cbegin/audial-go/internal/midiin"
	"github.com/cbegin/audial-go/internal/script"
)

const (
	frameInterval = 16 * time.Millisecond
	// lookahead is how far ahead of the clock script events are queued.
	lookahead = 1.0
)

// sink is the part of audial.Context the producer loop feeds.
type sink interface {
	AddEvent(e audial.Event) error
}

// sequence feeds a beat script to the engine a little ahead of the clock,
// optionally looping it.
type sequence struct {
	events []beatevent.BeatEvent
	loop   bool
	length float64
	next   int
	cycle  int
}

func newSequence(events []beatevent.BeatEvent, loop bool) *sequence {
	sorted := make([]beatevent.BeatEvent, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].BeatTime < sorted[j].BeatTime })
	return &sequence{events: sorted, loop: loop, length: max(scriptLength(sorted), 1)}
}

// feed queues every event starting before now+lookahead. An event the sink
// refuses is retried next frame.
func (s *sequence) feed(clock *beatclock.Clock, out sink) {
	if len(s.events) == 0 {
		return
	}
	horizon := clock.BeatTime() + lookahead
	for {
		if s.next == len(s.events) {
			if !s.loop {
				return
			}
			s.next = 0
			s.cycle++
		}
		be := s.events[s.next].Offset(float64(s.cycle) * s.length)
		if be.BeatTime >= horizon {
			return
		}
		if err := out.AddEvent(be.ToTickEvent(clock)); err != nil {
			return
		}
		s.next++
	}
}

// done reports whether a non-looping script has been queued and has had
// time to finish by beat.
func (s *sequence) done(beat float64) bool {
	return !s.loop && s.next == len(s.events) && beat >= s.length+1
}

type producer struct {
	ctx    *audial.Context
	clock  *beatclock.Clock
	seq    *sequence
	runner *script.Runner
	midi   *midiin.Input
	mon    *monitor
	log    *slog.Logger
}

// run is the single producer goroutine: every frame it samples the clock,
// feeds the script, runs Lua callbacks, forwards MIDI and handles keys.
// Without an open-ended source it returns when the script has played.
func (p *producer) run(ctx context.Context, openEnded bool) {
	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()

	var keys <-chan keyPress
	if p.mon != nil {
		keys = p.mon.Keys()
	}
	var midiEvents <-chan audial.Event
	if p.midi != nil {
		midiEvents = p.midi.Events()
	}

	for {
		select {
		case <-ctx.Done():
			return
		case e := <-midiEvents:
			p.ctx.AddEvent(e)
		case k, ok := <-keys:
			if !ok {
				return
			}
			p.mon.Play(k, p.ctx)
		case <-ticker.C:
			p.clock.Update()
			p.seq.feed(p.clock, p.ctx)
			if p.runner != nil {
				if err := p.runner.Update(); err != nil {
					p.log.Error("script", "err", err)
				}
			}
			if p.mon != nil {
				p.mon.Draw(p.clock)
			}
			if !openEnded && p.seq.done(p.clock.BeatTime()) {
				p.log.Info("script finished", "beat", p.clock.BeatTime(), "refused", p.ctx.Refused())
				return
			}
		}
	}
}
