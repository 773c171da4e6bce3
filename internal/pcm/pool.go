package pcm

import (
	"sync/atomic"

	"github.com/cbegin/audial-go/internal/event"
	"github.com/cbegin/audial-go/internal/rtlog"
)

// NumVoices is the size of the PCM voice pool.
const NumVoices = 8

// voice is a playing sound; sound is -1 while the slot is free.
type voice struct {
	sound    int
	group    int
	pos      int
	velocity float32
	loop     bool
	started  int64
}

// Pool plays sounds from a Bank. It is owned by the audio thread.
type Pool struct {
	bank   *Bank
	voices [NumVoices]voice
	log    *rtlog.Ring

	drops   atomic.Uint64
	missing atomic.Uint64
}

// NewPool creates a pool over bank. bank and log may be nil.
func NewPool(bank *Bank, log *rtlog.Ring) *Pool {
	p := &Pool{bank: bank, log: log}
	for i := range p.voices {
		p.voices[i].sound = -1
	}
	return p
}

// Handle applies a PCM-related event at tick. Other event types are ignored.
func (p *Pool) Handle(e *event.Event, tick int64) {
	switch e.Type {
	case event.PlayPcm:
		p.Play(e.Pcm.Sound, e.Pcm.Velocity, e.Pcm.Loop, tick)
	case event.StopPcm:
		p.Stop(e.Pcm.Sound)
	case event.AllNotesOff:
		p.StopAll()
	}
}

// Play starts sound at tick. A second start of the same sound at the same
// tick is ignored; a later start retriggers the playing voice. Starting a
// sound in an exclusive group takes over the voice of whichever group
// member is playing.
func (p *Pool) Play(sound int, velocity float32, loop bool, tick int64) {
	s := p.bank.Sound(sound)
	if s == nil {
		p.missing.Add(1)
		p.log.Log(rtlog.Record{Code: rtlog.PcmMissingSound, Channel: -1, Tick: tick, A: int64(sound)})
		return
	}
	slot := -1
	for i := range p.voices {
		v := &p.voices[i]
		if v.sound < 0 {
			continue
		}
		if v.sound == sound || (s.Group != NoGroup && v.group == s.Group) {
			if v.sound == sound && v.started == tick {
				return
			}
			if slot < 0 {
				slot = i
			} else {
				v.sound = -1
			}
		}
	}
	if slot < 0 {
		for i := range p.voices {
			if p.voices[i].sound < 0 {
				slot = i
				break
			}
		}
	}
	if slot < 0 {
		p.drops.Add(1)
		p.log.Log(rtlog.Record{Code: rtlog.PcmPoolFull, Channel: -1, Tick: tick, A: int64(sound)})
		return
	}
	p.voices[slot] = voice{
		sound:    sound,
		group:    s.Group,
		velocity: velocity,
		loop:     loop,
		started:  tick,
	}
}

// Stop silences every voice playing sound.
func (p *Pool) Stop(sound int) {
	for i := range p.voices {
		if p.voices[i].sound == sound {
			p.voices[i].sound = -1
		}
	}
}

func (p *Pool) StopAll() {
	for i := range p.voices {
		p.voices[i].sound = -1
	}
}

// Next mixes one sample of every playing voice and advances them.
func (p *Pool) Next() float32 {
	var sum float32
	for i := range p.voices {
		v := &p.voices[i]
		if v.sound < 0 {
			continue
		}
		samples := p.bank.sounds[v.sound].Samples
		sum += samples[v.pos] * v.velocity
		v.pos++
		if v.pos >= len(samples) {
			if v.loop {
				v.pos = 0
			} else {
				v.sound = -1
			}
		}
	}
	return sum
}

// Active counts playing voices.
func (p *Pool) Active() int {
	n := 0
	for i := range p.voices {
		if p.voices[i].sound >= 0 {
			n++
		}
	}
	return n
}

// Playing reports whether sound has a voice.
func (p *Pool) Playing(sound int) bool {
	for i := range p.voices {
		if p.voices[i].sound == sound {
			return true
		}
	}
	return false
}

// Drops counts starts rejected because every voice was busy.
func (p *Pool) Drops() uint64 { return p.drops.Load() }

// Missing counts starts that referenced an unknown or empty sound.
func (p *Pool) Missing() uint64 { return p.missing.Load() }
