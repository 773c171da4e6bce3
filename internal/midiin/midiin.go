// Package midiin turns live MIDI input into engine events.
package midiin

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"

	"github.com/cbegin/audial-go/internal/event"
	"github.com/cbegin/audial-go/internal/patch"
)

var ErrNoPorts = errors.New("no midi input ports")

// Controller numbers with fixed meanings.
const (
	CCAllSoundOff = 120
	CCAllNotesOff = 123
)

// DefaultCCMap binds common controllers to patch parameters.
func DefaultCCMap() map[uint8]patch.ParamID {
	return map[uint8]patch.ParamID{
		1:  patch.CutoffLFOGain,
		5:  patch.Portamento,
		7:  patch.Gain,
		71: patch.Peak,
		74: patch.Cutoff,
	}
}

// Translator converts MIDI messages to events. It pairs each NoteOff with
// the id of the NoteOn it ends so a retriggered note is not cut by a stale
// release.
type Translator struct {
	// Target sends everything to one synth channel. When negative, the MIDI
	// channel is used modulo Channels.
	Target   int
	Channels int
	CC       map[uint8]patch.ParamID
	// Now stamps events. Live input normally uses the current stream tick so
	// the next callback plays it immediately.
	Now func() int64

	nextID int32
	ids    [16][128]int32
}

func NewTranslator(channels int, now func() int64) *Translator {
	return &Translator{Target: -1, Channels: max(channels, 1), CC: DefaultCCMap(), Now: now}
}

func (t *Translator) route(ch uint8) int {
	if t.Target >= 0 {
		return t.Target
	}
	return int(ch) % t.Channels
}

// Translate returns the event for msg, or false when msg has no meaning
// for the engine.
func (t *Translator) Translate(msg midi.Message) (event.Event, bool) {
	var ch, key, vel, cc, val uint8
	tick := t.Now()
	switch {
	case msg.GetNoteStart(&ch, &key, &vel):
		t.nextID++
		if t.nextID <= 0 {
			t.nextID = 1
		}
		t.ids[ch&15][key&127] = t.nextID
		return event.NewNoteOn(t.route(ch), tick, int(key), float32(vel)/127, t.nextID), true
	case msg.GetNoteEnd(&ch, &key):
		id := t.ids[ch&15][key&127]
		t.ids[ch&15][key&127] = 0
		return event.NewNoteOff(t.route(ch), tick, int(key), id), true
	case msg.GetControlChange(&ch, &cc, &val):
		if cc == CCAllNotesOff || cc == CCAllSoundOff {
			return event.NewAllNotesOff(t.route(ch), tick), true
		}
		id, ok := t.CC[cc]
		if !ok {
			return event.Event{}, false
		}
		info := id.Info()
		v := info.Min + float32(val)/127*(info.Max-info.Min)
		return event.NewSynthParam(t.route(ch), tick, id, v, 0), true
	}
	return event.Event{}, false
}

// Input listens on a MIDI port and forwards translated events on a channel.
// The producer drains Events and pushes to the engine, keeping the engine's
// queue single-producer.
type Input struct {
	port    drivers.In
	tr      *Translator
	events  chan event.Event
	stop    func()
	dropped atomic.Uint64
	log     *slog.Logger
}

// Open starts listening on port. buffer is the capacity of Events; messages
// arriving while it is full are dropped and counted.
func Open(port drivers.In, tr *Translator, buffer int, logger *slog.Logger) (*Input, error) {
	if logger == nil {
		logger = slog.Default()
	}
	in := &Input{port: port, tr: tr, events: make(chan event.Event, max(buffer, 1)), log: logger}
	if err := port.Open(); err != nil {
		return nil, fmt.Errorf("open midi %s: %w", port, err)
	}
	stop, err := midi.ListenTo(port, in.receive, midi.HandleError(func(err error) {
		in.log.Warn("midi listener error", "port", port.String(), "err", err)
	}))
	if err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("listen midi %s: %w", port, err)
	}
	in.stop = stop
	in.log.Info("midi input connected", "port", port.String())
	return in, nil
}

// OpenByName finds an input port by name, or the first port when name is
// empty.
func OpenByName(name string, tr *Translator, buffer int, logger *slog.Logger) (*Input, error) {
	var (
		port drivers.In
		err  error
	)
	if name == "" {
		ins := midi.GetInPorts()
		if len(ins) == 0 {
			return nil, ErrNoPorts
		}
		port = ins[0]
	} else if port, err = midi.FindInPort(name); err != nil {
		return nil, fmt.Errorf("midi input %q: %w", name, err)
	}
	return Open(port, tr, buffer, logger)
}

func (in *Input) receive(msg midi.Message, _ int32) {
	e, ok := in.tr.Translate(msg)
	if !ok {
		in.log.Debug("unhandled midi message", "msg", msg.String())
		return
	}
	select {
	case in.events <- e:
	default:
		in.dropped.Add(1)
	}
}

func (in *Input) Events() <-chan event.Event { return in.events }

// Dropped counts messages lost to a full Events channel.
func (in *Input) Dropped() uint64 { return in.dropped.Load() }

func (in *Input) Close() error {
	if in.stop != nil {
		in.stop()
		in.stop = nil
	}
	if in.port == nil {
		return nil
	}
	in.log.Info("midi input closed", "port", in.port.String())
	return in.port.Close()
}

// Ports lists the names of the available input ports.
func Ports() []string {
	var names []string
	for _, p := range midi.GetInPorts() {
		names = append(names, p.String())
	}
	return names
}
