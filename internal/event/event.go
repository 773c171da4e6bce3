// Package event defines the timestamped messages sent from the producer
// thread to the audio callback.
package event

import "github.com/cbegin/audial-go/internal/patch"

// QueueCapacity is the size of the producer to audio-thread channel.
const QueueCapacity = 64

// Type tags which payload of an Event is meaningful.
type Type uint8

const (
	None Type = iota
	NoteOn
	NoteOff
	AllNotesOff
	PlayPcm
	StopPcm
	SynthParam
	SetGain
)

var typeNames = [...]string{
	None:        "none",
	NoteOn:      "on",
	NoteOff:     "off",
	AllNotesOff: "alloff",
	PlayPcm:     "play",
	StopPcm:     "stop",
	SynthParam:  "param",
	SetGain:     "gain",
}

func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "unknown"
}

// ParseType is the inverse of Type.String.
func ParseType(s string) (Type, bool) {
	for i, name := range typeNames {
		if name == s {
			return Type(i), true
		}
	}
	return None, false
}

// Note is the payload of NoteOn and NoteOff.
type Note struct {
	Note     int
	Velocity float32
	// NoteOnID pairs a NoteOff with the NoteOn it ends. Zero matches anything.
	NoteOnID int32
	// Prime makes a portamento glide start from PrimeNote instead of the
	// voice's previous pitch.
	Prime     bool
	PrimeNote int
}

// Pcm is the payload of PlayPcm and StopPcm.
type Pcm struct {
	Sound    int
	Velocity float32
	Loop     bool
}

// Param is the payload of SynthParam.
type Param struct {
	ID    patch.ParamID
	Value float32
	// RampTicks of zero applies Value immediately.
	RampTicks int64
}

// Event is a value record. Only the payload matching Type is meaningful;
// the constructors leave the others zeroed.
type Event struct {
	Type        Type
	Channel     int
	TimeInTicks int64

	Note  Note
	Pcm   Pcm
	Param Param
	Gain  float32
}

func NewNoteOn(channel int, tick int64, note int, velocity float32, id int32) Event {
	return Event{
		Type:        NoteOn,
		Channel:     channel,
		TimeInTicks: tick,
		Note:        Note{Note: note, Velocity: velocity, NoteOnID: id},
	}
}

// NewPrimedNoteOn is NewNoteOn with a portamento start note.
func NewPrimedNoteOn(channel int, tick int64, note int, velocity float32, id int32, primeNote int) Event {
	e := NewNoteOn(channel, tick, note, velocity, id)
	e.Note.Prime = true
	e.Note.PrimeNote = primeNote
	return e
}

func NewNoteOff(channel int, tick int64, note int, id int32) Event {
	return Event{
		Type:        NoteOff,
		Channel:     channel,
		TimeInTicks: tick,
		Note:        Note{Note: note, NoteOnID: id},
	}
}

func NewAllNotesOff(channel int, tick int64) Event {
	return Event{Type: AllNotesOff, Channel: channel, TimeInTicks: tick}
}

func NewPlayPcm(tick int64, sound int, velocity float32, loop bool) Event {
	return Event{
		Type:        PlayPcm,
		TimeInTicks: tick,
		Pcm:         Pcm{Sound: sound, Velocity: velocity, Loop: loop},
	}
}

func NewStopPcm(tick int64, sound int) Event {
	return Event{Type: StopPcm, TimeInTicks: tick, Pcm: Pcm{Sound: sound}}
}

func NewSynthParam(channel int, tick int64, id patch.ParamID, value float32, rampTicks int64) Event {
	return Event{
		Type:        SynthParam,
		Channel:     channel,
		TimeInTicks: tick,
		Param:       Param{ID: id, Value: value, RampTicks: rampTicks},
	}
}

func NewSetGain(tick int64, gain float32) Event {
	return Event{Type: SetGain, TimeInTicks: tick, Gain: gain}
}

// MixerHandles reports whether the mixer itself acts on e. AllNotesOff is
// seen by both the mixer (PCM voices) and the synth channel.
func (e *Event) MixerHandles() bool {
	return e.Type == PlayPcm || e.Type == StopPcm || e.Type == AllNotesOff || e.Type == SetGain
}
