package beatevent

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/cbegin/audial-go/internal/event"
	"github.com/cbegin/audial-go/internal/patch"
)

// Sounds resolves PCM sound names. *pcm.Bank implements it.
type Sounds interface {
	Index(name string) (int, bool)
	Name(i int) (string, bool)
}

var (
	ErrUnknownKey   = errors.New("unknown key")
	ErrUnknownSound = errors.New("unknown sound")
	ErrMissingField = errors.New("missing field")
)

// Parse reads a beat script: one event per line, whitespace separated
// key:value tokens.
//
//	e:on c:0 t:1.5 mm:C#4 v:0.8 i:3
//	e:off c:0 t:2 m:61 i:3
//	e:play t:0 s:kick v:1 l:0
//	e:param c:0 t:4 p:Cutoff x:800 r:2
//	e:gain t:8 g:0.5
//
// Blank lines and lines starting with # are skipped. Lines that fail to
// parse are left out and every failure is returned joined together, so the
// caller gets the good events along with the errors. sounds may be nil when
// the script has no PCM events.
func Parse(r io.Reader, sounds Sounds) ([]BeatEvent, error) {
	var (
		events []BeatEvent
		errs   []error
	)
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		be, err := parseLine(line, sounds)
		if err != nil {
			errs = append(errs, fmt.Errorf("line %d: %w", lineNo, err))
			continue
		}
		if be.Event.Type != event.None {
			events = append(events, be)
		}
	}
	if err := sc.Err(); err != nil {
		errs = append(errs, err)
	}
	return events, errors.Join(errs...)
}

// ParseString is Parse over a string.
func ParseString(text string, sounds Sounds) ([]BeatEvent, error) {
	return Parse(strings.NewReader(text), sounds)
}

func parseLine(line string, sounds Sounds) (BeatEvent, error) {
	var (
		be   BeatEvent
		e    = &be.Event
		seen = map[string]bool{}
	)
	e.Note.Velocity = 1
	e.Pcm.Velocity = 1
	e.Gain = 1
	for _, tok := range strings.Fields(line) {
		key, val, ok := strings.Cut(tok, ":")
		if !ok {
			return be, fmt.Errorf("token %q: expected key:value", tok)
		}
		seen[key] = true
		var err error
		switch key {
		case "e":
			t, ok := event.ParseType(val)
			if !ok {
				err = fmt.Errorf("unknown event type %q", val)
			}
			e.Type = t
		case "c":
			e.Channel, err = strconv.Atoi(val)
		case "t":
			be.BeatTime, err = strconv.ParseFloat(val, 64)
		case "m":
			e.Note.Note, err = strconv.Atoi(val)
			seen["note"] = true
		case "mm":
			e.Note.Note, err = ParseNoteName(val)
			seen["note"] = true
		case "v":
			var v float64
			v, err = strconv.ParseFloat(val, 32)
			e.Note.Velocity = float32(v)
			e.Pcm.Velocity = float32(v)
		case "l":
			e.Pcm.Loop, err = strconv.ParseBool(val)
		case "i":
			var id int64
			id, err = strconv.ParseInt(val, 10, 32)
			e.Note.NoteOnID = int32(id)
		case "s":
			if sounds == nil {
				err = fmt.Errorf("%w %q", ErrUnknownSound, val)
				break
			}
			idx, ok := sounds.Index(val)
			if !ok {
				err = fmt.Errorf("%w %q", ErrUnknownSound, val)
			}
			e.Pcm.Sound = idx
		case "p":
			id, ok := patch.ParseParamID(val)
			if !ok {
				err = fmt.Errorf("unknown param %q", val)
			}
			e.Param.ID = id
		case "x":
			var v float64
			v, err = strconv.ParseFloat(val, 32)
			e.Param.Value = float32(v)
		case "r":
			be.RampBeats, err = strconv.ParseFloat(val, 64)
		case "g":
			var v float64
			v, err = strconv.ParseFloat(val, 32)
			e.Gain = float32(v)
		default:
			err = fmt.Errorf("%w %q", ErrUnknownKey, key)
		}
		if err != nil {
			return be, fmt.Errorf("%s: %w", tok, err)
		}
	}
	return be, requireFields(e.Type, seen)
}

func requireFields(t event.Type, seen map[string]bool) error {
	var need []string
	switch t {
	case event.NoteOn, event.NoteOff:
		need = []string{"note"}
	case event.PlayPcm, event.StopPcm:
		need = []string{"s"}
	case event.SynthParam:
		need = []string{"p", "x"}
	case event.SetGain:
		need = []string{"g"}
	}
	for _, k := range need {
		if !seen[k] {
			return fmt.Errorf("%s event: %w %s", t, ErrMissingField, k)
		}
	}
	return nil
}

// Write formats events in the Parse syntax, ordered by beat time.
func Write(w io.Writer, events []BeatEvent, sounds Sounds) error {
	sorted := make([]BeatEvent, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].BeatTime < sorted[j].BeatTime })

	bw := bufio.NewWriter(w)
	for _, be := range sorted {
		line, err := formatLine(be, sounds)
		if err != nil {
			return err
		}
		bw.WriteString(line)
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

func formatLine(be BeatEvent, sounds Sounds) (string, error) {
	e := be.Event
	var b strings.Builder
	fmt.Fprintf(&b, "e:%s t:%s", e.Type, ftoa(be.BeatTime))
	switch e.Type {
	case event.NoteOn, event.NoteOff:
		fmt.Fprintf(&b, " c:%d m:%d", e.Channel, e.Note.Note)
		if e.Type == event.NoteOn {
			fmt.Fprintf(&b, " v:%s", ftoa32(e.Note.Velocity))
		}
		if e.Note.NoteOnID != 0 {
			fmt.Fprintf(&b, " i:%d", e.Note.NoteOnID)
		}
	case event.AllNotesOff:
		fmt.Fprintf(&b, " c:%d", e.Channel)
	case event.PlayPcm, event.StopPcm:
		var name string
		ok := sounds != nil
		if ok {
			name, ok = sounds.Name(e.Pcm.Sound)
		}
		if !ok {
			return "", fmt.Errorf("%w %d", ErrUnknownSound, e.Pcm.Sound)
		}
		fmt.Fprintf(&b, " s:%s", name)
		if e.Type == event.PlayPcm {
			fmt.Fprintf(&b, " v:%s l:%t", ftoa32(e.Pcm.Velocity), e.Pcm.Loop)
		}
	case event.SynthParam:
		fmt.Fprintf(&b, " c:%d p:%s x:%s", e.Channel, e.Param.ID, ftoa32(e.Param.Value))
		if be.RampBeats > 0 {
			fmt.Fprintf(&b, " r:%s", ftoa(be.RampBeats))
		}
	case event.SetGain:
		fmt.Fprintf(&b, " g:%s", ftoa32(e.Gain))
	}
	return b.String(), nil
}

func ftoa(v float64) string   { return strconv.FormatFloat(v, 'g', -1, 64) }
func ftoa32(v float32) string { return strconv.FormatFloat(float64(v), 'g', -1, 32) }
