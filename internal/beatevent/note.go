package beatevent

import (
	"fmt"
	"strings"
)

// C0 is the MIDI number of the lowest named C.
const C0 = 12

var letterOffsets = map[byte]int{'c': 0, 'd': 2, 'e': 4, 'f': 5, 'g': 7, 'a': 9, 'b': 11}

var sharpNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// ParseNoteName converts names like "a4", "C#3", "Bb2" or "c4+" to a MIDI
// note. A trailing + or - raises or lowers by a semitone, as does # or b
// after the letter.
func ParseNoteName(name string) (int, error) {
	s := strings.ToLower(strings.TrimSpace(name))
	if len(s) < 2 {
		return -1, fmt.Errorf("note %q: too short", name)
	}
	base, ok := letterOffsets[s[0]]
	if !ok {
		return -1, fmt.Errorf("note %q: bad letter", name)
	}
	s = s[1:]
	shift := 0
	if len(s) > 1 && (s[0] == '#' || s[0] == 'b') {
		if s[0] == '#' {
			shift = 1
		} else {
			shift = -1
		}
		s = s[1:]
	}
	if n := len(s); n > 1 && (s[n-1] == '+' || s[n-1] == '-') {
		if s[n-1] == '+' {
			shift++
		} else {
			shift--
		}
		s = s[:n-1]
	}
	if len(s) != 1 || s[0] < '0' || s[0] > '8' {
		return -1, fmt.Errorf("note %q: bad octave", name)
	}
	note := C0 + base + shift + 12*int(s[0]-'0')
	if note < 0 || note > 127 {
		return -1, fmt.Errorf("note %q: out of range", name)
	}
	return note, nil
}

// NoteName is the inverse of ParseNoteName, using sharps.
func NoteName(note int) string {
	if note < C0 || note > 127 {
		return fmt.Sprintf("%d", note)
	}
	return fmt.Sprintf("%s%d", sharpNames[note%12], (note-C0)/12)
}
