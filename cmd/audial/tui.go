package main

import (
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/gdamore/tcell/v2"

	"github.com/cbegin/audial-go"
	"github.com/cbegin/audial-go/internal/beatclock"
	"github.com/cbegin/audial-go/internal/beatevent"
	"github.com/cbegin/audial-go/internal/event"
	"github.com/cbegin/audial-go/internal/synth"
)

// pianoKeys maps one octave onto the home row, black keys on the row above.
const pianoKeys = "awsedftgyhujk"

const (
	keyNoteSeconds = 0.3
	logTailLines   = 6
	meterSamples   = 2048
)

type keyPress struct {
	r rune
}

// keyNote returns the MIDI note for r at octave, or false.
func keyNote(r rune, octave int) (int, bool) {
	i := strings.IndexRune(pianoKeys, r)
	if i < 0 {
		return 0, false
	}
	return beatevent.C0 + 12*octave + i, true
}

// monitor is the -tui screen: engine stats, per-channel voices, an output
// meter and a typing keyboard.
type monitor struct {
	screen tcell.Screen
	ac     *audial.Context
	keys   chan keyPress
	quit   sync.Once
	tail   *logTail
	recent []float32

	octave   int
	nextID   int32
	lastNote string
}

func newMonitor(ac *audial.Context, tail *logTail) (*monitor, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	if err := screen.Init(); err != nil {
		return nil, err
	}
	return startMonitor(screen, ac, tail), nil
}

func startMonitor(screen tcell.Screen, ac *audial.Context, tail *logTail) *monitor {
	m := &monitor{
		screen: screen,
		ac:     ac,
		keys:   make(chan keyPress, 32),
		tail:   tail,
		recent: make([]float32, meterSamples),
		octave: 4,
	}
	go m.poll()
	return m
}

func (m *monitor) Keys() <-chan keyPress { return m.keys }

func (m *monitor) Close() { m.screen.Fini() }

func (m *monitor) stop() { m.quit.Do(func() { close(m.keys) }) }

func (m *monitor) poll() {
	for {
		ev := m.screen.PollEvent()
		switch ev := ev.(type) {
		case nil:
			m.stop()
			return
		case *tcell.EventKey:
			if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC {
				m.stop()
				return
			}
			if ev.Key() == tcell.KeyRune {
				select {
				case m.keys <- keyPress{r: ev.Rune()}:
				default:
				}
			}
		case *tcell.EventResize:
			m.screen.Sync()
		}
	}
}

// Play handles one key on the producer goroutine. Terminals report no key
// release, so every note is given a fixed length.
func (m *monitor) Play(k keyPress, out sink) {
	switch k.r {
	case 'z':
		m.octave = max(m.octave-1, 0)
		return
	case 'x':
		m.octave = min(m.octave+1, 8)
		return
	case ' ':
		out.AddEvent(event.NewAllNotesOff(0, m.ac.TickTime()))
		return
	}
	note, ok := keyNote(k.r, m.octave)
	if !ok {
		return
	}
	m.nextID++
	now := m.ac.TickTime()
	length := int64(keyNoteSeconds * float64(m.ac.SampleRate()))
	if out.AddEvent(event.NewNoteOn(0, now, note, 0.8, m.nextID)) == nil {
		out.AddEvent(event.NewNoteOff(0, now+length, note, m.nextID))
	}
	m.lastNote = beatevent.NoteName(note)
}

func (m *monitor) Draw(clock *beatclock.Clock) {
	m.screen.Clear()
	st := m.ac.Stats()
	title := tcell.StyleDefault.Foreground(tcell.ColorYellow).Bold(true)
	plain := tcell.StyleDefault
	dim := tcell.StyleDefault.Foreground(tcell.ColorGray)

	y := 0
	m.text(0, y, title, fmt.Sprintf("audial  beat %8.2f  bpm %5.1f  tick %d", clock.BeatTime(), clock.Bpm(), m.ac.TickTime()))
	y += 2
	m.text(0, y, plain, fmt.Sprintf("callbacks %d  frames %d  avg delta %.1f  last %v",
		st.Callbacks, st.LastFrames, st.AvgCallbackDelta, st.LastCallbackDelta))
	y++
	m.text(0, y, plain, fmt.Sprintf("desyncs %d  deadline %d  buffer drops %d  pcm drops %d  automation drops %d  refused %d",
		st.Desyncs, st.DeadlineWarnings, st.BufferDrops, st.PcmDrops, st.AutomationDrops, m.ac.Refused()))
	y += 2

	for ch := 0; ch < m.ac.Channels(); ch++ {
		n := m.ac.ActiveVoices(ch)
		bar := strings.Repeat("#", n) + strings.Repeat(".", synth.NumVoices-n)
		m.text(0, y, plain, fmt.Sprintf("ch%-2d [%s] %d/%d", ch, bar, n, synth.NumVoices))
		y++
	}
	y++

	peak, rms := meter(m.recent[:m.ac.RecentOutput(m.recent)])
	m.text(0, y, plain, "peak "+meterBar(peak, 40)+fmt.Sprintf(" %5.2f", peak))
	y++
	m.text(0, y, plain, "rms  "+meterBar(rms, 40)+fmt.Sprintf(" %5.2f", rms))
	y += 2

	m.text(0, y, dim, fmt.Sprintf("keys %s  z/x octave (%d)  space all off  esc quit  last %s",
		strings.Join(strings.Split(pianoKeys, ""), " "), m.octave, m.lastNote))
	y += 2
	for _, line := range m.tail.Lines() {
		m.text(0, y, dim, line)
		y++
	}
	m.screen.Show()
}

func (m *monitor) text(x, y int, style tcell.Style, s string) {
	for i, r := range []rune(s) {
		m.screen.SetContent(x+i, y, r, nil, style)
	}
}

func meter(samples []float32) (peak, rms float64) {
	if len(samples) == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range samples {
		a := math.Abs(float64(v))
		peak = max(peak, a)
		sum += a * a
	}
	return peak, math.Sqrt(sum / float64(len(samples)))
}

func meterBar(v float64, width int) string {
	n := int(math.Round(min(v, 1) * float64(width)))
	return "[" + strings.Repeat("=", n) + strings.Repeat(" ", width-n) + "]"
}

// logTail keeps the last few log lines for display.
type logTail struct {
	mu    sync.Mutex
	lines []string
}

func (t *logTail) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, line := range strings.Split(strings.TrimRight(string(p), "\n"), "\n") {
		t.lines = append(t.lines, line)
	}
	if len(t.lines) > logTailLines {
		t.lines = t.lines[len(t.lines)-logTailLines:]
	}
	return len(p), nil
}

func (t *logTail) Lines() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.lines...)
}
