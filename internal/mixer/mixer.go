// Package mixer is the real-time entry point: once per host buffer it drains
// the event channel, orders the events, plays PCM voices, runs every synth
// channel and applies the master gain and effects.
package mixer

import (
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cbegin/audial-go/internal/dispatch"
	"github.com/cbegin/audial-go/internal/effects"
	"github.com/cbegin/audial-go/internal/event"
	"github.com/cbegin/audial-go/internal/patch"
	"github.com/cbegin/audial-go/internal/pcm"
	"github.com/cbegin/audial-go/internal/rtlog"
	"github.com/cbegin/audial-go/internal/spsc"
	"github.com/cbegin/audial-go/internal/synth"
)

// DeadlineRatio is the share of the buffer duration after which a callback
// is reported as close to its deadline.
const DeadlineRatio = 0.9

// DefaultRecentFrames is the length of the recent-output snapshot.
const DefaultRecentFrames = 2048

type Config struct {
	SampleRate int
	// Patches sets the number of synth channels and their initial patches.
	Patches         []patch.Patch
	EventBufferSize int
	Sounds          *pcm.Bank
	// Effects is applied to the mixed stereo signal after the master gain.
	Effects      effects.Effector
	RecentFrames int
	// Tap sees every finished buffer on the audio thread.
	Tap func([]float32)
	Log *rtlog.Ring
	// Now replaces the monotonic clock, for tests.
	Now func() time.Time
}

// Stats is a point-in-time copy of the mixer's counters.
type Stats struct {
	Callbacks uint64
	// Desyncs counts callbacks whose distance from the previous one, in
	// samples, strayed from the previous frame count by more than half.
	Desyncs           uint64
	AvgCallbackDelta  float64
	LastCallbackDelta time.Duration
	LastFrames        int
	BufferDrops       uint64
	PcmDrops          uint64
	PcmMissing        uint64
	AutomationDrops   uint64
	DeadlineWarnings  uint64
	LogLost           uint64
}

type Mixer struct {
	sampleRate int
	queue      *spsc.Queue[event.Event]
	buf        *dispatch.Buffer
	synths     []*synth.Synth
	pcm        *pcm.Pool
	fx         effects.Effector
	tap        func([]float32)
	log        *rtlog.Ring
	now        func() time.Time

	gain float32
	tick atomic.Int64

	lastStart  time.Time
	lastFrames int

	callbacks     atomic.Uint64
	desyncs       atomic.Uint64
	avgDeltaBits  atomic.Uint64
	lastDelta     atomic.Int64
	lastFrameSize atomic.Int64
	bufferDrops   atomic.Uint64
	deadlines     atomic.Uint64

	recentMu  sync.Mutex
	recent    []float32
	recentPos int

	snapMu    sync.Mutex
	snapshots []patch.Patch
	voices    []atomic.Int32
}

// New builds a mixer reading from q. All storage the audio thread needs is
// allocated here.
func New(q *spsc.Queue[event.Event], cfg Config) (*Mixer, error) {
	if q == nil {
		return nil, errors.New("mixer: nil event queue")
	}
	if cfg.SampleRate <= 0 {
		return nil, errors.New("mixer: sample rate must be positive")
	}
	if len(cfg.Patches) == 0 {
		cfg.Patches = []patch.Patch{patch.Default()}
	}
	if cfg.RecentFrames <= 0 {
		cfg.RecentFrames = DefaultRecentFrames
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	m := &Mixer{
		sampleRate: cfg.SampleRate,
		queue:      q,
		buf:        dispatch.NewBuffer(cfg.EventBufferSize),
		pcm:        pcm.NewPool(cfg.Sounds, cfg.Log),
		fx:         cfg.Effects,
		tap:        cfg.Tap,
		log:        cfg.Log,
		now:        cfg.Now,
		gain:       1,
		recent:     make([]float32, cfg.RecentFrames*2),
		snapshots:  make([]patch.Patch, len(cfg.Patches)),
		voices:     make([]atomic.Int32, len(cfg.Patches)),
	}
	for ch, p := range cfg.Patches {
		m.synths = append(m.synths, synth.New(ch, cfg.SampleRate, p, cfg.Log))
		m.snapshots[ch] = p
	}
	return m, nil
}

func (m *Mixer) SampleRate() int { return m.sampleRate }
func (m *Mixer) Channels() int   { return len(m.synths) }

// Tick is the stream position in samples: the first tick of the next
// buffer. Safe from any goroutine.
func (m *Mixer) Tick() int64 { return m.tick.Load() }

// StreamTime is Tick in seconds.
func (m *Mixer) StreamTime() float64 {
	return float64(m.tick.Load()) / float64(m.sampleRate)
}

// Schedule inserts e straight into the dispatch buffer, bypassing the queue.
// It reports false and counts a drop when the buffer is full. Only for a
// caller that also drives Process, such as offline rendering.
func (m *Mixer) Schedule(e event.Event) bool {
	if m.buf.Push(e) {
		return true
	}
	m.bufferDrops.Add(1)
	m.log.Log(rtlog.Record{Code: rtlog.BufferOverflow, Channel: -1, Tick: e.TimeInTicks, A: 1})
	return false
}

// Process renders one interleaved stereo buffer. It runs on the audio thread
// and never blocks or allocates.
func (m *Mixer) Process(out []float32) {
	begin := m.now()
	frames := len(out) / 2
	m.recordTiming(begin, frames)
	clear(out)
	if frames == 0 {
		return
	}
	start := m.tick.Load()
	end := start + int64(frames)

	if dropped := m.buf.Drain(m.queue); dropped > 0 {
		m.bufferDrops.Add(uint64(dropped))
		m.log.Log(rtlog.Record{Code: rtlog.BufferOverflow, Channel: -1, Tick: start, A: int64(dropped)})
	}
	due := m.buf.Due(end)

	next := 0
	for i := 0; i < frames; i++ {
		tick := start + int64(i)
		for next < len(due) && due[next].TimeInTicks <= tick {
			m.pcm.Handle(&due[next], tick)
			next++
		}
		v := m.pcm.Next()
		out[2*i] += v
		out[2*i+1] += v
	}

	for _, s := range m.synths {
		s.Process(due, out, start)
	}

	m.applyGain(due, out, start)
	if m.fx != nil {
		for i := 0; i+1 < len(out); i += 2 {
			out[i], out[i+1] = m.fx.Process(out[i], out[i+1])
		}
	}
	if m.tap != nil {
		m.tap(out)
	}
	m.snapshotRecent(out)
	m.publish()

	m.buf.Retire(end)
	m.tick.Store(end)

	elapsed := m.now().Sub(begin)
	budget := float64(frames) / float64(m.sampleRate)
	if used := elapsed.Seconds() / budget; used > DeadlineRatio {
		m.deadlines.Add(1)
		m.log.Log(rtlog.Record{Code: rtlog.DeadlineRisk, Channel: -1, Tick: start, A: int64(frames), F: used})
	}
}

// applyGain scales the buffer by the master gain, switching at the exact
// sample of each SetGain event.
func (m *Mixer) applyGain(due []event.Event, out []float32, start int64) {
	next := 0
	for i := 0; i < len(out)/2; i++ {
		tick := start + int64(i)
		for next < len(due) && due[next].TimeInTicks <= tick {
			if due[next].Type == event.SetGain {
				m.gain = due[next].Gain
			}
			next++
		}
		if m.gain != 1 {
			out[2*i] *= m.gain
			out[2*i+1] *= m.gain
		}
	}
}

func (m *Mixer) recordTiming(begin time.Time, frames int) {
	n := m.callbacks.Add(1)
	m.lastFrameSize.Store(int64(frames))
	if n > 1 {
		dt := begin.Sub(m.lastStart)
		m.lastDelta.Store(int64(dt))
		delta := dt.Seconds() * float64(m.sampleRate)
		if math.Abs(delta-float64(m.lastFrames)) > float64(m.lastFrames)/2 {
			m.desyncs.Add(1)
		}
		avg := math.Float64frombits(m.avgDeltaBits.Load())
		avg += (delta - avg) / float64(n-1)
		m.avgDeltaBits.Store(math.Float64bits(avg))
	}
	m.lastStart = begin
	m.lastFrames = frames
}

func (m *Mixer) snapshotRecent(out []float32) {
	if !m.recentMu.TryLock() {
		return
	}
	defer m.recentMu.Unlock()
	src := out
	if len(src) > len(m.recent) {
		src = src[len(src)-len(m.recent):]
	}
	n := copy(m.recent[m.recentPos:], src)
	if n < len(src) {
		copy(m.recent, src[n:])
	}
	m.recentPos = (m.recentPos + len(src)) % len(m.recent)
}

func (m *Mixer) publish() {
	for ch, s := range m.synths {
		m.voices[ch].Store(int32(s.ActiveVoices()))
	}
	if !m.snapMu.TryLock() {
		return
	}
	for ch, s := range m.synths {
		m.snapshots[ch] = s.Patch()
	}
	m.snapMu.Unlock()
}

// RecentOutput copies the newest interleaved samples into dst, oldest
// first, and returns how many were written.
func (m *Mixer) RecentOutput(dst []float32) int {
	m.recentMu.Lock()
	defer m.recentMu.Unlock()
	n := min(len(dst), len(m.recent))
	from := m.recentPos - n
	if from < 0 {
		from += len(m.recent)
	}
	k := copy(dst[:n], m.recent[from:])
	if k < n {
		copy(dst[k:n], m.recent)
	}
	return n
}

// PatchSnapshot returns channel ch's patch as of the last callback.
func (m *Mixer) PatchSnapshot(ch int) (patch.Patch, bool) {
	if ch < 0 || ch >= len(m.snapshots) {
		return patch.Patch{}, false
	}
	m.snapMu.Lock()
	defer m.snapMu.Unlock()
	return m.snapshots[ch], true
}

// ActiveVoices reports channel ch's sounding voices as of the last callback.
func (m *Mixer) ActiveVoices(ch int) int {
	if ch < 0 || ch >= len(m.voices) {
		return 0
	}
	return int(m.voices[ch].Load())
}

// Stats may be called from any goroutine.
func (m *Mixer) Stats() Stats {
	var automation uint64
	for _, s := range m.synths {
		automation += s.AutomationDrops()
	}
	return Stats{
		Callbacks:         m.callbacks.Load(),
		Desyncs:           m.desyncs.Load(),
		AvgCallbackDelta:  math.Float64frombits(m.avgDeltaBits.Load()),
		LastCallbackDelta: time.Duration(m.lastDelta.Load()),
		LastFrames:        int(m.lastFrameSize.Load()),
		BufferDrops:       m.bufferDrops.Load(),
		PcmDrops:          m.pcm.Drops(),
		PcmMissing:        m.pcm.Missing(),
		AutomationDrops:   automation,
		DeadlineWarnings:  m.deadlines.Load(),
		LogLost:           m.log.Lost(),
	}
}

// Synth exposes channel ch for inspection. Only safe while the stream is
// stopped.
func (m *Mixer) Synth(ch int) *synth.Synth {
	if ch < 0 || ch >= len(m.synths) {
		return nil
	}
	return m.synths[ch]
}
