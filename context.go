// Package audial is a sample-accurate audio engine for games. A producer
// goroutine schedules timestamped events; the audio callback orders them and
// renders polyphonic synth channels and PCM sounds at the exact sample each
// event names.
package audial

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cbegin/audial-go/internal/audio"
	"github.com/cbegin/audial-go/internal/beatclock"
	"github.com/cbegin/audial-go/internal/effects"
	"github.com/cbegin/audial-go/internal/event"
	"github.com/cbegin/audial-go/internal/mixer"
	"github.com/cbegin/audial-go/internal/patch"
	"github.com/cbegin/audial-go/internal/pcm"
	"github.com/cbegin/audial-go/internal/rtlog"
	"github.com/cbegin/audial-go/internal/spsc"
)

type (
	Event   = event.Event
	Patch   = patch.Patch
	ParamID = patch.ParamID
	Stats   = mixer.Stats
)

// QueueCapacity is how many events may be in flight to the audio thread.
const QueueCapacity = event.QueueCapacity

var (
	ErrQueueFull = errors.New("event queue full")
	ErrRunning   = errors.New("context is running")
)

const (
	defaultSampleRate  = 48000
	defaultEventBuffer = 1024
	rtlogCapacity      = 256
	rtlogInterval      = 50 * time.Millisecond
)

type Option func(*contextConfig)

type contextConfig struct {
	sampleRate   int
	bufferFrames int
	backend      string
	channels     int
	patches      map[int]patch.Patch
	eventBuffer  int
	sounds       *pcm.Bank
	effects      []effects.Spec
	tap          func([]float32)
	logger       *slog.Logger
}

func defaultContextConfig() contextConfig {
	return contextConfig{
		sampleRate:   defaultSampleRate,
		bufferFrames: audio.DefaultBufferFrames,
		backend:      audio.Ebiten,
		channels:     1,
		patches:      map[int]patch.Patch{},
		eventBuffer:  defaultEventBuffer,
		logger:       slog.Default(),
	}
}

func WithSampleRate(rate int) Option {
	return func(cfg *contextConfig) { cfg.sampleRate = rate }
}

// WithBufferFrames sets the callback size in frames.
func WithBufferFrames(frames int) Option {
	return func(cfg *contextConfig) { cfg.bufferFrames = frames }
}

// WithSynthChannels sets the number of synth channels. Channels without a
// WithPatch start from the default patch.
func WithSynthChannels(n int) Option {
	return func(cfg *contextConfig) { cfg.channels = n }
}

// WithPatch sets channel ch's initial patch, adding channels as needed.
func WithPatch(ch int, p Patch) Option {
	return func(cfg *contextConfig) {
		cfg.patches[ch] = p
		cfg.channels = max(cfg.channels, ch+1)
	}
}

// WithBackend picks the output driver: "ebiten", "oto" or "headless".
func WithBackend(name string) Option {
	return func(cfg *contextConfig) { cfg.backend = name }
}

func WithLogger(l *slog.Logger) Option {
	return func(cfg *contextConfig) { cfg.logger = l }
}

// WithSounds makes a loaded sound bank available to PlayPcm events.
func WithSounds(b *pcm.Bank) Option {
	return func(cfg *contextConfig) { cfg.sounds = b }
}

// WithEventBufferSize sets how many events the audio thread can hold
// between arrival and their due callback.
func WithEventBufferSize(n int) Option {
	return func(cfg *contextConfig) { cfg.eventBuffer = n }
}

// WithEffects appends a master effect chain after the mixer's gain.
func WithEffects(specs ...effects.Spec) Option {
	return func(cfg *contextConfig) { cfg.effects = append(cfg.effects, specs...) }
}

// WithOutputTap installs a callback invoked with each finished stereo buffer.
// The callback runs on the audio thread; keep work brief and non-blocking.
func WithOutputTap(tap func([]float32)) Option {
	return func(cfg *contextConfig) { cfg.tap = tap }
}

// Context owns the event queue, the mixer and the output stream.
// AddEvent may only be called from one goroutine at a time.
type Context struct {
	mu      sync.Mutex
	cfg     contextConfig
	queue   *spsc.Queue[Event]
	mixer   *mixer.Mixer
	eq      *effects.EQ5Band
	rtlog   *rtlog.Ring
	log     *slog.Logger
	backend audio.Backend
	cancel  context.CancelFunc
	logDone chan struct{}
	refused atomic.Uint64
}

func NewContext(opts ...Option) (*Context, error) {
	cfg := defaultContextConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.sampleRate <= 0 {
		return nil, errors.New("sampleRate must be positive")
	}
	if cfg.channels < 1 {
		return nil, errors.New("at least one synth channel is required")
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}

	patches := make([]patch.Patch, cfg.channels)
	for ch := range patches {
		if p, ok := cfg.patches[ch]; ok {
			patches[ch] = p
		} else {
			patches[ch] = patch.Default()
		}
	}

	eq := effects.NewEQ5Band(cfg.sampleRate)
	chain, err := effects.Build(cfg.effects, cfg.sampleRate)
	if err != nil {
		return nil, err
	}
	if chain == nil {
		chain = effects.NewChain()
	}
	chain.Add(eq)

	ring := rtlog.NewRing(rtlogCapacity)
	queue := spsc.New[Event](QueueCapacity)
	m, err := mixer.New(queue, mixer.Config{
		SampleRate:      cfg.sampleRate,
		Patches:         patches,
		EventBufferSize: cfg.eventBuffer,
		Sounds:          cfg.sounds,
		Effects:         chain,
		Tap:             cfg.tap,
		Log:             ring,
	})
	if err != nil {
		return nil, err
	}
	return &Context{
		cfg:   cfg,
		queue: queue,
		mixer: m,
		eq:    eq,
		rtlog: ring,
		log:   cfg.logger,
	}, nil
}

// Start opens the output device and begins pulling audio.
func (c *Context) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.backend != nil {
		return nil
	}
	backend, err := audio.Open(c.cfg.backend, c.cfg.sampleRate, c.cfg.bufferFrames, c.mixer)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.rtlog.Run(ctx, c.log, rtlogInterval)
	}()
	if err := backend.Start(); err != nil {
		cancel()
		<-done
		return fmt.Errorf("start %s backend: %w", c.cfg.backend, err)
	}
	c.backend, c.cancel, c.logDone = backend, cancel, done
	c.log.Info("audio started",
		"backend", c.cfg.backend,
		"sample_rate", c.cfg.sampleRate,
		"buffer_frames", c.cfg.bufferFrames,
		"channels", c.cfg.channels,
	)
	return nil
}

// Stop closes the output stream and flushes pending diagnostics.
func (c *Context) Stop() error {
	c.mu.Lock()
	backend, cancel, done := c.backend, c.cancel, c.logDone
	c.backend, c.cancel, c.logDone = nil, nil, nil
	c.mu.Unlock()
	if backend == nil {
		return nil
	}
	err := backend.Stop()
	cancel()
	<-done
	st := c.mixer.Stats()
	c.log.Info("audio stopped",
		"callbacks", st.Callbacks,
		"desyncs", st.Desyncs,
		"buffer_drops", st.BufferDrops,
		"refused", c.refused.Load(),
	)
	return err
}

// Running reports whether Start succeeded and Stop has not been called.
func (c *Context) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.backend != nil
}

// AddEvent hands e to the audio thread. It never blocks; when the queue is
// full the event is dropped and ErrQueueFull returned.
func (c *Context) AddEvent(e Event) error {
	if !c.queue.Push(e) {
		c.refused.Add(1)
		c.log.Warn("event queue full, dropping event", "type", e.Type, "channel", e.Channel, "tick", e.TimeInTicks)
		return ErrQueueFull
	}
	return nil
}

// Render runs one callback into out without a device. It is how offline
// rendering and tests drive the engine, and fails while the context is
// running.
func (c *Context) Render(out []float32) error {
	if c.Running() {
		return ErrRunning
	}
	c.mixer.Process(out)
	c.rtlog.Drain(c.log)
	return nil
}

// StreamTime is the stream position in seconds at the start of the next
// callback. It implements beatclock.StreamClock.
func (c *Context) StreamTime() float64 { return c.mixer.StreamTime() }

// TickTime is StreamTime in samples.
func (c *Context) TickTime() int64 { return c.mixer.Tick() }

// NewClock returns a beat clock driven by this context's stream.
func (c *Context) NewClock(bpm float64) *beatclock.Clock {
	return beatclock.New(bpm, c.cfg.sampleRate, c)
}

func (c *Context) SampleRate() int   { return c.cfg.sampleRate }
func (c *Context) BufferFrames() int { return c.cfg.bufferFrames }
func (c *Context) Channels() int     { return c.mixer.Channels() }

// Sounds returns the bank passed with WithSounds, or nil.
func (c *Context) Sounds() *pcm.Bank { return c.cfg.sounds }

// Stats reports the mixer's counters.
func (c *Context) Stats() Stats { return c.mixer.Stats() }

// Refused counts events dropped because the queue was full.
func (c *Context) Refused() uint64 { return c.refused.Load() }

// PatchSnapshot returns channel ch's patch, including automation, as of the
// last callback.
func (c *Context) PatchSnapshot(ch int) (Patch, bool) { return c.mixer.PatchSnapshot(ch) }

func (c *Context) ActiveVoices(ch int) int { return c.mixer.ActiveVoices(ch) }

// RecentOutput copies the newest interleaved output samples into dst.
func (c *Context) RecentOutput(dst []float32) int { return c.mixer.RecentOutput(dst) }

// SetEQBand sets the gain for a master EQ band (0-4). 1.0 = unity.
// Band frequencies: 0=<200Hz, 1=200-800Hz, 2=800-2.5kHz, 3=2.5-8kHz, 4=>8kHz.
// This takes effect immediately on the audio thread (lock-free).
func (c *Context) SetEQBand(band int, gain float32) { c.eq.SetGain(band, gain) }

func (c *Context) EQBand(band int) float32 { return c.eq.Gain(band) }
