package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/cbegin/audial-go"
	"github.com/cbegin/audial-go/internal/beatevent"
	"github.com/cbegin/audial-go/internal/config"
	"github.com/cbegin/audial-go/internal/midiin"
	"github.com/cbegin/audial-go/internal/patch"
	"github.com/cbegin/audial-go/internal/pcm"
	"github.com/cbegin/audial-go/internal/script"
)

const defaultScript = `
e:on c:0 t:0 mm:c4 v:0.8 i:1
e:off c:0 t:0.9 mm:c4 i:1
e:on c:0 t:1 mm:e4 v:0.8 i:2
e:off c:0 t:1.9 mm:e4 i:2
e:on c:0 t:2 mm:g4 v:0.8 i:3
e:off c:0 t:2.9 mm:g4 i:3
e:on c:0 t:3 mm:c5 v:0.8 i:4
e:off c:0 t:3.9 mm:c5 i:4
`

func main() {
	var (
		configPath   = flag.String("config", "", "TOML config file")
		sampleRate   = flag.Int("sample-rate", 0, "output sample rate (overrides config)")
		backendName  = flag.String("backend", "", "audio backend: ebiten|oto|headless")
		bpm          = flag.Float64("bpm", 0, "tempo in beats per minute")
		bufferFrames = flag.Int("buffer", 0, "frames per audio callback")
		scriptPath   = flag.String("script", "", "beat script file (default: a short arpeggio)")
		luaPath      = flag.String("lua", "", "Lua producer script")
		renderPath   = flag.String("render", "", "render the beat script to this WAV file and exit")
		seconds      = flag.Float64("seconds", 0, "length of -render (0 = script length plus one second)")
		loop         = flag.Bool("loop", false, "repeat the beat script")
		midiPort     = flag.String("midi", "", `MIDI input port name, or "auto" for the first port`)
		listMIDI     = flag.Bool("midi-list", false, "list MIDI input ports and exit")
		tui          = flag.Bool("tui", false, "terminal monitor with a typing keyboard")
		debug        = flag.Bool("debug", false, "enable debug logging")
	)
	flag.Parse()

	useTUI := *tui && term.IsTerminal(int(os.Stdout.Fd()))
	var tail *logTail
	if useTUI {
		// Keep slog off the screen while tcell owns it.
		tail = &logTail{}
	}
	logger := newLogger(*debug, tail)
	slog.SetDefault(logger)
	if *tui && !useTUI {
		logger.Warn("stdout is not a terminal, running without -tui")
	}

	if *listMIDI {
		for _, name := range midiin.Ports() {
			fmt.Println(name)
		}
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}
	applyFlags(&cfg, *sampleRate, *bufferFrames, *bpm, *backendName)
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	sounds, err := loadSounds(cfg)
	if err != nil {
		log.Fatal(err)
	}
	opts, err := contextOptions(cfg, sounds, logger)
	if err != nil {
		log.Fatal(err)
	}

	events, err := loadScript(*scriptPath, *luaPath, sounds)
	if err != nil {
		log.Fatal(err)
	}

	if *renderPath != "" {
		if err := render(*renderPath, events, cfg, *seconds, opts); err != nil {
			log.Fatal(err)
		}
		return
	}

	ac, err := audial.NewContext(opts...)
	if err != nil {
		log.Fatal(err)
	}
	p := &producer{
		ctx:   ac,
		clock: ac.NewClock(cfg.BPM),
		seq:   newSequence(events, *loop),
		log:   logger,
	}
	if *luaPath != "" {
		p.runner, err = script.New(p.clock, ac, script.WithSounds(sounds), script.WithLogger(logger))
		if err != nil {
			log.Fatal(err)
		}
		defer p.runner.Close()
		if err := p.runner.LoadFile(*luaPath); err != nil {
			log.Fatal(err)
		}
	}
	if *midiPort != "" {
		name := *midiPort
		if name == "auto" {
			name = ""
		}
		tr := midiin.NewTranslator(ac.Channels(), ac.TickTime)
		p.midi, err = midiin.OpenByName(name, tr, 256, logger)
		if err != nil {
			log.Fatal(err)
		}
		defer p.midi.Close()
	}
	if useTUI {
		p.mon, err = newMonitor(ac, tail)
		if err != nil {
			log.Fatal(err)
		}
		defer p.mon.Close()
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := ac.Start(); err != nil {
		log.Fatal(err)
	}
	defer ac.Stop()
	p.run(sigCtx, *luaPath != "" || *midiPort != "" || p.mon != nil)
}

// newLogger writes to stderr, or to tail when it is not nil.
func newLogger(debug bool, tail *logTail) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	var w io.Writer = os.Stderr
	if tail != nil {
		w = tail
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level, AddSource: debug}))
}

// applyFlags overrides cfg with the flags that were set.
func applyFlags(cfg *config.Config, sampleRate, bufferFrames int, bpm float64, backend string) {
	if sampleRate > 0 {
		cfg.SampleRate = sampleRate
	}
	if bufferFrames > 0 {
		cfg.BufferFrames = bufferFrames
	}
	if bpm > 0 {
		cfg.BPM = bpm
	}
	if backend != "" {
		cfg.Backend = strings.ToLower(backend)
	}
}

func loadSounds(cfg config.Config) (*pcm.Bank, error) {
	bank := pcm.NewBank()
	for _, s := range cfg.Sounds {
		if _, err := bank.LoadWAV(s.Name, s.Path, s.SoundGroup(), cfg.SampleRate); err != nil {
			return nil, err
		}
		slog.Debug("sound loaded", "name", s.Name, "path", s.Path)
	}
	return bank, nil
}

func contextOptions(cfg config.Config, sounds *pcm.Bank, logger *slog.Logger) ([]audial.Option, error) {
	opts := []audial.Option{
		audial.WithSampleRate(cfg.SampleRate),
		audial.WithBufferFrames(cfg.BufferFrames),
		audial.WithBackend(cfg.Backend),
		audial.WithSynthChannels(cfg.Channels),
		audial.WithEventBufferSize(cfg.EventBuffer),
		audial.WithSounds(sounds),
		audial.WithEffects(cfg.Effects...),
		audial.WithLogger(logger),
	}
	if cfg.PatchBank == "" {
		return opts, nil
	}
	bank, err := patch.LoadBankFile(cfg.PatchBank, logger)
	if err != nil {
		return nil, err
	}
	for ch, name := range cfg.Patches {
		p, ok := bank.Find(name)
		if !ok {
			return nil, fmt.Errorf("patch %q not in %s", name, cfg.PatchBank)
		}
		opts = append(opts, audial.WithPatch(ch, p))
	}
	return opts, nil
}

// loadScript reads the beat script. Without -script the demo arpeggio is
// used, unless a Lua program is driving instead.
func loadScript(path, luaPath string, sounds *pcm.Bank) ([]beatevent.BeatEvent, error) {
	if path == "" {
		if luaPath != "" {
			return nil, nil
		}
		return beatevent.ParseString(defaultScript, sounds)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	events, err := beatevent.Parse(f, sounds)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return events, nil
}

func render(path string, events []beatevent.BeatEvent, cfg config.Config, seconds float64, opts []audial.Option) error {
	if seconds <= 0 {
		seconds = scriptLength(events)*60/cfg.BPM + 1
	}
	samples, err := audial.RenderOffline(events, cfg.BPM, seconds, opts...)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, audial.EncodeWAVFloat32LE(samples, cfg.SampleRate, 2), 0o644); err != nil {
		return err
	}
	slog.Info("rendered", "path", path, "seconds", seconds, "events", len(events))
	return nil
}

// scriptLength is the last beat of events rounded up to a whole beat.
func scriptLength(events []beatevent.BeatEvent) float64 {
	last := 0.0
	for _, be := range events {
		last = max(last, be.BeatTime+be.RampBeats)
	}
	return math.Ceil(last)
}
