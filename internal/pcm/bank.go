// Package pcm holds preloaded sample buffers and the fixed pool of voices
// that play them on the audio thread.
package pcm

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/wav"
)

// NoGroup marks a sound that does not belong to an exclusive group.
const NoGroup = -1

const resampleQuality = 3

var ErrEmptySound = errors.New("pcm: sound has no samples")

// Sound is a mono buffer at the engine sample rate. Starting a sound stops
// any other sound of the same exclusive group.
type Sound struct {
	Name    string
	Samples []float32
	Group   int
}

// Bank is an ordered set of sounds addressed by index. It must not change
// once the stream is running.
type Bank struct {
	sounds []Sound
	byName map[string]int
}

func NewBank() *Bank {
	return &Bank{byName: make(map[string]int)}
}

// Add appends a sound, or replaces the one with the same name, and returns
// its index.
func (b *Bank) Add(name string, samples []float32, group int) int {
	if group < 0 {
		group = NoGroup
	}
	s := Sound{Name: name, Samples: samples, Group: group}
	if i, ok := b.byName[name]; ok {
		b.sounds[i] = s
		return i
	}
	b.sounds = append(b.sounds, s)
	b.byName[name] = len(b.sounds) - 1
	return len(b.sounds) - 1
}

func (b *Bank) Len() int {
	if b == nil {
		return 0
	}
	return len(b.sounds)
}

// Sound returns the sound at i, or nil when i is out of range or the sound
// is empty.
func (b *Bank) Sound(i int) *Sound {
	if b == nil || i < 0 || i >= len(b.sounds) || len(b.sounds[i].Samples) == 0 {
		return nil
	}
	return &b.sounds[i]
}

// Index looks a sound up by name.
func (b *Bank) Index(name string) (int, bool) {
	if b == nil {
		return 0, false
	}
	i, ok := b.byName[name]
	return i, ok
}

// Name returns the name of the sound at i.
func (b *Bank) Name(i int) (string, bool) {
	if b == nil || i < 0 || i >= len(b.sounds) {
		return "", false
	}
	return b.sounds[i].Name, true
}

func (b *Bank) Names() []string {
	if b == nil {
		return nil
	}
	names := make([]string, len(b.sounds))
	for i := range b.sounds {
		names[i] = b.sounds[i].Name
	}
	return names
}

// LoadWAV decodes the WAV file at path and adds it under name.
func (b *Bank) LoadWAV(name, path string, group, sampleRate int) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open sound %q: %w", name, err)
	}
	defer f.Close()
	samples, err := DecodeWAV(f, sampleRate)
	if err != nil {
		return 0, fmt.Errorf("decode sound %q: %w", name, err)
	}
	return b.Add(name, samples, group), nil
}

// DecodeWAV reads a WAV stream, resamples it to sampleRate and folds it to
// mono.
func DecodeWAV(r io.Reader, sampleRate int) ([]float32, error) {
	streamer, format, err := wav.Decode(r)
	if err != nil {
		return nil, err
	}
	defer streamer.Close()

	var src beep.Streamer = streamer
	dst := beep.SampleRate(sampleRate)
	if format.SampleRate != dst {
		src = beep.Resample(resampleQuality, format.SampleRate, dst, streamer)
	}

	var out []float32
	if n := streamer.Len(); n > 0 {
		out = make([]float32, 0, int(float64(n)*float64(dst)/float64(format.SampleRate))+1)
	}
	var buf [512][2]float64
	for {
		n, ok := src.Stream(buf[:])
		for i := 0; i < n; i++ {
			out = append(out, float32((buf[i][0]+buf[i][1])/2))
		}
		if !ok {
			break
		}
	}
	if err := streamer.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrEmptySound
	}
	return out, nil
}
