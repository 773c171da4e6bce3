package audio

import (
	"fmt"
	"sync"
	"time"

	ebitaudio "github.com/hajimehoshi/ebiten/v2/audio"
)

var (
	audioContextOnce sync.Once
	audioContext     *ebitaudio.Context
	audioSampleRate  int
)

// SharedContext returns the process-wide ebiten audio context. Windowed
// front ends that play their own sounds must use it too.
func SharedContext(sampleRate int) (*ebitaudio.Context, error) {
	audioContextOnce.Do(func() {
		audioSampleRate = sampleRate
		audioContext = ebitaudio.CurrentContext()
		if audioContext == nil {
			audioContext = ebitaudio.NewContext(sampleRate)
		} else {
			audioSampleRate = audioContext.SampleRate()
		}
	})
	if audioSampleRate != sampleRate {
		return nil, fmt.Errorf("audio context already initialized at %d Hz (requested %d Hz)", audioSampleRate, sampleRate)
	}
	return audioContext, nil
}

type ebitenBackend struct {
	player *ebitaudio.Player
	reader *StreamReader
}

func newEbitenBackend(sampleRate int, reader *StreamReader) (*ebitenBackend, error) {
	ctx, err := SharedContext(sampleRate)
	if err != nil {
		return nil, err
	}
	pl, err := ctx.NewPlayerF32(reader)
	if err != nil {
		return nil, err
	}
	pl.SetBufferSize(bufferDuration(sampleRate, reader.BufferFrames()))
	return &ebitenBackend{player: pl, reader: reader}, nil
}

func (b *ebitenBackend) Start() error {
	b.player.Play()
	return nil
}

func (b *ebitenBackend) Stop() error {
	b.player.Pause()
	if err := b.player.Close(); err != nil {
		return err
	}
	return b.reader.Close()
}

// bufferDuration keeps two blocks queued at the driver.
func bufferDuration(sampleRate, frames int) time.Duration {
	return time.Duration(2 * frames * int(time.Second) / sampleRate)
}
