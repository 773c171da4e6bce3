package audio

import (
	"fmt"
	"sync"

	"github.com/ebitengine/oto/v3"
)

var (
	otoOnce       sync.Once
	otoContext    *oto.Context
	otoErr        error
	otoSampleRate int
)

func sharedOtoContext(sampleRate, frames int) (*oto.Context, error) {
	otoOnce.Do(func() {
		otoSampleRate = sampleRate
		ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
			SampleRate:   sampleRate,
			ChannelCount: 2,
			Format:       oto.FormatFloat32LE,
			BufferSize:   bufferDuration(sampleRate, frames),
		})
		if err != nil {
			otoErr = err
			return
		}
		<-ready
		otoContext = ctx
	})
	if otoErr != nil {
		return nil, otoErr
	}
	if otoSampleRate != sampleRate {
		return nil, fmt.Errorf("oto context already initialized at %d Hz (requested %d Hz)", otoSampleRate, sampleRate)
	}
	return otoContext, nil
}

type otoBackend struct {
	player *oto.Player
	reader *StreamReader
}

func newOtoBackend(sampleRate int, reader *StreamReader) (*otoBackend, error) {
	ctx, err := sharedOtoContext(sampleRate, reader.BufferFrames())
	if err != nil {
		return nil, err
	}
	pl := ctx.NewPlayer(reader)
	// Two blocks of stereo float32.
	pl.SetBufferSize(2 * reader.BufferFrames() * 8)
	return &otoBackend{player: pl, reader: reader}, nil
}

func (b *otoBackend) Start() error {
	b.player.Play()
	return nil
}

func (b *otoBackend) Stop() error {
	if err := b.player.Close(); err != nil {
		return err
	}
	return b.reader.Close()
}
