// Package audio connects a sample source to the host audio driver.
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
)

// DefaultBufferFrames is the number of frames rendered per callback.
const DefaultBufferFrames = 512

var ErrUnknownBackend = errors.New("unknown audio backend")

type Source interface {
	Process(dst []float32)
}

// StreamReader turns a Source into an interleaved float32 little-endian
// stereo byte stream. The source is always asked for whole blocks of the
// configured size, however the driver slices its reads. Only the driver's
// goroutine may call Read.
type StreamReader struct {
	source Source
	block  []float32
	pos    int
}

func NewStreamReader(source Source, bufferFrames int) *StreamReader {
	if bufferFrames <= 0 {
		bufferFrames = DefaultBufferFrames
	}
	block := make([]float32, bufferFrames*2)
	return &StreamReader{source: source, block: block, pos: len(block)}
}

// BufferFrames is the block size handed to the source.
func (r *StreamReader) BufferFrames() int { return len(r.block) / 2 }

func (r *StreamReader) Read(p []byte) (int, error) {
	samples := len(p) / 4
	for i := 0; i < samples; i++ {
		if r.pos == len(r.block) {
			r.source.Process(r.block)
			r.pos = 0
		}
		binary.LittleEndian.PutUint32(p[i*4:], math.Float32bits(r.block[r.pos]))
		r.pos++
	}
	return samples * 4, nil
}

func (r *StreamReader) Close() error { return nil }

// Backend is a running connection to an output device.
type Backend interface {
	Start() error
	Stop() error
}

// Backend names accepted by Open.
const (
	Ebiten   = "ebiten"
	Oto      = "oto"
	Headless = "headless"
)

// Open creates the named backend pulling from source in blocks of
// bufferFrames. The backend is not started.
func Open(name string, sampleRate, bufferFrames int, source Source) (Backend, error) {
	if sampleRate <= 0 {
		return nil, errors.New("sampleRate must be positive")
	}
	reader := NewStreamReader(source, bufferFrames)
	switch strings.ToLower(name) {
	case Ebiten, "":
		return newEbitenBackend(sampleRate, reader)
	case Oto:
		return newOtoBackend(sampleRate, reader)
	case Headless:
		return NewHeadless(sampleRate, reader, nil), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, name)
	}
}

var _ io.ReadCloser = (*StreamReader)(nil)
