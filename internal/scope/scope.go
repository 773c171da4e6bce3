// Package scope collects the engine's output for waveform and spectrum
// displays.
package scope

import (
	"math"
	"math/cmplx"
	"sync"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
)

const (
	// FFTSize is the number of samples Spectrum analyses.
	FFTSize    = 2048
	ringBufLen = 131072
)

// Analyzer keeps a mono ring of everything the output tap has seen.
type Analyzer struct {
	mu          sync.Mutex
	sampleRate  int
	ring        []float32
	writePos    int
	totalTapped int64 // mono samples since Reset
}

func NewAnalyzer(sampleRate int) *Analyzer {
	return &Analyzer{
		sampleRate: sampleRate,
		ring:       make([]float32, ringBufLen),
	}
}

func (a *Analyzer) SampleRate() int { return a.sampleRate }

// Tap takes interleaved stereo from the audio thread. It only copies.
func (a *Analyzer) Tap(samples []float32) {
	a.mu.Lock()
	for i := 0; i+1 < len(samples); i += 2 {
		a.ring[a.writePos] = (samples[i] + samples[i+1]) * 0.5
		a.writePos = (a.writePos + 1) % ringBufLen
		a.totalTapped++
	}
	a.mu.Unlock()
}

func (a *Analyzer) Reset() {
	a.mu.Lock()
	a.totalTapped = 0
	a.mu.Unlock()
}

// Snapshot copies the n samples ending at playbackPos, the sample the
// listener is hearing now. Samples tapped after playbackPos are skipped.
func (a *Analyzer) Snapshot(n int, playbackPos int64) []float32 {
	n = min(n, ringBufLen)
	out := make([]float32, n)
	a.mu.Lock()
	delay := int(min(max(a.totalTapped-playbackPos, 0), int64(ringBufLen-n)))
	start := (a.writePos - delay - n + ringBufLen*2) % ringBufLen
	for i := range out {
		out[i] = a.ring[(start+i)%ringBufLen]
	}
	a.mu.Unlock()
	return out
}

// Spectrum returns bars log-frequency bands from 1 bin above DC to maxHz,
// each normalized from -80..0 dB to 0..1. samples shorter than FFTSize give
// nil.
func Spectrum(samples []float32, sampleRate, bars int, maxHz float64) []float64 {
	if len(samples) < FFTSize || bars <= 0 {
		return nil
	}
	x := make([]float64, FFTSize)
	for i := range x {
		x[i] = float64(samples[len(samples)-FFTSize+i])
	}
	window.Apply(x, window.Hann)
	bins := fft.FFTReal(x)

	half := FFTSize / 2
	maxBin := min(int(maxHz*FFTSize/float64(sampleRate)), half)
	logMin, logMax := 0.0, math.Log(float64(maxBin))

	out := make([]float64, bars)
	for i := range out {
		start := int(math.Exp(logMin + float64(i)/float64(bars)*(logMax-logMin)))
		end := int(math.Exp(logMin + float64(i+1)/float64(bars)*(logMax-logMin)))
		end = min(max(end, start+1), half)
		if start >= end {
			continue
		}
		sum := 0.0
		for b := start; b < end; b++ {
			sum += cmplx.Abs(bins[b])
		}
		db := 20 * math.Log10(sum/float64(end-start)/FFTSize+1e-10)
		out[i] = min(max((db+80)/80, 0), 1)
	}
	return out
}

// Smooth moves prev toward next with a fast attack and slower decay and
// returns prev, resized to next.
func Smooth(prev, next []float64) []float64 {
	if len(prev) != len(next) {
		prev = make([]float64, len(next))
	}
	for i, v := range next {
		if v > prev[i] {
			prev[i] = prev[i]*0.3 + v*0.7
		} else {
			prev[i] = prev[i]*0.85 + v*0.15
		}
	}
	return prev
}

// FindZeroCrossing returns the first rising zero crossing within searchLen
// samples, or 0.
func FindZeroCrossing(samples []float32, searchLen int) int {
	searchLen = min(searchLen, len(samples)-2)
	for i := 1; i < searchLen; i++ {
		if samples[i-1] <= 0 && samples[i] > 0 {
			return i
		}
	}
	return 0
}
