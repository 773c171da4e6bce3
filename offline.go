package audial

import (
	"bytes"
	"encoding/binary"
	"sort"

	"github.com/cbegin/audial-go/internal/beatclock"
	"github.com/cbegin/audial-go/internal/beatevent"
)

// RenderOffline plays a beat-timed event list through a fresh context
// without an audio device and returns seconds of interleaved stereo. opts
// configure the context as for NewContext; the backend is ignored.
func RenderOffline(events []beatevent.BeatEvent, bpm, seconds float64, opts ...Option) ([]float32, error) {
	c, err := NewContext(opts...)
	if err != nil {
		return nil, err
	}
	clock := beatclock.New(bpm, c.SampleRate(), nil)
	pending := beatevent.ToTickEvents(clock, events, 0)
	sort.SliceStable(pending, func(i, j int) bool { return pending[i].TimeInTicks < pending[j].TimeInTicks })

	frames := int(float64(c.SampleRate()) * seconds)
	out := make([]float32, frames*2)
	block := c.BufferFrames() * 2
	next := 0
	for pos := 0; pos < len(out); pos += block {
		end := min(pos+block, len(out))
		// Events skip the queue and land in the dispatch buffer just before
		// the block that plays them.
		horizon := int64(end / 2)
		for ; next < len(pending) && pending[next].TimeInTicks < horizon; next++ {
			c.mixer.Schedule(pending[next])
		}
		if err := c.Render(out[pos:end]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// wavHeader is the canonical 44-byte RIFF header for IEEE float samples.
type wavHeader struct {
	Riff       [4]byte
	ChunkSize  uint32
	Wave       [4]byte
	Fmt        [4]byte
	FmtSize    uint32
	Format     uint16
	Channels   uint16
	SampleRate uint32
	ByteRate   uint32
	BlockAlign uint16
	Bits       uint16
	Data       [4]byte
	DataSize   uint32
}

const wavFormatFloat = 3

// EncodeWAVFloat32LE wraps interleaved samples in a 32-bit float WAV file.
func EncodeWAVFloat32LE(samples []float32, sampleRate int, channels int) []byte {
	dataSize := uint32(len(samples) * 4)
	h := wavHeader{
		Riff:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:  36 + dataSize,
		Wave:       [4]byte{'W', 'A', 'V', 'E'},
		Fmt:        [4]byte{'f', 'm', 't', ' '},
		FmtSize:    16,
		Format:     wavFormatFloat,
		Channels:   uint16(channels),
		SampleRate: uint32(sampleRate),
		ByteRate:   uint32(sampleRate * channels * 4),
		BlockAlign: uint16(channels * 4),
		Bits:       32,
		Data:       [4]byte{'d', 'a', 't', 'a'},
		DataSize:   dataSize,
	}
	var buf bytes.Buffer
	buf.Grow(44 + int(dataSize))
	// Writes to a bytes.Buffer cannot fail.
	_ = binary.Write(&buf, binary.LittleEndian, &h)
	_ = binary.Write(&buf, binary.LittleEndian, samples)
	return buf.Bytes()
}
