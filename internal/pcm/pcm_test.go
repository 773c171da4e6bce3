package pcm

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/wav"

	"github.com/cbegin/audial-go/internal/event"
)

func ramp(n int) []float32 {
	s := make([]float32, n)
	for i := range s {
		s[i] = float32(i+1) / float32(n)
	}
	return s
}

func testBank() *Bank {
	b := NewBank()
	b.Add("kick", ramp(4), NoGroup)
	b.Add("hat_open", ramp(100), 1)
	b.Add("hat_closed", ramp(100), 1)
	b.Add("silence", nil, NoGroup)
	return b
}

func TestBankIndexAndReplace(t *testing.T) {
	b := testBank()
	if i, ok := b.Index("hat_closed"); !ok || i != 2 {
		t.Fatalf("Index(hat_closed) = %d, %v", i, ok)
	}
	if i := b.Add("kick", ramp(8), NoGroup); i != 0 {
		t.Fatalf("replacing kick returned index %d", i)
	}
	if len(b.Sound(0).Samples) != 8 || b.Len() != 4 {
		t.Fatalf("replace did not update in place")
	}
	if b.Sound(3) != nil || b.Sound(9) != nil || b.Sound(-1) != nil {
		t.Fatalf("empty or out-of-range sounds should be nil")
	}
	var nilBank *Bank
	if nilBank.Sound(0) != nil || nilBank.Len() != 0 {
		t.Fatalf("nil bank should be empty")
	}
}

func TestPlayRendersAndEnds(t *testing.T) {
	p := NewPool(testBank(), nil)
	p.Play(0, 0.5, false, 0)
	want := []float32{0.125, 0.25, 0.375, 0.5, 0}
	for i, w := range want {
		if got := p.Next(); got != w {
			t.Fatalf("sample %d = %v, want %v", i, got, w)
		}
	}
	if p.Active() != 0 {
		t.Fatalf("one-shot voice should be free after its last sample")
	}
}

func TestLoopWraps(t *testing.T) {
	p := NewPool(testBank(), nil)
	p.Play(0, 1, true, 0)
	for i := 0; i < 4; i++ {
		p.Next()
	}
	if got := p.Next(); got != 0.25 {
		t.Fatalf("loop should restart, got %v", got)
	}
	p.Stop(0)
	if p.Active() != 0 {
		t.Fatalf("Stop left voice playing")
	}
}

func TestDuplicateStartRules(t *testing.T) {
	p := NewPool(testBank(), nil)
	p.Play(1, 1, false, 10)
	p.Play(1, 1, false, 10)
	if p.Active() != 1 {
		t.Fatalf("same-tick duplicate should be rejected, active = %d", p.Active())
	}
	p.Next()
	p.Next()
	p.Play(1, 1, false, 12)
	if p.Active() != 1 {
		t.Fatalf("retrigger should reuse the voice, active = %d", p.Active())
	}
	if got := p.Next(); got != 0.01 {
		t.Fatalf("retrigger should restart from the first sample, got %v", got)
	}
}

func TestExclusiveGroup(t *testing.T) {
	p := NewPool(testBank(), nil)
	p.Play(0, 1, false, 0)
	p.Play(1, 1, false, 0)
	p.Play(2, 1, false, 5)
	if p.Active() != 2 {
		t.Fatalf("active = %d, want kick plus one hat", p.Active())
	}
	if p.Playing(1) || !p.Playing(2) {
		t.Fatalf("closed hat should cut the open hat")
	}
}

func TestMissingSoundAndPoolFull(t *testing.T) {
	b := NewBank()
	for i := 0; i < NumVoices+1; i++ {
		b.Add(string(rune('a'+i)), ramp(10), NoGroup)
	}
	b.Add("empty", nil, NoGroup)
	p := NewPool(b, nil)
	p.Play(NumVoices+1, 1, false, 0)
	p.Play(42, 1, false, 0)
	if p.Missing() != 2 || p.Active() != 0 {
		t.Fatalf("missing = %d active = %d", p.Missing(), p.Active())
	}
	for i := 0; i < NumVoices+1; i++ {
		p.Play(i, 1, false, 0)
	}
	if p.Active() != NumVoices || p.Drops() != 1 {
		t.Fatalf("active = %d drops = %d", p.Active(), p.Drops())
	}
	if p.Playing(NumVoices) {
		t.Fatalf("the newest request should be the one dropped")
	}
}

func TestHandleEvents(t *testing.T) {
	p := NewPool(testBank(), nil)
	on := event.NewPlayPcm(0, 1, 1, true)
	p.Handle(&on, 0)
	kick := event.NewPlayPcm(0, 0, 1, true)
	p.Handle(&kick, 0)
	stop := event.NewStopPcm(1, 1)
	p.Handle(&stop, 1)
	if p.Playing(1) || !p.Playing(0) {
		t.Fatalf("StopPcm should only stop its sound")
	}
	off := event.NewAllNotesOff(3, 2)
	p.Handle(&off, 2)
	if p.Active() != 0 {
		t.Fatalf("AllNotesOff should stop every PCM voice")
	}
}

func writeTestWAV(t *testing.T, rate beep.SampleRate, n int, value float64) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tone.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	src := beep.Take(n, beep.StreamerFunc(func(samples [][2]float64) (int, bool) {
		for i := range samples {
			samples[i] = [2]float64{value, value}
		}
		return len(samples), true
	}))
	if err := wav.Encode(f, src, beep.Format{SampleRate: rate, NumChannels: 2, Precision: 2}); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadWAVResamples(t *testing.T) {
	const n = 2400
	path := writeTestWAV(t, 24000, n, 0.5)
	b := NewBank()
	i, err := b.LoadWAV("tone", path, NoGroup, 48000)
	if err != nil {
		t.Fatalf("LoadWAV: %v", err)
	}
	s := b.Sound(i)
	if s == nil {
		t.Fatalf("sound not added")
	}
	if len(s.Samples) < 2*n*9/10 || len(s.Samples) > 2*n*11/10 {
		t.Fatalf("resampled length %d, want about %d", len(s.Samples), 2*n)
	}
	mid := s.Samples[len(s.Samples)/2]
	if math.Abs(float64(mid)-0.5) > 0.01 {
		t.Fatalf("mid sample %v, want 0.5", mid)
	}
}

func TestDecodeWAVRejectsGarbage(t *testing.T) {
	if _, err := DecodeWAV(bytes.NewReader([]byte("not a wav file at all")), 48000); err == nil {
		t.Fatalf("expected decode error")
	}
	if _, err := NewBank().LoadWAV("x", filepath.Join(t.TempDir(), "missing.wav"), NoGroup, 48000); err == nil {
		t.Fatalf("expected open error")
	}
}
