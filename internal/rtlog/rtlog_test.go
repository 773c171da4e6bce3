package rtlog

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestDrainWritesRecords(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	r := NewRing(4)
	r.Log(Record{Code: PcmMissingSound, Tick: 10, A: 3})
	r.Log(Record{Code: DeadlineRisk, Tick: 512, A: 512, F: 0.95})
	if n := r.Drain(logger); n != 2 {
		t.Fatalf("drained %d", n)
	}
	out := buf.String()
	if !strings.Contains(out, "pcm sound not loaded") || !strings.Contains(out, "sound=3") {
		t.Fatalf("missing sound record not logged: %q", out)
	}
	if !strings.Contains(out, "budget_used=0.95") {
		t.Fatalf("deadline record not logged: %q", out)
	}
}

func TestFullRingCountsLost(t *testing.T) {
	r := NewRing(2)
	for i := 0; i < 5; i++ {
		r.Log(Record{Code: BufferOverflow})
	}
	if r.Lost() != 3 {
		t.Fatalf("lost = %d, want 3", r.Lost())
	}
}

func TestNilRingIsNoop(t *testing.T) {
	var r *Ring
	r.Log(Record{Code: BufferOverflow})
	if r.Lost() != 0 || r.Drain(slog.Default()) != 0 {
		t.Fatalf("nil ring should discard")
	}
}

func TestRunDrainsOnCancel(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	r := NewRing(8)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx, logger, time.Hour)
		close(done)
	}()
	r.Log(Record{Code: AutomationPoolFull, Channel: 1, A: 8})
	cancel()
	<-done
	if !strings.Contains(buf.String(), "automation pool full") {
		t.Fatalf("record not drained on cancel: %q", buf.String())
	}
}
