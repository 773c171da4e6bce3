// Package rtlog moves diagnostics off the audio thread. The audio thread
// writes fixed-size records into a wait-free ring; another goroutine turns
// them into slog records.
package rtlog

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/cbegin/audial-go/internal/spsc"
)

// Code identifies a real-time condition.
type Code uint8

const (
	BufferOverflow Code = iota + 1
	PcmPoolFull
	PcmMissingSound
	AutomationPoolFull
	DeadlineRisk
	UnknownEvent
	InvalidParam
)

var codeMessages = [...]string{
	BufferOverflow:     "event buffer full, dropped events",
	PcmPoolFull:        "pcm voice pool full, dropped sound",
	PcmMissingSound:    "pcm sound not loaded, ignored",
	AutomationPoolFull: "automation pool full, dropped ramp",
	DeadlineRisk:       "audio callback close to deadline",
	UnknownEvent:       "unknown event type",
	InvalidParam:       "invalid synth param",
}

func (c Code) String() string {
	if int(c) < len(codeMessages) && codeMessages[c] != "" {
		return codeMessages[c]
	}
	return "unknown"
}

// Record is one diagnostic. A and F carry code-specific values.
type Record struct {
	Code    Code
	Channel int32
	Tick    int64
	A       int64
	F       float64
}

// Ring is the audio-thread side of the diagnostics channel. A nil *Ring
// discards everything.
type Ring struct {
	q    *spsc.Queue[Record]
	lost atomic.Uint64
}

func NewRing(capacity int) *Ring {
	return &Ring{q: spsc.New[Record](capacity)}
}

// Log enqueues rec without blocking. Records that do not fit are counted.
func (r *Ring) Log(rec Record) {
	if r == nil {
		return
	}
	if !r.q.Push(rec) {
		r.lost.Add(1)
	}
}

// Lost reports how many records were discarded because the ring was full.
func (r *Ring) Lost() uint64 {
	if r == nil {
		return 0
	}
	return r.lost.Load()
}

// Drain writes every pending record to logger and returns the count.
func (r *Ring) Drain(logger *slog.Logger) int {
	if r == nil {
		return 0
	}
	n := 0
	for rec := r.q.Front(); rec != nil; rec = r.q.Front() {
		emit(logger, *rec)
		r.q.Pop()
		n++
	}
	return n
}

// Run drains the ring every interval until ctx is done, then drains once more.
func (r *Ring) Run(ctx context.Context, logger *slog.Logger, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.Drain(logger)
			return
		case <-ticker.C:
			r.Drain(logger)
		}
	}
}

func emit(logger *slog.Logger, rec Record) {
	attrs := []any{"tick", rec.Tick}
	level := slog.LevelWarn
	switch rec.Code {
	case BufferOverflow:
		attrs = append(attrs, "dropped", rec.A)
	case PcmPoolFull, PcmMissingSound:
		attrs = append(attrs, "sound", rec.A)
	case AutomationPoolFull, InvalidParam:
		attrs = append(attrs, "channel", rec.Channel, "param", rec.A)
	case DeadlineRisk:
		attrs = append(attrs, "frames", rec.A, "budget_used", rec.F)
	case UnknownEvent:
		level = slog.LevelDebug
		attrs = append(attrs, "channel", rec.Channel, "type", rec.A)
	}
	logger.Log(context.Background(), level, rec.Code.String(), attrs...)
}
