package audio

import (
	"io"
	"sync"
	"time"
)

// HeadlessBackend pulls blocks on a wall-clock ticker without a device,
// optionally copying the bytes to a sink. It keeps the engine running in
// real time on machines without audio output.
type HeadlessBackend struct {
	reader   io.Reader
	sink     io.Writer
	interval time.Duration
	buf      []byte

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

// NewHeadless creates a backend for reader. sink may be nil.
func NewHeadless(sampleRate int, reader *StreamReader, sink io.Writer) *HeadlessBackend {
	frames := reader.BufferFrames()
	return &HeadlessBackend{
		reader:   reader,
		sink:     sink,
		interval: time.Duration(frames * int(time.Second) / sampleRate),
		buf:      make([]byte, frames*8),
	}
}

func (h *HeadlessBackend) Start() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stop != nil {
		return nil
	}
	h.stop = make(chan struct{})
	h.done = make(chan struct{})
	go h.run(h.stop, h.done)
	return nil
}

func (h *HeadlessBackend) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			n, _ := h.reader.Read(h.buf)
			if h.sink != nil {
				_, _ = h.sink.Write(h.buf[:n])
			}
		}
	}
}

// Stop halts the ticker and waits for the last block to finish.
func (h *HeadlessBackend) Stop() error {
	h.mu.Lock()
	stop, done := h.stop, h.done
	h.stop, h.done = nil, nil
	h.mu.Unlock()
	if stop == nil {
		return nil
	}
	close(stop)
	<-done
	return nil
}
