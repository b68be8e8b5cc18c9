package audio

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Buffer is a bounded FIFO of bytes. Writes that do not fit are truncated
// to the free space; the excess is discarded and counted.
type Buffer struct {
	mu      sync.Mutex
	data    []byte
	size    int
	align   int
	dropped atomic.Int64
	ready   chan struct{}
}

// NewBuffer creates a buffer holding at most capacity bytes. Partial writes
// are cut on multiples of align.
func NewBuffer(capacity, align int) *Buffer {
	if align <= 0 {
		align = 1
	}
	return &Buffer{
		data:  make([]byte, 0, capacity),
		size:  capacity,
		align: align,
		ready: make(chan struct{}, 1),
	}
}

// Write appends p and returns the number of bytes accepted
func (b *Buffer) Write(p []byte) int {
	b.mu.Lock()
	free := b.size - len(b.data)
	n := len(p)
	if n > free {
		n = free - free%b.align
	}
	if n > 0 {
		b.data = append(b.data, p[:n]...)
	}
	b.mu.Unlock()

	if n < len(p) {
		b.dropped.Add(int64(len(p) - n))
	}
	if n > 0 {
		select {
		case b.ready <- struct{}{}:
		default:
		}
	}
	return n
}

// Drain removes and returns everything buffered, or nil when empty
func (b *Buffer) Drain() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.data) == 0 {
		return nil
	}
	out := make([]byte, len(b.data))
	copy(out, b.data)
	b.data = b.data[:0]
	return out
}

// Len returns the number of buffered bytes
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data)
}

// Dropped returns the total number of discarded bytes
func (b *Buffer) Dropped() int64 {
	return b.dropped.Load()
}

// Ready is signalled after a write that stored data
func (b *Buffer) Ready() <-chan struct{} {
	return b.ready
}

// Reset discards buffered data
func (b *Buffer) Reset() {
	b.mu.Lock()
	b.data = b.data[:0]
	b.mu.Unlock()
}

// BufferedSource decouples a capture source from a slow consumer with a
// bounded buffer of the given duration.
type BufferedSource struct {
	Source

	buf    *Buffer
	out    chan []byte
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewBufferedSource wraps src with a buffer of d worth of audio (5 s when zero)
func NewBufferedSource(src Source, d time.Duration) *BufferedSource {
	if d <= 0 {
		d = 5 * time.Second
	}
	f := src.Format()
	capacity := int(float64(f.BytesPerSecond()) * d.Seconds())
	return &BufferedSource{
		Source: src,
		buf:    NewBuffer(capacity, f.FrameSize()),
		out:    make(chan []byte),
	}
}

// Start starts the wrapped source and the pump goroutines
func (s *BufferedSource) Start(ctx context.Context) error {
	if err := s.Source.Start(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	pumpCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.buf.Reset()

	s.wg.Add(2)
	go s.fill(pumpCtx)
	go s.drain(pumpCtx)
	return nil
}

func (s *BufferedSource) fill(ctx context.Context) {
	defer s.wg.Done()
	in := s.Source.Output()
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-in:
			if !ok {
				return
			}
			s.buf.Write(data)
		}
	}
}

func (s *BufferedSource) drain(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.buf.Ready():
		}
		data := s.buf.Drain()
		if data == nil {
			continue
		}
		select {
		case s.out <- data:
		case <-ctx.Done():
			return
		}
	}
}

// Stop stops the pumps and the wrapped source
func (s *BufferedSource) Stop() error {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.mu.Unlock()
	s.wg.Wait()
	return s.Source.Stop()
}

// Close stops and closes the wrapped source
func (s *BufferedSource) Close() error {
	if err := s.Stop(); err != nil {
		return err
	}
	return s.Source.Close()
}

// Output returns the buffered stream
func (s *BufferedSource) Output() <-chan []byte { return s.out }

// Dropped returns how many bytes were discarded on overflow
func (s *BufferedSource) Dropped() int64 { return s.buf.Dropped() }
