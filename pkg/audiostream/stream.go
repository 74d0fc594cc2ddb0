// Package audiostream provides the lazy, finite, non-restartable chunk
// stream used to carry synthesized reply audio from the pipeline back to
// the transport. Cancellation and backpressure are part of the contract:
// the consumer either drains Chunks() to closure or calls Cancel, and the
// producer blocks once the buffer is full.
package audiostream

import (
	"context"
	"errors"
	"sync"
)

// ErrCanceled is reported by Err when the consumer abandoned the stream.
var ErrCanceled = errors.New("audio stream canceled")

const defaultBuffer = 16

// Stream is the consumer half. Chunks is closed when the producer finishes;
// Err is meaningful only after Chunks is exhausted.
type Stream struct {
	ch     chan []byte
	ctx    context.Context
	cancel context.CancelFunc

	mu  sync.Mutex
	err error
}

// Writer is the producer half.
type Writer struct {
	s *Stream

	closeOnce sync.Once
}

// NewPipe returns a connected stream and writer. The stream is canceled
// when ctx is, so an ended session tears down any in-flight synthesis.
func NewPipe(ctx context.Context) (*Stream, *Writer) {
	return newPipe(ctx, defaultBuffer)
}

func newPipe(ctx context.Context, buffer int) (*Stream, *Writer) {
	if ctx == nil {
		ctx = context.Background()
	}
	sctx, cancel := context.WithCancel(ctx)
	s := &Stream{
		ch:     make(chan []byte, buffer),
		ctx:    sctx,
		cancel: cancel,
	}
	return s, &Writer{s: s}
}

// Empty returns an already-closed stream carrying no chunks and the given
// terminal error (nil for a clean empty result).
func Empty(err error) *Stream {
	s, w := newPipe(context.Background(), 1)
	w.CloseWithError(err)
	return s
}

// Chunks returns the chunk channel. It is closed exactly once, after which
// the stream cannot be restarted.
func (s *Stream) Chunks() <-chan []byte { return s.ch }

// Err reports the terminal error, if any. Valid once Chunks is closed.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Cancel abandons the stream. The producer observes the cancellation on its
// next Write and stops; pending buffered chunks are discarded by the runtime
// when the consumer stops reading.
func (s *Stream) Cancel() {
	s.mu.Lock()
	if s.err == nil {
		s.err = ErrCanceled
	}
	s.mu.Unlock()
	s.cancel()
}

// Drain consumes the stream to completion and returns the concatenated
// audio. Used by the non-streaming fallback path.
func (s *Stream) Drain() ([]byte, error) {
	var out []byte
	for chunk := range s.ch {
		out = append(out, chunk...)
	}
	return out, s.Err()
}

// Write delivers one chunk, blocking while the consumer is behind. It
// returns an error once the stream is canceled.
func (w *Writer) Write(chunk []byte) error {
	if len(chunk) == 0 {
		return nil
	}
	// Checked on its own first: a two-way select picks at random when both
	// cases are ready, and a canceled stream must never accept the chunk.
	select {
	case <-w.s.ctx.Done():
		return ErrCanceled
	default:
	}
	select {
	case <-w.s.ctx.Done():
		return ErrCanceled
	case w.s.ch <- chunk:
		return nil
	}
}

// Close finishes the stream cleanly.
func (w *Writer) Close() { w.CloseWithError(nil) }

// CloseWithError finishes the stream, recording err as its terminal state.
// Safe to call once; later calls are ignored.
func (w *Writer) CloseWithError(err error) {
	w.closeOnce.Do(func() {
		w.s.mu.Lock()
		if w.s.err == nil {
			w.s.err = err
		}
		w.s.mu.Unlock()
		close(w.s.ch)
		w.s.cancel()
	})
}
