package audiostream

import (
	"bytes"
	"context"
	"errors"
	"testing"
)

func TestDrainConcatenatesChunks(t *testing.T) {
	s, w := NewPipe(context.Background())
	go func() {
		_ = w.Write([]byte{1, 2})
		_ = w.Write([]byte{3})
		_ = w.Write(nil) // no-op
		w.Close()
	}()
	got, err := s.Drain()
	if err != nil {
		t.Fatalf("drain error: %v", err)
	}
	if !bytes.Equal(got, []byte{1, 2, 3}) {
		t.Fatalf("unexpected drained audio: %v", got)
	}
}

func TestCloseWithErrorSurfacesAfterDrain(t *testing.T) {
	s, w := NewPipe(context.Background())
	boom := errors.New("synthesis failed")
	go func() {
		_ = w.Write([]byte{9})
		w.CloseWithError(boom)
	}()
	_, err := s.Drain()
	if !errors.Is(err, boom) {
		t.Fatalf("expected terminal error, got %v", err)
	}
}

func TestCancelStopsProducer(t *testing.T) {
	s, w := NewPipe(context.Background())
	s.Cancel()
	if err := w.Write([]byte{1}); !errors.Is(err, ErrCanceled) {
		t.Fatalf("expected ErrCanceled, got %v", err)
	}
	w.Close()
	if _, err := s.Drain(); !errors.Is(err, ErrCanceled) {
		t.Fatalf("expected canceled terminal state, got %v", err)
	}
}

func TestWriteAfterCancelAlwaysRejected(t *testing.T) {
	// The buffered channel stays ready after Cancel, so a write must not
	// be able to win a race against the done signal.
	for i := 0; i < 1000; i++ {
		s, w := NewPipe(context.Background())
		s.Cancel()
		if err := w.Write([]byte{1}); !errors.Is(err, ErrCanceled) {
			t.Fatalf("write %d accepted on a canceled stream: %v", i, err)
		}
	}
}

func TestEmptyStream(t *testing.T) {
	got, err := Empty(nil).Drain()
	if err != nil || len(got) != 0 {
		t.Fatalf("empty stream must drain to nothing, got %v err %v", got, err)
	}
}

func TestParentContextCancelPropagates(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	_, w := NewPipe(ctx)
	cancel()
	if err := w.Write([]byte{1}); !errors.Is(err, ErrCanceled) {
		t.Fatalf("expected ErrCanceled after parent cancel, got %v", err)
	}
}

func TestNonRestartable(t *testing.T) {
	s, w := NewPipe(context.Background())
	w.Close()
	w.CloseWithError(errors.New("late")) // ignored
	if _, ok := <-s.Chunks(); ok {
		t.Fatalf("closed stream must not yield chunks")
	}
	if s.Err() != nil {
		t.Fatalf("late close error must not overwrite clean close")
	}
}
