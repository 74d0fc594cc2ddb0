package vad

import (
	"encoding/binary"
	"math"
	"testing"
	"time"
)

// pcmFrame builds a frame where every sample has the given amplitude.
func pcmFrame(amplitude int16, samples int) []byte {
	out := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(amplitude))
	}
	return out
}

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newFakeClock() *fakeClock { return &fakeClock{t: time.Unix(1700000000, 0)} }
func newDetector(c *fakeClock, opts ...Option) *Detector {
	return New(append([]Option{WithClock(c.now)}, opts...)...)
}

func TestShortFramesYieldZeroEnergy(t *testing.T) {
	d := New()
	for _, frame := range [][]byte{nil, {}, {0x7f}} {
		if _, energy := d.Process(frame); energy != 0.0 {
			t.Fatalf("frame %v: expected energy 0.0, got %f", frame, energy)
		}
	}
}

func TestOddLengthFrameTruncates(t *testing.T) {
	d := New()
	// Two full samples of amplitude 16384 plus a dangling byte.
	frame := append(pcmFrame(16384, 2), 0xff)
	_, energy := d.Process(frame)
	want := 16384.0 / 32768.0
	if math.Abs(energy-want) > 1e-9 {
		t.Fatalf("expected energy %f, got %f", want, energy)
	}
}

func TestEnergyFormulaExact(t *testing.T) {
	d := New()
	// Constant amplitude: RMS equals the amplitude.
	_, energy := d.Process(pcmFrame(3277, 160))
	want := 3277.0 / 32768.0
	if math.Abs(energy-want) > 1e-9 {
		t.Fatalf("expected energy %f, got %f", want, energy)
	}
}

func TestEnergyClipsToOne(t *testing.T) {
	d := New()
	if _, energy := d.Process(pcmFrame(math.MinInt16, 8)); energy > 1.0 {
		t.Fatalf("energy must clip to 1.0, got %f", energy)
	}
}

func TestSmoothingWindowMean(t *testing.T) {
	d := New(WithSmoothingFrames(2))
	d.Process(pcmFrame(0, 4))
	_, energy := d.Process(pcmFrame(16384, 4))
	want := (0.0 + 0.5) / 2
	if math.Abs(energy-want) > 1e-9 {
		t.Fatalf("expected smoothed energy %f, got %f", want, energy)
	}
	// Window full: oldest entry drops off.
	_, energy = d.Process(pcmFrame(16384, 4))
	if math.Abs(energy-0.5) > 1e-9 {
		t.Fatalf("expected smoothed energy 0.5, got %f", energy)
	}
}

func TestSpeechClassification(t *testing.T) {
	d := New()
	loud := pcmFrame(16384, 160) // energy 0.5 > 0.3
	if isSpeech, _ := d.Process(loud); !isSpeech {
		t.Fatalf("loud frame must classify as speech")
	}
}

func TestSilenceDurationTracking(t *testing.T) {
	clock := newFakeClock()
	d := newDetector(clock, WithSmoothingFrames(1))
	loud := pcmFrame(16384, 160)
	quiet := pcmFrame(0, 160)

	if d.SilenceDuration() != 0 {
		t.Fatalf("no speech yet: silence duration must be 0")
	}

	d.Process(loud)
	if d.SilenceDuration() != 0 {
		t.Fatalf("while speaking: silence duration must be 0")
	}

	// Transition to silence.
	d.Process(quiet)
	last := time.Duration(0)
	for i := 0; i < 5; i++ {
		clock.advance(100 * time.Millisecond)
		d.Process(quiet)
		cur := d.SilenceDuration()
		if cur < last {
			t.Fatalf("silence duration must be monotonically non-decreasing: %v < %v", cur, last)
		}
		last = cur
	}
	if last < 500*time.Millisecond {
		t.Fatalf("expected at least 500ms of silence, got %v", last)
	}

	// Speech resets it.
	d.Process(loud)
	if d.SilenceDuration() != 0 {
		t.Fatalf("speech must reset silence duration to 0")
	}
}

func TestDeterministicForIdenticalInput(t *testing.T) {
	run := func() []float64 {
		d := New()
		var out []float64
		for i := 0; i < 10; i++ {
			_, e := d.Process(pcmFrame(int16(i*1000), 80))
			out = append(out, e)
		}
		return out
	}
	a, b := run(), run()
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("energy sequence diverged at %d: %f vs %f", i, a[i], b[i])
		}
	}
}
