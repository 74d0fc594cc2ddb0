// Package vad implements energy-based voice activity detection over 16-bit
// mono PCM frames. One Detector belongs to exactly one session; its energy
// history must never be shared across conversations.
package vad

import (
	"encoding/binary"
	"math"
	"time"
)

const (
	// DefaultThreshold is the smoothed-energy level above which a frame
	// counts as speech.
	DefaultThreshold = 0.3
	// DefaultSmoothingFrames is the length of the energy smoothing window.
	DefaultSmoothingFrames = 5
)

// Detector classifies frames as speech or silence and tracks how long the
// current silence span has lasted, which drives utterance-boundary
// detection upstream.
type Detector struct {
	threshold       float64
	smoothingFrames int

	energyHistory []float64
	speaking      bool
	silenceStart  time.Time

	now func() time.Time
}

// Option configures a Detector.
type Option func(*Detector)

// WithThreshold overrides the speech threshold.
func WithThreshold(threshold float64) Option {
	return func(d *Detector) {
		if threshold > 0 {
			d.threshold = threshold
		}
	}
}

// WithSmoothingFrames overrides the smoothing window length.
func WithSmoothingFrames(n int) Option {
	return func(d *Detector) {
		if n > 0 {
			d.smoothingFrames = n
		}
	}
}

// WithClock injects a time source. Tests use this to make silence
// durations deterministic.
func WithClock(now func() time.Time) Option {
	return func(d *Detector) {
		if now != nil {
			d.now = now
		}
	}
}

// New returns a Detector with the default threshold and window.
func New(opts ...Option) *Detector {
	d := &Detector{
		threshold:       DefaultThreshold,
		smoothingFrames: DefaultSmoothingFrames,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.energyHistory = make([]float64, 0, d.smoothingFrames)
	return d
}

// SetThreshold updates the speech threshold for subsequent frames.
func (d *Detector) SetThreshold(threshold float64) {
	if threshold > 0 {
		d.threshold = threshold
	}
}

// Process classifies one frame. It pushes the frame's RMS energy into the
// smoothing window and compares the window mean against the threshold.
// The returned energy is the smoothed value in [0, 1].
func (d *Detector) Process(frame []byte) (isSpeech bool, energy float64) {
	e := frameEnergy(frame)

	d.energyHistory = append(d.energyHistory, e)
	if len(d.energyHistory) > d.smoothingFrames {
		d.energyHistory = d.energyHistory[1:]
	}

	var sum float64
	for _, v := range d.energyHistory {
		sum += v
	}
	avg := sum / float64(len(d.energyHistory))

	wasSpeaking := d.speaking
	d.speaking = avg > d.threshold

	switch {
	case wasSpeaking && !d.speaking:
		d.silenceStart = d.now()
	case d.speaking:
		d.silenceStart = time.Time{}
	}

	return d.speaking, avg
}

// Speaking reports whether the detector currently classifies the stream
// as speech.
func (d *Detector) Speaking() bool { return d.speaking }

// SilenceDuration returns how long the stream has been silent after
// speech. It is zero while speaking and zero if speech never occurred.
func (d *Detector) SilenceDuration() time.Duration {
	if d.silenceStart.IsZero() {
		return 0
	}
	return d.now().Sub(d.silenceStart)
}

// frameEnergy computes sqrt(mean(sample^2))/32768 over little-endian int16
// samples, clipped to 1.0. Frames shorter than one sample yield 0; an odd
// trailing byte is ignored.
func frameEnergy(frame []byte) float64 {
	if len(frame) < 2 {
		return 0.0
	}
	n := len(frame) / 2
	var sum float64
	for i := 0; i < n; i++ {
		s := int16(binary.LittleEndian.Uint16(frame[i*2 : i*2+2]))
		sum += float64(s) * float64(s)
	}
	rms := math.Sqrt(sum / float64(n))
	return math.Min(1.0, rms/32768)
}
