package stt

import "context"

// Transcriber defines the contract for any STT vendor implementation.
// It consumes one complete utterance of PCM audio and returns the
// recognized text; an empty transcript is a valid result for noise-only
// input, not an error.
type Transcriber interface {
	// Name returns adapter name for logging/metrics.
	Name() string
	// Transcribe converts one utterance of audio into text.
	Transcribe(ctx context.Context, audio []byte, cfg Config) (string, error)
}

// Config contains vendor-agnostic STT configuration.
type Config struct {
	SessionID  string
	SampleRate int
	Channels   int
	Language   string
}
