package tts

import (
	"context"

	"github.com/kamaraj/voicebot/pkg/audiostream"
)

// Synthesizer defines the contract for any TTS vendor implementation.
// Synthesize returns a lazy, finite, non-restartable stream of audio
// chunks; implementations must start emitting as audio becomes available
// rather than buffering the full reply.
type Synthesizer interface {
	// Name returns adapter name for logging/metrics.
	Name() string
	// Synthesize speaks the given text as a chunk stream.
	Synthesize(ctx context.Context, text string, cfg Config) (*audiostream.Stream, error)
}

// Config contains vendor-agnostic TTS configuration.
type Config struct {
	SessionID  string
	SampleRate int
	Channels   int
	VoiceID    string
	Language   string
}
