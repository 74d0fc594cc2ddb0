package mock

import (
	"context"
	"sync/atomic"

	"github.com/kamaraj/voicebot/pkg/adapters/tts"
	"github.com/kamaraj/voicebot/pkg/audiostream"
)

type TTSConfig struct {
	Chunks [][]byte
	// Err makes Synthesize fail before producing any stream.
	Err error
	// StreamErr terminates the stream mid-flight after the chunks.
	StreamErr error
}

// Synthesizer emits a fixed chunk sequence per synthesis call.
type Synthesizer struct {
	cfg   TTSConfig
	calls atomic.Int64
}

func NewSynthesizer(cfg TTSConfig) *Synthesizer {
	if len(cfg.Chunks) == 0 && cfg.Err == nil {
		// One silent 20ms frame at 16 kHz mono.
		cfg.Chunks = [][]byte{make([]byte, 640)}
	}
	return &Synthesizer{cfg: cfg}
}

func (m *Synthesizer) Name() string { return "mock_tts" }

func (m *Synthesizer) Synthesize(ctx context.Context, text string, cfg tts.Config) (*audiostream.Stream, error) {
	m.calls.Add(1)
	if m.cfg.Err != nil {
		return nil, m.cfg.Err
	}
	stream, w := audiostream.NewPipe(ctx)
	go func() {
		for _, chunk := range m.cfg.Chunks {
			if err := w.Write(chunk); err != nil {
				w.CloseWithError(err)
				return
			}
		}
		w.CloseWithError(m.cfg.StreamErr)
	}()
	return stream, nil
}

// Calls returns how many times Synthesize ran.
func (m *Synthesizer) Calls() int { return int(m.calls.Load()) }

var _ tts.Synthesizer = (*Synthesizer)(nil)
