package mock

import (
	"context"
	"sync"

	"github.com/kamaraj/voicebot/pkg/adapters/stt"
)

type STTConfig struct {
	Transcript string
	Err        error
}

// Transcriber returns a fixed transcript and records every utterance it
// was handed, so tests can assert on exact pipeline input.
type Transcriber struct {
	cfg STTConfig

	mu         sync.Mutex
	utterances [][]byte
}

func NewTranscriber(cfg STTConfig) *Transcriber {
	return &Transcriber{cfg: cfg}
}

func (m *Transcriber) Name() string { return "mock_stt" }

func (m *Transcriber) Transcribe(ctx context.Context, audio []byte, cfg stt.Config) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	m.utterances = append(m.utterances, append([]byte(nil), audio...))
	m.mu.Unlock()
	if m.cfg.Err != nil {
		return "", m.cfg.Err
	}
	return m.cfg.Transcript, nil
}

// Utterances returns a copy of every audio payload transcribed so far.
func (m *Transcriber) Utterances() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.utterances))
	copy(out, m.utterances)
	return out
}

// Calls returns how many times Transcribe ran.
func (m *Transcriber) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.utterances)
}

var _ stt.Transcriber = (*Transcriber)(nil)
