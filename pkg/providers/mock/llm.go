package mock

import (
	"context"
	"sync"

	"github.com/kamaraj/voicebot/pkg/llm"
)

type LLMConfig struct {
	ResponseText string
	Err          error
}

// Responder echoes a fixed reply and keeps the requests it saw.
type Responder struct {
	cfg LLMConfig

	mu       sync.Mutex
	requests []llm.Request
}

func NewResponder(cfg LLMConfig) *Responder {
	if cfg.ResponseText == "" && cfg.Err == nil {
		cfg.ResponseText = "mock response"
	}
	return &Responder{cfg: cfg}
}

func (m *Responder) Name() string { return "mock_llm" }

func (m *Responder) Respond(ctx context.Context, req llm.Request) (llm.Response, error) {
	if err := ctx.Err(); err != nil {
		return llm.Response{}, err
	}
	m.mu.Lock()
	m.requests = append(m.requests, req)
	err := m.cfg.Err
	text := m.cfg.ResponseText
	m.mu.Unlock()
	if err != nil {
		return llm.Response{}, err
	}
	return llm.Response{Text: text, Provider: m.Name()}, nil
}

// SetError makes subsequent Respond calls fail with err.
func (m *Responder) SetError(err error) {
	m.mu.Lock()
	m.cfg.Err = err
	m.mu.Unlock()
}

// Requests returns a copy of every request seen.
func (m *Responder) Requests() []llm.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]llm.Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// Calls returns how many times Respond ran.
func (m *Responder) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

var _ llm.Responder = (*Responder)(nil)
