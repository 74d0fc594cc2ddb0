// Package agent wraps a text-generation backend with the conversational
// plumbing the pipeline's LLM stage expects: response caching for repeated
// utterances, bounded per-session history, token accounting, and a
// fallback reply so every utterance yields exactly one answer even when
// the provider is down.
package agent

import (
	"context"
	"log/slog"
	"time"

	"github.com/kamaraj/voicebot/pkg/llm"
	"github.com/kamaraj/voicebot/pkg/logging"
	"github.com/kamaraj/voicebot/pkg/memory"
)

// DefaultFallbackText is spoken when the provider fails and no fallback
// is configured.
const DefaultFallbackText = "I'm sorry, I'm having trouble answering right now. Please try again."

const historyWindow = 5

// Config assembles an Agent.
type Config struct {
	Provider     llm.Responder
	Cache        *memory.ResponseCache
	Memory       *memory.ConversationMemory
	FallbackText string
	// DisableFallback propagates provider errors instead of answering
	// with the fallback text. The pipeline then flags the session.
	DisableFallback bool
	Logger          *slog.Logger
	Clock           func() time.Time
}

// Agent is the llm.Responder the pipeline talks to.
type Agent struct {
	provider llm.Responder
	cache    *memory.ResponseCache
	memory   *memory.ConversationMemory
	tokens   *TokenCounter
	fallback string
	strict   bool
	logger   *slog.Logger
	now      func() time.Time
}

// New builds an Agent around a provider. Cache and memory default to
// fresh bounded stores.
func New(cfg Config) *Agent {
	a := &Agent{
		provider: cfg.Provider,
		cache:    cfg.Cache,
		memory:   cfg.Memory,
		tokens:   NewTokenCounter(),
		fallback: cfg.FallbackText,
		strict:   cfg.DisableFallback,
		logger:   cfg.Logger,
		now:      cfg.Clock,
	}
	if a.cache == nil {
		a.cache = memory.NewResponseCache()
	}
	if a.memory == nil {
		a.memory = memory.NewConversationMemory()
	}
	if a.fallback == "" {
		a.fallback = DefaultFallbackText
	}
	if a.logger == nil {
		a.logger = logging.NewComponentLogger(slog.Default(), "agent")
	}
	if a.now == nil {
		a.now = time.Now
	}
	return a
}

func (a *Agent) Name() string { return "agent(" + a.provider.Name() + ")" }

// Respond answers one utterance. Cache hits skip the provider; provider
// failures produce the fallback reply unless strict mode is on.
func (a *Agent) Respond(ctx context.Context, req llm.Request) (llm.Response, error) {
	if cached, ok := a.cache.Get(req.Text); ok {
		a.logger.Debug("cache_hit", "session_id", req.SessionID)
		a.remember(req.SessionID, req.Text, cached)
		return llm.Response{
			Text:     cached,
			Provider: a.provider.Name(),
			CacheHit: true,
		}, nil
	}

	req.History = a.memory.Context(req.SessionID, historyWindow)

	start := a.now()
	resp, err := a.provider.Respond(ctx, req)
	if err != nil {
		if a.strict {
			return llm.Response{}, err
		}
		a.logger.Error("provider_failure", "session_id", req.SessionID, "provider", a.provider.Name(), "err", err)
		resp = llm.Response{Text: a.fallback, Provider: a.provider.Name()}
	}
	resp.LatencyMS = float64(a.now().Sub(start).Milliseconds())

	in, out := a.tokens.Add(req.Text, resp.Text)
	if resp.Usage.TotalTokens == 0 {
		resp.Usage = llm.Usage{
			PromptTokens:     in,
			CompletionTokens: out,
			TotalTokens:      in + out,
		}
	}

	a.remember(req.SessionID, req.Text, resp.Text)
	if err == nil {
		a.cache.Set(req.Text, resp.Text)
	}
	return resp, nil
}

// Forget drops a session's conversation history, called on session end.
func (a *Agent) Forget(sessionID string) { a.memory.Forget(sessionID) }

// TokenStats exposes cumulative usage for introspection endpoints.
func (a *Agent) TokenStats() TokenStats { return a.tokens.Stats() }

func (a *Agent) remember(sessionID, question, answer string) {
	a.memory.Add(sessionID, "user", question)
	a.memory.Add(sessionID, "assistant", answer)
}

var _ llm.Responder = (*Agent)(nil)
