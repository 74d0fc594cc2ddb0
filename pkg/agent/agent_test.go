package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/kamaraj/voicebot/pkg/llm"
	"github.com/kamaraj/voicebot/pkg/providers/mock"
)

func TestRespondCachesRepeatedUtterances(t *testing.T) {
	provider := mock.NewResponder(mock.LLMConfig{ResponseText: "the answer"})
	a := New(Config{Provider: provider})

	req := llm.Request{Text: "What are your hours?", SessionID: "s1"}
	first, err := a.Respond(context.Background(), req)
	if err != nil {
		t.Fatalf("respond: %v", err)
	}
	if first.CacheHit {
		t.Fatalf("first response cannot be a cache hit")
	}

	second, err := a.Respond(context.Background(), req)
	if err != nil {
		t.Fatalf("respond: %v", err)
	}
	if !second.CacheHit || second.Text != "the answer" {
		t.Fatalf("expected cache hit with same text, got %+v", second)
	}
	if provider.Calls() != 1 {
		t.Fatalf("provider must run once, ran %d times", provider.Calls())
	}
}

func TestRespondFallbackOnProviderError(t *testing.T) {
	provider := mock.NewResponder(mock.LLMConfig{Err: errors.New("down")})
	a := New(Config{Provider: provider, FallbackText: "please hold"})

	resp, err := a.Respond(context.Background(), llm.Request{Text: "hi", SessionID: "s1"})
	if err != nil {
		t.Fatalf("fallback mode must not surface provider errors: %v", err)
	}
	if resp.Text != "please hold" {
		t.Fatalf("expected fallback text, got %q", resp.Text)
	}
	// Failed answers must not poison the cache.
	if _, ok := a.cache.Get("hi"); ok {
		t.Fatalf("fallback reply must not be cached")
	}
}

func TestRespondStrictModePropagatesError(t *testing.T) {
	boom := errors.New("down")
	provider := mock.NewResponder(mock.LLMConfig{Err: boom})
	a := New(Config{Provider: provider, DisableFallback: true})

	if _, err := a.Respond(context.Background(), llm.Request{Text: "hi"}); !errors.Is(err, boom) {
		t.Fatalf("strict mode must propagate the provider error, got %v", err)
	}
}

func TestHistoryFlowsToProvider(t *testing.T) {
	provider := mock.NewResponder(mock.LLMConfig{ResponseText: "ok"})
	a := New(Config{Provider: provider})

	a.Respond(context.Background(), llm.Request{Text: "first question", SessionID: "s1"})
	a.Respond(context.Background(), llm.Request{Text: "second question", SessionID: "s1"})

	reqs := provider.Requests()
	if len(reqs) != 2 {
		t.Fatalf("expected 2 provider calls, got %d", len(reqs))
	}
	if len(reqs[0].History) != 0 {
		t.Fatalf("first call must have empty history")
	}
	h := reqs[1].History
	if len(h) != 2 || h[0].Content != "first question" || h[1].Content != "ok" {
		t.Fatalf("second call must carry the first exchange, got %+v", h)
	}
}

func TestForgetDropsHistory(t *testing.T) {
	provider := mock.NewResponder(mock.LLMConfig{ResponseText: "ok"})
	a := New(Config{Provider: provider})
	a.Respond(context.Background(), llm.Request{Text: "q1", SessionID: "s1"})
	a.Forget("s1")
	a.Respond(context.Background(), llm.Request{Text: "q2 unique", SessionID: "s1"})
	reqs := provider.Requests()
	if len(reqs[1].History) != 0 {
		t.Fatalf("history must be empty after Forget, got %+v", reqs[1].History)
	}
}

func TestTokenAccounting(t *testing.T) {
	provider := mock.NewResponder(mock.LLMConfig{ResponseText: "12345678"}) // 2 tokens
	a := New(Config{Provider: provider})
	resp, err := a.Respond(context.Background(), llm.Request{Text: "abcdefghijkl"}) // 3 tokens
	if err != nil {
		t.Fatalf("respond: %v", err)
	}
	if resp.Usage.PromptTokens != 3 || resp.Usage.CompletionTokens != 2 || resp.Usage.TotalTokens != 5 {
		t.Fatalf("unexpected usage estimate: %+v", resp.Usage)
	}
	stats := a.TokenStats()
	if stats.TotalRequests != 1 || stats.TotalTokens != 5 {
		t.Fatalf("unexpected cumulative stats: %+v", stats)
	}
}
