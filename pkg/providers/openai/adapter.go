// Package openai implements the language stage against the OpenAI
// chat completions API.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/kamaraj/voicebot/pkg/errorsx"
	"github.com/kamaraj/voicebot/pkg/llm"
)

const defaultSystemPrompt = "You are a helpful voice assistant. Keep replies short and conversational; they will be spoken aloud."

type Adapter struct {
	APIKey       string
	Model        string
	BaseURL      string
	SystemPrompt string
	MaxTokens    int
	Client       *http.Client
}

func NewAdapter(apiKey, model string) *Adapter {
	return &Adapter{
		APIKey:       apiKey,
		Model:        model,
		BaseURL:      "https://api.openai.com/v1",
		SystemPrompt: defaultSystemPrompt,
		MaxTokens:    150,
		Client:       &http.Client{Timeout: 60 * time.Second},
	}
}

func (a *Adapter) Name() string { return "openai" }

func (a *Adapter) Respond(ctx context.Context, in llm.Request) (llm.Response, error) {
	body, err := a.buildRequest(in)
	if err != nil {
		return llm.Response{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.BaseURL+"/chat/completions", body)
	if err != nil {
		return llm.Response{}, err
	}
	a.applyHeaders(req)

	start := time.Now()
	resp, err := a.client().Do(req)
	if err != nil {
		return llm.Response{}, errorsx.Wrap(err, errorsx.ReasonLLMFailure)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusTooManyRequests {
		body, _ := io.ReadAll(resp.Body)
		return llm.Response{}, errorsx.Wrap(errors.New(string(body)), errorsx.ReasonLLMRateLimit)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return llm.Response{}, errorsx.Wrap(errors.New(string(body)), errorsx.ReasonLLMFailure)
	}

	var payload struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
			TotalTokens      int `json:"total_tokens"`
		} `json:"usage"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return llm.Response{}, errorsx.Wrap(err, errorsx.ReasonLLMFailure)
	}
	if len(payload.Choices) == 0 {
		return llm.Response{}, errorsx.Wrap(errors.New("no choices in response"), errorsx.ReasonLLMFailure)
	}

	return llm.Response{
		Text: payload.Choices[0].Message.Content,
		Usage: llm.Usage{
			PromptTokens:     payload.Usage.PromptTokens,
			CompletionTokens: payload.Usage.CompletionTokens,
			TotalTokens:      payload.Usage.TotalTokens,
		},
		FinishReason: payload.Choices[0].FinishReason,
		Provider:     a.Name(),
		LatencyMS:    float64(time.Since(start).Milliseconds()),
	}, nil
}

func (a *Adapter) buildRequest(in llm.Request) (*bytes.Buffer, error) {
	messages := make([]map[string]any, 0, len(in.History)+2)
	messages = append(messages, map[string]any{"role": "system", "content": a.systemPrompt()})
	for _, m := range in.History {
		messages = append(messages, map[string]any{"role": m.Role, "content": m.Content})
	}
	messages = append(messages, map[string]any{"role": "user", "content": in.Text})

	req := map[string]any{
		"model":    a.Model,
		"messages": messages,
	}
	if a.MaxTokens > 0 {
		req["max_tokens"] = a.MaxTokens
	}
	b, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	return bytes.NewBuffer(b), nil
}

func (a *Adapter) systemPrompt() string {
	if a.SystemPrompt != "" {
		return a.SystemPrompt
	}
	return defaultSystemPrompt
}

func (a *Adapter) applyHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.APIKey)
}

func (a *Adapter) client() *http.Client {
	if a.Client != nil {
		return a.Client
	}
	return http.DefaultClient
}

var _ llm.Responder = (*Adapter)(nil)
