// Package providers maps vendor names from config onto concrete stage
// adapters.
package providers

import (
	"fmt"
	"strings"
	"time"

	"github.com/kamaraj/voicebot/pkg/adapters/stt"
	"github.com/kamaraj/voicebot/pkg/adapters/tts"
	"github.com/kamaraj/voicebot/pkg/configutil"
	"github.com/kamaraj/voicebot/pkg/llm"
	"github.com/kamaraj/voicebot/pkg/providers/deepgram"
	"github.com/kamaraj/voicebot/pkg/providers/elevenlabs"
	"github.com/kamaraj/voicebot/pkg/providers/mock"
	"github.com/kamaraj/voicebot/pkg/providers/openai"
)

type STTFactory func(settings map[string]any) (stt.Transcriber, error)
type TTSFactory func(settings map[string]any) (tts.Synthesizer, error)
type LLMFactory func(settings map[string]any) (llm.Responder, error)

type Registry struct {
	stt map[string]STTFactory
	tts map[string]TTSFactory
	llm map[string]LLMFactory
}

func NewRegistry() *Registry {
	return &Registry{
		stt: make(map[string]STTFactory),
		tts: make(map[string]TTSFactory),
		llm: make(map[string]LLMFactory),
	}
}

// Default returns a registry with every built-in vendor registered.
func Default() *Registry {
	r := NewRegistry()
	r.RegisterSTT("mock", buildMockSTT)
	r.RegisterSTT("deepgram", buildDeepgramSTT)
	r.RegisterTTS("mock", buildMockTTS)
	r.RegisterTTS("elevenlabs", buildElevenLabsTTS)
	r.RegisterLLM("mock", buildMockLLM)
	r.RegisterLLM("openai", buildOpenAILLM)
	return r
}

func (r *Registry) RegisterSTT(name string, factory STTFactory) {
	r.stt[normalize(name)] = factory
}

func (r *Registry) RegisterTTS(name string, factory TTSFactory) {
	r.tts[normalize(name)] = factory
}

func (r *Registry) RegisterLLM(name string, factory LLMFactory) {
	r.llm[normalize(name)] = factory
}

func (r *Registry) BuildSTT(provider string, settings map[string]any) (stt.Transcriber, error) {
	fn := r.stt[normalize(provider)]
	if fn == nil {
		return nil, fmt.Errorf("stt provider not registered: %s", provider)
	}
	return fn(settings)
}

func (r *Registry) BuildTTS(provider string, settings map[string]any) (tts.Synthesizer, error) {
	fn := r.tts[normalize(provider)]
	if fn == nil {
		return nil, fmt.Errorf("tts provider not registered: %s", provider)
	}
	return fn(settings)
}

func (r *Registry) BuildLLM(provider string, settings map[string]any) (llm.Responder, error) {
	fn := r.llm[normalize(provider)]
	if fn == nil {
		return nil, fmt.Errorf("llm provider not registered: %s", provider)
	}
	return fn(settings)
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func buildMockSTT(settings map[string]any) (stt.Transcriber, error) {
	var s struct {
		Transcript string `mapstructure:"transcript"`
	}
	if err := configutil.DecodeSettings(settings, &s); err != nil {
		return nil, err
	}
	if s.Transcript == "" {
		s.Transcript = "mock transcript"
	}
	return mock.NewTranscriber(mock.STTConfig{Transcript: s.Transcript}), nil
}

func buildDeepgramSTT(settings map[string]any) (stt.Transcriber, error) {
	var s struct {
		APIKey    string `mapstructure:"api_key"`
		Model     string `mapstructure:"model"`
		TimeoutMS int    `mapstructure:"timeout_ms"`
	}
	if err := configutil.DecodeSettings(settings, &s); err != nil {
		return nil, err
	}
	if err := configutil.RequireString(s.APIKey, "vendors.stt.settings.api_key"); err != nil {
		return nil, err
	}
	return deepgram.New(deepgram.Config{
		APIKey:  s.APIKey,
		Model:   s.Model,
		Timeout: time.Duration(s.TimeoutMS) * time.Millisecond,
	})
}

func buildMockTTS(settings map[string]any) (tts.Synthesizer, error) {
	return mock.NewSynthesizer(mock.TTSConfig{}), nil
}

func buildElevenLabsTTS(settings map[string]any) (tts.Synthesizer, error) {
	var s struct {
		APIKey  string `mapstructure:"api_key"`
		ModelID string `mapstructure:"model_id"`
	}
	if err := configutil.DecodeSettings(settings, &s); err != nil {
		return nil, err
	}
	if err := configutil.RequireString(s.APIKey, "vendors.tts.settings.api_key"); err != nil {
		return nil, err
	}
	return elevenlabs.New(elevenlabs.Config{APIKey: s.APIKey, ModelID: s.ModelID})
}

func buildMockLLM(settings map[string]any) (llm.Responder, error) {
	var s struct {
		ResponseText string `mapstructure:"response_text"`
	}
	if err := configutil.DecodeSettings(settings, &s); err != nil {
		return nil, err
	}
	return mock.NewResponder(mock.LLMConfig{ResponseText: s.ResponseText}), nil
}

func buildOpenAILLM(settings map[string]any) (llm.Responder, error) {
	var s struct {
		APIKey       string `mapstructure:"api_key"`
		Model        string `mapstructure:"model"`
		BaseURL      string `mapstructure:"base_url"`
		SystemPrompt string `mapstructure:"system_prompt"`
		MaxTokens    int    `mapstructure:"max_tokens"`
	}
	if err := configutil.DecodeSettings(settings, &s); err != nil {
		return nil, err
	}
	if err := configutil.RequireString(s.APIKey, "vendors.llm.settings.api_key"); err != nil {
		return nil, err
	}
	if s.Model == "" {
		s.Model = "gpt-4o-mini"
	}
	a := openai.NewAdapter(s.APIKey, s.Model)
	if s.BaseURL != "" {
		a.BaseURL = s.BaseURL
	}
	if s.SystemPrompt != "" {
		a.SystemPrompt = s.SystemPrompt
	}
	if s.MaxTokens > 0 {
		a.MaxTokens = s.MaxTokens
	}
	return a, nil
}
