package providers

import (
	"strings"
	"testing"
)

func TestDefaultRegistryBuildsMocks(t *testing.T) {
	r := Default()

	sttP, err := r.BuildSTT("mock", map[string]any{"transcript": "hi"})
	if err != nil {
		t.Fatalf("BuildSTT: %v", err)
	}
	if sttP.Name() != "mock_stt" {
		t.Fatalf("stt name = %q", sttP.Name())
	}
	ttsP, err := r.BuildTTS("Mock", nil)
	if err != nil {
		t.Fatalf("BuildTTS: %v", err)
	}
	if ttsP.Name() != "mock_tts" {
		t.Fatalf("tts name = %q", ttsP.Name())
	}
	llmP, err := r.BuildLLM(" MOCK ", nil)
	if err != nil {
		t.Fatalf("BuildLLM: %v", err)
	}
	if llmP.Name() != "mock_llm" {
		t.Fatalf("llm name = %q", llmP.Name())
	}
}

func TestUnknownProvider(t *testing.T) {
	r := Default()
	if _, err := r.BuildSTT("whisper", nil); err == nil || !strings.Contains(err.Error(), "not registered") {
		t.Fatalf("err = %v, want not registered", err)
	}
}

func TestRealVendorsRequireAPIKey(t *testing.T) {
	r := Default()
	if _, err := r.BuildSTT("deepgram", nil); err == nil {
		t.Fatal("deepgram without api key built")
	}
	if _, err := r.BuildTTS("elevenlabs", map[string]any{"model_id": "m"}); err == nil {
		t.Fatal("elevenlabs without api key built")
	}
	if _, err := r.BuildLLM("openai", map[string]any{}); err == nil {
		t.Fatal("openai without api key built")
	}
}
