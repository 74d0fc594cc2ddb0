package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, "environment: test\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Service.MaxSessions != 100 {
		t.Fatalf("max_sessions = %d, want 100", cfg.Service.MaxSessions)
	}
	if cfg.Session.SilenceTimeoutMS != 1500 {
		t.Fatalf("silence_timeout_ms = %d, want 1500", cfg.Session.SilenceTimeoutMS)
	}
	if cfg.Vendors.STT.Provider != "mock" {
		t.Fatalf("stt provider = %q, want mock", cfg.Vendors.STT.Provider)
	}
}

func TestLoadExpandsEnvInSettings(t *testing.T) {
	t.Setenv("TEST_DG_KEY", "dg-secret")
	path := writeConfig(t, `
vendors:
  stt:
    provider: deepgram
    settings:
      api_key: ${TEST_DG_KEY}
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := cfg.Vendors.STT.Settings["api_key"]; got != "dg-secret" {
		t.Fatalf("api_key = %v, want expanded env value", got)
	}
}

func TestLoadRejectsBadThreshold(t *testing.T) {
	path := writeConfig(t, "session:\n  vad_threshold: 1.5\n")
	if _, err := Load(path); err == nil {
		t.Fatal("threshold 1.5 accepted")
	}
}
