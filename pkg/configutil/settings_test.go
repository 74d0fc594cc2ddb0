package configutil

import "testing"

func TestDecodeSettingsWeakTypingAndKeyMatching(t *testing.T) {
	var out struct {
		APIKey    string  `mapstructure:"api_key"`
		Threshold float64 `mapstructure:"threshold"`
		TimeoutMS int     `mapstructure:"timeout_ms"`
	}
	err := DecodeSettings(map[string]any{
		"API-Key":   "k",
		"threshold": "0.4",
		"TimeoutMs": 250,
	}, &out)
	if err != nil {
		t.Fatalf("DecodeSettings: %v", err)
	}
	if out.APIKey != "k" || out.Threshold != 0.4 || out.TimeoutMS != 250 {
		t.Fatalf("decoded = %+v", out)
	}
}

func TestDecodeSettingsEmptyInputIsNoop(t *testing.T) {
	var out struct {
		Model string `mapstructure:"model"`
	}
	out.Model = "keep"
	if err := DecodeSettings(nil, &out); err != nil {
		t.Fatalf("DecodeSettings: %v", err)
	}
	if out.Model != "keep" {
		t.Fatalf("model = %q, want untouched", out.Model)
	}
}

func TestRequireString(t *testing.T) {
	if err := RequireString("  ", "vendors.stt.settings.api_key"); err == nil {
		t.Fatal("blank value accepted")
	}
	if err := RequireString("ok", "x"); err != nil {
		t.Fatalf("RequireString: %v", err)
	}
}
