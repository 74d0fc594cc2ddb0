// Package config loads the daemon configuration from a YAML file with
// viper, applies defaults, and expands ${ENV} references so API keys
// stay out of config files.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
	LogFormat   string `mapstructure:"log_format"`

	Server        ServerConfig        `mapstructure:"server"`
	Service       ServiceConfig       `mapstructure:"service"`
	Session       SessionConfig       `mapstructure:"session"`
	Vendors       VendorsConfig       `mapstructure:"vendors"`
	Agent         AgentConfig         `mapstructure:"agent"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type ServiceConfig struct {
	MaxSessions     int `mapstructure:"max_sessions"`
	SessionTimeoutS int `mapstructure:"session_timeout_s"`
	ReaperIntervalS int `mapstructure:"reaper_interval_s"`
}

type SessionConfig struct {
	VADThreshold       float64 `mapstructure:"vad_threshold"`
	SilenceTimeoutMS   int     `mapstructure:"silence_timeout_ms"`
	MaxAudioDurationMS int     `mapstructure:"max_audio_duration_ms"`
	Language           string  `mapstructure:"language"`
	VoiceID            string  `mapstructure:"voice_id"`
}

type VendorConfig struct {
	Provider string         `mapstructure:"provider"`
	Settings map[string]any `mapstructure:"settings"`
}

type VendorsConfig struct {
	STT VendorConfig `mapstructure:"stt"`
	TTS VendorConfig `mapstructure:"tts"`
	LLM VendorConfig `mapstructure:"llm"`
}

type AgentConfig struct {
	FallbackText    string `mapstructure:"fallback_text"`
	DisableFallback bool   `mapstructure:"disable_fallback"`
	CacheTTLS       int    `mapstructure:"cache_ttl_s"`
	CacheSize       int    `mapstructure:"cache_size"`
	MaxHistory      int    `mapstructure:"max_history"`
}

type ObservabilityConfig struct {
	MetricsJSONLPath string `mapstructure:"metrics_jsonl_path"`
}

func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("service.max_sessions", 100)
	v.SetDefault("service.session_timeout_s", 300)
	v.SetDefault("service.reaper_interval_s", 30)
	v.SetDefault("session.vad_threshold", 0.3)
	v.SetDefault("session.silence_timeout_ms", 1500)
	v.SetDefault("session.max_audio_duration_ms", 30000)
	v.SetDefault("session.language", "en")
	v.SetDefault("session.voice_id", "default")
	v.SetDefault("vendors.stt.provider", "mock")
	v.SetDefault("vendors.tts.provider", "mock")
	v.SetDefault("vendors.llm.provider", "mock")
	v.SetDefault("agent.cache_ttl_s", 3600)
	v.SetDefault("agent.cache_size", 1000)
	v.SetDefault("agent.max_history", 10)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal: %w", err)
	}

	expandEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if strings.TrimSpace(c.Vendors.STT.Provider) == "" {
		return fmt.Errorf("vendors.stt.provider is required")
	}
	if strings.TrimSpace(c.Vendors.TTS.Provider) == "" {
		return fmt.Errorf("vendors.tts.provider is required")
	}
	if strings.TrimSpace(c.Vendors.LLM.Provider) == "" {
		return fmt.Errorf("vendors.llm.provider is required")
	}
	if c.Session.VADThreshold <= 0 || c.Session.VADThreshold > 1 {
		return fmt.Errorf("session.vad_threshold must be in (0, 1]: %v", c.Session.VADThreshold)
	}
	return nil
}

func expandEnv(cfg *Config) {
	cfg.Vendors.STT.Settings = expandSettings(cfg.Vendors.STT.Settings)
	cfg.Vendors.TTS.Settings = expandSettings(cfg.Vendors.TTS.Settings)
	cfg.Vendors.LLM.Settings = expandSettings(cfg.Vendors.LLM.Settings)
	cfg.Observability.MetricsJSONLPath = os.ExpandEnv(cfg.Observability.MetricsJSONLPath)
}

func expandSettings(settings map[string]any) map[string]any {
	if settings == nil {
		return nil
	}
	for k, v := range settings {
		settings[k] = expandAny(v)
	}
	return settings
}

func expandAny(v any) any {
	switch val := v.(type) {
	case string:
		return os.ExpandEnv(val)
	case []any:
		for i := range val {
			val[i] = expandAny(val[i])
		}
		return val
	case map[string]any:
		for k, v := range val {
			val[k] = expandAny(v)
		}
		return val
	default:
		return v
	}
}
