package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dimiro1/banner"
	"github.com/joho/godotenv"

	"github.com/kamaraj/voicebot/pkg/agent"
	"github.com/kamaraj/voicebot/pkg/config"
	"github.com/kamaraj/voicebot/pkg/logging"
	"github.com/kamaraj/voicebot/pkg/memory"
	"github.com/kamaraj/voicebot/pkg/metrics"
	"github.com/kamaraj/voicebot/pkg/pipeline"
	"github.com/kamaraj/voicebot/pkg/providers"
	"github.com/kamaraj/voicebot/pkg/service"
	"github.com/kamaraj/voicebot/pkg/transport/ws"
)

const version = "dev"

func printBanner() {
	tpl := "{{ .Title \"VOICEBOT\" \"\" 0 }}\nVersion: " + version + "\n"
	banner.Init(os.Stdout, true, true, bytes.NewBufferString(tpl))
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "voicebotd:", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	logger := logging.InitLogger(logging.LogConfig{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	})
	printBanner()
	logger.Info("starting", "environment", cfg.Environment, "addr", addr(cfg))

	var observer metrics.Observer = metrics.NoopObserver{}
	if path := cfg.Observability.MetricsJSONLPath; path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open metrics file: %w", err)
		}
		defer f.Close()
		jsonl := metrics.NewJSONLObserver(f)
		defer func() { _ = jsonl.Flush() }()
		observer = jsonl
	}

	registry := providers.Default()
	sttP, err := registry.BuildSTT(cfg.Vendors.STT.Provider, cfg.Vendors.STT.Settings)
	if err != nil {
		return fmt.Errorf("build stt: %w", err)
	}
	ttsP, err := registry.BuildTTS(cfg.Vendors.TTS.Provider, cfg.Vendors.TTS.Settings)
	if err != nil {
		return fmt.Errorf("build tts: %w", err)
	}
	llmP, err := registry.BuildLLM(cfg.Vendors.LLM.Provider, cfg.Vendors.LLM.Settings)
	if err != nil {
		return fmt.Errorf("build llm: %w", err)
	}

	responder := agent.New(agent.Config{
		Provider: llmP,
		Cache: memory.NewResponseCache(
			memory.WithCacheTTL(time.Duration(cfg.Agent.CacheTTLS)*time.Second),
			memory.WithCacheSize(cfg.Agent.CacheSize),
		),
		Memory: memory.NewConversationMemory(
			memory.WithMaxMessages(cfg.Agent.MaxHistory),
		),
		FallbackText:    cfg.Agent.FallbackText,
		DisableFallback: cfg.Agent.DisableFallback,
	})

	orch := pipeline.New(pipeline.Config{
		STT:      sttP,
		LLM:      responder,
		TTS:      ttsP,
		Observer: observer,
	})

	svc := service.New(service.Config{
		MaxSessions:    cfg.Service.MaxSessions,
		SessionTimeout: time.Duration(cfg.Service.SessionTimeoutS) * time.Second,
		ReaperInterval: time.Duration(cfg.Service.ReaperIntervalS) * time.Second,
	}, orch)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	svc.StartReaper(ctx)

	srv := ws.New(ws.Config{Addr: addr(cfg), AllowAnyOrigin: true}, svc)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(ctx) }()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		slog.Warn("shutdown_error", "error", err.Error())
	}
	logger.Info("stopped")
	return nil
}

func addr(cfg config.Config) string {
	return fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
}
