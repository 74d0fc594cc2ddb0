// Package deepgram implements batch speech-to-text over Deepgram's
// prerecorded REST API. Utterances here are already segmented by the
// local detector, so the streaming websocket surface is unnecessary.
package deepgram

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kamaraj/voicebot/pkg/adapters/stt"
	"github.com/kamaraj/voicebot/pkg/errorsx"
	"github.com/kamaraj/voicebot/pkg/logging"

	prerecorded "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/rest"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	client "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"
)

const (
	defaultModel   = "nova-2"
	defaultTimeout = 30 * time.Second
)

type Config struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Transcriber sends one utterance per request and returns the best
// alternative of the first channel.
type Transcriber struct {
	cfg    Config
	api    *prerecorded.Client
	logger *slog.Logger
}

func New(cfg Config) (*Transcriber, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("deepgram: api key required")
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	c := client.NewREST(cfg.APIKey, &interfaces.ClientOptions{})
	return &Transcriber{
		cfg:    cfg,
		api:    prerecorded.New(c),
		logger: logging.NewComponentLogger(slog.Default(), "deepgram_stt"),
	}, nil
}

func (t *Transcriber) Name() string { return "deepgram" }

func (t *Transcriber) Transcribe(ctx context.Context, audio []byte, cfg stt.Config) (string, error) {
	if len(audio) == 0 {
		return "", nil
	}
	ctx, cancel := context.WithTimeout(ctx, t.cfg.Timeout)
	defer cancel()

	opts := &interfaces.PreRecordedTranscriptionOptions{
		Model:       t.cfg.Model,
		Language:    cfg.Language,
		Encoding:    "linear16",
		SampleRate:  cfg.SampleRate,
		Channels:    cfg.Channels,
		SmartFormat: true,
	}

	start := time.Now()
	res, err := t.api.FromStream(ctx, bytes.NewReader(audio), opts)
	if err != nil {
		t.logger.Error("deepgram_request_failed",
			"session_id", cfg.SessionID,
			"error", err.Error())
		return "", errorsx.Wrap(err, errorsx.ReasonSTTFailure)
	}

	transcript := ""
	if len(res.Results.Channels) > 0 && len(res.Results.Channels[0].Alternatives) > 0 {
		transcript = res.Results.Channels[0].Alternatives[0].Transcript
	}
	t.logger.Debug("transcript_received",
		"session_id", cfg.SessionID,
		"bytes", len(audio),
		"latency_ms", time.Since(start).Milliseconds(),
		"chars", len(transcript))
	return transcript, nil
}

var _ stt.Transcriber = (*Transcriber)(nil)
