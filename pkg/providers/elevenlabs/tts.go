// Package elevenlabs implements streaming text-to-speech over the
// ElevenLabs HTTP streaming endpoint. Audio starts flowing on the reply
// stream as soon as the first response bytes arrive.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/kamaraj/voicebot/pkg/adapters/tts"
	"github.com/kamaraj/voicebot/pkg/audiostream"
	"github.com/kamaraj/voicebot/pkg/errorsx"
	"github.com/kamaraj/voicebot/pkg/logging"
)

const (
	defaultBaseURL = "https://api.elevenlabs.io/v1"
	defaultModelID = "eleven_turbo_v2_5"
	// Read size for the response body. Roughly 100ms of 16 kHz PCM.
	chunkSize = 3200
)

type Config struct {
	APIKey  string
	ModelID string
	BaseURL string
	Client  *http.Client
}

type Synthesizer struct {
	cfg    Config
	logger *slog.Logger
}

func New(cfg Config) (*Synthesizer, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("elevenlabs: api key required")
	}
	if cfg.ModelID == "" {
		cfg.ModelID = defaultModelID
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: 60 * time.Second}
	}
	return &Synthesizer{
		cfg:    cfg,
		logger: logging.NewComponentLogger(slog.Default(), "elevenlabs_tts"),
	}, nil
}

func (s *Synthesizer) Name() string { return "elevenlabs" }

func (s *Synthesizer) Synthesize(ctx context.Context, text string, cfg tts.Config) (*audiostream.Stream, error) {
	voiceID := cfg.VoiceID
	if voiceID == "" || voiceID == "default" {
		voiceID = "21m00Tcm4TlvDq8ikWAM"
	}

	payload, err := json.Marshal(map[string]any{
		"text":     text,
		"model_id": s.cfg.ModelID,
		"voice_settings": map[string]any{
			"stability":        0.5,
			"similarity_boost": 0.8,
		},
	})
	if err != nil {
		return nil, err
	}

	endpoint := s.cfg.BaseURL + "/text-to-speech/" + url.PathEscape(voiceID) + "/stream"
	q := url.Values{}
	q.Set("output_format", "pcm_"+strconv.Itoa(cfg.SampleRate))
	q.Set("optimize_streaming_latency", "3")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+"?"+q.Encode(), bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", s.cfg.APIKey)

	resp, err := s.cfg.Client.Do(req)
	if err != nil {
		return nil, errorsx.Wrap(err, errorsx.ReasonTTSFailure)
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, errorsx.Wrap(errors.New(string(body)), errorsx.ReasonTTSRateLimit)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, errorsx.Wrap(fmt.Errorf("status %d: %s", resp.StatusCode, body), errorsx.ReasonTTSFailure)
	}

	out, w := audiostream.NewPipe(ctx)
	go func() {
		defer resp.Body.Close()
		total := 0
		buf := make([]byte, chunkSize)
		for {
			n, err := resp.Body.Read(buf)
			if n > 0 {
				total += n
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				if werr := w.Write(chunk); werr != nil {
					s.logger.Debug("synthesis_cancelled",
						"session_id", cfg.SessionID, "bytes_sent", total)
					return
				}
			}
			if err == io.EOF {
				s.logger.Debug("synthesis_complete",
					"session_id", cfg.SessionID, "bytes", total)
				w.Close()
				return
			}
			if err != nil {
				s.logger.Error("synthesis_read_error",
					"session_id", cfg.SessionID, "error", err.Error())
				w.CloseWithError(errorsx.Wrap(err, errorsx.ReasonTTSFailure))
				return
			}
		}
	}()
	return out, nil
}

var _ tts.Synthesizer = (*Synthesizer)(nil)
