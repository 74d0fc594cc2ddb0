// Package session holds the per-conversation state for the voice engine:
// the audio accumulator, transcript, telemetry counters, tunable config,
// and the conversation state machine. A session is exclusively owned by
// the service registry and mutated only by its frame-processing path.
package session

import (
	"encoding/hex"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kamaraj/voicebot/pkg/configutil"
	"github.com/kamaraj/voicebot/pkg/vad"
)

// Default tunables, matching the engine's 16 kHz mono 16-bit PCM framing.
const (
	DefaultSilenceTimeoutMS   = 1500
	DefaultMaxAudioDurationMS = 30000
	DefaultLanguage           = "en"
	DefaultVoiceID            = "default"
	SampleRate                = 16000
	bytesPerMillisecond       = SampleRate * 2 / 1000
)

// Config is the per-session tuning surface; every field can be updated
// live through the transport's config message.
type Config struct {
	VADThreshold       float64 `json:"vad_threshold" mapstructure:"vad_threshold"`
	SilenceTimeoutMS   int     `json:"silence_timeout_ms" mapstructure:"silence_timeout_ms"`
	MaxAudioDurationMS int     `json:"max_audio_duration_ms" mapstructure:"max_audio_duration_ms"`
	Language           string  `json:"language" mapstructure:"language"`
	VoiceID            string  `json:"voice_id" mapstructure:"voice_id"`
}

// DefaultConfig returns the tunables a fresh session starts with.
func DefaultConfig() Config {
	return Config{
		VADThreshold:       vad.DefaultThreshold,
		SilenceTimeoutMS:   DefaultSilenceTimeoutMS,
		MaxAudioDurationMS: DefaultMaxAudioDurationMS,
		Language:           DefaultLanguage,
		VoiceID:            DefaultVoiceID,
	}
}

// Metrics are the per-session counters. Counters increment only after the
// corresponding stage succeeded, so a snapshot is always consistent.
type Metrics struct {
	TotalAudioBytes int64   `json:"total_audio_bytes"`
	STTCalls        int64   `json:"stt_calls"`
	LLMCalls        int64   `json:"llm_calls"`
	TTSCalls        int64   `json:"tts_calls"`
	TotalLatencyMS  float64 `json:"total_latency_ms"`
	AvgLatencyMS    float64 `json:"avg_latency_ms"`
}

// Info is the introspection snapshot exposed by the service API.
type Info struct {
	SessionID   string  `json:"session_id"`
	UserID      string  `json:"user_id"`
	State       string  `json:"state"`
	Config      Config  `json:"config"`
	Metrics     Metrics `json:"metrics"`
	DurationSec float64 `json:"duration_sec"`
}

// Session is one live conversation. Its mutable fields are single-writer:
// the registry guarantees no two concurrent frame-processing calls for the
// same session, so only the cross-goroutine introspection reads take mu.
type Session struct {
	ID        string
	UserID    string
	CreatedAt time.Time

	VAD *vad.Detector

	mu           sync.RWMutex
	state        State
	lastActivity time.Time
	audioBuffer  []byte
	transcript   string
	config       Config
	metrics      Metrics
	utterances   int64

	now func() time.Time
}

// NewID generates a fresh session id from a high-entropy source.
func NewID() string {
	u := uuid.New()
	return "vs_" + hex.EncodeToString(u[:])[:12]
}

// Option configures a new Session.
type Option func(*Session)

// WithClock injects a time source for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

// WithConfig starts the session with a non-default config.
func WithConfig(cfg Config) Option {
	return func(s *Session) { s.config = cfg }
}

// New creates a session in StateIdle with its own detector instance.
func New(userID string, opts ...Option) *Session {
	s := &Session{
		ID:     NewID(),
		UserID: userID,
		state:  StateIdle,
		config: DefaultConfig(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.CreatedAt = s.now()
	s.lastActivity = s.CreatedAt
	s.VAD = vad.New(
		vad.WithThreshold(s.config.VADThreshold),
		vad.WithClock(s.now),
	)
	return s
}

// State returns the current conversation state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Transition moves to a new state, validating the edge.
func (s *Session) Transition(to State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !TransitionValid(s.state, to) {
		return &InvalidTransitionError{From: s.state, To: to}
	}
	s.state = to
	return nil
}

// SetError flags the session erroring. Always legal.
func (s *Session) SetError() {
	s.mu.Lock()
	s.state = StateError
	s.mu.Unlock()
}

// Touch records frame activity for staleness tracking.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastActivity = s.now()
	s.mu.Unlock()
}

// LastActivity returns the most recent frame-arrival time.
func (s *Session) LastActivity() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastActivity
}

// AppendAudio accumulates frame bytes for the current utterance. It
// reports whether the buffer has reached the configured maximum duration,
// in which case the caller must flush early rather than truncate.
func (s *Session) AppendAudio(frame []byte) (overflow bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audioBuffer = append(s.audioBuffer, frame...)
	limit := s.config.MaxAudioDurationMS * bytesPerMillisecond
	return limit > 0 && len(s.audioBuffer) >= limit
}

// TakeAudio returns the accumulated utterance and clears the buffer.
func (s *Session) TakeAudio() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	buf := s.audioBuffer
	s.audioBuffer = nil
	return buf
}

// BufferedBytes reports the current accumulator size.
func (s *Session) BufferedBytes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.audioBuffer)
}

// SetTranscript stores the last recognized text.
func (s *Session) SetTranscript(text string) {
	s.mu.Lock()
	s.transcript = text
	s.mu.Unlock()
}

// Transcript returns the last recognized text.
func (s *Session) Transcript() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.transcript
}

// Config returns a copy of the current tunables.
func (s *Session) Config() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config
}

// UpdateConfig applies a partial config update from a free-form settings
// map, returning the resulting config. Unknown keys are ignored.
func (s *Session) UpdateConfig(settings map[string]any) (Config, error) {
	s.mu.Lock()
	cfg := s.config
	if err := configutil.DecodeSettings(settings, &cfg); err != nil {
		s.mu.Unlock()
		return s.config, err
	}
	s.config = cfg
	s.mu.Unlock()
	s.VAD.SetThreshold(cfg.VADThreshold)
	return cfg, nil
}

// AddAudioBytes counts inbound frame volume.
func (s *Session) AddAudioBytes(n int) {
	s.mu.Lock()
	s.metrics.TotalAudioBytes += int64(n)
	s.mu.Unlock()
}

// RecordSTT marks a successful transcription stage.
func (s *Session) RecordSTT() {
	s.mu.Lock()
	s.metrics.STTCalls++
	s.mu.Unlock()
}

// RecordLLM marks a successful generation stage.
func (s *Session) RecordLLM() {
	s.mu.Lock()
	s.metrics.LLMCalls++
	s.mu.Unlock()
}

// RecordTTS marks a completed synthesis stream.
func (s *Session) RecordTTS() {
	s.mu.Lock()
	s.metrics.TTSCalls++
	s.mu.Unlock()
}

// RecordUtteranceLatency folds a completed utterance's wall time into the
// running mean.
func (s *Session) RecordUtteranceLatency(d time.Duration) {
	s.mu.Lock()
	s.utterances++
	s.metrics.TotalLatencyMS += float64(d.Milliseconds())
	s.metrics.AvgLatencyMS = s.metrics.TotalLatencyMS / float64(s.utterances)
	s.mu.Unlock()
}

// Metrics returns a snapshot of the counters.
func (s *Session) Metrics() Metrics {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.metrics
}

// Info returns the introspection snapshot.
func (s *Session) Info() Info {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Info{
		SessionID:   s.ID,
		UserID:      s.UserID,
		State:       s.state.String(),
		Config:      s.config,
		Metrics:     s.metrics,
		DurationSec: s.now().Sub(s.CreatedAt).Seconds(),
	}
}
