// Package service owns the session registry and routes inbound audio
// frames: through voice-activity detection into the per-session buffer,
// and on to the pipeline once an utterance boundary is reached. It also
// reclaims sessions abandoned by clients that simply stop sending frames.
package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/kamaraj/voicebot/pkg/audiostream"
	"github.com/kamaraj/voicebot/pkg/errorsx"
	"github.com/kamaraj/voicebot/pkg/logging"
	"github.com/kamaraj/voicebot/pkg/pipeline"
	"github.com/kamaraj/voicebot/pkg/session"
)

// Defaults for the registry limits.
const (
	DefaultMaxSessions    = 100
	DefaultSessionTimeout = 5 * time.Minute
	DefaultReaperInterval = 30 * time.Second
)

// Config tunes the registry.
type Config struct {
	MaxSessions    int
	SessionTimeout time.Duration
	ReaperInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxSessions <= 0 {
		c.MaxSessions = DefaultMaxSessions
	}
	if c.SessionTimeout <= 0 {
		c.SessionTimeout = DefaultSessionTimeout
	}
	if c.ReaperInterval <= 0 {
		c.ReaperInterval = DefaultReaperInterval
	}
	return c
}

// Stats is the service-wide introspection snapshot.
type Stats struct {
	ActiveSessions int            `json:"active_sessions"`
	MaxSessions    int            `json:"max_sessions"`
	PipelineStats  pipeline.Stats `json:"pipeline_stats"`
	Sessions       []session.Info `json:"sessions"`
}

// entry pairs a session with the context governing its pipeline work, so
// ending the session cancels in-flight stage calls best-effort.
type entry struct {
	sess   *session.Session
	ctx    context.Context
	cancel context.CancelFunc
}

// Service is the facade the transport layer talks to.
type Service struct {
	cfg    Config
	orch   *pipeline.Orchestrator
	logger *slog.Logger
	now    func() time.Time

	mu       sync.RWMutex
	sessions map[string]*entry
}

// Option configures a Service.
type Option func(*Service)

// WithLogger overrides the component logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock injects a time source for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New builds a Service around an orchestrator. Construct one per process
// (or per test); there is deliberately no package-level singleton.
func New(cfg Config, orch *pipeline.Orchestrator, opts ...Option) *Service {
	s := &Service{
		cfg:      cfg.withDefaults(),
		orch:     orch,
		logger:   logging.NewComponentLogger(slog.Default(), "voice_service"),
		now:      time.Now,
		sessions: make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateSession allocates a session with a fresh id and default config.
// It fails only when the registry is at capacity; it never evicts.
func (s *Service) CreateSession(userID string) (*session.Session, error) {
	if userID == "" {
		userID = "anonymous"
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.sessions) >= s.cfg.MaxSessions {
		return nil, errorsx.ErrCapacityExceeded
	}
	sess := session.New(userID, session.WithClock(s.now))
	ctx, cancel := context.WithCancel(context.Background())
	s.sessions[sess.ID] = &entry{sess: sess, ctx: ctx, cancel: cancel}
	s.logger.Info("session_created", "session_id", sess.ID, "user_id", userID)
	return sess, nil
}

// GetSession looks up a live session.
func (s *Service) GetSession(id string) (*session.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	return e.sess, true
}

// EndSession removes a session and cancels its in-flight work. It returns
// the final metrics snapshot and whether the session existed; a second
// call for the same id reports false.
func (s *Service) EndSession(id string) (session.Metrics, bool) {
	s.mu.Lock()
	e, ok := s.sessions[id]
	if ok {
		delete(s.sessions, id)
	}
	s.mu.Unlock()
	if !ok {
		return session.Metrics{}, false
	}
	e.cancel()
	final := e.sess.Metrics()
	s.logger.Info("session_ended", "session_id", id,
		"stt_calls", final.STTCalls, "llm_calls", final.LLMCalls, "tts_calls", final.TTSCalls)
	return final, true
}

// ProcessAudioChunk feeds one frame through the session's detector.
// Speech frames accumulate; once silence has lasted past the configured
// timeout (or the buffer hits its duration cap) the buffered utterance is
// dispatched to the pipeline and the reply streams back. Frames that only
// buffer or discard audio return a nil stream. Frames for one session
// must be delivered in arrival order and never concurrently.
func (s *Service) ProcessAudioChunk(id string, frame []byte) (*audiostream.Stream, error) {
	s.mu.RLock()
	e, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, errorsx.ErrSessionNotFound
	}
	sess := e.sess
	sess.Touch()
	sess.AddAudioBytes(len(frame))

	isSpeech, _ := sess.VAD.Process(frame)
	if isSpeech {
		if sess.State() == session.StateIdle || sess.State() == session.StateError {
			_ = sess.Transition(session.StateListening)
		}
		if overflow := sess.AppendAudio(frame); overflow {
			// Buffer reached the max utterance duration: flush early
			// rather than truncate.
			s.logger.Warn("utterance_overflow_flush", "session_id", id, "buffered", sess.BufferedBytes())
			return s.dispatch(e), nil
		}
		return nil, nil
	}

	// Silence. An erroring session soft-resumes here.
	if sess.State() == session.StateError {
		_ = sess.Transition(session.StateIdle)
	}
	silence := sess.VAD.SilenceDuration()
	timeout := time.Duration(sess.Config().SilenceTimeoutMS) * time.Millisecond
	if silence >= timeout && sess.BufferedBytes() > 0 {
		s.logger.Info("utterance_boundary", "session_id", id, "silence_ms", silence.Milliseconds())
		return s.dispatch(e), nil
	}
	return nil, nil
}

// dispatch hands the buffered utterance to the pipeline and wraps the
// reply stream so the session settles back to idle once it is drained.
func (s *Service) dispatch(e *entry) *audiostream.Stream {
	sess := e.sess
	_ = sess.Transition(session.StateProcessing)
	audio := sess.TakeAudio()

	inner := s.orch.ProcessAudioStream(e.ctx, audio, sess, nil)
	out, w := audiostream.NewPipe(e.ctx)
	go func() {
		for chunk := range inner.Chunks() {
			if err := w.Write(chunk); err != nil {
				inner.Cancel()
				w.CloseWithError(err)
				return
			}
		}
		err := inner.Err()
		if err == nil {
			// Speaking (or Processing, for a noise-only utterance)
			// settles back to idle.
			_ = sess.Transition(session.StateIdle)
		}
		w.CloseWithError(err)
	}()
	return out
}

// ProcessCompleteAudio runs one full recording through the pipeline,
// bypassing VAD. Used by the non-streaming fallback endpoint.
func (s *Service) ProcessCompleteAudio(id string, audio []byte, callCtx map[string]any) (*audiostream.Stream, *session.Session, error) {
	s.mu.RLock()
	e, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, nil, errorsx.ErrSessionNotFound
	}
	sess := e.sess
	sess.Touch()
	sess.AddAudioBytes(len(audio))
	_ = sess.Transition(session.StateProcessing)

	inner := s.orch.ProcessAudioStream(e.ctx, audio, sess, callCtx)
	out, w := audiostream.NewPipe(e.ctx)
	go func() {
		for chunk := range inner.Chunks() {
			if err := w.Write(chunk); err != nil {
				inner.Cancel()
				w.CloseWithError(err)
				return
			}
		}
		err := inner.Err()
		if err == nil {
			_ = sess.Transition(session.StateIdle)
		}
		w.CloseWithError(err)
	}()
	return out, sess, nil
}

// CleanupStaleSessions removes every session whose last activity is older
// than the configured timeout and returns the exact count removed. Safe
// to run concurrently with frame traffic.
func (s *Service) CleanupStaleSessions() int {
	cutoff := s.now().Add(-s.cfg.SessionTimeout)
	s.mu.RLock()
	var stale []string
	for id, e := range s.sessions {
		if e.sess.LastActivity().Before(cutoff) {
			stale = append(stale, id)
		}
	}
	s.mu.RUnlock()

	removed := 0
	for _, id := range stale {
		if _, ok := s.EndSession(id); ok {
			removed++
			s.logger.Info("stale_session_reaped", "session_id", id)
		}
	}
	return removed
}

// StartReaper runs CleanupStaleSessions on a fixed schedule until ctx is
// done. The reaper is the only reclamation path for clients that stop
// sending frames entirely, since the silence check fires on frame arrival.
func (s *Service) StartReaper(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.cfg.ReaperInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := s.CleanupStaleSessions(); n > 0 {
					s.logger.Info("reaper_pass", "removed", n)
				}
			}
		}
	}()
}

// SessionCount reports the number of live sessions.
func (s *Service) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Stats returns the service-wide introspection snapshot.
func (s *Service) Stats() Stats {
	s.mu.RLock()
	infos := make([]session.Info, 0, len(s.sessions))
	for _, e := range s.sessions {
		infos = append(infos, e.sess.Info())
	}
	active := len(s.sessions)
	s.mu.RUnlock()
	return Stats{
		ActiveSessions: active,
		MaxSessions:    s.cfg.MaxSessions,
		PipelineStats:  s.orch.Stats(),
		Sessions:       infos,
	}
}
