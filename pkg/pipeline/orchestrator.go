// Package pipeline turns one completed utterance into a streamed spoken
// reply. The three stages run strictly in order: transcription must finish
// before generation starts, and generation before synthesis, because each
// stage consumes the whole of the previous stage's output.
package pipeline

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/kamaraj/voicebot/pkg/adapters/stt"
	"github.com/kamaraj/voicebot/pkg/adapters/tts"
	"github.com/kamaraj/voicebot/pkg/audiostream"
	"github.com/kamaraj/voicebot/pkg/errorsx"
	"github.com/kamaraj/voicebot/pkg/llm"
	"github.com/kamaraj/voicebot/pkg/logging"
	"github.com/kamaraj/voicebot/pkg/metrics"
	"github.com/kamaraj/voicebot/pkg/session"
)

// Stats is the service-wide pipeline telemetry snapshot.
type Stats struct {
	TotalRequests  int64   `json:"total_requests"`
	TotalLatencyMS float64 `json:"total_latency_ms"`
	AvgLatencyMS   float64 `json:"avg_latency_ms"`
}

// Config selects the stage backends and ambient hooks for an Orchestrator.
type Config struct {
	STT      stt.Transcriber
	LLM      llm.Responder
	TTS      tts.Synthesizer
	Observer metrics.Observer
	Logger   *slog.Logger
	Clock    func() time.Time
}

// Orchestrator executes the transcribe → generate → synthesize sequence
// for completed utterances. It is shared across sessions; all per-session
// state lives on the session itself.
type Orchestrator struct {
	stt stt.Transcriber
	llm llm.Responder
	tts tts.Synthesizer

	obs    metrics.Observer
	logger *slog.Logger
	now    func() time.Time

	mu             sync.Mutex
	totalRequests  int64
	totalLatencyMS float64
}

// New builds an Orchestrator. STT, LLM and TTS backends are required.
func New(cfg Config) *Orchestrator {
	o := &Orchestrator{
		stt:    cfg.STT,
		llm:    cfg.LLM,
		tts:    cfg.TTS,
		obs:    cfg.Observer,
		logger: cfg.Logger,
		now:    cfg.Clock,
	}
	if o.obs == nil {
		o.obs = metrics.NoopObserver{}
	}
	if o.logger == nil {
		o.logger = logging.NewComponentLogger(slog.Default(), "pipeline")
	}
	if o.now == nil {
		o.now = time.Now
	}
	return o
}

// ProcessAudioStream runs one utterance through the pipeline and returns
// the synthesized reply as a lazy chunk stream. The caller must drain the
// stream or cancel it; it cannot be re-entered. A stage failure flags the
// session erroring and surfaces as the stream's terminal error.
func (o *Orchestrator) ProcessAudioStream(ctx context.Context, audio []byte, sess *session.Session, callCtx map[string]any) *audiostream.Stream {
	out, w := audiostream.NewPipe(ctx)
	go o.run(ctx, audio, sess, callCtx, w)
	return out
}

func (o *Orchestrator) run(ctx context.Context, audio []byte, sess *session.Session, callCtx map[string]any, w *audiostream.Writer) {
	start := o.now()
	cfg := sess.Config()
	// The session transcript always refers to the utterance in flight.
	sess.SetTranscript("")

	// Stage 1: speech to text.
	sttStart := o.now()
	transcript, err := o.stt.Transcribe(ctx, audio, stt.Config{
		SessionID:  sess.ID,
		SampleRate: session.SampleRate,
		Channels:   1,
		Language:   cfg.Language,
	})
	if err != nil {
		o.fail(sess, w, errorsx.Wrap(err, errorsx.ReasonSTTFailure), "stt")
		return
	}
	o.recordStage("stt", sess.ID, sttStart)
	if strings.TrimSpace(transcript) == "" {
		// Noise-only utterance: no reply, and no downstream cost.
		o.logger.Debug("empty_transcript", "session_id", sess.ID, "audio_bytes", len(audio))
		w.Close()
		return
	}
	sess.SetTranscript(transcript)
	sess.RecordSTT()

	// Stage 2: text generation.
	llmStart := o.now()
	resp, err := o.llm.Respond(ctx, llm.Request{
		Text:      transcript,
		SessionID: sess.ID,
		Context:   callCtx,
	})
	if err != nil {
		o.fail(sess, w, errorsx.Wrap(err, errorsx.ReasonLLMFailure), "llm")
		return
	}
	o.recordStage("llm", sess.ID, llmStart)
	sess.RecordLLM()

	// Stage 3: speech synthesis, forwarded chunk by chunk.
	ttsStart := o.now()
	reply, err := o.tts.Synthesize(ctx, resp.Text, tts.Config{
		SessionID:  sess.ID,
		SampleRate: session.SampleRate,
		Channels:   1,
		VoiceID:    cfg.VoiceID,
		Language:   cfg.Language,
	})
	if err != nil {
		o.fail(sess, w, errorsx.Wrap(err, errorsx.ReasonTTSFailure), "tts")
		return
	}
	first := true
	for chunk := range reply.Chunks() {
		if first {
			// The reply is audible from here on.
			_ = sess.Transition(session.StateSpeaking)
			first = false
		}
		if err := w.Write(chunk); err != nil {
			// Consumer abandoned the stream; stop synthesis too.
			reply.Cancel()
			w.CloseWithError(err)
			return
		}
	}
	if err := reply.Err(); err != nil {
		o.fail(sess, w, errorsx.Wrap(err, errorsx.ReasonTTSFailure), "tts")
		return
	}
	o.recordStage("tts", sess.ID, ttsStart)
	sess.RecordTTS()

	total := o.now().Sub(start)
	sess.RecordUtteranceLatency(total)
	o.recordRequest(total)
	o.logger.Info("utterance_complete",
		"session_id", sess.ID,
		"transcript_len", len(transcript),
		"total_ms", total.Milliseconds(),
	)
	w.Close()
}

func (o *Orchestrator) fail(sess *session.Session, w *audiostream.Writer, err error, stage string) {
	sess.SetError()
	o.logger.Error("stage_failure", "session_id", sess.ID, "stage", stage, "err", err)
	o.obs.RecordEvent(metrics.StageFailure(stage, sess.ID, o.now()))
	w.CloseWithError(err)
}

func (o *Orchestrator) recordStage(stage, sessionID string, start time.Time) {
	now := o.now()
	o.obs.RecordEvent(metrics.StageLatency(stage, sessionID, now, float64(now.Sub(start).Milliseconds())))
}

func (o *Orchestrator) recordRequest(total time.Duration) {
	o.mu.Lock()
	o.totalRequests++
	o.totalLatencyMS += float64(total.Milliseconds())
	o.mu.Unlock()
}

// Stats returns the cumulative pipeline telemetry.
func (o *Orchestrator) Stats() Stats {
	o.mu.Lock()
	defer o.mu.Unlock()
	s := Stats{
		TotalRequests:  o.totalRequests,
		TotalLatencyMS: o.totalLatencyMS,
	}
	if s.TotalRequests > 0 {
		s.AvgLatencyMS = s.TotalLatencyMS / float64(s.TotalRequests)
	}
	return s
}
