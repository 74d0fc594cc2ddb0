package pipeline

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/kamaraj/voicebot/pkg/audiostream"
	"github.com/kamaraj/voicebot/pkg/errorsx"
	"github.com/kamaraj/voicebot/pkg/metrics"
	"github.com/kamaraj/voicebot/pkg/providers/mock"
	"github.com/kamaraj/voicebot/pkg/session"
)

func newTestOrchestrator(sttMock *mock.Transcriber, llmMock *mock.Responder, ttsMock *mock.Synthesizer) *Orchestrator {
	return New(Config{
		STT:      sttMock,
		LLM:      llmMock,
		TTS:      ttsMock,
		Observer: metrics.NewMemoryObserver(),
	})
}

func TestFullUtteranceCycle(t *testing.T) {
	sttMock := mock.NewTranscriber(mock.STTConfig{Transcript: "hello there"})
	llmMock := mock.NewResponder(mock.LLMConfig{ResponseText: "hi!"})
	ttsMock := mock.NewSynthesizer(mock.TTSConfig{Chunks: [][]byte{{1, 2}, {3, 4}}})
	o := newTestOrchestrator(sttMock, llmMock, ttsMock)

	sess := session.New("u")
	if err := sess.Transition(session.StateProcessing); err != nil {
		t.Fatalf("transition: %v", err)
	}
	audio := []byte{10, 20, 30, 40}
	got, err := o.ProcessAudioStream(context.Background(), audio, sess, nil).Drain()
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if !bytes.Equal(got, []byte{1, 2, 3, 4}) {
		t.Fatalf("unexpected reply audio: %v", got)
	}

	m := sess.Metrics()
	if m.STTCalls != 1 || m.LLMCalls != 1 || m.TTSCalls != 1 {
		t.Fatalf("expected each counter to increase by exactly 1, got %+v", m)
	}
	if sess.Transcript() != "hello there" {
		t.Fatalf("transcript not stored: %q", sess.Transcript())
	}
	if sess.State() != session.StateSpeaking {
		t.Fatalf("expected speaking after chunks flowed, got %s", sess.State())
	}
	utt := sttMock.Utterances()
	if len(utt) != 1 || !bytes.Equal(utt[0], audio) {
		t.Fatalf("stt must receive the exact utterance audio")
	}
}

func TestEmptyTranscriptShortCircuits(t *testing.T) {
	for _, transcript := range []string{"", "   ", "\n\t"} {
		sttMock := mock.NewTranscriber(mock.STTConfig{Transcript: transcript})
		llmMock := mock.NewResponder(mock.LLMConfig{})
		ttsMock := mock.NewSynthesizer(mock.TTSConfig{})
		o := newTestOrchestrator(sttMock, llmMock, ttsMock)

		sess := session.New("u")
		got, err := o.ProcessAudioStream(context.Background(), []byte{1, 2}, sess, nil).Drain()
		if err != nil {
			t.Fatalf("transcript %q: unexpected error %v", transcript, err)
		}
		if len(got) != 0 {
			t.Fatalf("transcript %q: expected empty output, got %d bytes", transcript, len(got))
		}
		if llmMock.Calls() != 0 || ttsMock.Calls() != 0 {
			t.Fatalf("transcript %q: llm/tts must not run", transcript)
		}
		m := sess.Metrics()
		if m.STTCalls != 0 || m.LLMCalls != 0 || m.TTSCalls != 0 {
			t.Fatalf("transcript %q: no counters may increment, got %+v", transcript, m)
		}
	}
}

func TestLLMFailureFlagsSessionError(t *testing.T) {
	boom := errors.New("model unavailable")
	sttMock := mock.NewTranscriber(mock.STTConfig{Transcript: "question"})
	llmMock := mock.NewResponder(mock.LLMConfig{Err: boom})
	ttsMock := mock.NewSynthesizer(mock.TTSConfig{})
	o := newTestOrchestrator(sttMock, llmMock, ttsMock)

	sess := session.New("u")
	_, err := o.ProcessAudioStream(context.Background(), []byte{1}, sess, nil).Drain()
	if !errors.Is(err, boom) {
		t.Fatalf("expected stage error to propagate, got %v", err)
	}
	if errorsx.Reason(err) != errorsx.ReasonLLMFailure {
		t.Fatalf("expected llm_failure reason, got %s", errorsx.Reason(err))
	}
	if sess.State() != session.StateError {
		t.Fatalf("expected error state, got %s", sess.State())
	}
	m := sess.Metrics()
	if m.STTCalls != 1 {
		t.Fatalf("stt succeeded and must be counted, got %+v", m)
	}
	if m.LLMCalls != 0 || m.TTSCalls != 0 {
		t.Fatalf("failed and later stages must not be counted, got %+v", m)
	}
	if ttsMock.Calls() != 0 {
		t.Fatalf("tts must never run after llm failure")
	}
}

func TestTTSStreamErrorCountsNothing(t *testing.T) {
	boom := errors.New("socket closed")
	sttMock := mock.NewTranscriber(mock.STTConfig{Transcript: "hi"})
	llmMock := mock.NewResponder(mock.LLMConfig{ResponseText: "yo"})
	ttsMock := mock.NewSynthesizer(mock.TTSConfig{Chunks: [][]byte{{1}}, StreamErr: boom})
	o := newTestOrchestrator(sttMock, llmMock, ttsMock)

	sess := session.New("u")
	got, err := o.ProcessAudioStream(context.Background(), []byte{1}, sess, nil).Drain()
	if !errors.Is(err, boom) {
		t.Fatalf("expected tts stream error, got %v", err)
	}
	if !bytes.Equal(got, []byte{1}) {
		t.Fatalf("chunks before the failure still stream: %v", got)
	}
	if m := sess.Metrics(); m.TTSCalls != 0 {
		t.Fatalf("tts counter requires a completed stream, got %+v", m)
	}
	if sess.State() != session.StateError {
		t.Fatalf("expected error state, got %s", sess.State())
	}
}

func TestCancellationStopsSynthesis(t *testing.T) {
	sttMock := mock.NewTranscriber(mock.STTConfig{Transcript: "long question"})
	llmMock := mock.NewResponder(mock.LLMConfig{ResponseText: "long answer"})
	chunks := make([][]byte, 64)
	for i := range chunks {
		chunks[i] = make([]byte, 640)
	}
	ttsMock := mock.NewSynthesizer(mock.TTSConfig{Chunks: chunks})
	o := newTestOrchestrator(sttMock, llmMock, ttsMock)

	sess := session.New("u")
	out := o.ProcessAudioStream(context.Background(), []byte{1}, sess, nil)
	<-out.Chunks()
	out.Cancel()
	for range out.Chunks() {
	}
	if !errors.Is(out.Err(), audiostream.ErrCanceled) {
		t.Fatalf("expected canceled terminal state, got %v", out.Err())
	}
}

func TestPipelineStats(t *testing.T) {
	sttMock := mock.NewTranscriber(mock.STTConfig{Transcript: "hey"})
	llmMock := mock.NewResponder(mock.LLMConfig{ResponseText: "ho"})
	ttsMock := mock.NewSynthesizer(mock.TTSConfig{})
	o := newTestOrchestrator(sttMock, llmMock, ttsMock)

	sess := session.New("u")
	for i := 0; i < 3; i++ {
		if _, err := o.ProcessAudioStream(context.Background(), []byte{1}, sess, nil).Drain(); err != nil {
			t.Fatalf("drain: %v", err)
		}
	}
	if s := o.Stats(); s.TotalRequests != 3 {
		t.Fatalf("expected 3 completed requests, got %+v", s)
	}
}
