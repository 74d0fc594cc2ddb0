// Package ws exposes the voice service over HTTP: a websocket endpoint
// for live conversation and a small REST surface for the non-streaming
// fallback and introspection.
package ws

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kamaraj/voicebot/pkg/errorsx"
	"github.com/kamaraj/voicebot/pkg/logging"
	"github.com/kamaraj/voicebot/pkg/service"
)

type Config struct {
	Addr           string `mapstructure:"addr"`
	AllowAnyOrigin bool   `mapstructure:"allow_any_origin"`
}

func (c Config) withDefaults() Config {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	return c
}

type Server struct {
	cfg      Config
	svc      *service.Service
	server   *http.Server
	upgrader websocket.Upgrader
	logger   *slog.Logger
	now      func() time.Time

	draining atomic.Bool
}

func New(cfg Config, svc *service.Service) *Server {
	cfg = cfg.withDefaults()
	s := &Server{
		cfg: cfg,
		svc: svc,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		logger: logging.NewComponentLogger(slog.Default(), "transport_ws"),
		now:    time.Now,
	}
	s.upgrader.CheckOrigin = func(r *http.Request) bool { return cfg.AllowAnyOrigin }
	return s
}

// Handler builds the full route table. Exposed separately from Start so
// tests can drive it with httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/voice/stream", s.handleStream)
	mux.HandleFunc("POST /v1/voice/process", s.handleProcess)
	mux.HandleFunc("POST /v1/voice/sessions", s.handleCreateSession)
	mux.HandleFunc("GET /v1/voice/sessions/{id}", s.handleGetSession)
	mux.HandleFunc("DELETE /v1/voice/sessions/{id}", s.handleDeleteSession)
	mux.HandleFunc("GET /v1/voice/stats", s.handleStats)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return mux
}

func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              s.cfg.Addr,
		ReadHeaderTimeout: 5 * time.Second,
		Handler:           s.Handler(),
	}
	go func() {
		<-ctx.Done()
		_ = s.server.Close()
	}()
	s.logger.Info("listening", "addr", s.cfg.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	s.draining.Store(true)
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Stats())
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
	}
	// Body is optional; an empty body means an anonymous session.
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	sess, err := s.svc.CreateSession(req.UserID)
	if err != nil {
		if errors.Is(err, errorsx.ErrCapacityExceeded) {
			writeError(w, http.StatusServiceUnavailable, "session capacity exceeded")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"session_id": sess.ID,
		"config":     sess.Config(),
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.svc.GetSession(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, sess.Info())
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	final, ok := s.svc.EndSession(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ended": true, "stats": final})
}

// handleProcess is the non-streaming fallback: one full recording in,
// the complete reply out.
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID   string         `json:"session_id"`
		AudioBase64 string         `json:"audio_base64"`
		Context     map[string]any `json:"context"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	audio, err := base64.StdEncoding.DecodeString(req.AudioBase64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid base64 audio")
		return
	}
	if req.SessionID == "" {
		sess, err := s.svc.CreateSession("")
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, "session capacity exceeded")
			return
		}
		req.SessionID = sess.ID
	}

	stream, sess, err := s.svc.ProcessCompleteAudio(req.SessionID, audio, req.Context)
	if err != nil {
		if errors.Is(err, errorsx.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	reply, err := stream.Drain()
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id":            sess.ID,
		"transcript":            sess.Transcript(),
		"audio_response_base64": base64.StdEncoding.EncodeToString(reply),
		"metrics":               sess.Metrics(),
	})
}
