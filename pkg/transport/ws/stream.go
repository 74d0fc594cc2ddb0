package ws

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/kamaraj/voicebot/pkg/audiostream"
	"github.com/kamaraj/voicebot/pkg/errorsx"
	"github.com/kamaraj/voicebot/pkg/session"
)

// controlMessage is the envelope for every JSON frame a client sends.
// Config fields are pointers so a partial update touches only what the
// client named.
type controlMessage struct {
	Type   string `json:"type"`
	UserID string `json:"user_id"`
	Data   string `json:"data"`

	VADThreshold       *float64 `json:"vad_threshold"`
	SilenceTimeoutMS   *int     `json:"silence_timeout_ms"`
	MaxAudioDurationMS *int     `json:"max_audio_duration_ms"`
	Language           *string  `json:"language"`
	VoiceID            *string  `json:"voice_id"`
}

// conn wraps a websocket connection with a write lock; reply audio is
// forwarded from a pipeline goroutine while the read loop keeps running.
type conn struct {
	ws *websocket.Conn
	mu sync.Mutex

	clientID  string
	sessionID string
	lastState session.State
}

func (c *conn) sendJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteJSON(v)
}

func (c *conn) sendBinary(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteMessage(websocket.BinaryMessage, b)
}

func (c *conn) sendError(msg string) {
	_ = c.sendJSON(map[string]any{"type": "error", "message": msg})
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if s.draining.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &conn{ws: ws, clientID: uuid.NewString(), lastState: session.StateIdle}
	defer ws.Close()

	s.logger.Info("client_connected", "client_id", c.clientID)
	_ = c.sendJSON(map[string]any{"type": "connected", "client_id": c.clientID})

	defer func() {
		// A dropped connection ends the session; the final metrics only
		// make it to the log at this point.
		if c.sessionID != "" {
			if final, ok := s.svc.EndSession(c.sessionID); ok {
				s.logger.Info("session_ended_on_disconnect",
					"client_id", c.clientID,
					"session_id", c.sessionID,
					"stt_calls", final.STTCalls,
					"avg_latency_ms", final.AvgLatencyMS)
			}
		}
		s.logger.Info("client_disconnected", "client_id", c.clientID)
	}()

	for {
		msgType, payload, err := ws.ReadMessage()
		if err != nil {
			return
		}
		switch msgType {
		case websocket.BinaryMessage:
			s.handleAudioFrame(c, payload)
		case websocket.TextMessage:
			s.handleControl(c, payload)
		}
	}
}

func (s *Server) handleControl(c *conn, payload []byte) {
	var msg controlMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		// Malformed JSON gets an error frame; the connection stays up.
		s.logger.Warn("malformed_control_message", "client_id", c.clientID)
		c.sendError(errorsx.ErrMalformedControl.Error())
		return
	}

	switch msg.Type {
	case "start_session":
		s.startSession(c, msg.UserID)
	case "end_session":
		s.endSession(c)
	case "config":
		s.updateConfig(c, msg)
	case "audio_base64":
		audio, err := base64.StdEncoding.DecodeString(msg.Data)
		if err != nil {
			c.sendError("invalid base64 audio")
			return
		}
		s.handleAudioFrame(c, audio)
	case "ping":
		_ = c.sendJSON(map[string]any{
			"type": "pong",
			"time": float64(s.now().UnixNano()) / 1e9,
		})
	default:
		c.sendError("unknown message type: " + msg.Type)
	}
}

func (s *Server) startSession(c *conn, userID string) {
	if c.sessionID != "" {
		c.sendError("session already started")
		return
	}
	sess, err := s.svc.CreateSession(userID)
	if err != nil {
		if errors.Is(err, errorsx.ErrCapacityExceeded) {
			c.sendError("session capacity exceeded")
			return
		}
		c.sendError(err.Error())
		return
	}
	c.sessionID = sess.ID
	c.lastState = session.StateIdle
	_ = c.sendJSON(map[string]any{
		"type":       "session_started",
		"session_id": sess.ID,
		"config":     sess.Config(),
	})
}

func (s *Server) endSession(c *conn) {
	if c.sessionID == "" {
		c.sendError("no active session")
		return
	}
	final, _ := s.svc.EndSession(c.sessionID)
	c.sessionID = ""
	_ = c.sendJSON(map[string]any{"type": "session_ended", "stats": final})
}

func (s *Server) updateConfig(c *conn, msg controlMessage) {
	if c.sessionID == "" {
		c.sendError("no active session")
		return
	}
	sess, ok := s.svc.GetSession(c.sessionID)
	if !ok {
		c.sendError("session not found")
		return
	}
	settings := map[string]any{}
	if msg.VADThreshold != nil {
		settings["vad_threshold"] = *msg.VADThreshold
	}
	if msg.SilenceTimeoutMS != nil {
		settings["silence_timeout_ms"] = *msg.SilenceTimeoutMS
	}
	if msg.MaxAudioDurationMS != nil {
		settings["max_audio_duration_ms"] = *msg.MaxAudioDurationMS
	}
	if msg.Language != nil {
		settings["language"] = *msg.Language
	}
	if msg.VoiceID != nil {
		settings["voice_id"] = *msg.VoiceID
	}
	cfg, err := sess.UpdateConfig(settings)
	if err != nil {
		c.sendError("invalid config: " + err.Error())
		return
	}
	_ = c.sendJSON(map[string]any{"type": "config_updated", "config": cfg})
}

func (s *Server) handleAudioFrame(c *conn, frame []byte) {
	if c.sessionID == "" {
		c.sendError("no active session")
		return
	}
	out, err := s.svc.ProcessAudioChunk(c.sessionID, frame)
	if err != nil {
		if errors.Is(err, errorsx.ErrSessionNotFound) {
			c.sessionID = ""
			c.sendError("session not found")
			return
		}
		c.sendError(err.Error())
		return
	}
	sess, ok := s.svc.GetSession(c.sessionID)
	if !ok {
		return
	}
	s.emitStateChange(c, sess)

	// Frames that only buffer audio come back with no stream.
	if out != nil {
		go s.forwardReply(c, sess, out)
	}
}

// forwardReply streams synthesized audio back to the client, emitting
// transcript and state_change messages at the stage boundaries.
func (s *Server) forwardReply(c *conn, sess *session.Session, out *audiostream.Stream) {
	sentTranscript := false
	first := true
	for chunk := range out.Chunks() {
		if first {
			first = false
			if text := sess.Transcript(); text != "" {
				_ = c.sendJSON(map[string]any{"type": "transcript", "text": text})
				sentTranscript = true
			}
			s.emitStateChange(c, sess)
		}
		if err := c.sendBinary(chunk); err != nil {
			out.Cancel()
			s.logger.Warn("reply_send_failed",
				"client_id", c.clientID,
				"error", errorsx.Wrap(err, errorsx.ReasonTransportSend).Error())
			return
		}
	}
	// A reply whose synthesis produced no audio still owes the client
	// its transcript once the stream settles.
	if !sentTranscript {
		if text := sess.Transcript(); text != "" {
			_ = c.sendJSON(map[string]any{"type": "transcript", "text": text})
		}
	}
	if err := out.Err(); err != nil {
		c.sendError(err.Error())
	}
	s.emitStateChange(c, sess)
}

func (s *Server) emitStateChange(c *conn, sess *session.Session) {
	state := sess.State()
	c.mu.Lock()
	changed := state != c.lastState
	if changed {
		c.lastState = state
	}
	c.mu.Unlock()
	if changed {
		_ = c.sendJSON(map[string]any{"type": "state_change", "state": state.String()})
		s.logger.Debug("state_change",
			slog.String("session_id", sess.ID),
			slog.String("state", state.String()))
	}
}
