package errorsx

import "errors"

// ReasonCode is a short machine-readable error reason.
type ReasonCode string

const (
	ReasonUnknown ReasonCode = "unknown"

	ReasonSessionNotFound  ReasonCode = "session_not_found"
	ReasonCapacityExceeded ReasonCode = "capacity_exceeded"
	ReasonMalformedControl ReasonCode = "malformed_control_message"

	ReasonSTTFailure ReasonCode = "stt_failure"
	ReasonLLMFailure ReasonCode = "llm_failure"
	ReasonTTSFailure ReasonCode = "tts_failure"

	ReasonSTTRateLimit ReasonCode = "stt_rate_limit"
	ReasonLLMRateLimit ReasonCode = "llm_rate_limit"
	ReasonTTSRateLimit ReasonCode = "tts_rate_limit"

	ReasonTransportSend ReasonCode = "transport_send"
)

// Sentinel errors for conditions callers branch on. A reason code rides
// along via Wrap so transports can surface a stable machine-readable cause.
var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrCapacityExceeded = errors.New("session capacity exceeded")
	ErrMalformedControl = errors.New("malformed control message")
)
