// Package metrics is the telemetry hook for the voice pipeline. The
// orchestrator publishes per-stage events to an Observer; the process
// decides at startup where they go (nowhere, memory, or a JSONL sink).
package metrics

import "time"

// MetricsEvent is one measurement with its identifying tags.
type MetricsEvent struct {
	Name  string            `json:"name"`
	Time  time.Time         `json:"time"`
	Value float64           `json:"value,omitempty"`
	Tags  map[string]string `json:"tags,omitempty"`
}

// StageLatency builds the event emitted after a pipeline stage succeeds.
func StageLatency(stage, sessionID string, at time.Time, ms float64) MetricsEvent {
	return MetricsEvent{
		Name:  "pipeline_stage_latency_ms",
		Time:  at,
		Value: ms,
		Tags:  map[string]string{"stage": stage, "session_id": sessionID},
	}
}

// StageFailure builds the event emitted when a pipeline stage errors.
func StageFailure(stage, sessionID string, at time.Time) MetricsEvent {
	return MetricsEvent{
		Name: "pipeline_stage_failure",
		Time: at,
		Tags: map[string]string{"stage": stage, "session_id": sessionID},
	}
}

type Observer interface {
	RecordEvent(ev MetricsEvent)
}

type Flusher interface {
	Flush() error
}

type NoopObserver struct{}

func (NoopObserver) RecordEvent(MetricsEvent) {}
