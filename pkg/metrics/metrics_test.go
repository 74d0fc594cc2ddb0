package metrics

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"
)

func TestMemoryObserverFilters(t *testing.T) {
	m := NewMemoryObserver()
	at := time.Now()
	m.RecordEvent(StageLatency("stt", "vs_1", at, 12))
	m.RecordEvent(StageLatency("llm", "vs_1", at, 80))
	m.RecordEvent(StageFailure("tts", "vs_1", at))

	if got := len(m.Events()); got != 3 {
		t.Fatalf("events = %d, want 3", got)
	}
	failures := m.ByName("pipeline_stage_failure")
	if len(failures) != 1 || failures[0].Tags["stage"] != "tts" {
		t.Fatalf("failures = %+v", failures)
	}
}

func TestJSONLObserverWritesOneLinePerEvent(t *testing.T) {
	var buf bytes.Buffer
	o := NewJSONLObserver(&buf)
	o.RecordEvent(StageLatency("stt", "vs_2", time.Now(), 5))
	o.RecordEvent(StageFailure("llm", "vs_2", time.Now()))
	if err := o.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	if len(lines) != 2 {
		t.Fatalf("lines = %d, want 2", len(lines))
	}
	var ev MetricsEvent
	if err := json.Unmarshal(lines[0], &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ev.Name != "pipeline_stage_latency_ms" || ev.Tags["session_id"] != "vs_2" {
		t.Fatalf("event = %+v", ev)
	}
}
