package metrics

import (
	"bufio"
	"encoding/json"
	"io"
	"sync"
)

// JSONLObserver appends one JSON object per event to a writer, buffered.
// Call Flush before process exit.
type JSONLObserver struct {
	mu  sync.Mutex
	buf *bufio.Writer
	enc *json.Encoder
}

func NewJSONLObserver(w io.Writer) *JSONLObserver {
	if w == nil {
		w = io.Discard
	}
	buf := bufio.NewWriter(w)
	return &JSONLObserver{buf: buf, enc: json.NewEncoder(buf)}
}

func (o *JSONLObserver) RecordEvent(ev MetricsEvent) {
	o.mu.Lock()
	_ = o.enc.Encode(ev)
	o.mu.Unlock()
}

func (o *JSONLObserver) Flush() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.buf.Flush()
}

var (
	_ Observer = (*JSONLObserver)(nil)
	_ Flusher  = (*JSONLObserver)(nil)
)
