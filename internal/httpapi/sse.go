package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/caldermed/psurd/internal/events"
)

// SSEWriter writes workflow events to an http.ResponseWriter as
// Server-Sent Events. Call Init once before writing any events to set the
// required headers.
type SSEWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewSSEWriter wraps the given ResponseWriter. The ResponseWriter should
// implement http.Flusher for streaming; if it does not, writes still
// succeed but may be buffered.
func NewSSEWriter(w http.ResponseWriter) *SSEWriter {
	f, _ := w.(http.Flusher)
	return &SSEWriter{w: w, flusher: f}
}

// Init sets the SSE response headers and flushes them to the client.
func (sw *SSEWriter) Init() {
	h := sw.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	if sw.flusher != nil {
		sw.flusher.Flush()
	}
}

// WriteEvent writes one event frame:
//
//	id: <sequence>
//	data: <json>
//
// The id line carries the event sequence so a client can resubscribe with
// ?from=<last id> after a disconnect. The connection is flushed after
// each frame.
func (sw *SSEWriter) WriteEvent(ev events.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("sse: marshal event: %w", err)
	}
	if _, err := fmt.Fprintf(sw.w, "id: %d\ndata: %s\n\n", ev.Seq, data); err != nil {
		return fmt.Errorf("sse: write event: %w", err)
	}
	if sw.flusher != nil {
		sw.flusher.Flush()
	}
	return nil
}
