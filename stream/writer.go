package stream

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Writer sends newline-delimited JSON events to an http.ResponseWriter,
// flushing after every event so clients see each line as it is produced.
type Writer struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewWriter creates an NDJSON writer and commits the streaming response
// headers. Returns nil if the ResponseWriter doesn't support http.Flusher.
func NewWriter(w http.ResponseWriter) *Writer {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // nginx
	flusher.Flush()

	return &Writer{w: w, flusher: flusher}
}

// Send writes one event as a JSON line and flushes it to the client.
func (w *Writer) Send(ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal stream event: %w", err)
	}
	if _, err := fmt.Fprintf(w.w, "%s\n", data); err != nil {
		return err
	}
	w.flusher.Flush()
	return nil
}
