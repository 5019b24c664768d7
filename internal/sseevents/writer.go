// Package sseevents implements the SSE wire encoding (spec §6): the
// endpoint event, numbered ping events, keep-alive comments, and plain
// data events used by the Category Server's GET /sse and
// POST /messages/stream handlers.
package sseevents

import (
	"fmt"
	"io"
	"net/http"
	"time"
)

// Writer wraps an http.ResponseWriter configured for text/event-stream,
// flushing after every write so events reach the client immediately.
type Writer struct {
	w       io.Writer
	flusher http.Flusher
}

// NewWriter sets the SSE response headers on w and returns a Writer. w
// must support http.Flusher; callers typically pass an *http.ResponseWriter.
func NewWriter(w http.ResponseWriter) (*Writer, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("sseevents: response writer does not support flushing")
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	return &Writer{w: w, flusher: flusher}, nil
}

// Endpoint emits the initial "endpoint" event carrying the absolute
// messages URL for this session (spec §4.2: GET /sse first event).
func (sw *Writer) Endpoint(url string) error {
	_, err := fmt.Fprintf(sw.w, "event: endpoint\ndata: %s\n\n", url)
	sw.flusher.Flush()
	return err
}

// Ping emits a numbered ping event carrying an RFC-3339 timestamp. n is
// the monotonically increasing per-session event counter (spec §5:
// "the ping stream's event ids are monotonically increasing per-session").
func (sw *Writer) Ping(n int) error {
	_, err := fmt.Fprintf(sw.w, "id: ping-%d\nevent: ping\ndata: %s\n\n", n, time.Now().Format(time.RFC3339))
	sw.flusher.Flush()
	return err
}

// KeepAliveComment emits the bare SSE comment line used as an HTTP-level
// keep-alive, at the same cadence as Ping.
func (sw *Writer) KeepAliveComment() error {
	_, err := fmt.Fprint(sw.w, ": keep-alive\n\n")
	sw.flusher.Flush()
	return err
}

// Data emits an unnamed data event carrying payload verbatim, used by the
// streaming /messages/stream variant to forward one upstream chunk.
func (sw *Writer) Data(payload []byte) error {
	_, err := fmt.Fprintf(sw.w, "data: %s\n\n", payload)
	sw.flusher.Flush()
	return err
}
