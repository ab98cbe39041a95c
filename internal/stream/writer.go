package stream

import (
	"fmt"
	"io"
	"net/http"
	"sync"
)

// Writer serializes frames onto an event stream. It is safe for concurrent
// use so that keep-alive pings can interleave with frames.
type Writer struct {
	mu      sync.Mutex
	w       io.Writer
	flusher http.Flusher
}

// NewWriter wraps w. If w is an http.Flusher, every write is flushed.
func NewWriter(w io.Writer) *Writer {
	sw := &Writer{w: w}
	if f, ok := w.(http.Flusher); ok {
		sw.flusher = f
	}
	return sw
}

// PrepareHeaders sets the response headers for an event stream.
func PrepareHeaders(h http.Header) {
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
}

// WriteFrame writes f as a data: block. A write error means the client is gone.
func (sw *Writer) WriteFrame(f Frame) error {
	payload, err := MarshalFrame(f)
	if err != nil {
		return fmt.Errorf("failed to marshal %s frame: %w", f.Type(), err)
	}
	return sw.write("%s%s\n\n", dataMarker, payload)
}

// WriteKeepAlive writes an SSE comment, which decoders ignore.
func (sw *Writer) WriteKeepAlive() error {
	return sw.write(": keep-alive\n\n")
}

func (sw *Writer) write(format string, args ...any) error {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	if _, err := fmt.Fprintf(sw.w, format, args...); err != nil {
		return fmt.Errorf("failed to write to stream: %w", err)
	}
	if sw.flusher != nil {
		sw.flusher.Flush()
	}
	return nil
}
