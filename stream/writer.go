package stream

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ZaguanLabs/lingoflow"
)

// Format is a framing of events on a byte stream.
type Format string

const (
	// FormatNDJSON writes one JSON object per line.
	FormatNDJSON Format = "ndjson"
	// FormatSSE writes "data: <json>" frames separated by a blank line.
	FormatSSE Format = "sse"
)

// ContentType returns the HTTP content type of f.
func (f Format) ContentType() string {
	if f == FormatSSE {
		return "text/event-stream"
	}
	return "application/x-ndjson"
}

// NegotiateFormat picks SSE when the client accepts text/event-stream and
// NDJSON otherwise.
func NegotiateFormat(r *http.Request) Format {
	for _, accept := range r.Header.Values("Accept") {
		if containsToken(accept, "text/event-stream") {
			return FormatSSE
		}
	}
	return FormatNDJSON
}

func containsToken(header, token string) bool {
	for _, part := range strings.Split(header, ",") {
		if mediaType, _, _ := strings.Cut(part, ";"); strings.TrimSpace(mediaType) == token {
			return true
		}
	}
	return false
}

// FrameWriter writes framed events to an io.Writer, flushing after each
// frame when the writer supports it.
type FrameWriter struct {
	w       io.Writer
	format  Format
	flusher http.Flusher
}

// NewWriter creates a FrameWriter. If w implements http.Flusher every
// frame is flushed as soon as it is written.
func NewWriter(w io.Writer, format Format) *FrameWriter {
	fw := &FrameWriter{w: w, format: format}
	if f, ok := w.(http.Flusher); ok {
		fw.flusher = f
	}
	return fw
}

// WriteEvent encodes ev as one frame.
func (fw *FrameWriter) WriteEvent(ev lingoflow.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", ev.Type, err)
	}

	switch fw.format {
	case FormatSSE:
		_, err = fmt.Fprintf(fw.w, "data: %s\n\n", data)
	default:
		_, err = fmt.Fprintf(fw.w, "%s\n", data)
	}
	if err != nil {
		return err
	}

	if fw.flusher != nil {
		fw.flusher.Flush()
	}
	return nil
}

// PrepareResponse sets the streaming headers for format and sends them.
// It fails when w cannot be flushed.
func PrepareResponse(w http.ResponseWriter, format Format) (*FrameWriter, error) {
	if _, ok := w.(http.Flusher); !ok {
		return nil, fmt.Errorf("streaming unsupported")
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	if format == FormatSSE {
		w.Header().Set("Connection", "keep-alive")
	}
	w.WriteHeader(http.StatusOK)

	fw := NewWriter(w, format)
	fw.flusher.Flush()
	return fw, nil
}
