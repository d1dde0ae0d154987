package stream

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/ZaguanLabs/lingoflow"
)

// ErrIncompleteStream is returned when a stream ends before a terminal event.
var ErrIncompleteStream = errors.New("stream ended before a terminal event")

// Decoder parses framed events from arbitrarily split chunks. Bytes after
// the last complete delimiter are kept until more data arrives.
type Decoder struct {
	format Format
	buf    []byte
}

// NewDecoder creates a decoder for format.
func NewDecoder(format Format) *Decoder {
	return &Decoder{format: format}
}

// Feed appends chunk and returns every event it completed.
func (d *Decoder) Feed(chunk []byte) ([]lingoflow.Event, error) {
	d.buf = append(d.buf, chunk...)
	// CRLF framing from proxies; a split pair is joined on the next Feed.
	d.buf = bytes.ReplaceAll(d.buf, []byte("\r\n"), []byte("\n"))

	var events []lingoflow.Event
	for {
		frame, ok := d.nextFrame()
		if !ok {
			return events, nil
		}
		ev, ok, err := d.parseFrame(frame)
		if err != nil {
			return events, err
		}
		if ok {
			events = append(events, ev)
		}
	}
}

// Buffered returns the number of bytes waiting for a delimiter.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

func (d *Decoder) nextFrame() ([]byte, bool) {
	delim := []byte("\n")
	if d.format == FormatSSE {
		delim = []byte("\n\n")
	}

	i := bytes.Index(d.buf, delim)
	if i < 0 {
		return nil, false
	}
	frame := d.buf[:i]
	d.buf = d.buf[i+len(delim):]
	return frame, true
}

func (d *Decoder) parseFrame(frame []byte) (lingoflow.Event, bool, error) {
	payload := frame
	if d.format == FormatSSE {
		var data [][]byte
		for _, line := range bytes.Split(frame, []byte("\n")) {
			if rest, ok := bytes.CutPrefix(line, []byte("data:")); ok {
				data = append(data, bytes.TrimPrefix(rest, []byte(" ")))
			}
		}
		// Comments and event-only frames carry no payload
		if len(data) == 0 {
			return lingoflow.Event{}, false, nil
		}
		payload = bytes.Join(data, []byte("\n"))
	}

	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 {
		return lingoflow.Event{}, false, nil
	}

	var ev lingoflow.Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return lingoflow.Event{}, false, fmt.Errorf("decode frame %q: %w", truncate(payload, 80), err)
	}
	return ev, true, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

// ReadEvents decodes events from r and passes them to fn in order. It
// stops after a terminal event and returns ErrIncompleteStream if r ends
// first.
func ReadEvents(r io.Reader, format Format, fn func(lingoflow.Event) error) error {
	dec := NewDecoder(format)
	buf := make([]byte, 4096)
	for {
		n, readErr := r.Read(buf)
		if n > 0 {
			events, err := dec.Feed(buf[:n])
			for _, ev := range events {
				if err := fn(ev); err != nil {
					return err
				}
				if ev.IsTerminal() {
					return nil
				}
			}
			if err != nil {
				return err
			}
		}
		if readErr == io.EOF {
			// A final NDJSON frame may lack its newline.
			if format == FormatNDJSON && dec.Buffered() > 0 {
				events, err := dec.Feed([]byte("\n"))
				if err != nil {
					return err
				}
				for _, ev := range events {
					if err := fn(ev); err != nil {
						return err
					}
					if ev.IsTerminal() {
						return nil
					}
				}
			}
			return ErrIncompleteStream
		}
		if readErr != nil {
			return readErr
		}
	}
}
