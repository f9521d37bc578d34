// Package renderstream decodes the backend's progressive render stream: a
// single response body carrying `data: <json>` framed events, zero or more
// log lines followed by exactly one terminal result.
package renderstream

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"strings"

	"animatic/pkg/types"
)

// Event is the closed union of stream event kinds.
type Event interface{ isEvent() }

// LogEvent is one progressive log line from the renderer.
type LogEvent struct {
	Line string
}

func (LogEvent) isEvent() {}

// ResultEvent is the terminal outcome of the stream.
type ResultEvent struct {
	Result types.RenderResult
}

func (ResultEvent) isEvent() {}

// Decoder yields typed events from a byte stream. It is a lazy, finite,
// non-restartable sequence: the caller drives reads by calling Next until
// io.EOF. Events split across arbitrary read boundaries decode identically
// to the unsplit input, and malformed events are skipped rather than
// aborting the stream.
type Decoder struct {
	r    *bufio.Reader
	data []string
}

// NewDecoder wraps r. The decoder owns buffering; r is read incrementally.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReader(r)}
}

// Next returns the next decoded event, or io.EOF when the stream ends.
func (d *Decoder) Next() (Event, error) {
	for {
		line, err := d.r.ReadString('\n')
		if len(line) > 0 {
			trimmed := strings.TrimRight(line, "\r\n")
			if trimmed == "" {
				// Blank line terminates the pending event.
				if ev, ok := d.flush(); ok {
					return ev, nil
				}
			} else if strings.HasPrefix(trimmed, "data:") {
				d.data = append(d.data, strings.TrimSpace(trimmed[len("data:"):]))
			}
			// Other SSE fields (event:, id:, comments) are ignored.
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				// A final event may end with EOF instead of a blank line.
				if ev, ok := d.flush(); ok {
					return ev, nil
				}
				return nil, io.EOF
			}
			return nil, err
		}
	}
}

// flush decodes the accumulated data lines into an event. Payloads that are
// not valid JSON or not one of the two known shapes are dropped.
func (d *Decoder) flush() (Event, bool) {
	if len(d.data) == 0 {
		return nil, false
	}
	payload := strings.Join(d.data, "\n")
	d.data = nil

	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal([]byte(payload), &probe); err != nil {
		return nil, false
	}
	switch probe.Type {
	case "log":
		var ev struct {
			Line string `json:"line"`
		}
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			return nil, false
		}
		return LogEvent{Line: ev.Line}, true
	case "result":
		var res types.RenderResult
		if err := json.Unmarshal([]byte(payload), &res); err != nil {
			return nil, false
		}
		return ResultEvent{Result: res}, true
	default:
		return nil, false
	}
}
