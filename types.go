package lingoflow

import (
	"encoding/json"
	"fmt"

	"github.com/ZaguanLabs/lingoflow/document"
)

// EventType tags a progress event.
type EventType string

const (
	// EventInit is emitted once, first, with the number of keys.
	EventInit EventType = "init"
	// EventProgress is emitted after every unit, translated or not.
	EventProgress EventType = "progress"
	// EventComplete carries the rebuilt document and ends the stream.
	EventComplete EventType = "complete"
	// EventError ends the stream of a failed job.
	EventError EventType = "error"
	// EventCancelled is written by transports when a job is cancelled.
	// The orchestrator itself never emits it.
	EventCancelled EventType = "cancelled"
)

// Event is one progress notification. Which fields are meaningful depends
// on Type.
type Event struct {
	Type EventType

	TotalKeys int // init

	Key         string // progress
	Translation string // progress
	Completed   int    // progress
	Total       int    // progress

	Document any // complete

	Message string // error
	Reason  string // error
}

// EventFunc receives events in order. It must not block for long.
type EventFunc func(Event)

// InitEvent returns an init event.
func InitEvent(totalKeys int) Event {
	return Event{Type: EventInit, TotalKeys: totalKeys}
}

// ProgressEvent returns a progress event.
func ProgressEvent(key, translation string, completed, total int) Event {
	return Event{Type: EventProgress, Key: key, Translation: translation, Completed: completed, Total: total}
}

// CompleteEvent returns a complete event carrying the translated document.
func CompleteEvent(doc any) Event {
	return Event{Type: EventComplete, Document: doc}
}

// ErrorEvent returns a terminal error event describing err.
func ErrorEvent(err error) Event {
	return Event{Type: EventError, Message: err.Error(), Reason: FailureReason(err)}
}

// CancelledEvent returns the transport-level cancellation notice.
func CancelledEvent() Event {
	return Event{Type: EventCancelled, Reason: ReasonCancelled}
}

// IsTerminal reports whether no further events follow this one.
func (e Event) IsTerminal() bool {
	return e.Type == EventComplete || e.Type == EventError || e.Type == EventCancelled
}

type initFrame struct {
	Type      EventType `json:"type"`
	TotalKeys int       `json:"totalKeys"`
}

type progressFrame struct {
	Type        EventType `json:"type"`
	Key         string    `json:"key"`
	Translation string    `json:"translation"`
	Completed   int       `json:"completed"`
	Total       int       `json:"total"`
}

type completeFrame struct {
	Type     EventType       `json:"type"`
	Document json.RawMessage `json:"translatedDocument"`
}

type errorFrame struct {
	Type    EventType `json:"type"`
	Message string    `json:"message,omitempty"`
	Reason  string    `json:"reason,omitempty"`
}

// MarshalJSON encodes the event as its wire frame.
func (e Event) MarshalJSON() ([]byte, error) {
	switch e.Type {
	case EventInit:
		return json.Marshal(initFrame{Type: e.Type, TotalKeys: e.TotalKeys})
	case EventProgress:
		return json.Marshal(progressFrame{
			Type:        e.Type,
			Key:         e.Key,
			Translation: e.Translation,
			Completed:   e.Completed,
			Total:       e.Total,
		})
	case EventComplete:
		doc, err := document.Marshal(e.Document)
		if err != nil {
			return nil, fmt.Errorf("encode translated document: %w", err)
		}
		return json.Marshal(completeFrame{Type: e.Type, Document: doc})
	case EventError, EventCancelled:
		return json.Marshal(errorFrame{Type: e.Type, Message: e.Message, Reason: e.Reason})
	default:
		return nil, fmt.Errorf("unknown event type %q", e.Type)
	}
}

// UnmarshalJSON decodes a wire frame. Translated documents keep key order.
func (e *Event) UnmarshalJSON(data []byte) error {
	var frame struct {
		Type        EventType       `json:"type"`
		TotalKeys   int             `json:"totalKeys"`
		Key         string          `json:"key"`
		Translation string          `json:"translation"`
		Completed   int             `json:"completed"`
		Total       int             `json:"total"`
		Document    json.RawMessage `json:"translatedDocument"`
		Message     string          `json:"message"`
		Reason      string          `json:"reason"`
	}
	if err := json.Unmarshal(data, &frame); err != nil {
		return err
	}

	*e = Event{
		Type:        frame.Type,
		TotalKeys:   frame.TotalKeys,
		Key:         frame.Key,
		Translation: frame.Translation,
		Completed:   frame.Completed,
		Total:       frame.Total,
		Message:     frame.Message,
		Reason:      frame.Reason,
	}

	switch frame.Type {
	case EventInit, EventProgress, EventError, EventCancelled:
	case EventComplete:
		if len(frame.Document) == 0 {
			return fmt.Errorf("complete event without translatedDocument")
		}
		doc, err := document.Parse(frame.Document)
		if err != nil {
			return fmt.Errorf("decode translated document: %w", err)
		}
		e.Document = doc
	default:
		return fmt.Errorf("unknown event type %q", frame.Type)
	}
	return nil
}

// JobState is the orchestrator state machine.
type JobState int

const (
	StateIdle JobState = iota
	StateRunning
	StateCompleted
	StateFailed
	StateCancelled
)

func (s JobState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// UnitOutcome describes how a single unit finished.
type UnitOutcome string

const (
	UnitTranslated UnitOutcome = "translated" // remote call succeeded
	UnitCached     UnitOutcome = "cached"     // reused from the cache
	UnitSkipped    UnitOutcome = "skipped"    // empty text, copied through
	UnitFallback   UnitOutcome = "fallback"   // remote call failed, source kept
	UnitKept       UnitOutcome = "kept"       // improve: within the length threshold
)

// Result summarises a finished job.
type Result struct {
	Document   any // translated document, nil unless State is StateCompleted
	Flat       *document.FlatMapping
	State      JobState
	TotalKeys  int
	Translated int
	Cached     int
	Skipped    int
	Fallbacks  int
	Resumed    int // keys restored from a checkpoint
}
