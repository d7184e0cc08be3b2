// Package stream defines the event sequence produced by runnable units and
// the Reconciler that folds a noisy, possibly duplicated sequence into exactly
// one settled answer per turn.
package stream

import (
	"time"

	"github.com/google/uuid"
)

// Kind enumerates the recognized event kinds. The set is closed on purpose:
// anything a unit emits outside it is KindUnknown and dropped by the
// Reconciler, which keeps the state machine auditable.
type Kind int

const (
	// KindUnknown marks events the reconciler does not recognize.
	KindUnknown Kind = iota
	// KindTextDelta carries an incremental text fragment.
	KindTextDelta
	// KindToolCallStarted announces a tool invocation.
	KindToolCallStarted
	// KindToolCallFinished carries a tool invocation result.
	KindToolCallFinished
	// KindRunCompleted is the completion-class signal; it may carry the full
	// authoritative text.
	KindRunCompleted
	// KindRunError is the error-class signal.
	KindRunError
)

// String returns the event kind label used in logs.
func (k Kind) String() string {
	switch k {
	case KindTextDelta:
		return "text_delta"
	case KindToolCallStarted:
		return "tool_call_started"
	case KindToolCallFinished:
		return "tool_call_finished"
	case KindRunCompleted:
		return "run_completed"
	case KindRunError:
		return "run_error"
	default:
		return "unknown"
	}
}

// Origin identifies which layer of a runnable unit produced an event.
type Origin int

const (
	// OriginInternal marks purely internal events; never content-bearing.
	OriginInternal Origin = iota
	// OriginCoordinator marks events from the coordinator (or a standalone agent).
	OriginCoordinator
	// OriginMember marks events from a delegated leaf member.
	OriginMember
)

// Source tags an event with its producer.
type Source struct {
	Origin Origin `json:"origin"`
	Agent  string `json:"agent"` // Agent name, e.g. "reports"
}

// ToolCallRecord captures one tool invocation. Within a turn records are
// de-duplicated by (Tool, Input, Agent).
type ToolCallRecord struct {
	Tool   string `json:"tool"`
	Input  string `json:"input,omitempty"`
	Output string `json:"output,omitempty"`
	Agent  string `json:"agent,omitempty"`
}

// Event is one item of a runnable unit's output sequence. Events are emitted
// in production order and treated as immutable after emission.
type Event struct {
	ID        string          `json:"id"`
	Kind      Kind            `json:"kind"`
	Source    Source          `json:"source"`
	Text      string          `json:"text,omitempty"` // Delta text, or full final text on RunCompleted
	Tool      *ToolCallRecord `json:"tool,omitempty"`
	Err       error           `json:"-"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewID generates a unique identifier for events and turns.
func NewID() string { return uuid.NewString() }

func newEvent(kind Kind, source Source) Event {
	return Event{ID: NewID(), Kind: kind, Source: source, Timestamp: time.Now().UTC()}
}

// NewTextDelta creates an incremental text event.
func NewTextDelta(source Source, text string) Event {
	e := newEvent(KindTextDelta, source)
	e.Text = text
	return e
}

// NewToolCallStarted announces a tool invocation.
func NewToolCallStarted(source Source, tool, input string) Event {
	e := newEvent(KindToolCallStarted, source)
	e.Tool = &ToolCallRecord{Tool: tool, Input: input, Agent: source.Agent}
	return e
}

// NewToolCallFinished records a tool invocation result.
func NewToolCallFinished(source Source, tool, input, output string) Event {
	e := newEvent(KindToolCallFinished, source)
	e.Tool = &ToolCallRecord{Tool: tool, Input: input, Output: output, Agent: source.Agent}
	return e
}

// NewRunCompleted creates a completion-class event. text may be empty when
// the producer has no authoritative final text.
func NewRunCompleted(source Source, text string) Event {
	e := newEvent(KindRunCompleted, source)
	e.Text = text
	return e
}

// NewRunError creates an error-class event.
func NewRunError(source Source, err error) Event {
	e := newEvent(KindRunError, source)
	e.Err = err
	return e
}
