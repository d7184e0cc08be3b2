package stream

import (
	"context"
	"errors"
	"strings"

	"github.com/haloagents/halo/logging"
)

// Reconciliation errors. Both are recoverable for the caller: the turn
// orchestrator answers them with its non-streaming fallback.
var (
	// ErrStreamEmpty reports a sequence that ended without any content or
	// completion signal.
	ErrStreamEmpty = errors.New("stream produced no content")
	// ErrStreamError reports an error-class event observed before any content.
	ErrStreamError = errors.New("stream failed before producing content")
)

// State is the reconciler lifecycle phase.
type State int

const (
	// StateOpen accepts events and forwards novel content.
	StateOpen State = iota
	// StateSettling has observed a completion; further events are void.
	StateSettling
	// StateClosed is terminal.
	StateClosed
)

// Outcome summarizes how a stream ended, for telemetry.
type Outcome string

const (
	// OutcomeOK means the stream settled with non-empty text.
	OutcomeOK Outcome = "ok"
	// OutcomeEmpty means the stream settled without usable text.
	OutcomeEmpty Outcome = "empty"
	// OutcomeError means the stream failed before producing content.
	OutcomeError Outcome = "error"
	// OutcomeNone means no stream was consumed (non-streaming turn).
	OutcomeNone Outcome = "none"
)

// Result is the settled answer of one reconciled stream: the single
// authoritative text plus the de-duplicated tool call set.
type Result struct {
	Text      string
	ToolCalls []ToolCallRecord
	Outcome   Outcome
}

// ReconcilerOptions configure a Reconciler.
type ReconcilerOptions struct {
	// OnText receives each novel text suffix in production order.
	OnText func(string)
	// OnTool receives each first-seen tool call record.
	OnTool func(ToolCallRecord)
	// Logger for per-event debug tracing.
	Logger logging.Logger
}

type toolKey struct{ tool, input, agent string }

// Reconciler folds one unit's event sequence into exactly one Result. It is
// turn-local state: create one per turn, never share across turns.
//
// Guarantees:
//   - the caller's OnText observes monotonically growing text with
//     overlapping coordinator/member spans de-duplicated;
//   - OnTool never sees the same (tool, input, agent) triple twice;
//   - exactly one Result is produced no matter how many completion-class
//     events the sequence carries — the first one settles, later events are
//     void.
type Reconciler struct {
	opts ReconcilerOptions

	state    State
	buffer   string
	settled  string
	hasFinal bool

	sawContent     bool
	sawMember      bool
	sawCoordinator bool

	lastSource    Source
	hasLastSource bool

	seenTools map[toolKey]int
	records   []ToolCallRecord
}

// NewReconciler creates a Reconciler with optional overrides.
func NewReconciler(optFns ...func(o *ReconcilerOptions)) *Reconciler {
	opts := ReconcilerOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Reconciler{opts: opts, seenTools: make(map[toolKey]int)}
}

// Consume drains the event and error channels until both are exhausted or ctx
// is cancelled, then returns the settled Result. A nil Result is only
// returned alongside an error (ErrStreamEmpty, ErrStreamError or ctx.Err()).
func (r *Reconciler) Consume(ctx context.Context, events <-chan Event, errs <-chan error) (*Result, error) {
	for events != nil || errs != nil {
		select {
		case <-ctx.Done():
			r.state = StateClosed
			return nil, ctx.Err()
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if err := r.handle(ev); err != nil {
				r.state = StateClosed
				return nil, err
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err != nil {
				if abort := r.handleError(err); abort != nil {
					r.state = StateClosed
					return nil, abort
				}
			}
		}
	}
	return r.finish()
}

// handle applies one event. A non-nil error aborts the stream.
func (r *Reconciler) handle(ev Event) error {
	if r.state != StateOpen {
		// Already settled: late stragglers must not corrupt the answer.
		r.opts.Logger.Debug("stream.event.ignored", "kind", ev.Kind.String(), "agent", ev.Source.Agent)
		return nil
	}

	switch ev.Kind {
	case KindTextDelta:
		r.handleTextDelta(ev)
	case KindToolCallStarted, KindToolCallFinished:
		r.handleToolCall(ev)
	case KindRunCompleted:
		r.settle(ev.Text)
	case KindRunError:
		return r.handleError(ev.Err)
	default:
		// Unrecognized kinds are dropped by design.
		r.opts.Logger.Debug("stream.event.dropped", "kind", ev.Kind.String())
	}
	return nil
}

func (r *Reconciler) handleTextDelta(ev Event) {
	if ev.Text == "" || !contentBearing(ev.Source) {
		return
	}

	switch ev.Source.Origin {
	case OriginMember:
		if r.sawCoordinator {
			// Coordinator output is authoritative once it starts; later
			// member chunks would interleave garbage.
			return
		}
		r.sawMember = true
	case OriginCoordinator:
		r.sawCoordinator = true
	}

	// Overlap dedup only applies across producers (a coordinator echoing a
	// member's span, or a cumulative re-send). Deltas from the same source
	// are incremental and append as-is.
	var novel string
	if r.hasLastSource && ev.Source == r.lastSource {
		novel = ev.Text
		r.buffer += ev.Text
	} else {
		merged := mergeText(r.buffer, ev.Text)
		novel = merged[len(r.buffer):]
		r.buffer = merged
	}
	r.lastSource = ev.Source
	r.hasLastSource = true

	r.sawContent = true
	if novel != "" && r.opts.OnText != nil {
		r.opts.OnText(novel)
	}
}

func (r *Reconciler) handleToolCall(ev Event) {
	if ev.Tool == nil || ev.Tool.Tool == "" {
		return
	}
	key := toolKey{tool: ev.Tool.Tool, input: ev.Tool.Input, agent: ev.Tool.Agent}
	if idx, seen := r.seenTools[key]; seen {
		// Duplicate triple: keep the first record, but a finish may add the
		// output the start did not carry.
		if ev.Kind == KindToolCallFinished && ev.Tool.Output != "" {
			r.records[idx].Output = ev.Tool.Output
		}
		return
	}
	r.seenTools[key] = len(r.records)
	r.records = append(r.records, *ev.Tool)
	if r.opts.OnTool != nil {
		r.opts.OnTool(*ev.Tool)
	}
}

// settle fixes the authoritative answer. The first completion wins; its
// carried text overrides the accumulated buffer when non-empty.
func (r *Reconciler) settle(text string) {
	r.state = StateSettling
	r.hasFinal = true
	if strings.TrimSpace(text) != "" {
		r.settled = text
	} else {
		r.settled = r.buffer
	}
}

// handleError decides whether an error aborts the stream. An error before any
// content aborts; after content the stream settles on what was accumulated.
// Errors arriving after the answer has settled are void, like any other late
// signal.
func (r *Reconciler) handleError(err error) error {
	if r.state != StateOpen {
		r.opts.Logger.Debug("stream.error.ignored", "error", err)
		return nil
	}
	if !r.sawContent {
		r.opts.Logger.Warn("stream.error.no_content", "error", err)
		return errors.Join(ErrStreamError, err)
	}
	r.opts.Logger.Warn("stream.error.after_content", "error", err)
	r.settle("")
	return nil
}

func (r *Reconciler) finish() (*Result, error) {
	r.state = StateClosed
	if !r.hasFinal {
		// Safety net: a stream that ends without a completion signal still
		// settles on the accumulated buffer.
		if strings.TrimSpace(r.buffer) == "" {
			return nil, ErrStreamEmpty
		}
		r.settled = r.buffer
	}

	text := strings.TrimSpace(r.settled)
	outcome := OutcomeOK
	if text == "" {
		outcome = OutcomeEmpty
	}
	return &Result{Text: text, ToolCalls: r.records, Outcome: outcome}, nil
}

func contentBearing(s Source) bool {
	return s.Origin == OriginCoordinator || s.Origin == OriginMember
}

// mergeText merges an incoming fragment into the accumulated text with exact
// prefix/suffix/containment de-duplication. This covers the cumulative
// overlap case where a coordinator echoes a member's text (or a provider
// re-sends cumulative instead of incremental content).
func mergeText(existing, incoming string) string {
	if existing == "" {
		return incoming
	}
	if strings.HasPrefix(incoming, existing) {
		return incoming
	}
	if strings.HasPrefix(existing, incoming) {
		return existing
	}
	if strings.Contains(existing, incoming) {
		return existing
	}
	return existing + incoming
}
