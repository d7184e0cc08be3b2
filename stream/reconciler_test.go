package stream

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	coord  = Source{Origin: OriginCoordinator, Agent: "chat"}
	member = Source{Origin: OriginMember, Agent: "reports"}
	intern = Source{Origin: OriginInternal, Agent: "engine"}
)

func feed(events ...Event) (<-chan Event, <-chan error) {
	eventCh := make(chan Event, len(events))
	errCh := make(chan error, 1)
	for _, ev := range events {
		eventCh <- ev
	}
	close(eventCh)
	close(errCh)
	return eventCh, errCh
}

func consume(t *testing.T, r *Reconciler, events ...Event) (*Result, error) {
	t.Helper()
	eventCh, errCh := feed(events...)
	return r.Consume(context.Background(), eventCh, errCh)
}

func TestReconciler_ForwardsNovelText(t *testing.T) {
	var got []string
	r := NewReconciler(func(o *ReconcilerOptions) {
		o.OnText = func(s string) { got = append(got, s) }
	})

	result, err := consume(t, r,
		NewTextDelta(coord, "Hello"),
		NewTextDelta(coord, " world"),
		NewRunCompleted(coord, ""),
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"Hello", " world"}, got)
	assert.Equal(t, "Hello world", result.Text)
	assert.Equal(t, OutcomeOK, result.Outcome)
}

func TestReconciler_CompletionTextOverridesBuffer(t *testing.T) {
	r := NewReconciler()
	result, err := consume(t, r,
		NewTextDelta(coord, "partial dra"),
		NewRunCompleted(coord, "The full final answer."),
	)
	require.NoError(t, err)
	assert.Equal(t, "The full final answer.", result.Text)
}

// 1, 2 or 10 completions settle identically on the first completion's text.
func TestReconciler_FirstCompletionWins(t *testing.T) {
	for _, extra := range []int{0, 1, 9} {
		events := []Event{
			NewTextDelta(coord, "building up"),
			NewRunCompleted(coord, "first answer"),
		}
		for i := 0; i < extra; i++ {
			events = append(events, NewRunCompleted(coord, "straggler answer"))
		}

		result, err := consume(t, NewReconciler(), events...)
		require.NoError(t, err)
		assert.Equal(t, "first answer", result.Text)
	}
}

func TestReconciler_EventsAfterSettlingAreVoid(t *testing.T) {
	var got []string
	var tools []ToolCallRecord
	r := NewReconciler(func(o *ReconcilerOptions) {
		o.OnText = func(s string) { got = append(got, s) }
		o.OnTool = func(rec ToolCallRecord) { tools = append(tools, rec) }
	})

	result, err := consume(t, r,
		NewRunCompleted(coord, "done"),
		NewTextDelta(coord, "late delta"),
		NewToolCallStarted(coord, "calculator", `{"a":1}`),
	)
	require.NoError(t, err)
	assert.Equal(t, "done", result.Text)
	assert.Empty(t, got)
	assert.Empty(t, tools)
	assert.Empty(t, result.ToolCalls)
}

func TestReconciler_CoordinatorEchoDeduplicated(t *testing.T) {
	var got string
	r := NewReconciler(func(o *ReconcilerOptions) {
		o.OnText = func(s string) { got += s }
	})

	// Coordinator re-sends cumulative content covering the member's span.
	result, err := consume(t, r,
		NewTextDelta(member, "Revenue grew 14%."),
		NewTextDelta(coord, "Revenue grew 14%. Headcount was flat."),
		NewRunCompleted(coord, ""),
	)
	require.NoError(t, err)
	assert.Equal(t, "Revenue grew 14%. Headcount was flat.", result.Text)
	assert.Equal(t, result.Text, got)
}

// Same-source deltas are incremental; repeated characters must survive even
// when the buffer already contains them.
func TestReconciler_SameSourceDeltasAppendVerbatim(t *testing.T) {
	var got string
	r := NewReconciler(func(o *ReconcilerOptions) {
		o.OnText = func(s string) { got += s }
	})

	events := make([]Event, 0, len("bookkeeping")+1)
	for _, c := range "bookkeeping" {
		events = append(events, NewTextDelta(coord, string(c)))
	}
	events = append(events, NewRunCompleted(coord, ""))

	result, err := consume(t, r, events...)
	require.NoError(t, err)
	assert.Equal(t, "bookkeeping", result.Text)
	assert.Equal(t, "bookkeeping", got)
}

func TestReconciler_MemberTextIgnoredAfterCoordinator(t *testing.T) {
	var got string
	r := NewReconciler(func(o *ReconcilerOptions) {
		o.OnText = func(s string) { got += s }
	})

	result, err := consume(t, r,
		NewTextDelta(coord, "Final: "),
		NewTextDelta(member, "straggling member text"),
		NewTextDelta(coord, "all good."),
		NewRunCompleted(coord, ""),
	)
	require.NoError(t, err)
	assert.Equal(t, "Final: all good.", result.Text)
	assert.Equal(t, "Final: all good.", got)
}

func TestReconciler_InternalAndUnknownEventsDropped(t *testing.T) {
	r := NewReconciler()
	result, err := consume(t, r,
		NewTextDelta(intern, "internal bookkeeping"),
		Event{ID: NewID(), Kind: KindUnknown, Source: coord, Text: "???"},
		NewTextDelta(coord, "visible"),
		NewRunCompleted(coord, ""),
	)
	require.NoError(t, err)
	assert.Equal(t, "visible", result.Text)
}

func TestReconciler_ToolCallDeduplication(t *testing.T) {
	var forwarded []ToolCallRecord
	r := NewReconciler(func(o *ReconcilerOptions) {
		o.OnTool = func(rec ToolCallRecord) { forwarded = append(forwarded, rec) }
	})

	result, err := consume(t, r,
		NewToolCallStarted(member, "calculator", `{"a":1,"b":2}`),
		NewToolCallFinished(member, "calculator", `{"a":1,"b":2}`, "3"),
		// Same triple from a different agent is a distinct call.
		NewToolCallStarted(coord, "calculator", `{"a":1,"b":2}`),
		// Exact duplicate is discarded.
		NewToolCallStarted(member, "calculator", `{"a":1,"b":2}`),
		NewRunCompleted(coord, "done"),
	)
	require.NoError(t, err)
	require.Len(t, forwarded, 2)
	assert.Equal(t, "reports", forwarded[0].Agent)
	assert.Equal(t, "chat", forwarded[1].Agent)

	require.Len(t, result.ToolCalls, 2)
	// The finish filled in the output of the first-seen record.
	assert.Equal(t, "3", result.ToolCalls[0].Output)
}

func TestReconciler_EmptyStream(t *testing.T) {
	r := NewReconciler()
	result, err := consume(t, r)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrStreamEmpty)
}

func TestReconciler_ErrorBeforeContentAborts(t *testing.T) {
	r := NewReconciler()
	cause := errors.New("provider unavailable")
	result, err := consume(t, r, NewRunError(coord, cause))
	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrStreamError)
	assert.ErrorIs(t, err, cause)
}

func TestReconciler_ErrorChannelBeforeContentAborts(t *testing.T) {
	r := NewReconciler()
	eventCh := make(chan Event)
	close(eventCh)
	errCh := make(chan error, 1)
	errCh <- errors.New("dial failed")
	close(errCh)

	result, err := r.Consume(context.Background(), eventCh, errCh)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrStreamError)
}

// An error surfacing after the answer has settled (a member winding down after
// the coordinator completed) must not displace the completion's text.
func TestReconciler_ErrorChannelAfterSettlingIsVoid(t *testing.T) {
	r := NewReconciler()
	eventCh := make(chan Event)
	errCh := make(chan error)
	go func() {
		eventCh <- NewTextDelta(coord, "partial")
		eventCh <- NewRunCompleted(coord, "The complete final answer.")
		close(eventCh)
		errCh <- errors.New("member cleanup failed")
		close(errCh)
	}()

	result, err := r.Consume(context.Background(), eventCh, errCh)
	require.NoError(t, err)
	assert.Equal(t, "The complete final answer.", result.Text)
	assert.Equal(t, OutcomeOK, result.Outcome)
}

func TestReconciler_ErrorAfterContentSettles(t *testing.T) {
	r := NewReconciler()
	result, err := consume(t, r,
		NewTextDelta(coord, "partial answer before the line dropped"),
		NewRunError(coord, errors.New("connection reset")),
	)
	require.NoError(t, err)
	assert.Equal(t, "partial answer before the line dropped", result.Text)
	assert.Equal(t, OutcomeOK, result.Outcome)
}

func TestReconciler_StreamEndsWithoutCompletion(t *testing.T) {
	r := NewReconciler()
	result, err := consume(t, r, NewTextDelta(coord, "orphaned content"))
	require.NoError(t, err)
	assert.Equal(t, "orphaned content", result.Text)
}

func TestReconciler_WhitespaceOnlySettlesEmpty(t *testing.T) {
	r := NewReconciler()
	result, err := consume(t, r,
		NewTextDelta(coord, "  \n\t"),
		NewRunCompleted(coord, ""),
	)
	require.NoError(t, err)
	assert.Equal(t, "", result.Text)
	assert.Equal(t, OutcomeEmpty, result.Outcome)
}

func TestReconciler_ContextCancellation(t *testing.T) {
	r := NewReconciler()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	eventCh := make(chan Event) // never closed; cancellation must win
	errCh := make(chan error)
	result, err := r.Consume(ctx, eventCh, errCh)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMergeText(t *testing.T) {
	tests := []struct {
		name     string
		existing string
		incoming string
		want     string
	}{
		{"empty existing", "", "abc", "abc"},
		{"cumulative resend", "abc", "abcdef", "abcdef"},
		{"stale prefix", "abcdef", "abc", "abcdef"},
		{"contained span", "abcdef", "cde", "abcdef"},
		{"plain append", "abc", "def", "abcdef"},
		{"identical", "abc", "abc", "abc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, mergeText(tt.existing, tt.incoming))
		})
	}
}
