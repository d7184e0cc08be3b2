package team

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haloagents/halo/config"
	"github.com/haloagents/halo/model"
	"github.com/haloagents/halo/stream"
	"github.com/haloagents/halo/tool"
)

func collect(events <-chan stream.Event, errs <-chan error) ([]stream.Event, error) {
	var collected []stream.Event
	var runErr error
	for events != nil || errs != nil {
		select {
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			collected = append(collected, ev)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err != nil {
				runErr = err
			}
		}
	}
	return collected, runErr
}

func kinds(events []stream.Event) []stream.Kind {
	out := make([]stream.Kind, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.Kind)
	}
	return out
}

func leafDef(streaming bool) config.AgentDefinition {
	return config.AgentDefinition{
		ID:           "assistant",
		Name:         "Assistant",
		Instructions: "Answer.",
		StreamEvents: streaming,
		Enabled:      true,
	}
}

func TestLeaf_RunStreamsAndCompletes(t *testing.T) {
	m := model.NewMockModel("test")
	m.AddResponse("hi", "ok")
	leaf := NewLeaf(leafDef(true), m, nil)

	events, err := collect(leaf.Run(context.Background(), "hi"))
	require.NoError(t, err)
	require.NotEmpty(t, events)

	last := events[len(events)-1]
	assert.Equal(t, stream.KindRunCompleted, last.Kind)
	assert.Equal(t, "ok", last.Text)
	assert.Equal(t, stream.OriginCoordinator, last.Source.Origin)
	assert.Equal(t, "Assistant", last.Source.Agent)

	var streamed string
	for _, ev := range events[:len(events)-1] {
		assert.Equal(t, stream.KindTextDelta, ev.Kind)
		streamed += ev.Text
	}
	assert.Equal(t, "ok", streamed)
}

func TestLeaf_RunExecutesToolCalls(t *testing.T) {
	m := model.NewMockModel("test")
	m.AddToolCalls("calc", model.ToolCall{ID: "c1", Name: "calculator", Arguments: `{"operation":"add","a":1,"b":2}`})
	tools, buildErr := tool.NewRegistry().Build([]string{"calculator"}, nil)
	require.NoError(t, buildErr)

	leaf := NewLeaf(leafDef(false), m, tools)
	events, err := collect(leaf.Run(context.Background(), "calc"))
	require.NoError(t, err)

	require.Equal(t, []stream.Kind{
		stream.KindToolCallStarted,
		stream.KindToolCallFinished,
		stream.KindRunCompleted,
	}, kinds(events))
	assert.Equal(t, "calculator", events[1].Tool.Tool)
	assert.Equal(t, "3", events[1].Tool.Output)
	assert.Equal(t, "Assistant", events[1].Tool.Agent)
}

func TestLeaf_RunUnknownToolReportedToModel(t *testing.T) {
	m := model.NewMockModel("test")
	m.AddToolCalls("go", model.ToolCall{ID: "c1", Name: "nosuch", Arguments: `{}`})

	leaf := NewLeaf(leafDef(false), m, nil)
	events, err := collect(leaf.Run(context.Background(), "go"))
	require.NoError(t, err)

	// The failed call is still recorded and the run completes on the
	// follow-up response.
	require.Equal(t, []stream.Kind{
		stream.KindToolCallStarted,
		stream.KindToolCallFinished,
		stream.KindRunCompleted,
	}, kinds(events))
	assert.Contains(t, events[1].Tool.Output, "unknown tool")
}

func TestLeaf_RunErrorEmitsRunError(t *testing.T) {
	leaf := NewLeaf(leafDef(false), model.NewMockModel("test"), nil)

	// Empty payload makes the mock fail before producing content.
	events, err := collect(leaf.Run(context.Background(), ""))
	require.Error(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, stream.KindRunError, events[0].Kind)
	assert.Error(t, events[0].Err)
}

func TestLeaf_Generate(t *testing.T) {
	m := model.NewMockModel("test")
	m.AddResponse("hi", "plain answer")
	leaf := NewLeaf(leafDef(true), m, nil)

	text, err := leaf.Generate(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "plain answer", text)
}

func TestLeaf_MemberOriginTagging(t *testing.T) {
	m := model.NewMockModel("test")
	leaf := NewLeaf(leafDef(false), m, nil, func(o *LeafOptions) {
		o.Origin = stream.OriginMember
	})

	events, err := collect(leaf.Run(context.Background(), "hi"))
	require.NoError(t, err)
	for _, ev := range events {
		assert.Equal(t, stream.OriginMember, ev.Source.Origin)
	}
}

func newTestCoordinator(t *testing.T, memberStreaming bool) *Coordinator {
	t.Helper()
	m := model.NewMockModel("test")

	reports := NewLeaf(config.AgentDefinition{
		ID: "reports", Name: "Reports", Role: "writer",
		StreamEvents: memberStreaming, Enabled: true,
	}, m, nil, func(o *LeafOptions) { o.Origin = stream.OriginMember })

	infographic := NewLeaf(config.AgentDefinition{
		ID: "infographic", Name: "Infographic", Role: "designer",
		StreamEvents: memberStreaming, Enabled: true,
	}, m, nil, func(o *LeafOptions) { o.Origin = stream.OriginMember })

	def := config.AgentDefinition{
		ID: "chat", Name: "Chat", Instructions: "Coordinate.",
		Members: []string{"reports", "infographic"},
		Enabled: true,
	}
	return NewCoordinator(def, m, nil, []*Leaf{reports, infographic})
}

func TestCoordinator_SingleCompletion(t *testing.T) {
	coordinator := newTestCoordinator(t, false)
	events, err := collect(coordinator.Run(context.Background(), "summarize the quarter"))
	require.NoError(t, err)

	var completions []stream.Event
	for _, ev := range events {
		if ev.Kind == stream.KindRunCompleted {
			completions = append(completions, ev)
		}
	}
	require.Len(t, completions, 1)
	assert.Equal(t, stream.OriginCoordinator, completions[0].Source.Origin)
	assert.Equal(t, "Chat", completions[0].Source.Agent)
}

func TestCoordinator_FinalAnswerIncorporatesFindings(t *testing.T) {
	coordinator := newTestCoordinator(t, false)
	events, err := collect(coordinator.Run(context.Background(), "summarize the quarter"))
	require.NoError(t, err)

	final := events[len(events)-1]
	require.Equal(t, stream.KindRunCompleted, final.Kind)
	assert.Contains(t, final.Text, "Reports")
	assert.Contains(t, final.Text, "Infographic")
	assert.Contains(t, final.Text, "summarize the quarter")
}

func TestCoordinator_ForwardsMemberDeltas(t *testing.T) {
	coordinator := newTestCoordinator(t, true)
	events, err := collect(coordinator.Run(context.Background(), "summarize"))
	require.NoError(t, err)

	var memberDeltas int
	for _, ev := range events {
		if ev.Kind == stream.KindTextDelta && ev.Source.Origin == stream.OriginMember {
			memberDeltas++
		}
		// Member completions must not leak into the unit's sequence.
		if ev.Kind == stream.KindRunCompleted {
			assert.NotEqual(t, stream.OriginMember, ev.Source.Origin)
		}
	}
	assert.Greater(t, memberDeltas, 0)
}

func TestCoordinator_FailingMemberSkipped(t *testing.T) {
	m := model.NewMockModel("test")
	// A member leaf over a model that always errors.
	broken := NewLeaf(config.AgentDefinition{ID: "broken", Name: "Broken", Enabled: true},
		&failingModel{}, nil, func(o *LeafOptions) { o.Origin = stream.OriginMember })

	def := config.AgentDefinition{ID: "chat", Name: "Chat", Members: []string{"broken"}, Enabled: true}
	coordinator := NewCoordinator(def, m, nil, []*Leaf{broken})

	events, err := collect(coordinator.Run(context.Background(), "hello"))
	require.NoError(t, err)
	final := events[len(events)-1]
	assert.Equal(t, stream.KindRunCompleted, final.Kind)
	assert.NotEmpty(t, final.Text)
}

func TestCoordinator_Generate(t *testing.T) {
	coordinator := newTestCoordinator(t, false)
	text, err := coordinator.Generate(context.Background(), "summarize the quarter")
	require.NoError(t, err)
	assert.Contains(t, text, "summarize the quarter")
}

func TestCoordinator_Metadata(t *testing.T) {
	coordinator := newTestCoordinator(t, false)
	assert.Equal(t, "Chat", coordinator.Name())
	assert.Equal(t, []string{"Reports", "Infographic"}, coordinator.MemberNames())
	assert.Equal(t, "mock:test", coordinator.ModelInfo().Label())
}

// failingModel always reports an error without producing content.
type failingModel struct{}

func (m *failingModel) Generate(context.Context, model.Request) (<-chan model.Response, <-chan error) {
	respCh := make(chan model.Response)
	errCh := make(chan error, 1)
	errCh <- fmt.Errorf("provider unavailable")
	close(respCh)
	close(errCh)
	return respCh, errCh
}

func (m *failingModel) Info() model.Info {
	return model.Info{Name: "failing", Provider: "mock"}
}
