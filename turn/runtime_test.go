package turn

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haloagents/halo/config"
	"github.com/haloagents/halo/internal/testutil"
	"github.com/haloagents/halo/model"
	"github.com/haloagents/halo/retrieval"
	"github.com/haloagents/halo/stream"
	"github.com/haloagents/halo/tool"
)

func mockResolver(m model.Model) *model.Resolver {
	return testutil.FixedResolver(m)
}

func seededStore() *config.InMemoryStore {
	store := config.NewInMemoryStore()
	for _, def := range config.DefaultDefinitions() {
		_ = store.Put(def)
	}
	return store
}

func newTestRuntime(m model.Model, optFns ...func(o *RuntimeOptions)) *Runtime {
	return NewRuntime(seededStore(), mockResolver(m), tool.NewRegistry(), optFns...)
}

func TestRuntime_DirectTurn(t *testing.T) {
	store := seededStore()
	_ = store.Put(config.AgentDefinition{
		ID: "solo", Name: "Solo", Model: "mock:m",
		CoordinationMode: config.ModeDirectOnly,
		StreamEvents:     true, Enabled: true,
	})
	runtime := NewRuntime(store, mockResolver(model.NewMockModel("m")), tool.NewRegistry())

	var streamed string
	result, err := runtime.Run(context.Background(), Request{
		AgentID: "solo",
		Prompt:  "hello",
		OnText:  func(s string) { streamed += s },
	})
	require.NoError(t, err)

	assert.Equal(t, "Mock response to: hello", result.Text)
	assert.Equal(t, result.Text, streamed)

	trace := result.Trace
	assert.NotEmpty(t, trace.TurnID)
	assert.Equal(t, "mock:m", trace.Model)
	assert.Equal(t, "Solo", trace.AgentName)
	assert.Equal(t, "agent", trace.AgentType)
	assert.Equal(t, config.ModeDirectOnly, trace.Mode)
	assert.Empty(t, trace.MemberIDs)
	assert.Equal(t, stream.OutcomeOK, trace.StreamOutcome)
	assert.False(t, trace.UsedFallback)
	assert.False(t, trace.AssemblyFallback)
	assert.GreaterOrEqual(t, trace.LatencyMS, int64(0))
}

func TestRuntime_TeamTurn(t *testing.T) {
	runtime := newTestRuntime(model.NewMockModel("m"))

	result, err := runtime.Run(context.Background(), Request{
		AgentID: "chat",
		Prompt:  "summarize the quarter",
	})
	require.NoError(t, err)

	assert.Equal(t, "team", result.Trace.AgentType)
	assert.Equal(t, []string{"reports", "infographic"}, result.Trace.MemberIDs)
	assert.Contains(t, result.Text, "summarize the quarter")
}

func TestRuntime_DefaultAgent(t *testing.T) {
	runtime := newTestRuntime(model.NewMockModel("m"))

	result, err := runtime.Run(context.Background(), Request{Prompt: "hello"})
	require.NoError(t, err)
	assert.Equal(t, config.DefaultDefinition().Name, result.Trace.AgentName)
}

func TestRuntime_ConfigMissing(t *testing.T) {
	store := seededStore()
	_ = store.Put(config.AgentDefinition{ID: "disabled", Enabled: false})
	runtime := NewRuntime(store, mockResolver(model.NewMockModel("m")), tool.NewRegistry())

	_, err := runtime.Run(context.Background(), Request{AgentID: "ghost", Prompt: "hi"})
	assert.ErrorIs(t, err, ErrConfigMissing)

	_, err = runtime.Run(context.Background(), Request{AgentID: "disabled", Prompt: "hi"})
	assert.ErrorIs(t, err, ErrConfigMissing)
}

func TestRuntime_ModelUnresolved(t *testing.T) {
	runtime := NewRuntime(seededStore(), model.NewResolver(), tool.NewRegistry())

	_, err := runtime.Run(context.Background(), Request{AgentID: "chat", Prompt: "hi"})
	assert.ErrorIs(t, err, ErrModelUnresolved)
}

// A failing stream escalates to the non-streaming path; the turn still
// settles and the trace records the fallback.
func TestRuntime_StreamFailureUsesFallback(t *testing.T) {
	inner := model.NewMockModel("m")
	inner.AddResponse("hello", "recovered answer")
	store := seededStore()
	_ = store.Put(config.AgentDefinition{
		ID: "solo", Model: "mock:m",
		CoordinationMode: config.ModeDirectOnly,
		StreamEvents:     true, Enabled: true,
	})
	runtime := NewRuntime(store, mockResolver(&streamFailModel{inner: inner}), tool.NewRegistry())

	result, err := runtime.Run(context.Background(), Request{AgentID: "solo", Prompt: "hello"})
	require.NoError(t, err)

	assert.Equal(t, "recovered answer", result.Text)
	assert.True(t, result.Trace.UsedFallback)
	assert.Equal(t, stream.OutcomeError, result.Trace.StreamOutcome)
}

func TestRuntime_BothPathsFailing(t *testing.T) {
	store := seededStore()
	_ = store.Put(config.AgentDefinition{
		ID: "solo", Model: "mock:m",
		CoordinationMode: config.ModeDirectOnly,
		StreamEvents:     true, Enabled: true,
	})
	runtime := NewRuntime(store, mockResolver(&brokenModel{}), tool.NewRegistry())

	_, err := runtime.Run(context.Background(), Request{AgentID: "solo", Prompt: "hello"})
	assert.ErrorIs(t, err, ErrFallbackFailed)
}

func TestRuntime_AssemblyFailureStillAnswers(t *testing.T) {
	store := seededStore()
	_ = store.Put(config.AgentDefinition{
		ID: "solo", Model: "mock:m", Tools: []string{"nosuch_tool"},
		CoordinationMode: config.ModeDirectOnly,
		StreamEvents:     true, Enabled: true,
	})
	runtime := NewRuntime(store, mockResolver(model.NewMockModel("m")), tool.NewRegistry())

	result, err := runtime.Run(context.Background(), Request{AgentID: "solo", Prompt: "hello"})
	require.NoError(t, err)
	assert.NotEmpty(t, result.Text)
	assert.True(t, result.Trace.AssemblyFallback)
}

// A definition that opts out of stream events answers through the
// non-streaming path; the trace records that no stream was consumed.
func TestRuntime_NonStreamingDefinition(t *testing.T) {
	store := seededStore()
	_ = store.Put(config.AgentDefinition{
		ID: "quiet", Model: "mock:m",
		CoordinationMode: config.ModeDirectOnly,
		StreamEvents:     false, Enabled: true,
	})
	runtime := NewRuntime(store, mockResolver(model.NewMockModel("m")), tool.NewRegistry())

	var streamed string
	result, err := runtime.Run(context.Background(), Request{
		AgentID: "quiet",
		Prompt:  "hello",
		OnText:  func(s string) { streamed += s },
	})
	require.NoError(t, err)

	assert.Equal(t, "Mock response to: hello", result.Text)
	assert.Empty(t, streamed)
	assert.Equal(t, stream.OutcomeNone, result.Trace.StreamOutcome)
	assert.False(t, result.Trace.UsedFallback)
	assert.False(t, result.Trace.StreamEvents)
}

func TestRuntime_CitationApplied(t *testing.T) {
	page := "3"
	runtime := newTestRuntime(model.NewMockModel("m"))

	result, err := runtime.Run(context.Background(), Request{
		AgentID: "chat",
		Prompt:  "what grew?",
		Snippets: []retrieval.Snippet{{
			Text:        "Revenue grew.",
			SourceTitle: "Audit Report",
			Locator:     retrieval.Locator{Page: &page},
		}},
	})
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(result.Text, "[Source: Audit Report, p. 3]"), result.Text)
	assert.Equal(t, 1, result.Trace.SnippetCount)
	assert.Equal(t, []string{"Audit Report"}, result.Trace.Sources)
}

func TestRuntime_RetrieverRanksWhenNoSnippets(t *testing.T) {
	retriever := retrieval.NewStaticRetriever(
		retrieval.Snippet{Text: "Fact.", SourceTitle: "Handbook"},
	)
	runtime := newTestRuntime(model.NewMockModel("m"), func(o *RuntimeOptions) {
		o.Retriever = retriever
	})

	result, err := runtime.Run(context.Background(), Request{AgentID: "chat", Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Trace.SnippetCount)
	assert.Contains(t, result.Text, "[Source: Handbook]")
}

func TestRuntime_ToolCallsReachCallerAndResult(t *testing.T) {
	m := model.NewMockModel("m")
	m.AddToolCalls("calc", model.ToolCall{ID: "c1", Name: "calculator", Arguments: `{"operation":"add","a":1,"b":2}`})
	store := seededStore()
	_ = store.Put(config.AgentDefinition{
		ID: "solo", Model: "mock:m", Tools: []string{"calculator"},
		CoordinationMode: config.ModeDirectOnly,
		StreamEvents:     true, Enabled: true,
	})
	runtime := NewRuntime(store, mockResolver(m), tool.NewRegistry())

	var observed []stream.ToolCallRecord
	result, err := runtime.Run(context.Background(), Request{
		AgentID: "solo",
		Prompt:  "calc",
		OnTool:  func(rec stream.ToolCallRecord) { observed = append(observed, rec) },
	})
	require.NoError(t, err)

	require.Len(t, observed, 1)
	assert.Equal(t, "calculator", observed[0].Tool)
	require.Len(t, result.ToolCalls, 1)
	assert.Equal(t, "3", result.ToolCalls[0].Output)
	assert.Equal(t, []string{"calculator"}, result.Trace.Tools)
}

func TestRuntime_ContextCancellation(t *testing.T) {
	runtime := newTestRuntime(model.NewMockModel("m"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := runtime.Run(ctx, Request{AgentID: "chat", Prompt: "hi"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBuildPayload(t *testing.T) {
	assert.Equal(t, "just the prompt", buildPayload("just the prompt", nil))

	page := "7"
	payload := buildPayload("question?", []retrieval.Snippet{
		{Text: "A fact.", SourceTitle: "Doc", Locator: retrieval.Locator{Page: &page}},
		{Text: "Another fact.", SourceTitle: ""},
	})
	assert.Contains(t, payload, "[Doc, p. 7]")
	assert.Contains(t, payload, "A fact.")
	assert.Contains(t, payload, "[Unknown source]")
	assert.True(t, strings.HasSuffix(payload, "User question:\nquestion?"))
}

// streamFailModel fails streaming requests and delegates non-streaming ones.
type streamFailModel struct {
	inner *model.MockModel
}

func (m *streamFailModel) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	if req.Stream {
		respCh := make(chan model.Response)
		errCh := make(chan error, 1)
		errCh <- fmt.Errorf("stream transport failed")
		close(respCh)
		close(errCh)
		return respCh, errCh
	}
	return m.inner.Generate(ctx, req)
}

func (m *streamFailModel) Info() model.Info { return m.inner.Info() }

// brokenModel fails every request.
type brokenModel struct{}

func (m *brokenModel) Generate(context.Context, model.Request) (<-chan model.Response, <-chan error) {
	respCh := make(chan model.Response)
	errCh := make(chan error, 1)
	errCh <- fmt.Errorf("provider unavailable")
	close(respCh)
	close(errCh)
	return respCh, errCh
}

func (m *brokenModel) Info() model.Info {
	return model.Info{Name: "broken", Provider: "mock"}
}
