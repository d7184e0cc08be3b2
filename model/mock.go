package model

import (
	"context"
	"fmt"
)

// MockModel is a lightweight in-memory Model useful for tests and examples.
// Responses are keyed by the last user message text; unknown prompts get a
// deterministic echo reply.
type MockModel struct {
	info      Info
	responses map[string]string
	toolCalls map[string][]ToolCall
}

// NewMockModel constructs a MockModel with basic tool support enabled.
func NewMockModel(name string) *MockModel {
	return &MockModel{
		info: Info{
			Name:          name,
			Provider:      "mock",
			SupportsTools: true,
		},
		responses: make(map[string]string),
		toolCalls: make(map[string][]ToolCall),
	}
}

// AddResponse registers a deterministic canned completion for an input prompt.
func (m *MockModel) AddResponse(prompt, response string) { m.responses[prompt] = response }

// AddToolCalls registers tool calls to emit (once) for an input prompt. The
// follow-up request containing the tool results falls through to the canned
// or echo response.
func (m *MockModel) AddToolCalls(prompt string, calls ...ToolCall) {
	m.toolCalls[prompt] = calls
}

// Generate implements Model; emits optional streaming word chunks then the
// final response.
func (m *MockModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 16)
	errCh := make(chan error, 1)

	go func() {
		defer close(respCh)
		defer close(errCh)

		input := lastUserText(req)
		if input == "" {
			errCh <- fmt.Errorf("no user message provided")
			return
		}

		if calls, ok := m.toolCalls[input]; ok && !hasToolResults(req) {
			respCh <- Response{ToolCalls: calls, FinishReason: "tool_calls"}
			return
		}

		full := m.responses[input]
		if full == "" {
			full = fmt.Sprintf("Mock response to: %s", input)
		}
		if req.Stream {
			for _, r := range full {
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case respCh <- Response{Partial: true, Text: string(r)}:
				}
			}
		}
		respCh <- Response{Text: full, FinishReason: "stop"}
	}()

	return respCh, errCh
}

// Info implements Model.
func (m *MockModel) Info() Info { return m.info }

func lastUserText(req Request) string {
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == "user" {
			return req.Messages[i].Text
		}
	}
	return ""
}

func hasToolResults(req Request) bool {
	for _, msg := range req.Messages {
		if msg.ToolResult != nil {
			return true
		}
	}
	return false
}
