// Package model defines the normalized interface between the orchestration
// core and language model providers. Providers adapt their wire protocol into
// Request/Response; the core never sees provider SDK types.
package model

import (
	"context"
	"fmt"
)

// ToolCall is a function call request surfaced by a model provider, unified
// across vendors so downstream logic does not need per-provider branching.
type ToolCall struct {
	ID        string `json:"id,omitempty"`
	Name      string `json:"name"`
	Arguments string `json:"arguments,omitempty"` // JSON string of arguments
}

// ToolResult carries the outcome of an executed tool call back to the model.
type ToolResult struct {
	CallID  string `json:"call_id,omitempty"`
	Name    string `json:"name"`
	Content string `json:"content"`
}

// ToolDefinition declaratively exposes a callable function to the model.
// Parameters is a minimal JSON Schema object.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Message is one conversational item in a request. Role is "system", "user",
// "assistant" or "tool"; assistant messages may carry tool calls, tool
// messages carry exactly one result.
type Message struct {
	Role       string      `json:"role"`
	Text       string      `json:"text,omitempty"`
	ToolCalls  []ToolCall  `json:"tool_calls,omitempty"`
	ToolResult *ToolResult `json:"tool_result,omitempty"`
}

// Request captures the normalized model input produced by runnable units.
type Request struct {
	Instructions string           `json:"instructions,omitempty"`
	Messages     []Message        `json:"messages"`
	Tools        []ToolDefinition `json:"tools,omitempty"`
	Stream       bool             `json:"stream,omitempty"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a (partial or final) chunk emitted by a model. Partial chunks
// carry incremental text; the final chunk carries the full text, any tool
// calls and the finish reason.
type Response struct {
	Partial      bool        `json:"partial"`
	Text         string      `json:"text,omitempty"`
	ToolCalls    []ToolCall  `json:"tool_calls,omitempty"`
	FinishReason string      `json:"finish_reason,omitempty"` // "stop", "length", "tool_calls", ...
	Usage        *TokenUsage `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "openai", "anthropic", "mock", ...
	SupportsTools bool   `json:"supports_tools"`
}

// Label is the trace-friendly "provider:name" form.
func (i Info) Label() string { return fmt.Sprintf("%s:%s", i.Provider, i.Name) }

// Model is the minimal interface required to drive generation. Generate
// returns a response channel and an error channel; both are closed when the
// call finishes. Implementations must honor ctx cancellation.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}
