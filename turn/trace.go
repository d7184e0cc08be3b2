package turn

import "github.com/haloagents/halo/stream"

// Trace is the telemetry record composed for every completed turn. It is
// attached to the Result; persisting or discarding it is the caller's job.
type Trace struct {
	// TurnID uniquely identifies the turn.
	TurnID string `json:"turn_id"`

	// Model is the resolved model label ("provider:name").
	Model string `json:"model"`

	// AgentName is the display name of the unit that answered.
	AgentName string `json:"agent_name"`
	// AgentType is "team" when members were delegated to, else "agent".
	AgentType string `json:"agent_type"`

	// Mode is the coordination mode the routing decision applied.
	Mode string `json:"mode"`
	// MemberIDs is the resolved member set, in invocation order.
	MemberIDs []string `json:"member_ids,omitempty"`

	// Tools lists the tool identifiers constructed for the unit.
	Tools []string `json:"tools,omitempty"`

	// StreamEvents reports whether incremental model output was requested.
	StreamEvents bool `json:"stream_events"`
	// StreamOutcome is how the event stream ended (ok, empty, error, none).
	StreamOutcome stream.Outcome `json:"stream_outcome"`

	// LatencyMS is the wall-clock duration of the turn in milliseconds.
	LatencyMS int64 `json:"latency_ms"`

	// SnippetCount is the number of context snippets supplied to the model.
	SnippetCount int `json:"snippet_count"`
	// Sources lists the distinct source titles cited, in citation order.
	Sources []string `json:"sources,omitempty"`

	// UsedFallback is set when the answer came from the non-streaming
	// generation path instead of the reconciled stream.
	UsedFallback bool `json:"used_fallback"`
	// AssemblyFallback is set when team assembly failed and the turn ran on
	// a bare single agent instead.
	AssemblyFallback bool `json:"assembly_fallback"`
}
