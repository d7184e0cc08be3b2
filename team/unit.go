// Package team builds runnable units for a chat turn: either a single leaf
// agent or a coordinator composed with delegated leaf members. Units produce
// the stream.Event sequence the reconciler consumes; construction applies the
// single-agent fallback that keeps a turn alive when team assembly fails.
package team

import (
	"context"

	"github.com/haloagents/halo/config"
	"github.com/haloagents/halo/model"
	"github.com/haloagents/halo/stream"
)

// Unit is a runnable handle produced by the Assembler for exactly one turn.
// It is owned by that turn and discarded at turn end; implementations carry
// no cross-turn state.
type Unit interface {
	// Name returns the display name of the unit's top-level agent.
	Name() string

	// Definition returns the agent definition the unit was built from.
	Definition() config.AgentDefinition

	// ModelInfo describes the resolved model, for telemetry.
	ModelInfo() model.Info

	// ToolNames lists the constructed tool identifiers, for telemetry.
	ToolNames() []string

	// MemberNames lists delegated member names in invocation order; empty
	// for a leaf unit.
	MemberNames() []string

	// Run starts the unit and returns its event sequence. Both channels are
	// closed when the run finishes; the error channel carries at most one
	// terminal error.
	Run(ctx context.Context, payload string) (<-chan stream.Event, <-chan error)

	// Generate produces a complete answer without streaming. Used only for
	// the turn orchestrator's fallback path.
	Generate(ctx context.Context, payload string) (string, error)
}
