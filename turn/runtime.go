// Package turn orchestrates one chat turn end to end: resolve the agent
// definition, rank context, route, assemble a runnable unit, reconcile its
// event stream into a settled answer, apply the citation policy and compose
// the telemetry trace. Each Run call is independent; concurrent turns share
// only the read path into the configuration store.
package turn

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/haloagents/halo/citation"
	"github.com/haloagents/halo/config"
	"github.com/haloagents/halo/logging"
	"github.com/haloagents/halo/model"
	"github.com/haloagents/halo/retrieval"
	"github.com/haloagents/halo/routing"
	"github.com/haloagents/halo/stream"
	"github.com/haloagents/halo/team"
	"github.com/haloagents/halo/tool"
)

// Request describes one chat turn. It is immutable for the turn's duration.
type Request struct {
	// Prompt is the user's message.
	Prompt string

	// Snippets are the ranked context snippets to supply to the model. When
	// nil and the runtime has a Retriever, they are ranked from the prompt.
	Snippets []retrieval.Snippet

	// AgentID selects the agent definition; empty means the process-wide
	// default definition.
	AgentID string

	// OnText receives each novel text fragment in production order. Optional.
	OnText func(string)

	// OnTool receives each first-seen tool call. Optional.
	OnTool func(stream.ToolCallRecord)
}

// Result is the settled outcome of one turn.
type Result struct {
	// Text is the cited, authoritative answer.
	Text string
	// ToolCalls is the de-duplicated tool call set of the turn.
	ToolCalls []stream.ToolCallRecord
	// Trace records what happened during the turn.
	Trace Trace
}

// RuntimeOptions configure a Runtime.
type RuntimeOptions struct {
	// Retriever ranks context snippets when a request supplies none. Optional.
	Retriever retrieval.Retriever
	// MaxToolRounds bounds the model/tool exchange per agent invocation.
	MaxToolRounds int
	Logger        logging.Logger
}

// Runtime runs chat turns. Create once at startup and share across turns; all
// turn-local state lives on the stack of Run.
type Runtime struct {
	store     config.Store
	assembler *team.Assembler
	opts      RuntimeOptions
}

// NewRuntime creates a Runtime over the given configuration store, model
// resolver and tool registry.
func NewRuntime(store config.Store, resolver *model.Resolver, registry *tool.Registry, optFns ...func(o *RuntimeOptions)) *Runtime {
	opts := RuntimeOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	assembler := team.NewAssembler(store, resolver, registry, func(o *team.AssemblerOptions) {
		o.MaxToolRounds = opts.MaxToolRounds
		o.Logger = opts.Logger
	})
	return &Runtime{store: store, assembler: assembler, opts: opts}
}

// Run executes one chat turn. Only ErrConfigMissing, ErrModelUnresolved,
// ErrFallbackFailed and context errors surface; every other failure is
// recovered and reflected in the Trace. A fatal error yields no Result.
func (r *Runtime) Run(ctx context.Context, req Request) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	started := time.Now()
	turnID := stream.NewID()
	logger := r.opts.Logger

	def, err := r.lookupDefinition(req.AgentID)
	if err != nil {
		return nil, err
	}

	snippets := req.Snippets
	if snippets == nil && r.opts.Retriever != nil {
		snippets, err = r.opts.Retriever.Rank(ctx, req.Prompt)
		if err != nil {
			logger.Warn("turn.retrieval.failed", "turn", turnID, "error", err)
			snippets = nil
		}
	}

	decision := routing.Select(def, req.Prompt, r.enabledMembers(def))
	logger.Debug("turn.routed", "turn", turnID, "agent", def.ID,
		"mode", decision.Mode, "members", decision.MemberIDs)

	assembly, err := r.assembler.Assemble(def, decision)
	if err != nil {
		return nil, err
	}
	unit := assembly.Unit

	payload := buildPayload(req.Prompt, snippets)

	// Definitions that opt out of stream events never open an event stream:
	// the turn answers through the non-streaming path and the trace records
	// that no stream was consumed.
	result := &stream.Result{Outcome: stream.OutcomeNone}
	var streamErr error
	if def.StreamEvents {
		result, streamErr = r.consumeStream(ctx, unit, payload, req)
	}

	usedFallback := false
	if streamErr != nil || result.Outcome != stream.OutcomeOK {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if def.StreamEvents {
			logger.Info("turn.fallback", "turn", turnID, "agent", def.ID, "cause", streamErr)
		}
		text, genErr := unit.Generate(ctx, payload)
		if genErr != nil || strings.TrimSpace(text) == "" {
			if genErr == nil {
				genErr = stream.ErrStreamEmpty
			}
			return nil, fmt.Errorf("%w: %v", ErrFallbackFailed, errors.Join(streamErr, genErr))
		}
		result.Text = strings.TrimSpace(text)
		usedFallback = def.StreamEvents
	}

	trace := Trace{
		TurnID:           turnID,
		Model:            unit.ModelInfo().Label(),
		AgentName:        unit.Name(),
		AgentType:        unitType(unit),
		Mode:             decision.Mode,
		MemberIDs:        decision.MemberIDs,
		Tools:            unit.ToolNames(),
		StreamEvents:     def.StreamEvents,
		StreamOutcome:    result.Outcome,
		LatencyMS:        time.Since(started).Milliseconds(),
		SnippetCount:     len(snippets),
		Sources:          citation.Titles(snippets),
		UsedFallback:     usedFallback,
		AssemblyFallback: assembly.Fallback,
	}
	logger.Info("turn.completed", "turn", turnID, "agent", def.ID,
		"outcome", string(result.Outcome), "fallback", usedFallback, "latency_ms", trace.LatencyMS)

	return &Result{
		Text:      citation.Apply(result.Text, snippets),
		ToolCalls: result.ToolCalls,
		Trace:     trace,
	}, nil
}

// consumeStream runs the unit and reconciles its event sequence. The returned
// Result is never nil: reconciliation failures are folded into an outcome the
// fallback path reads.
func (r *Runtime) consumeStream(ctx context.Context, unit team.Unit, payload string, req Request) (*stream.Result, error) {
	rec := stream.NewReconciler(func(o *stream.ReconcilerOptions) {
		o.OnText = req.OnText
		o.OnTool = req.OnTool
		o.Logger = r.opts.Logger
	})

	events, errs := unit.Run(ctx, payload)
	result, err := rec.Consume(ctx, events, errs)
	if err != nil {
		outcome := stream.OutcomeEmpty
		if errors.Is(err, stream.ErrStreamError) || !errors.Is(err, stream.ErrStreamEmpty) {
			outcome = stream.OutcomeError
		}
		return &stream.Result{Outcome: outcome}, err
	}
	return result, nil
}

// lookupDefinition resolves the definition for a turn. An empty agent ID
// selects the process-wide default.
func (r *Runtime) lookupDefinition(agentID string) (config.AgentDefinition, error) {
	if strings.TrimSpace(agentID) == "" {
		def := config.DefaultDefinition()
		if !def.Enabled {
			return config.AgentDefinition{}, fmt.Errorf("default agent: %w", ErrConfigMissing)
		}
		return def, nil
	}

	def, ok := r.store.Get(agentID)
	if !ok || !def.Enabled {
		return config.AgentDefinition{}, fmt.Errorf("agent %s: %w", agentID, ErrConfigMissing)
	}
	return def, nil
}

// enabledMembers resolves the coordinator's enabled member definitions in
// declared order. The store's member listing is preferred; a definition the
// store does not hold (the process default) resolves members one by one.
func (r *Runtime) enabledMembers(def config.AgentDefinition) []config.AgentDefinition {
	if len(def.Members) == 0 {
		return nil
	}
	if members := r.store.ListEnabledMembers(def.ID); len(members) > 0 {
		return members
	}

	var members []config.AgentDefinition
	for _, id := range def.Members {
		member, ok := r.store.Get(id)
		if ok && member.Enabled {
			members = append(members, member)
		}
	}
	return members
}

func unitType(unit team.Unit) string {
	if len(unit.MemberNames()) > 0 {
		return "team"
	}
	return "agent"
}
