package team

import (
	"errors"
	"fmt"
	"strings"

	"github.com/haloagents/halo/config"
	"github.com/haloagents/halo/logging"
	"github.com/haloagents/halo/model"
	"github.com/haloagents/halo/routing"
	"github.com/haloagents/halo/stream"
	"github.com/haloagents/halo/tool"
)

// ErrModelUnresolved reports that neither the configured model nor the
// resolver's default could be built. Assembly cannot recover from it.
var ErrModelUnresolved = errors.New("no usable model for agent")

// Assembly is the outcome of building a runnable unit for one turn.
type Assembly struct {
	Unit Unit
	// Fallback is set when member or tool construction failed and the turn
	// proceeds on a bare single agent instead of the requested composition.
	Fallback bool
	// FallbackReason explains a fallback, for telemetry.
	FallbackReason string
}

// AssemblerOptions configure an Assembler.
type AssemblerOptions struct {
	// MaxToolRounds bounds the model/tool exchange per agent invocation.
	MaxToolRounds int
	Logger        logging.Logger
}

// Assembler builds runnable units from agent definitions and a routing
// decision. Model resolution failure is the only fatal outcome; everything
// else degrades to a single-agent unit so the turn still produces an answer.
type Assembler struct {
	store    config.Store
	resolver *model.Resolver
	registry *tool.Registry
	opts     AssemblerOptions
}

// NewAssembler creates an Assembler over the given stores.
func NewAssembler(store config.Store, resolver *model.Resolver, registry *tool.Registry, optFns ...func(o *AssemblerOptions)) *Assembler {
	opts := AssemblerOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Assembler{store: store, resolver: resolver, registry: registry, opts: opts}
}

// Assemble builds the unit the routing decision asks for. The coordinator's
// model is resolved once and shared by all members; a definition whose model
// cannot be built falls back to the resolver's default before giving up with
// ErrModelUnresolved.
func (a *Assembler) Assemble(def config.AgentDefinition, decision routing.Decision) (*Assembly, error) {
	m, err := a.resolveModel(def)
	if err != nil {
		return nil, err
	}

	instructions := def.ComposeInstructions()
	if decision.Grounding {
		instructions = strings.TrimSpace(instructions + "\n\n" + config.GroundingInstructions)
	}

	unit, fallbackReason := a.compose(def, decision, m, instructions)
	if fallbackReason != "" {
		a.opts.Logger.Warn("assembly.fallback", "agent", def.ID, "reason", fallbackReason)
	}
	return &Assembly{Unit: unit, Fallback: fallbackReason != "", FallbackReason: fallbackReason}, nil
}

// compose builds the requested composition, degrading to a bare leaf on any
// construction failure. The returned reason is empty when no fallback was
// applied.
func (a *Assembler) compose(def config.AgentDefinition, decision routing.Decision, m model.Model, instructions string) (Unit, string) {
	tools, err := a.registry.Build(def.Tools, def.ToolSettings)
	if err != nil {
		return a.bareLeaf(def, m, instructions), fmt.Sprintf("tool construction failed: %v", err)
	}

	if len(decision.MemberIDs) == 0 {
		return a.leaf(def, m, tools, instructions), ""
	}

	members, err := a.buildMembers(decision.MemberIDs, m)
	if err != nil {
		return a.bareLeaf(def, m, instructions), fmt.Sprintf("member construction failed: %v", err)
	}
	if len(members) == 0 {
		// Every requested member was missing or disabled. Not a failure:
		// the coordinator answers alone.
		return a.leaf(def, m, tools, instructions), ""
	}

	return NewCoordinator(def, m, tools, members, func(o *CoordinatorOptions) {
		o.Instructions = instructions
		o.MaxToolRounds = a.opts.MaxToolRounds
		o.Logger = a.opts.Logger
	}), ""
}

// buildMembers constructs member leaves with the coordinator's model. A
// member absent from the store is skipped; a member whose tools fail to build
// is an error so the caller can fall back.
func (a *Assembler) buildMembers(memberIDs []string, m model.Model) ([]*Leaf, error) {
	members := make([]*Leaf, 0, len(memberIDs))
	for _, id := range memberIDs {
		memberDef, ok := a.store.Get(id)
		if !ok || !memberDef.Enabled {
			a.opts.Logger.Debug("assembly.member.skipped", "member", id)
			continue
		}

		memberTools, err := a.registry.Build(memberDef.Tools, memberDef.ToolSettings)
		if err != nil {
			return nil, fmt.Errorf("member %s: %w", id, err)
		}
		members = append(members, NewLeaf(memberDef, m, memberTools, func(o *LeafOptions) {
			o.Origin = stream.OriginMember
			o.MaxToolRounds = a.opts.MaxToolRounds
			o.Logger = a.opts.Logger
		}))
	}
	return members, nil
}

// resolveModel builds the definition's model, retrying once with the
// resolver's default before surfacing ErrModelUnresolved.
func (a *Assembler) resolveModel(def config.AgentDefinition) (model.Model, error) {
	m, err := a.resolver.Resolve(def.Model)
	if err == nil {
		return m, nil
	}
	a.opts.Logger.Warn("assembly.model.retry_default",
		"agent", def.ID, "model", def.Model, "default", a.resolver.DefaultModelID(), "error", err)

	m, defErr := a.resolver.ResolveDefault()
	if defErr != nil {
		return nil, fmt.Errorf("agent %s: %w: %v", def.ID, ErrModelUnresolved, errors.Join(err, defErr))
	}
	return m, nil
}

func (a *Assembler) leaf(def config.AgentDefinition, m model.Model, tools []tool.Tool, instructions string) *Leaf {
	return NewLeaf(def, m, tools, func(o *LeafOptions) {
		o.Instructions = instructions
		o.MaxToolRounds = a.opts.MaxToolRounds
		o.Logger = a.opts.Logger
	})
}

func (a *Assembler) bareLeaf(def config.AgentDefinition, m model.Model, instructions string) *Leaf {
	return a.leaf(def, m, nil, instructions)
}
