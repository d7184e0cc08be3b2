package team

import (
	"context"

	"github.com/haloagents/halo/config"
	"github.com/haloagents/halo/logging"
	"github.com/haloagents/halo/model"
	"github.com/haloagents/halo/stream"
	"github.com/haloagents/halo/tool"
)

// Leaf is a single agent backed by one model and an optional tool set. It is
// both the direct-answer unit and the building block Coordinator delegates to.
type Leaf struct {
	def          config.AgentDefinition
	model        model.Model
	tools        []tool.Tool
	origin       stream.Origin
	instructions string
	logger       logging.Logger
	maxRounds    int
}

// LeafOptions configure a Leaf beyond its definition.
type LeafOptions struct {
	// Origin tags the leaf's events; OriginCoordinator for a standalone
	// agent, OriginMember when the leaf runs under a Coordinator.
	Origin stream.Origin
	// Instructions override the definition's composed instructions.
	Instructions string
	// MaxToolRounds bounds the model/tool exchange per invocation.
	MaxToolRounds int
	Logger        logging.Logger
}

// NewLeaf builds a leaf unit from a definition and a resolved model.
func NewLeaf(def config.AgentDefinition, m model.Model, tools []tool.Tool, optFns ...func(o *LeafOptions)) *Leaf {
	opts := LeafOptions{
		Origin: stream.OriginCoordinator,
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	instructions := opts.Instructions
	if instructions == "" {
		instructions = def.ComposeInstructions()
	}

	return &Leaf{
		def:          def,
		model:        m,
		tools:        tools,
		origin:       opts.Origin,
		instructions: instructions,
		logger:       opts.Logger,
		maxRounds:    opts.MaxToolRounds,
	}
}

// Name returns the display name of the leaf's agent.
func (l *Leaf) Name() string { return l.def.DisplayName() }

// Definition returns the agent definition the leaf was built from.
func (l *Leaf) Definition() config.AgentDefinition { return l.def }

// ModelInfo describes the resolved model.
func (l *Leaf) ModelInfo() model.Info { return l.model.Info() }

// ToolNames lists the constructed tool identifiers.
func (l *Leaf) ToolNames() []string {
	names := make([]string, 0, len(l.tools))
	for _, t := range l.tools {
		names = append(names, t.Name())
	}
	return names
}

// MemberNames is always empty for a leaf.
func (l *Leaf) MemberNames() []string { return nil }

func (l *Leaf) source() stream.Source {
	return stream.Source{Origin: l.origin, Agent: l.def.DisplayName()}
}

func (l *Leaf) loop() *modelLoop {
	return &modelLoop{
		model:         l.model,
		tools:         l.tools,
		source:        l.source(),
		maxToolRounds: l.maxRounds,
		logger:        l.logger,
	}
}

// Run executes the leaf and streams its events. The sequence ends with a
// RunCompleted carrying the full answer, or a RunError.
func (l *Leaf) Run(ctx context.Context, payload string) (<-chan stream.Event, <-chan error) {
	events := make(chan stream.Event)
	errs := make(chan error, 1)

	go func() {
		defer close(events)
		defer close(errs)

		emit := func(ev stream.Event) bool {
			select {
			case events <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		text, err := l.loop().run(ctx, l.instructions, payload, l.def.StreamEvents, emit)
		if err != nil {
			l.logger.Error("leaf.run.failed", "agent", l.def.ID, "error", err)
			emit(stream.NewRunError(l.source(), err))
			errs <- err
			return
		}
		emit(stream.NewRunCompleted(l.source(), text))
	}()

	return events, errs
}

// Generate produces a complete answer without streaming.
func (l *Leaf) Generate(ctx context.Context, payload string) (string, error) {
	return l.loop().run(ctx, l.instructions, payload, false, nil)
}
