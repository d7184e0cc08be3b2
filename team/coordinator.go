package team

import (
	"context"
	"fmt"
	"strings"

	"github.com/haloagents/halo/config"
	"github.com/haloagents/halo/logging"
	"github.com/haloagents/halo/model"
	"github.com/haloagents/halo/stream"
	"github.com/haloagents/halo/tool"
)

// Coordinator runs delegated members first, then composes the final answer
// itself. Member output is forwarded for visibility and collected as findings;
// the coordinator's own completion is the only completion-class event the unit
// emits, so the settled answer is always the coordinator's.
type Coordinator struct {
	def          config.AgentDefinition
	model        model.Model
	tools        []tool.Tool
	members      []*Leaf
	instructions string
	logger       logging.Logger
	maxRounds    int
}

// CoordinatorOptions configure a Coordinator beyond its definition.
type CoordinatorOptions struct {
	// Instructions override the definition's composed instructions.
	Instructions  string
	MaxToolRounds int
	Logger        logging.Logger
}

// NewCoordinator builds a coordinating unit over already-constructed members.
func NewCoordinator(def config.AgentDefinition, m model.Model, tools []tool.Tool, members []*Leaf, optFns ...func(o *CoordinatorOptions)) *Coordinator {
	opts := CoordinatorOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	instructions := opts.Instructions
	if instructions == "" {
		instructions = def.ComposeInstructions()
	}

	return &Coordinator{
		def:          def,
		model:        m,
		tools:        tools,
		members:      members,
		instructions: instructions,
		logger:       opts.Logger,
		maxRounds:    opts.MaxToolRounds,
	}
}

// Name returns the display name of the coordinating agent.
func (c *Coordinator) Name() string { return c.def.DisplayName() }

// Definition returns the coordinating agent's definition.
func (c *Coordinator) Definition() config.AgentDefinition { return c.def }

// ModelInfo describes the coordinator's resolved model. Members share it.
func (c *Coordinator) ModelInfo() model.Info { return c.model.Info() }

// ToolNames lists the coordinator's own tool identifiers.
func (c *Coordinator) ToolNames() []string {
	names := make([]string, 0, len(c.tools))
	for _, t := range c.tools {
		names = append(names, t.Name())
	}
	return names
}

// MemberNames lists member names in invocation order.
func (c *Coordinator) MemberNames() []string {
	names := make([]string, 0, len(c.members))
	for _, m := range c.members {
		names = append(names, m.Name())
	}
	return names
}

func (c *Coordinator) source() stream.Source {
	return stream.Source{Origin: stream.OriginCoordinator, Agent: c.def.DisplayName()}
}

// Run executes members sequentially, then the coordinator, streaming all
// events on one sequence that ends with the coordinator's RunCompleted.
func (c *Coordinator) Run(ctx context.Context, payload string) (<-chan stream.Event, <-chan error) {
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

		findings := c.runMembers(ctx, payload, emit)

		loop := &modelLoop{
			model:         c.model,
			tools:         c.tools,
			source:        c.source(),
			maxToolRounds: c.maxRounds,
			logger:        c.logger,
		}
		text, err := loop.run(ctx, c.instructions, composePayload(payload, findings), c.def.StreamEvents, emit)
		if err != nil {
			c.logger.Error("coordinator.run.failed", "agent", c.def.ID, "error", err)
			emit(stream.NewRunError(c.source(), err))
			errs <- err
			return
		}
		emit(stream.NewRunCompleted(c.source(), text))
	}()

	return events, errs
}

// Generate produces a complete answer without streaming: members run silently,
// then the coordinator composes.
func (c *Coordinator) Generate(ctx context.Context, payload string) (string, error) {
	var findings []finding
	for _, member := range c.members {
		text, err := member.Generate(ctx, memberTask(member.Definition(), payload))
		if err != nil {
			c.logger.Warn("member.generate.failed", "member", member.Name(), "error", err)
			continue
		}
		if strings.TrimSpace(text) != "" {
			findings = append(findings, finding{name: member.Name(), text: text})
		}
	}

	loop := &modelLoop{
		model:         c.model,
		tools:         c.tools,
		source:        c.source(),
		maxToolRounds: c.maxRounds,
		logger:        c.logger,
	}
	return loop.run(ctx, c.instructions, composePayload(payload, findings), false, nil)
}

type finding struct {
	name string
	text string
}

// runMembers invokes each member on its derived sub-task. Member deltas and
// tool events are forwarded; a member's completion is collected as a finding
// rather than re-emitted, so only the coordinator completes the sequence. A
// failing member is logged and skipped.
func (c *Coordinator) runMembers(ctx context.Context, payload string, emit func(stream.Event) bool) []finding {
	var findings []finding
	for _, member := range c.members {
		if ctx.Err() != nil {
			return findings
		}

		memberEvents, memberErrs := member.Run(ctx, memberTask(member.Definition(), payload))
		var text string
		for memberEvents != nil || memberErrs != nil {
			select {
			case <-ctx.Done():
				return findings
			case ev, ok := <-memberEvents:
				if !ok {
					memberEvents = nil
					continue
				}
				switch ev.Kind {
				case stream.KindRunCompleted:
					text = ev.Text
				case stream.KindRunError:
					// Surfaced through the error channel below.
				default:
					emit(ev)
				}
			case err, ok := <-memberErrs:
				if !ok {
					memberErrs = nil
					continue
				}
				if err != nil {
					c.logger.Warn("member.run.failed", "member", member.Name(), "error", err)
				}
			}
		}

		if strings.TrimSpace(text) != "" {
			findings = append(findings, finding{name: member.Name(), text: text})
		}
	}
	return findings
}

// memberTask derives a member's sub-task from the user request and the
// member's declared specialty.
func memberTask(def config.AgentDefinition, payload string) string {
	focus := strings.TrimSpace(def.Role)
	if focus == "" {
		focus = strings.TrimSpace(def.Description)
	}
	if focus == "" {
		return payload
	}
	return fmt.Sprintf("Handle the part of the following request that matches your specialty (%s). If nothing matches, answer briefly from your perspective.\n\nRequest:\n%s", focus, payload)
}

// composePayload appends member findings to the user request so the
// coordinator can fold them into its final answer.
func composePayload(payload string, findings []finding) string {
	if len(findings) == 0 {
		return payload
	}
	var b strings.Builder
	b.WriteString(payload)
	b.WriteString("\n\nFindings contributed by your team members:\n")
	for _, f := range findings {
		b.WriteString("\n## ")
		b.WriteString(f.name)
		b.WriteString("\n")
		b.WriteString(strings.TrimSpace(f.text))
		b.WriteString("\n")
	}
	b.WriteString("\nCompose the final answer for the user, incorporating the relevant findings.")
	return b.String()
}
