package team

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/haloagents/halo/logging"
	"github.com/haloagents/halo/model"
	"github.com/haloagents/halo/stream"
	"github.com/haloagents/halo/tool"
)

// defaultMaxToolRounds bounds the model/tool exchange per agent invocation so
// a model that keeps requesting tools cannot loop a turn forever.
const defaultMaxToolRounds = 4

// modelLoop drives one agent invocation: prompt the model, execute any
// requested tool calls, feed results back, repeat until the model answers in
// text or the round budget is exhausted. emit forwards events to the unit's
// consumer and reports false when the consumer is gone.
type modelLoop struct {
	model         model.Model
	tools         []tool.Tool
	source        stream.Source
	maxToolRounds int
	logger        logging.Logger
}

// run executes the loop and returns the final answer text. When emit is nil
// the loop runs silently (the non-streaming path).
func (l *modelLoop) run(ctx context.Context, instructions, payload string, streaming bool, emit func(stream.Event) bool) (string, error) {
	rounds := l.maxToolRounds
	if rounds <= 0 {
		rounds = defaultMaxToolRounds
	}

	req := model.Request{
		Instructions: instructions,
		Messages:     []model.Message{{Role: "user", Text: payload}},
		Tools:        toolDefinitions(l.tools),
		Stream:       streaming,
	}

	for round := 0; round <= rounds; round++ {
		final, err := l.generate(ctx, req, emit)
		if err != nil {
			return "", err
		}

		if len(final.ToolCalls) == 0 || round == rounds {
			return final.Text, nil
		}

		req.Messages = append(req.Messages, model.Message{
			Role:      "assistant",
			Text:      final.Text,
			ToolCalls: final.ToolCalls,
		})
		for _, call := range final.ToolCalls {
			result := l.execute(ctx, call, emit)
			req.Messages = append(req.Messages, model.Message{Role: "tool", ToolResult: &result})
		}
	}
	return "", fmt.Errorf("agent %s: tool round budget exhausted", l.source.Agent)
}

// generate performs one model call, forwarding partial text as deltas, and
// returns the final response.
func (l *modelLoop) generate(ctx context.Context, req model.Request, emit func(stream.Event) bool) (*model.Response, error) {
	responses, errs := l.model.Generate(ctx, req)

	var final *model.Response
	for responses != nil || errs != nil {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case resp, ok := <-responses:
			if !ok {
				responses = nil
				continue
			}
			if resp.Partial {
				if resp.Text != "" && emit != nil {
					if !emit(stream.NewTextDelta(l.source, resp.Text)) {
						return nil, ctx.Err()
					}
				}
				continue
			}
			r := resp
			final = &r
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err != nil {
				return nil, err
			}
		}
	}
	if final == nil {
		return nil, fmt.Errorf("agent %s: model produced no final response", l.source.Agent)
	}
	return final, nil
}

// execute runs one tool call. Failures never abort the loop: the error text is
// returned to the model as the tool result so it can recover or explain.
func (l *modelLoop) execute(ctx context.Context, call model.ToolCall, emit func(stream.Event) bool) model.ToolResult {
	if emit != nil {
		emit(stream.NewToolCallStarted(l.source, call.Name, call.Arguments))
	}

	output := l.invoke(ctx, call)
	if emit != nil {
		emit(stream.NewToolCallFinished(l.source, call.Name, call.Arguments, output))
	}
	return model.ToolResult{CallID: call.ID, Name: call.Name, Content: output}
}

func (l *modelLoop) invoke(ctx context.Context, call model.ToolCall) string {
	t := l.findTool(call.Name)
	if t == nil {
		l.logger.Warn("tool.unknown", "tool", call.Name, "agent", l.source.Agent)
		return fmt.Sprintf("Error: unknown tool %q", call.Name)
	}

	args := map[string]any{}
	if strings.TrimSpace(call.Arguments) != "" {
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			return fmt.Sprintf("Error: invalid tool arguments: %v", err)
		}
	}

	l.logger.Debug("tool.call", "tool", call.Name, "agent", l.source.Agent)
	result, err := t.Call(ctx, args)
	if err != nil {
		l.logger.Warn("tool.failed", "tool", call.Name, "agent", l.source.Agent, "error", err)
		return fmt.Sprintf("Error: %v", err)
	}
	return formatToolResult(result)
}

func (l *modelLoop) findTool(name string) tool.Tool {
	for _, t := range l.tools {
		if t.Name() == name {
			return t
		}
	}
	return nil
}

func formatToolResult(result any) string {
	switch v := result.(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}

func toolDefinitions(tools []tool.Tool) []model.ToolDefinition {
	if len(tools) == 0 {
		return nil
	}
	defs := make([]model.ToolDefinition, 0, len(tools))
	for _, t := range tools {
		defs = append(defs, model.ToolDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		})
	}
	return defs
}
