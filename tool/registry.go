package tool

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Factory builds a Tool from the per-agent settings block for its identifier.
type Factory func(settings map[string]any) (Tool, error)

// Registry maps the tool identifiers that appear in agent definitions to
// factories. Safe for concurrent use; registration normally happens at
// startup, Build during turns.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates a Registry pre-populated with the built-in tools.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	r.Register("calculator", func(map[string]any) (Tool, error) { return NewCalculatorTool(), nil })
	r.Register("current_time", func(map[string]any) (Tool, error) { return NewCurrentTimeTool(), nil })
	return r
}

// Register installs a factory for a tool identifier, replacing any previous one.
func (r *Registry) Register(id string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[id] = factory
}

// Build constructs tools for the given identifiers. settings holds the
// per-tool settings blocks keyed by identifier. An unknown identifier or a
// failing factory is an error so the assembler can apply its fallback.
func (r *Registry) Build(toolIDs []string, settings map[string]any) ([]Tool, error) {
	if len(toolIDs) == 0 {
		return nil, nil
	}

	tools := make([]Tool, 0, len(toolIDs))
	for _, id := range toolIDs {
		r.mu.RLock()
		factory, ok := r.factories[id]
		r.mu.RUnlock()
		if !ok {
			return nil, fmt.Errorf("unknown tool: %s", id)
		}

		var toolSettings map[string]any
		if settings != nil {
			if block, ok := settings[id].(map[string]any); ok {
				toolSettings = block
			}
		}
		t, err := factory(toolSettings)
		if err != nil {
			return nil, fmt.Errorf("build tool %s: %w", id, err)
		}
		tools = append(tools, t)
	}
	return tools, nil
}

// NewCalculatorTool returns a built-in arithmetic tool.
func NewCalculatorTool() Tool {
	return NewFunctionTool(
		"calculator",
		"Perform a basic arithmetic operation on two numbers",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"operation": map[string]any{
					"type": "string",
					"enum": []string{"add", "subtract", "multiply", "divide"},
				},
				"a": map[string]any{"type": "number"},
				"b": map[string]any{"type": "number"},
			},
			"required": []string{"operation", "a", "b"},
		},
		func(_ context.Context, args map[string]any) (any, error) {
			a, b := toFloat(args["a"]), toFloat(args["b"])
			switch args["operation"] {
			case "add":
				return a + b, nil
			case "subtract":
				return a - b, nil
			case "multiply":
				return a * b, nil
			case "divide":
				if b == 0 {
					return nil, NewToolError("calculator", "division by zero", "EXECUTION_ERROR")
				}
				return a / b, nil
			default:
				return nil, NewToolError("calculator", fmt.Sprintf("unknown operation: %v", args["operation"]), "VALIDATION_ERROR")
			}
		},
	)
}

// NewCurrentTimeTool returns a built-in tool reporting the current UTC time.
func NewCurrentTimeTool() Tool {
	return NewFunctionTool(
		"current_time",
		"Get the current date and time in UTC",
		map[string]any{"type": "object", "properties": map[string]any{}},
		func(_ context.Context, _ map[string]any) (any, error) {
			return time.Now().UTC().Format(time.RFC3339), nil
		},
	)
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return 0
	}
}
