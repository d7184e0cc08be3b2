// Package config loads and serves agent definitions. Definitions are owned by
// an external store (a JSON directory by default); the orchestration core
// only reads them. Stores must be safe for concurrent readers.
package config

import "strings"

// Coordination modes recognized by the routing policy.
const (
	ModeDirectOnly           = "direct_only"
	ModeAlwaysDelegate       = "always_delegate"
	ModeDelegateOnComplexity = "delegate_on_complexity"
	ModeCoordinatedRAG       = "coordinated_rag"
)

// AgentDefinition describes one configured agent: either a leaf worker or a
// coordinator whose Members list names the leaves it may delegate to.
type AgentDefinition struct {
	ID               string         `json:"id"`
	Name             string         `json:"name,omitempty"`
	Description      string         `json:"description,omitempty"`
	Role             string         `json:"role,omitempty"`
	Instructions     string         `json:"instructions,omitempty"`
	Skills           []string       `json:"skills,omitempty"`
	Tools            []string       `json:"tools,omitempty"`
	ToolSettings     map[string]any `json:"tool_settings,omitempty"`
	Members          []string       `json:"members,omitempty"`
	Model            string         `json:"model,omitempty"`
	CoordinationMode string         `json:"coordination_mode,omitempty"`
	StreamEvents     bool           `json:"stream_events"`
	Enabled          bool           `json:"enabled"`
}

// DisplayName returns the human-facing name, falling back to the ID.
func (d AgentDefinition) DisplayName() string {
	if strings.TrimSpace(d.Name) != "" {
		return d.Name
	}
	return d.ID
}

// IsCoordinator reports whether the definition names any members.
func (d AgentDefinition) IsCoordinator() bool { return len(d.Members) > 0 }

// ComposeInstructions produces the final system instruction text from role,
// description, free-text instructions and a tool usage notice. Mirrors how
// the coordinator and members present themselves to the model.
func (d AgentDefinition) ComposeInstructions() string {
	var header []string
	if role := strings.TrimSpace(d.Role); role != "" {
		header = append(header, "Role: "+role)
	}
	if desc := strings.TrimSpace(d.Description); desc != "" {
		header = append(header, "Description: "+desc)
	}

	var parts []string
	if len(header) > 0 {
		parts = append(parts, strings.Join(header, "\n"))
	}
	if inst := strings.TrimSpace(d.Instructions); inst != "" {
		parts = append(parts, inst)
	}
	if len(d.Tools) > 0 {
		notice := "You may use the configured tools to look up external information (" +
			strings.Join(d.Tools, ", ") + "). When you use a tool, cite the source."
		parts = append(parts, notice)
	}
	return strings.TrimSpace(strings.Join(parts, "\n\n"))
}

// GroundingInstructions is appended to a coordinator when routing selects the
// coordinated_rag mode: answers must stay within the supplied sources.
const GroundingInstructions = "Answer only from the provided source snippets. " +
	"Cite sources inline using the [Source] format. If the sources do not cover " +
	"the question, say so instead of guessing."
