package config

import "sync"

// DefaultChatInstructions is the baseline system prompt for the default
// coordinator: answer strictly from the supplied sources.
const DefaultChatInstructions = "You are an assistant that answers questions " +
	"using only the provided sources. Cite sources inline using the [Source] format."

// DefaultDefinitions returns the seed agent set: a chat coordinator plus the
// leaf members it delegates to.
func DefaultDefinitions() []AgentDefinition {
	return []AgentDefinition{
		{
			ID:           "chat",
			Name:         "Chat Coordinator",
			Description:  "Answers user questions based on the selected sources.",
			Role:         "assistant",
			Instructions: DefaultChatInstructions,
			Members:      []string{"reports", "infographic"},
			Model:        "openai:gpt-4o-mini",
			StreamEvents: true,
			Enabled:      true,
		},
		{
			ID:          "reports",
			Name:        "Report Agent",
			Description: "Drafts structured report sections from source material.",
			Role:        "writer",
			Instructions: "Produce a concise, well-structured report section for the " +
				"requested topic. Use only the provided context and name the source of " +
				"every claim.",
			Skills:       []string{"report", "summary", "analysis"},
			StreamEvents: true,
			Enabled:      true,
		},
		{
			ID:          "infographic",
			Name:        "Infographic Agent",
			Description: "Outlines visual summaries and diagrams for source material.",
			Role:        "designer",
			Instructions: "Describe an infographic layout: key figures, chart types " +
				"and short captions grounded in the provided context.",
			Skills:       []string{"infographic", "diagram", "chart", "visual"},
			StreamEvents: true,
			Enabled:      true,
		},
	}
}

var (
	defaultMu  sync.RWMutex
	defaultDef = DefaultDefinitions()[0]
)

// DefaultDefinition returns the process-wide default agent definition, used
// when a turn supplies no agent ID. It is set once at startup and read-only
// thereafter.
func DefaultDefinition() AgentDefinition {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultDef
}

// SetDefaultDefinition installs the process-wide default agent definition.
// Call during startup before serving turns; the core never mutates it per turn.
func SetDefaultDefinition(def AgentDefinition) {
	defaultMu.Lock()
	defaultDef = def
	defaultMu.Unlock()
}
