package turn

import (
	"strings"

	"github.com/haloagents/halo/retrieval"
)

// buildPayload composes the model payload for a turn: the ranked context
// snippets, each labeled with its source, followed by the user prompt. With
// no snippets the prompt passes through untouched.
func buildPayload(prompt string, snippets []retrieval.Snippet) string {
	if len(snippets) == 0 {
		return prompt
	}

	var b strings.Builder
	b.WriteString("Context excerpts from the knowledge base:\n")
	for _, snip := range snippets {
		b.WriteString("\n[")
		b.WriteString(snippetLabel(snip))
		b.WriteString("]\n")
		b.WriteString(strings.TrimSpace(snip.Text))
		b.WriteString("\n")
	}
	b.WriteString("\nUser question:\n")
	b.WriteString(prompt)
	return b.String()
}

func snippetLabel(snip retrieval.Snippet) string {
	title := strings.TrimSpace(snip.SourceTitle)
	if title == "" {
		title = "Unknown source"
	}
	if label := snip.Locator.PageLabel(); label != "" {
		return title + ", p. " + label
	}
	return title
}
