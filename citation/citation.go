// Package citation applies the post-hoc grounding policy: the settled answer
// of a turn is annotated with references to the source snippets that were
// actually supplied to the model. Applying the policy twice yields the same
// text as applying it once.
package citation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/haloagents/halo/retrieval"
)

var (
	// inlineTag matches inline reference tags in either the English or the
	// legacy German form the models were instructed with.
	inlineTag = regexp.MustCompile(`(?i)\[\s*(?:source|quelle)\s*:[^\]]*\]`)

	// germanTag captures the legacy inline form for translation.
	germanTag = regexp.MustCompile(`(?i)\[\s*quelle\s*:\s*([^,\]]+?)(?:\s*,\s*seite\s+(\S+?))?\s*\]`)

	// germanHeading matches a legacy sources heading of any level.
	germanHeading = regexp.MustCompile(`(?im)^(#{1,6})\s+quellen\s*$`)

	// sourcesHeading detects an already-present sources section.
	sourcesHeading = regexp.MustCompile(`(?im)^#{1,6}\s+sources\s*$`)
)

// source is one distinct cited source with its most specific locator.
type source struct {
	title string
	label string
}

// Apply annotates text with references to the supplied snippets. Zero
// snippets leave the text unchanged; one distinct source yields a single
// inline tag; several distinct sources yield a "### Sources" section, unless
// the text already carries one.
func Apply(text string, snippets []retrieval.Snippet) string {
	normalized := normalize(text)
	sources := distinctSources(snippets)

	switch len(sources) {
	case 0:
		return normalized
	case 1:
		return applyInline(normalized, sources[0])
	default:
		return applySection(normalized, sources)
	}
}

// normalize translates legacy German reference forms into the English ones
// the policy emits, so repeated application converges.
func normalize(text string) string {
	text = germanTag.ReplaceAllStringFunc(text, func(match string) string {
		parts := germanTag.FindStringSubmatch(match)
		title := strings.TrimSpace(parts[1])
		if page := strings.TrimSpace(parts[2]); page != "" {
			return fmt.Sprintf("[Source: %s, p. %s]", title, page)
		}
		return fmt.Sprintf("[Source: %s]", title)
	})
	return germanHeading.ReplaceAllString(text, "$1 Sources")
}

// applyInline strips any existing inline tags and appends the single
// authoritative one, so the reference appears exactly once.
func applyInline(text string, s source) string {
	stripped := strings.TrimSpace(inlineTag.ReplaceAllString(text, ""))
	return stripped + "\n\n" + inlineRef(s)
}

// applySection appends a sources section with one bullet per distinct title.
// A pre-existing sources heading means the model already produced the
// section; nothing is appended.
func applySection(text string, sources []source) string {
	if sourcesHeading.MatchString(text) {
		return text
	}

	var b strings.Builder
	b.WriteString(strings.TrimSpace(text))
	b.WriteString("\n\n### Sources\n")
	for _, s := range sources {
		b.WriteString("- ")
		b.WriteString(s.title)
		if s.label != "" {
			b.WriteString(", p. ")
			b.WriteString(s.label)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func inlineRef(s source) string {
	if s.label != "" {
		return fmt.Sprintf("[Source: %s, p. %s]", s.title, s.label)
	}
	return fmt.Sprintf("[Source: %s]", s.title)
}

// distinctSources collapses snippets to distinct titles in first-seen order,
// keeping the most specific locator observed for each title.
func distinctSources(snippets []retrieval.Snippet) []source {
	var out []source
	index := make(map[string]int)
	for _, snip := range snippets {
		title := strings.TrimSpace(snip.SourceTitle)
		if title == "" {
			title = "Unknown source"
		}
		label := snip.Locator.PageLabel()

		if i, seen := index[title]; seen {
			if out[i].label == "" && label != "" {
				out[i].label = label
			}
			continue
		}
		index[title] = len(out)
		out = append(out, source{title: title, label: label})
	}
	return out
}

// Titles returns the distinct source titles the policy would cite for the
// given snippets, in citation order. Used for trace composition.
func Titles(snippets []retrieval.Snippet) []string {
	sources := distinctSources(snippets)
	titles := make([]string, 0, len(sources))
	for _, s := range sources {
		titles = append(titles, s.title)
	}
	return titles
}
