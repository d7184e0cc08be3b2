// Package retrieval defines the interface through which ranked context
// snippets enter a chat turn. Embedding, chunking and vector search live
// behind the Retriever interface; the orchestration core only consumes the
// ranked result.
package retrieval

import (
	"context"
	"strconv"
	"strings"
)

// Locator points into the source document a snippet was extracted from.
// All fields are optional pointers so absence can be distinguished from zero
// values (index 0 is a valid page index).
type Locator struct {
	Page       *string `json:"page,omitempty"`        // Printed page label, e.g. "3" or "iv"
	PageIndex  *int    `json:"page_index,omitempty"`  // Zero-based page position
	ChunkIndex *int    `json:"chunk_index,omitempty"` // Zero-based chunk position
}

// Snippet is one ranked context chunk supplied to the model payload.
type Snippet struct {
	Text        string  `json:"text"`
	SourceTitle string  `json:"source_title"`
	Locator     Locator `json:"locator"`
}

// Retriever ranks context snippets for a query. Implementations must be safe
// for concurrent use; one turn performs at most one Rank call.
type Retriever interface {
	Rank(ctx context.Context, query string) ([]Snippet, error)
}

// StaticRetriever returns a fixed snippet list regardless of query. Useful
// for tests and for callers that perform retrieval themselves.
type StaticRetriever struct {
	snippets []Snippet
}

// NewStaticRetriever creates a retriever over a fixed snippet set.
func NewStaticRetriever(snippets ...Snippet) *StaticRetriever {
	return &StaticRetriever{snippets: snippets}
}

// Rank implements Retriever. The query is ignored; the configured snippets
// are returned in insertion order.
func (r *StaticRetriever) Rank(_ context.Context, _ string) ([]Snippet, error) {
	out := make([]Snippet, len(r.snippets))
	copy(out, r.snippets)
	return out, nil
}

// PageLabel resolves the most specific human-readable page reference for a
// locator: the printed page label if present, else page index + 1, else
// chunk index + 1, else empty.
func (l Locator) PageLabel() string {
	if l.Page != nil {
		if p := strings.TrimSpace(*l.Page); p != "" {
			return p
		}
	}
	if l.PageIndex != nil {
		return strconv.Itoa(*l.PageIndex + 1)
	}
	if l.ChunkIndex != nil {
		return strconv.Itoa(*l.ChunkIndex + 1)
	}
	return ""
}
