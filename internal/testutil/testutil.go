// Package testutil provides shared fixtures for package tests: mock model
// resolvers and context snippet builders.
package testutil

import (
	"github.com/haloagents/halo/model"
	"github.com/haloagents/halo/retrieval"
)

// MockResolver returns a resolver serving mock models under the "mock"
// provider, with "mock:default" as the default model. Lookups are
// name-sensitive so traces carry the requested label.
func MockResolver() *model.Resolver {
	resolver := model.NewResolver(func(o *model.ResolverOptions) {
		o.DefaultModelID = "mock:default"
		o.DefaultProvider = "mock"
	})
	resolver.Register("mock", func(name string) (model.Model, error) {
		return model.NewMockModel(name), nil
	})
	return resolver
}

// FixedResolver returns a resolver whose every lookup, including the default,
// yields exactly the given model instance.
func FixedResolver(m model.Model) *model.Resolver {
	resolver := model.NewResolver(func(o *model.ResolverOptions) {
		o.DefaultModelID = "mock:default"
		o.DefaultProvider = "mock"
	})
	resolver.Register("mock", func(string) (model.Model, error) { return m, nil })
	return resolver
}

// Snippet builds a context snippet without a locator.
func Snippet(title, text string) retrieval.Snippet {
	return retrieval.Snippet{Text: text, SourceTitle: title}
}

// SnippetWithPage builds a context snippet carrying a printed page label.
func SnippetWithPage(title, text, page string) retrieval.Snippet {
	return retrieval.Snippet{
		Text:        text,
		SourceTitle: title,
		Locator:     retrieval.Locator{Page: &page},
	}
}
