package model

import (
	"fmt"
	"strings"
	"sync"
)

// Factory builds a Model for a provider-specific model name.
type Factory func(name string) (Model, error)

// ResolverOptions configure a Resolver.
type ResolverOptions struct {
	// DefaultModelID is resolved when a definition names no model, and as the
	// same-provider fallback when the configured model cannot be built.
	DefaultModelID string
	// DefaultProvider prefixes bare model IDs without a "provider:" part.
	DefaultProvider string
}

// Resolver maps "provider:name" model identifiers to Model instances via
// registered provider factories. Safe for concurrent use.
type Resolver struct {
	mu        sync.RWMutex
	factories map[string]Factory
	opts      ResolverOptions
}

// NewResolver creates a Resolver with optional overrides.
func NewResolver(optFns ...func(o *ResolverOptions)) *Resolver {
	opts := ResolverOptions{
		DefaultModelID:  "openai:gpt-4o-mini",
		DefaultProvider: "openai",
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Resolver{factories: make(map[string]Factory), opts: opts}
}

// Register installs a provider factory, replacing any previous one.
func (r *Resolver) Register(provider string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[strings.ToLower(provider)] = factory
}

// NormalizeID canonicalizes a model identifier: empty input becomes the
// default model ID, bare names get the default provider prefix.
func (r *Resolver) NormalizeID(raw string) string {
	id := strings.TrimSpace(raw)
	if id == "" {
		return r.opts.DefaultModelID
	}
	if !strings.Contains(id, ":") {
		return r.opts.DefaultProvider + ":" + id
	}
	return id
}

// Resolve builds a Model for the given identifier. An unknown provider or a
// failing factory yields an error; callers decide whether to retry with the
// default (see ResolveDefault).
func (r *Resolver) Resolve(modelID string) (Model, error) {
	id := r.NormalizeID(modelID)
	provider, name, _ := strings.Cut(id, ":")
	provider = strings.ToLower(provider)

	r.mu.RLock()
	factory, ok := r.factories[provider]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported model provider: %s", provider)
	}

	m, err := factory(name)
	if err != nil {
		return nil, fmt.Errorf("build model %s: %w", id, err)
	}
	return m, nil
}

// ResolveDefault builds the resolver's default model.
func (r *Resolver) ResolveDefault() (Model, error) {
	return r.Resolve(r.opts.DefaultModelID)
}

// DefaultModelID returns the configured default model identifier.
func (r *Resolver) DefaultModelID() string { return r.opts.DefaultModelID }
