// Package halo provides a high-level façade over the chat-turn orchestration
// core: configuration store, model resolution, tool registry, routing, team
// assembly, stream reconciliation and citation. Most applications interact
// with this package by:
//  1. Creating a Halo via New() (optionally overriding store, retriever or logger)
//  2. Registering any custom tools or model providers
//  3. Running turns via RunTurn and consuming the streamed callbacks
//
// The façade delegates orchestration to turn.Runtime while keeping setup
// concise. All defaults are safe for local development; production
// deployments typically supply a durable configuration store and a structured
// logger.
package halo

import (
	"context"

	anthropicmodel "github.com/haloagents/halo/model/anthropic"
	openaimodel "github.com/haloagents/halo/model/openai"

	"github.com/haloagents/halo/config"
	"github.com/haloagents/halo/logging"
	"github.com/haloagents/halo/model"
	"github.com/haloagents/halo/retrieval"
	"github.com/haloagents/halo/tool"
	"github.com/haloagents/halo/turn"
)

// Options configures the Halo instance.
type Options struct {
	// Store serves agent definitions. Defaults to an in-memory store seeded
	// with the default chat team.
	Store config.Store

	// Resolver maps model identifiers to provider factories. Defaults to a
	// resolver with the OpenAI and Anthropic providers registered.
	Resolver *model.Resolver

	// Registry maps tool identifiers to factories. Defaults to the built-in
	// registry.
	Registry *tool.Registry

	// Retriever ranks context snippets for turns that supply none. Optional.
	Retriever retrieval.Retriever

	// MaxToolRounds bounds the model/tool exchange per agent invocation.
	MaxToolRounds int

	// Logger (defaults to NoOp logger if nil).
	Logger logging.Logger
}

// Halo is the high-level façade aggregating the orchestration runtime and its
// collaborators. Safe for concurrent turns.
type Halo struct {
	opts    Options
	runtime *turn.Runtime
}

// New creates a Halo instance with optional overrides. Any unset collaborator
// falls back to an in-process default.
func New(optFns ...func(o *Options)) *Halo {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Store == nil {
		store := config.NewInMemoryStore()
		for _, def := range config.DefaultDefinitions() {
			if err := store.Put(def); err != nil {
				opts.Logger.Warn("halo.seed.failed", "agent", def.ID, "error", err)
			}
		}
		opts.Store = store
	}
	if opts.Resolver == nil {
		opts.Resolver = DefaultResolver()
	}
	if opts.Registry == nil {
		opts.Registry = tool.NewRegistry()
	}

	runtime := turn.NewRuntime(opts.Store, opts.Resolver, opts.Registry, func(o *turn.RuntimeOptions) {
		o.Retriever = opts.Retriever
		o.MaxToolRounds = opts.MaxToolRounds
		o.Logger = opts.Logger
	})
	return &Halo{opts: opts, runtime: runtime}
}

// DefaultResolver returns a model resolver with the OpenAI and Anthropic
// providers registered. Provider construction fails lazily, at resolve time,
// when the corresponding API key is absent.
func DefaultResolver() *model.Resolver {
	resolver := model.NewResolver()
	resolver.Register("openai", func(name string) (model.Model, error) {
		return openaimodel.NewModel(func(o *openaimodel.Options) {
			if name != "" {
				o.Model = name
			}
		})
	})
	resolver.Register("anthropic", func(name string) (model.Model, error) {
		return anthropicmodel.NewModel(func(o *anthropicmodel.Options) {
			if name != "" {
				o.Model = name
			}
		})
	})
	return resolver
}

// RunTurn executes one chat turn and returns the settled, cited answer with
// its trace. See turn.Runtime.Run for the error taxonomy.
func (h *Halo) RunTurn(ctx context.Context, req turn.Request) (*turn.Result, error) {
	return h.runtime.Run(ctx, req)
}

// Store returns the configured agent definition store.
func (h *Halo) Store() config.Store { return h.opts.Store }

// Resolver returns the configured model resolver.
func (h *Halo) Resolver() *model.Resolver { return h.opts.Resolver }

// Registry returns the configured tool registry.
func (h *Halo) Registry() *tool.Registry { return h.opts.Registry }
