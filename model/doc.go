// Package model provides the unified language model abstraction used by
// runnable units: a normalized Request/Response pair, a provider-agnostic
// Model interface, a Resolver that maps "provider:name" identifiers to
// registered provider factories, and a MockModel for tests.
//
// Provider adapters live in subpackages (model/openai, model/anthropic).
package model
