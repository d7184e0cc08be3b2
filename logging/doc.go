// Package logging defines the minimal Logger interface shared by all
// orchestration components plus adapters for log/slog and a contextual
// TurnLogger used by the turn runtime.
package logging
