// Package models contains shared data models used across the chapternotes codebase.
package models

import "context"

// NoteGenerator is the interface every LLM integration implements.
// Never call a specific provider directly; inject this interface.
type NoteGenerator interface {
	// GenerateNotes turns extracted chapter text into Markdown notes.
	GenerateNotes(ctx context.Context, req NoteRequest) (string, error)
	// Name returns the provider identifier (e.g., "gemini", "openai").
	Name() string
}

// NoteRequest is the input to a note generation call.
type NoteRequest struct {
	// APIKey overrides the provider's configured key when non-empty.
	APIKey string
	Text   string
	Prompt string
}
